// Package issuer serves signed upload authorizations over HTTP.
//
//	GET     /api/auth/{provider}  -> 200 {"token","expire","signature","publicKey"}
//	OPTIONS /api/auth/{provider}  -> 200, empty body
//
// The private key never leaves the Signer; responses carry only the four
// authorization fields.
package issuer

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// Signer produces authorizations
type Signer interface {
	Sign() (simpleupload.Authorization, error)
}

// Handlers provides HTTP handlers for the authorization endpoint
type Handlers struct {
	signer    Signer
	provider  string
	cors      bool
	tokenAuth *jwtauth.JWTAuth
	logger    *slog.Logger
}

// Option configures Handlers
type Option func(*Handlers)

// WithCORS emits permissive cross-origin headers for browser clients served
// from another origin. With a session secret, Authorization is also allowed.
func WithCORS(enabled bool) Option {
	return func(h *Handlers) {
		h.cors = enabled
	}
}

// WithSessionSecret requires a bearer JWT (HS256, signed with secret) on GET.
// An empty secret leaves the endpoint open.
func WithSessionSecret(secret string) Option {
	return func(h *Handlers) {
		if secret == "" {
			h.tokenAuth = nil
			return
		}
		h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handlers) {
		h.logger = logger
	}
}

// NewHandlers creates handlers issuing authorizations for provider
func NewHandlers(signer Signer, provider string, opts ...Option) *Handlers {
	h := &Handlers{
		signer:   signer,
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Mount mounts the handlers on a chi router
func (h *Handlers) Mount(r chi.Router) {
	r.Route("/api/auth/{provider}", func(r chi.Router) {
		if h.cors {
			if h.tokenAuth != nil {
				r.Use(corsHeaders(AllowHeadersWithSession))
			} else {
				r.Use(CORS)
			}
		}
		r.Options("/", h.HandleOptions)
		r.Group(func(r chi.Router) {
			if h.tokenAuth != nil {
				r.Use(jwtauth.Verifier(h.tokenAuth))
				r.Use(jwtauth.Authenticator)
			}
			r.Get("/", h.HandleAuthorize)
		})
	})
}

// Routes returns a router serving only the authorization endpoint
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

// HandleAuthorize issues a fresh authorization
func (h *Handlers) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if provider != h.provider {
		writeError(w, r, http.StatusNotFound, "unknown_provider", "no signature issuer for provider "+provider)
		return
	}

	auth, err := h.signer.Sign()
	if err != nil {
		h.logger.Error("Failed to sign upload authorization", "provider", provider, "err", err)
		writeError(w, r, http.StatusInternalServerError, "signing_failed", "upload authorization could not be issued")
		return
	}

	h.logger.Info("Issued upload authorization", "provider", provider, "expire", auth.Expire)

	w.Header().Set("Cache-Control", "no-store")
	render.Status(r, http.StatusOK)
	render.JSON(w, r, auth)
}

// HandleOptions answers preflight probes with 200 and no body
func (h *Handlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine code and a message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
