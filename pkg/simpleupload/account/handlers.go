package account

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// DefaultSessionTTL is the lifetime of tokens issued on sign-in
const DefaultSessionTTL = 24 * time.Hour

// Handlers exposes the account service over HTTP
type Handlers struct {
	service    *Service
	logger     *slog.Logger
	tokenAuth  *jwtauth.JWTAuth
	sessionTTL time.Duration
	now        func() time.Time
}

// HandlerOption configures Handlers
type HandlerOption func(*Handlers)

// WithSessionSecret enables sign-in. Tokens are HS256 JWTs signed with
// secret, the same scheme the authorization endpoint verifies.
func WithSessionSecret(secret string) HandlerOption {
	return func(h *Handlers) {
		if secret == "" {
			h.tokenAuth = nil
			return
		}
		h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
	}
}

// WithSessionTTL sets the lifetime of issued session tokens
func WithSessionTTL(d time.Duration) HandlerOption {
	return func(h *Handlers) {
		if d > 0 {
			h.sessionTTL = d
		}
	}
}

// WithHandlerClock sets the time source for token expiry
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handlers) {
		h.now = now
	}
}

// NewHandlers creates account handlers
func NewHandlers(service *Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:    service,
		logger:     logger,
		sessionTTL: DefaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the account router.
//
//	POST  /                 register
//	POST  /sign-in          session token (session secret set)
//	GET   /me               own account (session token)
//	GET   /{id}             admin
//	PATCH /{id}/status      admin
//	PATCH /{id}/role        admin
//
// Administrative routes are wrapped in admin and are not mounted when admin
// is nil.
func (h *Handlers) Routes(admin func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleRegister)
	if h.tokenAuth != nil {
		r.Post("/sign-in", h.HandleSignIn)
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)
			r.Get("/me", h.HandleMe)
		})
	}
	if admin != nil {
		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Get("/{id}", h.HandleGet)
			r.Patch("/{id}/status", h.HandleUpdateStatus)
			r.Patch("/{id}/role", h.HandleUpdateRole)
		})
	}
	return r
}

// HandleRegister handles POST /
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "request body must be JSON")
		return
	}

	a, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.handleError(w, r, "register", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, a)
}

// HandleGet handles GET /{id}
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, r, "get", err)
		return
	}
	render.JSON(w, r, a)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResponse carries the session token for the authorization endpoint
type SignInResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Account   *Account  `json:"account"`
}

// HandleSignIn handles POST /sign-in
func (h *Handlers) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "request body must be JSON")
		return
	}

	a, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, "sign in", err)
		return
	}

	expiresAt := h.now().Add(h.sessionTTL).UTC().Truncate(time.Second)
	claims := map[string]interface{}{
		"sub":  a.ID.String(),
		"role": string(a.Role),
	}
	jwtauth.SetIssuedAt(claims, h.now())
	jwtauth.SetExpiry(claims, expiresAt)
	_, token, err := h.tokenAuth.Encode(claims)
	if err != nil {
		h.handleError(w, r, "sign in", err)
		return
	}

	h.logger.Info("Signed in", "account_id", a.ID)
	render.JSON(w, r, SignInResponse{Token: token, ExpiresAt: expiresAt, Account: a})
}

// HandleMe handles GET /me
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "session token required")
		return
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "session token has no account")
		return
	}

	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, r, "me", err)
		return
	}
	render.JSON(w, r, a)
}

type statusRequest struct {
	Status Status `json:"status"`
}

// HandleUpdateStatus handles PATCH /{id}/status
func (h *Handlers) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "request body must be JSON")
		return
	}

	a, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.handleError(w, r, "update status", err)
		return
	}
	render.JSON(w, r, a)
}

type roleRequest struct {
	Role Role `json:"role"`
}

// HandleUpdateRole handles PATCH /{id}/role
func (h *Handlers) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "request body must be JSON")
		return
	}

	a, err := h.service.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		h.handleError(w, r, "update role", err)
		return
	}
	render.JSON(w, r, a)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "account id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) handleError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, r, http.StatusBadRequest, "invalid_field", verr.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidRole):
		writeError(w, r, http.StatusBadRequest, "invalid_value", err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrDuplicateEmail):
		writeError(w, r, http.StatusConflict, "duplicate_email", err.Error())
	case errors.Is(err, ErrDuplicateUniversityID):
		writeError(w, r, http.StatusConflict, "duplicate_university_id", err.Error())
	default:
		h.logger.Error("Account operation failed", "op", op, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "account operation failed")
	}
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
