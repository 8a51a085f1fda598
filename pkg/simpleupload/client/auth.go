package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/config"
)

const maxErrorBody = 64 << 10

// AuthClient requests authorizations from the signature issuer
type AuthClient struct {
	httpClient  *http.Client
	authURL     string
	bearerToken string
	logger      *slog.Logger
}

// AuthOption is a functional option for configuring an AuthClient
type AuthOption func(*AuthClient)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) AuthOption {
	return func(c *AuthClient) {
		c.httpClient = client
	}
}

// WithBearerToken sends a session token to issuers that require one
func WithBearerToken(token string) AuthOption {
	return func(c *AuthClient) {
		c.bearerToken = token
	}
}

// WithAuthLogger sets the logger
func WithAuthLogger(logger *slog.Logger) AuthOption {
	return func(c *AuthClient) {
		c.logger = logger
	}
}

// NewAuthClient creates an AuthClient for the issuer described by cfg
func NewAuthClient(cfg config.ClientConfig, opts ...AuthOption) *AuthClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c := &AuthClient{
		httpClient: &http.Client{Timeout: timeout},
		authURL:    cfg.AuthURL(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestAuthorization fetches a fresh authorization. Every failure,
// including transport errors, is returned as an UploadError of kind
// KindAuthenticationFailed.
func (c *AuthClient) RequestAuthorization(ctx context.Context) (simpleupload.Authorization, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authURL, nil)
	if err != nil {
		return simpleupload.Authorization{}, authFailed(0, "", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Authentication request failed", "url", c.authURL, "err", err)
		return simpleupload.Authorization{}, authFailed(0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text := strings.TrimSpace(string(body))
		c.logger.Error("Authentication request rejected", "url", c.authURL, "status", resp.StatusCode, "body", text)
		return simpleupload.Authorization{}, authFailed(resp.StatusCode, text, nil)
	}

	var auth simpleupload.Authorization
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return simpleupload.Authorization{}, authFailed(resp.StatusCode, "", fmt.Errorf("failed to decode authorization: %w", err))
	}
	if err := auth.Validate(); err != nil {
		return simpleupload.Authorization{}, authFailed(resp.StatusCode, "", err)
	}

	return auth, nil
}

func authFailed(status int, body string, err error) *simpleupload.UploadError {
	return &simpleupload.UploadError{
		Kind:       simpleupload.KindAuthenticationFailed,
		Op:         "authenticate",
		StatusCode: status,
		Body:       body,
		Err:        err,
	}
}
