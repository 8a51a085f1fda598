package config

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// DefaultUploadURL is the CDN's public upload endpoint
const DefaultUploadURL = "https://upload.imagekit.io/api/v1/files/upload"

// ClientConfig is everything the upload client needs. It carries no private
// key: authorizations come from the issuer at APIEndpoint.
type ClientConfig struct {
	APIEndpoint string        // base URL of the signature issuer
	Provider    string        // provider segment of /api/auth/<provider>
	UploadURL   string        // storage provider upload endpoint
	URLEndpoint string        // public URL prefix for rendering uploaded assets
	Folder      string        // optional destination folder
	Timeout     time.Duration // timeout of the authorization request

	// SessionToken is sent as a bearer token to issuers that require a session
	SessionToken string
}

// DefaultClientConfig returns a ClientConfig pointing at apiEndpoint with CDN defaults.
func DefaultClientConfig(apiEndpoint string) ClientConfig {
	return ClientConfig{
		APIEndpoint: apiEndpoint,
		Provider:    "imagekit",
		UploadURL:   DefaultUploadURL,
		Timeout:     30 * time.Second,
	}
}

// Validate validates the client configuration
func (c ClientConfig) Validate() error {
	if c.APIEndpoint == "" {
		return errors.New("api endpoint is required")
	}
	if _, err := url.ParseRequestURI(c.APIEndpoint); err != nil {
		return errors.New("api endpoint must be an absolute URL")
	}
	if c.Provider == "" {
		return errors.New("provider is required")
	}
	if c.UploadURL == "" {
		return errors.New("upload url is required")
	}
	return nil
}

// AuthURL returns the issuer endpoint for this provider
func (c ClientConfig) AuthURL() string {
	return strings.TrimRight(c.APIEndpoint, "/") + "/api/auth/" + url.PathEscape(c.Provider)
}
