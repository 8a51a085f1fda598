package simpleupload

import (
	"context"
	"io"
	"time"
)

// Provider uploads one file to a storage provider using a signed
// authorization. Errors are *UploadError values with an upload-phase kind.
type Provider interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// Authorizer obtains a fresh authorization for one upload attempt.
type Authorizer interface {
	RequestAuthorization(ctx context.Context) (Authorization, error)
}

// BlobStore persists uploaded files for the self-hosted provider.
type BlobStore interface {
	// Put stores the content under key and returns the number of bytes written
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)

	// Get opens the content stored under key
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectMeta, error)

	// Delete removes the content stored under key
	Delete(ctx context.Context, key string) error
}

// TokenStore records spent authorization tokens.
type TokenStore interface {
	// Claim marks token as used until expiresAt. It returns false when the
	// token was already claimed.
	Claim(ctx context.Context, token string, expiresAt time.Time) (bool, error)
}
