package simpleupload

import (
	"errors"
	"fmt"
)

// Storage errors
var (
	// ErrObjectNotFound indicates a blob was not found in a BlobStore
	ErrObjectNotFound = errors.New("object not found")
)

// ErrorKind classifies every failure of the upload flow.
// The set is closed; callers switch over it exhaustively.
type ErrorKind int

const (
	KindUnclassified ErrorKind = iota
	KindAuthenticationFailed
	KindAborted
	KindInvalidRequest
	KindNetworkFailure
	KindServerFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindAborted:
		return "aborted"
	case KindInvalidRequest:
		return "invalid_request"
	case KindNetworkFailure:
		return "network_failure"
	case KindServerFailure:
		return "server_failure"
	default:
		return "unclassified"
	}
}

// UploadError is the single error type surfaced by authorization clients and
// providers.
type UploadError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int    // HTTP status when the failure came from a response
	Body       string // response body text, if any
	Err        error
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: request failed with status %d", msg, e.StatusCode)
		if e.Body != "" {
			msg = fmt.Sprintf("%s: %s", msg, e.Body)
		}
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// NewError wraps err as an UploadError of the given kind.
func NewError(kind ErrorKind, op string, err error) *UploadError {
	return &UploadError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind carried by err, or KindUnclassified when err is not
// an UploadError.
func KindOf(err error) ErrorKind {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindUnclassified
}

// IsKind reports whether err is an UploadError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var ue *UploadError
	return errors.As(err, &ue) && ue.Kind == k
}

// AsUploadError normalizes any error into an UploadError, keeping the kind of
// an existing one and marking the rest unclassified.
func AsUploadError(op string, err error) *UploadError {
	if err == nil {
		return nil
	}
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue
	}
	return NewError(KindUnclassified, op, err)
}
