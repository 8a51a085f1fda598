package signer

import "errors"

// Signing errors
var (
	// ErrNoPrivateKey is returned when signing without a configured private key
	ErrNoPrivateKey = errors.New("signer: no private key configured")

	// ErrNoPublicKey is returned when signing without a configured public key
	ErrNoPublicKey = errors.New("signer: no public key configured")

	// ErrInvalidExpiration is returned when the expiration window is not within (0, MaxExpiration]
	ErrInvalidExpiration = errors.New("signer: invalid expiration window")
)

// Validation errors
var (
	// ErrMissingToken is returned when the token is empty
	ErrMissingToken = errors.New("signer: missing token")

	// ErrMissingSignature is returned when the signature is empty
	ErrMissingSignature = errors.New("signer: missing signature")

	// ErrExpired is returned when the authorization has expired
	ErrExpired = errors.New("signer: authorization has expired")

	// ErrExpireTooFar is returned when expire lies further ahead than MaxExpiration
	ErrExpireTooFar = errors.New("signer: expire is too far in the future")

	// ErrInvalidSignature is returned when the signature does not match
	ErrInvalidSignature = errors.New("signer: invalid signature")

	// ErrPublicKeyMismatch is returned when the presented public key is not ours
	ErrPublicKeyMismatch = errors.New("signer: public key mismatch")
)

// IsAuthError returns true if the error is an authorization validation error
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrExpireTooFar) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrPublicKeyMismatch)
}
