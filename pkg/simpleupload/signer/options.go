package signer

import "time"

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithKeys sets the key pair. The private key signs; the public key is
// returned to clients alongside every authorization.
func WithKeys(publicKey, privateKey string) Option {
	return func(s *Signer) {
		s.publicKey = publicKey
		s.privateKey = []byte(privateKey)
	}
}

// WithExpiration sets how long issued authorizations stay valid.
// Default is 30 minutes; the provider refuses anything beyond MaxExpiration.
func WithExpiration(d time.Duration) Option {
	return func(s *Signer) {
		s.expiration = d
	}
}

// WithTokenFunc replaces the token generator (random UUIDv4 by default)
func WithTokenFunc(fn func() string) Option {
	return func(s *Signer) {
		s.tokenFunc = fn
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}
