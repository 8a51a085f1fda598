package signer

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-upload/pkg/simpleupload"
)

const (
	// DefaultExpiration is the validity window of issued authorizations
	DefaultExpiration = 30 * time.Minute

	// MaxExpiration is the furthest ahead an expire timestamp may lie
	MaxExpiration = 1 * time.Hour
)

// Signer issues and validates upload authorizations using the provider's
// published scheme: signature = hex(HMAC-SHA1(privateKey, token + expire)).
type Signer struct {
	publicKey  string
	privateKey []byte
	expiration time.Duration
	tokenFunc  func() string
	now        func() time.Time
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{
		expiration: DefaultExpiration,
		tokenFunc:  func() string { return uuid.NewString() },
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// PublicKey returns the public key handed to clients
func (s *Signer) PublicKey() string {
	return s.publicKey
}

// Sign generates a fresh authorization. It never returns a partially
// populated authorization: misconfigured keys fail before any field is set.
func (s *Signer) Sign() (simpleupload.Authorization, error) {
	if len(s.privateKey) == 0 {
		return simpleupload.Authorization{}, ErrNoPrivateKey
	}
	if s.publicKey == "" {
		return simpleupload.Authorization{}, ErrNoPublicKey
	}
	if s.expiration <= 0 || s.expiration > MaxExpiration {
		return simpleupload.Authorization{}, ErrInvalidExpiration
	}

	token := s.tokenFunc()
	expire := s.now().Add(s.expiration).Unix()

	return simpleupload.Authorization{
		Token:     token,
		Expire:    expire,
		Signature: s.generateSignature(token, expire),
		PublicKey: s.publicKey,
	}, nil
}

// Validate checks the signature and expiry window of an authorization
func (s *Signer) Validate(token string, expire int64, signature string) error {
	if len(s.privateKey) == 0 {
		return ErrNoPrivateKey
	}
	if token == "" {
		return ErrMissingToken
	}
	if signature == "" {
		return ErrMissingSignature
	}

	now := s.now().Unix()
	if now > expire {
		return ErrExpired
	}
	if expire-now > int64(MaxExpiration/time.Second) {
		return ErrExpireTooFar
	}

	expected := s.generateSignature(token, expire)

	// Compare signatures using constant-time comparison to prevent timing attacks
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}

	return nil
}

// ValidateAuthorization validates a full authorization including its public key
func (s *Signer) ValidateAuthorization(auth simpleupload.Authorization) error {
	if auth.PublicKey != s.publicKey {
		return ErrPublicKeyMismatch
	}
	return s.Validate(auth.Token, auth.Expire, auth.Signature)
}

// generateSignature generates the HMAC-SHA1 signature for token+expire
func (s *Signer) generateSignature(token string, expire int64) string {
	h := hmac.New(sha1.New, s.privateKey)
	h.Write([]byte(token + strconv.FormatInt(expire, 10)))
	return hex.EncodeToString(h.Sum(nil))
}
