package signer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-upload/pkg/simpleupload/signer"
)

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestSign(t *testing.T) {
	s := signer.New(
		signer.WithKeys("public_test_key", "private_test_key"),
		signer.WithTokenFunc(func() string { return "5d6e0c8b-token" }),
		signer.WithClock(fixedClock(1700000000-1800)),
	)

	auth, err := s.Sign()
	require.NoError(t, err)

	assert.Equal(t, "5d6e0c8b-token", auth.Token)
	assert.Equal(t, int64(1700000000), auth.Expire)
	assert.Equal(t, "af56da3de455f40078e84228bbf69f59735034c6", auth.Signature)
	assert.Equal(t, "public_test_key", auth.PublicKey)
	assert.NoError(t, auth.Validate())
}

func TestSignGeneratesFreshTokens(t *testing.T) {
	s := signer.New(signer.WithKeys("pub", "priv"))

	first, err := s.Sign()
	require.NoError(t, err)
	second, err := s.Sign()
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	assert.NotEqual(t, first.Signature, second.Signature)
}

func TestSignMisconfigured(t *testing.T) {
	tests := []struct {
		name string
		opts []signer.Option
		want error
	}{
		{"no keys", nil, signer.ErrNoPrivateKey},
		{"no public key", []signer.Option{signer.WithKeys("", "priv")}, signer.ErrNoPublicKey},
		{"no private key", []signer.Option{signer.WithKeys("pub", "")}, signer.ErrNoPrivateKey},
		{"window too long", []signer.Option{signer.WithKeys("pub", "priv"), signer.WithExpiration(2 * time.Hour)}, signer.ErrInvalidExpiration},
		{"zero window", []signer.Option{signer.WithKeys("pub", "priv"), signer.WithExpiration(0)}, signer.ErrInvalidExpiration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := signer.New(tt.opts...).Sign()
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, auth.Token)
			assert.Empty(t, auth.Signature)
			assert.Zero(t, auth.Expire)
		})
	}
}

func TestValidate(t *testing.T) {
	now := int64(1700000000)
	s := signer.New(
		signer.WithKeys("pub", "priv"),
		signer.WithClock(fixedClock(now)),
	)
	auth, err := s.Sign()
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, s.Validate(auth.Token, auth.Expire, auth.Signature))
		assert.NoError(t, s.ValidateAuthorization(auth))
	})

	t.Run("tampered token", func(t *testing.T) {
		err := s.Validate(auth.Token+"x", auth.Expire, auth.Signature)
		assert.ErrorIs(t, err, signer.ErrInvalidSignature)
		assert.True(t, signer.IsAuthError(err))
	})

	t.Run("tampered expire", func(t *testing.T) {
		err := s.Validate(auth.Token, auth.Expire+1, auth.Signature)
		assert.ErrorIs(t, err, signer.ErrInvalidSignature)
	})

	t.Run("expired", func(t *testing.T) {
		later := signer.New(signer.WithKeys("pub", "priv"), signer.WithClock(fixedClock(auth.Expire+1)))
		assert.ErrorIs(t, later.Validate(auth.Token, auth.Expire, auth.Signature), signer.ErrExpired)
	})

	t.Run("too far ahead", func(t *testing.T) {
		assert.ErrorIs(t, s.Validate(auth.Token, now+7200, auth.Signature), signer.ErrExpireTooFar)
	})

	t.Run("missing fields", func(t *testing.T) {
		assert.ErrorIs(t, s.Validate("", auth.Expire, auth.Signature), signer.ErrMissingToken)
		assert.ErrorIs(t, s.Validate(auth.Token, auth.Expire, ""), signer.ErrMissingSignature)
	})

	t.Run("public key mismatch", func(t *testing.T) {
		other := auth
		other.PublicKey = "someone-else"
		assert.ErrorIs(t, s.ValidateAuthorization(other), signer.ErrPublicKeyMismatch)
	})

	t.Run("different private key", func(t *testing.T) {
		other := signer.New(signer.WithKeys("pub", "other"), signer.WithClock(fixedClock(now)))
		assert.ErrorIs(t, other.Validate(auth.Token, auth.Expire, auth.Signature), signer.ErrInvalidSignature)
	})
}
