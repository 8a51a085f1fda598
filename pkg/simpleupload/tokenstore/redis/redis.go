// Package redis records spent authorization tokens in Redis so every
// instance of the self-hosted provider shares one view of them.
package redis

import (
	"context"
	"fmt"
	"time"

	red "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces token keys
const DefaultPrefix = "simpleupload:token:"

// Store is a Redis-backed simpleupload.TokenStore
type Store struct {
	client red.UniversalClient
	prefix string
	now    func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithPrefix sets the key prefix
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store on an existing client
func New(client red.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromURL connects to the Redis server at rawURL (redis:// or rediss://)
func NewFromURL(rawURL string, opts ...Option) (*Store, error) {
	options, err := red.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := red.NewClient(options)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return New(client, opts...), nil
}

// Claim sets the token key if absent, expiring it with the authorization
func (s *Store) Claim(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}

	ok, err := s.client.SetNX(ctx, s.prefix+token, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim token: %w", err)
	}
	return ok, nil
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}
