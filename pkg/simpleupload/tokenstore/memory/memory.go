// Package memory keeps spent authorization tokens in process memory.
// Expired entries are purged on a cron schedule.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPurgeSpec runs the purge once a minute
const DefaultPurgeSpec = "@every 1m"

// Store is an in-memory simpleupload.TokenStore
type Store struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time

	cron      *cron.Cron
	purgeSpec string
	logger    *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithPurgeSpec sets the cron spec of the purge job
func WithPurgeSpec(spec string) Option {
	return func(s *Store) {
		s.purgeSpec = spec
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store. Call Start to schedule purging.
func New(opts ...Option) *Store {
	s := &Store{
		tokens:    make(map[string]time.Time),
		now:       time.Now,
		purgeSpec: DefaultPurgeSpec,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Claim marks token as spent until expiresAt
func (s *Store) Claim(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.tokens[token]; ok && s.now().Before(exp) {
		return false, nil
	}
	s.tokens[token] = expiresAt
	return true, nil
}

// Purge drops tokens whose authorization has expired and returns how many
// were removed. An expired authorization fails signature validation anyway.
func (s *Store) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, exp := range s.tokens {
		if !now.Before(exp) {
			delete(s.tokens, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tokens
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Start schedules the purge job
func (s *Store) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("token purge already running")
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(s.purgeSpec, func() {
		if n := s.Purge(); n > 0 {
			s.logger.Debug("Purged expired upload tokens", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", s.purgeSpec, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the purge job and waits for a running purge to finish
func (s *Store) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
