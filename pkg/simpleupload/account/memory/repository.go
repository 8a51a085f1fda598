package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-upload/pkg/simpleupload/account"
)

// Repository is an in-memory account.Repository
type Repository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]account.Account
}

// New creates an empty repository
func New() *Repository {
	return &Repository{
		accounts: make(map[uuid.UUID]account.Account),
	}
}

func (r *Repository) Create(ctx context.Context, a *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Email == a.Email {
			return account.ErrDuplicateEmail
		}
		if existing.UniversityID == a.UniversityID {
			return account.ErrDuplicateUniversityID
		}
	}
	r.accounts[a.ID] = *a
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &a, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, account.ErrNotFound
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status account.Status) error {
	return r.update(id, func(a *account.Account) { a.Status = status })
}

func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role account.Role) error {
	return r.update(id, func(a *account.Account) { a.Role = role })
}

func (r *Repository) TouchActivity(ctx context.Context, id uuid.UUID, day time.Time) error {
	return r.update(id, func(a *account.Account) { a.LastActivityDate = day })
}

func (r *Repository) update(id uuid.UUID, fn func(*account.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	fn(&a)
	r.accounts[id] = a
	return nil
}
