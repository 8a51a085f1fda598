package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists accounts. Implementations return ErrNotFound,
// ErrDuplicateEmail and ErrDuplicateUniversityID.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) error
	TouchActivity(ctx context.Context, id uuid.UUID, day time.Time) error
}
