package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-upload/pkg/simpleupload/account"
)

var _ account.Repository = (*Repository)(nil)

func TestHandlePostgresError(t *testing.T) {
	r := &Repository{}

	err := r.handlePostgresError("create", &pgconn.PgError{Code: "23505", ConstraintName: "users_table_email_unique"})
	assert.ErrorIs(t, err, account.ErrDuplicateEmail)

	err = r.handlePostgresError("create", &pgconn.PgError{Code: "23505", ConstraintName: "users_table_university_id_unique"})
	assert.ErrorIs(t, err, account.ErrDuplicateUniversityID)

	err = r.handlePostgresError("create", &pgconn.PgError{Code: "42P01"})
	assert.Contains(t, err.Error(), "migration required")
}

// Runs against PostgreSQL when DATABASE_URL is set
func TestRepository_Integration(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	r := NewWithPool(pool)
	defer r.Close()
	require.NoError(t, r.EnsureSchema(ctx))

	suffix := uuid.NewString()[:8]
	universityID := int(time.Now().UnixNano() % 1_000_000_000)
	a := &account.Account{
		ID:               uuid.New(),
		FullName:         "Ada Lovelace",
		Email:            "ada-" + suffix + "@uni.edu",
		UniversityID:     universityID,
		PasswordHash:     "hash",
		UniversityCard:   "/cards/card_" + suffix + ".png",
		Status:           account.StatusPending,
		Role:             account.RoleUser,
		LastActivityDate: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, r.Create(ctx, a))

	dup := *a
	dup.ID = uuid.New()
	dup.UniversityID = universityID + 1
	assert.ErrorIs(t, r.Create(ctx, &dup), account.ErrDuplicateEmail)

	dup.Email = "other-" + suffix + "@uni.edu"
	dup.UniversityID = universityID
	assert.ErrorIs(t, r.Create(ctx, &dup), account.ErrDuplicateUniversityID)

	require.NoError(t, r.UpdateStatus(ctx, a.ID, account.StatusApproved))
	got, err := r.GetByEmail(ctx, a.Email)
	require.NoError(t, err)
	assert.Equal(t, account.StatusApproved, got.Status)
	assert.Equal(t, a.UniversityCard, got.UniversityCard)

	_, err = r.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, account.ErrNotFound)
	assert.ErrorIs(t, r.UpdateRole(ctx, uuid.New(), account.RoleAdmin), account.ErrNotFound)
}
