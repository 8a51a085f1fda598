package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-upload/pkg/simpleupload/account"
)

//go:embed schema.sql
var Schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements account.Repository using PostgreSQL
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository owning pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// Close closes the owned pool, if any
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// EnsureSchema creates the enum types and users_table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("ensure schema", err)
	}
	return nil
}

func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "email") {
				return account.ErrDuplicateEmail
			}
			if strings.Contains(pgErr.ConstraintName, "university_id") {
				return account.ErrDuplicateUniversityID
			}
			return fmt.Errorf("duplicate entry")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "22P02": // invalid_text_representation
			return fmt.Errorf("invalid value in %s: %s", operation, pgErr.Message)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return account.ErrNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const selectColumns = `
	id, full_name, email, university_id, password, university_card,
	COALESCE(status::text, 'PENDING'), COALESCE(role::text, 'USER'),
	"lastActivityDate", COALESCE(created_at, now())`

func scanAccount(row pgx.Row) (*account.Account, error) {
	var a account.Account
	var status, role string
	err := row.Scan(
		&a.ID, &a.FullName, &a.Email, &a.UniversityID, &a.PasswordHash, &a.UniversityCard,
		&status, &role, &a.LastActivityDate, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = account.Status(status)
	a.Role = account.Role(role)
	return &a, nil
}

func (r *Repository) Create(ctx context.Context, a *account.Account) error {
	query := `
		INSERT INTO users_table (
			id, full_name, email, university_id, password, university_card,
			status, role, "lastActivityDate", created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::text::satus, $8::text::role, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		a.ID, a.FullName, a.Email, a.UniversityID, a.PasswordHash, a.UniversityCard,
		string(a.Status), string(a.Role), a.LastActivityDate, a.CreatedAt,
	)
	if err != nil {
		return r.handlePostgresError("create account", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM users_table WHERE id = $1`

	a, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get account", err)
	}
	return a, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM users_table WHERE email = $1`

	a, err := scanAccount(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, r.handlePostgresError("get account by email", err)
	}
	return a, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status account.Status) error {
	return r.exec(ctx, "update status",
		`UPDATE users_table SET status = $2::text::satus WHERE id = $1`, id, string(status))
}

func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role account.Role) error {
	return r.exec(ctx, "update role",
		`UPDATE users_table SET role = $2::text::role WHERE id = $1`, id, string(role))
}

func (r *Repository) TouchActivity(ctx context.Context, id uuid.UUID, day time.Time) error {
	return r.exec(ctx, "touch activity",
		`UPDATE users_table SET "lastActivityDate" = $2 WHERE id = $1`, id, day)
}

func (r *Repository) exec(ctx context.Context, operation, query string, args ...interface{}) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return r.handlePostgresError(operation, err)
	}
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}
