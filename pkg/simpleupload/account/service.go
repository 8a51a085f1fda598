package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RegisterRequest is the sign-up form
type RegisterRequest struct {
	FullName       string `json:"fullName" validate:"required,min=3,max=255"`
	Email          string `json:"email" validate:"required,email"`
	UniversityID   int    `json:"universityId" validate:"required,gt=0"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	UniversityCard string `json:"universityCard" validate:"required"`
}

// Service implements account registration and administration
type Service struct {
	repo       Repository
	validate   *validator.Validate
	bcryptCost int
	now        func() time.Time
	logger     *slog.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithBcryptCost sets the password hashing cost
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithServiceLogger sets the logger
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service on repo
func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:       repo,
		validate:   validator.New(),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates req and creates a PENDING user account
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &ValidationError{Field: jsonField(verrs[0].Field()), Rule: verrs[0].Tag()}
		}
		return nil, fmt.Errorf("failed to validate registration: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	a := &Account{
		FullName:       req.FullName,
		Email:          req.Email,
		UniversityID:   req.UniversityID,
		PasswordHash:   string(hash),
		UniversityCard: req.UniversityCard,
	}
	a.applyDefaults(s.now().UTC())

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("Registered account", "account_id", a.ID, "university_id", a.UniversityID)
	return a, nil
}

func jsonField(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// Get returns the account with id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.Get(ctx, id)
}

// Authenticate checks email and password and records the day of activity
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	a, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	today := truncateDay(s.now())
	if !a.LastActivityDate.Equal(today) {
		if err := s.repo.TouchActivity(ctx, a.ID, today); err != nil {
			return nil, fmt.Errorf("failed to record activity: %w", err)
		}
		a.LastActivityDate = today
	}

	return a, nil
}

// UpdateStatus approves or rejects an account
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Account, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.logger.Info("Updated account status", "account_id", id, "status", status)
	return s.repo.Get(ctx, id)
}

// UpdateRole changes the role of an account
func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, role Role) (*Account, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	s.logger.Info("Updated account role", "account_id", id, "role", role)
	return s.repo.Get(ctx, id)
}
