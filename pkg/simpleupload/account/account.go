// Package account manages the user accounts whose university card image is
// uploaded with the upload client.
package account

import (
	"time"

	"github.com/google/uuid"
)

// Status is the approval state of an account
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Role is the permission level of an account
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// BorrowStatus is the state of a borrowed item. The database declares the
// type alongside the account tables.
type BorrowStatus string

const (
	BorrowStatusBorrowed BorrowStatus = "BORROWED"
	BorrowStatusReturned BorrowStatus = "RETURN"
)

// Valid reports whether b is a known borrow status
func (b BorrowStatus) Valid() bool {
	return b == BorrowStatusBorrowed || b == BorrowStatusReturned
}

// Account is a registered user
type Account struct {
	ID               uuid.UUID `json:"id"`
	FullName         string    `json:"fullName"`
	Email            string    `json:"email"`
	UniversityID     int       `json:"universityId"`
	PasswordHash     string    `json:"-"`
	UniversityCard   string    `json:"universityCard"` // filePath of the uploaded card image
	Status           Status    `json:"status"`
	Role             Role      `json:"role"`
	LastActivityDate time.Time `json:"lastActivityDate"`
	CreatedAt        time.Time `json:"createdAt"`
}

// applyDefaults fills the column defaults of a new account
func (a *Account) applyDefaults(now time.Time) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.Role == "" {
		a.Role = RoleUser
	}
	if a.LastActivityDate.IsZero() {
		a.LastActivityDate = truncateDay(now)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
}

// truncateDay keeps the calendar date; last activity is tracked per day
func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
