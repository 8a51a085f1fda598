package account

import "errors"

var (
	// ErrNotFound is returned when an account does not exist
	ErrNotFound = errors.New("account not found")

	// ErrDuplicateEmail is returned when the email is already registered
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrDuplicateUniversityID is returned when the university id is already registered
	ErrDuplicateUniversityID = errors.New("university id already registered")

	// ErrInvalidCredentials is returned when email or password do not match
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidStatus is returned for an unknown status value
	ErrInvalidStatus = errors.New("invalid account status")

	// ErrInvalidRole is returned for an unknown role value
	ErrInvalidRole = errors.New("invalid account role")
)

// ValidationError describes a rejected registration field
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Rule
}
