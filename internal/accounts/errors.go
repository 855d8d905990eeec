package accounts

import "errors"

// Caller-correctable outcomes.
var (
	ErrMissingField       = errors.New("user name, email and password are required")
	ErrWeakPassword       = errors.New("password should be at least 8 characters")
	ErrInvalidEmail       = errors.New("invalid e-mail address")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("user is not registered or password is incorrect")
)

// Authorization gate.
var (
	ErrMissingToken = errors.New("missing or malformed authorization header")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnknownUser  = errors.New("user id does not exist")
)

// Server faults.
var ErrTokenIssuance = errors.New("auth token could not be generated")

// IsValidation reports whether err is a user-correctable input or conflict
// error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrWeakPassword) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrPasswordTooLong) ||
		errors.Is(err, ErrUserExists)
}
