package auth

import "errors"

// Domain errors for the auth package, checked with errors.Is().
var (
	// ErrNotFound is returned when an account ID does not exist.
	ErrNotFound = errors.New("auth: account not found")

	// ErrUsernameExists is returned when creating an account with a
	// username that is already taken.
	ErrUsernameExists = errors.New("auth: username already exists")

	// ErrInvalidCredentials is returned for any failed login. It is
	// deliberately identical for unknown-username and wrong-password so
	// callers cannot probe which usernames exist.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrWeakPassword is returned when a new password fails policy.
	ErrWeakPassword = errors.New("auth: password does not meet requirements")

	// ErrLastAccount is returned when deleting the only remaining
	// account, which would lock the operator out permanently.
	ErrLastAccount = errors.New("auth: cannot delete the last account")
)
