package auth

import "time"

// Role determines what an account may do. A single-practitioner install
// has exactly one admin account; staff is reserved for future use.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleStaff
}

// Account is a login identity. The password is stored only as an
// Argon2id PHC hash; plaintext never reaches the database or the logs.
type Account struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
