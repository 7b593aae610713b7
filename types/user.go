package types

import "time"

// Role is the closed set of staff roles known to the system.
type Role string

const (
	// RoleAdmin may manage staff accounts and delete events in addition
	// to everything RolePortaria may do.
	RoleAdmin Role = "admin"

	// RolePortaria is the front-desk role: registrant management and
	// check-ins, but no user administration.
	RolePortaria Role = "portaria"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RolePortaria
}

// User represents a staff account in the system.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name.
	Username string `json:"username" db:"username"`

	// Email is the user's email address, unique across accounts.
	Email string `json:"email" db:"email"`

	// FullName is the user's display name.
	FullName string `json:"full_name" db:"full_name"`

	// Role is the user's authorization level (admin or portaria).
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsActive gates login and token verification; inactive accounts
	// are rejected as if the credentials were wrong.
	IsActive bool `json:"is_active" db:"is_active"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
