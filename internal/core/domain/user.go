package domain

import "time"

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleMaintainer Role = "MAINTAINER"
	RoleReporter   Role = "REPORTER"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleMaintainer, RoleReporter}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMaintainer, RoleReporter:
		return true
	}
	return false
}

// User models an identity that can log in to the tracker.
// Email is the login name and is compared case-sensitively.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GoogleID     string    `json:"google_id,omitempty"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasPassword is false for identities provisioned by an external provider.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
