// Package user provides account management, credential verification and the
// two-factor login flow.
package user

import (
	"time"
)

// Role names gating access to route groups.
const (
	RoleSistemas     = "Sistemas"
	RoleRRHH         = "RRHH"
	RoleAdminLegajos = "AdministradorLegajos"
)

// ValidRoles is the closed set of assignable role names.
var ValidRoles = map[string]bool{
	RoleSistemas:     true,
	RoleRRHH:         true,
	RoleAdminLegajos: true,
}

// User is a system account. Accounts are never hard-deleted; deactivation
// flips Active.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	Active       bool   `json:"active"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`

	// Pending one-time code slot. Single-slot: issuing a new code
	// overwrites any previous one.
	TwoFactorHash   *string    `json:"-"`
	TwoFactorExpiry *time.Time `json:"-"`

	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// HasPendingCode reports whether a one-time code is stored and not yet
// expired at the given instant.
func (u *User) HasPendingCode(now time.Time) bool {
	return u.TwoFactorHash != nil && u.TwoFactorExpiry != nil && now.Before(*u.TwoFactorExpiry)
}
