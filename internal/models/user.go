package models

import (
	"time"
)

type User struct {
	ID            string
	Email         string
	PasswordHash  string // empty for provider-linked accounts with no local password
	Name          string
	EmailVerified bool
	Roles         []string
	IsActive      bool

	// MFA state. EnabledMFA true implies MFASecret non-empty.
	MFASecret  string
	MFAEnabled bool

	// Out-of-band token state. Hashes only; plaintext tokens are never stored.
	VerificationTokenHash  string
	PasswordResetTokenHash string
	PasswordResetExpires   *time.Time

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
