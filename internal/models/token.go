package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims are the JWT claims carried by short-lived access tokens.
type AccessTokenClaims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// RefreshToken is one entry in a user's server-side refresh-token set.
// Only the SHA-256 hash of the opaque token is persisted.
type RefreshToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// MFATicket is issued after a successful password check when MFA is enabled,
// in place of the final token pair. Single-use, short-lived.
type MFATicket struct {
	TicketHash string
	UserID     string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// BackupCode is a single-use MFA recovery code. The code itself is
// bcrypt-hashed; a matching code is deleted on consumption.
type BackupCode struct {
	ID        string
	UserID    string
	CodeHash  string
	CreatedAt time.Time
}

// TokenPair is the result of a completed authentication or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
