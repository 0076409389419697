package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication errors. Wrong email, wrong password and wrong MFA code
	// all collapse into ErrInvalidCredentials so callers cannot distinguish
	// which part failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken covers refresh, reset, verification and MFA challenge
	// tokens that are absent, expired, or already consumed.
	ErrInvalidToken = errors.New("invalid or expired token")

	ErrTooManyRequests = errors.New("too many requests")
	ErrAccountInactive = errors.New("account is inactive")

	// ErrUnavailable indicates a downstream dependency (database, mailer)
	// failed within its timeout. Never retried inside the service layer.
	ErrUnavailable = errors.New("service unavailable")

	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	ErrMFANotEnabled     = errors.New("mfa not enabled")
)
