package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/HarlanReyes/bastion/internal/auth"
	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/HarlanReyes/bastion/internal/services"
	pkghttp "github.com/HarlanReyes/bastion/pkg/http"
)

// AuthServiceInterface defines the orchestrator contract for auth endpoints
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, mfaCode, ipAddress, userAgent string) (*services.LoginResult, error)
	Register(ctx context.Context, email, password, name string) (*services.UserResponse, error)
	Logout(ctx context.Context, userID, refreshToken string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// TokenServiceInterface defines the token refresh contract
type TokenServiceInterface interface {
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}

// VerificationServiceInterface defines the email verification contract
type VerificationServiceInterface interface {
	Verify(ctx context.Context, token string) (*models.User, error)
	Resend(ctx context.Context, email string) error
}

// ResetServiceInterface defines the password reset contract
type ResetServiceInterface interface {
	RequestReset(ctx context.Context, email string) error
	Reset(ctx context.Context, token, newPassword string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthServiceInterface
	tokens       TokenServiceInterface
	verification VerificationServiceInterface
	reset        ResetServiceInterface
	ipConfig     *pkghttp.IPConfig
}

func NewAuthHandler(
	service AuthServiceInterface,
	tokens TokenServiceInterface,
	verification VerificationServiceInterface,
	reset ResetServiceInterface,
	ipConfig *pkghttp.IPConfig,
) *AuthHandler {
	return &AuthHandler{
		service:      service,
		tokens:       tokens,
		verification: verification,
		reset:        reset,
		ipConfig:     ipConfig,
	}
}

// Request DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfa_code,omitempty" validate:"omitempty,min=6,max=8"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetRequestRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// writeAuthError maps service-layer errors onto the transport. Credential,
// account-state and token errors all collapse to 401 so the surface leaks
// nothing about which check failed.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrAccountInactive):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrInvalidToken):
		pkghttp.WriteUnauthorized(w, "Invalid or expired token")
	case errors.Is(err, models.ErrTooManyRequests):
		pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
	case errors.Is(err, models.ErrUnavailable):
		pkghttp.WriteUnavailable(w, "Service temporarily unavailable")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.MFACode, ipAddress, userAgent)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, result)
}

// Register handles POST /auth/register. Conflicts and password policy
// failures return the same accepted response as success, preventing account
// enumeration through this endpoint.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	accepted := map[string]string{
		"message": "Registration received. If the email is not already registered, you will receive a confirmation email.",
	}

	_, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, models.ErrConflict) || strings.Contains(err.Error(), "invalid password") {
			pkghttp.WriteData(w, http.StatusAccepted, accepted)
			return
		}
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusAccepted, accepted)
}

// RefreshToken handles POST /auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pair, err := h.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, pair)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req LogoutRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Logout(r.Context(), claims.UserID, req.RefreshToken); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// VerifyEmail handles POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if _, err := h.verification.Verify(r.Context(), req.Token); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

// ResendVerification handles POST /auth/verify-email/resend
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	_ = h.verification.Resend(r.Context(), req.Email)

	pkghttp.WriteData(w, http.StatusAccepted, map[string]string{
		"message": "If the email is registered and unverified, a new verification email has been sent.",
	})
}

// RequestPasswordReset handles POST /auth/password/reset-request.
// The response is identical whether or not the email exists.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequestRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	_ = h.reset.RequestReset(r.Context(), req.Email)

	pkghttp.WriteData(w, http.StatusAccepted, map[string]string{
		"message": "If the email is registered, a password reset email has been sent.",
	})
}

// ResetPassword handles POST /auth/password/reset
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.reset.Reset(r.Context(), req.Token, req.NewPassword); err != nil {
		if strings.Contains(err.Error(), "invalid password") {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, map[string]string{"message": "Password reset"})
}

// ChangePassword handles POST /auth/password/change (authenticated)
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ChangePasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		if strings.Contains(err.Error(), "invalid password") {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, map[string]string{"message": "Password changed"})
}
