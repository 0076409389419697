package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HarlanReyes/bastion/internal/auth"
	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/HarlanReyes/bastion/internal/services"
	pkghttp "github.com/HarlanReyes/bastion/pkg/http"
)

// MFAServiceInterface defines the challenge and enrollment contract
type MFAServiceInterface interface {
	CompleteChallenge(ctx context.Context, ticket, code string) (*models.TokenPair, error)
	InitiateSetup(ctx context.Context, userID string) (*services.SetupResult, error)
	VerifySetup(ctx context.Context, userID, code string) ([]string, error)
	Disable(ctx context.Context, userID, code string) error
}

// MFAHandler handles MFA challenge and enrollment requests
type MFAHandler struct {
	service MFAServiceInterface
}

func NewMFAHandler(service MFAServiceInterface) *MFAHandler {
	return &MFAHandler{service: service}
}

type MFAVerifyRequest struct {
	Ticket string `json:"ticket" validate:"required"`
	Code   string `json:"code" validate:"required,min=6,max=8"`
}

type MFACodeRequest struct {
	Code string `json:"code" validate:"required,min=6,max=8"`
}

// Verify handles POST /auth/mfa/verify. Completes a pending login challenge
// by exchanging a ticket plus code for the final token pair.
func (h *MFAHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req MFAVerifyRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pair, err := h.service.CompleteChallenge(r.Context(), req.Ticket, req.Code)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, pair)
}

// Setup handles POST /auth/mfa/setup (authenticated)
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	result, err := h.service.InitiateSetup(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrMFAAlreadyEnabled) {
			pkghttp.WriteConflict(w, "MFA is already enabled")
			return
		}
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, result)
}

// VerifySetup handles POST /auth/mfa/setup/verify (authenticated). On the
// first valid code MFA flips on and backup codes come back exactly once.
func (h *MFAHandler) VerifySetup(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req MFACodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	codes, err := h.service.VerifySetup(r.Context(), claims.UserID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMFAAlreadyEnabled):
			pkghttp.WriteConflict(w, "MFA is already enabled")
		case errors.Is(err, models.ErrMFANotEnabled):
			pkghttp.WriteBadRequest(w, "MFA setup has not been initiated")
		default:
			writeAuthError(w, err)
		}
		return
	}

	pkghttp.WriteData(w, http.StatusOK, map[string]any{
		"enabled":      true,
		"backup_codes": codes,
	})
}

// Disable handles POST /auth/mfa/disable (authenticated)
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req MFACodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Disable(r.Context(), claims.UserID, req.Code); err != nil {
		if errors.Is(err, models.ErrMFANotEnabled) {
			pkghttp.WriteBadRequest(w, "MFA is not enabled")
			return
		}
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, map[string]string{"message": "MFA disabled"})
}
