package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/HarlanReyes/bastion/internal/handlers"
	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/HarlanReyes/bastion/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestMFAVerify_Success(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		CompleteChallengeFunc: func(ctx context.Context, ticket, code string) (*models.TokenPair, error) {
			assert.Equal(t, "ticket_abc", ticket)
			assert.Equal(t, "123456", code)
			return &models.TokenPair{
				AccessToken:  "access_after_mfa",
				RefreshToken: "refresh_after_mfa",
			}, nil
		},
	}

	handler := handlers.NewMFAHandler(mockMFA)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/verify", handlers.MFAVerifyRequest{
		Ticket: "ticket_abc",
		Code:   "123456",
	})

	w := httptest.NewRecorder()
	handler.Verify(w, req)

	var pair models.TokenPair
	handlers.AssertJSONResponse(t, w, 200, &pair)
	assert.Equal(t, "access_after_mfa", pair.AccessToken)
}

func TestMFAVerify_ExpiredTicket(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		CompleteChallengeFunc: func(ctx context.Context, ticket, code string) (*models.TokenPair, error) {
			return nil, models.ErrInvalidToken
		},
	}

	handler := handlers.NewMFAHandler(mockMFA)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/verify", handlers.MFAVerifyRequest{
		Ticket: "expired_ticket",
		Code:   "123456",
	})

	w := httptest.NewRecorder()
	handler.Verify(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestMFAVerify_WrongCode(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		CompleteChallengeFunc: func(ctx context.Context, ticket, code string) (*models.TokenPair, error) {
			return nil, models.ErrInvalidCredentials
		},
	}

	handler := handlers.NewMFAHandler(mockMFA)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/verify", handlers.MFAVerifyRequest{
		Ticket: "ticket_abc",
		Code:   "000000",
	})

	w := httptest.NewRecorder()
	handler.Verify(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestMFAVerify_MissingFields(t *testing.T) {
	handler := handlers.NewMFAHandler(&handlers.MockMFAService{})
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/verify", handlers.MFAVerifyRequest{
		Ticket: "ticket_abc",
	})

	w := httptest.NewRecorder()
	handler.Verify(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestMFASetup_Success(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		InitiateSetupFunc: func(ctx context.Context, userID string) (*services.SetupResult, error) {
			assert.Equal(t, "user-1", userID)
			return &services.SetupResult{
				Secret:    "BASE32SECRET",
				QRCodeURL: "data:image/png;base64,abc",
			}, nil
		},
	}

	handler := handlers.NewMFAHandler(mockMFA)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup", nil)
	req = handlers.WithAuthContext(req, "user-1", "user@example.com", "user")

	w := httptest.NewRecorder()
	handler.Setup(w, req)

	var result services.SetupResult
	handlers.AssertJSONResponse(t, w, 200, &result)
	assert.Equal(t, "BASE32SECRET", result.Secret)
	assert.NotEmpty(t, result.QRCodeURL)
}

func TestMFASetup_AlreadyEnabled(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		InitiateSetupFunc: func(ctx context.Context, userID string) (*services.SetupResult, error) {
			return nil, models.ErrMFAAlreadyEnabled
		},
	}

	handler := handlers.NewMFAHandler(mockMFA)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup", nil)
	req = handlers.WithAuthContext(req, "user-1", "user@example.com", "user")

	w := httptest.NewRecorder()
	handler.Setup(w, req)

	handlers.AssertErrorResponse(t, w, 409, "conflict")
}

func TestMFASetup_Unauthenticated(t *testing.T) {
	handler := handlers.NewMFAHandler(&handlers.MockMFAService{})
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup", nil)

	w := httptest.NewRecorder()
	handler.Setup(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestMFAVerifySetup_ReturnsBackupCodes(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		VerifySetupFunc: func(ctx context.Context, userID, code string) ([]string, error) {
			return []string{"AAAA2222", "BBBB3333"}, nil
		},
	}

	handler := handlers.NewMFAHandler(mockMFA)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup/verify", handlers.MFACodeRequest{
		Code: "123456",
	})
	req = handlers.WithAuthContext(req, "user-1", "user@example.com", "user")

	w := httptest.NewRecorder()
	handler.VerifySetup(w, req)

	var resp struct {
		Enabled     bool     `json:"enabled"`
		BackupCodes []string `json:"backup_codes"`
	}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Enabled)
	assert.Len(t, resp.BackupCodes, 2)
}

func TestMFAVerifySetup_NotInitiated(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		VerifySetupFunc: func(ctx context.Context, userID, code string) ([]string, error) {
			return nil, models.ErrMFANotEnabled
		},
	}

	handler := handlers.NewMFAHandler(mockMFA)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup/verify", handlers.MFACodeRequest{
		Code: "123456",
	})
	req = handlers.WithAuthContext(req, "user-1", "user@example.com", "user")

	w := httptest.NewRecorder()
	handler.VerifySetup(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestMFADisable_Success(t *testing.T) {
	var gotCode string
	mockMFA := &handlers.MockMFAService{
		DisableFunc: func(ctx context.Context, userID, code string) error {
			gotCode = code
			return nil
		},
	}

	handler := handlers.NewMFAHandler(mockMFA)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/disable", handlers.MFACodeRequest{
		Code: "654321",
	})
	req = handlers.WithAuthContext(req, "user-1", "user@example.com", "user")

	w := httptest.NewRecorder()
	handler.Disable(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "654321", gotCode)
}

func TestMFADisable_WrongCode(t *testing.T) {
	mockMFA := &handlers.MockMFAService{
		DisableFunc: func(ctx context.Context, userID, code string) error {
			return models.ErrInvalidCredentials
		},
	}

	handler := handlers.NewMFAHandler(mockMFA)
	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/disable", handlers.MFACodeRequest{
		Code: "000000",
	})
	req = handlers.WithAuthContext(req, "user-1", "user@example.com", "user")

	w := httptest.NewRecorder()
	handler.Disable(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}
