package handlers_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/HarlanReyes/bastion/internal/handlers"
	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/HarlanReyes/bastion/internal/services"
	"github.com/stretchr/testify/assert"
)

func newAuthHandler(authSvc *handlers.MockAuthService, tokens *handlers.MockTokenService, verification *handlers.MockVerificationService, reset *handlers.MockResetService) *handlers.AuthHandler {
	if authSvc == nil {
		authSvc = &handlers.MockAuthService{}
	}
	if tokens == nil {
		tokens = &handlers.MockTokenService{}
	}
	if verification == nil {
		verification = &handlers.MockVerificationService{}
	}
	if reset == nil {
		reset = &handlers.MockResetService{}
	}
	return handlers.NewAuthHandler(authSvc, tokens, verification, reset, nil)
}

func TestLogin_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, mfaCode, ipAddress, userAgent string) (*services.LoginResult, error) {
			return &services.LoginResult{
				Tokens: &models.TokenPair{
					AccessToken:  "access_token_123",
					RefreshToken: "refresh_token_123",
				},
			}, nil
		},
	}

	handler := newAuthHandler(mockAuth, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp services.LoginResult
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.False(t, resp.MFARequired)
	assert.Equal(t, "access_token_123", resp.Tokens.AccessToken)
	assert.Equal(t, "refresh_token_123", resp.Tokens.RefreshToken)
}

func TestLogin_MFAChallenge(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, mfaCode, ipAddress, userAgent string) (*services.LoginResult, error) {
			return &services.LoginResult{
				MFARequired: true,
				MFATicket:   "ticket_abc",
			}, nil
		},
	}

	handler := newAuthHandler(mockAuth, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp services.LoginResult
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.MFARequired)
	assert.Equal(t, "ticket_abc", resp.MFATicket)
	assert.Nil(t, resp.Tokens)
}

func TestLogin_AuthenticationFailed(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, mfaCode, ipAddress, userAgent string) (*services.LoginResult, error) {
			return nil, models.ErrInvalidCredentials
		},
	}

	handler := newAuthHandler(mockAuth, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "wrongpassword",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_AccountStateErrors_AntiEnumeration(t *testing.T) {
	// Anti-enumeration: credential and account-state failures produce the
	// identical 401 body.
	for _, loginErr := range []error{models.ErrInvalidCredentials, models.ErrAccountInactive} {
		t.Run(loginErr.Error(), func(t *testing.T) {
			mockAuth := &handlers.MockAuthService{
				LoginFunc: func(ctx context.Context, email, password, mfaCode, ipAddress, userAgent string) (*services.LoginResult, error) {
					return nil, loginErr
				},
			}

			handler := newAuthHandler(mockAuth, nil, nil, nil)
			req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
				Email:    "user@example.com",
				Password: "password123",
			})

			w := httptest.NewRecorder()
			handler.Login(w, req)

			handlers.AssertErrorResponse(t, w, 401, "unauthorized")

			var envelope struct {
				Error struct {
					Message string `json:"message"`
				} `json:"error"`
			}
			json.Unmarshal(w.Body.Bytes(), &envelope)
			assert.Equal(t, "Authentication failed", envelope.Error.Message)
		})
	}
}

func TestLogin_InvalidBody(t *testing.T) {
	handler := newAuthHandler(nil, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email: "not-an-email",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRegister_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password, name string) (*services.UserResponse, error) {
			return &services.UserResponse{ID: "user-1", Email: email}, nil
		},
	}

	handler := newAuthHandler(mockAuth, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Email:    "newuser@example.com",
		Password: "securePassword123!",
		Name:     "New User",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 202, &resp)
	assert.Contains(t, resp["message"], "Registration received")
}

func TestRegister_DuplicateEmail_AntiEnumeration(t *testing.T) {
	// Duplicate email returns the same 202 body as success.
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password, name string) (*services.UserResponse, error) {
			return nil, models.ErrConflict
		},
	}

	handler := newAuthHandler(mockAuth, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Email:    "existing@example.com",
		Password: "securePassword123!",
		Name:     "Existing User",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 202, &resp)
	assert.Contains(t, resp["message"], "Registration received")
}

func TestRefreshToken_Success(t *testing.T) {
	mockTokens := &handlers.MockTokenService{
		RefreshFunc: func(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
			assert.Equal(t, "old_refresh", refreshToken)
			return &models.TokenPair{
				AccessToken:  "new_access",
				RefreshToken: "new_refresh",
			}, nil
		},
	}

	handler := newAuthHandler(nil, mockTokens, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: "old_refresh",
	})

	w := httptest.NewRecorder()
	handler.RefreshToken(w, req)

	var pair models.TokenPair
	handlers.AssertJSONResponse(t, w, 200, &pair)
	assert.Equal(t, "new_access", pair.AccessToken)
	assert.Equal(t, "new_refresh", pair.RefreshToken)
}

func TestRefreshToken_Invalid(t *testing.T) {
	mockTokens := &handlers.MockTokenService{
		RefreshFunc: func(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
			return nil, models.ErrInvalidToken
		},
	}

	handler := newAuthHandler(nil, mockTokens, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshTokenRequest{
		RefreshToken: "consumed_or_unknown",
	})

	w := httptest.NewRecorder()
	handler.RefreshToken(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogout_Success(t *testing.T) {
	var gotUserID, gotToken string
	mockAuth := &handlers.MockAuthService{
		LogoutFunc: func(ctx context.Context, userID, refreshToken string) error {
			gotUserID = userID
			gotToken = refreshToken
			return nil
		},
	}

	handler := newAuthHandler(mockAuth, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/logout", handlers.LogoutRequest{
		RefreshToken: "refresh_abc",
	})
	req = handlers.WithAuthContext(req, "user-1", "user@example.com", "user")

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "user-1", gotUserID)
	assert.Equal(t, "refresh_abc", gotToken)
}

func TestLogout_Unauthenticated(t *testing.T) {
	handler := newAuthHandler(nil, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/logout", handlers.LogoutRequest{
		RefreshToken: "refresh_abc",
	})

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestVerifyEmail_Success(t *testing.T) {
	mockVerification := &handlers.MockVerificationService{
		VerifyFunc: func(ctx context.Context, token string) (*models.User, error) {
			return &models.User{ID: "user-1", EmailVerified: true}, nil
		},
	}

	handler := newAuthHandler(nil, nil, mockVerification, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/verify-email", handlers.VerifyEmailRequest{
		Token: "verification_token",
	})

	w := httptest.NewRecorder()
	handler.VerifyEmail(w, req)

	assert.Equal(t, 200, w.Code)
}

func TestVerifyEmail_InvalidToken(t *testing.T) {
	mockVerification := &handlers.MockVerificationService{
		VerifyFunc: func(ctx context.Context, token string) (*models.User, error) {
			return nil, models.ErrInvalidToken
		},
	}

	handler := newAuthHandler(nil, nil, mockVerification, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/verify-email", handlers.VerifyEmailRequest{
		Token: "already_consumed",
	})

	w := httptest.NewRecorder()
	handler.VerifyEmail(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestRequestPasswordReset_AlwaysAccepted(t *testing.T) {
	// Unknown email and service failure behave identically.
	mockReset := &handlers.MockResetService{
		RequestResetFunc: func(ctx context.Context, email string) error {
			return nil
		},
	}

	handler := newAuthHandler(nil, nil, nil, mockReset)
	req := handlers.NewTestRequest(t, "POST", "/auth/password/reset-request", handlers.ResetRequestRequest{
		Email: "maybe-exists@example.com",
	})

	w := httptest.NewRecorder()
	handler.RequestPasswordReset(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 202, &resp)
	assert.Contains(t, resp["message"], "If the email is registered")
}

func TestResetPassword_Success(t *testing.T) {
	mockReset := &handlers.MockResetService{
		ResetFunc: func(ctx context.Context, token, newPassword string) error {
			assert.Equal(t, "reset_token", token)
			return nil
		},
	}

	handler := newAuthHandler(nil, nil, nil, mockReset)
	req := handlers.NewTestRequest(t, "POST", "/auth/password/reset", handlers.ResetPasswordRequest{
		Token:       "reset_token",
		NewPassword: "NewSecurePass123!",
	})

	w := httptest.NewRecorder()
	handler.ResetPassword(w, req)

	assert.Equal(t, 200, w.Code)
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	mockReset := &handlers.MockResetService{
		ResetFunc: func(ctx context.Context, token, newPassword string) error {
			return models.ErrInvalidToken
		},
	}

	handler := newAuthHandler(nil, nil, nil, mockReset)
	req := handlers.NewTestRequest(t, "POST", "/auth/password/reset", handlers.ResetPasswordRequest{
		Token:       "expired_token",
		NewPassword: "NewSecurePass123!",
	})

	w := httptest.NewRecorder()
	handler.ResetPassword(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ChangePasswordFunc: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			return models.ErrInvalidCredentials
		},
	}

	handler := newAuthHandler(mockAuth, nil, nil, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password/change", handlers.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "NewSecurePass123!",
	})
	req = handlers.WithAuthContext(req, "user-1", "user@example.com", "user")

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}
