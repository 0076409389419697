package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HarlanReyes/bastion/internal/auth"
	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/HarlanReyes/bastion/internal/services"
	pkghttp "github.com/HarlanReyes/bastion/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, email string, roles ...string) *http.Request {
	claims := &models.AccessTokenClaims{
		UserID: userID,
		Email:  email,
		Roles:  roles,
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes the
// data field of the envelope into target
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		err := json.Unmarshal(w.Body.Bytes(), &envelope)
		assert.NoError(t, err, "Failed to decode response envelope")
		err = json.Unmarshal(envelope.Data, target)
		assert.NoError(t, err, "Failed to decode response data")
	}
}

// AssertErrorResponse checks that response is a valid error envelope
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var envelope pkghttp.Envelope
	err := json.Unmarshal(w.Body.Bytes(), &envelope)
	assert.NoError(t, err, "Failed to decode error response")
	if assert.NotNil(t, envelope.Error, "Error payload should be set") {
		assert.Equal(t, expectedCode, envelope.Error.Code, "Error code mismatch")
		assert.NotEmpty(t, envelope.Error.Message, "Error message should not be empty")
	}
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, email, password, mfaCode, ipAddress, userAgent string) (*services.LoginResult, error)
	RegisterFunc       func(ctx context.Context, email, password, name string) (*services.UserResponse, error)
	LogoutFunc         func(ctx context.Context, userID, refreshToken string) error
	ChangePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword string) error
}

func (m *MockAuthService) Login(ctx context.Context, email, password, mfaCode, ipAddress, userAgent string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password, mfaCode, ipAddress, userAgent)
}

func (m *MockAuthService) Register(ctx context.Context, email, password, name string) (*services.UserResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, email, password, name)
}

func (m *MockAuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, userID, refreshToken)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword)
}

// MockTokenService implements TokenServiceInterface for testing
type MockTokenService struct {
	RefreshFunc func(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}

func (m *MockTokenService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrInvalidToken
	}
	return m.RefreshFunc(ctx, refreshToken)
}

// MockVerificationService implements VerificationServiceInterface for testing
type MockVerificationService struct {
	VerifyFunc func(ctx context.Context, token string) (*models.User, error)
	ResendFunc func(ctx context.Context, email string) error
}

func (m *MockVerificationService) Verify(ctx context.Context, token string) (*models.User, error) {
	if m.VerifyFunc == nil {
		return nil, models.ErrInvalidToken
	}
	return m.VerifyFunc(ctx, token)
}

func (m *MockVerificationService) Resend(ctx context.Context, email string) error {
	if m.ResendFunc == nil {
		return nil
	}
	return m.ResendFunc(ctx, email)
}

// MockResetService implements ResetServiceInterface for testing
type MockResetService struct {
	RequestResetFunc func(ctx context.Context, email string) error
	ResetFunc        func(ctx context.Context, token, newPassword string) error
}

func (m *MockResetService) RequestReset(ctx context.Context, email string) error {
	if m.RequestResetFunc == nil {
		return nil
	}
	return m.RequestResetFunc(ctx, email)
}

func (m *MockResetService) Reset(ctx context.Context, token, newPassword string) error {
	if m.ResetFunc == nil {
		return models.ErrInvalidToken
	}
	return m.ResetFunc(ctx, token, newPassword)
}

// MockMFAService implements MFAServiceInterface for testing
type MockMFAService struct {
	CompleteChallengeFunc func(ctx context.Context, ticket, code string) (*models.TokenPair, error)
	InitiateSetupFunc     func(ctx context.Context, userID string) (*services.SetupResult, error)
	VerifySetupFunc       func(ctx context.Context, userID, code string) ([]string, error)
	DisableFunc           func(ctx context.Context, userID, code string) error
}

func (m *MockMFAService) CompleteChallenge(ctx context.Context, ticket, code string) (*models.TokenPair, error) {
	if m.CompleteChallengeFunc == nil {
		return nil, models.ErrInvalidToken
	}
	return m.CompleteChallengeFunc(ctx, ticket, code)
}

func (m *MockMFAService) InitiateSetup(ctx context.Context, userID string) (*services.SetupResult, error) {
	if m.InitiateSetupFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.InitiateSetupFunc(ctx, userID)
}

func (m *MockMFAService) VerifySetup(ctx context.Context, userID, code string) ([]string, error) {
	if m.VerifySetupFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.VerifySetupFunc(ctx, userID, code)
}

func (m *MockMFAService) Disable(ctx context.Context, userID, code string) error {
	if m.DisableFunc == nil {
		return models.ErrInvalidCredentials
	}
	return m.DisableFunc(ctx, userID, code)
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetFunc           func(ctx context.Context, id string) (*services.UserResponse, error)
	UpdateProfileFunc func(ctx context.Context, id, name string) (*services.UserResponse, error)
}

func (m *MockUserService) Get(ctx context.Context, id string) (*services.UserResponse, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, id)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, id, name string) (*services.UserResponse, error) {
	if m.UpdateProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateProfileFunc(ctx, id, name)
}
