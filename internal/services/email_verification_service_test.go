package services

import (
	"context"
	"testing"

	"github.com/HarlanReyes/bastion/internal/models"
	pkgauth "github.com/HarlanReyes/bastion/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerificationServiceFixture(users *MockUserStore, notifier *MockVerificationNotifier) *EmailVerificationService {
	if notifier == nil {
		notifier = &MockVerificationNotifier{}
	}
	return NewEmailVerificationService(users, notifier, testLogger(), testAuditLogger())
}

func TestEmailVerificationService_SendVerification(t *testing.T) {
	var storedHash, sentToken string
	users := &MockUserStore{
		SetVerificationTokenFunc: func(ctx context.Context, id, tokenHash string) error {
			assert.Equal(t, "user123", id)
			storedHash = tokenHash
			return nil
		},
	}
	notifier := &MockVerificationNotifier{
		SendVerificationEmailFunc: func(ctx context.Context, email, token string) error {
			sentToken = token
			return nil
		},
	}

	svc := newVerificationServiceFixture(users, notifier)
	err := svc.SendVerification(context.Background(), "user123", "user@example.com")

	require.NoError(t, err)
	assert.NotEmpty(t, sentToken)
	assert.Equal(t, pkgauth.HashToken(sentToken), storedHash)
}

func TestEmailVerificationService_Verify_Success(t *testing.T) {
	user := activeUser()
	user.EmailVerified = true

	var consumedHash string
	users := &MockUserStore{
		ConsumeVerificationTokenFunc: func(ctx context.Context, tokenHash string) (*models.User, error) {
			consumedHash = tokenHash
			return user, nil
		},
	}

	svc := newVerificationServiceFixture(users, nil)
	verified, err := svc.Verify(context.Background(), "plaintext-token")

	require.NoError(t, err)
	assert.Equal(t, pkgauth.HashToken("plaintext-token"), consumedHash)
	assert.True(t, verified.EmailVerified)
}

func TestEmailVerificationService_Verify_ConsumedToken(t *testing.T) {
	users := &MockUserStore{
		ConsumeVerificationTokenFunc: func(ctx context.Context, tokenHash string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
	}

	svc := newVerificationServiceFixture(users, nil)
	verified, err := svc.Verify(context.Background(), "already-used")

	assert.Nil(t, verified)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestEmailVerificationService_Verify_EmptyToken(t *testing.T) {
	svc := newVerificationServiceFixture(&MockUserStore{}, nil)
	verified, err := svc.Verify(context.Background(), "")

	assert.Nil(t, verified)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestEmailVerificationService_Resend_UnknownEmailSilent(t *testing.T) {
	emailSent := false
	users := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
	}
	notifier := &MockVerificationNotifier{
		SendVerificationEmailFunc: func(ctx context.Context, email, token string) error {
			emailSent = true
			return nil
		},
	}

	svc := newVerificationServiceFixture(users, notifier)
	err := svc.Resend(context.Background(), "nobody@example.com")

	assert.NoError(t, err)
	assert.False(t, emailSent)
}

func TestEmailVerificationService_Resend_AlreadyVerifiedSilent(t *testing.T) {
	user := activeUser()
	user.EmailVerified = true

	emailSent := false
	users := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	notifier := &MockVerificationNotifier{
		SendVerificationEmailFunc: func(ctx context.Context, email, token string) error {
			emailSent = true
			return nil
		},
	}

	svc := newVerificationServiceFixture(users, notifier)
	err := svc.Resend(context.Background(), "user@example.com")

	assert.NoError(t, err)
	assert.False(t, emailSent)
}

func TestEmailVerificationService_Resend_Unverified(t *testing.T) {
	user := activeUser()
	user.EmailVerified = false

	emailSent := false
	users := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	notifier := &MockVerificationNotifier{
		SendVerificationEmailFunc: func(ctx context.Context, email, token string) error {
			emailSent = true
			return nil
		},
	}

	svc := newVerificationServiceFixture(users, notifier)
	err := svc.Resend(context.Background(), "user@example.com")

	assert.NoError(t, err)
	assert.True(t, emailSent)
}
