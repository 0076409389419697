package services

import (
	"context"
	"testing"
	"time"

	"github.com/HarlanReyes/bastion/internal/auth"
	"github.com/HarlanReyes/bastion/internal/models"
	pkgauth "github.com/HarlanReyes/bastion/pkg/auth"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testTOTPSecret = "JBSWY3DPEHPK3PXP"

type mfaServiceFixture struct {
	users         *MockUserStore
	refreshTokens *MockRefreshTokenStore
	tickets       *MockMFATicketStore
	backupCodes   *MockBackupCodeStore
	svc           *MFAService
}

func newMFAServiceFixture(users *MockUserStore) *mfaServiceFixture {
	f := &mfaServiceFixture{
		users:         users,
		refreshTokens: &MockRefreshTokenStore{},
		tickets:       &MockMFATicketStore{},
		backupCodes:   &MockBackupCodeStore{},
	}

	db := &stubTxRunner{}
	tm := auth.NewTokenManager(testJWTSecret, 15*time.Minute)
	tokens := NewTokenService(db, users, f.refreshTokens, tm, 7*24*time.Hour, testLogger())
	f.svc = NewMFAService(db, users, f.tickets, f.backupCodes, tokens, auth.NewTOTPManager("test"),
		5*time.Minute, 10, testLogger(), testAuditLogger())
	return f
}

func mfaUser() *models.User {
	user := activeUser()
	user.MFAEnabled = true
	user.MFASecret = testTOTPSecret
	return user
}

func currentTOTPCode(t *testing.T) string {
	t.Helper()
	code, err := totp.GenerateCode(testTOTPSecret, time.Now())
	require.NoError(t, err)
	return code
}

func TestMFAService_BeginChallenge_StoresHashedTicket(t *testing.T) {
	var storedHash string
	var storedExpiry time.Time

	f := newMFAServiceFixture(&MockUserStore{})
	f.tickets.InsertFunc = func(ctx context.Context, ticketHash, userID string, expiresAt time.Time) error {
		storedHash = ticketHash
		storedExpiry = expiresAt
		return nil
	}

	ticket, err := f.svc.BeginChallenge(context.Background(), mfaUser())

	require.NoError(t, err)
	assert.NotEmpty(t, ticket)
	assert.Equal(t, pkgauth.HashToken(ticket), storedHash)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), storedExpiry, time.Minute)
}

func TestMFAService_CompleteChallenge_Success(t *testing.T) {
	user := mfaUser()
	lastLoginUpdated := false

	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			assert.Equal(t, "user123", id)
			return user, nil
		},
		UpdateLastLoginFunc: func(ctx context.Context, id string) error {
			lastLoginUpdated = true
			return nil
		},
	}

	f := newMFAServiceFixture(users)
	f.tickets.ConsumeFunc = func(ctx context.Context, ticketHash string) (string, error) {
		return user.ID, nil
	}

	pair, err := f.svc.CompleteChallenge(context.Background(), "ticket", currentTOTPCode(t))

	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, lastLoginUpdated)
}

func TestMFAService_CompleteChallenge_UnknownTicket(t *testing.T) {
	// An expired or consumed ticket fails identically regardless of whether
	// the code would have been correct.
	f := newMFAServiceFixture(&MockUserStore{})
	f.tickets.ConsumeFunc = func(ctx context.Context, ticketHash string) (string, error) {
		return "", models.ErrNotFound
	}

	pair, err := f.svc.CompleteChallenge(context.Background(), "expired", currentTOTPCode(t))

	assert.Nil(t, pair)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestMFAService_CompleteChallenge_WrongCode(t *testing.T) {
	user := mfaUser()
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}

	f := newMFAServiceFixture(users)
	f.tickets.ConsumeFunc = func(ctx context.Context, ticketHash string) (string, error) {
		return user.ID, nil
	}

	pair, err := f.svc.CompleteChallenge(context.Background(), "ticket", "000000")

	assert.Nil(t, pair)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestMFAService_CompleteChallenge_InactiveUser(t *testing.T) {
	user := mfaUser()
	user.IsActive = false
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}

	f := newMFAServiceFixture(users)
	f.tickets.ConsumeFunc = func(ctx context.Context, ticketHash string) (string, error) {
		return user.ID, nil
	}

	pair, err := f.svc.CompleteChallenge(context.Background(), "ticket", currentTOTPCode(t))

	assert.Nil(t, pair)
	assert.ErrorIs(t, err, models.ErrAccountInactive)
}

func TestMFAService_VerifyCode_BackupCodeConsumed(t *testing.T) {
	user := mfaUser()
	codeHash, err := bcrypt.GenerateFromPassword([]byte("AAAA2222"), bcrypt.DefaultCost)
	require.NoError(t, err)

	deletedID := ""
	f := newMFAServiceFixture(&MockUserStore{})
	f.backupCodes.ListByUserFunc = func(ctx context.Context, userID string) ([]*models.BackupCode, error) {
		return []*models.BackupCode{
			{ID: "code-1", UserID: userID, CodeHash: string(codeHash)},
		}, nil
	}
	f.backupCodes.DeleteFunc = func(ctx context.Context, id string) error {
		deletedID = id
		return nil
	}

	err = f.svc.VerifyCode(context.Background(), user, "AAAA2222")

	require.NoError(t, err)
	assert.Equal(t, "code-1", deletedID, "matched backup code must be consumed")
}

func TestMFAService_VerifyCode_BackupCodeRaceLost(t *testing.T) {
	user := mfaUser()
	codeHash, err := bcrypt.GenerateFromPassword([]byte("AAAA2222"), bcrypt.DefaultCost)
	require.NoError(t, err)

	f := newMFAServiceFixture(&MockUserStore{})
	f.backupCodes.ListByUserFunc = func(ctx context.Context, userID string) ([]*models.BackupCode, error) {
		return []*models.BackupCode{
			{ID: "code-1", UserID: userID, CodeHash: string(codeHash)},
		}, nil
	}
	f.backupCodes.DeleteFunc = func(ctx context.Context, id string) error {
		// Another request consumed it first.
		return models.ErrNotFound
	}

	err = f.svc.VerifyCode(context.Background(), user, "AAAA2222")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestMFAService_VerifyCode_NoMatch(t *testing.T) {
	f := newMFAServiceFixture(&MockUserStore{})
	f.backupCodes.ListByUserFunc = func(ctx context.Context, userID string) ([]*models.BackupCode, error) {
		return nil, nil
	}

	err := f.svc.VerifyCode(context.Background(), mfaUser(), "ZZZZ9999")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestMFAService_InitiateSetup_Success(t *testing.T) {
	user := activeUser()

	var storedSecret string
	var storedEnabled bool
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		SetMFAFunc: func(ctx context.Context, id, secret string, enabled bool) error {
			storedSecret = secret
			storedEnabled = enabled
			return nil
		},
	}

	f := newMFAServiceFixture(users)
	result, err := f.svc.InitiateSetup(context.Background(), "user123")

	require.NoError(t, err)
	assert.NotEmpty(t, result.Secret)
	assert.Contains(t, result.QRCodeURL, "data:image/png;base64,")
	assert.Equal(t, result.Secret, storedSecret)
	assert.False(t, storedEnabled, "MFA stays off until the first code verifies")
}

func TestMFAService_InitiateSetup_AlreadyEnabled(t *testing.T) {
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return mfaUser(), nil
		},
	}

	f := newMFAServiceFixture(users)
	result, err := f.svc.InitiateSetup(context.Background(), "user123")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrMFAAlreadyEnabled)
}

func TestMFAService_VerifySetup_EnablesAndReturnsBackupCodes(t *testing.T) {
	user := activeUser()
	user.MFASecret = testTOTPSecret
	user.MFAEnabled = false

	var enabled bool
	var storedHashes []string
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		SetMFAFunc: func(ctx context.Context, id, secret string, en bool) error {
			assert.Equal(t, testTOTPSecret, secret)
			enabled = en
			return nil
		},
	}

	f := newMFAServiceFixture(users)
	f.backupCodes.ReplaceForUserFunc = func(ctx context.Context, userID string, codeHashes []string) error {
		storedHashes = codeHashes
		return nil
	}

	codes, err := f.svc.VerifySetup(context.Background(), "user123", currentTOTPCode(t))

	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Len(t, codes, 10)
	require.Len(t, storedHashes, 10)

	// Stored hashes must verify against the plaintext codes handed back.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHashes[0]), []byte(codes[0])))
}

func TestMFAService_VerifySetup_WrongCode(t *testing.T) {
	user := activeUser()
	user.MFASecret = testTOTPSecret

	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}

	f := newMFAServiceFixture(users)
	codes, err := f.svc.VerifySetup(context.Background(), "user123", "000000")

	assert.Nil(t, codes)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestMFAService_VerifySetup_NotInitiated(t *testing.T) {
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return activeUser(), nil
		},
	}

	f := newMFAServiceFixture(users)
	codes, err := f.svc.VerifySetup(context.Background(), "user123", "123456")

	assert.Nil(t, codes)
	assert.ErrorIs(t, err, models.ErrMFANotEnabled)
}

func TestMFAService_Disable_Success(t *testing.T) {
	user := mfaUser()

	var clearedSecret string
	var clearedEnabled bool
	codesDeleted := false
	tokensRevoked := false

	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		SetMFAFunc: func(ctx context.Context, id, secret string, enabled bool) error {
			clearedSecret = secret
			clearedEnabled = enabled
			return nil
		},
	}

	f := newMFAServiceFixture(users)
	f.backupCodes.DeleteAllForUserFunc = func(ctx context.Context, userID string) error {
		codesDeleted = true
		return nil
	}
	f.refreshTokens.DeleteAllForUserFunc = func(ctx context.Context, userID string) error {
		tokensRevoked = true
		return nil
	}

	err := f.svc.Disable(context.Background(), "user123", currentTOTPCode(t))

	require.NoError(t, err)
	assert.Empty(t, clearedSecret)
	assert.False(t, clearedEnabled)
	assert.True(t, codesDeleted)
	assert.True(t, tokensRevoked, "disabling MFA must revoke every session")
}

func TestMFAService_Disable_WrongCode(t *testing.T) {
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return mfaUser(), nil
		},
	}

	f := newMFAServiceFixture(users)
	f.backupCodes.ListByUserFunc = func(ctx context.Context, userID string) ([]*models.BackupCode, error) {
		return nil, nil
	}

	err := f.svc.Disable(context.Background(), "user123", "000000")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestMFAService_Disable_NotEnabled(t *testing.T) {
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return activeUser(), nil
		},
	}

	f := newMFAServiceFixture(users)
	err := f.svc.Disable(context.Background(), "user123", "123456")
	assert.ErrorIs(t, err, models.ErrMFANotEnabled)
}
