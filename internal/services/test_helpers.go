package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/HarlanReyes/bastion/internal/repositories"
	pkglogger "github.com/HarlanReyes/bastion/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// testLogger returns a logger that discards everything.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

// stubTxRunner satisfies TxRunner without a database: fn runs with a nil
// transaction, which the store mocks ignore because WithTx returns the mock
// itself. An Err short-circuits as a rolled-back transaction.
type stubTxRunner struct {
	Err error
}

func (s *stubTxRunner) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	if s.Err != nil {
		return s.Err
	}
	return fn(nil)
}

// MockUserStore implements repositories.UserStore with function fields.
type MockUserStore struct {
	GetByIDFunc                   func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc                func(ctx context.Context, email string) (*models.User, error)
	CreateFunc                    func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc                    func(ctx context.Context, id string, user *models.User) (*models.User, error)
	UpdateLastLoginFunc           func(ctx context.Context, id string) error
	UpdatePasswordHashFunc        func(ctx context.Context, id, passwordHash string) error
	SetMFAFunc                    func(ctx context.Context, id, secret string, enabled bool) error
	SetVerificationTokenFunc      func(ctx context.Context, id, tokenHash string) error
	ConsumeVerificationTokenFunc  func(ctx context.Context, tokenHash string) (*models.User, error)
	SetPasswordResetTokenFunc     func(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ConsumePasswordResetTokenFunc func(ctx context.Context, tokenHash, newPasswordHash string) (*models.User, error)
}

func (m *MockUserStore) WithTx(tx pgx.Tx) repositories.UserStore { return m }

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetByEmailFunc(ctx, email)
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc == nil {
		return user, nil
	}
	return m.CreateFunc(ctx, user)
}

func (m *MockUserStore) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateFunc == nil {
		return user, nil
	}
	return m.UpdateFunc(ctx, id, user)
}

func (m *MockUserStore) UpdateLastLogin(ctx context.Context, id string) error {
	if m.UpdateLastLoginFunc == nil {
		return nil
	}
	return m.UpdateLastLoginFunc(ctx, id)
}

func (m *MockUserStore) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordHashFunc == nil {
		return nil
	}
	return m.UpdatePasswordHashFunc(ctx, id, passwordHash)
}

func (m *MockUserStore) SetMFA(ctx context.Context, id, secret string, enabled bool) error {
	if m.SetMFAFunc == nil {
		return nil
	}
	return m.SetMFAFunc(ctx, id, secret, enabled)
}

func (m *MockUserStore) SetVerificationToken(ctx context.Context, id, tokenHash string) error {
	if m.SetVerificationTokenFunc == nil {
		return nil
	}
	return m.SetVerificationTokenFunc(ctx, id, tokenHash)
}

func (m *MockUserStore) ConsumeVerificationToken(ctx context.Context, tokenHash string) (*models.User, error) {
	if m.ConsumeVerificationTokenFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ConsumeVerificationTokenFunc(ctx, tokenHash)
}

func (m *MockUserStore) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	if m.SetPasswordResetTokenFunc == nil {
		return nil
	}
	return m.SetPasswordResetTokenFunc(ctx, id, tokenHash, expiresAt)
}

func (m *MockUserStore) ConsumePasswordResetToken(ctx context.Context, tokenHash, newPasswordHash string) (*models.User, error) {
	if m.ConsumePasswordResetTokenFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ConsumePasswordResetTokenFunc(ctx, tokenHash, newPasswordHash)
}

// MockRefreshTokenStore implements repositories.RefreshTokenStore.
type MockRefreshTokenStore struct {
	InsertFunc           func(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	ConsumeFunc          func(ctx context.Context, tokenHash string) (string, error)
	DeleteFunc           func(ctx context.Context, tokenHash string) error
	DeleteAllForUserFunc func(ctx context.Context, userID string) error
	CleanupExpiredFunc   func(ctx context.Context) (int64, error)
}

func (m *MockRefreshTokenStore) WithTx(tx pgx.Tx) repositories.RefreshTokenStore { return m }

func (m *MockRefreshTokenStore) Insert(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	if m.InsertFunc == nil {
		return nil
	}
	return m.InsertFunc(ctx, tokenHash, userID, expiresAt)
}

func (m *MockRefreshTokenStore) Consume(ctx context.Context, tokenHash string) (string, error) {
	if m.ConsumeFunc == nil {
		return "", models.ErrNotFound
	}
	return m.ConsumeFunc(ctx, tokenHash)
}

func (m *MockRefreshTokenStore) Delete(ctx context.Context, tokenHash string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, tokenHash)
}

func (m *MockRefreshTokenStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if m.DeleteAllForUserFunc == nil {
		return nil
	}
	return m.DeleteAllForUserFunc(ctx, userID)
}

func (m *MockRefreshTokenStore) CleanupExpired(ctx context.Context) (int64, error) {
	if m.CleanupExpiredFunc == nil {
		return 0, nil
	}
	return m.CleanupExpiredFunc(ctx)
}

// MockMFATicketStore implements repositories.MFATicketStore.
type MockMFATicketStore struct {
	InsertFunc         func(ctx context.Context, ticketHash, userID string, expiresAt time.Time) error
	ConsumeFunc        func(ctx context.Context, ticketHash string) (string, error)
	CleanupExpiredFunc func(ctx context.Context) (int64, error)
}

func (m *MockMFATicketStore) WithTx(tx pgx.Tx) repositories.MFATicketStore { return m }

func (m *MockMFATicketStore) Insert(ctx context.Context, ticketHash, userID string, expiresAt time.Time) error {
	if m.InsertFunc == nil {
		return nil
	}
	return m.InsertFunc(ctx, ticketHash, userID, expiresAt)
}

func (m *MockMFATicketStore) Consume(ctx context.Context, ticketHash string) (string, error) {
	if m.ConsumeFunc == nil {
		return "", models.ErrNotFound
	}
	return m.ConsumeFunc(ctx, ticketHash)
}

func (m *MockMFATicketStore) CleanupExpired(ctx context.Context) (int64, error) {
	if m.CleanupExpiredFunc == nil {
		return 0, nil
	}
	return m.CleanupExpiredFunc(ctx)
}

// MockBackupCodeStore implements repositories.BackupCodeStore.
type MockBackupCodeStore struct {
	ReplaceForUserFunc   func(ctx context.Context, userID string, codeHashes []string) error
	ListByUserFunc       func(ctx context.Context, userID string) ([]*models.BackupCode, error)
	DeleteFunc           func(ctx context.Context, id string) error
	DeleteAllForUserFunc func(ctx context.Context, userID string) error
}

func (m *MockBackupCodeStore) WithTx(tx pgx.Tx) repositories.BackupCodeStore { return m }

func (m *MockBackupCodeStore) ReplaceForUser(ctx context.Context, userID string, codeHashes []string) error {
	if m.ReplaceForUserFunc == nil {
		return nil
	}
	return m.ReplaceForUserFunc(ctx, userID, codeHashes)
}

func (m *MockBackupCodeStore) ListByUser(ctx context.Context, userID string) ([]*models.BackupCode, error) {
	if m.ListByUserFunc == nil {
		return nil, nil
	}
	return m.ListByUserFunc(ctx, userID)
}

func (m *MockBackupCodeStore) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}

func (m *MockBackupCodeStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if m.DeleteAllForUserFunc == nil {
		return nil
	}
	return m.DeleteAllForUserFunc(ctx, userID)
}

// MockVerificationSender implements VerificationSender.
type MockVerificationSender struct {
	SendVerificationFunc func(ctx context.Context, userID, email string) error
}

func (m *MockVerificationSender) SendVerification(ctx context.Context, userID, email string) error {
	if m.SendVerificationFunc == nil {
		return nil
	}
	return m.SendVerificationFunc(ctx, userID, email)
}

// MockVerificationNotifier implements VerificationNotifier.
type MockVerificationNotifier struct {
	SendVerificationEmailFunc func(ctx context.Context, email, token string) error
}

func (m *MockVerificationNotifier) SendVerificationEmail(ctx context.Context, email, token string) error {
	if m.SendVerificationEmailFunc == nil {
		return nil
	}
	return m.SendVerificationEmailFunc(ctx, email, token)
}

// MockResetNotifier implements ResetNotifier.
type MockResetNotifier struct {
	SendPasswordResetEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockResetNotifier) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetEmailFunc == nil {
		return nil
	}
	return m.SendPasswordResetEmailFunc(ctx, email, token, expiresAt)
}
