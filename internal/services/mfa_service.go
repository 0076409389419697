package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/HarlanReyes/bastion/internal/auth"
	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/HarlanReyes/bastion/internal/repositories"
	pkgauth "github.com/HarlanReyes/bastion/pkg/auth"
	pkglogger "github.com/HarlanReyes/bastion/pkg/logger"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// MFAService handles the MFA challenge step and enrollment lifecycle.
type MFAService struct {
	db              TxRunner
	users           repositories.UserStore
	tickets         repositories.MFATicketStore
	backupCodes     repositories.BackupCodeStore
	tokens          *TokenService
	totp            *auth.TOTPManager
	ticketExpiry    time.Duration
	backupCodeCount int
	logger          *slog.Logger
	auditLogger     *pkglogger.AuditLogger
}

func NewMFAService(
	db TxRunner,
	users repositories.UserStore,
	tickets repositories.MFATicketStore,
	backupCodes repositories.BackupCodeStore,
	tokens *TokenService,
	totp *auth.TOTPManager,
	ticketExpiry time.Duration,
	backupCodeCount int,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *MFAService {
	return &MFAService{
		db:              db,
		users:           users,
		tickets:         tickets,
		backupCodes:     backupCodes,
		tokens:          tokens,
		totp:            totp,
		ticketExpiry:    ticketExpiry,
		backupCodeCount: backupCodeCount,
		logger:          logger,
		auditLogger:     auditLogger,
	}
}

// BeginChallenge issues a short-lived single-use ticket after the password
// check succeeded for an MFA-enabled account. The caller returns this to the
// client instead of final tokens.
func (s *MFAService) BeginChallenge(ctx context.Context, user *models.User) (string, error) {
	ticket, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate mfa ticket", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.ticketExpiry)
	if err := s.tickets.Insert(ctx, pkgauth.HashToken(ticket), user.ID, expiresAt); err != nil {
		s.logger.Error("failed to store mfa ticket", slog.String("user_id", user.ID), slog.Any("error", err))
		return "", models.ErrUnavailable
	}

	s.logger.Info("mfa challenge issued", slog.String("user_id", user.ID))
	return ticket, nil
}

// CompleteChallenge consumes a ticket and validates the code, issuing the
// final token pair on success. The ticket is consumed inside the transaction;
// a wrong code rolls the consumption back so the client may retry until the
// ticket expires, while an expired or unknown ticket fails ErrInvalidToken
// regardless of code correctness.
func (s *MFAService) CompleteChallenge(ctx context.Context, ticket, code string) (*models.TokenPair, error) {
	ticketHash := pkgauth.HashToken(ticket)

	var pair *models.TokenPair
	err := s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		ticketStore := s.tickets.WithTx(tx)
		userStore := s.users.WithTx(tx)

		userID, err := ticketStore.Consume(ctx, ticketHash)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.ErrInvalidToken
			}
			s.logger.Error("failed to consume mfa ticket", slog.Any("error", err))
			return models.ErrUnavailable
		}

		user, err := userStore.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.ErrInvalidToken
			}
			s.logger.Error("failed to load user for mfa challenge", slog.String("user_id", userID), slog.Any("error", err))
			return models.ErrUnavailable
		}

		if !user.IsActive {
			return models.ErrAccountInactive
		}

		if err := s.VerifyCode(ctx, user, code); err != nil {
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "mfa_failed",
				UserID:        user.ID,
				FailureReason: "invalid_code",
				Success:       false,
			})
			return err
		}

		if err := userStore.UpdateLastLogin(ctx, user.ID); err != nil {
			s.logger.Error("failed to update last login", slog.String("user_id", user.ID), slog.Any("error", err))
			return models.ErrUnavailable
		}

		pair, err = s.tokens.IssueTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "mfa_success",
		Success:   true,
	})

	return pair, nil
}

// VerifyCode accepts either a current TOTP code (±1 step skew) or an unused
// backup code. A matched backup code is consumed; losing a concurrent
// consumption race counts as a mismatch.
func (s *MFAService) VerifyCode(ctx context.Context, user *models.User, code string) error {
	if !user.MFAEnabled || user.MFASecret == "" {
		return models.ErrInvalidCredentials
	}

	if s.totp.ValidateCode(user.MFASecret, code) {
		return nil
	}

	codes, err := s.backupCodes.ListByUser(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to list backup codes", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrUnavailable
	}

	for _, backup := range codes {
		if bcrypt.CompareHashAndPassword([]byte(backup.CodeHash), []byte(code)) == nil {
			if err := s.backupCodes.Delete(ctx, backup.ID); err != nil {
				if errors.Is(err, models.ErrNotFound) {
					return models.ErrInvalidCredentials
				}
				s.logger.Error("failed to consume backup code", slog.String("user_id", user.ID), slog.Any("error", err))
				return models.ErrUnavailable
			}
			s.logger.Info("backup code consumed", slog.String("user_id", user.ID))
			return nil
		}
	}

	return models.ErrInvalidCredentials
}

// SetupResult is returned when enrollment starts.
type SetupResult struct {
	Secret    string `json:"secret"`
	QRCodeURL string `json:"qr_code_url"`
}

// InitiateSetup generates a TOTP secret for an account without MFA and
// returns it with a provisioning QR code. MFA stays disabled until the first
// code is verified.
func (s *MFAService) InitiateSetup(ctx context.Context, userID string) (*SetupResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrUnavailable
	}

	if user.MFAEnabled {
		return nil, models.ErrMFAAlreadyEnabled
	}

	secret, qrDataURL, err := s.totp.GenerateSecretWithQR(user.Email)
	if err != nil {
		s.logger.Error("failed to generate totp secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.users.SetMFA(ctx, user.ID, secret, false); err != nil {
		s.logger.Error("failed to store totp secret", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrUnavailable
	}

	s.auditLogger.LogAccountAction("mfa_setup_initiated", user.ID, "", nil)

	return &SetupResult{Secret: secret, QRCodeURL: qrDataURL}, nil
}

// VerifySetup confirms the first TOTP code, enables MFA and returns the
// backup codes. Plaintext codes are shown exactly once.
func (s *MFAService) VerifySetup(ctx context.Context, userID, code string) ([]string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrUnavailable
	}

	if user.MFAEnabled {
		return nil, models.ErrMFAAlreadyEnabled
	}
	if user.MFASecret == "" {
		return nil, models.ErrMFANotEnabled
	}

	if !s.totp.ValidateCode(user.MFASecret, code) {
		return nil, models.ErrInvalidCredentials
	}

	backupCodes, err := s.totp.GenerateBackupCodes(s.backupCodeCount)
	if err != nil {
		s.logger.Error("failed to generate backup codes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashes := make([]string, len(backupCodes))
	for i, backup := range backupCodes {
		hash, err := bcrypt.GenerateFromPassword([]byte(backup), bcrypt.DefaultCost)
		if err != nil {
			s.logger.Error("failed to hash backup code", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		hashes[i] = string(hash)
	}

	err = s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.users.WithTx(tx).SetMFA(ctx, user.ID, user.MFASecret, true); err != nil {
			return models.ErrUnavailable
		}
		if err := s.backupCodes.WithTx(tx).ReplaceForUser(ctx, user.ID, hashes); err != nil {
			return models.ErrUnavailable
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("mfa enabled", slog.String("user_id", user.ID))
	s.auditLogger.LogAccountAction("mfa_enabled", user.ID, "", nil)

	return backupCodes, nil
}

// Disable turns MFA off after validating a current code, clears the secret
// and backup codes, and revokes all refresh tokens so every session
// re-authenticates.
func (s *MFAService) Disable(ctx context.Context, userID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return models.ErrUnavailable
	}

	if !user.MFAEnabled {
		return models.ErrMFANotEnabled
	}

	if err := s.VerifyCode(ctx, user, code); err != nil {
		return err
	}

	err = s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.users.WithTx(tx).SetMFA(ctx, user.ID, "", false); err != nil {
			return models.ErrUnavailable
		}
		if err := s.backupCodes.WithTx(tx).DeleteAllForUser(ctx, user.ID); err != nil {
			return models.ErrUnavailable
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
		return err
	}

	s.logger.Info("mfa disabled", slog.String("user_id", user.ID))
	s.auditLogger.LogAccountAction("mfa_disabled", user.ID, "", nil)

	return nil
}
