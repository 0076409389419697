package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/HarlanReyes/bastion/internal/repositories"
	pkgauth "github.com/HarlanReyes/bastion/pkg/auth"
	pkglogger "github.com/HarlanReyes/bastion/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// ResetNotifier dispatches password reset emails. Delivery is
// fire-and-forget; the service never blocks a response on confirmation.
type ResetNotifier interface {
	SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error
}

// PasswordResetService implements the out-of-band reset flow: request a
// token, consume it once, and force re-login everywhere on success.
type PasswordResetService struct {
	db          TxRunner
	users       repositories.UserStore
	tokens      *TokenService
	notifier    ResetNotifier
	tokenExpiry time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewPasswordResetService(
	db TxRunner,
	users repositories.UserStore,
	tokens *TokenService,
	notifier ResetNotifier,
	tokenExpiry time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *PasswordResetService {
	return &PasswordResetService{
		db:          db,
		users:       users,
		tokens:      tokens,
		notifier:    notifier,
		tokenExpiry: tokenExpiry,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// RequestReset stores a fresh reset token (superseding any outstanding one)
// and dispatches it. Always succeeds from the caller's perspective: a missing
// or inactive account produces the identical response, so the endpoint leaks
// nothing about which emails are registered.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to look up user for password reset",
				slog.String("email", pkglogger.SanitizedEmail(email)), slog.Any("error", err))
		}
		return nil
	}

	if !user.IsActive {
		return nil
	}

	token, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return nil
	}

	expiresAt := time.Now().Add(s.tokenExpiry)
	if err := s.users.SetPasswordResetToken(ctx, user.ID, pkgauth.HashToken(token), expiresAt); err != nil {
		s.logger.Error("failed to store reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil
	}

	if err := s.notifier.SendPasswordResetEmail(ctx, user.Email, token, expiresAt); err != nil {
		s.logger.Error("failed to send reset email", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil
	}

	s.logger.Info("password reset requested", slog.String("user_id", user.ID))
	return nil
}

// Reset consumes a valid reset token, replaces the password hash and revokes
// every refresh token of the user in the same transaction.
func (s *PasswordResetService) Reset(ctx context.Context, token, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	newHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	tokenHash := pkgauth.HashToken(token)

	var userID string
	err = s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		user, err := s.users.WithTx(tx).ConsumePasswordResetToken(ctx, tokenHash, newHash)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.ErrInvalidToken
			}
			s.logger.Error("failed to consume reset token", slog.Any("error", err))
			return models.ErrUnavailable
		}
		userID = user.ID

		// Forces re-login on every device holding an old refresh token.
		return s.tokens.refreshTokens.WithTx(tx).DeleteAllForUser(ctx, user.ID)
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			return err
		}
		if errors.Is(err, models.ErrUnavailable) {
			return err
		}
		s.logger.Error("password reset transaction failed", slog.Any("error", err))
		return models.ErrUnavailable
	}

	s.logger.Info("password reset completed", slog.String("user_id", userID))
	s.auditLogger.LogPasswordChange(userID, "", true)
	return nil
}
