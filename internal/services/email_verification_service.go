package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/HarlanReyes/bastion/internal/repositories"
	pkgauth "github.com/HarlanReyes/bastion/pkg/auth"
	pkglogger "github.com/HarlanReyes/bastion/pkg/logger"
)

// VerificationNotifier dispatches email verification links.
type VerificationNotifier interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
}

// EmailVerificationService issues and consumes single-use email verification
// tokens. Tokens do not expire but are cleared on first consumption.
type EmailVerificationService struct {
	users       repositories.UserStore
	notifier    VerificationNotifier
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewEmailVerificationService(
	users repositories.UserStore,
	notifier VerificationNotifier,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *EmailVerificationService {
	return &EmailVerificationService{
		users:       users,
		notifier:    notifier,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// SendVerification generates a token, stores its hash on the user record
// (superseding any prior token) and dispatches the email.
func (s *EmailVerificationService) SendVerification(ctx context.Context, userID, email string) error {
	token, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.SetVerificationToken(ctx, userID, pkgauth.HashToken(token)); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to store verification token", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrUnavailable
	}

	if err := s.notifier.SendVerificationEmail(ctx, email, token); err != nil {
		s.logger.Error("failed to send verification email",
			slog.String("user_id", userID),
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return models.ErrUnavailable
	}

	s.logger.Info("verification email sent", slog.String("user_id", userID))
	return nil
}

// Verify consumes a verification token and marks the email verified. An
// unknown or already-consumed token fails ErrInvalidToken.
func (s *EmailVerificationService) Verify(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, models.ErrInvalidToken
	}

	user, err := s.users.ConsumeVerificationToken(ctx, pkgauth.HashToken(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("verification token not found or already consumed")
			return nil, models.ErrInvalidToken
		}
		s.logger.Error("failed to consume verification token", slog.Any("error", err))
		return nil, models.ErrUnavailable
	}

	s.logger.Info("email verified", slog.String("user_id", user.ID))
	s.auditLogger.LogAccountAction("email_verified", user.ID, "", nil)
	return user, nil
}

// Resend dispatches a fresh verification token. Like the reset request it
// always reports success: unknown and already-verified addresses behave
// identically from the outside. Abuse is bounded by the route rate limiter.
func (s *EmailVerificationService) Resend(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to look up user for verification resend", slog.Any("error", err))
		}
		return nil
	}

	if user.EmailVerified || !user.IsActive {
		return nil
	}

	if err := s.SendVerification(ctx, user.ID, user.Email); err != nil {
		// Swallowed deliberately; the caller gets the same success either way.
		s.logger.Error("failed to resend verification", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	return nil
}
