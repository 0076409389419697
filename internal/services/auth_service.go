package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/HarlanReyes/bastion/internal/auth"
	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/HarlanReyes/bastion/internal/repositories"
	pkgauth "github.com/HarlanReyes/bastion/pkg/auth"
	pkglogger "github.com/HarlanReyes/bastion/pkg/logger"
	"github.com/jackc/pgx/v5"
)

// VerificationSender dispatches an email verification token for a new account.
type VerificationSender interface {
	SendVerification(ctx context.Context, userID, email string) error
}

// AuthService coordinates the login/refresh/logout state machine over the
// credential store, token service and MFA challenge step.
type AuthService struct {
	db               TxRunner
	users            repositories.UserStore
	tokens           *TokenService
	mfa              *MFAService
	timing           *auth.TimingDelay
	verification     VerificationSender
	logoutAllDevices bool
	logger           *slog.Logger
	auditLogger      *pkglogger.AuditLogger
}

func NewAuthService(
	db TxRunner,
	users repositories.UserStore,
	tokens *TokenService,
	mfa *MFAService,
	timing *auth.TimingDelay,
	verification VerificationSender,
	logoutAllDevices bool,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		db:               db,
		users:            users,
		tokens:           tokens,
		mfa:              mfa,
		timing:           timing,
		verification:     verification,
		logoutAllDevices: logoutAllDevices,
		logger:           logger,
		auditLogger:      auditLogger,
	}
}

// UserResponse represents a user in HTTP responses
type UserResponse struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	EmailVerified bool     `json:"email_verified"`
	MFAEnabled    bool     `json:"mfa_enabled"`
	Roles         []string `json:"roles"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

// LoginResult is either a final token pair or an MFA challenge ticket, never
// both.
type LoginResult struct {
	Tokens      *models.TokenPair `json:"tokens,omitempty"`
	MFARequired bool              `json:"mfa_required"`
	MFATicket   string            `json:"mfa_ticket,omitempty"`
	User        *UserResponse     `json:"user,omitempty"`
}

// Login authenticates a user. Missing account, inactive account, wrong
// password and wrong MFA code all return ErrInvalidCredentials to the caller;
// only audit logs record which it was.
func (s *AuthService) Login(ctx context.Context, email, password, mfaCode, ipAddress, userAgent string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn a bcrypt comparison so a miss costs the same as a mismatch.
			pkgauth.CompareDummy(password)
			s.timing.Wait(false)
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     ipAddress,
				UserAgent:     userAgent,
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrUnavailable
	}

	if !user.IsActive {
		pkgauth.CompareDummy(password)
		s.timing.Wait(false)
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			FailureReason: "account_inactive",
			Success:       false,
		})
		return nil, models.ErrAccountInactive
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.timing.Wait(false)
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrInvalidCredentials
	}

	if user.MFAEnabled {
		if mfaCode == "" {
			ticket, err := s.mfa.BeginChallenge(ctx, user)
			if err != nil {
				return nil, err
			}
			return &LoginResult{MFARequired: true, MFATicket: ticket}, nil
		}

		if err := s.mfa.VerifyCode(ctx, user, mfaCode); err != nil {
			if errors.Is(err, models.ErrInvalidCredentials) {
				s.timing.Wait(false)
				s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
					EventType:     "login_failed",
					UserID:        user.ID,
					IPAddress:     ipAddress,
					FailureReason: "invalid_mfa_code",
					Success:       false,
				})
				return nil, models.ErrInvalidCredentials
			}
			return nil, err
		}
	}

	var pair *models.TokenPair
	err = s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.users.WithTx(tx).UpdateLastLogin(ctx, user.ID); err != nil {
			s.logger.Error("failed to update last login", slog.String("user_id", user.ID), slog.Any("error", err))
			return models.ErrUnavailable
		}
		pair, err = s.tokens.IssueTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return &LoginResult{Tokens: pair, User: UserModelToResponse(user)}, nil
}

// Register creates a new local account and dispatches a verification email.
// The caller surfaces an identical response whether or not the email was
// already registered.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*UserResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" {
		return nil, models.ErrBadRequest
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("registration failed: user already exists")
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check if user exists", slog.Any("error", err))
		return nil, models.ErrUnavailable
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         name,
		Roles:        []string{"user"},
	}

	createdUser, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrUnavailable
	}

	if s.verification != nil {
		if err := s.verification.SendVerification(ctx, createdUser.ID, createdUser.Email); err != nil {
			// Delivery failures never fail registration; the user can request
			// a resend.
			s.logger.Error("failed to send verification email",
				slog.String("user_id", createdUser.ID), slog.Any("error", err))
		}
	}

	s.logger.Info("user registered", slog.String("user_id", createdUser.ID))
	s.auditLogger.LogAccountAction("user_registered", createdUser.ID, "", nil)

	return UserModelToResponse(createdUser), nil
}

// Logout revokes the presented refresh token, or every token of the user when
// configured for logout-all. Idempotent.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	var err error
	if s.logoutAllDevices {
		err = s.tokens.RevokeAll(ctx, userID)
	} else {
		err = s.tokens.Revoke(ctx, refreshToken)
	}
	if err != nil {
		return err
	}

	s.logger.Info("user logged out", slog.String("user_id", userID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "logout",
		UserID:    userID,
		Success:   true,
	})
	return nil
}

// ChangePassword verifies the current password, replaces the hash and revokes
// all refresh tokens so other sessions must log in again.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidCredentials
		}
		return models.ErrUnavailable
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.timing.Wait(false)
		s.auditLogger.LogPasswordChange(user.ID, "", false)
		return models.ErrInvalidCredentials
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	newHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	err = s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.users.WithTx(tx).UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
			return models.ErrUnavailable
		}
		return s.tokens.refreshTokens.WithTx(tx).DeleteAllForUser(ctx, user.ID)
	})
	if err != nil {
		s.auditLogger.LogPasswordChange(user.ID, "", false)
		return models.ErrUnavailable
	}

	s.auditLogger.LogPasswordChange(user.ID, "", true)
	return nil
}

// UserModelToResponse converts a user model to its response DTO
func UserModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		EmailVerified: user.EmailVerified,
		MFAEnabled:    user.MFAEnabled,
		Roles:         user.Roles,
		CreatedAt:     user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:     user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
