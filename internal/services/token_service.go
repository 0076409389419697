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
	"github.com/jackc/pgx/v5"
)

// TxRunner runs a function inside a single database transaction.
// *database.DB satisfies it.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// TokenService issues and rotates token pairs: a signed JWT access token plus
// an opaque refresh token persisted (hashed) in the user's refresh-token set.
type TokenService struct {
	db            TxRunner
	users         repositories.UserStore
	refreshTokens repositories.RefreshTokenStore
	tm            *auth.TokenManager
	refreshExpiry time.Duration
	logger        *slog.Logger
}

func NewTokenService(
	db TxRunner,
	users repositories.UserStore,
	refreshTokens repositories.RefreshTokenStore,
	tm *auth.TokenManager,
	refreshExpiry time.Duration,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		db:            db,
		users:         users,
		refreshTokens: refreshTokens,
		tm:            tm,
		refreshExpiry: refreshExpiry,
		logger:        logger,
	}
}

// Issue creates a token pair for a fully authenticated user.
func (s *TokenService) Issue(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	return s.issue(ctx, s.refreshTokens, user)
}

// IssueTx is Issue bound to a caller-owned transaction.
func (s *TokenService) IssueTx(ctx context.Context, tx pgx.Tx, user *models.User) (*models.TokenPair, error) {
	return s.issue(ctx, s.refreshTokens.WithTx(tx), user)
}

func (s *TokenService) issue(ctx context.Context, store repositories.RefreshTokenStore, user *models.User) (*models.TokenPair, error) {
	accessToken, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.refreshExpiry)
	if err := store.Insert(ctx, pkgauth.HashToken(refreshToken), user.ID, expiresAt); err != nil {
		s.logger.Error("failed to store refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrUnavailable
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh consumes a refresh token and issues a replacement pair. Consumption
// and replacement happen in one transaction; of two concurrent refreshes of
// the same token exactly one commits, the other observes ErrInvalidToken.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	tokenHash := pkgauth.HashToken(refreshToken)

	var pair *models.TokenPair
	err := s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		refreshStore := s.refreshTokens.WithTx(tx)
		userStore := s.users.WithTx(tx)

		userID, err := refreshStore.Consume(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.ErrInvalidToken
			}
			s.logger.Error("failed to consume refresh token", slog.Any("error", err))
			return models.ErrUnavailable
		}

		user, err := userStore.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.ErrInvalidToken
			}
			s.logger.Error("failed to load user for refresh", slog.String("user_id", userID), slog.Any("error", err))
			return models.ErrUnavailable
		}

		if !user.IsActive {
			return models.ErrAccountInactive
		}

		pair, err = s.issue(ctx, refreshStore, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// Revoke removes a single refresh token. Idempotent.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokens.Delete(ctx, pkgauth.HashToken(refreshToken)); err != nil {
		s.logger.Error("failed to revoke refresh token", slog.Any("error", err))
		return models.ErrUnavailable
	}
	return nil
}

// RevokeAll removes every refresh token of a user: logout-all, password
// change, suspected compromise.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	if err := s.refreshTokens.DeleteAllForUser(ctx, userID); err != nil {
		s.logger.Error("failed to revoke all refresh tokens", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrUnavailable
	}
	return nil
}

// VerifyAccess validates an access token and returns its claims.
func (s *TokenService) VerifyAccess(tokenString string) (*models.AccessTokenClaims, error) {
	return s.tm.VerifyAccessToken(tokenString)
}
