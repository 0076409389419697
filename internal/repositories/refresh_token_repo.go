package repositories

import (
	"context"
	"time"

	"github.com/HarlanReyes/bastion/internal/database"
	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/jackc/pgx/v5"
)

// RefreshTokenStore is the refresh-token set contract consumed by the
// service layer.
type RefreshTokenStore interface {
	WithTx(tx pgx.Tx) RefreshTokenStore
	Insert(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	Consume(ctx context.Context, tokenHash string) (string, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// RefreshTokenRepository persists the per-user refresh-token set. Tokens are
// stored as SHA-256 hashes; consumption is a single DELETE ... RETURNING so
// two concurrent refreshes of the same token can never both succeed.
type RefreshTokenRepository struct {
	q database.Querier
}

func NewRefreshTokenRepository(db *database.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{q: db.Pool}
}

func (r *RefreshTokenRepository) WithTx(tx pgx.Tx) RefreshTokenStore {
	return &RefreshTokenRepository{q: tx}
}

func (r *RefreshTokenRepository) Insert(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())`

	_, err := r.q.Exec(ctx, query, tokenHash, userID, expiresAt)
	return database.MapPostgresError(err)
}

// Consume atomically removes the token and returns its owner. Losing a race
// to a concurrent refresh or revoke surfaces as ErrNotFound, as does an
// expired token (which is removed as a side effect).
func (r *RefreshTokenRepository) Consume(ctx context.Context, tokenHash string) (string, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1
		RETURNING user_id, expires_at`

	var userID string
	var expiresAt time.Time
	if err := r.q.QueryRow(ctx, query, tokenHash).Scan(&userID, &expiresAt); err != nil {
		return "", database.MapPostgresError(err)
	}

	if time.Now().After(expiresAt) {
		return "", models.ErrNotFound
	}

	return userID, nil
}

// Delete removes a single token. Idempotent: deleting an absent token is not
// an error.
func (r *RefreshTokenRepository) Delete(ctx context.Context, tokenHash string) error {
	query := `DELETE FROM refresh_tokens WHERE token_hash = $1`

	_, err := r.q.Exec(ctx, query, tokenHash)
	return database.MapPostgresError(err)
}

// DeleteAllForUser revokes every refresh token of a user (password change,
// reset, logout-all).
func (r *RefreshTokenRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	query := `DELETE FROM refresh_tokens WHERE user_id = $1`

	_, err := r.q.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}

func (r *RefreshTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < NOW()`

	result, err := r.q.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
