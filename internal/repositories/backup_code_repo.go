package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/HarlanReyes/bastion/internal/database"
	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BackupCodeStore is the MFA recovery code contract consumed by the service
// layer.
type BackupCodeStore interface {
	WithTx(tx pgx.Tx) BackupCodeStore
	ReplaceForUser(ctx context.Context, userID string, codeHashes []string) error
	ListByUser(ctx context.Context, userID string) ([]*models.BackupCode, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

// BackupCodeRepository stores bcrypt-hashed single-use MFA recovery codes.
type BackupCodeRepository struct {
	q database.Querier
}

func NewBackupCodeRepository(db *database.DB) *BackupCodeRepository {
	return &BackupCodeRepository{q: db.Pool}
}

func (r *BackupCodeRepository) WithTx(tx pgx.Tx) BackupCodeStore {
	return &BackupCodeRepository{q: tx}
}

// ReplaceForUser deletes any existing codes and inserts the new set.
func (r *BackupCodeRepository) ReplaceForUser(ctx context.Context, userID string, codeHashes []string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM mfa_backup_codes WHERE user_id = $1`, userID); err != nil {
		return database.MapPostgresError(err)
	}

	query := `
		INSERT INTO mfa_backup_codes (id, user_id, code_hash, created_at)
		VALUES ($1, $2, $3, NOW())`

	for _, hash := range codeHashes {
		if _, err := r.q.Exec(ctx, query, uuid.New().String(), userID, hash); err != nil {
			return database.MapPostgresError(err)
		}
	}
	return nil
}

func (r *BackupCodeRepository) ListByUser(ctx context.Context, userID string) ([]*models.BackupCode, error) {
	query := `
		SELECT id, user_id, code_hash, created_at
		FROM mfa_backup_codes WHERE user_id = $1`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	codes := make([]*models.BackupCode, 0)
	for rows.Next() {
		var code models.BackupCode
		var createdAt time.Time
		if err := rows.Scan(&code.ID, &code.UserID, &code.CodeHash, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan backup code: %w", err)
		}
		code.CreatedAt = createdAt
		codes = append(codes, &code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backup codes: %w", err)
	}

	return codes, nil
}

// Delete consumes a matched code. Zero rows means a concurrent use already
// consumed it.
func (r *BackupCodeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.Exec(ctx, `DELETE FROM mfa_backup_codes WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *BackupCodeRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM mfa_backup_codes WHERE user_id = $1`, userID)
	return database.MapPostgresError(err)
}
