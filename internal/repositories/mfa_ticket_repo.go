package repositories

import (
	"context"
	"time"

	"github.com/HarlanReyes/bastion/internal/database"
	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/jackc/pgx/v5"
)

// MFATicketStore is the pending-MFA ticket contract consumed by the service
// layer.
type MFATicketStore interface {
	WithTx(tx pgx.Tx) MFATicketStore
	Insert(ctx context.Context, ticketHash, userID string, expiresAt time.Time) error
	Consume(ctx context.Context, ticketHash string) (string, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// MFATicketRepository persists pending-MFA tickets issued between a
// successful password check and MFA completion. Same hashed-at-rest and
// delete-on-consume discipline as refresh tokens.
type MFATicketRepository struct {
	q database.Querier
}

func NewMFATicketRepository(db *database.DB) *MFATicketRepository {
	return &MFATicketRepository{q: db.Pool}
}

func (r *MFATicketRepository) WithTx(tx pgx.Tx) MFATicketStore {
	return &MFATicketRepository{q: tx}
}

func (r *MFATicketRepository) Insert(ctx context.Context, ticketHash, userID string, expiresAt time.Time) error {
	query := `
		INSERT INTO mfa_tickets (ticket_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())`

	_, err := r.q.Exec(ctx, query, ticketHash, userID, expiresAt)
	return database.MapPostgresError(err)
}

// Consume atomically removes the ticket and returns its owner. Absent,
// already-consumed and expired tickets all surface as ErrNotFound.
func (r *MFATicketRepository) Consume(ctx context.Context, ticketHash string) (string, error) {
	query := `
		DELETE FROM mfa_tickets
		WHERE ticket_hash = $1
		RETURNING user_id, expires_at`

	var userID string
	var expiresAt time.Time
	if err := r.q.QueryRow(ctx, query, ticketHash).Scan(&userID, &expiresAt); err != nil {
		return "", database.MapPostgresError(err)
	}

	if time.Now().After(expiresAt) {
		return "", models.ErrNotFound
	}

	return userID, nil
}

func (r *MFATicketRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM mfa_tickets WHERE expires_at < NOW()`

	result, err := r.q.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
