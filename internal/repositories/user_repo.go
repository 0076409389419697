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

// UserStore is the credential store contract consumed by the service layer.
// WithTx rebinds the store to a transaction so read-validate-mutate sequences
// share one commit scope.
type UserStore interface {
	WithTx(tx pgx.Tx) UserStore
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	SetMFA(ctx context.Context, id, secret string, enabled bool) error
	SetVerificationToken(ctx context.Context, id, tokenHash string) error
	ConsumeVerificationToken(ctx context.Context, tokenHash string) (*models.User, error)
	SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ConsumePasswordResetToken(ctx context.Context, tokenHash, newPasswordHash string) (*models.User, error)
}

const userColumns = `id, email, password_hash, name, email_verified, roles, is_active,
	mfa_secret, mfa_enabled, verification_token_hash,
	password_reset_token_hash, password_reset_expires,
	last_login_at, created_at, updated_at`

type UserRepository struct {
	q database.Querier
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

func (r *UserRepository) WithTx(tx pgx.Tx) UserStore {
	return &UserRepository{q: tx}
}

// rowScanner interface for scanning user rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordHash, mfaSecret, verificationTokenHash, resetTokenHash *string
	var resetExpires, lastLoginAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.Email, &passwordHash, &user.Name,
		&user.EmailVerified, &user.Roles, &user.IsActive,
		&mfaSecret, &user.MFAEnabled, &verificationTokenHash,
		&resetTokenHash, &resetExpires,
		&lastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	if mfaSecret != nil {
		user.MFASecret = *mfaSecret
	}
	if verificationTokenHash != nil {
		user.VerificationTokenHash = *verificationTokenHash
	}
	if resetTokenHash != nil {
		user.PasswordResetTokenHash = *resetTokenHash
	}
	user.PasswordResetExpires = resetExpires
	user.LastLoginAt = lastLoginAt

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.q.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.q.QueryRow(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if len(user.Roles) == 0 {
		user.Roles = []string{"user"}
	}
	user.IsActive = true

	var passwordHash, verificationTokenHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}
	if user.VerificationTokenHash != "" {
		verificationTokenHash = &user.VerificationTokenHash
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, email_verified, roles, is_active,
			verification_token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + userColumns

	return scanUserRow(r.q.QueryRow(ctx, query,
		user.ID, user.Email, passwordHash, user.Name,
		user.EmailVerified, user.Roles, user.IsActive,
		verificationTokenHash, user.CreatedAt, user.UpdatedAt,
	))
}

func (r *UserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	query := `
		UPDATE users SET name = $1, roles = $2, is_active = $3, email_verified = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING ` + userColumns

	return scanUserRow(r.q.QueryRow(ctx, query,
		user.Name, user.Roles, user.IsActive, user.EmailVerified, id,
	))
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`

	result, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.q.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetMFA updates MFA state. Enabling requires a non-empty secret; disabling
// clears the secret so the invariant mfa_enabled => mfa_secret holds.
func (r *UserRepository) SetMFA(ctx context.Context, id, secret string, enabled bool) error {
	if enabled && secret == "" {
		return fmt.Errorf("cannot enable mfa without a secret")
	}

	var secretArg *string
	if secret != "" {
		secretArg = &secret
	}

	query := `UPDATE users SET mfa_secret = $1, mfa_enabled = $2, updated_at = NOW() WHERE id = $3`

	result, err := r.q.Exec(ctx, query, secretArg, enabled, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetVerificationToken(ctx context.Context, id, tokenHash string) error {
	query := `UPDATE users SET verification_token_hash = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.q.Exec(ctx, query, tokenHash, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ConsumeVerificationToken marks the matching user's email verified and
// clears the token in one statement. Zero rows means the token was absent or
// already consumed.
func (r *UserRepository) ConsumeVerificationToken(ctx context.Context, tokenHash string) (*models.User, error) {
	query := `
		UPDATE users
		SET email_verified = TRUE, verification_token_hash = NULL, updated_at = NOW()
		WHERE verification_token_hash = $1
		RETURNING ` + userColumns

	return scanUserRow(r.q.QueryRow(ctx, query, tokenHash))
}

// SetPasswordResetToken stores a new reset token, superseding any prior
// outstanding one.
func (r *UserRepository) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET password_reset_token_hash = $1, password_reset_expires = $2, updated_at = NOW()
		WHERE id = $3`

	result, err := r.q.Exec(ctx, query, tokenHash, expiresAt, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ConsumePasswordResetToken replaces the password hash and clears the reset
// token in one statement, guarded by the expiry. Zero rows means the token
// was absent, expired, or already consumed.
func (r *UserRepository) ConsumePasswordResetToken(ctx context.Context, tokenHash, newPasswordHash string) (*models.User, error) {
	query := `
		UPDATE users
		SET password_hash = $1, password_reset_token_hash = NULL, password_reset_expires = NULL, updated_at = NOW()
		WHERE password_reset_token_hash = $2 AND password_reset_expires > NOW()
		RETURNING ` + userColumns

	return scanUserRow(r.q.QueryRow(ctx, query, newPasswordHash, tokenHash))
}
