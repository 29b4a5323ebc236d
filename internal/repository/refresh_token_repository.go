package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jobhive/jobhive-api/internal/models"
)

// RefreshTokenRepository persists the hashed-token ledger. Raw token values
// never reach this layer; callers hash them via models.HashToken.
type RefreshTokenRepository struct {
	db *sqlx.DB
}

// NewRefreshTokenRepository creates a new instance of RefreshTokenRepository.
func NewRefreshTokenRepository(db *sqlx.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

const tokenColumns = `id, user_id, token_hash, purpose, expires_at, created_at`

// Create persists a ledger entry for the raw token's hash.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token_hash, purpose, expires_at, created_at) VALUES (:id, :user_id, :token_hash, :purpose, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindByHash returns the ledger entry matching the hash and purpose.
func (r *RefreshTokenRepository) FindByHash(ctx context.Context, tokenHash string, purpose models.TokenPurpose) (*models.RefreshToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM refresh_tokens WHERE token_hash = $1 AND purpose = $2 LIMIT 1`, tokenColumns)
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, tokenHash, purpose); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// Rotate consumes the old entry and inserts the replacement in one
// transaction. The delete and insert commit together or not at all: a
// concurrent rotation of the same entry blocks on the row lock, finds the
// row gone once the winner commits, and gets sql.ErrNoRows without
// inserting anything.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldID string, replacement *models.RefreshToken) error {
	if replacement.ID == "" {
		replacement.ID = uuid.NewString()
	}
	if replacement.CreatedAt.IsZero() {
		replacement.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, oldID)
	if err != nil {
		return fmt.Errorf("delete rotated token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rotated token: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	const insert = `INSERT INTO refresh_tokens (id, user_id, token_hash, purpose, expires_at, created_at) VALUES (:id, :user_id, :token_hash, :purpose, :expires_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, replacement); err != nil {
		return fmt.Errorf("insert rotated token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rotation: %w", err)
	}
	return nil
}

// Delete removes a single ledger entry.
func (r *RefreshTokenRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM refresh_tokens WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every ledger entry for the account, across all
// purposes. Used by logout-everywhere and the password reset/change flows.
func (r *RefreshTokenRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM refresh_tokens WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return nil
}

// CountActiveForUser reports outstanding login sessions, used by the
// personal-data export.
func (r *RefreshTokenRepository) CountActiveForUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM refresh_tokens WHERE user_id = $1 AND purpose = $2 AND expires_at > $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, models.PurposeLogin, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("count refresh tokens: %w", err)
	}
	return count, nil
}
