package models

import (
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// TokenPurpose separates the two kinds of ledger entries. The column keeps
// reset credentials from ever colliding with login sessions.
type TokenPurpose string

const (
	PurposeLogin         TokenPurpose = "login"
	PurposePasswordReset TokenPurpose = "password_reset"
)

// RefreshToken is one outstanding single-use session credential. Only the
// one-way hash of the raw value is persisted, so a database read cannot
// recover a usable credential.
type RefreshToken struct {
	ID        string       `db:"id" json:"id"`
	UserID    string       `db:"user_id" json:"user_id"`
	TokenHash string       `db:"token_hash" json:"-"`
	Purpose   TokenPurpose `db:"purpose" json:"purpose"`
	ExpiresAt time.Time    `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// HashToken derives the stored lookup hash for a raw token value.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
