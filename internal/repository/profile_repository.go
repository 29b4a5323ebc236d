package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jobhive/jobhive-api/internal/models"
)

// ProfileRepository creates the empty role-appropriate profile stub at
// registration. The profile content itself is owned by the profile module.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new instance of ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// CreateStub inserts an empty profile row for the user's role. Admin
// accounts carry no profile.
func (r *ProfileRepository) CreateStub(ctx context.Context, userID string, role models.UserRole) error {
	var query string
	switch role {
	case models.RoleEmployer:
		query = `INSERT INTO employer_profiles (id, user_id, created_at, updated_at) VALUES ($1, $2, $3, $3)`
	case models.RoleSeeker:
		query = `INSERT INTO seeker_profiles (id, user_id, created_at, updated_at) VALUES ($1, $2, $3, $3)`
	case models.RoleAdmin:
		return nil
	default:
		return fmt.Errorf("no profile stub for role %q", role)
	}

	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("create profile stub: %w", err)
	}
	return nil
}
