package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobhive/jobhive-api/internal/models"
)

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshTokenRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	token := &models.RefreshToken{
		UserID:    "u1",
		TokenHash: models.HashToken("raw-value"),
		Purpose:   models.PurposeLogin,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	err := repo.Create(context.Background(), token)
	require.NoError(t, err)
	assert.NotEmpty(t, token.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByHashFiltersOnPurpose(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshTokenRepository(db)

	hash := models.HashToken("raw-value")
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "purpose", "expires_at", "created_at"}).
		AddRow("rt1", "u1", hash, string(models.PurposeLogin), now.Add(time.Hour), now)

	mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE token_hash = \\$1 AND purpose = \\$2 LIMIT 1").
		WithArgs(hash, string(models.PurposeLogin)).
		WillReturnRows(rows)

	rt, err := repo.FindByHash(context.Background(), hash, models.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "rt1", rt.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByHashNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshTokenRepository(db)

	mock.ExpectQuery("SELECT .+ FROM refresh_tokens").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), "unknown", models.PurposeLogin)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRotateDeletesOldAndInsertsNew(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshTokenRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM refresh_tokens WHERE id = \\$1").
		WithArgs("old-id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	replacement := &models.RefreshToken{
		UserID:    "u1",
		TokenHash: models.HashToken("new-raw"),
		Purpose:   models.PurposeLogin,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	err := repo.Rotate(context.Background(), "old-id", replacement)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRejectsAlreadyConsumedEntry(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshTokenRepository(db)

	// The old row already deleted by a concurrent rotation: no insert, the
	// transaction rolls back and the caller gets sql.ErrNoRows.
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM refresh_tokens WHERE id = \\$1").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	replacement := &models.RefreshToken{
		UserID:    "u1",
		TokenHash: models.HashToken("new-raw"),
		Purpose:   models.PurposeLogin,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	err := repo.Rotate(context.Background(), "gone", replacement)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshTokenRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM refresh_tokens WHERE id = \\$1").
		WithArgs("old-id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	replacement := &models.RefreshToken{
		UserID:    "u1",
		TokenHash: models.HashToken("new-raw"),
		Purpose:   models.PurposeLogin,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	err := repo.Rotate(context.Background(), "old-id", replacement)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAllForUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshTokenRepository(db)

	mock.ExpectExec("DELETE FROM refresh_tokens WHERE user_id = \\$1").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.DeleteAllForUser(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileStubPerRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec("INSERT INTO seeker_profiles").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.CreateStub(context.Background(), "u1", models.RoleSeeker))

	mock.ExpectExec("INSERT INTO employer_profiles").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.CreateStub(context.Background(), "u2", models.RoleEmployer))

	// Admin accounts have no profile stub.
	require.NoError(t, repo.CreateStub(context.Background(), "u3", models.RoleAdmin))

	assert.Error(t, repo.CreateStub(context.Background(), "u4", models.UserRole("GHOST")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
