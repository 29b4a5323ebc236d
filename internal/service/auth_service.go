package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jobhive/jobhive-api/internal/models"
	apperrors "github.com/jobhive/jobhive-api/pkg/errors"
	"github.com/jobhive/jobhive-api/pkg/export"
	"github.com/jobhive/jobhive-api/pkg/token"
)

type accountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	Delete(ctx context.Context, id string) error
}

type tokenLedger interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string, purpose models.TokenPurpose) (*models.RefreshToken, error)
	Rotate(ctx context.Context, oldID string, replacement *models.RefreshToken) error
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	CountActiveForUser(ctx context.Context, userID string) (int, error)
}

type profileStore interface {
	CreateStub(ctx context.Context, userID string, role models.UserRole) error
}

// Notifier delivers the password reset link. Delivery is fire-and-forget:
// a failure is logged, never surfaced to the caller.
type Notifier interface {
	SendPasswordResetLink(ctx context.Context, email, resetURL string) error
}

// PasswordHasher derives and verifies stored credential blobs.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, stored string) (bool, error)
}

// AuthConfig defines configuration for the session flows.
type AuthConfig struct {
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	ResetTTL     time.Duration
	ResetBaseURL string
}

// AuthService orchestrates the credential and session lifecycle.
type AuthService struct {
	users     accountStore
	tokens    tokenLedger
	profiles  profileStore
	notifier  Notifier
	hasher    PasswordHasher
	codec     *token.Codec
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users accountStore, tokens tokenLedger, profiles profileStore, notifier Notifier, hasher PasswordHasher, codec *token.Codec, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		users:     users,
		tokens:    tokens,
		profiles:  profiles,
		notifier:  notifier,
		hasher:    hasher,
		codec:     codec,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Register creates an account with its role profile stub and returns an
// initial token pair.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid registration payload")
	}
	if !models.ValidRole(req.Role) {
		return nil, apperrors.Clone(apperrors.ErrValidation, "invalid role")
	}

	email := models.NormalizeEmail(req.Email)
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperrors.Clone(apperrors.ErrConflict, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to check existing account")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         req.Role,
		Active:       true,
		Consented:    req.Consented,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to create account")
	}

	if err := s.profiles.CreateStub(ctx, user.ID, user.Role); err != nil {
		// Roll the account back so a half-created registration is never
		// visible to login.
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			s.logger.Error("failed to roll back account after profile stub failure",
				zap.String("user_id", user.ID), zap.Error(delErr))
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to create profile")
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	return &models.LoginResponse{TokenPairResponse: *pair, User: userInfo(user)}, nil
}

// Login authenticates a user and returns issued tokens. The unauthorized
// message is identical whether the account is missing or the password is
// wrong.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, models.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to fetch account")
	}

	ok, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to verify password")
	}
	if !ok {
		return nil, apperrors.Clone(apperrors.ErrInvalidCredentials, "invalid email or password")
	}

	if !user.Active {
		return nil, apperrors.Clone(apperrors.ErrInactiveAccount, "account is inactive")
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	return &models.LoginResponse{TokenPairResponse: *pair, User: userInfo(user)}, nil
}

// Refresh exchanges a refresh token for a new pair, rotating the ledger
// entry. A replayed token is rejected exactly like one that never existed.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshRequest) (*models.TokenPairResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid refresh payload")
	}

	claims, err := s.codec.Verify(req.RefreshToken, token.TypeRefresh)
	if err != nil {
		s.logger.Debug("refresh token rejected", zap.Error(err))
		return nil, apperrors.Clone(apperrors.ErrUnauthorized, "invalid refresh token")
	}

	record, err := s.tokens.FindByHash(ctx, models.HashToken(req.RefreshToken), models.PurposeLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrUnauthorized, "invalid refresh token")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to fetch refresh token")
	}
	if record.UserID != claims.UserID {
		return nil, apperrors.Clone(apperrors.ErrUnauthorized, "invalid refresh token")
	}

	if s.now().UTC().After(record.ExpiresAt) {
		if err := s.tokens.Delete(ctx, record.ID); err != nil {
			s.logger.Warn("failed to evict expired refresh token", zap.Error(err))
		}
		return nil, apperrors.Clone(apperrors.ErrUnauthorized, "invalid refresh token")
	}

	// Re-fetch so role and active status reflect the live account, not the
	// state at issuance.
	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrUnauthorized, "invalid refresh token")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load account")
	}
	if !user.Active {
		return nil, apperrors.Clone(apperrors.ErrUnauthorized, "invalid refresh token")
	}

	refreshValue, _, err := s.codec.Issue(user.ID, user.Email, string(user.Role), token.TypeRefresh, s.config.RefreshTTL)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to create refresh token")
	}

	replacement := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: models.HashToken(refreshValue),
		Purpose:   models.PurposeLogin,
		ExpiresAt: s.now().UTC().Add(s.config.RefreshTTL),
	}
	if err := s.tokens.Rotate(ctx, record.ID, replacement); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// A concurrent request consumed the entry first; this use is a
			// replay and gets the same answer as an unknown token.
			return nil, apperrors.Clone(apperrors.ErrUnauthorized, "invalid refresh token")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to rotate refresh token")
	}

	accessValue, _, err := s.codec.Issue(user.ID, user.Email, string(user.Role), token.TypeAccess, s.config.AccessTTL)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to create access token")
	}

	return &models.TokenPairResponse{
		AccessToken:  accessValue,
		RefreshToken: refreshValue,
		ExpiresIn:    int64(s.config.AccessTTL.Seconds()),
		IssuedAt:     s.now().UTC(),
	}, nil
}

// Logout revokes the named session, or every session for the account when
// no refresh token is supplied.
func (s *AuthService) Logout(ctx context.Context, userID string, req models.LogoutRequest) error {
	if req.RefreshToken == "" {
		if err := s.tokens.DeleteAllForUser(ctx, userID); err != nil {
			return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to revoke sessions")
		}
		return nil
	}

	record, err := s.tokens.FindByHash(ctx, models.HashToken(req.RefreshToken), models.PurposeLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrUnauthorized, "refresh token not found")
		}
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load refresh token")
	}
	if record.UserID != userID {
		return apperrors.Clone(apperrors.ErrForbidden, "token does not belong to user")
	}

	if err := s.tokens.Delete(ctx, record.ID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to revoke refresh token")
	}
	return nil
}

// ForgotPassword initiates the reset flow. The caller always receives the
// same generic outcome whether or not the email exists.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid forgot password payload")
	}

	user, err := s.users.FindByEmail(ctx, models.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to fetch account")
	}

	resetValue, err := generateOpaqueToken()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to create reset token")
	}

	entry := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: models.HashToken(resetValue),
		Purpose:   models.PurposePasswordReset,
		ExpiresAt: s.now().UTC().Add(s.config.ResetTTL),
	}
	if err := s.tokens.Create(ctx, entry); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to persist reset token")
	}

	resetURL := s.config.ResetBaseURL + "?token=" + url.QueryEscape(resetValue)
	if err := s.notifier.SendPasswordResetLink(ctx, user.Email, resetURL); err != nil {
		s.logger.Warn("failed to dispatch password reset link", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword consumes a reset credential, updates the hash and revokes
// every outstanding session for the account.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid reset password payload")
	}

	record, err := s.tokens.FindByHash(ctx, models.HashToken(req.Token), models.PurposePasswordReset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrValidation, "invalid or expired reset token")
		}
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to fetch reset token")
	}

	if s.now().UTC().After(record.ExpiresAt) {
		if err := s.tokens.Delete(ctx, record.ID); err != nil {
			s.logger.Warn("failed to evict expired reset token", zap.Error(err))
		}
		return apperrors.Clone(apperrors.ErrValidation, "invalid or expired reset token")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, record.UserID, hash, s.now().UTC()); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to update password")
	}

	// Forces re-authentication everywhere; also consumes the reset entry.
	if err := s.tokens.DeleteAllForUser(ctx, record.UserID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to revoke sessions")
	}
	return nil
}

// ChangePassword verifies the current password, updates the hash and
// revokes every session. The caller is expected to log in again.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrUnauthorized, "account not found")
		}
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load account")
	}

	ok, err := s.hasher.Verify(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to verify password")
	}
	if !ok {
		return apperrors.Clone(apperrors.ErrUnauthorized, "current password is incorrect")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, hash, s.now().UTC()); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.tokens.DeleteAllForUser(ctx, userID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to revoke sessions")
	}
	return nil
}

// DeleteAccount erases the account. Dependent records fall to cascading
// deletes owned by their modules.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.tokens.DeleteAllForUser(ctx, userID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to revoke sessions")
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to delete account")
	}
	return nil
}

// Me returns the live account behind the given user id.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrUnauthorized, "account not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load account")
	}
	info := userInfo(user)
	return &info, nil
}

// ExportFormat selects the personal-data export rendering.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportResult is the rendered personal-data archive.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportData renders the caller's account and session metadata.
func (s *AuthService) ExportData(ctx context.Context, userID string, format ExportFormat) (*ExportResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrUnauthorized, "account not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load account")
	}

	sessions, err := s.tokens.CountActiveForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to count sessions")
	}

	lastLogin := ""
	if user.LastLogin != nil {
		lastLogin = user.LastLogin.UTC().Format(time.RFC3339)
	}
	archive := export.Archive{
		Title: "Personal Data Export",
		Sections: []export.Section{
			{Title: "Account", Fields: []export.Field{
				{Name: "id", Value: user.ID},
				{Name: "email", Value: user.Email},
				{Name: "full name", Value: user.FullName},
				{Name: "role", Value: string(user.Role)},
				{Name: "active", Value: strconv.FormatBool(user.Active)},
				{Name: "email verified", Value: strconv.FormatBool(user.EmailVerified)},
				{Name: "consented", Value: strconv.FormatBool(user.Consented)},
				{Name: "created", Value: user.CreatedAt.UTC().Format(time.RFC3339)},
				{Name: "last login", Value: lastLogin},
			}},
			{Title: "Sessions", Fields: []export.Field{
				{Name: "active sessions", Value: strconv.Itoa(sessions)},
			}},
		},
	}

	switch format {
	case ExportPDF:
		content, err := export.NewPDFExporter().Render(archive)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to render export")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: "jobhive-data-export.pdf"}, nil
	case ExportCSV, "":
		content, err := export.NewCSVExporter().Render(archive)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to render export")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: "jobhive-data-export.csv"}, nil
	default:
		return nil, apperrors.Clone(apperrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

// ValidateAccess verifies a bearer access token for the route guards.
func (s *AuthService) ValidateAccess(raw string) (*token.Claims, error) {
	claims, err := s.codec.Verify(raw, token.TypeAccess)
	if err != nil {
		s.logger.Debug("access token rejected", zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrUnauthorized.Code, apperrors.ErrUnauthorized.Status, "invalid token")
	}
	return claims, nil
}

func (s *AuthService) issuePair(ctx context.Context, user *models.User) (*models.TokenPairResponse, error) {
	accessValue, _, err := s.codec.Issue(user.ID, user.Email, string(user.Role), token.TypeAccess, s.config.AccessTTL)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to create access token")
	}

	refreshValue, _, err := s.codec.Issue(user.ID, user.Email, string(user.Role), token.TypeRefresh, s.config.RefreshTTL)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to create refresh token")
	}

	record := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: models.HashToken(refreshValue),
		Purpose:   models.PurposeLogin,
		ExpiresAt: s.now().UTC().Add(s.config.RefreshTTL),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.TokenPairResponse{
		AccessToken:  accessValue,
		RefreshToken: refreshValue,
		ExpiresIn:    int64(s.config.AccessTTL.Seconds()),
		IssuedAt:     s.now().UTC(),
	}, nil
}

func userInfo(user *models.User) models.UserInfo {
	return models.UserInfo{
		ID:            user.ID,
		Email:         user.Email,
		FullName:      user.FullName,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
	}
}

func generateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
