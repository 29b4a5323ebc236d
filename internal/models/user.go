package models

import (
	"strings"
	"time"
)

// UserRole represents the closed set of marketplace roles.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleEmployer UserRole = "EMPLOYER"
	RoleSeeker   UserRole = "SEEKER"
)

// ValidRole reports whether the value is one of the known roles.
func ValidRole(role UserRole) bool {
	switch role {
	case RoleAdmin, RoleEmployer, RoleSeeker:
		return true
	}
	return false
}

// NormalizeEmail lower-cases and trims an email address. Every lookup and
// insert goes through this so the uniqueness constraint holds regardless of
// how the caller typed the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User represents an account stored in the users table.
type User struct {
	ID            string     `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FullName      string     `db:"full_name" json:"full_name"`
	Role          UserRole   `db:"role" json:"role"`
	Active        bool       `db:"active" json:"active"`
	EmailVerified bool       `db:"email_verified" json:"email_verified"`
	Consented     bool       `db:"consented" json:"consented"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
