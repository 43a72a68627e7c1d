package entities

import (
	"errors"
	"strings"
	"time"
)

// AccountRole is the site-wide role tag carried on a user profile.
// It is distinct from the per-diagram permission granted by sharing.
type AccountRole string

const (
	AccountRoleAdmin  AccountRole = "admin"
	AccountRoleEditor AccountRole = "editor"
	AccountRoleViewer AccountRole = "viewer"
)

// ParseAccountRole validates and returns an AccountRole
func ParseAccountRole(s string) (AccountRole, error) {
	switch AccountRole(s) {
	case AccountRoleAdmin, AccountRoleEditor, AccountRoleViewer:
		return AccountRole(s), nil
	default:
		return "", errors.New("unknown account role: " + s)
	}
}

// UserProfile is the document kept in the users collection for every
// registered identity. The password hash is only populated when the
// local credential gateway manages the account; externally federated
// identities leave it empty.
type UserProfile struct {
	ID           string
	Email        string
	Role         AccountRole
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    time.Time
}

// NewUserProfile creates a profile with validation
func NewUserProfile(id, email string, role AccountRole, now time.Time) (*UserProfile, error) {
	if id == "" {
		return nil, errors.New("user ID cannot be empty")
	}
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("email cannot be empty")
	}
	if role == "" {
		role = AccountRoleEditor
	}
	return &UserProfile{
		ID:        id,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RecordLogin merge-sets the last login timestamp
func (u *UserProfile) RecordLogin(at time.Time) {
	u.LastLogin = at
}

// NormalizeEmail lowercases and trims an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
