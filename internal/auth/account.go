// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Status is the lifecycle state of an account.
type Status string

// Account statuses.
const (
	StatusInactive    Status = "INACTIVE"
	StatusActive      Status = "ACTIVE"
	StatusSuspended   Status = "SUSPENDED"
	StatusBlacklisted Status = "BLACKLISTED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusInactive, StatusActive, StatusSuspended, StatusBlacklisted:
		return true
	}
	return false
}

// Category separates back-office staff from recruitment candidates.
type Category string

// Account categories.
const (
	CategoryStaff     Category = "STAFF"
	CategoryCandidate Category = "CANDIDATE"
)

// Portal is the UI an account signs in through. Each portal resolves
// against one account category and has its own link base URL.
type Portal string

// Portals.
const (
	PortalStaff     Portal = "backoffice"
	PortalCandidate Portal = "candidate"
)

// Category returns the account category a portal authenticates.
func (p Portal) Category() Category {
	if p == PortalCandidate {
		return CategoryCandidate
	}
	return CategoryStaff
}

// ParsePortal maps a request value to a portal. Empty means staff.
func ParsePortal(s string) (Portal, error) {
	switch Portal(strings.ToLower(strings.TrimSpace(s))) {
	case "", PortalStaff:
		return PortalStaff, nil
	case PortalCandidate:
		return PortalCandidate, nil
	}
	return "", oops.Code("AUTH_INVALID_PORTAL").With("portal", s).Errorf("unknown portal")
}

// CandidateRole is the role given to accounts created through registration.
const CandidateRole = "candidate"

// Account is an identity record.
type Account struct {
	ID           ulid.ULID  `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Status       Status     `json:"status"`
	Category     Category   `json:"category"`
	Role         string     `json:"role"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// HasLoggedIn reports whether a login was ever recorded.
func (a *Account) HasLoggedIn() bool {
	return a.LastLoginAt != nil && !a.LastLoginAt.IsZero()
}

// Profile holds personal data, 1:1 with Account.
type Profile struct {
	AccountID ulid.ULID  `json:"accountId"`
	FullName  string     `json:"fullName"`
	Nickname  string     `json:"nickname,omitempty"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Birthdate *time.Time `json:"birthdate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Username and password constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 100
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// usernameRegex accepts plain handles and email addresses.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._@+-]*$`)

// ValidateUsername checks length and allowed characters.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			With("max", MaxUsernameLength).
			Errorf("username must be %d to %d characters", MinUsernameLength, MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username may contain letters, digits and . _ @ + -")
	}
	return nil
}

// ValidatePassword checks a new password and its confirmation.
func ValidatePassword(password, confirm string) error {
	if password != confirm {
		return oops.Code("AUTH_PASSWORD_MISMATCH").Errorf("password and confirmation do not match")
	}
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			With("max", MaxPasswordLength).
			Errorf("password must be %d to %d characters", MinPasswordLength, MaxPasswordLength)
	}
	return nil
}

// AccountRepository persists accounts and profiles.
type AccountRepository interface {
	// Create stores an account and its profile in one transaction.
	// Returns ErrDuplicateUsername on a username collision.
	Create(ctx context.Context, account *Account, profile *Profile) error

	// GetByID returns the account or ErrNotFound.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// FindByLogin matches login against username or profile email
	// (case-insensitive) within one category, restricted to the given
	// statuses. Returns ErrNotFound when nothing matches.
	FindByLogin(ctx context.Context, login string, category Category, statuses ...Status) (*Account, error)

	// UsernameExists reports whether any account uses username.
	UsernameExists(ctx context.Context, username string) (bool, error)

	// GetProfile returns the profile or ErrNotFound.
	GetProfile(ctx context.Context, accountID ulid.ULID) (*Profile, error)

	// UpdateStatus sets the account status.
	UpdateStatus(ctx context.Context, id ulid.ULID, status Status) error

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// UpdatePasswordHash replaces the hash without touching status.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, hash string) error

	// CompleteReset sets hash and flips SUSPENDED to ACTIVE in one
	// conditional write. Returns ErrNotFound when the account is not
	// suspended anymore.
	CompleteReset(ctx context.Context, id ulid.ULID, hash string) error
}
