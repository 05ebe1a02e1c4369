// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

// Package authtest provides test doubles for the auth package.
package authtest

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/talentdesk/backoffice/internal/auth"
	"github.com/talentdesk/backoffice/internal/mail"
)

// Accounts is an in-memory AccountRepository. Returned accounts are
// copies, so callers cannot mutate stored state by accident.
type Accounts struct {
	mu       sync.Mutex
	accounts map[ulid.ULID]auth.Account
	profiles map[ulid.ULID]auth.Profile
}

// NewAccounts creates an empty repository.
func NewAccounts() *Accounts {
	return &Accounts{
		accounts: make(map[ulid.ULID]auth.Account),
		profiles: make(map[ulid.ULID]auth.Profile),
	}
}

// Put stores account and an optional profile without duplicate checks.
func (r *Accounts) Put(account *auth.Account, profile *auth.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = *account
	if profile != nil {
		r.profiles[account.ID] = *profile
	}
}

// Get returns a copy of the stored account, or nil.
func (r *Accounts) Get(id ulid.ULID) *auth.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil
	}
	return &a
}

// Count returns the number of stored accounts.
func (r *Accounts) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

// ProfileCount returns the number of stored profiles.
func (r *Accounts) ProfileCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.profiles)
}

// Create implements auth.AccountRepository.
func (r *Accounts) Create(_ context.Context, account *auth.Account, profile *auth.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if strings.EqualFold(a.Username, account.Username) {
			return auth.ErrDuplicateUsername
		}
	}
	r.accounts[account.ID] = *account
	r.profiles[account.ID] = *profile
	return nil
}

// GetByID implements auth.AccountRepository.
func (r *Accounts) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	if a := r.Get(id); a != nil {
		return a, nil
	}
	return nil, auth.ErrNotFound
}

// FindByLogin implements auth.AccountRepository.
func (r *Accounts) FindByLogin(_ context.Context, login string, category auth.Category, statuses ...auth.Status) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.accounts {
		if a.Category != category {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, a.Status) {
			continue
		}
		email := r.profiles[id].Email
		if strings.EqualFold(a.Username, login) || (email != "" && strings.EqualFold(email, login)) {
			return &a, nil
		}
	}
	return nil, auth.ErrNotFound
}

// UsernameExists implements auth.AccountRepository.
func (r *Accounts) UsernameExists(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if strings.EqualFold(a.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

// GetProfile implements auth.AccountRepository.
func (r *Accounts) GetProfile(_ context.Context, accountID ulid.ULID) (*auth.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[accountID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &p, nil
}

// UpdateStatus implements auth.AccountRepository.
func (r *Accounts) UpdateStatus(_ context.Context, id ulid.ULID, status auth.Status) error {
	return r.update(id, func(a *auth.Account) bool {
		a.Status = status
		return true
	})
}

// UpdateLastLogin implements auth.AccountRepository.
func (r *Accounts) UpdateLastLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	return r.update(id, func(a *auth.Account) bool {
		a.LastLoginAt = &at
		return true
	})
}

// UpdatePasswordHash implements auth.AccountRepository.
func (r *Accounts) UpdatePasswordHash(_ context.Context, id ulid.ULID, hash string) error {
	return r.update(id, func(a *auth.Account) bool {
		a.PasswordHash = hash
		return true
	})
}

// CompleteReset implements auth.AccountRepository.
func (r *Accounts) CompleteReset(_ context.Context, id ulid.ULID, hash string) error {
	return r.update(id, func(a *auth.Account) bool {
		if a.Status != auth.StatusSuspended {
			return false
		}
		a.PasswordHash = hash
		a.Status = auth.StatusActive
		return true
	})
}

func (r *Accounts) update(id ulid.ULID, fn func(*auth.Account) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok || !fn(&a) {
		return auth.ErrNotFound
	}
	a.UpdatedAt = time.Now()
	r.accounts[id] = a
	return nil
}

// Catalog is a static CatalogRepository.
type Catalog struct {
	Services    []auth.ServiceDescriptor
	Permissions map[string][]string
}

// ListServices implements auth.CatalogRepository.
func (c *Catalog) ListServices(context.Context) ([]auth.ServiceDescriptor, error) {
	return slices.Clone(c.Services), nil
}

// RolePermissions implements auth.CatalogRepository.
func (c *Catalog) RolePermissions(_ context.Context, role string) ([]string, error) {
	return c.Permissions[role], nil
}

// Mailer records dispatched messages instead of sending them.
type Mailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

// Dispatch implements auth.Mailer.
func (m *Mailer) Dispatch(msg mail.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

// Messages returns what was dispatched so far.
func (m *Mailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages)
}

// Verify interfaces are satisfied.
var (
	_ auth.AccountRepository = (*Accounts)(nil)
	_ auth.CatalogRepository = (*Catalog)(nil)
	_ auth.Mailer            = (*Mailer)(nil)
	_ auth.AccountRepository = (*MockAccountRepository)(nil)
	_ auth.TokenStore        = (*MockTokenStore)(nil)
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
	_ auth.CatalogRepository = (*MockCatalogRepository)(nil)
)
