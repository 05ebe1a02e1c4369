// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package seed

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/talentdesk/backoffice/internal/auth"
)

// CatalogWriter persists catalog entries and role grants.
type CatalogWriter interface {
	SaveService(ctx context.Context, svc auth.ServiceDescriptor) error
	Grant(ctx context.Context, role, pattern string) (bool, error)
}

// Report summarizes what Apply changed.
type Report struct {
	Services        int
	GrantsAdded     int
	AccountsCreated int
	AccountsSkipped int
}

// Seeder applies a manifest. Applying the same manifest twice changes
// nothing the second time except service attributes.
type Seeder struct {
	catalog  CatalogWriter
	accounts auth.AccountRepository
	hasher   auth.PasswordHasher
	getenv   func(string) string
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithGetenv replaces os.Getenv for passwordEnv lookups.
func WithGetenv(fn func(string) string) Option {
	return func(s *Seeder) { s.getenv = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Seeder) { s.logger = l }
}

// WithClock sets the time source for created rows.
func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

// NewSeeder creates a Seeder.
func NewSeeder(catalog CatalogWriter, accounts auth.AccountRepository, hasher auth.PasswordHasher, opts ...Option) (*Seeder, error) {
	if catalog == nil {
		return nil, oops.Errorf("catalog writer is required")
	}
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	s := &Seeder{
		catalog:  catalog,
		accounts: accounts,
		hasher:   hasher,
		getenv:   os.Getenv,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Apply writes services, grants and accounts in that order.
func (s *Seeder) Apply(ctx context.Context, m *Manifest) (Report, error) {
	var report Report
	if m == nil {
		return report, oops.Code("SEED_EMPTY").Errorf("manifest is nil")
	}

	for _, svc := range m.Services {
		portal, err := auth.ParsePortal(svc.Portal)
		if err != nil {
			return report, oops.Code("SEED_INVALID_SERVICE").With("code", svc.Code).Wrap(err)
		}
		desc := auth.ServiceDescriptor{
			Code:      svc.Code,
			Name:      svc.Name,
			Path:      svc.Path,
			Portal:    portal,
			SortOrder: svc.SortOrder,
		}
		if err := s.catalog.SaveService(ctx, desc); err != nil {
			return report, oops.Code("SEED_APPLY_FAILED").With("service", svc.Code).Wrap(err)
		}
		report.Services++
	}

	for _, p := range m.Permissions {
		for _, pattern := range p.Patterns {
			added, err := s.catalog.Grant(ctx, p.Role, pattern)
			if err != nil {
				return report, oops.Code("SEED_APPLY_FAILED").With("role", p.Role).With("pattern", pattern).Wrap(err)
			}
			if added {
				report.GrantsAdded++
			}
		}
	}

	for _, a := range m.Accounts {
		created, err := s.createAccount(ctx, a)
		if err != nil {
			return report, err
		}
		if created {
			report.AccountsCreated++
		} else {
			report.AccountsSkipped++
		}
	}

	s.logger.InfoContext(ctx, "seed applied",
		"services", report.Services,
		"grants_added", report.GrantsAdded,
		"accounts_created", report.AccountsCreated,
		"accounts_skipped", report.AccountsSkipped)
	return report, nil
}

func (s *Seeder) createAccount(ctx context.Context, a Account) (bool, error) {
	password := a.Password
	if a.PasswordEnv != "" {
		password = s.getenv(a.PasswordEnv)
		if password == "" {
			return false, oops.Code("SEED_INVALID_ACCOUNT").
				With("username", a.Username).
				With("env", a.PasswordEnv).
				Errorf("environment variable %s is empty", a.PasswordEnv)
		}
	}
	if err := auth.ValidatePassword(password, password); err != nil {
		return false, oops.Code("SEED_INVALID_ACCOUNT").
			With("username", a.Username).
			With("reason", err.Error()).
			Errorf("account %q: %v", a.Username, err)
	}

	status := auth.StatusSuspended
	if a.Status != "" {
		status = auth.Status(a.Status)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, oops.Code("SEED_APPLY_FAILED").With("username", a.Username).Wrap(err)
	}

	now := s.now().UTC()
	account := &auth.Account{
		ID:           ulid.Make(),
		Username:     a.Username,
		PasswordHash: hash,
		Status:       status,
		Category:     auth.CategoryStaff,
		Role:         a.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := &auth.Profile{
		AccountID: account.ID,
		FullName:  a.FullName,
		Email:     a.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.accounts.Create(ctx, account, profile); err != nil {
		if errors.Is(err, auth.ErrDuplicateUsername) {
			s.logger.DebugContext(ctx, "seed account exists", "username", a.Username)
			return false, nil
		}
		return false, oops.Code("SEED_APPLY_FAILED").With("username", a.Username).Wrap(err)
	}
	return true, nil
}
