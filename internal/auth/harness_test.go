// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/talentdesk/backoffice/internal/auth"
	"github.com/talentdesk/backoffice/internal/auth/authtest"
	"github.com/talentdesk/backoffice/internal/tokenstore"
)

// captchaAnswer is what the fixed digit source in the harness renders.
const captchaAnswer = "123456"

var testLinks = auth.Links{
	StaffBaseURL:     "https://bo.example.com",
	CandidateBaseURL: "https://jobs.example.com/",
}

func testCatalogRepo() *authtest.Catalog {
	return &authtest.Catalog{
		Services: []auth.ServiceDescriptor{
			{Code: "admin:users", Name: "Users", Path: "/admin/users", Portal: auth.PortalStaff, SortOrder: 30},
			{Code: "recruitment:jobs", Name: "Jobs", Path: "/jobs", Portal: auth.PortalStaff, SortOrder: 10},
			{Code: "recruitment:candidates", Name: "Candidates", Path: "/candidates", Portal: auth.PortalStaff, SortOrder: 20},
			{Code: "candidate:applications", Name: "My applications", Path: "/applications", Portal: auth.PortalCandidate, SortOrder: 10},
		},
		Permissions: map[string][]string{
			"recruiter":        {"recruitment:*"},
			"admin":            {"**"},
			auth.CandidateRole: {"candidate:*"},
		},
	}
}

// harness wires every auth service over in-memory collaborators.
type harness struct {
	clock        *fakeClock
	logs         *bytes.Buffer
	tokens       *tokenstore.Memory
	accounts     *authtest.Accounts
	mailer       *authtest.Mailer
	hasher       *auth.Argon2idHasher
	codec        *auth.Codec
	sessions     *auth.SessionManager
	guard        *auth.LoginGuard
	captcha      *auth.CaptchaService
	catalog      *auth.Catalog
	resets       *auth.PasswordResetService
	registration *auth.RegistrationService
	login        *auth.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:    newTestClock(),
		logs:     &bytes.Buffer{},
		accounts: authtest.NewAccounts(),
		mailer:   &authtest.Mailer{},
		hasher:   newTestHasher(t),
	}
	logger := slog.New(slog.NewJSONHandler(h.logs, nil))
	h.tokens = tokenstore.NewMemory(tokenstore.WithClock(h.clock.Now))
	h.codec = newTestCodec(t, h.clock)

	var err error
	h.sessions, err = auth.NewSessionManager(h.accounts, h.tokens, h.codec, auth.DefaultSessionTTL)
	require.NoError(t, err)

	h.guard, err = auth.NewLoginGuard(h.tokens, auth.DefaultLockoutPolicy)
	require.NoError(t, err)

	h.captcha, err = auth.NewCaptchaService(h.tokens, auth.DefaultCaptchaTTL,
		auth.WithDigitSource(func(n int) []byte {
			return []byte{1, 2, 3, 4, 5, 6}[:n]
		}))
	require.NoError(t, err)

	h.catalog, err = auth.NewCatalog(testCatalogRepo(), testLinks)
	require.NoError(t, err)

	h.resets, err = auth.NewPasswordResetService(auth.ResetDeps{
		Accounts: h.accounts,
		Tokens:   h.tokens,
		Codec:    h.codec,
		Hasher:   h.hasher,
		Mailer:   h.mailer,
		Catalog:  h.catalog,
		Links:    testLinks,
		Logger:   logger,
		Clock:    h.clock.Now,
	})
	require.NoError(t, err)

	h.registration, err = auth.NewRegistrationService(auth.RegistrationDeps{
		Accounts: h.accounts,
		Tokens:   h.tokens,
		Codec:    h.codec,
		Hasher:   h.hasher,
		Captcha:  h.captcha,
		Mailer:   h.mailer,
		Links:    testLinks,
		Logger:   logger,
		Clock:    h.clock.Now,
	})
	require.NoError(t, err)

	h.login, err = auth.NewAuthService(auth.LoginDeps{
		Accounts: h.accounts,
		Hasher:   h.hasher,
		Sessions: h.sessions,
		Resets:   h.resets,
		Guard:    h.guard,
		Captcha:  h.captcha,
		Catalog:  h.catalog,
		Logger:   logger,
		Clock:    h.clock.Now,
	})
	require.NoError(t, err)

	return h
}

type accountFixture struct {
	username  string
	password  string
	email     string
	status    auth.Status
	category  auth.Category
	role      string
	lastLogin *time.Time
}

func (h *harness) addAccount(t *testing.T, fx accountFixture) *auth.Account {
	t.Helper()
	if fx.status == "" {
		fx.status = auth.StatusActive
	}
	if fx.category == "" {
		fx.category = auth.CategoryStaff
	}
	if fx.role == "" {
		fx.role = "recruiter"
	}
	hash, err := h.hasher.Hash(fx.password)
	require.NoError(t, err)

	now := h.clock.Now()
	account := &auth.Account{
		ID:           ulid.Make(),
		Username:     fx.username,
		PasswordHash: hash,
		Status:       fx.status,
		Category:     fx.category,
		Role:         fx.role,
		LastLoginAt:  fx.lastLogin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var profile *auth.Profile
	if fx.email != "" {
		profile = &auth.Profile{AccountID: account.ID, FullName: fx.username, Email: fx.email}
	}
	h.accounts.Put(account, profile)
	return account
}

func timePtr(t time.Time) *time.Time {
	return &t
}
