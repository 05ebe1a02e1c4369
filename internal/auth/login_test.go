// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/talentdesk/backoffice/internal/auth"
	"github.com/talentdesk/backoffice/internal/auth/authtest"
	"github.com/talentdesk/backoffice/pkg/errutil"
)

func TestLogin_Active(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	account := h.addAccount(t, accountFixture{username: "bob", password: "Password123"})

	result, err := h.login.Login(ctx, auth.LoginRequest{Username: "bob", Password: "Password123"})
	require.NoError(t, err)

	assert.Equal(t, auth.LoginActive, result.Outcome)
	assert.NotEmpty(t, result.SessionID)
	assert.Nil(t, result.Reset)
	require.NotNil(t, result.RedirectTo)
	assert.Equal(t, "recruitment:jobs", result.RedirectTo.Code)

	stored := h.accounts.Get(account.ID)
	require.NotNil(t, stored.LastLoginAt)
	assert.True(t, stored.LastLoginAt.Equal(h.clock.Now()))

	resolved, err := h.sessions.ValidateSession(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, resolved.ID)
}

func TestLogin_AcceptsEmailAndTrimsUsername(t *testing.T) {
	h := newHarness(t)
	h.addAccount(t, accountFixture{username: "bob", password: "Password123", email: "bob@example.com"})

	result, err := h.login.Login(context.Background(), auth.LoginRequest{Username: "  BOB@example.com ", Password: "Password123"})
	require.NoError(t, err)
	assert.Equal(t, auth.LoginActive, result.Outcome)
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)
	account := h.addAccount(t, accountFixture{username: "bob", password: "Password123"})
	before := h.accounts.Get(account.ID)

	result, err := h.login.Login(context.Background(), auth.LoginRequest{Username: "bob", Password: "wrongpass"})
	require.NoError(t, err)

	assert.Equal(t, auth.LoginNotFound, result.Outcome)
	assert.Empty(t, result.SessionID)
	assert.Nil(t, result.Account)
	assert.Equal(t, before, h.accounts.Get(account.ID), "a rejected login must not write the account")
}

func TestLogin_UnknownUserLooksLikeWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.addAccount(t, accountFixture{username: "bob", password: "Password123"})

	unknown, err := h.login.Login(context.Background(), auth.LoginRequest{Username: "mallory", Password: "Password123"})
	require.NoError(t, err)
	wrong, err := h.login.Login(context.Background(), auth.LoginRequest{Username: "bob", Password: "nope-nope"})
	require.NoError(t, err)

	assert.Equal(t, wrong, unknown)
}

func TestLogin_PortalScopesCategory(t *testing.T) {
	h := newHarness(t)
	h.addAccount(t, accountFixture{username: "carol", password: "Password123", category: auth.CategoryCandidate, role: auth.CandidateRole})

	staff, err := h.login.Login(context.Background(), auth.LoginRequest{Username: "carol", Password: "Password123"})
	require.NoError(t, err)
	assert.Equal(t, auth.LoginNotFound, staff.Outcome)

	candidate, err := h.login.Login(context.Background(), auth.LoginRequest{
		Username: "carol", Password: "Password123", Portal: auth.PortalCandidate,
	})
	require.NoError(t, err)
	assert.Equal(t, auth.LoginActive, candidate.Outcome)
	assert.Equal(t, "candidate:applications", candidate.RedirectTo.Code)
}

func TestLogin_SuspendedNeverLoggedIn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	account := h.addAccount(t, accountFixture{username: "dave", password: "Password123", status: auth.StatusSuspended})

	result, err := h.login.Login(ctx, auth.LoginRequest{Username: "dave", Password: "Password123"})
	require.NoError(t, err)

	assert.Equal(t, auth.LoginSuspendedNeverLoggedIn, result.Outcome)
	assert.Empty(t, result.SessionID, "no session for a suspended account")
	require.NotNil(t, result.Reset)
	assert.NotEmpty(t, result.Reset.Key)
	assert.NotEmpty(t, result.Reset.Token)
	assert.Equal(t, result.Reset.Key+"/"+result.Reset.Token, result.Reset.String())
	assert.Nil(t, h.accounts.Get(account.ID).LastLoginAt)

	t.Run("credential redeems the account", func(t *testing.T) {
		redeemed, err := h.resets.RedeemReset(ctx, auth.RedeemRequest{
			Password: "NewPass123", ConfirmPassword: "NewPass123",
			Key: result.Reset.Key, Token: result.Reset.Token,
		})
		require.NoError(t, err)
		assert.Equal(t, auth.StatusActive, redeemed.Account.Status)
	})
}

func TestLogin_SuspendedPreviously(t *testing.T) {
	h := newHarness(t)
	h.addAccount(t, accountFixture{
		username:  "erin",
		password:  "Password123",
		status:    auth.StatusSuspended,
		lastLogin: timePtr(h.clock.Now().Add(-48 * time.Hour)),
	})

	result, err := h.login.Login(context.Background(), auth.LoginRequest{Username: "erin", Password: "Password123"})
	require.NoError(t, err)
	assert.Equal(t, auth.LoginSuspendedPreviously, result.Outcome)
	assert.Empty(t, result.SessionID)
	assert.Nil(t, result.Reset)
}

func TestLogin_SuspendedWrongPasswordRevealsNothing(t *testing.T) {
	h := newHarness(t)
	h.addAccount(t, accountFixture{username: "dave", password: "Password123", status: auth.StatusSuspended})

	result, err := h.login.Login(context.Background(), auth.LoginRequest{Username: "dave", Password: "guessing1"})
	require.NoError(t, err)
	assert.Equal(t, auth.LoginNotFound, result.Outcome)
	assert.Nil(t, result.Reset)
}

func TestLogin_NonLoginStatusesAreNotFound(t *testing.T) {
	for _, status := range []auth.Status{auth.StatusInactive, auth.StatusBlacklisted} {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(t)
			h.addAccount(t, accountFixture{username: "frank", password: "Password123", status: status})

			result, err := h.login.Login(context.Background(), auth.LoginRequest{Username: "frank", Password: "Password123"})
			require.NoError(t, err)
			assert.Equal(t, auth.LoginNotFound, result.Outcome)
		})
	}
}

// withCaptcha attaches a freshly generated, correctly answered captcha.
func withCaptcha(t *testing.T, h *harness, req auth.LoginRequest) auth.LoginRequest {
	t.Helper()
	challenge, err := h.captcha.Generate(context.Background())
	require.NoError(t, err)
	req.CaptchaToken = challenge.Token
	req.CaptchaAnswer = captchaAnswer
	return req
}

func TestLogin_CaptchaAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	account := h.addAccount(t, accountFixture{username: "bob", password: "Password123"})

	for range auth.DefaultLockoutPolicy.CaptchaThreshold {
		_, err := h.login.Login(ctx, auth.LoginRequest{Username: "bob", Password: "wrongpass"})
		require.NoError(t, err)
	}

	_, err := h.login.Login(ctx, auth.LoginRequest{Username: "bob", Password: "Password123"})
	errutil.AssertErrorCode(t, err, "AUTH_CAPTCHA_REQUIRED")

	t.Run("wrong answer is still refused", func(t *testing.T) {
		req := withCaptcha(t, h, auth.LoginRequest{Username: "bob", Password: "Password123"})
		req.CaptchaAnswer = "000000"
		_, err := h.login.Login(ctx, req)
		errutil.AssertErrorCode(t, err, "AUTH_CAPTCHA_REQUIRED")
	})

	t.Run("valid captcha lets the correct password through", func(t *testing.T) {
		req := withCaptcha(t, h, auth.LoginRequest{Username: "bob", Password: "Password123"})
		result, err := h.login.Login(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, auth.LoginActive, result.Outcome)

		ok, err := h.captcha.Verify(ctx, req.CaptchaToken, captchaAnswer)
		require.NoError(t, err)
		assert.False(t, ok, "captcha is consumed by a successful login")

		state, err := h.guard.Check(ctx, auth.PortalStaff, auth.LoginSubject(account, "bob"))
		require.NoError(t, err)
		assert.Zero(t, state.Failures, "success clears the failure counter")
	})
}

func TestLogin_LockoutRejectsCorrectPassword(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addAccount(t, accountFixture{username: "bob", password: "Password123"})

	for range auth.DefaultLockoutPolicy.Threshold {
		req := withCaptcha(t, h, auth.LoginRequest{Username: "bob", Password: "wrongpass"})
		result, err := h.login.Login(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, auth.LoginNotFound, result.Outcome)
	}

	_, err := h.login.Login(ctx, withCaptcha(t, h, auth.LoginRequest{Username: "bob", Password: "Password123"}))
	errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_LOCKED")

	h.clock.Advance(auth.DefaultLockoutPolicy.Window)
	result, err := h.login.Login(ctx, auth.LoginRequest{Username: "bob", Password: "Password123"})
	require.NoError(t, err)
	assert.Equal(t, auth.LoginActive, result.Outcome, "lockout ends with the window")
}

func TestLogin_AliasesShareFailureCounter(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	account := h.addAccount(t, accountFixture{username: "alice", password: "Password123", email: "alice@example.com"})
	aliases := []string{"alice", "ALICE@example.com"}
	policy := auth.DefaultLockoutPolicy

	for i := range policy.CaptchaThreshold {
		result, err := h.login.Login(ctx, auth.LoginRequest{Username: aliases[i%2], Password: "wrongpass"})
		require.NoError(t, err)
		assert.Equal(t, auth.LoginNotFound, result.Outcome)
	}
	for _, alias := range aliases {
		_, err := h.login.Login(ctx, auth.LoginRequest{Username: alias, Password: "Password123"})
		errutil.AssertErrorCode(t, err, "AUTH_CAPTCHA_REQUIRED")
	}

	for i := policy.CaptchaThreshold; i < policy.Threshold; i++ {
		req := withCaptcha(t, h, auth.LoginRequest{Username: aliases[i%2], Password: "wrongpass"})
		result, err := h.login.Login(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, auth.LoginNotFound, result.Outcome)
	}
	for _, alias := range aliases {
		_, err := h.login.Login(ctx, withCaptcha(t, h, auth.LoginRequest{Username: alias, Password: "Password123"}))
		errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_LOCKED")
	}

	state, err := h.guard.Check(ctx, auth.PortalStaff, auth.LoginSubject(account, ""))
	require.NoError(t, err)
	assert.Equal(t, policy.Threshold, state.Failures)

	t.Run("unknown logins keep separate counters", func(t *testing.T) {
		for range policy.CaptchaThreshold {
			_, err := h.login.Login(ctx, auth.LoginRequest{Username: "mallory", Password: "wrongpass"})
			require.NoError(t, err)
		}
		_, err := h.login.Login(ctx, auth.LoginRequest{Username: " MALLORY ", Password: "wrongpass"})
		errutil.AssertErrorCode(t, err, "AUTH_CAPTCHA_REQUIRED")

		result, err := h.login.Login(ctx, auth.LoginRequest{Username: "trent", Password: "wrongpass"})
		require.NoError(t, err)
		assert.Equal(t, auth.LoginNotFound, result.Outcome)
	})
}

func TestLogin_UpgradesWeakHash(t *testing.T) {
	h := newHarness(t)
	account := h.addAccount(t, accountFixture{username: "bob", password: "Password123"})

	weak, err := auth.NewArgon2idHasher(auth.HashParams{Time: 1, MemoryKiB: 512, Threads: 1})
	require.NoError(t, err)
	weakHash, err := weak.Hash("Password123")
	require.NoError(t, err)
	account.PasswordHash = weakHash
	h.accounts.Put(account, nil)

	result, err := h.login.Login(context.Background(), auth.LoginRequest{Username: "bob", Password: "Password123"})
	require.NoError(t, err)
	assert.Equal(t, auth.LoginActive, result.Outcome)

	stored := h.accounts.Get(account.ID)
	assert.NotEqual(t, weakHash, stored.PasswordHash)
	assert.False(t, h.hasher.NeedsUpgrade(stored.PasswordHash))
	ok, err := h.hasher.Verify("Password123", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLogin_RepositoryFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	accounts := authtest.NewMockAccountRepository(t)
	accounts.EXPECT().FindByLogin(mock.Anything, "bob", auth.CategoryStaff, auth.StatusActive).
		Return(nil, errors.New("connection reset"))

	svc, err := auth.NewAuthService(auth.LoginDeps{
		Accounts: accounts,
		Hasher:   h.hasher,
		Sessions: h.sessions,
		Resets:   h.resets,
		Guard:    h.guard,
		Captcha:  h.captcha,
		Catalog:  h.catalog,
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, auth.LoginRequest{Username: "bob", Password: "Password123"})
	errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	errutil.AssertErrorContext(t, err, "operation", "find account")
}

func TestLogin_LastLoginFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	account := h.addAccount(t, accountFixture{username: "bob", password: "Password123"})

	accounts := authtest.NewMockAccountRepository(t)
	accounts.EXPECT().FindByLogin(mock.Anything, "bob", auth.CategoryStaff, auth.StatusActive).Return(account, nil)
	accounts.EXPECT().UpdateLastLogin(mock.Anything, account.ID, mock.AnythingOfType("time.Time")).
		Return(errors.New("deadlock detected"))

	svc, err := auth.NewAuthService(auth.LoginDeps{
		Accounts: accounts,
		Hasher:   h.hasher,
		Sessions: h.sessions,
		Resets:   h.resets,
		Guard:    h.guard,
		Captcha:  h.captcha,
		Catalog:  h.catalog,
		Clock:    h.clock.Now,
	})
	require.NoError(t, err)

	result, err := svc.Login(ctx, auth.LoginRequest{Username: "bob", Password: "Password123"})
	require.NoError(t, err)
	assert.Equal(t, auth.LoginActive, result.Outcome)
	assert.NotEmpty(t, result.SessionID)
}

func TestLoginOutcome_String(t *testing.T) {
	assert.Equal(t, "not_found", auth.LoginNotFound.String())
	assert.Equal(t, "active", auth.LoginActive.String())
	assert.Equal(t, "suspended_never_logged_in", auth.LoginSuspendedNeverLoggedIn.String())
	assert.Equal(t, "suspended_previously", auth.LoginSuspendedPreviously.String())
}
