// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
)

// LoginOutcome tags the result of a credential check.
type LoginOutcome int

// Login outcomes.
const (
	// LoginNotFound covers unknown users and wrong passwords alike.
	LoginNotFound LoginOutcome = iota
	// LoginActive means a session was created.
	LoginActive
	// LoginSuspendedNeverLoggedIn means the password must be set through
	// the returned reset credential before signing in.
	LoginSuspendedNeverLoggedIn
	// LoginSuspendedPreviously means an administrator suspended the account.
	LoginSuspendedPreviously
)

func (o LoginOutcome) String() string {
	switch o {
	case LoginActive:
		return "active"
	case LoginSuspendedNeverLoggedIn:
		return "suspended_never_logged_in"
	case LoginSuspendedPreviously:
		return "suspended_previously"
	default:
		return "not_found"
	}
}

// LoginRequest is a sign-in attempt.
type LoginRequest struct {
	Username      string
	Password      string
	Portal        Portal
	CaptchaToken  string
	CaptchaAnswer string
}

// LoginResult is the tagged outcome of Login. Only the fields of the
// reached outcome are set.
type LoginResult struct {
	Outcome    LoginOutcome
	Account    *Account
	SessionID  string
	Reset      *ResetCredential
	RedirectTo *ServiceDescriptor
}

// LoginDeps are the collaborators of a Service.
type LoginDeps struct {
	Accounts AccountRepository
	Hasher   PasswordHasher
	Sessions *SessionManager
	Resets   *PasswordResetService
	Guard    *LoginGuard
	Captcha  *CaptchaService
	Catalog  *Catalog
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Service checks credentials for both portals.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	sessions *SessionManager
	resets   *PasswordResetService
	guard    *LoginGuard
	captcha  *CaptchaService
	catalog  *Catalog
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService creates a login Service.
func NewAuthService(deps LoginDeps) (*Service, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.Errorf("account repository is required")
	case deps.Hasher == nil:
		return nil, oops.Errorf("password hasher is required")
	case deps.Sessions == nil:
		return nil, oops.Errorf("session manager is required")
	case deps.Resets == nil:
		return nil, oops.Errorf("password reset service is required")
	case deps.Guard == nil:
		return nil, oops.Errorf("login guard is required")
	case deps.Captcha == nil:
		return nil, oops.Errorf("captcha service is required")
	case deps.Catalog == nil:
		return nil, oops.Errorf("catalog is required")
	}
	s := &Service{
		accounts: deps.Accounts,
		hasher:   deps.Hasher,
		sessions: deps.Sessions,
		resets:   deps.Resets,
		guard:    deps.Guard,
		captcha:  deps.Captcha,
		catalog:  deps.Catalog,
		logger:   deps.Logger,
		now:      deps.Clock,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// dummyPasswordHash is verified when no account matches, so unknown users
// cost the same as wrong passwords. It never matches any password.
//
//nolint:gosec // G101: not a credential
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login checks username and password in the request's portal.
//
// Unknown users and wrong passwords both yield LoginNotFound with a nil
// error. Suspension state and the last-login tie-break are only looked at
// after the password verified. Failed attempts are counted per account, so
// username and email share one counter, and per login string when no
// account matches. Past the captcha threshold a valid captcha is required,
// and past the lockout threshold Login fails with AUTH_ACCOUNT_LOCKED even
// for a correct password.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	username := strings.TrimSpace(req.Username)
	if req.Portal == "" {
		req.Portal = PortalStaff
	}

	account, err := s.resolve(ctx, username, req.Portal.Category())
	if err != nil {
		return nil, err
	}
	subject := LoginSubject(account, username)

	state, err := s.guard.Check(ctx, req.Portal, subject)
	if err != nil {
		return nil, err
	}
	if state.RequiresCaptcha {
		ok, err := s.captcha.Verify(ctx, req.CaptchaToken, req.CaptchaAnswer)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, oops.Code("AUTH_CAPTCHA_REQUIRED").
				With("failures", state.Failures).
				Errorf("a valid captcha is required")
		}
		if err := s.captcha.Destroy(ctx, req.CaptchaToken); err != nil {
			s.logger.WarnContext(ctx, "best-effort captcha destroy failed", "operation", "destroy_captcha", "error", err)
		}
	}

	target := dummyPasswordHash
	if account != nil {
		target = account.PasswordHash
	}
	valid, verifyErr := s.hasher.Verify(req.Password, target)
	if verifyErr != nil && account != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID.String()).
			Wrap(verifyErr)
	}

	if account == nil || !valid {
		if _, err := s.guard.RecordFailure(ctx, req.Portal, subject); err != nil {
			s.logger.WarnContext(ctx, "best-effort failure count failed", "operation", "record_failure", "error", err)
		}
		return &LoginResult{Outcome: LoginNotFound}, nil
	}

	if state.IsLockedOut {
		return nil, oops.Code("AUTH_ACCOUNT_LOCKED").
			With("failures", state.Failures).
			Errorf("too many failed attempts, try again later")
	}

	if err := s.guard.Reset(ctx, req.Portal, subject); err != nil {
		s.logger.WarnContext(ctx, "best-effort failure reset failed", "operation", "reset_failures", "error", err)
	}

	switch account.Status {
	case StatusActive:
		return s.completeActive(ctx, account, req)
	case StatusSuspended:
		if account.HasLoggedIn() {
			return &LoginResult{Outcome: LoginSuspendedPreviously, Account: account}, nil
		}
		cred, err := s.resets.issue(ctx, account)
		if err != nil {
			return nil, err
		}
		return &LoginResult{Outcome: LoginSuspendedNeverLoggedIn, Account: account, Reset: cred}, nil
	default:
		return &LoginResult{Outcome: LoginNotFound}, nil
	}
}

// resolve looks for an ACTIVE account first and falls back to a SUSPENDED
// one, so suspended users can be told how to proceed. It returns nil, nil
// when neither exists.
func (s *Service) resolve(ctx context.Context, username string, category Category) (*Account, error) {
	for _, status := range []Status{StatusActive, StatusSuspended} {
		account, err := s.accounts.FindByLogin(ctx, username, category, status)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "find account").
				With("status", status).
				Wrap(err)
		}
	}
	return nil, nil
}

func (s *Service) completeActive(ctx context.Context, account *Account, req LoginRequest) (*LoginResult, error) {
	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		s.upgradeHash(ctx, account, req.Password)
	}

	sessionID, err := s.sessions.CreateSession(ctx, account)
	if err != nil {
		return nil, err
	}

	redirect, err := s.catalog.RedirectFor(ctx, account, req.Portal)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		s.logger.WarnContext(ctx, "best-effort last login update failed",
			"operation", "update_last_login",
			"account_id", account.ID.String(),
			"error", err,
		)
	} else {
		account.LastLoginAt = &now
	}

	return &LoginResult{
		Outcome:    LoginActive,
		Account:    account,
		SessionID:  sessionID,
		RedirectTo: redirect,
	}, nil
}

func (s *Service) upgradeHash(ctx context.Context, account *Account, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort hash upgrade failed", "operation", "hash", "error", err)
		return
	}
	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		s.logger.WarnContext(ctx, "best-effort hash upgrade failed",
			"operation", "update_password_hash",
			"account_id", account.ID.String(),
			"error", err,
		)
		return
	}
	account.PasswordHash = hash
}
