// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/talentdesk/backoffice/internal/mail"
)

// DefaultResetTTL is how long a reset link stays valid.
const DefaultResetTTL = 30 * time.Minute

// ResetCredential is a one-time key/token pair. The key indexes the Token
// Store entry and the token is the secret proving possession of the link.
type ResetCredential struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

// String joins key and token the way reset links carry them.
func (c ResetCredential) String() string {
	return c.Key + "/" + c.Token
}

// RedeemRequest is a password reset submission.
type RedeemRequest struct {
	Password        string
	ConfirmPassword string
	Key             string
	Token           string
}

// ResetResult describes the account after a reset. SessionID is always
// empty: the user signs in again with the new password.
type ResetResult struct {
	Account    *Account
	SessionID  string
	RedirectTo *ServiceDescriptor
}

// ResetDeps are the collaborators of a PasswordResetService.
type ResetDeps struct {
	Accounts AccountRepository
	Tokens   TokenStore
	Codec    *Codec
	Hasher   PasswordHasher
	Mailer   Mailer
	Catalog  *Catalog
	Links    Links
	TTL      time.Duration
	Logger   *slog.Logger
	Clock    func() time.Time
}

// PasswordResetService issues and redeems password reset links.
type PasswordResetService struct {
	accounts AccountRepository
	tokens   TokenStore
	codec    *Codec
	hasher   PasswordHasher
	mailer   Mailer
	catalog  *Catalog
	links    Links
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewPasswordResetService creates a PasswordResetService.
func NewPasswordResetService(deps ResetDeps) (*PasswordResetService, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.Errorf("account repository is required")
	case deps.Tokens == nil:
		return nil, oops.Errorf("token store is required")
	case deps.Codec == nil:
		return nil, oops.Errorf("codec is required")
	case deps.Hasher == nil:
		return nil, oops.Errorf("password hasher is required")
	case deps.Mailer == nil:
		return nil, oops.Errorf("mailer is required")
	case deps.Catalog == nil:
		return nil, oops.Errorf("catalog is required")
	}
	s := &PasswordResetService{
		accounts: deps.Accounts,
		tokens:   deps.Tokens,
		codec:    deps.Codec,
		hasher:   deps.Hasher,
		mailer:   deps.Mailer,
		catalog:  deps.Catalog,
		links:    deps.Links,
		ttl:      deps.TTL,
		logger:   deps.Logger,
		now:      deps.Clock,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultResetTTL
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// RequestReset issues a reset link for the account matching login in
// portal, suspends the account and emails the link. The status flip always
// happens before the email is queued. Unknown accounts fail with
// RESET_ACCOUNT_NOT_FOUND wrapping ErrNotFound.
func (s *PasswordResetService) RequestReset(ctx context.Context, login string, portal Portal) (*ResetCredential, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, oops.Code("RESET_ACCOUNT_NOT_FOUND").Wrap(ErrNotFound)
	}

	account, err := s.accounts.FindByLogin(ctx, login, portal.Category(), StatusActive, StatusSuspended)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("RESET_ACCOUNT_NOT_FOUND").With("portal", portal).Wrap(ErrNotFound)
		}
		return nil, oops.Code("RESET_REQUEST_FAILED").With("operation", "find account").Wrap(err)
	}

	cred, err := s.issue(ctx, account)
	if err != nil {
		return nil, err
	}

	if account.Status != StatusSuspended {
		if err := s.accounts.UpdateStatus(ctx, account.ID, StatusSuspended); err != nil {
			return nil, oops.Code("RESET_REQUEST_FAILED").
				With("operation", "suspend account").
				With("account_id", account.ID.String()).
				Wrap(err)
		}
	}

	s.sendResetLink(ctx, account, portal, cred)
	return cred, nil
}

// issue stores a signed {accountId, token} payload under a fresh key.
func (s *PasswordResetService) issue(ctx context.Context, account *Account) (*ResetCredential, error) {
	now := s.now()
	key, token, err := newKeyTokenPair(now, "password-reset", account.ID.String(), account.Username)
	if err != nil {
		return nil, oops.Code("RESET_REQUEST_FAILED").With("operation", "generate key").Wrap(err)
	}

	payload, err := s.codec.Sign(Claims{Purpose: PurposeReset, AccountID: account.ID.String(), Token: token}, s.ttl)
	if err != nil {
		return nil, oops.Code("RESET_REQUEST_FAILED").With("operation", "sign payload").Wrap(err)
	}
	if err := s.tokens.Set(ctx, resetPrefix+key, payload, s.ttl); err != nil {
		return nil, oops.Code("RESET_REQUEST_FAILED").With("operation", "store credential").Wrap(err)
	}
	return &ResetCredential{Key: key, Token: token, ExpiresAt: now.Add(s.ttl)}, nil
}

func (s *PasswordResetService) sendResetLink(ctx context.Context, account *Account, portal Portal, cred *ResetCredential) {
	to, name := account.Username, ""
	profile, err := s.accounts.GetProfile(ctx, account.ID)
	switch {
	case err == nil:
		name = profile.FullName
		if profile.Email != "" {
			to = profile.Email
		}
	case !errors.Is(err, ErrNotFound):
		s.logger.WarnContext(ctx, "best-effort profile lookup failed",
			"operation", "get_profile",
			"account_id", account.ID.String(),
			"error", err,
		)
	}
	if !strings.Contains(to, "@") {
		s.logger.ErrorContext(ctx, "reset link not sent, account has no email address",
			"account_id", account.ID.String())
		return
	}

	msg, err := mail.PasswordReset(to, name, s.links.ResetURL(portal, cred.Key, cred.Token), s.ttl)
	if err != nil {
		s.logger.ErrorContext(ctx, "reset mail not rendered", "account_id", account.ID.String(), "error", err)
		return
	}
	s.mailer.Dispatch(msg)
}

// RedeemReset sets a new password from a reset link. Password validation
// runs before any Token Store access. The key is consumed atomically, so
// only one redemption of a link can succeed. A wrong token leaves the
// credential in place until it expires.
func (s *PasswordResetService) RedeemReset(ctx context.Context, req RedeemRequest) (*ResetResult, error) {
	if err := ValidatePassword(req.Password, req.ConfirmPassword); err != nil {
		return nil, err
	}

	payload, err := s.tokens.Get(ctx, resetPrefix+req.Key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TOKEN_NOT_FOUND").With("flow", "reset").Wrap(ErrInvalidToken)
		}
		return nil, oops.Code("RESET_REDEEM_FAILED").With("operation", "load credential").Wrap(err)
	}

	claims, err := s.codec.VerifyPurpose(payload, PurposeReset)
	if err != nil {
		return nil, err
	}
	if !TokensEqual(claims.Token, req.Token) {
		return nil, oops.Code("TOKEN_MISMATCH").With("flow", "reset").Wrap(ErrInvalidToken)
	}
	accountID, err := ulid.Parse(claims.AccountID)
	if err != nil {
		return nil, oops.Code("TOKEN_MALFORMED").With("flow", "reset").Wrap(ErrInvalidToken)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.Code("RESET_REDEEM_FAILED").With("operation", "hash password").Wrap(err)
	}

	if _, err := s.tokens.Take(ctx, resetPrefix+req.Key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TOKEN_NOT_FOUND").With("flow", "reset").Wrap(ErrInvalidToken)
		}
		return nil, oops.Code("RESET_REDEEM_FAILED").With("operation", "consume credential").Wrap(err)
	}

	if err := s.accounts.CompleteReset(ctx, accountID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TOKEN_STALE").
				With("flow", "reset").
				With("account_id", accountID.String()).
				Wrap(ErrInvalidToken)
		}
		return nil, oops.Code("RESET_REDEEM_FAILED").With("operation", "complete reset").Wrap(err)
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, oops.Code("RESET_REDEEM_FAILED").With("operation", "reload account").Wrap(err)
	}

	return &ResetResult{
		Account:    account,
		RedirectTo: s.catalog.LoginPage(PortalFor(account.Category)),
	}, nil
}

// PortalFor returns the portal an account category signs in through.
func PortalFor(c Category) Portal {
	if c == CategoryCandidate {
		return PortalCandidate
	}
	return PortalStaff
}
