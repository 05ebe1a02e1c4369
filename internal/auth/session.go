// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/talentdesk/backoffice/pkg/errutil"
)

// DefaultSessionTTL is the session lifetime when none is configured.
const DefaultSessionTTL = 8 * time.Hour

// SessionManager issues, validates and revokes cookie sessions.
//
// A session id maps to a signed {purpose: session, accountId} payload in the
// Token Store. The store entry and the payload share one expiry.
type SessionManager struct {
	accounts AccountRepository
	tokens   TokenStore
	codec    *Codec
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(accounts AccountRepository, tokens TokenStore, codec *Codec, ttl time.Duration) (*SessionManager, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token store is required")
	}
	if codec == nil {
		return nil, oops.Errorf("codec is required")
	}
	if ttl <= 0 {
		return nil, oops.Code("AUTH_INVALID_TTL").With("ttl", ttl.String()).Errorf("session ttl must be positive")
	}
	return &SessionManager{
		accounts: accounts,
		tokens:   tokens,
		codec:    codec,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// TTL returns the configured session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// CreateSession stores a new session for account and returns its id.
// The id is written to the Token Store before it is returned.
func (m *SessionManager) CreateSession(ctx context.Context, account *Account) (string, error) {
	nonce, err := RandomToken(16)
	if err != nil {
		return "", err
	}
	id := Fingerprint(account.ID.String(), account.Username, m.now().UTC().Format(time.RFC3339Nano), nonce)

	payload, err := m.codec.Sign(Claims{Purpose: PurposeSession, AccountID: account.ID.String()}, m.ttl)
	if err != nil {
		return "", err
	}

	if err := m.tokens.Set(ctx, sessionPrefix+id, payload, m.ttl); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	return id, nil
}

// ValidateSession resolves a session id to its ACTIVE account. It never
// writes. Every rejection satisfies errors.Is(err, ErrUnauthenticated) and
// carries code SESSION_INVALID with the underlying cause in its context;
// store failures are returned as SESSION_VALIDATE_FAILED instead.
func (m *SessionManager) ValidateSession(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, unauthenticated("SESSION_MISSING", nil)
	}

	payload, err := m.tokens.Get(ctx, sessionPrefix+id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, unauthenticated("SESSION_NOT_FOUND", nil)
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").With("operation", "get session").Wrap(err)
	}

	claims, err := m.codec.VerifyPurpose(payload, PurposeSession)
	if err != nil {
		return nil, unauthenticated(errutil.Code(err), err)
	}

	accountID, err := ulid.Parse(claims.AccountID)
	if err != nil {
		return nil, unauthenticated("SESSION_BAD_ACCOUNT_ID", err)
	}

	account, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, unauthenticated("SESSION_ACCOUNT_GONE", nil)
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get account").
			With("account_id", claims.AccountID).
			Wrap(err)
	}
	if account.Status != StatusActive {
		return nil, unauthenticated("SESSION_ACCOUNT_NOT_ACTIVE", nil)
	}
	return account, nil
}

// DestroySession deletes the session and reports whether one existed.
func (m *SessionManager) DestroySession(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	deleted, err := m.tokens.Delete(ctx, sessionPrefix+id)
	if err != nil {
		return false, oops.Code("SESSION_DESTROY_FAILED").Wrap(err)
	}
	return deleted, nil
}

// unauthenticated keeps the underlying error out of the chain so the
// outer code stays SESSION_INVALID.
func unauthenticated(cause string, err error) error {
	b := oops.Code("SESSION_INVALID").With("cause", cause)
	if err != nil {
		b = b.With("detail", err.Error())
	}
	return b.Wrap(ErrUnauthenticated)
}
