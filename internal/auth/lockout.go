// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
)

// LockoutPolicy decides when repeated login failures need a captcha and
// when they lock the username for the rest of the window.
type LockoutPolicy struct {
	// Threshold is the number of failures that locks the username.
	Threshold int
	// CaptchaThreshold is the number of failures after which a captcha is required.
	CaptchaThreshold int
	// Window is how long failures are remembered, counted from the first one.
	Window time.Duration
}

// DefaultLockoutPolicy locks after 7 failures and asks for a captcha after 4.
var DefaultLockoutPolicy = LockoutPolicy{
	Threshold:        7,
	CaptchaThreshold: 4,
	Window:           15 * time.Minute,
}

// Validate rejects policies that can never trigger or never expire.
func (p LockoutPolicy) Validate() error {
	if p.Threshold <= 0 || p.CaptchaThreshold <= 0 {
		return oops.Code("AUTH_INVALID_LOCKOUT").
			With("threshold", p.Threshold).
			With("captcha_threshold", p.CaptchaThreshold).
			Errorf("lockout thresholds must be positive")
	}
	if p.CaptchaThreshold > p.Threshold {
		return oops.Code("AUTH_INVALID_LOCKOUT").
			With("threshold", p.Threshold).
			With("captcha_threshold", p.CaptchaThreshold).
			Errorf("captcha threshold cannot exceed lockout threshold")
	}
	if p.Window <= 0 {
		return oops.Code("AUTH_INVALID_LOCKOUT").With("window", p.Window.String()).Errorf("lockout window must be positive")
	}
	return nil
}

// GuardState is the login-throttling state for one subject.
type GuardState struct {
	Failures        int
	RequiresCaptcha bool
	IsLockedOut     bool
}

// Evaluate maps a failure count onto the policy.
func (p LockoutPolicy) Evaluate(failures int) GuardState {
	return GuardState{
		Failures:        failures,
		RequiresCaptcha: failures >= p.CaptchaThreshold,
		IsLockedOut:     failures >= p.Threshold,
	}
}

// LoginGuard counts failed logins per portal and subject in the Token
// Store. The subject comes from LoginSubject. It never touches the account
// record, so a failed login leaves account state unchanged.
type LoginGuard struct {
	tokens TokenStore
	policy LockoutPolicy
}

// NewLoginGuard creates a LoginGuard.
func NewLoginGuard(tokens TokenStore, policy LockoutPolicy) (*LoginGuard, error) {
	if tokens == nil {
		return nil, oops.Errorf("token store is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &LoginGuard{tokens: tokens, policy: policy}, nil
}

// Policy returns the configured policy.
func (g *LoginGuard) Policy() LockoutPolicy {
	return g.policy
}

// LoginSubject names the failure counter for a login attempt. A resolved
// account is counted by its ID, so every alias of the account (username or
// email) shares one counter. Unknown logins are counted by the normalized
// login string.
func LoginSubject(account *Account, login string) string {
	if account != nil {
		return "account:" + account.ID.String()
	}
	return "login:" + strings.ToLower(strings.TrimSpace(login))
}

func (g *LoginGuard) key(portal Portal, subject string) string {
	return loginFailuresPrefix + Fingerprint(string(portal), strings.ToLower(strings.TrimSpace(subject)))
}

// Check returns the current state without recording anything.
func (g *LoginGuard) Check(ctx context.Context, portal Portal, subject string) (GuardState, error) {
	raw, err := g.tokens.Get(ctx, g.key(portal, subject))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return g.policy.Evaluate(0), nil
		}
		return GuardState{}, oops.Code("AUTH_GUARD_FAILED").With("operation", "read failures").Wrap(err)
	}
	failures, err := strconv.Atoi(raw)
	if err != nil {
		return GuardState{}, oops.Code("AUTH_GUARD_FAILED").With("value", raw).Wrap(err)
	}
	return g.policy.Evaluate(failures), nil
}

// RecordFailure increments the counter. The window starts at the first failure.
func (g *LoginGuard) RecordFailure(ctx context.Context, portal Portal, subject string) (GuardState, error) {
	n, err := g.tokens.Incr(ctx, g.key(portal, subject), g.policy.Window)
	if err != nil {
		return GuardState{}, oops.Code("AUTH_GUARD_FAILED").With("operation", "record failure").Wrap(err)
	}
	return g.policy.Evaluate(int(n)), nil
}

// Reset clears the counter after a successful login.
func (g *LoginGuard) Reset(ctx context.Context, portal Portal, subject string) error {
	if _, err := g.tokens.Delete(ctx, g.key(portal, subject)); err != nil {
		return oops.Code("AUTH_GUARD_FAILED").With("operation", "reset failures").Wrap(err)
	}
	return nil
}
