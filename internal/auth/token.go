// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// DefaultTokenBytes is the entropy of bearer tokens and session ids.
const DefaultTokenBytes = 32

// Token Store key prefixes. Every ephemeral credential is namespaced so
// a key from one flow can never be redeemed in another.
const (
	sessionPrefix       = "session:"
	resetPrefix         = "reset:"
	activationPrefix    = "activation:"
	captchaPrefix       = "captcha:"
	loginFailuresPrefix = "login-failures:"
)

// TokenStore is the key-value cache holding every ephemeral credential.
// All operations are single-key and atomic in the backing store.
type TokenStore interface {
	// Set stores value under key with the given expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Take returns the value and deletes the key in one step, or ErrNotFound.
	Take(ctx context.Context, key string) (string, error)

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Incr increments a counter. ttl is applied when the counter is created
	// and is not extended by later increments.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RandomToken returns n cryptographically random bytes, hex encoded.
func RandomToken(n int) (string, error) {
	if n <= 0 {
		return "", oops.Code("AUTH_TOKEN_LENGTH").With("bytes", n).Errorf("token length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", n).
			Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// Fingerprint is a fast, non-secret SHA-256 digest of its parts. It builds
// opaque cache keys and is never used for password storage.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TokensEqual compares two bearer secrets in constant time.
func TokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// newKeyTokenPair generates the key (a fingerprint) and the token (the
// random secret) of a one-time link credential.
func newKeyTokenPair(now time.Time, purpose string, parts ...string) (key, token string, err error) {
	nonce, err := RandomToken(16)
	if err != nil {
		return "", "", err
	}
	parts = append(parts, now.UTC().Format(time.RFC3339Nano), purpose, nonce)
	key = Fingerprint(parts...)

	token, err = RandomToken(DefaultTokenBytes)
	if err != nil {
		return "", "", err
	}
	return key, token, nil
}
