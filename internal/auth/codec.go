// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSecretLength is the minimum signing secret size in bytes.
const MinSecretLength = 32

const codecIssuer = "backoffice"

// Purpose binds a signed payload to the flow that issued it.
type Purpose string

// Payload purposes.
const (
	PurposeSession    Purpose = "session"
	PurposeReset      Purpose = "reset"
	PurposeActivation Purpose = "activation"
)

// Claims is the payload of every signed token.
type Claims struct {
	Purpose   Purpose       `json:"pur"`
	AccountID string        `json:"aid,omitempty"`
	Token     string        `json:"tok,omitempty"`
	Draft     *AccountDraft `json:"draft,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens with a server-held secret.
//
// Retired secrets keep verifying until they are removed from configuration.
// Each token names its key in the kid header.
type Codec struct {
	currentKID string
	keys       map[string][]byte
	now        func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec builds a codec that signs with secret and also accepts tokens
// signed with any of previous.
func NewCodec(secret string, previous []string, opts ...CodecOption) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("AUTH_SECRET_TOO_SHORT").
			With("min_length", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}

	c := &Codec{
		currentKID: keyID(secret),
		keys:       map[string][]byte{keyID(secret): []byte(secret)},
		now:        time.Now,
	}
	for _, old := range previous {
		if len(old) < MinSecretLength {
			return nil, oops.Code("AUTH_SECRET_TOO_SHORT").
				With("min_length", MinSecretLength).
				Errorf("previous signing secret must be at least %d bytes", MinSecretLength)
		}
		c.keys[keyID(old)] = []byte(old)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func keyID(secret string) string {
	return Fingerprint("kid", secret)[:16]
}

// Sign embeds claims and an expiry of now+ttl into a compact token.
func (c *Codec) Sign(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", oops.Code("AUTH_INVALID_TTL").With("ttl", ttl.String()).Errorf("ttl must be positive")
	}
	if claims.Purpose == "" {
		return "", oops.Code("AUTH_TOKEN_PURPOSE_MISSING").Errorf("claims need a purpose")
	}

	now := c.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    codecIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = c.currentKID

	signed, err := token.SignedString(c.keys[c.currentKID])
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_SIGN_FAILED").With("purpose", claims.Purpose).Wrap(err)
	}
	return signed, nil
}

// Verify checks signature and expiry. Every failure wraps ErrInvalidToken
// and carries one of the codes TOKEN_MALFORMED, TOKEN_EXPIRED,
// TOKEN_SIGNATURE_INVALID or TOKEN_INVALID.
func (c *Codec) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, oops.Code("TOKEN_MALFORMED").Wrap(ErrInvalidToken)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, c.lookupKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(codecIssuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, oops.Code(tokenFailureCode(err)).With("cause", err.Error()).Wrap(ErrInvalidToken)
	}
	return claims, nil
}

// VerifyPurpose is Verify plus a check that the token was issued for purpose.
func (c *Codec) VerifyPurpose(token string, purpose Purpose) (*Claims, error) {
	claims, err := c.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, oops.Code("TOKEN_PURPOSE_MISMATCH").
			With("expected", purpose).
			With("actual", claims.Purpose).
			Wrap(ErrInvalidToken)
	}
	return claims, nil
}

func (c *Codec) lookupKey(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string) //nolint:errcheck // missing kid falls through to the lookup miss
	key, ok := c.keys[kid]
	if !ok {
		return nil, oops.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

func tokenFailureCode(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "TOKEN_MALFORMED"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "TOKEN_SIGNATURE_INVALID"
	default:
		return "TOKEN_INVALID"
	}
}
