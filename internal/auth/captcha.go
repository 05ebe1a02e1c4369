// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/dchest/captcha"
	"github.com/samber/oops"
)

// Captcha image geometry and answer length.
const (
	CaptchaDigits     = 6
	CaptchaWidth      = 240
	CaptchaHeight     = 80
	DefaultCaptchaTTL = 5 * time.Minute
)

// Challenge is a freshly generated captcha. Image is a PNG. The answer is
// only kept in the Token Store.
type Challenge struct {
	Token string
	Image []byte
}

// CaptchaService issues and checks image captchas.
type CaptchaService struct {
	tokens TokenStore
	ttl    time.Duration
	digits func(n int) []byte
}

// CaptchaOption configures a CaptchaService.
type CaptchaOption func(*CaptchaService)

// WithDigitSource replaces the random digit generator. Digits are 0-9 values.
func WithDigitSource(fn func(n int) []byte) CaptchaOption {
	return func(s *CaptchaService) {
		s.digits = fn
	}
}

// NewCaptchaService creates a CaptchaService whose challenges live for ttl.
func NewCaptchaService(tokens TokenStore, ttl time.Duration, opts ...CaptchaOption) (*CaptchaService, error) {
	if tokens == nil {
		return nil, oops.Errorf("token store is required")
	}
	if ttl <= 0 {
		return nil, oops.Code("AUTH_INVALID_TTL").With("ttl", ttl.String()).Errorf("captcha ttl must be positive")
	}
	s := &CaptchaService{tokens: tokens, ttl: ttl, digits: captcha.RandomDigits}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate creates a challenge and stores its answer.
func (s *CaptchaService) Generate(ctx context.Context) (*Challenge, error) {
	token, err := RandomToken(DefaultTokenBytes)
	if err != nil {
		return nil, err
	}

	digits := s.digits(CaptchaDigits)
	answer := make([]byte, len(digits))
	for i, d := range digits {
		answer[i] = '0' + d
	}

	var buf bytes.Buffer
	if _, err := captcha.NewImage(token, digits, CaptchaWidth, CaptchaHeight).WriteTo(&buf); err != nil {
		return nil, oops.Code("CAPTCHA_RENDER_FAILED").Wrap(err)
	}

	if err := s.tokens.Set(ctx, captchaPrefix+token, string(answer), s.ttl); err != nil {
		return nil, oops.Code("CAPTCHA_STORE_FAILED").Wrap(err)
	}
	return &Challenge{Token: token, Image: buf.Bytes()}, nil
}

// Verify reports whether answer matches the stored answer exactly. It does
// not consume the challenge; call Destroy once the guarded action succeeded.
func (s *CaptchaService) Verify(ctx context.Context, token, answer string) (bool, error) {
	if token == "" || answer == "" {
		return false, nil
	}
	stored, err := s.tokens.Get(ctx, captchaPrefix+token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("CAPTCHA_VERIFY_FAILED").Wrap(err)
	}
	return TokensEqual(stored, answer), nil
}

// Destroy invalidates a challenge before its expiry.
func (s *CaptchaService) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := s.tokens.Delete(ctx, captchaPrefix+token); err != nil {
		return oops.Code("CAPTCHA_DESTROY_FAILED").Wrap(err)
	}
	return nil
}
