// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	bomail "github.com/talentdesk/backoffice/internal/mail"
)

// DefaultActivationTTL is how long an activation link stays valid.
const DefaultActivationTTL = 24 * time.Hour

// RegistrationStatusNew is the status reported for a staged registration.
const RegistrationStatusNew = "NEW"

// RegistrationForm is a candidate's self-registration request.
type RegistrationForm struct {
	Username        string
	Password        string
	ConfirmPassword string
	FullName        string
	Nickname        string
	Email           string
	Phone           string
	Birthdate       *time.Time
	CaptchaToken    string
	CaptchaAnswer   string
}

// AccountDraft is a staged registration. It travels inside the signed
// activation payload and holds the password hash, never the password.
type AccountDraft struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"passwordHash"`
	FullName     string     `json:"fullName"`
	Nickname     string     `json:"nickname,omitempty"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	Birthdate    *time.Time `json:"birthdate,omitempty"`
}

// ActivationReceipt is returned by PreRegister. AccountID is the activation
// key, standing in for the id the account receives on activation.
type ActivationReceipt struct {
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
}

// RegistrationDeps are the collaborators of a RegistrationService.
type RegistrationDeps struct {
	Accounts AccountRepository
	Tokens   TokenStore
	Codec    *Codec
	Hasher   PasswordHasher
	Captcha  *CaptchaService
	Mailer   Mailer
	Links    Links
	TTL      time.Duration
	Logger   *slog.Logger
	Clock    func() time.Time
}

// RegistrationService stages candidate registrations behind an emailed
// key/token pair and creates the account only on activation.
type RegistrationService struct {
	accounts AccountRepository
	tokens   TokenStore
	codec    *Codec
	hasher   PasswordHasher
	captcha  *CaptchaService
	mailer   Mailer
	links    Links
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRegistrationService creates a RegistrationService.
func NewRegistrationService(deps RegistrationDeps) (*RegistrationService, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.Errorf("account repository is required")
	case deps.Tokens == nil:
		return nil, oops.Errorf("token store is required")
	case deps.Codec == nil:
		return nil, oops.Errorf("codec is required")
	case deps.Hasher == nil:
		return nil, oops.Errorf("password hasher is required")
	case deps.Captcha == nil:
		return nil, oops.Errorf("captcha service is required")
	case deps.Mailer == nil:
		return nil, oops.Errorf("mailer is required")
	}
	s := &RegistrationService{
		accounts: deps.Accounts,
		tokens:   deps.Tokens,
		codec:    deps.Codec,
		hasher:   deps.Hasher,
		captcha:  deps.Captcha,
		mailer:   deps.Mailer,
		links:    deps.Links,
		ttl:      deps.TTL,
		logger:   deps.Logger,
		now:      deps.Clock,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultActivationTTL
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// PreRegister validates form, stages it in the Token Store and emails the
// activation link. No account or profile is written.
func (s *RegistrationService) PreRegister(ctx context.Context, form RegistrationForm) (*ActivationReceipt, error) {
	ok, err := s.captcha.Verify(ctx, form.CaptchaToken, form.CaptchaAnswer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, oops.Code("AUTH_CAPTCHA_INVALID").Errorf("captcha answer is wrong or expired")
	}

	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)
	if err := validateForm(form); err != nil {
		return nil, err
	}

	taken, err := s.accounts.UsernameExists(ctx, form.Username)
	if err != nil {
		return nil, oops.Code("REGISTRATION_FAILED").With("operation", "check username").Wrap(err)
	}
	if taken {
		return nil, oops.Code("REGISTRATION_USERNAME_TAKEN").
			With("username", form.Username).
			Errorf("username is already registered")
	}

	hash, err := s.hasher.Hash(form.Password)
	if err != nil {
		return nil, oops.Code("REGISTRATION_FAILED").With("operation", "hash password").Wrap(err)
	}

	draft := &AccountDraft{
		Username:     form.Username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(form.FullName),
		Nickname:     strings.TrimSpace(form.Nickname),
		Email:        form.Email,
		Phone:        strings.TrimSpace(form.Phone),
		Birthdate:    form.Birthdate,
	}

	key, token, err := newKeyTokenPair(s.now(), string(PurposeActivation), draft.Username, draft.Email)
	if err != nil {
		return nil, oops.Code("REGISTRATION_FAILED").With("operation", "generate key").Wrap(err)
	}
	payload, err := s.codec.Sign(Claims{Purpose: PurposeActivation, Token: token, Draft: draft}, s.ttl)
	if err != nil {
		return nil, oops.Code("REGISTRATION_FAILED").With("operation", "sign draft").Wrap(err)
	}
	if err := s.tokens.Set(ctx, activationPrefix+key, payload, s.ttl); err != nil {
		return nil, oops.Code("REGISTRATION_FAILED").With("operation", "store draft").Wrap(err)
	}

	if err := s.captcha.Destroy(ctx, form.CaptchaToken); err != nil {
		s.logger.WarnContext(ctx, "best-effort captcha destroy failed", "operation", "destroy_captcha", "error", err)
	}

	s.sendActivation(ctx, draft, key, token)

	return &ActivationReceipt{AccountID: key, Status: RegistrationStatusNew}, nil
}

func (s *RegistrationService) sendActivation(ctx context.Context, draft *AccountDraft, key, token string) {
	msg, err := bomail.Activation(draft.Email, draft.FullName, s.links.ActivationURL(key, token), s.ttl)
	if err != nil {
		s.logger.ErrorContext(ctx, "activation mail not rendered", "error", err)
		return
	}
	s.mailer.Dispatch(msg)
}

// PreActivation returns the staged draft when key and token match.
func (s *RegistrationService) PreActivation(ctx context.Context, key, token string) (*AccountDraft, error) {
	payload, err := s.tokens.Get(ctx, activationPrefix+key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("TOKEN_NOT_FOUND").With("flow", "activation").Wrap(ErrInvalidToken)
		}
		return nil, oops.Code("REGISTRATION_FAILED").With("operation", "load draft").Wrap(err)
	}

	claims, err := s.codec.VerifyPurpose(payload, PurposeActivation)
	if err != nil {
		return nil, err
	}
	if !TokensEqual(claims.Token, token) {
		return nil, oops.Code("TOKEN_MISMATCH").With("flow", "activation").Wrap(ErrInvalidToken)
	}
	if claims.Draft == nil {
		return nil, oops.Code("TOKEN_MALFORMED").With("flow", "activation").Wrap(ErrInvalidToken)
	}
	return claims.Draft, nil
}

// Activate creates the candidate account and profile from draft in one
// transaction, then deletes the activation key.
func (s *RegistrationService) Activate(ctx context.Context, key string, draft *AccountDraft) (*Account, error) {
	now := s.now().UTC()
	account := &Account{
		ID:           ulid.Make(),
		Username:     draft.Username,
		PasswordHash: draft.PasswordHash,
		Status:       StatusActive,
		Category:     CategoryCandidate,
		Role:         CandidateRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := &Profile{
		AccountID: account.ID,
		FullName:  draft.FullName,
		Nickname:  draft.Nickname,
		Email:     draft.Email,
		Phone:     draft.Phone,
		Birthdate: draft.Birthdate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.accounts.Create(ctx, account, profile); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, oops.Code("REGISTRATION_USERNAME_TAKEN").
				With("username", draft.Username).
				Errorf("username is already registered")
		}
		return nil, oops.Code("REGISTRATION_ACTIVATE_FAILED").
			With("operation", "create account").
			With("detail", err.Error()).
			Errorf("activation failed")
	}

	if _, err := s.tokens.Delete(ctx, activationPrefix+key); err != nil {
		s.logger.WarnContext(ctx, "best-effort activation key delete failed",
			"operation", "delete_activation_key",
			"account_id", account.ID.String(),
			"error", err,
		)
	}
	return account, nil
}

// ActivateWithToken runs PreActivation and Activate.
func (s *RegistrationService) ActivateWithToken(ctx context.Context, key, token string) (*Account, error) {
	draft, err := s.PreActivation(ctx, key, token)
	if err != nil {
		return nil, err
	}
	return s.Activate(ctx, key, draft)
}

func validateForm(form RegistrationForm) error {
	if err := ValidateUsername(form.Username); err != nil {
		return err
	}
	if err := ValidatePassword(form.Password, form.ConfirmPassword); err != nil {
		return err
	}
	if strings.TrimSpace(form.FullName) == "" {
		return oops.Code("REGISTRATION_INVALID").With("field", "fullName").Errorf("full name is required")
	}
	if _, err := mail.ParseAddress(form.Email); err != nil || !strings.Contains(form.Email, "@") {
		return oops.Code("REGISTRATION_INVALID").With("field", "email").Errorf("email is not valid")
	}
	return nil
}
