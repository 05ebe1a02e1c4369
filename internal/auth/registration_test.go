// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/talentdesk/backoffice/internal/auth"
	"github.com/talentdesk/backoffice/internal/auth/authtest"
	"github.com/talentdesk/backoffice/internal/mail"
	"github.com/talentdesk/backoffice/pkg/errutil"
)

func validForm(t *testing.T, h *harness) auth.RegistrationForm {
	t.Helper()
	challenge, err := h.captcha.Generate(context.Background())
	require.NoError(t, err)
	return auth.RegistrationForm{
		Username:        "hana",
		Password:        "Password123",
		ConfirmPassword: "Password123",
		FullName:        "Hana Kim",
		Email:           "hana@example.com",
		CaptchaToken:    challenge.Token,
		CaptchaAnswer:   captchaAnswer,
	}
}

// activationParts pulls key and token out of the emailed activation link.
func activationParts(t *testing.T, msg mail.Message) (key, token string) {
	t.Helper()
	const marker = "https://jobs.example.com/activation/"
	i := strings.Index(msg.Text, marker)
	require.GreaterOrEqual(t, i, 0, "activation link in mail body")
	rest := strings.Fields(msg.Text[i+len(marker):])[0]
	parts := strings.Split(rest, "/")
	require.Len(t, parts, 2)
	return parts[0], parts[1]
}

func TestPreRegister_StagesWithoutWriting(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	form := validForm(t, h)

	receipt, err := h.registration.PreRegister(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, auth.RegistrationStatusNew, receipt.Status)
	assert.NotEmpty(t, receipt.AccountID)

	assert.Zero(t, h.accounts.Count())
	assert.Zero(t, h.accounts.ProfileCount())

	msgs := h.mailer.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, mail.KindActivation, msgs[0].Kind)
	assert.Equal(t, "hana@example.com", msgs[0].To)
	key, _ := activationParts(t, msgs[0])
	assert.Equal(t, receipt.AccountID, key)

	ok, err := h.captcha.Verify(ctx, form.CaptchaToken, captchaAnswer)
	require.NoError(t, err)
	assert.False(t, ok, "captcha is destroyed after use")
}

func TestPreRegister_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*auth.RegistrationForm)
		code   string
	}{
		{"wrong captcha", func(f *auth.RegistrationForm) { f.CaptchaAnswer = "999999" }, "AUTH_CAPTCHA_INVALID"},
		{"missing captcha", func(f *auth.RegistrationForm) { f.CaptchaToken = "" }, "AUTH_CAPTCHA_INVALID"},
		{"bad username", func(f *auth.RegistrationForm) { f.Username = "a" }, "AUTH_INVALID_USERNAME"},
		{"password mismatch", func(f *auth.RegistrationForm) { f.ConfirmPassword = "Password124" }, "AUTH_PASSWORD_MISMATCH"},
		{"no full name", func(f *auth.RegistrationForm) { f.FullName = "  " }, "REGISTRATION_INVALID"},
		{"bad email", func(f *auth.RegistrationForm) { f.Email = "not-an-email" }, "REGISTRATION_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			form := validForm(t, h)
			tt.mutate(&form)

			_, err := h.registration.PreRegister(context.Background(), form)
			errutil.AssertErrorCode(t, err, tt.code)
			assert.Empty(t, h.mailer.Messages())
		})
	}
}

func TestPreRegister_DuplicateUsername(t *testing.T) {
	h := newHarness(t)
	h.addAccount(t, accountFixture{username: "Hana", password: "Password123"})

	_, err := h.registration.PreRegister(context.Background(), validForm(t, h))
	errutil.AssertErrorCode(t, err, "REGISTRATION_USERNAME_TAKEN")
}

func TestActivation_CreatesCandidate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.registration.PreRegister(ctx, validForm(t, h))
	require.NoError(t, err)
	key, token := activationParts(t, h.mailer.Messages()[0])

	draft, err := h.registration.PreActivation(ctx, key, token)
	require.NoError(t, err)
	assert.Equal(t, "hana", draft.Username)
	assert.Equal(t, "Hana Kim", draft.FullName)
	assert.NotEqual(t, "Password123", draft.PasswordHash)

	account, err := h.registration.Activate(ctx, key, draft)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusActive, account.Status)
	assert.Equal(t, auth.CategoryCandidate, account.Category)
	assert.Equal(t, auth.CandidateRole, account.Role)

	profile, err := h.accounts.GetProfile(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "hana@example.com", profile.Email)

	_, err = h.registration.PreActivation(ctx, key, token)
	require.ErrorIs(t, err, auth.ErrInvalidToken, "activation key is gone")

	login, err := h.login.Login(ctx, auth.LoginRequest{Username: "hana", Password: "Password123", Portal: auth.PortalCandidate})
	require.NoError(t, err)
	assert.Equal(t, auth.LoginActive, login.Outcome)
}

func TestPreActivation_Rejects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.registration.PreRegister(ctx, validForm(t, h))
	require.NoError(t, err)
	key, token := activationParts(t, h.mailer.Messages()[0])

	_, err = h.registration.PreActivation(ctx, key, "deadbeef")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
	errutil.AssertErrorCode(t, err, "TOKEN_MISMATCH")

	_, err = h.registration.PreActivation(ctx, "unknown", token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
	errutil.AssertErrorCode(t, err, "TOKEN_NOT_FOUND")

	h.clock.Advance(auth.DefaultActivationTTL)
	_, err = h.registration.PreActivation(ctx, key, token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestActivate_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.registration.PreRegister(ctx, validForm(t, h))
	require.NoError(t, err)
	key, token := activationParts(t, h.mailer.Messages()[0])

	// Someone else took the name between registration and activation.
	h.addAccount(t, accountFixture{username: "hana", password: "Password123"})

	_, err = h.registration.ActivateWithToken(ctx, key, token)
	errutil.AssertErrorCode(t, err, "REGISTRATION_USERNAME_TAKEN")
}

func TestActivate_RepositoryFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	accounts := authtest.NewMockAccountRepository(t)
	accounts.EXPECT().Create(mock.Anything, mock.AnythingOfType("*auth.Account"), mock.AnythingOfType("*auth.Profile")).
		Return(errors.New("insert or update on table violates foreign key constraint"))

	svc, err := auth.NewRegistrationService(auth.RegistrationDeps{
		Accounts: accounts,
		Tokens:   h.tokens,
		Codec:    h.codec,
		Hasher:   h.hasher,
		Captcha:  h.captcha,
		Mailer:   h.mailer,
		Links:    testLinks,
	})
	require.NoError(t, err)

	_, err = svc.Activate(ctx, "key", &auth.AccountDraft{Username: "hana", PasswordHash: "x", Email: "hana@example.com"})
	errutil.AssertErrorCode(t, err, "REGISTRATION_ACTIVATE_FAILED")
	errutil.AssertErrorContext(t, err, "operation", "create account")
}
