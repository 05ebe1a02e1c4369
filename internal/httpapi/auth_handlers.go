// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/talentdesk/backoffice/internal/auth"
	"github.com/talentdesk/backoffice/pkg/errutil"
)

type loginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	CaptchaToken  string `json:"captchaToken"`
	CaptchaAnswer string `json:"captchaAnswer"`
}

type loginResponse struct {
	Account    *auth.Account           `json:"account"`
	RedirectTo *auth.ServiceDescriptor `json:"redirectTo"`
}

// resetRequiredResponse carries the credential a never-signed-in account
// must redeem before its first login.
type resetRequiredResponse struct {
	Code      string    `json:"code"`
	Key       string    `json:"key"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) handleLogin(portal auth.Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}

		result, err := h.login.Login(r.Context(), auth.LoginRequest{
			Username:      req.Username,
			Password:      req.Password,
			Portal:        portal,
			CaptchaToken:  req.CaptchaToken,
			CaptchaAnswer: req.CaptchaAnswer,
		})
		if err != nil {
			h.metrics.RecordLogin(string(portal), "rejected")
			h.writeError(w, r, err)
			return
		}
		h.metrics.RecordLogin(string(portal), result.Outcome.String())

		switch result.Outcome {
		case auth.LoginActive:
			h.cookies.set(w, result.SessionID)
			writeJSON(w, http.StatusOK, loginResponse{Account: result.Account, RedirectTo: result.RedirectTo})
		case auth.LoginSuspendedNeverLoggedIn:
			writeJSON(w, http.StatusUnprocessableEntity, resetRequiredResponse{
				Code:      "AUTH_PASSWORD_RESET_REQUIRED",
				Key:       result.Reset.Key,
				Token:     result.Reset.Token,
				ExpiresAt: result.Reset.ExpiresAt,
			})
		case auth.LoginSuspendedPreviously:
			h.writeError(w, r, rejection("AUTH_ACCOUNT_SUSPENDED",
				"account is suspended, use the password reset link sent by email"))
		default:
			h.writeError(w, r, rejection("AUTH_INVALID_CREDENTIALS", msgInvalidCredentials))
		}
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	destroyed, err := h.sessions.DestroySession(r.Context(), h.cookies.read(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cookies.clear(w)
	if !destroyed {
		h.writeError(w, r, rejection("SESSION_NOT_FOUND", "no active session"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetRequest struct {
	Username string `json:"username"`
	Portal   string `json:"portal"`
}

func (h *Handler) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	portal, err := auth.ParsePortal(req.Portal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.resets.RequestReset(r.Context(), req.Username, portal); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"accepted": true})
}

type redeemRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type redeemResponse struct {
	Account    *auth.Account           `json:"account"`
	SessionID  string                  `json:"sessionId"`
	RedirectTo *auth.ServiceDescriptor `json:"redirectTo"`
}

func (h *Handler) handleRedeemReset(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.resets.RedeemReset(r.Context(), auth.RedeemRequest{
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Key:             chi.URLParam(r, "key"),
		Token:           chi.URLParam(r, "token"),
	})
	if err != nil {
		h.writeFlowError(w, r, "reset", err)
		return
	}
	writeJSON(w, http.StatusOK, redeemResponse{
		Account:    result.Account,
		SessionID:  result.SessionID,
		RedirectTo: result.RedirectTo,
	})
}

func (h *Handler) handleServices(w http.ResponseWriter, r *http.Request) {
	var (
		services []auth.ServiceDescriptor
		err      error
	)
	if account, ok := accountFrom(r.Context()); ok {
		services, err = h.catalog.Available(r.Context(), account.Role, auth.PortalFor(account.Category))
	} else {
		services, err = h.catalog.All(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if services == nil {
		services = []auth.ServiceDescriptor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

type meResponse struct {
	Account *auth.Account `json:"account"`
	Profile *auth.Profile `json:"profile"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	account, _ := accountFrom(r.Context())

	profile, err := h.accounts.GetProfile(r.Context(), account.ID)
	if err != nil && !errors.Is(err, auth.ErrNotFound) {
		h.writeError(w, r, err)
		return
	}
	if err != nil {
		errutil.LogWarn(r.Context(), h.logger, "account has no profile", err)
	}
	writeJSON(w, http.StatusOK, meResponse{Account: account, Profile: profile})
}

type captchaResponse struct {
	Token string `json:"token"`
	Image string `json:"image"`
}

func (h *Handler) handleCaptcha(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.captcha.Generate(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, captchaResponse{
		Token: challenge.Token,
		Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString(challenge.Image),
	})
}
