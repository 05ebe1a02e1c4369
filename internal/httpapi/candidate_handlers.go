// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/talentdesk/backoffice/internal/auth"
)

const birthdateLayout = "2006-01-02"

type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FullName        string `json:"fullName"`
	Nickname        string `json:"nickname"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Birthdate       string `json:"birthdate"`
	CaptchaToken    string `json:"captchaToken"`
	CaptchaAnswer   string `json:"captchaAnswer"`
}

func (req registerRequest) form() (auth.RegistrationForm, error) {
	form := auth.RegistrationForm{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FullName:        req.FullName,
		Nickname:        req.Nickname,
		Email:           req.Email,
		Phone:           req.Phone,
		CaptchaToken:    req.CaptchaToken,
		CaptchaAnswer:   req.CaptchaAnswer,
	}
	if b := strings.TrimSpace(req.Birthdate); b != "" {
		t, err := time.Parse(birthdateLayout, b)
		if err != nil {
			return form, oops.Code("REQUEST_INVALID").
				With("field", "birthdate").
				Errorf("birthdate must be formatted as YYYY-MM-DD")
		}
		form.Birthdate = &t
	}
	return form, nil
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	form, err := req.form()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	receipt, err := h.registration.PreRegister(r.Context(), form)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	account, err := h.registration.ActivateWithToken(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "token"))
	if err != nil {
		h.writeFlowError(w, r, "activation", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]*auth.Account{"account": account})
}
