// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/talentdesk/backoffice/internal/auth"
	"github.com/talentdesk/backoffice/pkg/errutil"
)

// Public messages for codes whose error text is not shown to clients.
const (
	msgInvalidToken       = "invalid key/token combination"
	msgInvalidCredentials = "invalid username or password"
	msgInternal           = "internal error"
)

// errorMapping is the HTTP answer for one error code. expose passes the
// error's own message through; it is only set for validation errors built
// from constant text.
type errorMapping struct {
	status  int
	message string
	expose  bool
}

var codeMappings = map[string]errorMapping{
	"REQUEST_INVALID":              {status: http.StatusBadRequest, expose: true},
	"AUTH_INVALID_USERNAME":        {status: http.StatusBadRequest, expose: true},
	"AUTH_INVALID_PASSWORD":        {status: http.StatusBadRequest, expose: true},
	"AUTH_PASSWORD_MISMATCH":       {status: http.StatusBadRequest, expose: true},
	"AUTH_EMPTY_PASSWORD":          {status: http.StatusBadRequest, expose: true},
	"AUTH_INVALID_PORTAL":          {status: http.StatusBadRequest, expose: true},
	"AUTH_CAPTCHA_INVALID":         {status: http.StatusBadRequest, expose: true},
	"REGISTRATION_INVALID":         {status: http.StatusBadRequest, expose: true},
	"REGISTRATION_USERNAME_TAKEN":  {status: http.StatusBadRequest, expose: true},
	"RESET_ACCOUNT_NOT_FOUND":      {status: http.StatusBadRequest, message: "no account matches that username"},
	"AUTH_INVALID_CREDENTIALS":     {status: http.StatusForbidden, message: msgInvalidCredentials},
	"AUTH_ACCOUNT_SUSPENDED":       {status: http.StatusForbidden, expose: true},
	"AUTH_ACCOUNT_LOCKED":          {status: http.StatusForbidden, expose: true},
	"AUTH_CAPTCHA_REQUIRED":        {status: http.StatusForbidden, expose: true},
	"SESSION_INVALID":              {status: http.StatusUnauthorized, message: "authentication required"},
	"SESSION_NOT_FOUND":            {status: http.StatusNotFound, message: "no active session"},
	"RATE_LIMITED":                 {status: http.StatusTooManyRequests, message: "too many requests"},
	"REGISTRATION_ACTIVATE_FAILED": {status: http.StatusInternalServerError, message: msgInternal},
}

// mapError resolves the code, status and public message for err.
func mapError(err error) (code string, status int, message string) {
	code = errutil.Code(err)

	if errors.Is(err, auth.ErrInvalidToken) || strings.HasPrefix(code, "TOKEN_") {
		return code, http.StatusBadRequest, msgInvalidToken
	}
	if errors.Is(err, auth.ErrUnauthenticated) {
		m := codeMappings["SESSION_INVALID"]
		return "SESSION_INVALID", m.status, m.message
	}

	m, ok := codeMappings[code]
	if !ok {
		return "INTERNAL", http.StatusInternalServerError, msgInternal
	}
	message = m.message
	if m.expose {
		message = publicText(err)
	}
	return code, m.status, message
}

// publicText is the message of the outermost oops error.
func publicText(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Error()
	}
	return err.Error()
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError logs err and answers with the mapped status and message.
// Server errors are logged at error level, client errors at debug.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, status, message := mapError(err)

	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), h.logger, "request failed", err)
	} else {
		h.logger.DebugContext(r.Context(), "request rejected",
			"code", errutil.Code(err),
			"status", status,
			"error", err,
		)
	}

	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeFlowError is writeError for routes that redeem key/token pairs.
// Rejections are counted by flow and cause.
func (h *Handler) writeFlowError(w http.ResponseWriter, r *http.Request, flow string, err error) {
	if errors.Is(err, auth.ErrInvalidToken) {
		cause := errutil.Code(err)
		if cause == "" {
			cause = "TOKEN_INVALID"
		}
		h.metrics.RecordTokenRejection(flow, cause)
	}
	h.writeError(w, r, err)
}

// rejection builds a coded client error raised by the HTTP layer itself.
func rejection(code, message string) error {
	return oops.Code(code).Errorf("%s", message)
}
