// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package httpapi

import (
	"net/http"
	"time"
)

// DefaultCookieName names the session cookie when none is configured.
const DefaultCookieName = "bo_session"

// CookieConfig shapes the session cookie. Max-Age always follows the
// session TTL, for both portals.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

type cookieJar struct {
	cfg CookieConfig
}

func (c cookieJar) read(r *http.Request) string {
	cookie, err := r.Cookie(c.cfg.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (c cookieJar) set(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.Name,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(c.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c cookieJar) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
