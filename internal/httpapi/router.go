// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

// Package httpapi exposes the authentication flows over REST/JSON.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/oops"
	"golang.org/x/time/rate"

	"github.com/talentdesk/backoffice/internal/auth"
	"github.com/talentdesk/backoffice/internal/observability"
)

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Login        *auth.Service
	Sessions     *auth.SessionManager
	Resets       *auth.PasswordResetService
	Registration *auth.RegistrationService
	Captcha      *auth.CaptchaService
	Catalog      *auth.Catalog
	Accounts     auth.AccountRepository

	// Metrics may be nil.
	Metrics *observability.Metrics
	Logger  *slog.Logger

	Cookie      CookieConfig
	CORSOrigins []string
	RateLimit   rate.Limit
	RateBurst   int

	// TrustedProxies may set X-Forwarded-For. Requests from any other peer
	// are limited by their own address.
	TrustedProxies []netip.Prefix
}

// Handler serves the API routes.
type Handler struct {
	login        *auth.Service
	sessions     *auth.SessionManager
	resets       *auth.PasswordResetService
	registration *auth.RegistrationService
	captcha      *auth.CaptchaService
	catalog      *auth.Catalog
	accounts     auth.AccountRepository
	metrics      *observability.Metrics
	logger       *slog.Logger
	cookies      cookieJar
	limiter      *ipLimiter
	proxies      []netip.Prefix
}

// NewRouter builds the chi router with every route and middleware.
func NewRouter(deps Deps) (http.Handler, error) {
	switch {
	case deps.Login == nil:
		return nil, oops.Errorf("login service is required")
	case deps.Sessions == nil:
		return nil, oops.Errorf("session manager is required")
	case deps.Resets == nil:
		return nil, oops.Errorf("password reset service is required")
	case deps.Registration == nil:
		return nil, oops.Errorf("registration service is required")
	case deps.Captcha == nil:
		return nil, oops.Errorf("captcha service is required")
	case deps.Catalog == nil:
		return nil, oops.Errorf("catalog is required")
	case deps.Accounts == nil:
		return nil, oops.Errorf("account repository is required")
	case deps.RateLimit <= 0 || deps.RateBurst <= 0:
		return nil, oops.Errorf("rate limit and burst must be positive")
	}
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = DefaultCookieName
	}
	if deps.Cookie.TTL <= 0 {
		deps.Cookie.TTL = deps.Sessions.TTL()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	h := &Handler{
		login:        deps.Login,
		sessions:     deps.Sessions,
		resets:       deps.Resets,
		registration: deps.Registration,
		captcha:      deps.Captcha,
		catalog:      deps.Catalog,
		accounts:     deps.Accounts,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		cookies:      cookieJar{cfg: deps.Cookie},
		limiter:      newIPLimiter(deps.RateLimit, deps.RateBurst),
		proxies:      deps.TrustedProxies,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(tracing)
	r.Use(h.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(h.rateLimit)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Code: "NOT_FOUND", Message: "no such route"}})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin(auth.PortalStaff))
		r.Post("/candidate/login", h.handleLogin(auth.PortalCandidate))
		r.Delete("/logout", h.handleLogout)
		r.Post("/password/reset", h.handleRequestReset)
		r.Put("/password/reset/{key}/{token}", h.handleRedeemReset)
		r.Get("/request", h.handleCaptcha)

		r.With(h.loadSession(false)).Get("/services", h.handleServices)
		r.With(h.loadSession(true)).Get("/me", h.handleMe)
	})

	r.Route("/candidate", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/activation/{key}/{token}", h.handleActivate)
	})

	return r, nil
}

func isUnauthenticated(err error) bool {
	return errors.Is(err, auth.ErrUnauthenticated)
}
