// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/talentdesk/backoffice/internal/auth"
)

const tracerName = "backoffice/httpapi"

// tracing runs every request inside a server span, so log lines written
// while handling it carry trace and span ids.
func tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		if route := routePattern(r); route != "" {
			span.SetName(r.Method + " " + route)
			span.SetAttributes(attribute.String("http.route", route))
		}
		span.SetAttributes(attribute.Int("http.response.status_code", ww.Status()))
		if ww.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

// routePattern is the matched chi pattern, or "" before routing.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// requestLog records method, route, status and duration of each request.
func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := routePattern(r)
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		h.metrics.ObserveRequest(r.Method, route, status, elapsed)
		h.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type accountKey struct{}

// accountFrom returns the account loaded by the session middleware.
func accountFrom(ctx context.Context) (*auth.Account, bool) {
	a, ok := ctx.Value(accountKey{}).(*auth.Account)
	return a, ok && a != nil
}

// loadSession resolves the session cookie. With required set, requests
// without a valid session get 401; otherwise they pass through anonymously.
func (h *Handler) loadSession(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := h.cookies.read(r)
			if id == "" && !required {
				next.ServeHTTP(w, r)
				return
			}

			account, err := h.sessions.ValidateSession(r.Context(), id)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, account)))
			case !required && isUnauthenticated(err):
				next.ServeHTTP(w, r)
			default:
				h.writeError(w, r, err)
			}
		})
	}
}
