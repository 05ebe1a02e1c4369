// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	TokenRejections *prometheus.CounterVec
	MailFailures    *prometheus.CounterVec
	LoginOutcomes   *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TokenRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_token_rejections_total",
				Help: "Rejected key/token pairs by flow and cause",
			},
			[]string{"flow", "cause"},
		),
		MailFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_mail_failures_total",
				Help: "Mail messages that exhausted their retries, by kind",
			},
			[]string{"kind"},
		),
		LoginOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_login_outcomes_total",
				Help: "Login attempts by portal and outcome",
			},
			[]string{"portal", "outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backoffice_http_requests_total",
				Help: "HTTP requests by method, route pattern and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backoffice_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(m.TokenRejections, m.MailFailures, m.LoginOutcomes, m.HTTPRequests, m.HTTPDuration)
	return m
}

// RecordTokenRejection counts a rejected key/token pair.
func (m *Metrics) RecordTokenRejection(flow, cause string) {
	if m == nil {
		return
	}
	m.TokenRejections.WithLabelValues(flow, cause).Inc()
}

// RecordMailFailure counts a message that was given up on.
func (m *Metrics) RecordMailFailure(kind string) {
	if m == nil {
		return
	}
	m.MailFailures.WithLabelValues(kind).Inc()
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(portal, outcome string) {
	if m == nil {
		return
	}
	m.LoginOutcomes.WithLabelValues(portal, outcome).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
