// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus counters for the authorization server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wikiauth"

// Metrics holds the server's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	tokensIssued      *prometheus.CounterVec
	tokenErrors       *prometheus.CounterVec
	tokensRevoked     prometheus.Counter
	clientsRegistered *prometheus.CounterVec
	clientsDeleted    *prometheus.CounterVec
	reaped            *prometheus.CounterVec
	rateLimited       *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		tokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Token endpoint successes by grant type.",
		}, []string{"grant_type"}),
		tokenErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_errors_total",
			Help:      "Token endpoint failures by OAuth error code.",
		}, []string{"error"}),
		tokensRevoked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocation_requests_total",
			Help:      "Revocation requests received.",
		}),
		clientsRegistered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clients_registered_total",
			Help:      "Dynamically registered clients by token endpoint auth method.",
		}, []string{"auth_method"}),
		clientsDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clients_deleted_total",
			Help:      "Clients deleted by origin.",
		}, []string{"origin"}),
		reaped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaped_records_total",
			Help:      "Records removed by the reaper by kind.",
		}, []string{"kind"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter by endpoint.",
		}, []string{"endpoint"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// TokenIssued counts a successful token response.
func (m *Metrics) TokenIssued(grantType string) {
	if m != nil {
		m.tokensIssued.WithLabelValues(grantType).Inc()
	}
}

// TokenError counts a failed token response.
func (m *Metrics) TokenError(code string) {
	if m != nil {
		m.tokenErrors.WithLabelValues(code).Inc()
	}
}

// Revocation counts a revocation request.
func (m *Metrics) Revocation() {
	if m != nil {
		m.tokensRevoked.Inc()
	}
}

// ClientRegistered counts a dynamic registration.
func (m *Metrics) ClientRegistered(authMethod string) {
	if m != nil {
		m.clientsRegistered.WithLabelValues(authMethod).Inc()
	}
}

// ClientDeleted counts a client deletion. origin is "registration" or "admin".
func (m *Metrics) ClientDeleted(origin string) {
	if m != nil {
		m.clientsDeleted.WithLabelValues(origin).Inc()
	}
}

// Reaped adds n removed records of the given kind.
func (m *Metrics) Reaped(kind string, n int64) {
	if m != nil && n > 0 {
		m.reaped.WithLabelValues(kind).Add(float64(n))
	}
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited(endpoint string) {
	if m != nil {
		m.rateLimited.WithLabelValues(endpoint).Inc()
	}
}
