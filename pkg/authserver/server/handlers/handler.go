// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ory/fosite"

	"github.com/stacklok/wikiauth/pkg/authserver/clients"
	"github.com/stacklok/wikiauth/pkg/authserver/metrics"
	"github.com/stacklok/wikiauth/pkg/authserver/tenant"
	"github.com/stacklok/wikiauth/pkg/storage"
)

// UserAuthenticator resolves the signed-in user behind a request.
type UserAuthenticator interface {
	Authenticate(r *http.Request) (*storage.User, error)
}

// TeamURLs maps a team to its public base URL, which is also its issuer.
type TeamURLs interface {
	URL(team *storage.Team) string
}

// SignatureStrategy extracts the storage signature from an opaque token.
type SignatureStrategy interface {
	AccessTokenSignature(ctx context.Context, token string) string
	RefreshTokenSignature(ctx context.Context, token string) string
}

// TokenStore is the slice of token storage used by revocation.
type TokenStore interface {
	GetAccessTokenSession(ctx context.Context, signature string, session fosite.Session) (fosite.Requester, error)
	GetRefreshTokenSession(ctx context.Context, signature string, session fosite.Session) (fosite.Requester, error)
	RevokeAccessToken(ctx context.Context, requestID string) error
	RevokeRefreshToken(ctx context.Context, requestID string) error
}

// Handler provides HTTP handlers for the OAuth authorization server endpoints.
type Handler struct {
	provider fosite.OAuth2Provider
	strategy SignatureStrategy
	tokens   TokenStore
	clients  *clients.Registry
	users    UserAuthenticator
	urls     TeamURLs
	metrics  *metrics.Metrics

	registerLimit func(http.Handler) http.Handler
	tokenLimit    func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records endpoint outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithRateLimits wraps the registration endpoint and the token and
// revocation endpoints with the given middleware.
func WithRateLimits(register, token func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		if register != nil {
			h.registerLimit = register
		}
		if token != nil {
			h.tokenLimit = token
		}
	}
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(
	provider fosite.OAuth2Provider,
	strategy SignatureStrategy,
	tokens TokenStore,
	registry *clients.Registry,
	users UserAuthenticator,
	urls TeamURLs,
	opts ...Option,
) *Handler {
	passthrough := func(next http.Handler) http.Handler { return next }
	h := &Handler{
		provider:      provider,
		strategy:      strategy,
		tokens:        tokens,
		clients:       registry,
		users:         users,
		urls:          urls,
		registerLimit: passthrough,
		tokenLimit:    passthrough,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns a router with all OAuth endpoints registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.OAuthRoutes(r)
	h.RegistrationRoutes(r)
	h.WellKnownRoutes(r)
	return r
}

// OAuthRoutes registers the authorize, token and revocation endpoints.
func (h *Handler) OAuthRoutes(r chi.Router) {
	r.Post("/oauth/authorize", h.AuthorizeHandler)
	r.With(h.tokenLimit).Post("/oauth/token", h.TokenHandler)
	r.With(h.tokenLimit).Post("/oauth/revoke", h.RevokeHandler)
}

// RegistrationRoutes registers RFC 7591 registration and the RFC 7592
// management endpoints. All of them answer 404 for teams without DCR.
func (h *Handler) RegistrationRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(tenant.RequireDCR)
		r.With(h.registerLimit).Post("/oauth/register", h.RegisterClientHandler)
		r.Route("/oauth/register/{clientId}", func(r chi.Router) {
			r.Use(h.RegistrationTokenMiddleware)
			r.Get("/", h.GetClientHandler)
			r.Put("/", h.UpdateClientHandler)
			r.Delete("/", h.DeleteClientHandler)
		})
	})
}

// WellKnownRoutes registers the authorization server metadata endpoint.
func (h *Handler) WellKnownRoutes(r chi.Router) {
	r.Get("/.well-known/oauth-authorization-server", h.OAuthDiscoveryHandler)
}

// errorResponse is the body of non-protocol error responses.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorResponse{Error: code, ErrorDescription: description})
}

// teamFrom returns the resolved team or writes a 404.
func teamFrom(w http.ResponseWriter, r *http.Request) (*storage.Team, bool) {
	team, ok := tenant.FromContext(r.Context())
	if !ok {
		tenant.NotFound(w)
		return nil, false
	}
	return team, true
}
