// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package authserver assembles the OAuth 2.0 authorization server: the fosite
// protocol engine over SQLite storage, the client registry, tenant
// resolution, rate limits and the HTTP routes.
package authserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ory/fosite"
	"github.com/redis/go-redis/v9"

	"github.com/stacklok/wikiauth/pkg/authserver/clients"
	"github.com/stacklok/wikiauth/pkg/authserver/credentials"
	"github.com/stacklok/wikiauth/pkg/authserver/metrics"
	"github.com/stacklok/wikiauth/pkg/authserver/ratelimit"
	"github.com/stacklok/wikiauth/pkg/authserver/server/handlers"
	"github.com/stacklok/wikiauth/pkg/authserver/session"
	"github.com/stacklok/wikiauth/pkg/authserver/tenant"
	"github.com/stacklok/wikiauth/pkg/logger"
	"github.com/stacklok/wikiauth/pkg/storage/sqlite"
)

// requestTimeout bounds OAuth requests. Mounted resource servers set their own.
const requestTimeout = 30 * time.Second

// Server is the OAuth authorization server for every team under the base domain.
type Server struct {
	router       chi.Router
	tenantRoutes chi.Router
	provider     fosite.OAuth2Provider
	clients      *clients.Registry
	resolver     *tenant.Resolver
	sessions     *session.Manager
	metrics      *metrics.Metrics
}

// Option configures optional Server dependencies.
type Option func(*options)

type options struct {
	redis       redis.UniversalClient
	redisPrefix string
	metrics     *metrics.Metrics
	now         func() time.Time
}

// WithRedisLimiter shares rate limit counters between replicas through Redis.
func WithRedisLimiter(client redis.UniversalClient, keyPrefix string) Option {
	return func(o *options) {
		o.redis = client
		o.redisPrefix = keyPrefix
	}
}

// WithMetrics records server activity on m and serves it at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides the registry clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates the authorization server over db.
func New(cfg Config, db *sqlite.DB, opts ...Option) (*Server, error) {
	logger.Debugw("initializing OAuth authorization server")

	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if db == nil {
		return nil, errors.New("database is required")
	}

	sealer, err := credentials.NewSealer(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	hasher, err := credentials.NewHasher(cfg.HMACSecret)
	if err != nil {
		return nil, err
	}
	registry := clients.NewRegistry(db, sealer, hasher,
		clients.WithClock(o.now),
		clients.WithTouchInterval(cfg.ClientTouchInterval),
	)

	resolver, err := tenant.NewResolver(db, tenant.Config{
		BaseDomain:       cfg.BaseDomain,
		Scheme:           cfg.Scheme,
		DefaultSubdomain: cfg.DefaultTeam,
	})
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(cfg.SessionSecret, db, cfg.SessionLifespan)
	if err != nil {
		return nil, err
	}

	oauthStore := sqlite.NewOAuthStore(db, registry)
	provider, strategy := createProvider(newFositeConfig(&cfg, cfg.Scheme+"://"+cfg.BaseDomain), oauthStore)

	registerLimit, err := newLimitMiddleware(o, "register", cfg.RegisterRateLimit, cfg.TrustProxy)
	if err != nil {
		return nil, err
	}
	tokenLimit, err := newLimitMiddleware(o, "token", cfg.TokenRateLimit, cfg.TrustProxy)
	if err != nil {
		return nil, err
	}

	h := handlers.NewHandler(provider, strategy, oauthStore, registry, sessions, resolver,
		handlers.WithMetrics(o.metrics),
		handlers.WithRateLimits(registerLimit, tokenLimit),
	)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.Ping(req.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if o.metrics != nil {
		r.Handle("/metrics", o.metrics.Handler())
	}

	tenantRoutes := r.With(resolver.Middleware)
	tenantRoutes.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		h.OAuthRoutes(r)
		h.RegistrationRoutes(r)
		h.WellKnownRoutes(r)
	})

	logger.Infow("OAuth authorization server initialized",
		"base_domain", cfg.BaseDomain,
		"default_team", cfg.DefaultTeam,
		"shared_rate_limits", o.redis != nil,
	)

	return &Server{
		router:       r,
		tenantRoutes: tenantRoutes,
		provider:     provider,
		clients:      registry,
		resolver:     resolver,
		sessions:     sessions,
		metrics:      o.metrics,
	}, nil
}

func newLimitMiddleware(o *options, name string, rule ratelimit.Rule, trustProxy bool) (func(http.Handler) http.Handler, error) {
	var (
		limiter ratelimit.Limiter
		err     error
	)
	if o.redis != nil {
		limiter, err = ratelimit.NewRedis(o.redis, o.redisPrefix+name+":", rule)
	} else {
		limiter, err = ratelimit.NewMemory(rule)
	}
	if err != nil {
		return nil, fmt.Errorf("%s rate limiter: %w", name, err)
	}
	m := o.metrics
	return ratelimit.Middleware(limiter, trustProxy, func() { m.RateLimited(name) }), nil
}

// Handler returns the HTTP handler that serves all endpoints.
func (s *Server) Handler() http.Handler {
	return s.router
}

// MountTenant serves h under pattern for requests whose host resolves to a team.
func (s *Server) MountTenant(pattern string, h http.Handler) {
	s.tenantRoutes.Mount(pattern, h)
}

// Clients returns the client registry.
func (s *Server) Clients() *clients.Registry {
	return s.clients
}

// Tenants returns the team resolver.
func (s *Server) Tenants() *tenant.Resolver {
	return s.resolver
}

// Sessions returns the user session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}
