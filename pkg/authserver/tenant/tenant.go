// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package tenant resolves the owning team of a request from its host.
//
// Teams are served at <subdomain>.<base domain>. A failed resolution is
// always reported as 404 so that probing cannot confirm which teams exist.
package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/stacklok/wikiauth/pkg/logger"
	"github.com/stacklok/wikiauth/pkg/storage"
)

// ErrNoTenant is returned when a host does not map to a team.
var ErrNoTenant = errors.New("no team for host")

// TeamLookup is the subset of storage.TeamStore the resolver needs.
type TeamLookup interface {
	GetTeamBySubdomain(ctx context.Context, subdomain string) (*storage.Team, error)
}

// Config configures host-based resolution.
type Config struct {
	// BaseDomain is the shared parent domain, optionally with a port
	// (e.g. "wiki.example.com" or "localhost:8080").
	BaseDomain string
	// Scheme is used when rendering team URLs. Defaults to https.
	Scheme string
	// DefaultSubdomain, when set, names the team served on the bare base domain.
	DefaultSubdomain string
}

// Resolver maps request hosts to teams.
type Resolver struct {
	teams  TeamLookup
	config Config
	base   string
}

// NewResolver creates a Resolver.
func NewResolver(teams TeamLookup, cfg Config) (*Resolver, error) {
	if cfg.BaseDomain == "" {
		return nil, errors.New("base domain is required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	return &Resolver{
		teams:  teams,
		config: cfg,
		base:   stripPort(strings.ToLower(cfg.BaseDomain)),
	}, nil
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// Subdomain extracts the team subdomain from host. The bare base domain maps
// to the default subdomain.
func (r *Resolver) Subdomain(host string) (string, bool) {
	host = stripPort(strings.ToLower(strings.TrimSpace(host)))
	if host == r.base {
		return r.config.DefaultSubdomain, r.config.DefaultSubdomain != ""
	}
	sub, ok := strings.CutSuffix(host, "."+r.base)
	if !ok || sub == "" || strings.Contains(sub, ".") {
		return "", false
	}
	return sub, true
}

// Resolve returns the team served at host.
func (r *Resolver) Resolve(ctx context.Context, host string) (*storage.Team, error) {
	sub, ok := r.Subdomain(host)
	if !ok {
		return nil, ErrNoTenant
	}
	team, err := r.teams.GetTeamBySubdomain(ctx, sub)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoTenant
	}
	if err != nil {
		return nil, fmt.Errorf("resolving team %q: %w", sub, err)
	}
	return team, nil
}

// URL returns the public base URL of a team, which is also its issuer.
func (r *Resolver) URL(team *storage.Team) string {
	if r.config.DefaultSubdomain != "" && strings.EqualFold(team.Subdomain, r.config.DefaultSubdomain) {
		return r.config.Scheme + "://" + r.config.BaseDomain
	}
	return r.config.Scheme + "://" + team.Subdomain + "." + r.config.BaseDomain
}

type contextKey struct{}

// WithTeam returns a context carrying team.
func WithTeam(ctx context.Context, team *storage.Team) context.Context {
	return context.WithValue(ctx, contextKey{}, team)
}

// FromContext returns the team stored by the middleware.
func FromContext(ctx context.Context) (*storage.Team, bool) {
	team, ok := ctx.Value(contextKey{}).(*storage.Team)
	return team, ok && team != nil
}

// Middleware resolves the team for every request and rejects unknown hosts with 404.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		team, err := r.Resolve(req.Context(), req.Host)
		if err != nil {
			if !errors.Is(err, ErrNoTenant) {
				logger.Errorw("team resolution failed", "host", req.Host, "error", err)
			}
			NotFound(w)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithTeam(req.Context(), team)))
	})
}

// RequireDCR rejects requests for teams that have not enabled dynamic
// client registration. It must run after Middleware.
func RequireDCR(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		team, ok := FromContext(req.Context())
		if !ok || !team.DCREnabled {
			NotFound(w)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// NotFound writes the uniform 404 body used for every masked failure.
func NotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "not_found"})
}
