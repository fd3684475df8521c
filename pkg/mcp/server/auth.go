// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/stacklok/wikiauth/pkg/authserver"
	"github.com/stacklok/wikiauth/pkg/authserver/tenant"
	"github.com/stacklok/wikiauth/pkg/logger"
)

// TokenAuthenticator validates bearer access tokens.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*authserver.Grant, error)
}

type grantKey struct{}

// WithGrant returns a context carrying g.
func WithGrant(ctx context.Context, g *authserver.Grant) context.Context {
	return context.WithValue(ctx, grantKey{}, g)
}

// GrantFromContext returns the grant stored by the bearer middleware.
func GrantFromContext(ctx context.Context) (*authserver.Grant, bool) {
	g, ok := ctx.Value(grantKey{}).(*authserver.Grant)
	return g, ok && g != nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+description+`"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// bearerMiddleware authenticates every request and rejects tokens issued
// for a different team than the one the host resolved to.
func bearerMiddleware(auth TokenAuthenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			unauthorized(w, "missing bearer token")
			return
		}

		grant, err := auth.Authenticate(r.Context(), token)
		if err != nil {
			logger.Debugw("rejected mcp bearer token", "error", err)
			unauthorized(w, "token is invalid or expired")
			return
		}

		if team, ok := tenant.FromContext(r.Context()); ok && team.ID != grant.TeamID {
			logger.Debugw("mcp token used on another team's host",
				"client_id", grant.ClientID, "token_team", grant.TeamID, "host_team", team.ID)
			unauthorized(w, "token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithGrant(r.Context(), grant)))
	})
}
