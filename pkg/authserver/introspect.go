// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ory/fosite"

	"github.com/stacklok/wikiauth/pkg/authserver/credentials"
	"github.com/stacklok/wikiauth/pkg/authserver/server/handlers"
	"github.com/stacklok/wikiauth/pkg/logger"
)

// ErrInvalidToken is returned for access tokens that are malformed, unknown,
// expired or revoked.
var ErrInvalidToken = errors.New("invalid access token")

// Grant is what a valid access token entitles its bearer to.
type Grant struct {
	ClientID string
	UserID   string
	TeamID   string
	Scopes   []string
}

// Authenticate validates an access token and returns its grant. Successful
// use counts as client activity.
func (s *Server) Authenticate(ctx context.Context, token string) (*Grant, error) {
	if credentials.KindOf(token) != credentials.KindAccessToken {
		return nil, ErrInvalidToken
	}

	_, ar, err := s.provider.IntrospectToken(ctx, token, fosite.AccessToken, &fosite.DefaultSession{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	grant := &Grant{
		ClientID: ar.GetClient().GetID(),
		Scopes:   slices.Clone([]string(ar.GetGrantedScopes())),
	}
	if sess, ok := ar.GetSession().(*fosite.DefaultSession); ok {
		grant.UserID = sess.Subject
		grant.TeamID, _ = sess.Extra[handlers.SessionTeamKey].(string)
	}
	if grant.UserID == "" || grant.TeamID == "" {
		return nil, ErrInvalidToken
	}

	if err := s.clients.Touch(ctx, grant.ClientID); err != nil {
		logger.Warnw("failed to record client activity", "client_id", grant.ClientID, "error", err)
	}
	return grant, nil
}
