// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/ory/fosite"
)

// storedRequest is the JSON form of a fosite.Requester persisted alongside
// codes and tokens. The client is stored by id and re-resolved on load so a
// deleted client invalidates everything issued to it.
type storedRequest struct {
	RequestID         string              `json:"request_id"`
	ClientID          string              `json:"client_id"`
	RequestedAt       time.Time           `json:"requested_at"`
	RequestedScopes   []string            `json:"requested_scopes"`
	GrantedScopes     []string            `json:"granted_scopes"`
	RequestedAudience []string            `json:"requested_audience"`
	GrantedAudience   []string            `json:"granted_audience"`
	Form              map[string][]string `json:"form"`
	Session           json.RawMessage     `json:"session"`
}

func marshalRequester(request fosite.Requester) (string, error) {
	session, err := json.Marshal(request.GetSession())
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	stored := storedRequest{
		RequestID:         request.GetID(),
		ClientID:          request.GetClient().GetID(),
		RequestedAt:       request.GetRequestedAt(),
		RequestedScopes:   request.GetRequestedScopes(),
		GrantedScopes:     request.GetGrantedScopes(),
		RequestedAudience: request.GetRequestedAudience(),
		GrantedAudience:   request.GetGrantedAudience(),
		Form:              request.GetRequestForm(),
		Session:           session,
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	return string(data), nil
}

func (s *OAuthStore) unmarshalRequester(ctx context.Context, data string) (fosite.Requester, error) {
	var stored storedRequest
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}

	client, err := s.clients.GetClient(ctx, stored.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client for session: %w", err)
	}

	session := &fosite.DefaultSession{}
	if len(stored.Session) > 0 && string(stored.Session) != "null" {
		if err := json.Unmarshal(stored.Session, session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
	}
	if session.ExpiresAt == nil {
		session.ExpiresAt = make(map[fosite.TokenType]time.Time)
	}

	return &fosite.Request{
		ID:                stored.RequestID,
		RequestedAt:       stored.RequestedAt,
		Client:            client,
		RequestedScope:    stored.RequestedScopes,
		GrantedScope:      stored.GrantedScopes,
		RequestedAudience: stored.RequestedAudience,
		GrantedAudience:   stored.GrantedAudience,
		Form:              url.Values(stored.Form),
		Session:           session,
	}, nil
}

// expiresAt returns the session expiry for tokenType or now+fallback.
func expiresAt(request fosite.Requester, tokenType fosite.TokenType, now time.Time, fallback time.Duration) time.Time {
	if session := request.GetSession(); session != nil {
		if exp := session.GetExpiresAt(tokenType); !exp.IsZero() {
			return exp
		}
	}
	return now.Add(fallback)
}

func subjectOf(request fosite.Requester) string {
	if session := request.GetSession(); session != nil {
		return session.GetSubject()
	}
	return ""
}
