// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ory/fosite"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/wikiauth/pkg/storage"
)

const (
	testTeamID = "team-1"
	testUserID = "user-1"
)

// newTestDB opens a migrated database with one team and one user.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.Context(), filepath.Join(t.TempDir(), "wikiauth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.CreateTeam(t.Context(), &storage.Team{ID: testTeamID, Name: "Acme", Subdomain: "acme"}))
	require.NoError(t, db.CreateUser(t.Context(), &storage.User{
		ID: testUserID, TeamID: testTeamID, Name: "Ada", Email: "ada@example.com",
	}))
	return db
}

func newTestClient(id, publicID string) *storage.Client {
	return &storage.Client{
		ID:              id,
		PublicID:        publicID,
		TeamID:          testTeamID,
		Type:            storage.ClientTypeConfidential,
		Name:            "Test client " + id,
		RedirectURIs:    []string{"https://app.example.com/callback"},
		Scopes:          []string{"read"},
		GrantTypes:      []string{"authorization_code", "refresh_token"},
		ResponseTypes:   []string{"code"},
		TokenAuthMethod: "client_secret_post",
		EncryptedSecret: []byte("sealed-" + id),
	}
}

// fixedClients resolves every public id to a bare fosite client.
type fixedClients struct{}

func (fixedClients) GetClient(_ context.Context, id string) (fosite.Client, error) {
	return &fosite.DefaultClient{ID: id}, nil
}

func newTestRequester(requestID, clientID string, expires time.Time) *fosite.Request {
	req := fosite.NewRequest()
	req.ID = requestID
	req.Client = &fosite.DefaultClient{ID: clientID}
	req.GrantedScope = fosite.Arguments{"read"}
	req.RequestedScope = fosite.Arguments{"read"}
	req.Session = &fosite.DefaultSession{
		Subject: testUserID,
		ExpiresAt: map[fosite.TokenType]time.Time{
			fosite.AuthorizeCode: expires,
			fosite.AccessToken:   expires,
			fosite.RefreshToken:  expires,
		},
		Extra: map[string]interface{}{"team_id": testTeamID},
	}
	return req
}
