// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/wikiauth/pkg/storage"
)

func TestClients_CreateAndGet(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := t.Context()

	c := newTestClient("c1", "pub000000000000000000001")
	c.Contacts = []string{"ops@example.com"}
	c.RegistrationTokenHash = []byte("digest-1")
	require.NoError(t, db.CreateClient(ctx, c))

	got, err := db.GetClientByPublicID(ctx, c.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	assert.True(t, got.IsDynamic())
	assert.Equal(t, storage.ClientTypeConfidential, got.Type)
	assert.Equal(t, []string{"https://app.example.com/callback"}, got.RedirectURIs)
	assert.Equal(t, []string{"ops@example.com"}, got.Contacts)
	assert.Equal(t, []byte("sealed-c1"), got.EncryptedSecret)
	assert.Nil(t, got.LastActiveAt)

	byToken, err := db.GetClientByRegistrationTokenHash(ctx, []byte("digest-1"))
	require.NoError(t, err)
	assert.Equal(t, c.PublicID, byToken.PublicID)

	_, err = db.GetClientByRegistrationTokenHash(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = db.GetClientByPublicID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClients_CreateConflicts(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := t.Context()

	require.NoError(t, db.CreateClient(ctx, newTestClient("c1", "pub-dup")))
	err := db.CreateClient(ctx, newTestClient("c2", "pub-dup"))
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	// Two clients without a registration token must not collide.
	pub1 := newTestClient("c3", "pub-3")
	pub1.Type, pub1.EncryptedSecret = storage.ClientTypePublic, nil
	pub2 := newTestClient("c4", "pub-4")
	pub2.Type, pub2.EncryptedSecret = storage.ClientTypePublic, nil
	require.NoError(t, db.CreateClient(ctx, pub1))
	require.NoError(t, db.CreateClient(ctx, pub2))

	orphan := newTestClient("c5", "pub-5")
	orphan.TeamID = "no-such-team"
	assert.ErrorIs(t, db.CreateClient(ctx, orphan), storage.ErrNotFound)
}

func TestClients_ConfidentialRequiresSecret(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	c := newTestClient("c1", "pub-1")
	c.EncryptedSecret = nil
	require.Error(t, db.CreateClient(t.Context(), c))
}

func TestClients_SaveClient(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := t.Context()

	c := newTestClient("c1", "pub-1")
	require.NoError(t, db.CreateClient(ctx, c))

	c.Name = "Renamed"
	c.RedirectURIs = []string{"https://new.example.com/cb"}
	c.RegistrationTokenHash = []byte("rotated")
	require.NoError(t, db.SaveClient(ctx, c))

	got, err := db.GetClientByPublicID(ctx, "pub-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, []string{"https://new.example.com/cb"}, got.RedirectURIs)
	assert.Equal(t, []byte("rotated"), got.RegistrationTokenHash)

	missing := newTestClient("nope", "pub-x")
	assert.ErrorIs(t, db.SaveClient(ctx, missing), storage.ErrNotFound)
}

func TestClients_ListAndDelete(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := t.Context()

	require.NoError(t, db.CreateClient(ctx, newTestClient("c1", "pub-1")))
	require.NoError(t, db.CreateClient(ctx, newTestClient("c2", "pub-2")))

	list, err := db.ListClients(ctx, testTeamID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, db.DeleteClient(ctx, "c1"))
	assert.ErrorIs(t, db.DeleteClient(ctx, "c1"), storage.ErrNotFound)

	list, err = db.ListClients(ctx, testTeamID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c2", list[0].ID)
}

func TestClients_SoftDeletePurgesTokens(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := t.Context()
	store := NewOAuthStore(db, fixedClients{})

	c := newTestClient("c1", "pub-1")
	c.RegistrationTokenHash = []byte("digest")
	require.NoError(t, db.CreateClient(ctx, c))

	req := newTestRequester("req-1", "pub-1", time.Now().Add(time.Hour))
	require.NoError(t, store.CreateAccessTokenSession(ctx, "at-sig", req))
	require.NoError(t, store.CreateRefreshTokenSession(ctx, "rt-sig", "at-sig", req))

	require.NoError(t, db.SoftDeleteClient(ctx, "c1", time.Now()))

	_, err := db.GetClientByPublicID(ctx, "pub-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = db.GetClientByRegistrationTokenHash(ctx, []byte("digest"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetAccessTokenSession(ctx, "at-sig", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetRefreshTokenSession(ctx, "rt-sig", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, db.SoftDeleteClient(ctx, "c1", time.Now()), storage.ErrNotFound)
}

func TestClients_HardDeleteCascades(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := t.Context()
	store := NewOAuthStore(db, fixedClients{})

	require.NoError(t, db.CreateClient(ctx, newTestClient("c1", "pub-1")))
	req := newTestRequester("req-1", "pub-1", time.Now().Add(time.Hour))
	require.NoError(t, store.CreateAuthorizeCodeSession(ctx, "code-sig", req))
	require.NoError(t, store.CreateAccessTokenSession(ctx, "at-sig", req))

	require.NoError(t, db.DeleteClient(ctx, "c1"))

	_, err := store.GetAuthorizeCodeSession(ctx, "code-sig", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetAccessTokenSession(ctx, "at-sig", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClients_TouchIsThrottled(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := t.Context()
	require.NoError(t, db.CreateClient(ctx, newTestClient("c1", "pub-1")))

	first := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.TouchClient(ctx, "pub-1", first, 5*time.Minute))

	got, err := db.GetClientByPublicID(ctx, "pub-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastActiveAt)
	assert.True(t, first.Equal(*got.LastActiveAt))

	// Within the interval nothing changes.
	require.NoError(t, db.TouchClient(ctx, "pub-1", first.Add(time.Minute), 5*time.Minute))
	got, err = db.GetClientByPublicID(ctx, "pub-1")
	require.NoError(t, err)
	assert.True(t, first.Equal(*got.LastActiveAt))

	later := first.Add(10 * time.Minute)
	require.NoError(t, db.TouchClient(ctx, "pub-1", later, 5*time.Minute))
	got, err = db.GetClientByPublicID(ctx, "pub-1")
	require.NoError(t, err)
	assert.True(t, later.Equal(*got.LastActiveAt))
}

func TestTeams(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := t.Context()

	team, err := db.GetTeamBySubdomain(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, testTeamID, team.ID)
	assert.False(t, team.DCREnabled)

	require.NoError(t, db.SetTeamDCREnabled(ctx, testTeamID, true))
	team, err = db.GetTeam(ctx, testTeamID)
	require.NoError(t, err)
	assert.True(t, team.DCREnabled)

	err = db.CreateTeam(ctx, &storage.Team{ID: "t2", Name: "Dup", Subdomain: "acme"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
	assert.ErrorIs(t, db.SetTeamDCREnabled(ctx, "missing", true), storage.ErrNotFound)

	_, err = db.GetUser(ctx, testUserID)
	require.NoError(t, err)
	err = db.CreateUser(ctx, &storage.User{ID: "u2", TeamID: "missing", Email: "x@example.com"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
