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

func TestDeleteAbandonedClients(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		at := now.Add(-d)
		return &at
	}
	const day = 24 * time.Hour

	tests := []struct {
		name        string
		createdBy   string
		age         time.Duration
		lastActive  *time.Time
		wantDeleted bool
	}{
		{name: "never used, 72h old", age: 72 * time.Hour, wantDeleted: true},
		{name: "never used, 12h old", age: 12 * time.Hour, wantDeleted: false},
		{name: "inactive for 45 days", age: 90 * day, lastActive: ago(45 * day), wantDeleted: true},
		{name: "active 5 days ago, 90 days old", age: 90 * day, lastActive: ago(5 * day), wantDeleted: false},
		{name: "human-created, never used, 90 days old", createdBy: testUserID, age: 90 * day, wantDeleted: false},
		{name: "human-created, inactive 45 days", createdBy: testUserID, age: 90 * day, lastActive: ago(45 * day)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db := newTestDB(t)
			ctx := t.Context()

			c := newTestClient("c1", "pub-1")
			c.CreatedByID = tt.createdBy
			c.CreatedAt = now.Add(-tt.age)
			c.LastActiveAt = tt.lastActive
			require.NoError(t, db.CreateClient(ctx, c))

			n, err := db.DeleteAbandonedClients(ctx, storage.ReapPolicy{
				Now:          now,
				NeverUsedTTL: 48 * time.Hour,
				InactiveTTL:  30 * day,
				Limit:        100,
			})
			require.NoError(t, err)

			_, getErr := db.GetClientByPublicID(ctx, "pub-1")
			if tt.wantDeleted {
				assert.Equal(t, int64(1), n)
				assert.ErrorIs(t, getErr, storage.ErrNotFound)
			} else {
				assert.Zero(t, n)
				assert.NoError(t, getErr)
			}
		})
	}
}

func TestDeleteAbandonedClients_RespectsLimit(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := t.Context()
	now := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		c := newTestClient(id, "pub-"+id)
		c.CreatedAt = now.Add(-time.Duration(100+i) * time.Hour)
		require.NoError(t, db.CreateClient(ctx, c))
	}

	policy := storage.ReapPolicy{Now: now, NeverUsedTTL: 48 * time.Hour, InactiveTTL: 720 * time.Hour, Limit: 2}
	n, err := db.DeleteAbandonedClients(ctx, policy)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = db.DeleteAbandonedClients(ctx, policy)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.DeleteAbandonedClients(ctx, storage.ReapPolicy{Now: now, NeverUsedTTL: time.Hour, InactiveTTL: time.Hour})
	assert.Error(t, err)
}

func TestDeleteExpired(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := t.Context()
	require.NoError(t, db.CreateClient(ctx, newTestClient("c1", "pub-1")))
	store := NewOAuthStore(db, fixedClients{})

	now := time.Now()
	expired := newTestRequester("req-old", "pub-1", now.Add(-time.Minute))
	live := newTestRequester("req-new", "pub-1", now.Add(time.Hour))
	require.NoError(t, store.CreateAccessTokenSession(ctx, "at-old", expired))
	require.NoError(t, store.CreateRefreshTokenSession(ctx, "rt-old", "at-old", expired))
	require.NoError(t, store.CreateAuthorizeCodeSession(ctx, "code-old", expired))
	require.NoError(t, store.CreateAccessTokenSession(ctx, "at-new", live))

	n, err := db.DeleteExpired(ctx, now, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = store.GetAccessTokenSession(ctx, "at-new", nil)
	require.NoError(t, err)
	_, err = store.GetAccessTokenSession(ctx, "at-old", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
