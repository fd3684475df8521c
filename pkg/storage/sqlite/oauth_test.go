// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ory/fosite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/wikiauth/pkg/storage"
)

func newTestOAuthStore(t *testing.T) (*DB, *OAuthStore) {
	t.Helper()
	db := newTestDB(t)
	require.NoError(t, db.CreateClient(t.Context(), newTestClient("c1", "pub-1")))
	return db, NewOAuthStore(db, fixedClients{})
}

func TestOAuthStore_AuthorizeCodeSingleUse(t *testing.T) {
	t.Parallel()
	_, store := newTestOAuthStore(t)
	ctx := t.Context()

	req := newTestRequester("req-1", "pub-1", time.Now().Add(5*time.Minute))
	require.NoError(t, store.CreateAuthorizeCodeSession(ctx, "code-sig", req))

	got, err := store.GetAuthorizeCodeSession(ctx, "code-sig", nil)
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.GetID())
	assert.Equal(t, "pub-1", got.GetClient().GetID())
	assert.Equal(t, fosite.Arguments{"read"}, got.GetGrantedScopes())
	assert.Equal(t, testUserID, got.GetSession().GetSubject())

	session, ok := got.GetSession().(*fosite.DefaultSession)
	require.True(t, ok)
	assert.Equal(t, testTeamID, session.Extra["team_id"])

	require.NoError(t, store.InvalidateAuthorizeCodeSession(ctx, "code-sig"))
	assert.ErrorIs(t, store.InvalidateAuthorizeCodeSession(ctx, "code-sig"), storage.ErrCodeConsumed)

	got, err = store.GetAuthorizeCodeSession(ctx, "code-sig", nil)
	assert.ErrorIs(t, err, fosite.ErrInvalidatedAuthorizeCode)
	require.NotNil(t, got)
	assert.Equal(t, "req-1", got.GetID())

	_, err = store.GetAuthorizeCodeSession(ctx, "unknown", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, err, fosite.ErrNotFound)
}

func TestOAuthStore_ConcurrentCodeRedemption(t *testing.T) {
	t.Parallel()
	_, store := newTestOAuthStore(t)
	ctx := t.Context()

	req := newTestRequester("req-1", "pub-1", time.Now().Add(5*time.Minute))
	require.NoError(t, store.CreateAuthorizeCodeSession(ctx, "code-sig", req))

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.InvalidateAuthorizeCodeSession(ctx, "code-sig") == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes.Load())
}

func TestOAuthStore_RotateRefreshToken(t *testing.T) {
	t.Parallel()
	_, store := newTestOAuthStore(t)
	ctx := t.Context()

	req := newTestRequester("req-1", "pub-1", time.Now().Add(time.Hour))
	require.NoError(t, store.CreateAccessTokenSession(ctx, "at-1", req))
	require.NoError(t, store.CreateRefreshTokenSession(ctx, "rt-1", "at-1", req))

	require.NoError(t, store.RotateRefreshToken(ctx, "req-1", "rt-1"))

	got, err := store.GetRefreshTokenSession(ctx, "rt-1", nil)
	assert.ErrorIs(t, err, fosite.ErrInactiveToken)
	require.NotNil(t, got, "a rotated token still names its grant")
	assert.Equal(t, "req-1", got.GetID())
	_, err = store.GetAccessTokenSession(ctx, "at-1", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.RotateRefreshToken(ctx, "req-1", "rt-1"), storage.ErrTokenRotated)

	require.NoError(t, store.DeleteRefreshTokenSession(ctx, "rt-1"))
	_, err = store.GetRefreshTokenSession(ctx, "rt-1", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOAuthStore_ConcurrentRotation(t *testing.T) {
	t.Parallel()
	_, store := newTestOAuthStore(t)
	ctx := t.Context()

	req := newTestRequester("req-1", "pub-1", time.Now().Add(time.Hour))
	require.NoError(t, store.CreateRefreshTokenSession(ctx, "rt-1", "at-1", req))

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.RotateRefreshToken(ctx, "req-1", "rt-1") == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes.Load())
}

func TestOAuthStore_Revocation(t *testing.T) {
	t.Parallel()
	_, store := newTestOAuthStore(t)
	ctx := t.Context()

	req := newTestRequester("req-1", "pub-1", time.Now().Add(time.Hour))
	other := newTestRequester("req-2", "pub-1", time.Now().Add(time.Hour))
	require.NoError(t, store.CreateAccessTokenSession(ctx, "at-1", req))
	require.NoError(t, store.CreateRefreshTokenSession(ctx, "rt-1", "at-1", req))
	require.NoError(t, store.CreateAccessTokenSession(ctx, "at-2", other))

	require.NoError(t, store.RevokeAccessToken(ctx, "req-1"))
	require.NoError(t, store.RevokeRefreshToken(ctx, "req-1"))
	// Revoking twice is not an error.
	require.NoError(t, store.RevokeRefreshToken(ctx, "req-1"))

	_, err := store.GetAccessTokenSession(ctx, "at-1", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetRefreshTokenSession(ctx, "rt-1", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetAccessTokenSession(ctx, "at-2", nil)
	require.NoError(t, err)
}

func TestOAuthStore_DeleteBySignature(t *testing.T) {
	t.Parallel()
	_, store := newTestOAuthStore(t)
	ctx := t.Context()

	req := newTestRequester("req-1", "pub-1", time.Now().Add(time.Hour))
	require.NoError(t, store.CreateAccessTokenSession(ctx, "at-1", req))
	require.NoError(t, store.DeleteAccessTokenSession(ctx, "at-1"))
	assert.ErrorIs(t, store.DeleteAccessTokenSession(ctx, "at-1"), storage.ErrNotFound)

	require.NoError(t, store.CreatePKCERequestSession(ctx, "pkce-1", req))
	got, err := store.GetPKCERequestSession(ctx, "pkce-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.GetID())
	require.NoError(t, store.DeletePKCERequestSession(ctx, "pkce-1"))
	_, err = store.GetPKCERequestSession(ctx, "pkce-1", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.CreateAccessTokenSession(ctx, "", req)
	assert.ErrorIs(t, err, fosite.ErrInvalidRequest)
}

func TestOAuthStore_ClientAssertionJWT(t *testing.T) {
	t.Parallel()
	_, store := newTestOAuthStore(t)
	ctx := t.Context()

	require.NoError(t, store.ClientAssertionJWTValid(ctx, "jti-1"))
	require.NoError(t, store.SetClientAssertionJWT(ctx, "jti-1", time.Now().Add(time.Hour)))
	assert.ErrorIs(t, store.ClientAssertionJWTValid(ctx, "jti-1"), fosite.ErrJTIKnown)
	assert.ErrorIs(t, store.SetClientAssertionJWT(ctx, "jti-1", time.Now().Add(time.Hour)), fosite.ErrJTIKnown)
}
