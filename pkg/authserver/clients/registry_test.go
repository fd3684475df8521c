// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package clients

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ory/fosite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/wikiauth/pkg/authserver/credentials"
	"github.com/stacklok/wikiauth/pkg/storage"
	"github.com/stacklok/wikiauth/pkg/storage/mocks"
)

func newTestRegistry(t *testing.T, store storage.ClientStore, opts ...Option) *Registry {
	t.Helper()
	sealer, err := credentials.NewSealer(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	hasher, err := credentials.NewHasher(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	return NewRegistry(store, sealer, hasher, opts...)
}

func validMetadata() Metadata {
	return Metadata{
		Name:         "My App",
		RedirectURIs: []string{"https://app.example.com/callback"},
	}
}

func TestRegister_DynamicConfidential(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockClientStore(ctrl)
	reg := newTestRegistry(t, store)

	var stored *storage.Client
	store.EXPECT().CreateClient(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c *storage.Client) error {
			stored = c.Clone()
			return nil
		})

	client, issued, err := reg.Register(t.Context(), validMetadata(), "team-1", "")
	require.NoError(t, err)

	assert.True(t, client.IsDynamic())
	assert.Equal(t, storage.ClientTypeConfidential, client.Type)
	assert.Equal(t, AuthMethodSecretPost, client.TokenAuthMethod)
	assert.True(t, credentials.IsPublicID(client.PublicID))
	assert.Equal(t, DefaultScopes, client.Scopes)
	assert.Equal(t, DefaultGrantTypes, client.GrantTypes)

	assert.True(t, strings.HasPrefix(issued.Secret, credentials.ClientSecretPrefix))
	assert.True(t, strings.HasPrefix(issued.RegistrationToken, credentials.RegistrationTokenPrefix))

	// Only the sealed secret and the token digest reach storage.
	require.NotNil(t, stored)
	assert.NotContains(t, string(stored.EncryptedSecret), issued.Secret)
	assert.NotEqual(t, []byte(issued.RegistrationToken), stored.RegistrationTokenHash)
	assert.Equal(t, reg.hasher.Hash(issued.RegistrationToken), stored.RegistrationTokenHash)

	secret, err := reg.Secret(client)
	require.NoError(t, err)
	assert.Equal(t, issued.Secret, string(secret))
}

func TestRegister_PublicClientByUser(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockClientStore(ctrl)
	reg := newTestRegistry(t, store)

	store.EXPECT().CreateClient(gomock.Any(), gomock.Any()).Return(nil)

	md := validMetadata()
	md.TokenAuthMethod = AuthMethodNone
	client, issued, err := reg.Register(t.Context(), md, "team-1", "user-1")
	require.NoError(t, err)

	assert.False(t, client.IsDynamic())
	assert.True(t, client.IsPublic())
	assert.Empty(t, issued.Secret)
	assert.Empty(t, issued.RegistrationToken, "user-created clients never get a registration token")
	assert.Nil(t, client.EncryptedSecret)
	assert.Nil(t, client.RegistrationTokenHash)
}

func TestRegister_RetriesOnCollision(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockClientStore(ctrl)
	reg := newTestRegistry(t, store)

	var ids []string
	store.EXPECT().CreateClient(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c *storage.Client) error {
			ids = append(ids, c.PublicID)
			if len(ids) == 1 {
				return storage.ErrAlreadyExists
			}
			return nil
		}).Times(2)

	_, _, err := reg.Register(t.Context(), validMetadata(), "team-1", "")
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	long := "https://example.com/" + strings.Repeat("a", MaxRedirectURILength)
	many := make([]string, MaxRedirectURIs+1)
	for i := range many {
		many[i] = "https://example.com/cb" + strings.Repeat("x", i)
	}

	tests := []struct {
		name    string
		mutate  func(*Metadata)
		wantErr error
	}{
		{name: "no redirect uris", mutate: func(m *Metadata) { m.RedirectURIs = nil }, wantErr: ErrInvalidRedirectURI},
		{name: "relative uri", mutate: func(m *Metadata) { m.RedirectURIs = []string{"/callback"} }, wantErr: ErrInvalidRedirectURI},
		{name: "not a url", mutate: func(m *Metadata) { m.RedirectURIs = []string{"not a url"} }, wantErr: ErrInvalidRedirectURI},
		{name: "fragment", mutate: func(m *Metadata) { m.RedirectURIs = []string{"https://a.example.com/cb#x"} }, wantErr: ErrInvalidRedirectURI},
		{name: "too long", mutate: func(m *Metadata) { m.RedirectURIs = []string{long} }, wantErr: ErrInvalidRedirectURI},
		{name: "too many", mutate: func(m *Metadata) { m.RedirectURIs = many }, wantErr: ErrInvalidRedirectURI},
		{
			name:    "duplicate",
			mutate:  func(m *Metadata) { m.RedirectURIs = []string{"https://a.example.com/cb", "https://a.example.com/cb"} },
			wantErr: ErrInvalidRedirectURI,
		},
		{name: "unsupported auth method", mutate: func(m *Metadata) { m.TokenAuthMethod = "private_key_jwt" }, wantErr: ErrInvalidAuthMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			reg := newTestRegistry(t, mocks.NewMockClientStore(ctrl))

			md := validMetadata()
			tt.mutate(&md)
			_, _, err := reg.Register(t.Context(), md, "team-1", "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRotation_IsTwoPhase(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockClientStore(ctrl)
	reg := newTestRegistry(t, store)

	store.EXPECT().CreateClient(gomock.Any(), gomock.Any()).Return(nil)
	client, issued, err := reg.Register(t.Context(), validMetadata(), "team-1", "")
	require.NoError(t, err)

	working := client.Clone()
	newSecret, err := reg.RotateSecret(working)
	require.NoError(t, err)
	newToken, err := reg.RotateRegistrationToken(working)
	require.NoError(t, err)
	assert.NotEqual(t, issued.Secret, newSecret)
	assert.NotEqual(t, issued.RegistrationToken, newToken)

	// A failed commit leaves the stored record untouched.
	store.EXPECT().SaveClient(gomock.Any(), working).Return(errors.New("disk full"))
	require.Error(t, reg.Save(t.Context(), working))

	original, err := reg.Secret(client)
	require.NoError(t, err)
	assert.Equal(t, issued.Secret, string(original))
	assert.Equal(t, reg.hasher.Hash(issued.RegistrationToken), client.RegistrationTokenHash)

	store.EXPECT().SaveClient(gomock.Any(), working).Return(nil)
	require.NoError(t, reg.Save(t.Context(), working))
}

func TestRotation_Preconditions(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t, nil)

	_, err := reg.RotateSecret(&storage.Client{Type: storage.ClientTypePublic})
	assert.ErrorIs(t, err, ErrPublicClient)

	_, err = reg.RotateRegistrationToken(&storage.Client{Type: storage.ClientTypeConfidential, CreatedByID: "user-1"})
	assert.ErrorIs(t, err, ErrNotDynamic)
}

func TestFindByRegistrationToken(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockClientStore(ctrl)
	reg := newTestRegistry(t, store)

	token, err := credentials.NewRegistrationToken()
	require.NoError(t, err)
	want := &storage.Client{PublicID: "abc"}
	store.EXPECT().GetClientByRegistrationTokenHash(gomock.Any(), reg.hasher.Hash(token)).Return(want, nil)

	got, err := reg.FindByRegistrationToken(t.Context(), token)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Values of another class never reach the store.
	secret, err := credentials.NewClientSecret()
	require.NoError(t, err)
	_, err = reg.FindByRegistrationToken(t.Context(), secret)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = reg.FindByRegistrationToken(t.Context(), "garbage")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetClient(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockClientStore(ctrl)
	reg := newTestRegistry(t, store)

	store.EXPECT().CreateClient(gomock.Any(), gomock.Any()).Return(nil)
	record, issued, err := reg.Register(t.Context(), validMetadata(), "team-1", "")
	require.NoError(t, err)

	store.EXPECT().GetClientByPublicID(gomock.Any(), record.PublicID).Return(record, nil)
	fc, err := reg.GetClient(t.Context(), record.PublicID)
	require.NoError(t, err)
	assert.Equal(t, record.PublicID, fc.GetID())
	assert.False(t, fc.IsPublic())
	require.NoError(t, credentials.SecretHasher{}.Compare(t.Context(), fc.GetHashedSecret(), []byte(issued.Secret)))

	unknown := strings.Repeat("z", credentials.PublicIDLength)
	store.EXPECT().GetClientByPublicID(gomock.Any(), unknown).Return(nil, storage.ErrNotFound)
	_, err = reg.GetClient(t.Context(), unknown)
	assert.ErrorIs(t, err, fosite.ErrNotFound)

	_, err = reg.GetClient(t.Context(), "not-a-public-id")
	assert.ErrorIs(t, err, fosite.ErrNotFound)
}

func TestTouch(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockClientStore(ctrl)
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	reg := newTestRegistry(t, store, WithClock(func() time.Time { return now }), WithTouchInterval(time.Minute))

	store.EXPECT().TouchClient(gomock.Any(), "abc", now, time.Minute).Return(nil)
	require.NoError(t, reg.Touch(t.Context(), "abc"))
}

func TestCanUse(t *testing.T) {
	t.Parallel()

	user := &storage.User{ID: "u1", TeamID: "team-1"}
	assert.True(t, CanUse(&storage.Client{TeamID: "team-1"}, user))
	assert.False(t, CanUse(&storage.Client{TeamID: "team-2"}, user))
	assert.True(t, CanUse(&storage.Client{TeamID: "team-2", Published: true}, user))
	assert.False(t, CanUse(nil, user))
}
