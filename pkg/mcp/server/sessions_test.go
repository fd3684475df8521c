// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/wikiauth/pkg/authserver"
)

var testOwner = &authserver.Grant{ClientID: "c", UserID: "u", TeamID: "t", Scopes: []string{"write", "read"}}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestStore(ttl time.Duration) (*sessionStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := newSessionStore(ttl)
	s.now = clock.Now
	return s, clock
}

func TestSessionStore_Validate(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(time.Minute)

	_, err := s.Validate("unknown")
	assert.Error(t, err)

	id := s.generate(testOwner)
	terminated, err := s.Validate(id)
	require.NoError(t, err)
	assert.False(t, terminated)

	clock.now = clock.now.Add(30 * time.Second)
	_, err = s.Validate(id)
	require.NoError(t, err, "activity extends the session")

	clock.now = clock.now.Add(45 * time.Second)
	_, err = s.Validate(id)
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = s.Validate(id)
	assert.Error(t, err, "idle session expires")
	assert.Zero(t, s.len())
}

func TestSessionStore_Terminate(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(0)

	id := s.generate(testOwner)
	notAllowed, err := s.Terminate(id)
	require.NoError(t, err)
	assert.False(t, notAllowed)

	terminated, err := s.Validate(id)
	require.NoError(t, err)
	assert.True(t, terminated)

	s.generate(testOwner)
	assert.Equal(t, 1, s.len(), "terminated sessions are swept")
}

func TestSessionStore_Admits(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(0)
	owner := testOwner

	orphan := s.generate(nil)
	assert.False(t, s.admits(orphan, owner), "a session without a grant admits nobody")

	id := s.generate(owner)
	// Registration cannot hand a bound session to another grant.
	s.bind(id, &authserver.Grant{ClientID: "d", UserID: "u", TeamID: "t", Scopes: owner.Scopes})

	tests := []struct {
		name  string
		grant *authserver.Grant
		want  bool
	}{
		{"same grant", owner, true},
		{"scope order ignored", &authserver.Grant{ClientID: "c", UserID: "u", TeamID: "t", Scopes: []string{"read", "write"}}, true},
		{"fewer scopes", &authserver.Grant{ClientID: "c", UserID: "u", TeamID: "t", Scopes: []string{"read"}}, false},
		{"other client", &authserver.Grant{ClientID: "d", UserID: "u", TeamID: "t", Scopes: owner.Scopes}, false},
		{"other user", &authserver.Grant{ClientID: "c", UserID: "v", TeamID: "t", Scopes: owner.Scopes}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, s.admits(id, tt.grant))
		})
	}

	assert.True(t, s.admits("unknown", owner))
}

func TestSessionStore_ResolveBindsAtGenerate(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(0)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req = req.WithContext(WithGrant(req.Context(), testOwner))

	id := s.ResolveSessionIdManager(req).Generate()
	assert.True(t, s.admits(id, testOwner))
	assert.False(t, s.admits(id, &authserver.Grant{ClientID: "c", UserID: "v", TeamID: "t", Scopes: testOwner.Scopes}),
		"the session belongs to its grant before registration")

	anonymous := s.ResolveSessionIdManager(nil).Generate()
	assert.False(t, s.admits(anonymous, testOwner))
}
