// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/stacklok/wikiauth/pkg/authserver"
)

// DefaultSessionTTL is how long an idle session survives.
const DefaultSessionTTL = time.Hour

var errSessionNotFound = errors.New("session not found")

type boundSession struct {
	// fingerprint is empty only for sessions generated without a grant,
	// which nobody may use.
	fingerprint string
	lastSeen    time.Time
	terminated  bool
}

// sessionStore resolves the SDK's SessionIdManager per request and
// remembers which grant opened each session.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*boundSession
	ttl      time.Duration
	now      func() time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessionStore{
		sessions: make(map[string]*boundSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// fingerprint identifies a grant: client, user, team and scope set.
func fingerprint(g *authserver.Grant) string {
	scopes := slices.Clone(g.Scopes)
	slices.Sort(scopes)
	return strings.Join([]string{g.ClientID, g.UserID, g.TeamID, strings.Join(scopes, " ")}, "|")
}

// grantSessions is the SessionIdManager of one request. The sessions it
// generates belong to the request's grant before their id is handed out.
type grantSessions struct {
	*sessionStore
	grant *authserver.Grant
}

// Generate implements SessionIdManager.Generate.
func (m grantSessions) Generate() string {
	return m.generate(m.grant)
}

// ResolveSessionIdManager implements the SDK's SessionIdManagerResolver. The
// bearer middleware has already stored the grant on r.
func (s *sessionStore) ResolveSessionIdManager(r *http.Request) mcpserver.SessionIdManager {
	m := grantSessions{sessionStore: s}
	if r != nil {
		m.grant, _ = GrantFromContext(r.Context())
	}
	return m
}

func (s *sessionStore) generate(g *authserver.Grant) string {
	id := uuid.NewString()
	sess := &boundSession{lastSeen: s.now()}
	if g != nil {
		sess.fingerprint = fingerprint(g)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.sessions[id] = sess
	return id
}

// Validate implements SessionIdManager.Validate. Unknown and expired
// sessions are reported through err.
func (s *sessionStore) Validate(sessionID string) (isTerminated bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return false, errSessionNotFound
	}
	if sess.terminated {
		return true, nil
	}
	if s.expiredLocked(sess) {
		delete(s.sessions, sessionID)
		return false, errSessionNotFound
	}
	sess.lastSeen = s.now()
	return false, nil
}

// Terminate implements SessionIdManager.Terminate.
func (s *sessionStore) Terminate(sessionID string) (isNotAllowed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		sess.terminated = true
	}
	return false, nil
}

// bind attaches g to a registered session that has no grant yet. A bound
// session never changes hands.
func (s *sessionStore) bind(sessionID string, g *authserver.Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &boundSession{fingerprint: fingerprint(g)}
		s.sessions[sessionID] = sess
	}
	sess.lastSeen = s.now()
}

// admits reports whether g may use sessionID. Sessions this store does not
// know about are left to the SDK to reject.
func (s *sessionStore) admits(sessionID string, g *authserver.Grant) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return true
	}
	return sess.fingerprint != "" && sess.fingerprint == fingerprint(g)
}

func (s *sessionStore) expiredLocked(sess *boundSession) bool {
	return s.now().Sub(sess.lastSeen) > s.ttl
}

func (s *sessionStore) sweepLocked() {
	for id, sess := range s.sessions {
		if sess.terminated || s.expiredLocked(sess) {
			delete(s.sessions, id)
		}
	}
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
