// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session issues and verifies the signed user sessions that the
// authorize endpoint requires. Sessions are HS256 JWTs carried in a cookie
// or, for non-browser callers, an Authorization: Bearer header.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stacklok/wikiauth/pkg/storage"
)

// CookieName is the session cookie.
const CookieName = "wikiauth_session"

// MinSecretLength is the minimum signing secret length in bytes.
const MinSecretLength = 32

var (
	// ErrNoSession is returned when the request carries no session.
	ErrNoSession = errors.New("no user session")
	// ErrInvalidSession is returned for a bad signature, an expired token or an unknown user.
	ErrInvalidSession = errors.New("invalid user session")
)

// Claims are the registered claims plus the team id.
type Claims struct {
	TeamID string `json:"tid"`
	jwt.RegisteredClaims
}

// UserLookup resolves users.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*storage.User, error)
}

// Manager signs and verifies sessions.
type Manager struct {
	secret []byte
	users  UserLookup
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager.
func NewManager(secret []byte, users UserLookup, ttl time.Duration) (*Manager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: secret, users: users, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed session token for user.
func (m *Manager) Issue(user *storage.User) (string, error) {
	now := m.now()
	claims := Claims{
		TeamID: user.TeamID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing session: %w", err)
	}
	return signed, nil
}

// Cookie wraps a session token in the session cookie.
func (m *Manager) Cookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl.Seconds()),
	}
}

// Verify parses a session token and returns its claims.
func (m *Manager) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if claims.Subject == "" || claims.TeamID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Authenticate returns the user behind the request's session.
func (m *Manager) Authenticate(r *http.Request) (*storage.User, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return nil, ErrNoSession
	}
	claims, err := m.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := m.users.GetUser(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("loading session user: %w", err)
	}
	if user.TeamID != claims.TeamID {
		return nil, ErrInvalidSession
	}
	return user, nil
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
