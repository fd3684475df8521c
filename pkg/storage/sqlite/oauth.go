// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ory/fosite"

	"github.com/stacklok/wikiauth/pkg/logger"
	"github.com/stacklok/wikiauth/pkg/storage"
)

// Fallback lifetimes used when a session carries no expiry for a token type.
const (
	defaultAuthCodeTTL     = 10 * time.Minute
	defaultAccessTokenTTL  = time.Hour
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// ClientLoader resolves protocol clients by public id.
type ClientLoader interface {
	GetClient(ctx context.Context, id string) (fosite.Client, error)
}

// OAuthStore implements the fosite storage interfaces on top of DB.
//
// Single-use guarantees come from conditional writes whose affected-row count
// is checked: a code is consumed by an UPDATE guarded on consumed_at IS NULL
// and a refresh token is rotated by a DELETE guarded on its signature, so of
// two concurrent attempts exactly one succeeds.
type OAuthStore struct {
	db      *DB
	clients ClientLoader
}

// NewOAuthStore creates an OAuthStore. Clients are resolved through loader.
func NewOAuthStore(db *DB, loader ClientLoader) *OAuthStore {
	return &OAuthStore{db: db, clients: loader}
}

var _ storage.OAuthStore = (*OAuthStore)(nil)

func notFound(what string) error {
	return fmt.Errorf("%w: %w", storage.ErrNotFound, fosite.ErrNotFound.WithHint(what+" not found"))
}

// -----------------------
// fosite.ClientManager
// -----------------------

// GetClient resolves a client through the configured loader.
func (s *OAuthStore) GetClient(ctx context.Context, id string) (fosite.Client, error) {
	return s.clients.GetClient(ctx, id)
}

// ClientAssertionJWTValid returns fosite.ErrJTIKnown if the JTI was seen and has not expired.
func (s *OAuthStore) ClientAssertionJWTValid(ctx context.Context, jti string) error {
	var exp int64
	err := s.db.db.QueryRowContext(ctx,
		`SELECT expires_at FROM oauth_jwt_assertions WHERE jti = ?`, jti,
	).Scan(&exp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("querying jwt assertion: %w", err)
	}
	if fromMillis(exp).After(s.db.now()) {
		return fosite.ErrJTIKnown
	}
	return nil
}

// SetClientAssertionJWT records a JTI until exp.
func (s *OAuthStore) SetClientAssertionJWT(ctx context.Context, jti string, exp time.Time) error {
	now := s.db.now()
	if _, err := s.db.db.ExecContext(ctx,
		`DELETE FROM oauth_jwt_assertions WHERE expires_at <= ?`, toMillis(now),
	); err != nil {
		return fmt.Errorf("purging jwt assertions: %w", err)
	}
	_, err := s.db.db.ExecContext(ctx,
		`INSERT INTO oauth_jwt_assertions (jti, expires_at) VALUES (?, ?)`, jti, toMillis(exp),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fosite.ErrJTIKnown
		}
		return fmt.Errorf("inserting jwt assertion: %w", err)
	}
	return nil
}

// -----------------------
// oauth2.AuthorizeCodeStorage
// -----------------------

// CreateAuthorizeCodeSession stores an issued authorization code.
func (s *OAuthStore) CreateAuthorizeCodeSession(ctx context.Context, signature string, request fosite.Requester) error {
	data, err := marshalRequester(request)
	if err != nil {
		return err
	}
	now := s.db.now()
	_, err = s.db.db.ExecContext(ctx, `
		INSERT INTO oauth_authorization_codes
			(signature, request_id, client_id, subject, request, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		signature, request.GetID(), request.GetClient().GetID(), subjectOf(request), data,
		toMillis(expiresAt(request, fosite.AuthorizeCode, now, defaultAuthCodeTTL)), toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("inserting authorization code: %w", err)
	}
	return nil
}

// GetAuthorizeCodeSession loads a code. A consumed code is returned together
// with fosite.ErrInvalidatedAuthorizeCode so fosite can revoke what it issued.
func (s *OAuthStore) GetAuthorizeCodeSession(ctx context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	var (
		data     string
		consumed sql.NullInt64
	)
	err := s.db.db.QueryRowContext(ctx,
		`SELECT request, consumed_at FROM oauth_authorization_codes WHERE signature = ?`, signature,
	).Scan(&data, &consumed)
	if errors.Is(err, sql.ErrNoRows) {
		logger.Debugw("authorization code not found")
		return nil, notFound("Authorization code")
	}
	if err != nil {
		return nil, fmt.Errorf("querying authorization code: %w", err)
	}

	request, err := s.unmarshalRequester(ctx, data)
	if err != nil {
		return nil, err
	}
	if consumed.Valid {
		return request, fosite.ErrInvalidatedAuthorizeCode
	}
	return request, nil
}

// InvalidateAuthorizeCodeSession consumes a code. Only the first caller succeeds;
// later callers get storage.ErrCodeConsumed.
func (s *OAuthStore) InvalidateAuthorizeCodeSession(ctx context.Context, signature string) error {
	res, err := s.db.db.ExecContext(ctx,
		`UPDATE oauth_authorization_codes SET consumed_at = ? WHERE signature = ? AND consumed_at IS NULL`,
		toMillis(s.db.now()), signature,
	)
	if err != nil {
		return fmt.Errorf("consuming authorization code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrCodeConsumed
	}
	return nil
}

// -----------------------
// oauth2.AccessTokenStorage
// -----------------------

// CreateAccessTokenSession stores an access token.
func (s *OAuthStore) CreateAccessTokenSession(ctx context.Context, signature string, request fosite.Requester) error {
	if signature == "" {
		return fosite.ErrInvalidRequest.WithHint("access token signature cannot be empty")
	}
	data, err := marshalRequester(request)
	if err != nil {
		return err
	}
	now := s.db.now()
	_, err = s.db.db.ExecContext(ctx, `
		INSERT INTO oauth_access_tokens
			(signature, request_id, client_id, subject, request, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		signature, request.GetID(), request.GetClient().GetID(), subjectOf(request), data,
		toMillis(expiresAt(request, fosite.AccessToken, now, defaultAccessTokenTTL)), toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("inserting access token: %w", err)
	}
	return nil
}

// GetAccessTokenSession loads an access token.
func (s *OAuthStore) GetAccessTokenSession(ctx context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	return s.getTokenRequest(ctx, "oauth_access_tokens", signature, "Access token")
}

// DeleteAccessTokenSession removes one access token.
func (s *OAuthStore) DeleteAccessTokenSession(ctx context.Context, signature string) error {
	return s.deleteBySignature(ctx, "oauth_access_tokens", signature, "Access token")
}

// -----------------------
// oauth2.RefreshTokenStorage
// -----------------------

// CreateRefreshTokenSession stores a refresh token paired with an access token.
func (s *OAuthStore) CreateRefreshTokenSession(
	ctx context.Context, signature string, accessSignature string, request fosite.Requester,
) error {
	if signature == "" {
		return fosite.ErrInvalidRequest.WithHint("refresh token signature cannot be empty")
	}
	data, err := marshalRequester(request)
	if err != nil {
		return err
	}
	now := s.db.now()
	_, err = s.db.db.ExecContext(ctx, `
		INSERT INTO oauth_refresh_tokens
			(signature, request_id, access_signature, client_id, subject, request, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		signature, request.GetID(), accessSignature, request.GetClient().GetID(), subjectOf(request), data,
		toMillis(expiresAt(request, fosite.RefreshToken, now, defaultRefreshTokenTTL)), toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("inserting refresh token: %w", err)
	}
	return nil
}

// GetRefreshTokenSession loads a refresh token. A token that was already
// rotated is returned with fosite.ErrInactiveToken, which makes fosite revoke
// every token of the grant.
func (s *OAuthStore) GetRefreshTokenSession(ctx context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	var (
		data      string
		rotatedAt sql.NullInt64
	)
	err := s.db.db.QueryRowContext(ctx,
		`SELECT request, rotated_at FROM oauth_refresh_tokens WHERE signature = ?`, signature,
	).Scan(&data, &rotatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Refresh token")
	}
	if err != nil {
		return nil, fmt.Errorf("querying oauth_refresh_tokens: %w", err)
	}

	request, err := s.unmarshalRequester(ctx, data)
	if err != nil {
		return nil, err
	}
	if rotatedAt.Valid {
		return request, fosite.ErrInactiveToken.WithHint("The refresh token was already rotated.")
	}
	return request, nil
}

// DeleteRefreshTokenSession removes one refresh token.
func (s *OAuthStore) DeleteRefreshTokenSession(ctx context.Context, signature string) error {
	return s.deleteBySignature(ctx, "oauth_refresh_tokens", signature, "Refresh token")
}

// RotateRefreshToken marks the presented refresh token as rotated and deletes
// every access token of the same grant. A token that was already rotated
// yields storage.ErrTokenRotated, so a concurrent replay cannot mint a second
// pair. Rotated rows stay until the reaper purges them at expiry.
func (s *OAuthStore) RotateRefreshToken(ctx context.Context, requestID string, refreshTokenSignature string) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `
		UPDATE oauth_refresh_tokens SET rotated_at = ?
		WHERE signature = ? AND request_id = ? AND rotated_at IS NULL`,
		toMillis(s.db.now()), refreshTokenSignature, requestID,
	)
	if err != nil {
		return fmt.Errorf("rotating refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrTokenRotated
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM oauth_access_tokens WHERE request_id = ?`, requestID); err != nil {
		return fmt.Errorf("deleting access tokens: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// -----------------------
// oauth2.TokenRevocationStorage
// -----------------------

// RevokeAccessToken removes every access token issued for requestID.
func (s *OAuthStore) RevokeAccessToken(ctx context.Context, requestID string) error {
	if _, err := s.db.db.ExecContext(ctx,
		`DELETE FROM oauth_access_tokens WHERE request_id = ?`, requestID,
	); err != nil {
		return fmt.Errorf("revoking access tokens: %w", err)
	}
	return nil
}

// RevokeRefreshToken removes every refresh token issued for requestID.
func (s *OAuthStore) RevokeRefreshToken(ctx context.Context, requestID string) error {
	if _, err := s.db.db.ExecContext(ctx,
		`DELETE FROM oauth_refresh_tokens WHERE request_id = ?`, requestID,
	); err != nil {
		return fmt.Errorf("revoking refresh tokens: %w", err)
	}
	return nil
}

// RevokeRefreshTokenMaybeGracePeriod revokes the presented refresh token
// immediately. There is no grace period: reuse after rotation always fails.
func (s *OAuthStore) RevokeRefreshTokenMaybeGracePeriod(ctx context.Context, requestID string, signature string) error {
	if _, err := s.db.db.ExecContext(ctx,
		`DELETE FROM oauth_refresh_tokens WHERE signature = ? AND request_id = ?`, signature, requestID,
	); err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	return nil
}

// -----------------------
// pkce.PKCERequestStorage
// -----------------------

// CreatePKCERequestSession stores the PKCE challenge of an authorization code.
func (s *OAuthStore) CreatePKCERequestSession(ctx context.Context, signature string, request fosite.Requester) error {
	data, err := marshalRequester(request)
	if err != nil {
		return err
	}
	now := s.db.now()
	_, err = s.db.db.ExecContext(ctx, `
		INSERT INTO oauth_pkce_requests (signature, client_id, request, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		signature, request.GetClient().GetID(), data,
		toMillis(expiresAt(request, fosite.AuthorizeCode, now, defaultAuthCodeTTL)), toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("inserting pkce request: %w", err)
	}
	return nil
}

// GetPKCERequestSession loads a PKCE session.
func (s *OAuthStore) GetPKCERequestSession(ctx context.Context, signature string, _ fosite.Session) (fosite.Requester, error) {
	return s.getTokenRequest(ctx, "oauth_pkce_requests", signature, "PKCE request")
}

// DeletePKCERequestSession removes a PKCE session.
func (s *OAuthStore) DeletePKCERequestSession(ctx context.Context, signature string) error {
	return s.deleteBySignature(ctx, "oauth_pkce_requests", signature, "PKCE request")
}

// table is always a package constant, never caller input.
func (s *OAuthStore) getTokenRequest(ctx context.Context, table, signature, what string) (fosite.Requester, error) {
	var data string
	err := s.db.db.QueryRowContext(ctx,
		`SELECT request FROM `+table+` WHERE signature = ?`, signature,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(what)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	return s.unmarshalRequester(ctx, data)
}

func (s *OAuthStore) deleteBySignature(ctx context.Context, table, signature, what string) error {
	res, err := s.db.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE signature = ?`, signature)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return notFound(what)
	}
	return nil
}
