// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/wikiauth/pkg/storage"
)

const clientColumns = `id, public_id, team_id, created_by_id, client_type, name, description,
	developer_name, developer_url, client_uri, logo_uri, contacts, redirect_uris, scopes,
	grant_types, response_types, token_auth_method, published, encrypted_secret,
	registration_token_hash, created_at, updated_at, last_active_at, deleted_at`

type clientJSONColumns struct {
	contacts, redirectURIs, scopes, grantTypes, responseTypes string
}

func encodeClientJSON(c *storage.Client) (clientJSONColumns, error) {
	var (
		out clientJSONColumns
		err error
	)
	if out.contacts, err = encodeJSON(c.Contacts); err != nil {
		return out, fmt.Errorf("encoding contacts: %w", err)
	}
	if out.redirectURIs, err = encodeJSON(c.RedirectURIs); err != nil {
		return out, fmt.Errorf("encoding redirect uris: %w", err)
	}
	if out.scopes, err = encodeJSON(c.Scopes); err != nil {
		return out, fmt.Errorf("encoding scopes: %w", err)
	}
	if out.grantTypes, err = encodeJSON(c.GrantTypes); err != nil {
		return out, fmt.Errorf("encoding grant types: %w", err)
	}
	if out.responseTypes, err = encodeJSON(c.ResponseTypes); err != nil {
		return out, fmt.Errorf("encoding response types: %w", err)
	}
	return out, nil
}

// CreateClient inserts a new client.
func (d *DB) CreateClient(ctx context.Context, c *storage.Client) error {
	now := d.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt

	cols, err := encodeClientJSON(c)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO oauth_clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PublicID, c.TeamID, nullString(c.CreatedByID), string(c.Type), c.Name, c.Description,
		c.DeveloperName, c.DeveloperURL, c.ClientURI, c.LogoURI, cols.contacts, cols.redirectURIs, cols.scopes,
		cols.grantTypes, cols.responseTypes, c.TokenAuthMethod, c.Published, nullBytes(c.EncryptedSecret),
		nullBytes(c.RegistrationTokenHash), toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
		nullMillis(c.LastActiveAt), nullMillis(c.DeletedAt),
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return storage.ErrAlreadyExists
		case isForeignKeyViolation(err):
			return fmt.Errorf("team or creator: %w", storage.ErrNotFound)
		}
		return fmt.Errorf("inserting client: %w", err)
	}
	return nil
}

// SaveClient writes every mutable column of an existing, non-deleted client.
// The public id, owner and creation time are immutable and not written.
func (d *DB) SaveClient(ctx context.Context, c *storage.Client) error {
	c.UpdatedAt = d.now().UTC()

	cols, err := encodeClientJSON(c)
	if err != nil {
		return err
	}

	res, err := d.db.ExecContext(ctx, `
		UPDATE oauth_clients SET
			client_type = ?, name = ?, description = ?, developer_name = ?, developer_url = ?,
			client_uri = ?, logo_uri = ?, contacts = ?, redirect_uris = ?, scopes = ?,
			grant_types = ?, response_types = ?, token_auth_method = ?, published = ?,
			encrypted_secret = ?, registration_token_hash = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		string(c.Type), c.Name, c.Description, c.DeveloperName, c.DeveloperURL,
		c.ClientURI, c.LogoURI, cols.contacts, cols.redirectURIs, cols.scopes,
		cols.grantTypes, cols.responseTypes, c.TokenAuthMethod, c.Published,
		nullBytes(c.EncryptedSecret), nullBytes(c.RegistrationTokenHash), toMillis(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("updating client: %w", err)
	}
	return checkAffected(res)
}

// GetClientByPublicID returns a live client by public id.
func (d *DB) GetClientByPublicID(ctx context.Context, publicID string) (*storage.Client, error) {
	return scanClient(d.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients WHERE public_id = ? AND deleted_at IS NULL`,
		publicID,
	))
}

// GetClientByRegistrationTokenHash returns the live client owning the token digest.
func (d *DB) GetClientByRegistrationTokenHash(ctx context.Context, hash []byte) (*storage.Client, error) {
	if len(hash) == 0 {
		return nil, storage.ErrNotFound
	}
	return scanClient(d.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients WHERE registration_token_hash = ? AND deleted_at IS NULL`,
		hash,
	))
}

// ListClients returns the live clients owned by a team, oldest first.
func (d *DB) ListClients(ctx context.Context, teamID string) ([]*storage.Client, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients
		WHERE team_id = ? AND deleted_at IS NULL
		ORDER BY created_at, id`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying clients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*storage.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating client rows: %w", err)
	}
	return out, nil
}

// DeleteClient hard-deletes a client. Codes and tokens go with it by cascade.
func (d *DB) DeleteClient(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM oauth_clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting client: %w", err)
	}
	return checkAffected(res)
}

// SoftDeleteClient marks a client deleted and removes its outstanding codes and tokens.
func (d *DB) SoftDeleteClient(ctx context.Context, id string, at time.Time) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	var publicID string
	err = tx.QueryRowContext(ctx,
		`UPDATE oauth_clients SET deleted_at = ?, registration_token_hash = NULL
		WHERE id = ? AND deleted_at IS NULL RETURNING public_id`,
		toMillis(at), id,
	).Scan(&publicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("soft-deleting client: %w", err)
	}

	for _, table := range []string{
		"oauth_authorization_codes", "oauth_access_tokens", "oauth_refresh_tokens", "oauth_pkce_requests",
	} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE client_id = ?`, publicID); err != nil {
			return fmt.Errorf("purging %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// TouchClient sets last_active_at unless it was already set within minInterval of at.
func (d *DB) TouchClient(ctx context.Context, publicID string, at time.Time, minInterval time.Duration) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE oauth_clients SET last_active_at = ?
		WHERE public_id = ? AND deleted_at IS NULL
		  AND (last_active_at IS NULL OR last_active_at <= ?)`,
		toMillis(at), publicID, toMillis(at.Add(-minInterval)),
	)
	if err != nil {
		return fmt.Errorf("touching client: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*storage.Client, error) {
	var (
		c                                                         storage.Client
		createdBy                                                 sql.NullString
		clientType                                                string
		contacts, redirectURIs, scopes, grantTypes, responseTypes string
		createdAt, updatedAt                                      int64
		lastActiveAt, deletedAt                                   sql.NullInt64
	)
	err := row.Scan(
		&c.ID, &c.PublicID, &c.TeamID, &createdBy, &clientType, &c.Name, &c.Description,
		&c.DeveloperName, &c.DeveloperURL, &c.ClientURI, &c.LogoURI, &contacts, &redirectURIs, &scopes,
		&grantTypes, &responseTypes, &c.TokenAuthMethod, &c.Published, &c.EncryptedSecret,
		&c.RegistrationTokenHash, &createdAt, &updatedAt, &lastActiveAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning client: %w", err)
	}

	c.CreatedByID = createdBy.String
	c.Type = storage.ClientType(clientType)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	c.LastActiveAt = fromNullMillis(lastActiveAt)
	c.DeletedAt = fromNullMillis(deletedAt)

	if c.Contacts, err = decodeJSON(contacts); err != nil {
		return nil, err
	}
	if c.RedirectURIs, err = decodeJSON(redirectURIs); err != nil {
		return nil, err
	}
	if c.Scopes, err = decodeJSON(scopes); err != nil {
		return nil, err
	}
	if c.GrantTypes, err = decodeJSON(grantTypes); err != nil {
		return nil, err
	}
	if c.ResponseTypes, err = decodeJSON(responseTypes); err != nil {
		return nil, err
	}
	return &c, nil
}
