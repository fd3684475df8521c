// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/stacklok/wikiauth/pkg/storage"
)

// CreateTeam inserts a team.
func (d *DB) CreateTeam(ctx context.Context, team *storage.Team) error {
	if team.CreatedAt.IsZero() {
		team.CreatedAt = d.now().UTC()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, subdomain, dcr_enabled, created_at) VALUES (?, ?, ?, ?, ?)`,
		team.ID, team.Name, strings.ToLower(team.Subdomain), team.DCREnabled, toMillis(team.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting team: %w", err)
	}
	return nil
}

// GetTeam returns a team by id.
func (d *DB) GetTeam(ctx context.Context, id string) (*storage.Team, error) {
	return d.scanTeam(d.db.QueryRowContext(ctx,
		`SELECT id, name, subdomain, dcr_enabled, created_at FROM teams WHERE id = ?`, id))
}

// GetTeamBySubdomain returns a team by its subdomain.
func (d *DB) GetTeamBySubdomain(ctx context.Context, subdomain string) (*storage.Team, error) {
	return d.scanTeam(d.db.QueryRowContext(ctx,
		`SELECT id, name, subdomain, dcr_enabled, created_at FROM teams WHERE subdomain = ?`,
		strings.ToLower(subdomain)))
}

// SetTeamDCREnabled toggles dynamic client registration for a team.
func (d *DB) SetTeamDCREnabled(ctx context.Context, id string, enabled bool) error {
	res, err := d.db.ExecContext(ctx, `UPDATE teams SET dcr_enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("updating team: %w", err)
	}
	return checkAffected(res)
}

func (*DB) scanTeam(row *sql.Row) (*storage.Team, error) {
	var (
		t         storage.Team
		createdAt int64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &t.DCREnabled, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning team: %w", err)
	}
	t.CreatedAt = fromMillis(createdAt)
	return &t, nil
}
