// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stacklok/wikiauth/pkg/storage"
)

// CreateUser inserts a user.
func (d *DB) CreateUser(ctx context.Context, user *storage.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = d.now().UTC()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO users (id, team_id, name, email, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.TeamID, user.Name, user.Email, toMillis(user.CreatedAt),
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return storage.ErrAlreadyExists
		case isForeignKeyViolation(err):
			return fmt.Errorf("team %s: %w", user.TeamID, storage.ErrNotFound)
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser returns a user by id.
func (d *DB) GetUser(ctx context.Context, id string) (*storage.User, error) {
	var (
		u         storage.User
		createdAt int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, team_id, name, email, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.TeamID, &u.Name, &u.Email, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}
