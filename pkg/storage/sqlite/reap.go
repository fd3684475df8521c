// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/wikiauth/pkg/storage"
)

var expiringTables = []string{
	"oauth_authorization_codes",
	"oauth_access_tokens",
	"oauth_refresh_tokens",
	"oauth_pkce_requests",
	"oauth_jwt_assertions",
}

// DeleteAbandonedClients hard-deletes dynamic clients that never became
// active within NeverUsedTTL of creation, or whose last activity is older
// than InactiveTTL. Clients created by a user are never touched.
func (d *DB) DeleteAbandonedClients(ctx context.Context, policy storage.ReapPolicy) (int64, error) {
	if policy.Limit <= 0 {
		return 0, errors.New("reap limit must be positive")
	}
	if policy.NeverUsedTTL <= 0 || policy.InactiveTTL <= 0 {
		return 0, errors.New("reap TTLs must be positive")
	}
	now := policy.Now
	if now.IsZero() {
		now = d.now()
	}

	res, err := d.db.ExecContext(ctx, `
		DELETE FROM oauth_clients WHERE id IN (
			SELECT id FROM oauth_clients
			WHERE created_by_id IS NULL
			  AND (
				(last_active_at IS NULL AND created_at < ?)
				OR (last_active_at IS NOT NULL AND last_active_at < ?)
			  )
			ORDER BY created_at
			LIMIT ?
		)`,
		toMillis(now.Add(-policy.NeverUsedTTL)), toMillis(now.Add(-policy.InactiveTTL)), policy.Limit,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting abandoned clients: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}

// DeleteExpired removes up to limit expired rows from each expiring table.
func (d *DB) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	if limit <= 0 {
		return 0, errors.New("limit must be positive")
	}
	var total int64
	for _, table := range expiringTables {
		res, err := d.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE rowid IN (SELECT rowid FROM `+table+` WHERE expires_at < ? LIMIT ?)`,
			toMillis(now), limit,
		)
		if err != nil {
			return total, fmt.Errorf("purging %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("reading affected rows: %w", err)
		}
		total += n
	}
	return total, nil
}
