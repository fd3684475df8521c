// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/stacklok/wikiauth/pkg/storage"
)

const (
	defaultPageLimit = 25
	maxPageLimit     = 100
)

func normalizePage(p storage.Page) storage.Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// escapeLike escapes LIKE wildcards so the query matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListCollections returns a team's collections ordered by name.
func (d *DB) ListCollections(ctx context.Context, teamID string, page storage.Page) ([]*storage.Collection, error) {
	page = normalizePage(page)
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, team_id, name, description, created_by_id, created_at, updated_at
		FROM collections WHERE team_id = ?
		ORDER BY name, id LIMIT ? OFFSET ?`,
		teamID, page.Limit, page.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*storage.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collection rows: %w", err)
	}
	return out, nil
}

// GetCollection returns one collection of a team.
func (d *DB) GetCollection(ctx context.Context, teamID, id string) (*storage.Collection, error) {
	return scanCollection(d.db.QueryRowContext(ctx, `
		SELECT id, team_id, name, description, created_by_id, created_at, updated_at
		FROM collections WHERE team_id = ? AND id = ?`,
		teamID, id,
	))
}

// CreateCollection inserts a collection, assigning an id when empty.
func (d *DB) CreateCollection(ctx context.Context, c *storage.Collection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := d.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO collections (id, team_id, name, description, created_by_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TeamID, c.Name, c.Description, c.CreatedByID, toMillis(now), toMillis(now),
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return storage.ErrAlreadyExists
		case isForeignKeyViolation(err):
			return fmt.Errorf("team %s: %w", c.TeamID, storage.ErrNotFound)
		}
		return fmt.Errorf("inserting collection: %w", err)
	}
	return nil
}

// UpdateCollection writes the name and description of a collection.
func (d *DB) UpdateCollection(ctx context.Context, c *storage.Collection) error {
	c.UpdatedAt = d.now().UTC()
	res, err := d.db.ExecContext(ctx,
		`UPDATE collections SET name = ?, description = ?, updated_at = ? WHERE team_id = ? AND id = ?`,
		c.Name, c.Description, toMillis(c.UpdatedAt), c.TeamID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating collection: %w", err)
	}
	return checkAffected(res)
}

// DeleteCollection removes a collection and its documents.
func (d *DB) DeleteCollection(ctx context.Context, teamID, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM collections WHERE team_id = ? AND id = ?`, teamID, id)
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return checkAffected(res)
}

const documentColumns = `id, team_id, collection_id, title, text, created_by_id, created_at, updated_at`

// ListDocuments returns the documents of a team, optionally restricted to one collection.
func (d *DB) ListDocuments(ctx context.Context, teamID, collectionID string, page storage.Page) ([]*storage.Document, error) {
	page = normalizePage(page)
	query := `SELECT ` + documentColumns + ` FROM documents WHERE team_id = ?`
	args := []any{teamID}
	if collectionID != "" {
		query += ` AND collection_id = ?`
		args = append(args, collectionID)
	}
	query += ` ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Offset)
	return d.queryDocuments(ctx, query, args...)
}

// SearchDocuments matches query against document titles and text.
func (d *DB) SearchDocuments(ctx context.Context, teamID, query string, page storage.Page) ([]*storage.Document, error) {
	page = normalizePage(page)
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	return d.queryDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE team_id = ? AND (title LIKE ? ESCAPE '\' OR text LIKE ? ESCAPE '\')
		ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`,
		teamID, pattern, pattern, page.Limit, page.Offset,
	)
}

// GetDocument returns one document of a team.
func (d *DB) GetDocument(ctx context.Context, teamID, id string) (*storage.Document, error) {
	return scanDocument(d.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE team_id = ? AND id = ?`, teamID, id))
}

// CreateDocument inserts a document, assigning an id when empty. The
// collection must belong to the same team.
func (d *DB) CreateDocument(ctx context.Context, doc *storage.Document) error {
	if _, err := d.GetCollection(ctx, doc.TeamID, doc.CollectionID); err != nil {
		return fmt.Errorf("collection %s: %w", doc.CollectionID, err)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := d.now().UTC()
	doc.CreatedAt, doc.UpdatedAt = now, now
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.TeamID, doc.CollectionID, doc.Title, doc.Text, doc.CreatedByID, toMillis(now), toMillis(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// UpdateDocument writes the title and text of a document.
func (d *DB) UpdateDocument(ctx context.Context, doc *storage.Document) error {
	doc.UpdatedAt = d.now().UTC()
	res, err := d.db.ExecContext(ctx,
		`UPDATE documents SET title = ?, text = ?, updated_at = ? WHERE team_id = ? AND id = ?`,
		doc.Title, doc.Text, toMillis(doc.UpdatedAt), doc.TeamID, doc.ID,
	)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	return checkAffected(res)
}

// DeleteDocument removes a document.
func (d *DB) DeleteDocument(ctx context.Context, teamID, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM documents WHERE team_id = ? AND id = ?`, teamID, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return checkAffected(res)
}

func (d *DB) queryDocuments(ctx context.Context, query string, args ...any) ([]*storage.Document, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*storage.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return out, nil
}

func scanCollection(row rowScanner) (*storage.Collection, error) {
	var (
		c                    storage.Collection
		createdAt, updatedAt int64
	)
	err := row.Scan(&c.ID, &c.TeamID, &c.Name, &c.Description, &c.CreatedByID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning collection: %w", err)
	}
	c.CreatedAt, c.UpdatedAt = fromMillis(createdAt), fromMillis(updatedAt)
	return &c, nil
}

func scanDocument(row rowScanner) (*storage.Document, error) {
	var (
		doc                  storage.Document
		createdAt, updatedAt int64
	)
	err := row.Scan(&doc.ID, &doc.TeamID, &doc.CollectionID, &doc.Title, &doc.Text,
		&doc.CreatedByID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.CreatedAt, doc.UpdatedAt = fromMillis(createdAt), fromMillis(updatedAt)
	return &doc, nil
}
