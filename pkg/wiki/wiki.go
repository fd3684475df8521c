// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package wiki provides the collection and document operations exposed to
// tool clients. Every call is confined to the caller's team.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/stacklok/toolhive-core/httperr"

	"github.com/stacklok/wikiauth/pkg/storage"
)

// Field limits.
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 4096
	MaxTextLength        = 1 << 20
	MaxQueryLength       = 256
)

// Actor identifies who is acting and on which team's behalf.
type Actor struct {
	TeamID string
	UserID string
}

// CollectionInput holds the fields of a new collection.
type CollectionInput struct {
	Name        string
	Description string
}

// CollectionPatch holds the fields to change. Nil fields are left alone.
type CollectionPatch struct {
	Name        *string
	Description *string
}

// DocumentInput holds the fields of a new document.
type DocumentInput struct {
	CollectionID string
	Title        string
	Text         string
}

// DocumentPatch holds the fields to change. Nil fields are left alone.
type DocumentPatch struct {
	Title *string
	Text  *string
}

// Service implements the wiki operations over a store.
type Service struct {
	store storage.WikiStore
}

// NewService creates a Service backed by store.
func NewService(store storage.WikiStore) *Service {
	return &Service{store: store}
}

func invalid(format string, args ...any) error {
	return httperr.WithCode(fmt.Errorf(format, args...), http.StatusBadRequest)
}

func checkActor(a Actor) error {
	if a.TeamID == "" {
		return errors.New("actor has no team")
	}
	return nil
}

func checkName(field, v string, limit int) error {
	if strings.TrimSpace(v) == "" {
		return invalid("%s is required", field)
	}
	return checkLength(field, v, limit)
}

func checkLength(field, v string, limit int) error {
	if utf8.RuneCountInString(v) > limit {
		return invalid("%s must be at most %d characters", field, limit)
	}
	return nil
}

// ListCollections returns a page of the team's collections.
func (s *Service) ListCollections(ctx context.Context, a Actor, page storage.Page) ([]*storage.Collection, error) {
	if err := checkActor(a); err != nil {
		return nil, err
	}
	return s.store.ListCollections(ctx, a.TeamID, page)
}

// GetCollection returns one collection.
func (s *Service) GetCollection(ctx context.Context, a Actor, id string) (*storage.Collection, error) {
	if err := checkActor(a); err != nil {
		return nil, err
	}
	return s.store.GetCollection(ctx, a.TeamID, id)
}

// CreateCollection adds a collection owned by the actor's team.
func (s *Service) CreateCollection(ctx context.Context, a Actor, in CollectionInput) (*storage.Collection, error) {
	if err := checkActor(a); err != nil {
		return nil, err
	}
	if err := checkName("name", in.Name, MaxNameLength); err != nil {
		return nil, err
	}
	if err := checkLength("description", in.Description, MaxDescriptionLength); err != nil {
		return nil, err
	}

	c := &storage.Collection{
		TeamID:      a.TeamID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		CreatedByID: a.UserID,
	}
	if err := s.store.CreateCollection(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCollection applies patch to a collection.
func (s *Service) UpdateCollection(ctx context.Context, a Actor, id string, patch CollectionPatch) (*storage.Collection, error) {
	c, err := s.GetCollection(ctx, a, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		if err := checkName("name", *patch.Name, MaxNameLength); err != nil {
			return nil, err
		}
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		if err := checkLength("description", *patch.Description, MaxDescriptionLength); err != nil {
			return nil, err
		}
		c.Description = *patch.Description
	}
	if err := s.store.UpdateCollection(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCollection removes a collection and every document in it.
func (s *Service) DeleteCollection(ctx context.Context, a Actor, id string) error {
	if err := checkActor(a); err != nil {
		return err
	}
	return s.store.DeleteCollection(ctx, a.TeamID, id)
}

// ListDocuments returns a page of documents. An empty collectionID lists
// across the whole team.
func (s *Service) ListDocuments(ctx context.Context, a Actor, collectionID string, page storage.Page) ([]*storage.Document, error) {
	if err := checkActor(a); err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, a.TeamID, collectionID, page)
}

// GetDocument returns one document.
func (s *Service) GetDocument(ctx context.Context, a Actor, id string) (*storage.Document, error) {
	if err := checkActor(a); err != nil {
		return nil, err
	}
	return s.store.GetDocument(ctx, a.TeamID, id)
}

// SearchDocuments matches query against titles and text.
func (s *Service) SearchDocuments(ctx context.Context, a Actor, query string, page storage.Page) ([]*storage.Document, error) {
	if err := checkActor(a); err != nil {
		return nil, err
	}
	if err := checkName("query", query, MaxQueryLength); err != nil {
		return nil, err
	}
	return s.store.SearchDocuments(ctx, a.TeamID, strings.TrimSpace(query), page)
}

// CreateDocument adds a document to one of the team's collections.
func (s *Service) CreateDocument(ctx context.Context, a Actor, in DocumentInput) (*storage.Document, error) {
	if err := checkActor(a); err != nil {
		return nil, err
	}
	if in.CollectionID == "" {
		return nil, invalid("collection_id is required")
	}
	if err := checkName("title", in.Title, MaxNameLength); err != nil {
		return nil, err
	}
	if err := checkLength("text", in.Text, MaxTextLength); err != nil {
		return nil, err
	}

	doc := &storage.Document{
		TeamID:       a.TeamID,
		CollectionID: in.CollectionID,
		Title:        strings.TrimSpace(in.Title),
		Text:         in.Text,
		CreatedByID:  a.UserID,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDocument applies patch to a document.
func (s *Service) UpdateDocument(ctx context.Context, a Actor, id string, patch DocumentPatch) (*storage.Document, error) {
	doc, err := s.GetDocument(ctx, a, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		if err := checkName("title", *patch.Title, MaxNameLength); err != nil {
			return nil, err
		}
		doc.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Text != nil {
		if err := checkLength("text", *patch.Text, MaxTextLength); err != nil {
			return nil, err
		}
		doc.Text = *patch.Text
	}
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document.
func (s *Service) DeleteDocument(ctx context.Context, a Actor, id string) error {
	if err := checkActor(a); err != nil {
		return err
	}
	return s.store.DeleteDocument(ctx, a.TeamID, id)
}
