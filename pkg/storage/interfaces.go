// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage defines the persistence interfaces and records shared by
// the authorization server and the wiki tools.
package storage

import (
	"context"
	"time"

	"github.com/ory/fosite"
	"github.com/ory/fosite/handler/oauth2"
	"github.com/ory/fosite/handler/pkce"
)

//go:generate mockgen -destination=mocks/mock_stores.go -package=mocks github.com/stacklok/wikiauth/pkg/storage ClientStore,TeamStore,UserStore,ReapStore

// ClientStore persists OAuth client records. Lookups never return soft-deleted clients.
type ClientStore interface {
	// CreateClient inserts a new client. Returns ErrAlreadyExists on a public id
	// or registration token hash collision.
	CreateClient(ctx context.Context, client *Client) error
	// SaveClient writes every mutable column of an existing client.
	SaveClient(ctx context.Context, client *Client) error
	// GetClientByPublicID returns the client with the given public id.
	GetClientByPublicID(ctx context.Context, publicID string) (*Client, error)
	// GetClientByRegistrationTokenHash returns the client owning the token digest.
	GetClientByRegistrationTokenHash(ctx context.Context, hash []byte) (*Client, error)
	// ListClients returns the clients owned by a team.
	ListClients(ctx context.Context, teamID string) ([]*Client, error)
	// DeleteClient removes a client and, by cascade, its codes and tokens.
	DeleteClient(ctx context.Context, id string) error
	// SoftDeleteClient hides a client from lookups and drops its codes and tokens.
	SoftDeleteClient(ctx context.Context, id string, at time.Time) error
	// TouchClient records activity unless the stored value is newer than at-minInterval.
	TouchClient(ctx context.Context, publicID string, at time.Time, minInterval time.Duration) error
}

// TeamStore persists teams.
type TeamStore interface {
	CreateTeam(ctx context.Context, team *Team) error
	GetTeam(ctx context.Context, id string) (*Team, error)
	GetTeamBySubdomain(ctx context.Context, subdomain string) (*Team, error)
	SetTeamDCREnabled(ctx context.Context, id string, enabled bool) error
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
}

// ReapStore deletes abandoned and expired records in bounded batches.
type ReapStore interface {
	// DeleteAbandonedClients hard-deletes dynamic clients matching the policy
	// and returns how many were removed.
	DeleteAbandonedClients(ctx context.Context, policy ReapPolicy) (int64, error)
	// DeleteExpired removes expired codes, tokens and PKCE sessions, at most
	// limit rows per table.
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// OAuthStore is the storage consumed by the fosite protocol engine.
type OAuthStore interface {
	fosite.ClientManager
	oauth2.AuthorizeCodeStorage
	oauth2.AccessTokenStorage
	oauth2.RefreshTokenStorage
	oauth2.TokenRevocationStorage
	pkce.PKCERequestStorage
}

// WikiStore persists collections and documents for the tool surface.
type WikiStore interface {
	ListCollections(ctx context.Context, teamID string, page Page) ([]*Collection, error)
	GetCollection(ctx context.Context, teamID, id string) (*Collection, error)
	CreateCollection(ctx context.Context, collection *Collection) error
	UpdateCollection(ctx context.Context, collection *Collection) error
	DeleteCollection(ctx context.Context, teamID, id string) error

	ListDocuments(ctx context.Context, teamID, collectionID string, page Page) ([]*Document, error)
	GetDocument(ctx context.Context, teamID, id string) (*Document, error)
	SearchDocuments(ctx context.Context, teamID, query string, page Page) ([]*Document, error)
	CreateDocument(ctx context.Context, document *Document) error
	UpdateDocument(ctx context.Context, document *Document) error
	DeleteDocument(ctx context.Context, teamID, id string) error
}
