// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"slices"
	"time"
)

// ClientType distinguishes clients that can hold a secret from those that cannot.
type ClientType string

const (
	// ClientTypePublic clients never hold a secret.
	ClientTypePublic ClientType = "public"
	// ClientTypeConfidential clients always hold a secret.
	ClientTypeConfidential ClientType = "confidential"
)

// Client is an application permitted to request access on behalf of a team.
type Client struct {
	// ID is the internal identifier.
	ID string
	// PublicID is the client_id presented on the wire. Immutable after creation.
	PublicID string
	// TeamID is the owning team.
	TeamID string
	// CreatedByID is the creating user. Empty for dynamically registered clients.
	CreatedByID string

	Type            ClientType
	Name            string
	Description     string
	DeveloperName   string
	DeveloperURL    string
	ClientURI       string
	LogoURI         string
	Contacts        []string
	RedirectURIs    []string
	Scopes          []string
	GrantTypes      []string
	ResponseTypes   []string
	TokenAuthMethod string
	Published       bool

	// EncryptedSecret is the sealed client secret. Nil for public clients.
	EncryptedSecret []byte
	// RegistrationTokenHash is the keyed digest of the registration access token.
	RegistrationTokenHash []byte

	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActiveAt *time.Time
	DeletedAt    *time.Time
}

// IsDynamic reports whether the client was created by self-registration.
func (c *Client) IsDynamic() bool {
	return c.CreatedByID == ""
}

// IsPublic reports whether the client is a public client.
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (c *Client) Clone() *Client {
	if c == nil {
		return nil
	}
	out := *c
	out.Contacts = slices.Clone(c.Contacts)
	out.RedirectURIs = slices.Clone(c.RedirectURIs)
	out.Scopes = slices.Clone(c.Scopes)
	out.GrantTypes = slices.Clone(c.GrantTypes)
	out.ResponseTypes = slices.Clone(c.ResponseTypes)
	out.EncryptedSecret = slices.Clone(c.EncryptedSecret)
	out.RegistrationTokenHash = slices.Clone(c.RegistrationTokenHash)
	if c.LastActiveAt != nil {
		t := *c.LastActiveAt
		out.LastActiveAt = &t
	}
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

// Team is a tenant.
type Team struct {
	ID        string
	Name      string
	Subdomain string
	// DCREnabled gates dynamic client registration for the team.
	DCREnabled bool
	CreatedAt  time.Time
}

// User is a member of a team.
type User struct {
	ID        string
	TeamID    string
	Name      string
	Email     string
	CreatedAt time.Time
}

// Collection groups documents.
type Collection struct {
	ID          string
	TeamID      string
	Name        string
	Description string
	CreatedByID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Document is a wiki page.
type Document struct {
	ID           string
	TeamID       string
	CollectionID string
	Title        string
	Text         string
	CreatedByID  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReapPolicy bounds one pass of the dynamic client reaper.
type ReapPolicy struct {
	// Now is the reference time for the age predicates.
	Now time.Time
	// NeverUsedTTL expires dynamic clients that never became active.
	NeverUsedTTL time.Duration
	// InactiveTTL expires dynamic clients whose last activity is older than this.
	InactiveTTL time.Duration
	// Limit caps the number of clients deleted in one pass.
	Limit int
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}
