// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/ory/fosite"

	"github.com/stacklok/wikiauth/pkg/authserver/credentials"
	"github.com/stacklok/wikiauth/pkg/storage"
)

// Client adapts a stored client to fosite.Client. The hashed secret is the
// digest of the decrypted secret, compared by credentials.SecretHasher.
type Client struct {
	record       *storage.Client
	hashedSecret []byte
}

var _ fosite.Client = (*Client)(nil)

// Record returns the underlying stored client.
func (c *Client) Record() *storage.Client { return c.record }

// GetID implements fosite.Client.
func (c *Client) GetID() string { return c.record.PublicID }

// GetHashedSecret implements fosite.Client.
func (c *Client) GetHashedSecret() []byte { return c.hashedSecret }

// GetRedirectURIs implements fosite.Client.
func (c *Client) GetRedirectURIs() []string { return c.record.RedirectURIs }

// GetGrantTypes implements fosite.Client.
func (c *Client) GetGrantTypes() fosite.Arguments { return c.record.GrantTypes }

// GetResponseTypes implements fosite.Client.
func (c *Client) GetResponseTypes() fosite.Arguments { return c.record.ResponseTypes }

// GetScopes implements fosite.Client.
func (c *Client) GetScopes() fosite.Arguments { return c.record.Scopes }

// IsPublic implements fosite.Client.
func (c *Client) IsPublic() bool { return c.record.IsPublic() }

// GetAudience implements fosite.Client.
func (*Client) GetAudience() fosite.Arguments { return nil }

// GetClient resolves a live client for the protocol engine. Unknown and
// deleted clients map to fosite.ErrNotFound, which fosite reports as
// invalid_client.
func (r *Registry) GetClient(ctx context.Context, id string) (fosite.Client, error) {
	record, err := r.FindByPublicID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", storage.ErrNotFound, fosite.ErrNotFound.WithHint("Unknown client"))
		}
		return nil, err
	}
	return r.Adapt(record)
}

// Adapt wraps a stored client as a fosite.Client.
func (r *Registry) Adapt(record *storage.Client) (*Client, error) {
	c := &Client{record: record}
	if !record.IsPublic() {
		secret, err := r.Secret(record)
		if err != nil {
			return nil, fmt.Errorf("opening secret of client %s: %w", record.PublicID, err)
		}
		c.hashedSecret = credentials.SecretDigest(secret)
	}
	return c, nil
}
