// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package clients implements the OAuth client registry: creation, credential
// rotation, lookup and the visibility policy used by the authorize step.
package clients

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/wikiauth/pkg/authserver/credentials"
	"github.com/stacklok/wikiauth/pkg/capabilities"
	"github.com/stacklok/wikiauth/pkg/logger"
	"github.com/stacklok/wikiauth/pkg/storage"
)

// Redirect URI limits.
const (
	MaxRedirectURIs      = 10
	MaxRedirectURILength = 1024
)

// Token endpoint authentication methods.
const (
	AuthMethodNone       = "none"
	AuthMethodSecretPost = "client_secret_post"
)

// DefaultTouchInterval is the minimum spacing between last-active writes.
const DefaultTouchInterval = 5 * time.Minute

const maxCreateAttempts = 5

var (
	// ErrInvalidRedirectURI is returned when a redirect URI list is rejected.
	ErrInvalidRedirectURI = errors.New("invalid redirect_uris")
	// ErrInvalidAuthMethod is returned for unsupported token endpoint auth methods.
	ErrInvalidAuthMethod = errors.New("unsupported token_endpoint_auth_method")
	// ErrPublicClient is returned when rotating the secret of a public client.
	ErrPublicClient = errors.New("public clients have no secret")
	// ErrNotDynamic is returned when issuing a registration token to a client created by a user.
	ErrNotDynamic = errors.New("client was not dynamically registered")
)

// Metadata is the client-supplied part of a client record.
type Metadata struct {
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
}

// Issued holds plaintext credentials that are shown exactly once.
type Issued struct {
	// Secret is empty for public clients.
	Secret string
	// RegistrationToken is empty for clients created by a user.
	RegistrationToken string
}

// Registry owns client records and their credentials.
type Registry struct {
	store         storage.ClientStore
	sealer        *credentials.Sealer
	hasher        *credentials.Hasher
	now           func() time.Time
	touchInterval time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithTouchInterval overrides DefaultTouchInterval.
func WithTouchInterval(d time.Duration) Option {
	return func(r *Registry) { r.touchInterval = d }
}

// NewRegistry creates a Registry.
func NewRegistry(store storage.ClientStore, sealer *credentials.Sealer, hasher *credentials.Hasher, opts ...Option) *Registry {
	r := &Registry{
		store:         store,
		sealer:        sealer,
		hasher:        hasher,
		now:           time.Now,
		touchInterval: DefaultTouchInterval,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ClientTypeFor derives the client type from a token endpoint auth method.
// An empty method defaults to client_secret_post.
func ClientTypeFor(authMethod string) (storage.ClientType, error) {
	switch authMethod {
	case AuthMethodNone:
		return storage.ClientTypePublic, nil
	case "", AuthMethodSecretPost:
		return storage.ClientTypeConfidential, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidAuthMethod, authMethod)
}

// ValidateRedirectURIs checks count, length, syntax and uniqueness.
func ValidateRedirectURIs(uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("%w: at least one redirect URI is required", ErrInvalidRedirectURI)
	}
	if len(uris) > MaxRedirectURIs {
		return fmt.Errorf("%w: too many redirect URIs (maximum %d)", ErrInvalidRedirectURI, MaxRedirectURIs)
	}
	seen := make(map[string]struct{}, len(uris))
	for _, raw := range uris {
		if len(raw) > MaxRedirectURILength {
			return fmt.Errorf("%w: redirect URI exceeds %d characters", ErrInvalidRedirectURI, MaxRedirectURILength)
		}
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidRedirectURI, raw)
		}
		if u.Fragment != "" || u.RawFragment != "" {
			return fmt.Errorf("%w: %q must not contain a fragment", ErrInvalidRedirectURI, raw)
		}
		if _, dup := seen[raw]; dup {
			return fmt.Errorf("%w: duplicate redirect URI %q", ErrInvalidRedirectURI, raw)
		}
		seen[raw] = struct{}{}
	}
	return nil
}

// Register creates a client owned by teamID. An empty creatorID marks the
// client as dynamically registered; only such clients receive a registration
// access token. The returned plaintext credentials are never retrievable again.
func (r *Registry) Register(ctx context.Context, md Metadata, teamID, creatorID string) (*storage.Client, Issued, error) {
	if err := ValidateRedirectURIs(md.RedirectURIs); err != nil {
		return nil, Issued{}, err
	}
	clientType, err := ClientTypeFor(md.TokenAuthMethod)
	if err != nil {
		return nil, Issued{}, err
	}
	authMethod := md.TokenAuthMethod
	if authMethod == "" {
		authMethod = AuthMethodSecretPost
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		publicID, err := credentials.NewPublicID()
		if err != nil {
			return nil, Issued{}, err
		}

		client := &storage.Client{
			ID:              uuid.NewString(),
			PublicID:        publicID,
			TeamID:          teamID,
			CreatedByID:     creatorID,
			Type:            clientType,
			TokenAuthMethod: authMethod,
		}
		applyMetadata(client, md)
		applyDefaults(client)

		var issued Issued
		if clientType == storage.ClientTypeConfidential {
			if issued.Secret, err = r.RotateSecret(client); err != nil {
				return nil, Issued{}, err
			}
		}
		if client.IsDynamic() {
			if issued.RegistrationToken, err = r.RotateRegistrationToken(client); err != nil {
				return nil, Issued{}, err
			}
		}

		err = r.store.CreateClient(ctx, client)
		if errors.Is(err, storage.ErrAlreadyExists) {
			logger.Debugw("client identifier collision, retrying", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, Issued{}, fmt.Errorf("creating client: %w", err)
		}

		logger.Infow("client registered",
			"client_id", client.PublicID,
			"team_id", teamID,
			"type", string(clientType),
			"dynamic", client.IsDynamic(),
		)
		return client, issued, nil
	}
	return nil, Issued{}, fmt.Errorf("could not allocate a unique client identifier after %d attempts", maxCreateAttempts)
}

// Update replaces the client-supplied metadata on client in memory. The
// client type and auth method are immutable. Persist with Save.
func (*Registry) Update(client *storage.Client, md Metadata) error {
	if err := ValidateRedirectURIs(md.RedirectURIs); err != nil {
		return err
	}
	if md.TokenAuthMethod != "" && md.TokenAuthMethod != client.TokenAuthMethod {
		return fmt.Errorf("%w: token_endpoint_auth_method cannot change", ErrInvalidAuthMethod)
	}
	applyMetadata(client, md)
	return nil
}

// Defaults for clients that do not ask for anything narrower.
var (
	DefaultScopes        = []string{capabilities.ScopeRead, capabilities.ScopeCreate, capabilities.ScopeWrite}
	DefaultGrantTypes    = []string{"authorization_code", "refresh_token"}
	DefaultResponseTypes = []string{"code"}
)

func applyDefaults(c *storage.Client) {
	if len(c.Scopes) == 0 {
		c.Scopes = slices.Clone(DefaultScopes)
	}
	if len(c.GrantTypes) == 0 {
		c.GrantTypes = slices.Clone(DefaultGrantTypes)
	}
	if len(c.ResponseTypes) == 0 {
		c.ResponseTypes = slices.Clone(DefaultResponseTypes)
	}
}

func applyMetadata(c *storage.Client, md Metadata) {
	c.Name = md.Name
	c.Description = md.Description
	c.DeveloperName = md.DeveloperName
	c.DeveloperURL = md.DeveloperURL
	c.ClientURI = md.ClientURI
	c.LogoURI = md.LogoURI
	c.Contacts = slices.Clone(md.Contacts)
	c.RedirectURIs = slices.Clone(md.RedirectURIs)
	c.Published = md.Published
	if len(md.Scopes) > 0 {
		c.Scopes = slices.Clone(md.Scopes)
	}
	if len(md.GrantTypes) > 0 {
		c.GrantTypes = slices.Clone(md.GrantTypes)
	}
	if len(md.ResponseTypes) > 0 {
		c.ResponseTypes = slices.Clone(md.ResponseTypes)
	}
}

// RotateSecret replaces the secret on client in memory and returns the new
// plaintext. Nothing is persisted until Save succeeds, so a failed save
// leaves the stored secret in effect.
func (r *Registry) RotateSecret(client *storage.Client) (string, error) {
	if client.IsPublic() {
		return "", ErrPublicClient
	}
	secret, err := credentials.NewClientSecret()
	if err != nil {
		return "", err
	}
	sealed, err := r.sealer.Seal([]byte(secret), []byte(client.PublicID))
	if err != nil {
		return "", err
	}
	client.EncryptedSecret = sealed
	return secret, nil
}

// RotateRegistrationToken replaces the registration token digest on client in
// memory and returns the new plaintext. Persist with Save.
func (r *Registry) RotateRegistrationToken(client *storage.Client) (string, error) {
	if !client.IsDynamic() {
		return "", ErrNotDynamic
	}
	token, err := credentials.NewRegistrationToken()
	if err != nil {
		return "", err
	}
	client.RegistrationTokenHash = r.hasher.Hash(token)
	return token, nil
}

// Save commits in-memory changes, including rotated credentials.
func (r *Registry) Save(ctx context.Context, client *storage.Client) error {
	return r.store.SaveClient(ctx, client)
}

// FindByPublicID returns a live client.
func (r *Registry) FindByPublicID(ctx context.Context, publicID string) (*storage.Client, error) {
	if !credentials.IsPublicID(publicID) {
		return nil, storage.ErrNotFound
	}
	return r.store.GetClientByPublicID(ctx, publicID)
}

// FindByRegistrationToken resolves the client owning a registration token.
// Values without the registration prefix are rejected without a lookup, and
// the store is only ever queried by the keyed digest.
func (r *Registry) FindByRegistrationToken(ctx context.Context, token string) (*storage.Client, error) {
	if credentials.KindOf(token) != credentials.KindRegistrationToken {
		return nil, storage.ErrNotFound
	}
	return r.store.GetClientByRegistrationTokenHash(ctx, r.hasher.Hash(token))
}

// List returns a team's clients.
func (r *Registry) List(ctx context.Context, teamID string) ([]*storage.Client, error) {
	return r.store.ListClients(ctx, teamID)
}

// Delete hard-deletes a client along with its codes and tokens.
func (r *Registry) Delete(ctx context.Context, client *storage.Client) error {
	if err := r.store.DeleteClient(ctx, client.ID); err != nil {
		return err
	}
	logger.Infow("client deleted", "client_id", client.PublicID)
	return nil
}

// Retire soft-deletes a client and revokes everything issued to it.
func (r *Registry) Retire(ctx context.Context, client *storage.Client) error {
	if err := r.store.SoftDeleteClient(ctx, client.ID, r.now()); err != nil {
		return err
	}
	logger.Infow("client retired", "client_id", client.PublicID)
	return nil
}

// Touch records client activity. Writes are throttled by the touch interval.
func (r *Registry) Touch(ctx context.Context, publicID string) error {
	return r.store.TouchClient(ctx, publicID, r.now(), r.touchInterval)
}

// Secret decrypts a confidential client's secret.
func (r *Registry) Secret(client *storage.Client) ([]byte, error) {
	if client.IsPublic() || len(client.EncryptedSecret) == 0 {
		return nil, ErrPublicClient
	}
	return r.sealer.Open(client.EncryptedSecret, []byte(client.PublicID))
}

// CanUse reports whether user may authorize client: the client belongs to
// the user's team or has been published.
func CanUse(client *storage.Client, user *storage.User) bool {
	if client == nil || user == nil {
		return false
	}
	return client.TeamID == user.TeamID || client.Published
}
