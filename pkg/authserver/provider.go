// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"github.com/ory/fosite"
	"github.com/ory/fosite/compose"
	"github.com/ory/fosite/handler/oauth2"

	"github.com/stacklok/wikiauth/pkg/authserver/credentials"
	"github.com/stacklok/wikiauth/pkg/capabilities"
)

// newFositeConfig translates Config into fosite's configuration.
func newFositeConfig(cfg *Config, issuer string) *fosite.Config {
	return &fosite.Config{
		AccessTokenIssuer:     issuer,
		AccessTokenLifespan:   cfg.AccessTokenLifespan,
		RefreshTokenLifespan:  cfg.RefreshTokenLifespan,
		AuthorizeCodeLifespan: cfg.AuthCodeLifespan,
		GlobalSecret:          cfg.HMACSecret,
		TokenURL:              issuer + "/oauth/token",
		ScopeStrategy:         capabilities.ScopeStrategy,
		ClientSecretsHasher:   credentials.SecretHasher{},
		// Non-nil and empty: every code exchange and refresh issues a
		// refresh token, without requiring an offline scope.
		RefreshTokenScopes: []string{},
		// Kept on stored codes so the exchange can compare redirect URIs.
		SanitationWhiteList: []string{"redirect_uri"},
		EnforcePKCE:         false,
	}
}

// createProvider creates a fosite OAuth2Provider configured for the authorization code flow.
//
// The provider is configured with:
//   - HMAC strategy for authorization codes, access tokens and refresh tokens (opaque, prefix-tagged)
//   - Authorization code grant (RFC 6749 Section 4.1)
//   - Refresh token grant with rotation (RFC 6749 Section 6)
//   - Token introspection for resource servers
//   - Optional PKCE (RFC 7636)
//
// The strategy is returned alongside so revocation can compute signatures.
func createProvider(fositeConfig *fosite.Config, store fosite.Storage) (fosite.OAuth2Provider, oauth2.CoreStrategy) {
	strategy := compose.NewOAuth2HMACStrategy(fositeConfig)
	provider := compose.Compose(
		fositeConfig,
		store,
		&compose.CommonStrategy{CoreStrategy: strategy},
		compose.OAuth2AuthorizeExplicitFactory,  // Authorization code grant
		compose.OAuth2RefreshTokenGrantFactory,  // Refresh token grant
		compose.OAuth2TokenIntrospectionFactory, // Access token validation
		compose.OAuth2PKCEFactory,               // PKCE, optional
	)
	return provider, strategy
}
