// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/wikiauth/pkg/authserver/clients"
	"github.com/stacklok/wikiauth/pkg/authserver/credentials"
	"github.com/stacklok/wikiauth/pkg/authserver/ratelimit"
	"github.com/stacklok/wikiauth/pkg/authserver/session"
	"github.com/stacklok/wikiauth/pkg/logger"
)

// Defaults applied to zero-valued Config fields.
const (
	DefaultAccessTokenLifespan  = time.Hour
	DefaultRefreshTokenLifespan = 30 * 24 * time.Hour
	DefaultAuthCodeLifespan     = 5 * time.Minute
	DefaultSessionLifespan      = 24 * time.Hour
	DefaultScheme               = "https"
)

// Default rate limits for the anonymous endpoints.
var (
	DefaultRegisterRateLimit = ratelimit.Rule{Limit: 10, Window: time.Hour}
	DefaultTokenRateLimit    = ratelimit.Rule{Limit: 60, Window: time.Minute}
)

// MinSecretLength is the minimum required length for the HMAC secret in bytes.
// 32 bytes (256 bits) is required per OWASP/NIST security guidelines.
const MinSecretLength = 32

// Config is the pure configuration for the OAuth authorization server.
// All values must be fully resolved (no file paths, no env vars).
type Config struct {
	// BaseDomain is the host teams are served under: team "acme" is
	// reachable at acme.<BaseDomain>.
	BaseDomain string

	// Scheme is the URL scheme used in issuer and endpoint URLs.
	// If empty, defaults to https.
	Scheme string

	// DefaultTeam is the subdomain served on the bare base domain, if any.
	DefaultTeam string

	// HMACSecret signs authorization codes, access and refresh tokens and
	// keys the registration token digests.
	// Must be at least 32 bytes and cryptographically random.
	// Must be consistent across all replicas in multi-instance deployments.
	HMACSecret []byte

	// EncryptionKey encrypts client secrets at rest. Exactly 32 bytes.
	EncryptionKey []byte

	// SessionSecret signs user session tokens. At least 32 bytes.
	SessionSecret []byte

	// AccessTokenLifespan is the duration that access tokens are valid.
	// If zero, defaults to 1 hour.
	AccessTokenLifespan time.Duration

	// RefreshTokenLifespan is the duration that refresh tokens are valid.
	// If zero, defaults to 30 days.
	RefreshTokenLifespan time.Duration

	// AuthCodeLifespan is the duration that authorization codes are valid.
	// If zero, defaults to 5 minutes.
	AuthCodeLifespan time.Duration

	// SessionLifespan is the lifetime of user session tokens.
	// If zero, defaults to 24 hours.
	SessionLifespan time.Duration

	// ClientTouchInterval is the minimum spacing of last-active writes.
	// If zero, defaults to clients.DefaultTouchInterval.
	ClientTouchInterval time.Duration

	// RegisterRateLimit bounds anonymous registrations per client IP.
	RegisterRateLimit ratelimit.Rule

	// TokenRateLimit bounds token and revocation requests per client IP.
	TokenRateLimit ratelimit.Rule

	// TrustProxy keys rate limits on X-Forwarded-For.
	TrustProxy bool
}

func (c *Config) applyDefaults() {
	if c.Scheme == "" {
		c.Scheme = DefaultScheme
	}
	if c.AccessTokenLifespan == 0 {
		c.AccessTokenLifespan = DefaultAccessTokenLifespan
	}
	if c.RefreshTokenLifespan == 0 {
		c.RefreshTokenLifespan = DefaultRefreshTokenLifespan
	}
	if c.AuthCodeLifespan == 0 {
		c.AuthCodeLifespan = DefaultAuthCodeLifespan
	}
	if c.SessionLifespan == 0 {
		c.SessionLifespan = DefaultSessionLifespan
	}
	if c.ClientTouchInterval == 0 {
		c.ClientTouchInterval = clients.DefaultTouchInterval
	}
	if c.RegisterRateLimit == (ratelimit.Rule{}) {
		c.RegisterRateLimit = DefaultRegisterRateLimit
	}
	if c.TokenRateLimit == (ratelimit.Rule{}) {
		c.TokenRateLimit = DefaultTokenRateLimit
	}
}

// Validate checks that the Config is valid.
func (c *Config) Validate() error {
	logger.Debugw("validating authserver config", "base_domain", c.BaseDomain)

	if c.BaseDomain == "" {
		return errors.New("base domain is required")
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", c.Scheme)
	}
	if len(c.HMACSecret) < MinSecretLength {
		return fmt.Errorf("HMAC secret must be at least %d bytes", MinSecretLength)
	}
	if len(c.EncryptionKey) != credentials.EncryptionKeyLength {
		return fmt.Errorf("encryption key must be exactly %d bytes", credentials.EncryptionKeyLength)
	}
	if len(c.SessionSecret) < session.MinSecretLength {
		return fmt.Errorf("session secret must be at least %d bytes", session.MinSecretLength)
	}

	lifespans := map[string]time.Duration{
		"access token lifespan":  c.AccessTokenLifespan,
		"refresh token lifespan": c.RefreshTokenLifespan,
		"auth code lifespan":     c.AuthCodeLifespan,
		"session lifespan":       c.SessionLifespan,
		"client touch interval":  c.ClientTouchInterval,
	}
	for name, d := range lifespans {
		if d < 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if err := c.RegisterRateLimit.Validate(); err != nil {
		return fmt.Errorf("register rate limit: %w", err)
	}
	if err := c.TokenRateLimit.Validate(); err != nil {
		return fmt.Errorf("token rate limit: %w", err)
	}

	logger.Debugw("authserver config validation passed", "base_domain", c.BaseDomain)
	return nil
}
