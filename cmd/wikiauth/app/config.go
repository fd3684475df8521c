// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/wikiauth/pkg/authserver"
	"github.com/stacklok/wikiauth/pkg/authserver/ratelimit"
	"github.com/stacklok/wikiauth/pkg/authserver/reaper"
	"github.com/stacklok/wikiauth/pkg/logger"
	"github.com/stacklok/wikiauth/pkg/storage/sqlite"
)

// Configuration keys shared by several commands.
const (
	keyConfig        = "config"
	keyDebug         = "debug"
	keyDatabasePath  = "database-path"
	keyBaseDomain    = "base-domain"
	keyScheme        = "scheme"
	keyDefaultTeam   = "default-team"
	keyHMACSecret    = "hmac-secret"
	keyEncryptionKey = "encryption-key"
	keySessionSecret = "session-secret"

	keyAccessTokenTTL  = "access-token-lifespan"
	keyRefreshTokenTTL = "refresh-token-lifespan"
	keyAuthCodeTTL     = "auth-code-lifespan"
	keySessionTTL      = "session-lifespan"
	keyRegisterLimit   = "register-rate-limit"
	keyRegisterWindow  = "register-rate-window"
	keyTokenLimit      = "token-rate-limit"
	keyTokenWindow     = "token-rate-window"
	keyTrustProxy      = "trust-proxy"

	keyReapInterval     = "reap-interval"
	keyReapBatchSize    = "reap-batch-size"
	keyReapNeverUsedTTL = "reap-never-used-ttl"
	keyReapInactiveTTL  = "reap-inactive-ttl"
)

const defaultDatabasePath = "wikiauth.db"

func addGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringP(keyConfig, "c", "", "Path to a YAML configuration file")
	f.Bool(keyDebug, false, "Enable debug logging")
	f.String(keyDatabasePath, defaultDatabasePath, "Path to the SQLite database")
	f.String(keyBaseDomain, "", "Domain teams are served under (team acme is acme.<base-domain>)")
	f.String(keyScheme, authserver.DefaultScheme, "URL scheme used in issued URLs (http or https)")
	f.String(keyDefaultTeam, "", "Subdomain of the team served on the bare base domain")
	f.String(keyHMACSecret, "", "Base64 HMAC secret for codes and tokens (at least 32 bytes)")
	f.String(keyEncryptionKey, "", "Base64 key encrypting client secrets at rest (32 bytes)")
	f.String(keySessionSecret, "", "Base64 secret signing user sessions (at least 32 bytes)")

	f.Duration(keyAccessTokenTTL, authserver.DefaultAccessTokenLifespan, "Access token lifespan")
	f.Duration(keyRefreshTokenTTL, authserver.DefaultRefreshTokenLifespan, "Refresh token lifespan")
	f.Duration(keyAuthCodeTTL, authserver.DefaultAuthCodeLifespan, "Authorization code lifespan")
	f.Duration(keySessionTTL, authserver.DefaultSessionLifespan, "User session lifespan")
	f.Int(keyRegisterLimit, authserver.DefaultRegisterRateLimit.Limit, "Registrations allowed per client IP per window")
	f.Duration(keyRegisterWindow, authserver.DefaultRegisterRateLimit.Window, "Registration rate limit window")
	f.Int(keyTokenLimit, authserver.DefaultTokenRateLimit.Limit, "Token and revocation requests allowed per client IP per window")
	f.Duration(keyTokenWindow, authserver.DefaultTokenRateLimit.Window, "Token rate limit window")
	f.Bool(keyTrustProxy, false, "Key rate limits on X-Forwarded-For")

	f.Duration(keyReapInterval, reaper.DefaultInterval, "Time between reaper passes")
	f.Int(keyReapBatchSize, reaper.DefaultBatchSize, "Maximum rows deleted per table in one reaper pass")
	f.Duration(keyReapNeverUsedTTL, reaper.DefaultNeverUsedTTL, "Age after which never-used dynamic clients are deleted")
	f.Duration(keyReapInactiveTTL, reaper.DefaultInactiveTTL, "Idle time after which dynamic clients are deleted")

	if err := viper.BindPFlags(f); err != nil {
		logger.Errorf("Error binding global flags: %v", err)
	}
}

// loadConfigFile merges the YAML file named by --config, if any.
func loadConfigFile(v *viper.Viper) error {
	path := v.GetString(keyConfig)
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

func decodeKey(name, value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
	}
	return key, nil
}

// serverConfigFrom builds the authorization server configuration. The
// result is validated by authserver.New.
func serverConfigFrom(v *viper.Viper) (authserver.Config, error) {
	cfg := authserver.Config{
		BaseDomain:           v.GetString(keyBaseDomain),
		Scheme:               v.GetString(keyScheme),
		DefaultTeam:          v.GetString(keyDefaultTeam),
		AccessTokenLifespan:  v.GetDuration(keyAccessTokenTTL),
		RefreshTokenLifespan: v.GetDuration(keyRefreshTokenTTL),
		AuthCodeLifespan:     v.GetDuration(keyAuthCodeTTL),
		SessionLifespan:      v.GetDuration(keySessionTTL),
		RegisterRateLimit: ratelimit.Rule{
			Limit:  v.GetInt(keyRegisterLimit),
			Window: v.GetDuration(keyRegisterWindow),
		},
		TokenRateLimit: ratelimit.Rule{
			Limit:  v.GetInt(keyTokenLimit),
			Window: v.GetDuration(keyTokenWindow),
		},
		TrustProxy: v.GetBool(keyTrustProxy),
	}

	var err error
	if cfg.HMACSecret, err = decodeKey(keyHMACSecret, v.GetString(keyHMACSecret)); err != nil {
		return authserver.Config{}, err
	}
	if cfg.EncryptionKey, err = decodeKey(keyEncryptionKey, v.GetString(keyEncryptionKey)); err != nil {
		return authserver.Config{}, err
	}
	if cfg.SessionSecret, err = decodeKey(keySessionSecret, v.GetString(keySessionSecret)); err != nil {
		return authserver.Config{}, err
	}
	return cfg, nil
}

func reaperConfigFrom(v *viper.Viper) reaper.Config {
	return reaper.Config{
		Interval:     v.GetDuration(keyReapInterval),
		BatchSize:    v.GetInt(keyReapBatchSize),
		NeverUsedTTL: v.GetDuration(keyReapNeverUsedTTL),
		InactiveTTL:  v.GetDuration(keyReapInactiveTTL),
	}
}

func openDatabase(ctx context.Context, v *viper.Viper) (*sqlite.DB, error) {
	path := v.GetString(keyDatabasePath)
	db, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	logger.Debugw("database opened", "path", path)
	return db, nil
}

// openServer opens the database and assembles the authorization server.
// The caller closes the database.
func openServer(ctx context.Context, v *viper.Viper, opts ...authserver.Option) (*authserver.Server, *sqlite.DB, error) {
	cfg, err := serverConfigFrom(v)
	if err != nil {
		return nil, nil, err
	}
	db, err := openDatabase(ctx, v)
	if err != nil {
		return nil, nil, err
	}
	srv, err := authserver.New(cfg, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return srv, db, nil
}
