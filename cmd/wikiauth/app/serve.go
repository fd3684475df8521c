// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/wikiauth/pkg/authserver"
	"github.com/stacklok/wikiauth/pkg/authserver/metrics"
	"github.com/stacklok/wikiauth/pkg/authserver/ratelimit"
	"github.com/stacklok/wikiauth/pkg/authserver/reaper"
	"github.com/stacklok/wikiauth/pkg/logger"
	mcpserver "github.com/stacklok/wikiauth/pkg/mcp/server"
	"github.com/stacklok/wikiauth/pkg/versions"
	"github.com/stacklok/wikiauth/pkg/wiki"
)

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverIdleTimeout      = 60 * time.Second
	redisConnectAttempts   = 5
)

const (
	keyAddress       = "address"
	keyMetrics       = "metrics"
	keyNoReaper      = "no-reaper"
	keyRedisAddr     = "redis-addr"
	keyRedisUsername = "redis-username"
	keyRedisPassword = "redis-password"
	keyRedisDB       = "redis-db"
	keyRedisPrefix   = "redis-key-prefix"
	keyMCPSessionTTL = "mcp-session-ttl"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authorization server",
		Long: `Start the authorization server. It serves the OAuth endpoints, dynamic client
registration and the MCP tool endpoint for every team, and runs the client
reaper in the background.`,
		PreRunE: bindLocalFlags,
		RunE:    runServe,
	}

	f := cmd.Flags()
	f.String(keyAddress, ":8080", "Address to listen on")
	f.Bool(keyMetrics, false, "Expose Prometheus metrics at /metrics")
	f.Bool(keyNoReaper, false, "Do not run the reaper in this process")
	f.String(keyRedisAddr, "", "Redis address for rate limits shared across replicas")
	f.String(keyRedisUsername, "", "Redis username")
	f.String(keyRedisPassword, "", "Redis password")
	f.Int(keyRedisDB, 0, "Redis database number")
	f.String(keyRedisPrefix, "wikiauth:ratelimit:", "Prefix for rate limit keys in Redis")
	f.Duration(keyMCPSessionTTL, mcpserver.DefaultSessionTTL, "Idle lifetime of MCP sessions")
	return cmd
}

// connectRedis dials Redis, retrying with exponential backoff while the
// server starts alongside its dependencies.
func connectRedis(ctx context.Context, cfg ratelimit.RedisConfig) (redis.UniversalClient, error) {
	return backoff.Retry(ctx, func() (redis.UniversalClient, error) {
		return ratelimit.NewRedisClient(ctx, cfg)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(redisConnectAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warnw("redis not reachable, retrying", "addr", cfg.Addr, "error", err, "retry_in", next.String())
		}),
	)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	v := viper.GetViper()

	var (
		opts []authserver.Option
		m    *metrics.Metrics
	)
	if v.GetBool(keyMetrics) {
		m = metrics.New()
		opts = append(opts, authserver.WithMetrics(m))
	}
	if addr := v.GetString(keyRedisAddr); addr != "" {
		client, err := connectRedis(ctx, ratelimit.RedisConfig{
			Addr:     addr,
			Username: v.GetString(keyRedisUsername),
			Password: v.GetString(keyRedisPassword),
			DB:       v.GetInt(keyRedisDB),
		})
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		opts = append(opts, authserver.WithRedisLimiter(client, v.GetString(keyRedisPrefix)))
	}

	srv, db, err := openServer(ctx, v, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	tools := mcpserver.New(mcpserver.Config{
		Version:    versions.GetVersionInfo().Version,
		SessionTTL: v.GetDuration(keyMCPSessionTTL),
	}, srv, wiki.NewService(db))
	srv.MountTenant("/mcp", tools.Handler())

	var reap *reaper.Reaper
	if !v.GetBool(keyNoReaper) {
		if reap, err = reaper.New(db, reaperConfigFrom(v), reaper.WithMetrics(m)); err != nil {
			return err
		}
	}

	address := v.GetString(keyAddress)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: serverReadTimeout,
		IdleTimeout:       serverIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("server listening", "address", address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if reap != nil {
		g.Go(func() error { return reap.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Infow("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), defaultGracefulTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Infow("server shutdown complete")
	return nil
}
