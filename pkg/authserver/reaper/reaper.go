// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package reaper periodically removes dynamically registered clients that
// were never used or have gone quiet, along with expired codes and tokens.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/wikiauth/pkg/authserver/metrics"
	"github.com/stacklok/wikiauth/pkg/logger"
	"github.com/stacklok/wikiauth/pkg/storage"
)

// Defaults applied to zero-valued Config fields.
const (
	DefaultInterval     = 24 * time.Hour
	DefaultBatchSize    = 500
	DefaultNeverUsedTTL = 48 * time.Hour
	DefaultInactiveTTL  = 30 * 24 * time.Hour
)

// Config controls the reaper schedule and predicates.
type Config struct {
	// Interval between passes.
	Interval time.Duration
	// BatchSize caps deletions per table in one pass.
	BatchSize int
	// NeverUsedTTL expires dynamic clients that never became active.
	NeverUsedTTL time.Duration
	// InactiveTTL expires dynamic clients idle for longer than this.
	InactiveTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.NeverUsedTTL == 0 {
		c.NeverUsedTTL = DefaultNeverUsedTTL
	}
	if c.InactiveTTL == 0 {
		c.InactiveTTL = DefaultInactiveTTL
	}
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	if c.Interval < 0 || c.NeverUsedTTL < 0 || c.InactiveTTL < 0 {
		return errors.New("reaper durations must be positive")
	}
	if c.BatchSize < 0 {
		return errors.New("reaper batch size must be positive")
	}
	return nil
}

// Result counts what one pass removed.
type Result struct {
	Clients int64
	Expired int64
}

// Reaper runs the cleanup passes.
type Reaper struct {
	store   storage.ReapStore
	cfg     Config
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithMetrics records removed rows on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reaper) { r.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reaper) { r.now = now }
}

// New creates a Reaper over store.
func New(store storage.ReapStore, cfg Config, opts ...Option) (*Reaper, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Reaper{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunOnce performs a single pass. Abandoned clients go first so that their
// cascaded tokens are not counted as expired.
func (r *Reaper) RunOnce(ctx context.Context) (Result, error) {
	now := r.now()
	var res Result

	n, err := r.store.DeleteAbandonedClients(ctx, storage.ReapPolicy{
		Now:          now,
		NeverUsedTTL: r.cfg.NeverUsedTTL,
		InactiveTTL:  r.cfg.InactiveTTL,
		Limit:        r.cfg.BatchSize,
	})
	if err != nil {
		return res, fmt.Errorf("reaping clients: %w", err)
	}
	res.Clients = n
	r.metrics.Reaped("clients", n)

	n, err = r.store.DeleteExpired(ctx, now, r.cfg.BatchSize)
	r.metrics.Reaped("expired", n)
	res.Expired = n
	if err != nil {
		return res, fmt.Errorf("purging expired records: %w", err)
	}

	if res.Clients == int64(r.cfg.BatchSize) {
		logger.Warnw("reaper hit its batch limit, remaining clients wait for the next pass",
			"batch_size", r.cfg.BatchSize)
	}
	logger.Infow("reaper pass complete",
		"clients_deleted", res.Clients,
		"expired_deleted", res.Expired,
	)
	return res, nil
}

// Run performs a pass immediately and then once per interval until ctx is
// done. Failed passes are logged and retried on the next tick.
func (r *Reaper) Run(ctx context.Context) error {
	logger.Infow("starting reaper", "interval", r.cfg.Interval.String())

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Errorw("reaper pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Debugw("reaper stopped")
			return nil
		case <-ticker.C:
		}
	}
}
