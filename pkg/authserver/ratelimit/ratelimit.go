// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit provides per-key request limiting for the public OAuth
// endpoints, backed either by process memory or by Redis for deployments
// with more than one replica.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Rule allows Limit requests per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Validate checks the rule is usable.
func (r Rule) Validate() error {
	if r.Limit <= 0 {
		return errors.New("rate limit must be positive")
	}
	if r.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	return nil
}

// Limiter decides whether a request identified by key may proceed.
// When it may not, retryAfter is how long the caller should wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}
