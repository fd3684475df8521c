// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL is how long an unused bucket is kept before it is dropped.
const idleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory is a token-bucket limiter local to this process.
type Memory struct {
	rule  Rule
	now   func() time.Time
	mu    sync.Mutex
	keys  map[string]*bucket
	swept time.Time
}

// NewMemory returns an in-process limiter for rule.
func NewMemory(rule Rule) (*Memory, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return &Memory{rule: rule, now: time.Now, keys: make(map[string]*bucket)}, nil
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(now)
	b, ok := m.keys[key]
	if !ok {
		every := m.rule.Window / time.Duration(m.rule.Limit)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), m.rule.Limit)}
		m.keys[key] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, m.rule.Window, nil
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.swept) < idleTTL {
		return
	}
	m.swept = now
	for k, b := range m.keys {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(m.keys, k)
		}
	}
}
