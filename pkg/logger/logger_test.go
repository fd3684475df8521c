// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-core/env/mocks"
	"github.com/stacklok/toolhive-core/logging"
)

func TestTextFormatWithEnv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		envValue string
		expected bool
	}{
		{"unset defaults to json", "", false},
		{"text", "text", true},
		{"text mixed case", " TEXT ", true},
		{"json", "json", false},
		{"unknown value", "yaml", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			mockEnv := mocks.NewMockReader(ctrl)
			mockEnv.EXPECT().Getenv(FormatEnvVar).Return(tt.envValue)

			assert.Equal(t, tt.expected, textFormatWithEnv(mockEnv))
		})
	}
}

func setSingletonForTest(t *testing.T, l *slog.Logger) {
	t.Helper()
	prev := singleton.Load()
	singleton.Store(l)
	t.Cleanup(func() { singleton.Store(prev) })
}

func TestLogHelpers(t *testing.T) { //nolint:paralleltest // mutates singleton
	tests := []struct {
		name     string
		logFn    func()
		contains []string
	}{
		{"Debugw", func() { Debugw("client touched", "client_id", "abc") }, []string{"client touched", "abc"}},
		{"Infow", func() { Infow("client registered", "client_id", "def") }, []string{"client registered", "def"}},
		{"Infof", func() { Infof("listening on %s", ":8080") }, []string{"listening on :8080"}},
		{"Warnw", func() { Warnw("rate limited", "route", "register") }, []string{"rate limited", "register"}},
		{"Errorw", func() { Errorw("storage failure", "error", "disk full") }, []string{"storage failure", "disk full"}},
		{"Errorf", func() { Errorf("failed: %v", "boom") }, []string{"failed: boom"}},
	}

	for _, tc := range tests { //nolint:paralleltest // mutates singleton
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			setSingletonForTest(t, logging.New(
				logging.WithOutput(&buf),
				logging.WithLevel(slog.LevelDebug),
			))

			tc.logFn()

			for _, s := range tc.contains {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestWithAndGet(t *testing.T) { //nolint:paralleltest // mutates singleton
	var buf bytes.Buffer
	setSingletonForTest(t, logging.New(logging.WithOutput(&buf)))

	require.NotNil(t, Get())
	With("component", "reaper").Info("pass complete")

	assert.Contains(t, buf.String(), "pass complete")
	assert.Contains(t, buf.String(), "reaper")
}

func TestInitializeWithEnv(t *testing.T) { //nolint:paralleltest // mutates singleton
	prev := singleton.Load()
	t.Cleanup(func() { singleton.Store(prev) })

	ctrl := gomock.NewController(t)
	mockEnv := mocks.NewMockReader(ctrl)
	mockEnv.EXPECT().Getenv(FormatEnvVar).Return("text")

	InitializeWithEnv(mockEnv)

	assert.NotSame(t, prev, Get())
}
