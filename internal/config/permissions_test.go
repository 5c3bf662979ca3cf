// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

//go:build !windows

package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return &buf
}

func TestWarnInsecurePermissions(t *testing.T) {
	tests := []struct {
		perm       os.FileMode
		expectWarn bool
	}{
		{0o600, false},
		{0o400, false},
		{0o644, true},
		{0o604, true},
		{0o640, true},
	}

	for _, tt := range tests {
		t.Run(tt.perm.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "parley.yaml")
			require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600))
			require.NoError(t, os.Chmod(path, tt.perm))

			buf := captureLogs(t)
			WarnInsecurePermissions(path)

			if tt.expectWarn {
				assert.Contains(t, buf.String(), "insecure permissions")
				assert.Contains(t, buf.String(), path)
				assert.Contains(t, buf.String(), "0600")
			} else {
				assert.NotContains(t, buf.String(), "insecure permissions")
			}
		})
	}
}

func TestWarnInsecurePermissions_EmptyPath(t *testing.T) {
	buf := captureLogs(t)
	WarnInsecurePermissions("")
	assert.Empty(t, buf.String())
}

func TestInsecurePermissions_MissingFile(t *testing.T) {
	buf := captureLogs(t)
	bad, _ := InsecurePermissions("/nonexistent/parley.yaml")
	assert.False(t, bad)
	assert.NotContains(t, buf.String(), "insecure permissions")
}
