// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parley-dev/parley/internal/config"
)

const testJWTSecret = "cli-test-secret-0123456789abcdef"

func testServerConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Listen:     "127.0.0.1:0",
			JWTSecret:  testJWTSecret,
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
			DataDir:    t.TempDir(),
		},
		LLM: config.LLMConfig{
			Provider:     "echo",
			Temperature:  0.7,
			MaxTokens:    100,
			SystemPrompt: config.DefaultSystemPrompt,
		},
	}
}

// startBackend serves a fresh echo-backed API and returns its URL.
func startBackend(t *testing.T) string {
	t.Helper()
	b, err := WireBackend(testServerConfig(t), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	ts := httptest.NewServer(b.Server.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// writeConfig writes a client config pointing at baseURL. Tokens go to a
// file so that consecutive commands share the session.
func writeConfig(t *testing.T, baseURL string, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`client:
  base_url: %q
  timeout: 5s
auth:
  token_store: file
  token_file: %q
search:
  debounce: 0s
log:
  level: error
server:
  jwt_secret: %q
  data_dir: %q
`, baseURL, filepath.Join(dir, "tokens.yaml"), testJWTSecret, filepath.Join(dir, "data"))
	body += strings.Join(extra, "\n")

	path := filepath.Join(dir, "parley.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

type result struct {
	out    string
	stderr string
	err    error
}

// run executes one parley invocation with cfgPath and stdin.
func run(t *testing.T, cfgPath, stdin string, args ...string) result {
	t.Helper()
	return runContext(t, context.Background(), cfgPath, stdin, args...)
}

func runContext(t *testing.T, ctx context.Context, cfgPath, stdin string, args ...string) result {
	t.Helper()
	root := NewRootCmd()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := root.ExecuteContext(ctx)
	return result{out: stdout.String(), stderr: stderr.String(), err: err}
}

// signUp registers and logs in alice.
func signUp(t *testing.T, cfgPath string) {
	t.Helper()
	r := run(t, cfgPath, "", "register", "--email", "alice@example.com", "-u", "alice", "-p", "correct-horse")
	require.NoError(t, r.err)
	r = run(t, cfgPath, "", "login", "-u", "alice", "-p", "correct-horse")
	require.NoError(t, r.err)
}
