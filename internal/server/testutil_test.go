// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parley-dev/parley/internal/provider"
	"github.com/parley-dev/parley/internal/provider/echo"
	"github.com/parley-dev/parley/internal/server"
	"github.com/parley-dev/parley/internal/store"
	"github.com/parley-dev/parley/internal/store/sqlite"
)

const testSecret = "test-secret"

type env struct {
	srv     *server.Server
	store   store.Store
	tokens  *server.TokenIssuer
	handler http.Handler
}

type envOption func(*envConfig)

type envConfig struct {
	llm       provider.Provider
	rateLimit server.RateLimitConfig
	settings  server.ChatSettings
}

func withProvider(p provider.Provider) envOption {
	return func(c *envConfig) { c.llm = p }
}

func withRateLimit(rl server.RateLimitConfig) envOption {
	return func(c *envConfig) { c.rateLimit = rl }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()

	cfg := envConfig{
		llm:      echo.New(),
		settings: server.ChatSettings{SystemPrompt: "You are a helpful AI assistant.", Version: "test"},
	}
	for _, o := range opts {
		o(&cfg)
	}

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "parley.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tracked, err := provider.Track(cfg.llm, time.Minute)
	require.NoError(t, err)

	tokens, err := server.NewTokenIssuer(testSecret, time.Hour, 24*time.Hour)
	require.NoError(t, err)

	svc, err := server.NewServices(st, tracked, tokens, cfg.settings)
	require.NoError(t, err)

	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		RateLimit:  cfg.rateLimit,
		Services:   svc,
	})
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	return &env{srv: srv, store: st, tokens: tokens, handler: srv.Handler()}
}

// do sends a JSON request and returns the recorder.
func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// register creates an account through the API and returns an access token.
func (e *env) register(t *testing.T, username string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, server.PathRegister, "", map[string]string{
		"email":     username + "@example.com",
		"username":  username,
		"password":  "correct-horse",
		"password2": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, server.PathToken, "", map[string]string{
		"username": username,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pair struct {
		Access string `json:"access"`
	}
	decode(t, rec, &pair)
	return pair.Access
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	decode(t, rec, &body)
	return body.Detail
}

// recording is a provider that records requests and answers from a
// script. It has no embeddings.
type recording struct {
	mu       sync.Mutex
	requests []provider.ChatRequest
	reply    func(req provider.ChatRequest) (string, error)
}

func (r *recording) Name() string { return "recording" }
func (r *recording) Close() error { return nil }

func (r *recording) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()

	text := "ok"
	var err error
	if r.reply != nil {
		text, err = r.reply(req)
	}

	ch := make(chan provider.ChatEvent, 2)
	if err != nil {
		ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()}
	} else {
		ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: text}
		ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	}
	close(ch)
	return ch, nil
}

func (r *recording) Requests() []provider.ChatRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]provider.ChatRequest(nil), r.requests...)
}
