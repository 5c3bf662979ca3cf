// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-dev/parley/internal/provider"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

func TestWireBackend_Echo(t *testing.T) {
	b, err := WireBackend(testServerConfig(t), "1.2.3")
	require.NoError(t, err)
	defer func() { assert.NoError(t, b.Close()) }()

	assert.Equal(t, "echo", b.LLM.Name())

	rec := httptest.NewRecorder()
	b.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
	assert.Contains(t, rec.Body.String(), `"provider":"echo"`)
}

func TestWireBackend_RejectsShortSecret(t *testing.T) {
	cfg := testServerConfig(t)
	cfg.Server.JWTSecret = "short"

	_, err := WireBackend(cfg, "test")
	require.Error(t, err)
	assert.True(t, parleyerr.HasCode(err, parleyerr.CodeConfigValidateInvalidValue))
}

func TestWireBackend_MissingAPIKey(t *testing.T) {
	for _, name := range []string{"openai", "openrouter", "anthropic", "google"} {
		t.Run(name, func(t *testing.T) {
			cfg := testServerConfig(t)
			cfg.LLM.Provider = name

			_, err := WireBackend(cfg, "test")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "missing api_key")
		})
	}
}

func TestWireBackend_ProviderFactoryFailure(t *testing.T) {
	old := builtinProviders["echo"]
	builtinProviders["echo"] = func(provider.Config) (provider.Provider, error) {
		return nil, errors.New("boom")
	}
	t.Cleanup(func() { builtinProviders["echo"] = old })

	_, err := WireBackend(testServerConfig(t), "test")
	require.Error(t, err)
	assert.True(t, parleyerr.HasCode(err, parleyerr.CodeCLISetupFailure))
}

func TestProviderRegistry_Names(t *testing.T) {
	assert.Equal(t, []string{"anthropic", "echo", "google", "openai", "openrouter"}, providerRegistry().Names())
}
