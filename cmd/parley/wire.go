// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"errors"
	"log/slog"

	"github.com/parley-dev/parley/internal/config"
	"github.com/parley-dev/parley/internal/provider"
	anthropicprov "github.com/parley-dev/parley/internal/provider/anthropic"
	echoprov "github.com/parley-dev/parley/internal/provider/echo"
	googleprov "github.com/parley-dev/parley/internal/provider/google"
	openaiprov "github.com/parley-dev/parley/internal/provider/openai"
	"github.com/parley-dev/parley/internal/secrets"
	"github.com/parley-dev/parley/internal/server"
	"github.com/parley-dev/parley/internal/store"
	_ "github.com/parley-dev/parley/internal/store/sqlite" // register sqlite backend
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Backend holds the wired reference backend and owns its resources.
type Backend struct {
	Server *server.Server
	Store  store.Store
	LLM    *provider.Tracked

	provider provider.Provider
}

// builtinProviders maps llm.provider names to their factories. Declared as a
// variable so tests can inject failing factories.
var builtinProviders = map[string]provider.Factory{
	echoprov.Name: echoprov.Factory,
	"openai":      openaiprov.Factory,
	"openrouter":  openaiprov.OpenRouterFactory,
	"anthropic":   anthropicprov.Factory,
	"google":      googleprov.Factory,
}

func providerRegistry() *provider.Registry {
	reg := provider.NewRegistry()
	for name, f := range builtinProviders {
		reg.Register(name, f)
	}
	return reg
}

// WireBackend opens the store, the LLM provider and the token issuer named
// by cfg and builds the HTTP server on top of them.
func WireBackend(cfg *config.Config, version string) (*Backend, error) {
	if errs := cfg.ValidateServe(); len(errs) > 0 {
		return nil, parleyerr.Errorf(parleyerr.CodeConfigValidateInvalidValue, "validating server config: %w", errors.Join(errs...))
	}

	jwtSecret, err := secrets.Resolve(cfg.Server.JWTSecret)
	if err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeCLISetupFailure, "resolving server.jwt_secret")
	}
	apiKey, err := secrets.Resolve(cfg.LLM.APIKey)
	if err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeCLISetupFailure, "resolving llm.api_key")
	}

	tokens, err := server.NewTokenIssuer(jwtSecret, cfg.Server.AccessTTL, cfg.Server.RefreshTTL)
	if err != nil {
		return nil, err
	}

	p, err := providerRegistry().Open(provider.Config{
		Name:           cfg.LLM.Provider,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		APIKey:         apiKey,
		BaseURL:        cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeCLISetupFailure, "opening llm provider %s", cfg.LLM.Provider)
	}
	llm, err := provider.Track(p, provider.DefaultHealthCooldown)
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	st, err := store.Open(store.StorageConfig{DataDir: cfg.Server.DataDir})
	if err != nil {
		_ = p.Close()
		return nil, parleyerr.Wrapf(err, parleyerr.CodeCLISetupFailure, "opening store in %s", cfg.Server.DataDir)
	}

	temperature := cfg.LLM.Temperature
	services, err := server.NewServices(st, llm, tokens, server.ChatSettings{
		Model:        cfg.LLM.Model,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Temperature:  &temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
		Version:      version,
	})
	if err != nil {
		_ = st.Close()
		_ = p.Close()
		return nil, err
	}

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit,
			Burst:             cfg.Server.Burst,
		},
		Services: services,
	})
	if err != nil {
		_ = st.Close()
		_ = p.Close()
		return nil, parleyerr.Wrapf(err, parleyerr.CodeCLISetupFailure, "creating server")
	}

	slog.Info("backend wired", "provider", p.Name(), "data_dir", cfg.Server.DataDir)
	return &Backend{Server: srv, Store: st, LLM: llm, provider: p}, nil
}

// Close releases all resources held by the backend.
func (b *Backend) Close() error {
	b.Server.Close()
	return errors.Join(b.provider.Close(), b.Store.Close())
}
