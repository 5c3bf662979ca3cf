// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package provider

import (
	"sort"
	"strings"
	"sync"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Config selects and configures a provider.
type Config struct {
	Name           string
	Model          string
	EmbeddingModel string
	APIKey         string
	BaseURL        string
}

// Factory builds a provider from cfg.
type Factory func(cfg Config) (Provider, error)

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Names are case-insensitive.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the provider named by cfg.Name.
func (r *Registry) Open(cfg Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))

	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, parleyerr.New(parleyerr.CodeProviderNotFound,
			"provider not found: "+cfg.Name,
			parleyerr.FieldProvider(cfg.Name),
			parleyerr.Field("available", strings.Join(r.Names(), ", ")),
		)
	}
	return f(cfg)
}

// MissingKey is returned by factories that need an API key.
func MissingKey(name string) error {
	return parleyerr.New(parleyerr.CodeProviderRequestInvalid, name+": missing api_key in config",
		parleyerr.FieldProvider(name))
}
