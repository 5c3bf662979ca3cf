// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package store

import (
	"sort"
	"sync"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Factory opens a backend rooted at dataDir.
type Factory func(dataDir string) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a named backend. Backend packages call this from
// init.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends lists the registered backend names.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the configured backend, defaulting to "sqlite".
func Open(cfg StorageConfig) (Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "sqlite"
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, parleyerr.Errorf(parleyerr.CodeStoreInvalidInput, "unsupported storage backend: %q", backend)
	}
	if cfg.DataDir == "" {
		return nil, parleyerr.New(parleyerr.CodeStoreInvalidInput, "storage data directory is required")
	}
	return factory(cfg.DataDir)
}
