// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package secrets

import "sync"

// MemoryStore keeps secrets for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, error) {
	if err := requireKey("get", key); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.entries[key]
	if !ok {
		return "", notFound(key)
	}
	return val, nil
}

func (s *MemoryStore) Set(key, value string) error {
	if err := requireKey("set", key); err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	if err := requireKey("delete", key); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}
