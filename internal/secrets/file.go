// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package secrets

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileStore keeps secrets in a YAML file readable only by its owner.
// It is the fallback for hosts without a keyring service.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, parleyerr.New(parleyerr.CodeSecretInvalidInput, "file store: path must not be empty")
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(key string) (string, error) {
	if err := requireKey("get", key); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}
	val, ok := entries[key]
	if !ok {
		return "", notFound(key)
	}
	return val, nil
}

func (s *FileStore) Set(key, value string) error {
	if err := requireKey("set", key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[key] = value
	return s.save(entries)
}

func (s *FileStore) Delete(key string) error {
	if err := requireKey("delete", key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

func (s *FileStore) load() (map[string]string, error) {
	entries := map[string]string{}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "reading %s", s.path)
	}

	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "decoding %s", s.path)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return entries, nil
}

func (s *FileStore) save(entries map[string]string) error {
	data, err := yaml.Marshal(entries)
	if err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "encoding %s", s.path)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "creating directory for %s", s.path)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "writing %s", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "replacing %s", s.path)
	}
	return nil
}
