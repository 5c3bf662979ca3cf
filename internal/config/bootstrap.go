// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

//go:embed parley.yaml.default
var DefaultConfigYAML []byte

// DefaultDir returns ~/.config/parley.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", parleyerr.Errorf(parleyerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "parley"), nil
}

// DefaultConfigPath returns ~/.config/parley/parley.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "parley.yaml"), nil
}

// SearchPaths lists the locations probed for parley.yaml, in order.
func SearchPaths() []string {
	paths := []string{"parley.yaml"}
	if p, err := DefaultConfigPath(); err == nil {
		paths = append(paths, p)
	}
	return append(paths, filepath.Join("/etc", "parley", "parley.yaml"))
}

// FindConfigFile returns the first existing file from SearchPaths, or "".
func FindConfigFile() string {
	for _, p := range SearchPaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// BootstrapConfig writes the default commented config to path if it does not
// already exist. Returns the path written, or empty string if the file already
// existed or could not be written.
func BootstrapConfig(path string) string {
	if _, err := os.Stat(path); err == nil {
		return ""
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", path, "error", err)
		return ""
	}

	slog.Info("created default config", "path", path)
	return path
}
