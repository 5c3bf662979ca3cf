// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package secrets

import (
	"log/slog"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Keys under which the session token pair is persisted.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// Store is the client-local persisted key/value area used for session tokens.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key. Missing keys yield CodeSecretNotFound.
	Get(key string) (string, error)

	// Set saves value under key, replacing any existing value.
	Set(key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// Backend names accepted by Open.
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendMemory  = "memory"
)

// Options selects and configures a Store.
type Options struct {
	Backend string
	Service string
	File    string
}

// Open returns the Store for opts.Backend. When the OS keyring is
// unavailable the file backend is used instead, provided a file path is set.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(opts.File)
	case BackendKeyring, "":
		ks, err := NewKeyringStore(opts.Service)
		if err != nil {
			return nil, err
		}
		if probeErr := ks.Probe(); probeErr != nil {
			if opts.File == "" {
				return nil, probeErr
			}
			slog.Warn("os keyring unavailable, storing tokens in file",
				"path", opts.File,
				"error", probeErr,
			)
			return NewFileStore(opts.File)
		}
		return ks, nil
	default:
		return nil, parleyerr.Errorf(parleyerr.CodeSecretInvalidInput, "unknown token store %q", opts.Backend)
	}
}

func requireKey(op, key string) error {
	if key == "" {
		return parleyerr.Errorf(parleyerr.CodeSecretInvalidInput, "secret %s: key must not be empty", op)
	}
	return nil
}

func notFound(key string) error {
	return parleyerr.New(parleyerr.CodeSecretNotFound, "secret not found", parleyerr.Field("key", key))
}
