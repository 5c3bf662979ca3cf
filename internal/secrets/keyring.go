// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package secrets

import (
	"errors"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
	"github.com/zalando/go-keyring"
)

const probeKey = "::probe"

// KeyringStore implements Store using the OS keyring via zalando/go-keyring.
// On macOS it uses Keychain, on Linux secret-service (D-Bus), and on Windows
// the Credential Manager.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a KeyringStore scoped to service.
func NewKeyringStore(service string) (*KeyringStore, error) {
	if service == "" {
		return nil, parleyerr.New(parleyerr.CodeSecretInvalidInput, "keyring store: service must not be empty")
	}
	return &KeyringStore{service: service}, nil
}

// Probe checks that the keyring backend is reachable by reading a key that
// normally does not exist.
func (s *KeyringStore) Probe() error {
	_, err := keyring.Get(s.service, probeKey)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "keyring unavailable for service %s", s.service)
}

func (s *KeyringStore) Get(key string) (string, error) {
	if err := requireKey("get", key); err != nil {
		return "", err
	}

	val, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", notFound(key)
		}
		return "", parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "retrieving secret %s/%s", s.service, key)
	}
	return val, nil
}

func (s *KeyringStore) Set(key, value string) error {
	if err := requireKey("set", key); err != nil {
		return err
	}

	if err := keyring.Set(s.service, key, value); err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "storing secret %s/%s", s.service, key)
	}
	return nil
}

func (s *KeyringStore) Delete(key string) error {
	if err := requireKey("delete", key); err != nil {
		return err
	}

	if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return parleyerr.Wrapf(err, parleyerr.CodeSecretDeleteFailure, "deleting secret %s/%s", s.service, key)
	}
	return nil
}
