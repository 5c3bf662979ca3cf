// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package secrets

import (
	"strings"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI extracts service and key from a keyring://service/key URI.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", parleyerr.Errorf(parleyerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", parleyerr.Errorf(parleyerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// Resolve turns a config value into a secret. keyring://service/key values
// are read from the OS keyring; anything else is returned unchanged.
// Used for llm.api_key and server.jwt_secret.
func Resolve(value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	ks, err := NewKeyringStore(service)
	if err != nil {
		return "", err
	}
	secret, err := ks.Get(key)
	if err != nil {
		return "", parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "resolving keyring URI %q", value)
	}
	return secret, nil
}
