// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-dev/parley/internal/provider"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

func TestRegistry_Open(t *testing.T) {
	r := provider.NewRegistry()
	var got provider.Config
	r.Register("Scripted", func(cfg provider.Config) (provider.Provider, error) {
		got = cfg
		return &scripted{}, nil
	})
	r.Register("other", func(provider.Config) (provider.Provider, error) { return &scripted{}, nil })

	assert.Equal(t, []string{"other", "scripted"}, r.Names())

	p, err := r.Open(provider.Config{Name: " SCRIPTED ", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "scripted", p.Name())
	assert.Equal(t, "k", got.APIKey)
}

func TestRegistry_OpenUnknown(t *testing.T) {
	r := provider.NewRegistry()
	r.Register("echo", func(provider.Config) (provider.Provider, error) { return &scripted{}, nil })

	_, err := r.Open(provider.Config{Name: "mystery"})
	require.Error(t, err)
	assert.True(t, parleyerr.IsNotFound(err))
	assert.Equal(t, "echo", parleyerr.FieldsOf(err)["available"])
}

func TestMissingKey(t *testing.T) {
	err := provider.MissingKey("openai")
	assert.True(t, parleyerr.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "openai")
}
