// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package echo_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-dev/parley/internal/provider"
	"github.com/parley-dev/parley/internal/provider/echo"
)

func TestChat_EchoesLastUserMessage(t *testing.T) {
	p := echo.New()
	reply, err := provider.Complete(context.Background(), p, provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.MessageRoleUser, Content: "first"},
			{Role: provider.MessageRoleAssistant, Content: "Echo: first"},
			{Role: provider.MessageRoleUser, Content: "second question"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Echo: second question", reply.Text)
	assert.Equal(t, provider.Usage{InputTokens: 2, OutputTokens: 3}, reply.Usage)
}

func TestEmbed(t *testing.T) {
	p := echo.New()
	ctx := context.Background()

	a, err := p.Embed(ctx, "Python decorators")
	require.NoError(t, err)
	require.Len(t, a, echo.Dimensions)

	b, err := p.Embed(ctx, "python, DECORATORS!")
	require.NoError(t, err)
	assert.Equal(t, a, b, "case and punctuation are ignored")

	c, err := p.Embed(ctx, "   ")
	require.NoError(t, err)
	assert.Equal(t, float32(1), c[echo.Dimensions-1])
	assert.InDelta(t, 1.0, norm(c), 1e-6)
}

func TestFactory(t *testing.T) {
	p, err := echo.Factory(provider.Config{})
	require.NoError(t, err)
	assert.Equal(t, echo.Name, p.Name())

	_, ok := p.(provider.Embedder)
	assert.True(t, ok)
}

func norm(v []float32) float64 {
	var s float64
	for _, f := range v {
		s += float64(f) * float64(f)
	}
	return math.Sqrt(s)
}
