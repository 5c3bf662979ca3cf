// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package echo is an offline provider. It answers with the last user
// message and embeds text by hashing its words, which is enough to run the
// server without credentials.
package echo

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/parley-dev/parley/internal/provider"
)

// Name is the registry name of this provider.
const Name = "echo"

// Dimensions of the hashed embeddings.
const Dimensions = 64

// Provider implements provider.Provider and provider.Embedder.
type Provider struct{}

// New returns an echo provider.
func New() *Provider { return &Provider{} }

// Factory adapts New to provider.Factory.
func Factory(provider.Config) (provider.Provider, error) { return New(), nil }

func (p *Provider) Name() string { return Name }

func (p *Provider) Close() error { return nil }

// Chat replies "Echo: <last user message>".
func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == provider.MessageRoleUser {
			last = req.Messages[i].Content
			break
		}
	}

	ch := make(chan provider.ChatEvent, 3)
	go func() {
		defer close(ch)
		words := len(strings.Fields(last))
		if !provider.Send(ctx, ch, provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: "Echo: " + strings.TrimSpace(last)}) {
			return
		}
		if !provider.Send(ctx, ch, provider.ChatEvent{
			Type:  provider.EventTypeUsage,
			Usage: &provider.Usage{InputTokens: words, OutputTokens: words + 1},
		}) {
			return
		}
		provider.Send(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone})
	}()
	return ch, nil
}

// Embed hashes lowercase words into a fixed-size count vector. Text with no
// words maps to a unit vector on the last dimension so the result is never
// all zeros.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, Dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		v[Dimensions-1] = 1
		return v, nil
	}
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%(Dimensions-1)]++
	}
	return v, nil
}
