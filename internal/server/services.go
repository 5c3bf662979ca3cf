// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server

import (
	"github.com/parley-dev/parley/internal/provider"
	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Defaults applied by NewServices when the corresponding setting is zero.
const (
	DefaultSummaryEvery    = 5
	DefaultSearchThreshold = 0.7
	DefaultSearchLimit     = 5
	DefaultTitle           = "New Conversation"
)

// ChatSettings tune how replies, summaries and searches are produced.
type ChatSettings struct {
	Model        string
	SystemPrompt string
	Temperature  *float64
	MaxTokens    int

	// SummaryEvery regenerates the summary whenever the message count is a
	// multiple of it.
	SummaryEvery    int
	SearchThreshold float64
	SearchLimit     int

	Version string
}

func (c *ChatSettings) applyDefaults() {
	if c.SummaryEvery <= 0 {
		c.SummaryEvery = DefaultSummaryEvery
	}
	if c.SearchThreshold <= 0 {
		c.SearchThreshold = DefaultSearchThreshold
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = DefaultSearchLimit
	}
}

// Services holds dependencies injected into route handlers.
// Use NewServices to ensure all required services are provided.
type Services struct {
	store    store.Store
	llm      *provider.Tracked
	tokens   *TokenIssuer
	settings ChatSettings
}

// NewServices creates a Services instance with validation.
func NewServices(st store.Store, llm *provider.Tracked, tokens *TokenIssuer, settings ChatSettings) (*Services, error) {
	if st == nil {
		return nil, parleyerr.New(parleyerr.CodeServerConfigInvalid, "store is required")
	}
	if llm == nil {
		return nil, parleyerr.New(parleyerr.CodeServerConfigInvalid, "llm provider is required")
	}
	if tokens == nil {
		return nil, parleyerr.New(parleyerr.CodeServerConfigInvalid, "token issuer is required")
	}
	settings.applyDefaults()
	return &Services{store: st, llm: llm, tokens: tokens, settings: settings}, nil
}

// Store returns the persistence layer.
func (s *Services) Store() store.Store { return s.store }

// LLM returns the health-tracked provider.
func (s *Services) LLM() *provider.Tracked { return s.llm }

// Tokens returns the JWT issuer.
func (s *Services) Tokens() *TokenIssuer { return s.tokens }

// Settings returns the effective chat settings.
func (s *Services) Settings() ChatSettings { return s.settings }
