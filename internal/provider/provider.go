// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package provider abstracts the LLM backends used by the reference server
// for replies, summaries and embeddings.
package provider

import (
	"context"
	"strings"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Provider is the core interface for LLM providers. Chat streams events on
// the returned channel and closes it when the reply is complete.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
	Close() error
}

// Embedder is implemented by providers that can embed text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChatRequest represents a request to the LLM.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Options      ChatOptions
}

// ChatOptions contains model configuration. A nil Temperature leaves the
// provider default.
type ChatOptions struct {
	Temperature *float64
	MaxTokens   int
}

// Message represents a conversation message.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ChatEvent is a streaming response event.
type ChatEvent struct {
	Type  EventType
	Text  string
	Usage *Usage
	Error string
}

// EventType defines the type of chat event.
type EventType string

const (
	EventTypeTextDelta EventType = "text_delta"
	EventTypeUsage     EventType = "usage"
	EventTypeDone      EventType = "done"
	EventTypeError     EventType = "error"
)

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Reply is a fully collected chat response.
type Reply struct {
	Text  string
	Usage Usage
}

// Collect drains events into a Reply. An error event, a cancelled context,
// or an empty reply is an error.
func Collect(ctx context.Context, events <-chan ChatEvent) (Reply, error) {
	var (
		b     strings.Builder
		reply Reply
	)
	for {
		select {
		case <-ctx.Done():
			return Reply{}, parleyerr.Wrap(ctx.Err(), parleyerr.CodeProviderUpstreamFailure, "waiting for reply")
		case ev, ok := <-events:
			if !ok {
				return finish(&b, reply)
			}
			switch ev.Type {
			case EventTypeTextDelta:
				b.WriteString(ev.Text)
			case EventTypeUsage:
				if ev.Usage != nil {
					reply.Usage.InputTokens += ev.Usage.InputTokens
					reply.Usage.OutputTokens += ev.Usage.OutputTokens
				}
			case EventTypeError:
				return Reply{}, parleyerr.New(parleyerr.CodeProviderUpstreamFailure, ev.Error,
					parleyerr.FieldReason("Error generating AI response"))
			case EventTypeDone:
				return finish(&b, reply)
			}
		}
	}
}

func finish(b *strings.Builder, reply Reply) (Reply, error) {
	reply.Text = strings.TrimSpace(b.String())
	if reply.Text == "" {
		return Reply{}, parleyerr.New(parleyerr.CodeProviderResponseInvalid, "provider returned an empty reply",
			parleyerr.FieldReason("Error generating AI response"))
	}
	return reply, nil
}

// Complete sends req to p and collects the reply.
func Complete(ctx context.Context, p Provider, req ChatRequest) (Reply, error) {
	events, err := p.Chat(ctx, req)
	if err != nil {
		return Reply{}, err
	}
	return Collect(ctx, events)
}

// Embed embeds text with p, or fails with CodeProviderEmbeddingUnsupported
// when p cannot embed.
func Embed(ctx context.Context, p Provider, text string) ([]float32, error) {
	e, ok := p.(Embedder)
	if !ok {
		return nil, parleyerr.New(parleyerr.CodeProviderEmbeddingUnsupported, p.Name()+" does not support embeddings",
			parleyerr.FieldProvider(p.Name()))
	}
	return e.Embed(ctx, text)
}

// IsEmbeddingUnsupported reports whether err came from a provider without
// embeddings.
func IsEmbeddingUnsupported(err error) bool {
	return parleyerr.HasCode(err, parleyerr.CodeProviderEmbeddingUnsupported)
}

// Float32s converts an embedding returned as float64 values.
func Float32s(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// Send delivers ev on ch unless ctx is done first. It reports whether the
// event was delivered.
func Send(ctx context.Context, ch chan<- ChatEvent, ev ChatEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
