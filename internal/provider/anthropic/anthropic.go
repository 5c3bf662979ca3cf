// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package anthropic

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/parley-dev/parley/internal/provider"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5"

// defaultMaxTokens is sent when the request leaves MaxTokens unset; the
// Messages API requires a value.
const defaultMaxTokens = 4096

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements provider.Provider using the Anthropic Messages API.
// It does not implement provider.Embedder.
type Provider struct {
	client anthropicsdk.Client
	config Config
}

// New creates a new Anthropic provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.MissingKey("anthropic")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{client: anthropicsdk.NewClient(opts...), config: cfg}, nil
}

// Factory adapts New to provider.Factory.
func Factory(cfg provider.Config) (provider.Provider, error) {
	return New(Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Close() error { return nil }

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeProviderRequestInvalid, "anthropic: building request params")
	}

	eventCh := make(chan provider.ChatEvent, 100)

	go func() {
		defer close(eventCh)
		p.streamChat(ctx, params, eventCh)
	}()

	return eventCh, nil
}

// buildParams converts a provider.ChatRequest into Anthropic SDK MessageNewParams.
func buildParams(req provider.ChatRequest) (anthropicsdk.MessageNewParams, error) {
	msgs, system, err := convertMessages(req.Messages)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}

	if req.SystemPrompt != "" {
		params.System = append(params.System, anthropicsdk.TextBlockParam{Text: req.SystemPrompt})
	}
	for _, s := range system {
		params.System = append(params.System, anthropicsdk.TextBlockParam{Text: s})
	}

	if req.Options.Temperature != nil {
		params.Temperature = anthropicsdk.Float(*req.Options.Temperature)
	}

	return params, nil
}

// convertMessages splits out system messages, which the Messages API only
// accepts through the top-level system param.
func convertMessages(msgs []provider.Message) ([]anthropicsdk.MessageParam, []string, error) {
	var (
		result []anthropicsdk.MessageParam
		system []string
	)

	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, anthropicsdk.NewUserMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
		case provider.MessageRoleAssistant:
			result = append(result, anthropicsdk.NewAssistantMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
		case provider.MessageRoleSystem:
			system = append(system, msg.Content)
		default:
			return nil, nil, parleyerr.Errorf(parleyerr.CodeProviderRequestInvalid, "anthropic: unsupported message role %q", msg.Role)
		}
	}

	return result, system, nil
}

// streamChat runs the streaming loop, converting SDK events into provider.ChatEvent values.
func (p *Provider) streamChat(ctx context.Context, params anthropicsdk.MessageNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		event := stream.Current()

		var ev *provider.ChatEvent
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" {
				ev = &provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: event.Delta.Text}
			}

		case "message_start":
			if event.Message.Usage.InputTokens > 0 {
				ev = &provider.ChatEvent{
					Type:  provider.EventTypeUsage,
					Usage: &provider.Usage{InputTokens: int(event.Message.Usage.InputTokens)},
				}
			}

		case "message_delta":
			// Final output token count.
			ev = &provider.ChatEvent{
				Type:  provider.EventTypeUsage,
				Usage: &provider.Usage{OutputTokens: int(event.Usage.OutputTokens)},
			}

		case "message_stop":
			provider.Send(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone})
			return
		}

		if ev != nil && !provider.Send(ctx, ch, *ev) {
			return
		}
	}

	if err := stream.Err(); err != nil {
		provider.Send(ctx, ch, provider.ChatEvent{
			Type:  provider.EventTypeError,
			Error: err.Error(),
		})
		return
	}

	provider.Send(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone})
}
