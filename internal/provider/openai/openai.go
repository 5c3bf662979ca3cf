// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/parley-dev/parley/internal/provider"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is used when no embedding model is configured.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// OpenRouterBaseURL serves the same API for the "openrouter" provider.
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Config holds OpenAI provider configuration.
type Config struct {
	Name           string // registry name; "openai" when empty
	APIKey         string
	BaseURL        string // optional, useful for testing against a mock server
	EmbeddingModel string
}

// Provider implements provider.Provider and provider.Embedder using the
// OpenAI Chat Completions and Embeddings APIs.
type Provider struct {
	client openaisdk.Client
	config Config
}

// New creates a new OpenAI provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIKey == "" {
		return nil, provider.MissingKey(cfg.Name)
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{client: openaisdk.NewClient(opts...), config: cfg}, nil
}

// Factory adapts New to provider.Factory.
func Factory(cfg provider.Config) (provider.Provider, error) {
	return New(Config{Name: "openai", APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, EmbeddingModel: cfg.EmbeddingModel})
}

// OpenRouterFactory builds the provider against OpenRouter's compatible API.
func OpenRouterFactory(cfg provider.Config) (provider.Provider, error) {
	base := cfg.BaseURL
	if base == "" {
		base = OpenRouterBaseURL
	}
	return New(Config{Name: "openrouter", APIKey: cfg.APIKey, BaseURL: base, EmbeddingModel: cfg.EmbeddingModel})
}

func (p *Provider) Name() string { return p.config.Name }

func (p *Provider) Close() error { return nil }

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeProviderRequestInvalid, "%s: building request params", p.config.Name)
	}

	eventCh := make(chan provider.ChatEvent, 100)

	go func() {
		defer close(eventCh)
		p.streamChat(ctx, params, eventCh)
	}()

	return eventCh, nil
}

// Embed returns the embedding of text from the configured embedding model.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input:          openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		Model:          openaisdk.EmbeddingModel(p.config.EmbeddingModel),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeProviderUpstreamFailure, "%s: creating embedding", p.config.Name)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, parleyerr.Errorf(parleyerr.CodeProviderResponseInvalid, "%s: embedding response is empty", p.config.Name)
	}
	return provider.Float32s(resp.Data[0].Embedding), nil
}

// buildParams converts a provider.ChatRequest into OpenAI SDK ChatCompletionNewParams.
func buildParams(req provider.ChatRequest) (openaisdk.ChatCompletionNewParams, error) {
	msgs, err := convertMessages(req.Messages, req.SystemPrompt)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: msgs,
		StreamOptions: openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: param.NewOpt(true),
		},
	}

	if req.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.Options.MaxTokens))
	}

	if req.Options.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Options.Temperature)
	}

	return params, nil
}

// convertMessages prepends the system prompt as a system message.
func convertMessages(msgs []provider.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	var result []openaisdk.ChatCompletionMessageParamUnion

	if systemPrompt != "" {
		result = append(result, openaisdk.SystemMessage(systemPrompt))
	}

	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, openaisdk.UserMessage(msg.Content))
		case provider.MessageRoleAssistant:
			result = append(result, openaisdk.AssistantMessage(msg.Content))
		case provider.MessageRoleSystem:
			result = append(result, openaisdk.SystemMessage(msg.Content))
		default:
			return nil, parleyerr.Errorf(parleyerr.CodeProviderRequestInvalid, "openai: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// streamChat converts SDK chunks into provider.ChatEvent values.
func (p *Provider) streamChat(ctx context.Context, params openaisdk.ChatCompletionNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()

		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if !provider.Send(ctx, ch, provider.ChatEvent{
				Type: provider.EventTypeTextDelta,
				Text: choice.Delta.Content,
			}) {
				return
			}
		}

		// The final chunk carries usage when include_usage is set.
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			if !provider.Send(ctx, ch, provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				},
			}) {
				return
			}
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
