// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/parley-dev/parley/internal/provider"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.5-flash"
	// DefaultEmbeddingModel is used when no embedding model is configured.
	DefaultEmbeddingModel = "text-embedding-004"
)

// Config holds Google provider configuration.
type Config struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
}

// Provider implements provider.Provider and provider.Embedder using the
// Google Gemini API.
type Provider struct {
	client *genai.Client
	config Config
}

// New creates a new Google provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.MissingKey("google")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeProviderUpstreamFailure, "google: creating client")
	}

	return &Provider{client: client, config: cfg}, nil
}

// Factory adapts New to provider.Factory.
func Factory(cfg provider.Config) (provider.Provider, error) {
	return New(Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, EmbeddingModel: cfg.EmbeddingModel})
}

func (p *Provider) Name() string { return "google" }

func (p *Provider) Close() error { return nil }

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeProviderRequestInvalid, "google: converting messages")
	}

	config := buildConfig(req)
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	eventCh := make(chan provider.ChatEvent, 100)

	go func() {
		defer close(eventCh)
		p.streamChat(ctx, model, contents, config, eventCh)
	}()

	return eventCh, nil
}

// Embed returns the embedding of text from the configured embedding model.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Models.EmbedContent(ctx, p.config.EmbeddingModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, nil)
	if err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeProviderUpstreamFailure, "google: embedding content")
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, parleyerr.New(parleyerr.CodeProviderResponseInvalid, "google: embedding response is empty")
	}
	return resp.Embeddings[0].Values, nil
}

// buildConfig converts a provider.ChatRequest into a genai.GenerateContentConfig.
func buildConfig(req provider.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.Options.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Options.Temperature))
	}

	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}

	var system []*genai.Part
	if req.SystemPrompt != "" {
		system = append(system, &genai.Part{Text: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		if m.Role == provider.MessageRoleSystem {
			system = append(system, &genai.Part{Text: m.Content})
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}

	return cfg
}

// convertMessages maps roles onto Gemini's "user" and "model". System
// messages go through SystemInstruction instead.
func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	var result []*genai.Content

	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		case provider.MessageRoleAssistant:
			result = append(result, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		case provider.MessageRoleSystem:
			continue
		default:
			return nil, parleyerr.Errorf(parleyerr.CodeProviderRequestInvalid, "google: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// streamChat runs the streaming loop, converting SDK responses into provider.ChatEvent values.
func (p *Provider) streamChat(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	ch chan<- provider.ChatEvent,
) {
	var usage *provider.Usage

	for result, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			provider.Send(ctx, ch, provider.ChatEvent{
				Type:  provider.EventTypeError,
				Error: err.Error(),
			})
			return
		}

		for _, candidate := range result.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text == "" {
					continue
				}
				if !provider.Send(ctx, ch, provider.ChatEvent{
					Type: provider.EventTypeTextDelta,
					Text: part.Text,
				}) {
					return
				}
			}
		}

		// Usage metadata is cumulative across chunks; keep the latest.
		if result.UsageMetadata != nil {
			usage = &provider.Usage{
				InputTokens:  int(result.UsageMetadata.PromptTokenCount),
				OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
			}
		}
	}

	if usage != nil {
		if !provider.Send(ctx, ch, provider.ChatEvent{Type: provider.EventTypeUsage, Usage: usage}) {
			return
		}
	}
	provider.Send(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone})
}
