// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/parley-dev/parley/internal/provider"
	"github.com/parley-dev/parley/internal/store"
)

const (
	summaryWindow = 10
	summaryPrompt = "You are a helpful assistant that summarizes conversations concisely. " +
		"Create a brief, informative summary of the key points discussed in the conversation. " +
		"Focus on the main topics, decisions, and action items. Keep the summary under 3 sentences."
	noMessagesSummary = "No messages in conversation"

	searchAllLimit   = 10
	suggestionWindow = 10
	maxSuggestions   = 3
	suggestionPrompt = "You suggest what the user could say next in a conversation with an AI assistant. " +
		"Reply with at most 3 short follow-up messages, one per line, and nothing else."
)

// exchange is the outcome of one user message.
type exchange struct {
	conversation *store.Conversation
	reply        string
	summary      string
}

// conversationFor returns the caller's active conversation id, or creates a
// "Conversation N" when id is zero.
func (s *Services) conversationFor(ctx context.Context, userID, id int64) (*store.Conversation, error) {
	if id != 0 {
		return s.activeConversation(ctx, userID, id)
	}

	n, err := s.store.Conversations().Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	conv := &store.Conversation{UserID: userID, Title: fmt.Sprintf("Conversation %d", n+1)}
	if err := s.store.Conversations().Create(ctx, conv); err != nil {
		return nil, err
	}
	slog.Info("conversation created", "user_id", userID, "conversation_id", conv.ID, "title", conv.Title)
	return conv, nil
}

// activeConversation loads a conversation owned by userID. Archived
// conversations are reported as not found.
func (s *Services) activeConversation(ctx context.Context, userID, id int64) (*store.Conversation, error) {
	conv, err := s.store.Conversations().Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if conv.Archived {
		return nil, store.NotFound("conversation", id)
	}
	return conv, nil
}

// send stores content, asks the provider for a reply, stores that too and
// refreshes the summary on every SummaryEvery-th message.
func (s *Services) send(ctx context.Context, userID, convID int64, content string) (*exchange, error) {
	conv, err := s.conversationFor(ctx, userID, convID)
	if err != nil {
		return nil, err
	}

	userMsg := &store.Message{ConversationID: conv.ID, Role: store.MessageRoleUser, Content: content}
	if err := s.store.Messages().Append(ctx, userMsg); err != nil {
		return nil, err
	}
	s.index(ctx, userMsg)

	history, err := s.store.Messages().List(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	req := s.chatRequest(history)
	if len(history) == 1 {
		req.SystemPrompt = s.settings.SystemPrompt
	}

	reply, err := provider.Complete(ctx, s.llm, req)
	if err != nil {
		return nil, upstream(err, "Error generating AI response")
	}

	assistantMsg := &store.Message{ConversationID: conv.ID, Role: store.MessageRoleAssistant, Content: reply.Text}
	if err := s.store.Messages().Append(ctx, assistantMsg); err != nil {
		return nil, err
	}
	s.index(ctx, assistantMsg)
	slog.Debug("reply stored",
		"conversation_id", conv.ID,
		"input_tokens", reply.Usage.InputTokens,
		"output_tokens", reply.Usage.OutputTokens,
	)

	out := &exchange{conversation: conv, reply: reply.Text, summary: conv.Summary}

	count := len(history) + 1
	if count%s.settings.SummaryEvery == 0 {
		summary, err := s.summarize(ctx, append(history, assistantMsg))
		if err != nil {
			slog.Warn("summary not updated", "conversation_id", conv.ID, "error", err)
		} else if err := s.store.Conversations().SetSummary(ctx, userID, conv.ID, summary); err != nil {
			slog.Warn("summary not saved", "conversation_id", conv.ID, "error", err)
		} else {
			out.summary = summary
		}
	}

	if err := s.store.Conversations().Touch(ctx, userID, conv.ID); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Services) chatRequest(history []*store.Message) provider.ChatRequest {
	req := provider.ChatRequest{
		Model: s.settings.Model,
		Options: provider.ChatOptions{
			Temperature: s.settings.Temperature,
			MaxTokens:   s.settings.MaxTokens,
		},
	}
	for _, m := range history {
		req.Messages = append(req.Messages, provider.Message{Role: provider.MessageRole(m.Role), Content: m.Content})
	}
	return req
}

// summarize asks the provider for a short summary of the most recent
// messages.
func (s *Services) summarize(ctx context.Context, msgs []*store.Message) (string, error) {
	if len(msgs) == 0 {
		return noMessagesSummary, nil
	}
	if len(msgs) > summaryWindow {
		msgs = msgs[len(msgs)-summaryWindow:]
	}

	var b strings.Builder
	b.WriteString("Please summarize this conversation:\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	reply, err := provider.Complete(ctx, s.llm, provider.ChatRequest{
		Model:        s.settings.Model,
		SystemPrompt: summaryPrompt,
		Messages:     []provider.Message{{Role: provider.MessageRoleUser, Content: b.String()}},
		Options:      provider.ChatOptions{Temperature: s.settings.Temperature, MaxTokens: s.settings.MaxTokens},
	})
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

// summarizeConversation regenerates and stores the summary of a conversation.
func (s *Services) summarizeConversation(ctx context.Context, userID, convID int64) (string, error) {
	conv, err := s.activeConversation(ctx, userID, convID)
	if err != nil {
		return "", err
	}
	msgs, err := s.store.Messages().List(ctx, conv.ID)
	if err != nil {
		return "", err
	}
	summary, err := s.summarize(ctx, msgs)
	if err != nil {
		return "", upstream(err, "Failed to generate summary")
	}
	if err := s.store.Conversations().SetSummary(ctx, userID, conv.ID, summary); err != nil {
		return "", err
	}
	return summary, nil
}

// index stores the embedding of msg. Failures only cost search recall, so
// they are logged and dropped.
func (s *Services) index(ctx context.Context, msg *store.Message) {
	vec, err := s.llm.Embed(ctx, msg.Content)
	if err != nil {
		if !provider.IsEmbeddingUnsupported(err) {
			slog.Warn("message not indexed", "message_id", msg.ID, "error", err)
		}
		return
	}
	if err := s.store.Embeddings().Put(ctx, msg.ID, vec); err != nil {
		slog.Warn("embedding not stored", "message_id", msg.ID, "error", err)
	}
}

// search finds messages of a conversation semantically related to query.
// Providers without embeddings fall back to substring matching.
func (s *Services) search(ctx context.Context, userID, convID int64, query string) ([]store.ScoredMessage, error) {
	conv, err := s.activeConversation(ctx, userID, convID)
	if err != nil {
		return nil, err
	}

	vec, err := s.llm.Embed(ctx, query)
	switch {
	case provider.IsEmbeddingUnsupported(err):
		return s.store.Messages().Search(ctx, conv.ID, query, store.SearchOpts{Limit: s.settings.SearchLimit})
	case err != nil:
		return nil, upstream(err, "Search failed")
	}

	return s.store.Embeddings().Nearest(ctx, conv.ID, vec, store.SearchOpts{
		Limit:         s.settings.SearchLimit,
		MinSimilarity: s.settings.SearchThreshold,
	})
}

// searchAll is search across every active conversation of the user.
func (s *Services) searchAll(ctx context.Context, userID int64, query string) ([]store.ScoredMessage, error) {
	vec, err := s.llm.Embed(ctx, query)
	switch {
	case provider.IsEmbeddingUnsupported(err):
		return s.store.Messages().SearchUser(ctx, userID, query, store.SearchOpts{Limit: searchAllLimit})
	case err != nil:
		return nil, upstream(err, "Search failed")
	}

	return s.store.Embeddings().NearestUser(ctx, userID, vec, store.SearchOpts{
		Limit:         searchAllLimit,
		MinSimilarity: s.settings.SearchThreshold,
	})
}

// suggest asks the provider for follow-up messages based on the latest
// messages of convID (when non-zero) and extra.
func (s *Services) suggest(ctx context.Context, userID, convID int64, extra string) ([]string, error) {
	var b strings.Builder
	if convID != 0 {
		conv, err := s.activeConversation(ctx, userID, convID)
		if err != nil {
			return nil, err
		}
		msgs, err := s.store.Messages().List(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		if len(msgs) > suggestionWindow {
			msgs = msgs[len(msgs)-suggestionWindow:]
		}
		if len(msgs) > 0 {
			b.WriteString("Conversation so far:\n")
			for _, m := range msgs {
				fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
			}
		}
	}
	if extra != "" {
		fmt.Fprintf(&b, "Context: %s\n", extra)
	}
	if b.Len() == 0 {
		b.WriteString("The conversation has not started yet.\n")
	}
	b.WriteString("Suggest what the user could say next.")

	reply, err := provider.Complete(ctx, s.llm, provider.ChatRequest{
		Model:        s.settings.Model,
		SystemPrompt: suggestionPrompt,
		Messages:     []provider.Message{{Role: provider.MessageRoleUser, Content: b.String()}},
		Options:      provider.ChatOptions{Temperature: s.settings.Temperature, MaxTokens: s.settings.MaxTokens},
	})
	if err != nil {
		return nil, upstream(err, "Failed to generate suggestions")
	}
	return parseSuggestions(reply.Text), nil
}

// parseSuggestions takes one suggestion per line, dropping list markers
// and quotes, and keeps at most maxSuggestions.
func parseSuggestions(text string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		if rest := strings.TrimLeftFunc(line, unicode.IsDigit); rest != line && (strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, ")")) {
			line = rest[1:]
		}
		line = strings.Trim(strings.TrimSpace(line), `"`)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
