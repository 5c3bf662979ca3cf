// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parley-dev/parley/internal/store"
	"github.com/parley-dev/parley/pkg/health"
)

type conversationPathInput struct {
	ID int64 `path:"id" minimum:"1"`
}

type listConversationsOutput struct {
	Body []conversationSummary
}

type createConversationInput struct {
	Body struct {
		Title string `json:"title,omitempty" maxLength:"255"`
	}
}

type conversationOutput struct {
	Body conversationDetail
}

type chatInput struct {
	Body struct {
		Content        string          `json:"content,omitempty" doc:"Message to send"`
		SearchQuery    string          `json:"search_query,omitempty" doc:"Query to search the conversation for"`
		ConversationID conversationRef `json:"conversation_id,omitempty"`
	}
}

// chatReply is either a reply to a message or a list of search results.
type chatReply struct {
	ConversationID int64          `json:"conversation_id"`
	Response       string         `json:"response,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	SearchResults  []searchResult `json:"search_results,omitempty"`
}

// MarshalJSON keeps search_results present when a search finds nothing and
// keeps search replies free of the message fields.
func (r chatReply) MarshalJSON() ([]byte, error) {
	if r.SearchResults != nil {
		return json.Marshal(struct {
			SearchResults  []searchResult `json:"search_results"`
			ConversationID int64          `json:"conversation_id"`
		}{r.SearchResults, r.ConversationID})
	}
	return json.Marshal(struct {
		Response       string `json:"response"`
		ConversationID int64  `json:"conversation_id"`
		Summary        string `json:"summary"`
	}{r.Response, r.ConversationID, r.Summary})
}

type chatOutput struct {
	Body chatReply
}

type summarizeInput struct {
	Body struct {
		ConversationID conversationRef `json:"conversation_id,omitempty"`
	}
}

type summarizeOutput struct {
	Body struct {
		ConversationID int64  `json:"conversation_id"`
		Summary        string `json:"summary"`
	}
}

type listMessagesOutput struct {
	Body []messageBody
}

type searchAllInput struct {
	Query string `query:"q" doc:"Text to search for"`
}

type searchAllOutput struct {
	Body struct {
		Query   string             `json:"query"`
		Results []userSearchResult `json:"results"`
	}
}

type suggestionsInput struct {
	Body struct {
		ConversationID conversationRef `json:"conversation_id,omitempty"`
		Context        string          `json:"context,omitempty" doc:"Extra text to base the suggestions on"`
	}
}

type suggestionsOutput struct {
	Body struct {
		Suggestions []string `json:"suggestions"`
	}
}

type healthOutput struct {
	Status int
	Body   health.Report
}

func (s *Server) handleListConversations(ctx context.Context, _ *struct{}) (*listConversationsOutput, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}
	convs, err := s.services.store.Conversations().List(ctx, p.UserID, store.ListOpts{})
	if err != nil {
		return nil, apiError(err, "Failed to load conversations")
	}
	out := &listConversationsOutput{Body: make([]conversationSummary, 0, len(convs))}
	for _, c := range convs {
		out.Body = append(out.Body, toConversationSummary(c))
	}
	return out, nil
}

func (s *Server) handleCreateConversation(ctx context.Context, in *createConversationInput) (*conversationOutput, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}
	title := strings.TrimSpace(in.Body.Title)
	if title == "" {
		title = DefaultTitle
	}
	conv := &store.Conversation{UserID: p.UserID, Title: title}
	if err := s.services.store.Conversations().Create(ctx, conv); err != nil {
		return nil, apiError(err, "Failed to create conversation")
	}
	return &conversationOutput{Body: toConversationDetail(conv, nil)}, nil
}

func (s *Server) handleDeleteConversation(ctx context.Context, in *conversationPathInput) (*struct{}, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}
	if err := s.services.store.Conversations().Delete(ctx, p.UserID, in.ID); err != nil {
		return nil, apiError(err, "Failed to delete conversation")
	}
	slog.Info("conversation deleted", "user_id", p.UserID, "conversation_id", in.ID)
	return nil, nil
}

func (s *Server) handleArchiveConversation(ctx context.Context, in *conversationPathInput) (*struct{}, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}
	if _, err := s.services.activeConversation(ctx, p.UserID, in.ID); err != nil {
		return nil, apiError(err, "Failed to archive conversation")
	}
	if err := s.services.store.Conversations().Archive(ctx, p.UserID, in.ID); err != nil {
		return nil, apiError(err, "Failed to archive conversation")
	}
	return nil, nil
}

func (s *Server) handleGetConversation(ctx context.Context, in *conversationPathInput) (*conversationOutput, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}
	conv, err := s.services.activeConversation(ctx, p.UserID, in.ID)
	if err != nil {
		return nil, apiError(err, "Failed to load conversation")
	}
	msgs, err := s.services.store.Messages().List(ctx, conv.ID)
	if err != nil {
		return nil, apiError(err, "Failed to load conversation")
	}
	return &conversationOutput{Body: toConversationDetail(conv, msgs)}, nil
}

func (s *Server) handleListMessages(ctx context.Context, in *conversationPathInput) (*listMessagesOutput, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}
	conv, err := s.services.activeConversation(ctx, p.UserID, in.ID)
	if err != nil {
		return nil, apiError(err, "Failed to load messages")
	}
	msgs, err := s.services.store.Messages().List(ctx, conv.ID)
	if err != nil {
		return nil, apiError(err, "Failed to load messages")
	}
	out := &listMessagesOutput{Body: make([]messageBody, 0, len(msgs))}
	for _, m := range msgs {
		out.Body = append(out.Body, toMessageBody(m))
	}
	return out, nil
}

func (s *Server) handleChat(ctx context.Context, in *chatInput) (*chatOutput, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}

	content := in.Body.Content
	hasContent := strings.TrimSpace(content) != ""
	query := strings.TrimSpace(in.Body.SearchQuery)
	switch {
	case !hasContent && query == "":
		return nil, badRequest("Either content or search_query must be provided.")
	case hasContent && query != "":
		return nil, badRequest("Provide either content or search_query, not both.")
	}

	convID, hasConv, err := in.Body.ConversationID.id()
	if err != nil {
		return nil, apiError(err, "Conversation not found")
	}

	if query != "" {
		if !hasConv {
			return nil, badRequest("conversation_id is required to search.")
		}
		hits, err := s.services.search(ctx, p.UserID, convID, query)
		if err != nil {
			return nil, apiError(err, "Search failed")
		}
		return &chatOutput{Body: chatReply{ConversationID: convID, SearchResults: toSearchResults(hits)}}, nil
	}

	ex, err := s.services.send(ctx, p.UserID, convID, content)
	if err != nil {
		return nil, apiError(err, "An error occurred while processing your message.")
	}
	return &chatOutput{Body: chatReply{
		ConversationID: ex.conversation.ID,
		Response:       ex.reply,
		Summary:        ex.summary,
	}}, nil
}

func (s *Server) handleSummarize(ctx context.Context, in *summarizeInput) (*summarizeOutput, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}
	convID, ok, err := in.Body.ConversationID.id()
	if err != nil {
		return nil, apiError(err, "Conversation not found")
	}
	if !ok {
		return nil, badRequest("conversation_id is required")
	}

	summary, err := s.services.summarizeConversation(ctx, p.UserID, convID)
	if err != nil {
		return nil, apiError(err, "Failed to generate summary")
	}
	out := &summarizeOutput{}
	out.Body.ConversationID = convID
	out.Body.Summary = summary
	return out, nil
}

func (s *Server) handleSearchAll(ctx context.Context, in *searchAllInput) (*searchAllOutput, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, badRequest("Search query is required")
	}
	hits, err := s.services.searchAll(ctx, p.UserID, query)
	if err != nil {
		return nil, apiError(err, "Search failed")
	}
	out := &searchAllOutput{}
	out.Body.Query = query
	out.Body.Results = toUserSearchResults(hits)
	return out, nil
}

func (s *Server) handleSuggestions(ctx context.Context, in *suggestionsInput) (*suggestionsOutput, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}
	convID, hasConv, err := in.Body.ConversationID.id()
	if err != nil {
		return nil, apiError(err, "Conversation not found")
	}
	extra := strings.TrimSpace(in.Body.Context)
	if !hasConv && extra == "" {
		return nil, badRequest("Either conversation_id or context is required")
	}

	suggestions, err := s.services.suggest(ctx, p.UserID, convID, extra)
	if err != nil {
		return nil, apiError(err, "Failed to generate suggestions")
	}
	out := &suggestionsOutput{}
	out.Body.Suggestions = suggestions
	return out, nil
}

func (s *Server) handleHealth(ctx context.Context, _ *struct{}) (*healthOutput, error) {
	report := health.Report{
		Version:  s.services.settings.Version,
		Database: health.StatusOK,
		Provider: s.services.llm.Name(),
	}
	dbOK := true
	if err := s.services.store.Ping(ctx); err != nil {
		slog.Error("health check: database unreachable", "error", err)
		dbOK = false
		report.Database = health.StatusDown
	}
	m := s.services.llm.Metrics()
	report.LLM = &m
	report.Status = health.Overall(dbOK, &m)

	out := &healthOutput{Status: http.StatusOK, Body: report}
	if report.Status == health.StatusDown {
		out.Status = http.StatusServiceUnavailable
	}
	return out, nil
}
