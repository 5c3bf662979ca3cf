// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/parley-dev/parley/internal/store"
)

// Route paths. Trailing slashes are part of the contract, and conversation
// detail lives outside the /chat prefix.
const (
	PathToken         = "/auth/token/"
	PathTokenRefresh  = "/auth/token/refresh/"
	PathMe            = "/api/users/me/"
	PathMeUpdate      = "/api/users/me/update/"
	PathRegister      = "/api/users/register/"
	PathLogout        = "/api/users/logout/"
	PathConversations = "/chat/conversations/"
	PathConversation  = "/chat/conversations/{id}/"
	PathArchive       = "/chat/conversations/{id}/archive/"
	PathMessages      = "/chat/conversations/{id}/messages/"
	PathDetail        = "/conversations/{id}/"
	PathChat          = "/chat/"
	PathSearchAll     = "/chat/search/"
	PathSummarize     = "/chat/ai/summarize/"
	PathSuggestions   = "/chat/ai/suggestions/"
	PathHealth        = "/health"
)

func (s *Server) registerRoutes() {
	// Auth
	huma.Register(s.api, huma.Operation{
		OperationID: "obtain-token",
		Method:      http.MethodPost,
		Path:        PathToken,
		Summary:     "Exchange credentials for an access/refresh token pair",
		Tags:        []string{"auth"},
	}, s.handleToken)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        PathTokenRefresh,
		Summary:     "Exchange a refresh token for a new access token",
		Tags:        []string{"auth"},
	}, s.handleRefresh)

	// Users
	huma.Register(s.api, huma.Operation{
		OperationID: "current-user",
		Method:      http.MethodGet,
		Path:        PathMe,
		Summary:     "Current user",
		Tags:        []string{"users"},
	}, s.handleMe)

	huma.Register(s.api, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          PathRegister,
		Summary:       "Create an account",
		Tags:          []string{"users"},
		DefaultStatus: http.StatusCreated,
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-current-user",
		Method:      http.MethodPatch,
		Path:        PathMeUpdate,
		Summary:     "Change the email or username of the current user",
		Tags:        []string{"users"},
	}, s.handleUpdateMe)

	huma.Register(s.api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          PathLogout,
		Summary:       "Revoke a refresh token",
		Tags:          []string{"users"},
		DefaultStatus: http.StatusResetContent,
	}, s.handleLogout)

	// Conversations
	huma.Register(s.api, huma.Operation{
		OperationID: "list-conversations",
		Method:      http.MethodGet,
		Path:        PathConversations,
		Summary:     "List active conversations, most recently updated first",
		Tags:        []string{"conversations"},
	}, s.handleListConversations)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-conversation",
		Method:        http.MethodPost,
		Path:          PathConversations,
		Summary:       "Create a conversation",
		Tags:          []string{"conversations"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateConversation)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-conversation",
		Method:        http.MethodDelete,
		Path:          PathConversation,
		Summary:       "Delete a conversation and its messages",
		Tags:          []string{"conversations"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteConversation)

	huma.Register(s.api, huma.Operation{
		OperationID:   "archive-conversation",
		Method:        http.MethodPost,
		Path:          PathArchive,
		Summary:       "Archive a conversation",
		Tags:          []string{"conversations"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleArchiveConversation)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-conversation",
		Method:      http.MethodGet,
		Path:        PathDetail,
		Summary:     "Conversation with its messages",
		Tags:        []string{"conversations"},
	}, s.handleGetConversation)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        PathMessages,
		Summary:     "Messages of a conversation, oldest first",
		Tags:        []string{"conversations"},
	}, s.handleListMessages)

	// Chat
	huma.Register(s.api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        PathChat,
		Summary:     "Send a message or search a conversation",
		Description: "Exactly one of content or search_query must be set. " +
			"Without conversation_id a message starts a new conversation.",
		Tags: []string{"chat"},
	}, s.handleChat)

	huma.Register(s.api, huma.Operation{
		OperationID: "summarize-conversation",
		Method:      http.MethodPost,
		Path:        PathSummarize,
		Summary:     "Regenerate a conversation summary",
		Tags:        []string{"chat"},
	}, s.handleSummarize)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-all",
		Method:      http.MethodGet,
		Path:        PathSearchAll,
		Summary:     "Search every active conversation",
		Tags:        []string{"chat"},
	}, s.handleSearchAll)

	huma.Register(s.api, huma.Operation{
		OperationID: "suggest-replies",
		Method:      http.MethodPost,
		Path:        PathSuggestions,
		Summary:     "Suggest follow-up messages",
		Description: "At least one of conversation_id or context must be set.",
		Tags:        []string{"chat"},
	}, s.handleSuggestions)

	// System
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        PathHealth,
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, s.handleHealth)
}

// --- Wire types ---

type userBody struct {
	ID       int64  `json:"id" doc:"User id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func toUserBody(u *store.User) userBody {
	return userBody{ID: u.ID, Email: u.Email, Username: u.Username}
}

type messageBody struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Role      string    `json:"role" enum:"user,assistant,system"`
	Timestamp time.Time `json:"timestamp"`
}

func toMessageBody(m *store.Message) messageBody {
	return messageBody{ID: m.ID, Content: m.Content, Role: string(m.Role), Timestamp: m.CreatedAt}
}

type conversationSummary struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	LastMessage  *messageBody `json:"last_message"`
	MessageCount int          `json:"message_count"`
	Summary      string       `json:"summary"`
	IsActive     bool         `json:"is_active"`
}

const noSummary = "No summary available"

func toConversationSummary(c *store.Conversation) conversationSummary {
	out := conversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: c.MessageCount,
		Summary:      c.Summary,
		IsActive:     !c.Archived,
	}
	if out.Summary == "" {
		out.Summary = noSummary
	}
	if c.LastMessage != nil {
		m := toMessageBody(c.LastMessage)
		out.LastMessage = &m
	}
	return out
}

type conversationDetail struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Summary   string        `json:"summary,omitempty"`
	Messages  []messageBody `json:"messages"`
}

func toConversationDetail(c *store.Conversation, msgs []*store.Message) conversationDetail {
	out := conversationDetail{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Summary:   c.Summary,
		Messages:  make([]messageBody, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, toMessageBody(m))
	}
	return out
}

type searchResult struct {
	Content    string    `json:"content"`
	Role       string    `json:"role"`
	Timestamp  time.Time `json:"timestamp"`
	Similarity float64   `json:"similarity" minimum:"0" maximum:"1"`
}

func toSearchResults(hits []store.ScoredMessage) []searchResult {
	out := make([]searchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, searchResult{
			Content:    h.Content,
			Role:       string(h.Role),
			Timestamp:  h.CreatedAt,
			Similarity: h.Similarity,
		})
	}
	return out
}

type userSearchResult struct {
	ConversationID    int64     `json:"conversation_id"`
	ConversationTitle string    `json:"conversation_title"`
	Content           string    `json:"content"`
	Role              string    `json:"role"`
	Timestamp         time.Time `json:"timestamp"`
	Similarity        float64   `json:"similarity" minimum:"0" maximum:"1"`
}

func toUserSearchResults(hits []store.ScoredMessage) []userSearchResult {
	out := make([]userSearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, userSearchResult{
			ConversationID:    h.ConversationID,
			ConversationTitle: h.ConversationTitle,
			Content:           h.Content,
			Role:              string(h.Role),
			Timestamp:         h.CreatedAt,
			Similarity:        h.Similarity,
		})
	}
	return out
}
