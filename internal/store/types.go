// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package store

import "time"

// User is a registered account. PasswordHash is a bcrypt hash and never
// leaves the server.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Conversation is a chat thread owned by a single user.
type Conversation struct {
	ID        int64
	UserID    int64
	Title     string
	Summary   string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time

	// Populated by List only.
	MessageCount int
	LastMessage  *Message
}

// MessageRole identifies who produced a message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Message is a single entry in a conversation.
type Message struct {
	ID             int64
	ConversationID int64
	Role           MessageRole
	Content        string
	CreatedAt      time.Time
}

// ScoredMessage is a search hit. Similarity is in [0, 1]; 1 is an exact match.
type ScoredMessage struct {
	Message
	Similarity float64

	// Set by user-wide searches only.
	ConversationTitle string
}

// ListOpts controls conversation listing.
type ListOpts struct {
	IncludeArchived bool
	Limit           int
	Offset          int
}

// SearchOpts controls message search.
type SearchOpts struct {
	Limit         int
	MinSimilarity float64
}
