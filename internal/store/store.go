// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package store defines the persistence interfaces of the reference
// backend. Backends register themselves with RegisterBackend.
package store

import (
	"context"
	"time"
)

// UserStore manages accounts.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// Update saves the email and username of an existing user.
	Update(ctx context.Context, user *User) error
}

// ConversationStore manages conversations. Every read and write is scoped to
// the owning user; a conversation owned by someone else is reported as not
// found.
type ConversationStore interface {
	Create(ctx context.Context, conv *Conversation) error
	Get(ctx context.Context, userID, id int64) (*Conversation, error)
	List(ctx context.Context, userID int64, opts ListOpts) ([]*Conversation, error)
	Count(ctx context.Context, userID int64) (int, error)
	SetSummary(ctx context.Context, userID, id int64, summary string) error
	Touch(ctx context.Context, userID, id int64) error
	Archive(ctx context.Context, userID, id int64) error
	Delete(ctx context.Context, userID, id int64) error
}

// MessageStore manages the messages of a conversation.
type MessageStore interface {
	Append(ctx context.Context, msg *Message) error
	List(ctx context.Context, conversationID int64) ([]*Message, error)
	Count(ctx context.Context, conversationID int64) (int, error)
	// Search is a case-insensitive substring match. Hits carry similarity 1.
	Search(ctx context.Context, conversationID int64, query string, opts SearchOpts) ([]ScoredMessage, error)
	// SearchUser is Search over every active conversation of a user. Hits
	// carry the conversation title.
	SearchUser(ctx context.Context, userID int64, query string, opts SearchOpts) ([]ScoredMessage, error)
}

// EmbeddingStore keeps one embedding per message for semantic search.
type EmbeddingStore interface {
	Put(ctx context.Context, messageID int64, embedding []float32) error
	// Nearest returns messages of the conversation ordered by cosine
	// similarity to query, dropping those below opts.MinSimilarity.
	// Embeddings with a different dimension than query are ignored.
	Nearest(ctx context.Context, conversationID int64, query []float32, opts SearchOpts) ([]ScoredMessage, error)
	// NearestUser is Nearest over every active conversation of a user.
	NearestUser(ctx context.Context, userID int64, query []float32, opts SearchOpts) ([]ScoredMessage, error)
}

// RevocationStore remembers refresh tokens that were given up before they
// expired.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Store groups the sub-stores of one backend.
type Store interface {
	Users() UserStore
	Conversations() ConversationStore
	Messages() MessageStore
	Embeddings() EmbeddingStore
	Revocations() RevocationStore
	Ping(ctx context.Context) error
	Close() error
}
