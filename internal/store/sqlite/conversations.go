// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/parley-dev/parley/internal/store"
)

type conversationStore struct {
	db  *sql.DB
	now func() time.Time
}

func (c *conversationStore) Create(ctx context.Context, conv *store.Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}
	now := c.now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}

	const q = `INSERT INTO conversations (user_id, title, summary, archived, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`
	result, err := c.db.ExecContext(ctx, q,
		conv.UserID,
		conv.Title,
		conv.Summary,
		conv.Archived,
		formatTime(conv.CreatedAt),
		formatTime(conv.UpdatedAt),
	)
	if err != nil {
		return store.DatabaseError(err, "creating conversation for user %d", conv.UserID)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return store.DatabaseError(err, "reading conversation id")
	}
	conv.ID = id
	return nil
}

func (c *conversationStore) Get(ctx context.Context, userID, id int64) (*store.Conversation, error) {
	const q = `SELECT id, user_id, title, summary, archived, created_at, updated_at
FROM conversations WHERE id = ? AND user_id = ?`

	var conv store.Conversation
	var createdAt, updatedAt string
	err := c.db.QueryRowContext(ctx, q, id, userID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.Summary,
		&conv.Archived,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("conversation", id)
	}
	if err != nil {
		return nil, store.DatabaseError(err, "getting conversation %d", id)
	}
	conv.CreatedAt = parseTime(createdAt)
	conv.UpdatedAt = parseTime(updatedAt)
	return &conv, nil
}

// List returns the user's conversations, most recently updated first, with
// the message count and latest message filled in.
func (c *conversationStore) List(ctx context.Context, userID int64, opts store.ListOpts) ([]*store.Conversation, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}

	const q = `SELECT c.id, c.user_id, c.title, c.summary, c.archived, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
	lm.id, lm.role, lm.content, lm.created_at
FROM conversations c
LEFT JOIN messages lm ON lm.id = (
	SELECT id FROM messages WHERE conversation_id = c.id ORDER BY created_at DESC, id DESC LIMIT 1
)
WHERE c.user_id = ? AND (? OR c.archived = 0)
ORDER BY c.updated_at DESC, c.id DESC
LIMIT ? OFFSET ?`

	rows, err := c.db.QueryContext(ctx, q, userID, opts.IncludeArchived, limit, opts.Offset)
	if err != nil {
		return nil, store.DatabaseError(err, "listing conversations for user %d", userID)
	}
	defer func() { _ = rows.Close() }()

	convs := []*store.Conversation{}
	for rows.Next() {
		var conv store.Conversation
		var createdAt, updatedAt string
		var lastID sql.NullInt64
		var lastRole, lastContent, lastCreated sql.NullString
		if err := rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Title,
			&conv.Summary,
			&conv.Archived,
			&createdAt,
			&updatedAt,
			&conv.MessageCount,
			&lastID,
			&lastRole,
			&lastContent,
			&lastCreated,
		); err != nil {
			return nil, store.DatabaseError(err, "scanning conversation row")
		}
		conv.CreatedAt = parseTime(createdAt)
		conv.UpdatedAt = parseTime(updatedAt)
		if lastID.Valid {
			conv.LastMessage = &store.Message{
				ID:             lastID.Int64,
				ConversationID: conv.ID,
				Role:           store.MessageRole(lastRole.String),
				Content:        lastContent.String,
				CreatedAt:      parseTime(lastCreated.String),
			}
		}
		convs = append(convs, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, store.DatabaseError(err, "iterating conversations")
	}
	return convs, nil
}

// Count includes archived conversations.
func (c *conversationStore) Count(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, store.DatabaseError(err, "counting conversations for user %d", userID)
	}
	return n, nil
}

func (c *conversationStore) SetSummary(ctx context.Context, userID, id int64, summary string) error {
	result, err := c.db.ExecContext(ctx,
		`UPDATE conversations SET summary = ? WHERE id = ? AND user_id = ?`, summary, id, userID)
	if err != nil {
		return store.DatabaseError(err, "updating summary of conversation %d", id)
	}
	return checkAffected(result, "conversation", id)
}

// Touch bumps updated_at to now.
func (c *conversationStore) Touch(ctx context.Context, userID, id int64) error {
	result, err := c.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ? AND user_id = ?`, formatTime(c.now()), id, userID)
	if err != nil {
		return store.DatabaseError(err, "touching conversation %d", id)
	}
	return checkAffected(result, "conversation", id)
}

func (c *conversationStore) Archive(ctx context.Context, userID, id int64) error {
	result, err := c.db.ExecContext(ctx,
		`UPDATE conversations SET archived = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return store.DatabaseError(err, "archiving conversation %d", id)
	}
	return checkAffected(result, "conversation", id)
}

// Delete removes the conversation with its messages and embeddings.
func (c *conversationStore) Delete(ctx context.Context, userID, id int64) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return store.DatabaseError(err, "deleting conversation %d", id)
	}
	return checkAffected(result, "conversation", id)
}
