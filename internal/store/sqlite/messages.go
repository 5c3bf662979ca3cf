// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/parley-dev/parley/internal/store"
)

type messageStore struct {
	db  *sql.DB
	now func() time.Time
}

func (m *messageStore) Append(ctx context.Context, msg *store.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now()
	}

	const q = `INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	result, err := m.db.ExecContext(ctx, q, msg.ConversationID, string(msg.Role), msg.Content, formatTime(msg.CreatedAt))
	if err != nil {
		return store.DatabaseError(err, "appending message to conversation %d", msg.ConversationID)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return store.DatabaseError(err, "reading message id")
	}
	msg.ID = id
	return nil
}

// List returns the conversation's messages in chronological order.
func (m *messageStore) List(ctx context.Context, conversationID int64) ([]*store.Message, error) {
	const q = `SELECT id, conversation_id, role, content, created_at
FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := m.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, store.DatabaseError(err, "listing messages of conversation %d", conversationID)
	}
	defer func() { _ = rows.Close() }()

	msgs := []*store.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, store.DatabaseError(err, "iterating messages")
	}
	return msgs, nil
}

func (m *messageStore) Count(ctx context.Context, conversationID int64) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n); err != nil {
		return 0, store.DatabaseError(err, "counting messages of conversation %d", conversationID)
	}
	return n, nil
}

// Search matches query anywhere in the content, ignoring ASCII case. Newest
// messages come first.
func (m *messageStore) Search(ctx context.Context, conversationID int64, query string, opts store.SearchOpts) ([]store.ScoredMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []store.ScoredMessage{}, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}

	const q = `SELECT id, conversation_id, role, content, created_at
FROM messages
WHERE conversation_id = ? AND instr(lower(content), lower(?)) > 0
ORDER BY created_at DESC, id DESC
LIMIT ?`

	rows, err := m.db.QueryContext(ctx, q, conversationID, query, limit)
	if err != nil {
		return nil, store.DatabaseError(err, "searching messages of conversation %d", conversationID)
	}
	defer func() { _ = rows.Close() }()

	hits := []store.ScoredMessage{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, store.ScoredMessage{Message: *msg, Similarity: 1})
	}
	if err := rows.Err(); err != nil {
		return nil, store.DatabaseError(err, "iterating search results")
	}
	return hits, nil
}

// SearchUser is Search across the user's unarchived conversations.
func (m *messageStore) SearchUser(ctx context.Context, userID int64, query string, opts store.SearchOpts) ([]store.ScoredMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []store.ScoredMessage{}, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}

	const q = `SELECT m.id, m.conversation_id, m.role, m.content, m.created_at, c.title
FROM messages m
JOIN conversations c ON c.id = m.conversation_id
WHERE c.user_id = ? AND c.archived = 0 AND instr(lower(m.content), lower(?)) > 0
ORDER BY m.created_at DESC, m.id DESC
LIMIT ?`

	rows, err := m.db.QueryContext(ctx, q, userID, query, limit)
	if err != nil {
		return nil, store.DatabaseError(err, "searching messages of user %d", userID)
	}
	defer func() { _ = rows.Close() }()

	hits := []store.ScoredMessage{}
	for rows.Next() {
		var title string
		msg, err := scanMessage(rows, &title)
		if err != nil {
			return nil, err
		}
		hits = append(hits, store.ScoredMessage{Message: *msg, Similarity: 1, ConversationTitle: title})
	}
	if err := rows.Err(); err != nil {
		return nil, store.DatabaseError(err, "iterating search results")
	}
	return hits, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner, extra ...any) (*store.Message, error) {
	var msg store.Message
	var createdAt string
	dest := append([]any{&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, store.DatabaseError(err, "scanning message row")
	}
	msg.CreatedAt = parseTime(createdAt)
	return &msg, nil
}
