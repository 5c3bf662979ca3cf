// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package sqlite

import (
	"context"
	"database/sql"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

type embeddingStore struct {
	db *sql.DB
}

// Put stores or replaces the embedding of a message.
func (e *embeddingStore) Put(ctx context.Context, messageID int64, embedding []float32) error {
	if len(embedding) == 0 {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "embedding: vector is empty")
	}
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return store.DatabaseError(err, "serializing embedding")
	}

	// The WHERE clause keeps the upsert unambiguous after INSERT ... SELECT.
	const q = `INSERT INTO embeddings (message_id, conversation_id, dims, embedding)
SELECT id, conversation_id, ?, ? FROM messages WHERE id = ?
ON CONFLICT(message_id) DO UPDATE SET dims = excluded.dims, embedding = excluded.embedding`

	result, err := e.db.ExecContext(ctx, q, len(embedding), blob, messageID)
	if err != nil {
		return store.DatabaseError(err, "storing embedding of message %d", messageID)
	}
	return checkAffected(result, "message", messageID)
}

// Nearest ranks by 1 - cosine distance.
func (e *embeddingStore) Nearest(ctx context.Context, conversationID int64, query []float32, opts store.SearchOpts) ([]store.ScoredMessage, error) {
	if len(query) == 0 {
		return []store.ScoredMessage{}, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, store.DatabaseError(err, "serializing query vector")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}

	const q = `SELECT m.id, m.conversation_id, m.role, m.content, m.created_at,
	1 - vec_distance_cosine(e.embedding, ?) AS similarity
FROM embeddings e
JOIN messages m ON m.id = e.message_id
WHERE e.conversation_id = ? AND e.dims = ?
ORDER BY similarity DESC, m.id ASC
LIMIT ?`

	rows, err := e.db.QueryContext(ctx, q, blob, conversationID, len(query), limit)
	if err != nil {
		return nil, store.DatabaseError(err, "searching embeddings of conversation %d", conversationID)
	}
	defer func() { _ = rows.Close() }()

	hits := []store.ScoredMessage{}
	for rows.Next() {
		var similarity float64
		msg, err := scanMessage(rows, &similarity)
		if err != nil {
			return nil, err
		}
		if similarity < opts.MinSimilarity {
			continue
		}
		hits = append(hits, store.ScoredMessage{Message: *msg, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, store.DatabaseError(err, "iterating embedding results")
	}
	return hits, nil
}

// NearestUser ranks the embeddings of every unarchived conversation of the
// user.
func (e *embeddingStore) NearestUser(ctx context.Context, userID int64, query []float32, opts store.SearchOpts) ([]store.ScoredMessage, error) {
	if len(query) == 0 {
		return []store.ScoredMessage{}, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, store.DatabaseError(err, "serializing query vector")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}

	const q = `SELECT m.id, m.conversation_id, m.role, m.content, m.created_at, c.title,
	1 - vec_distance_cosine(e.embedding, ?) AS similarity
FROM embeddings e
JOIN messages m ON m.id = e.message_id
JOIN conversations c ON c.id = e.conversation_id
WHERE c.user_id = ? AND c.archived = 0 AND e.dims = ?
ORDER BY similarity DESC, m.id ASC
LIMIT ?`

	rows, err := e.db.QueryContext(ctx, q, blob, userID, len(query), limit)
	if err != nil {
		return nil, store.DatabaseError(err, "searching embeddings of user %d", userID)
	}
	defer func() { _ = rows.Close() }()

	hits := []store.ScoredMessage{}
	for rows.Next() {
		var (
			title      string
			similarity float64
		)
		msg, err := scanMessage(rows, &title, &similarity)
		if err != nil {
			return nil, err
		}
		if similarity < opts.MinSimilarity {
			continue
		}
		hits = append(hits, store.ScoredMessage{Message: *msg, Similarity: similarity, ConversationTitle: title})
	}
	if err := rows.Err(); err != nil {
		return nil, store.DatabaseError(err, "iterating embedding results")
	}
	return hits, nil
}
