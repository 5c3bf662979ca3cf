// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package sqlite implements the store interfaces on a single SQLite
// database. Semantic search uses the sqlite-vec extension.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/parley-dev/parley/internal/store"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface checks.
var (
	_ store.Store             = (*Store)(nil)
	_ store.UserStore         = (*userStore)(nil)
	_ store.ConversationStore = (*conversationStore)(nil)
	_ store.MessageStore      = (*messageStore)(nil)
	_ store.EmbeddingStore    = (*embeddingStore)(nil)
	_ store.RevocationStore   = (*revocationStore)(nil)
)

// Store implements store.Store backed by one SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time

	users         *userStore
	conversations *conversationStore
	messages      *messageStore
	embeddings    *embeddingStore
	revocations   *revocationStore
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (or creates) the database at dbPath and migrates it.
func Open(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, store.DatabaseError(err, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, store.DatabaseError(err, "pinging sqlite db")
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, store.DatabaseError(err, "migrating sqlite db")
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	clock := func() time.Time { return s.now().UTC() }
	s.users = &userStore{db: db, now: clock}
	s.conversations = &conversationStore{db: db, now: clock}
	s.messages = &messageStore{db: db, now: clock}
	s.embeddings = &embeddingStore{db: db}
	s.revocations = &revocationStore{db: db, now: clock}
	return s, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	email         TEXT NOT NULL UNIQUE,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL,
	title      TEXT NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	archived   INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS embeddings (
	message_id      INTEGER PRIMARY KEY,
	conversation_id INTEGER NOT NULL,
	dims            INTEGER NOT NULL,
	embedding       BLOB NOT NULL,
	FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_embeddings_conversation ON embeddings(conversation_id, dims);

CREATE TABLE IF NOT EXISTS revoked_tokens (
	token_id   TEXT PRIMARY KEY,
	expires_at TEXT NOT NULL
);
`
	_, err := db.Exec(ddl)
	return err
}

func (s *Store) Users() store.UserStore                 { return s.users }
func (s *Store) Conversations() store.ConversationStore { return s.conversations }
func (s *Store) Messages() store.MessageStore           { return s.messages }
func (s *Store) Embeddings() store.EmbeddingStore       { return s.embeddings }
func (s *Store) Revocations() store.RevocationStore     { return s.revocations }

// Ping checks the database connection. It also confirms the vector
// extension is loaded.
func (s *Store) Ping(ctx context.Context) error {
	var version string
	if err := s.db.QueryRowContext(ctx, `SELECT vec_version()`).Scan(&version); err != nil {
		return store.DatabaseError(err, "pinging sqlite db")
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func checkAffected(result sql.Result, kind string, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return store.DatabaseError(err, "checking rows affected for %s %d", kind, id)
	}
	if rows == 0 {
		return store.NotFound(kind, id)
	}
	return nil
}
