// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/parley-dev/parley/internal/store"
	"github.com/parley-dev/parley/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// stepClock advances one second per call so ordering by time is stable.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	clock := &stepClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "parley.db"), sqlite.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createUser(t *testing.T, s *sqlite.Store, username string) *store.User {
	t.Helper()
	u := &store.User{Username: username, Email: username + "@example.com", PasswordHash: "$2a$10$hash"}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func createConversation(t *testing.T, s *sqlite.Store, userID int64, title string) *store.Conversation {
	t.Helper()
	c := &store.Conversation{UserID: userID, Title: title}
	require.NoError(t, s.Conversations().Create(context.Background(), c))
	return c
}

func appendMessage(t *testing.T, s *sqlite.Store, convID int64, role store.MessageRole, content string) *store.Message {
	t.Helper()
	m := &store.Message{ConversationID: convID, Role: role, Content: content}
	require.NoError(t, s.Messages().Append(context.Background(), m))
	return m
}
