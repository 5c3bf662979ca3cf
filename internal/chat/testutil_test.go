// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package chat_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parley-dev/parley/internal/apiclient"
	"github.com/parley-dev/parley/internal/chat"
	"github.com/stretchr/testify/require"
)

type chatBody struct {
	Content        string  `json:"content"`
	SearchQuery    string  `json:"search_query"`
	ConversationID chat.ID `json:"conversation_id"`
}

// fakeBackend serves the conversation endpoints from memory.
type fakeBackend struct {
	t  *testing.T
	mu sync.Mutex

	convs  []chat.Conversation
	nextID int
	hits   map[string]int

	// Optional overrides.
	failDelete bool
	chat       func(body chatBody) (int, any)
	detailGate map[chat.ID]chan struct{}
	onDelete   func()
}

func newFakeBackend(t *testing.T, titles ...string) *fakeBackend {
	fb := &fakeBackend{t: t, hits: make(map[string]int), detailGate: make(map[chat.ID]chan struct{})}
	for _, title := range titles {
		fb.add(title)
	}
	return fb
}

func (fb *fakeBackend) add(title string) chat.Conversation {
	fb.nextID++
	conv := chat.Conversation{
		ID:        chat.ID(fmt.Sprintf("c%d", fb.nextID)),
		Title:     title,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, fb.nextID, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, fb.nextID, 0, time.UTC),
		Messages:  []chat.Message{},
	}
	fb.convs = append(fb.convs, conv)
	return conv
}

func (fb *fakeBackend) hitCount(key string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.hits[key]
}

func (fb *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	fb.mu.Lock()
	fb.hits[key]++
	fb.mu.Unlock()

	switch {
	case key == "GET /chat/conversations/":
		fb.mu.Lock()
		list := make([]chat.Conversation, 0, len(fb.convs))
		for _, c := range fb.convs {
			c.MessageCount = len(c.Messages)
			c.Messages = nil
			list = append(list, c)
		}
		fb.mu.Unlock()
		writeJSON(w, http.StatusOK, list)

	case key == "POST /chat/conversations/":
		var body struct {
			Title string `json:"title"`
		}
		require.NoError(fb.t, json.NewDecoder(r.Body).Decode(&body))
		fb.mu.Lock()
		conv := fb.add(body.Title)
		fb.mu.Unlock()
		writeJSON(w, http.StatusCreated, conv)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/chat/conversations/"):
		if fb.onDelete != nil {
			fb.onDelete()
		}
		if fb.failDelete {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "database is locked"})
			return
		}
		fb.remove(idFromPath(r.URL.Path, "/chat/conversations/"))
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/archive/"):
		fb.remove(idFromPath(strings.TrimSuffix(r.URL.Path, "archive/"), "/chat/conversations/"))
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/conversations/"):
		id := idFromPath(r.URL.Path, "/conversations/")
		fb.mu.Lock()
		gate := fb.detailGate[id]
		fb.mu.Unlock()
		if gate != nil {
			<-gate
		}
		conv, ok := fb.find(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
			return
		}
		writeJSON(w, http.StatusOK, conv)

	case key == "POST /chat/":
		var body chatBody
		require.NoError(fb.t, json.NewDecoder(r.Body).Decode(&body))
		if fb.chat != nil {
			status, resp := fb.chat(body)
			writeJSON(w, status, resp)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"response":        "echo: " + body.Content,
			"conversation_id": body.ConversationID,
		})

	case key == "GET /chat/search/":
		q := strings.ToLower(r.URL.Query().Get("q"))
		fb.mu.Lock()
		results := []chat.SearchResult{}
		for _, c := range fb.convs {
			for _, m := range c.Messages {
				if strings.Contains(strings.ToLower(m.Content), q) {
					results = append(results, chat.SearchResult{
						Content: m.Content, Role: m.Role, Similarity: 1,
						ConversationID: c.ID, ConversationTitle: c.Title,
					})
				}
			}
		}
		fb.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"query": r.URL.Query().Get("q"), "results": results})

	case key == "POST /chat/ai/suggestions/":
		var body struct {
			ConversationID chat.ID `json:"conversation_id"`
			Context        string  `json:"context"`
		}
		require.NoError(fb.t, json.NewDecoder(r.Body).Decode(&body))
		if body.ConversationID != "" {
			if _, ok := fb.find(body.ConversationID); !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
				return
			}
		}
		suggestions := []string{"Tell me more"}
		if body.Context != "" {
			suggestions = append(suggestions, "More about "+body.Context)
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})

	case key == "POST /chat/ai/summarize/":
		var body chatBody
		require.NoError(fb.t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{"conversation_id": body.ConversationID, "summary": "A short chat."})

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

func (fb *fakeBackend) find(id chat.ID) (chat.Conversation, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, c := range fb.convs {
		if c.ID == id {
			return c, true
		}
	}
	return chat.Conversation{}, false
}

func (fb *fakeBackend) remove(id chat.ID) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	kept := fb.convs[:0]
	for _, c := range fb.convs {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	fb.convs = kept
}

func idFromPath(path, prefix string) chat.ID {
	return chat.ID(strings.Trim(strings.TrimPrefix(path, prefix), "/"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// recorder collects notifications and events.
type recorder struct {
	mu     sync.Mutex
	notes  []chat.Notification
	events []chat.Event
}

func (r *recorder) Notify(n chat.Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recorder) onEvent(ev chat.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) notifications() []chat.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Notification(nil), r.notes...)
}

func (r *recorder) kinds() []chat.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chat.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type harness struct {
	backend *fakeBackend
	client  *apiclient.Client
	store   *chat.Store
	rec     *recorder
}

func newHarness(t *testing.T, fb *fakeBackend, opts ...chat.StoreOption) *harness {
	t.Helper()
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL, apiclient.WithTimeout(5*time.Second))
	require.NoError(t, err)

	rec := &recorder{}
	ids := 0
	opts = append([]chat.StoreOption{chat.WithIDGenerator(func() string {
		ids++
		return fmt.Sprintf("%d", ids)
	})}, opts...)
	store := chat.NewStore(client, rec, opts...)
	store.Subscribe(rec.onEvent)
	return &harness{backend: fb, client: client, store: store, rec: rec}
}
