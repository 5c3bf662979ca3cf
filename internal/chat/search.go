// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package chat

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// DefaultDebounce is the quiet period before a query is sent.
const DefaultDebounce = 300 * time.Millisecond

// SearchOption configures a Search.
type SearchOption func(*Search)

// WithDebounce sets the quiet period. Zero sends on the next tick.
func WithDebounce(d time.Duration) SearchOption {
	return func(s *Search) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// WithSearchTimeout bounds background searches.
func WithSearchTimeout(d time.Duration) SearchOption {
	return func(s *Search) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithSearchLogger(l *slog.Logger) SearchOption {
	return func(s *Search) { s.logger = l }
}

type searchKey struct {
	query          string
	conversationID ID
}

func (k searchKey) empty() bool { return k.query == "" || k.conversationID == "" }

// Search runs debounced message searches within the active conversation.
// Results are only visible while the query and active conversation they
// were fetched for are still current.
type Search struct {
	api      API
	store    *Store
	debounce time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	query     string
	gen       uint64
	timer     *time.Timer
	resultKey searchKey
	results   []SearchResult
	listeners []func([]SearchResult)
	unsub     func()
}

// NewSearch creates a search bound to store's active conversation.
// Changing the active conversation re-runs the current query.
func NewSearch(api API, store *Store, opts ...SearchOption) *Search {
	s := &Search{
		api:      api,
		store:    store,
		debounce: DefaultDebounce,
		timeout:  30 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsub = store.Subscribe(func(ev Event) {
		if ev.Kind == EventActive {
			s.reschedule()
		}
	})
	return s
}

// SetQuery records q and schedules a search after the debounce period. An
// empty query, or no active conversation, clears the results at once.
func (s *Search) SetQuery(q string) {
	s.mu.Lock()
	s.query = strings.TrimSpace(q)
	s.mu.Unlock()
	s.reschedule()
}

// Query returns the current query.
func (s *Search) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// reschedule takes the store lock while holding s.mu; the store never calls
// back into Search with its own lock held.
func (s *Search) reschedule() {
	s.mu.Lock()
	key := searchKey{query: s.query, conversationID: s.store.ActiveID()}
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if key.empty() {
		hadResults := len(s.results) > 0
		s.results = nil
		s.resultKey = searchKey{}
		listeners := s.snapshotListeners()
		s.mu.Unlock()
		if hadResults {
			notifyAll(listeners, nil)
		}
		return
	}
	s.timer = time.AfterFunc(s.debounce, func() { s.runScheduled(gen, key) })
	s.mu.Unlock()
}

func (s *Search) runScheduled(gen uint64, key searchKey) {
	s.mu.Lock()
	current := gen == s.gen
	s.mu.Unlock()
	if !current {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.run(ctx, key); err != nil {
		s.logger.Debug("background search failed", "query", key.query, "error", err)
	}
}

// Now runs the current query immediately and returns its results. A
// pending debounced run of the same query is dropped.
func (s *Search) Now(ctx context.Context) ([]SearchResult, error) {
	return s.Run(ctx, s.Query())
}

// Run sets the query to q and searches at once, without waiting for the
// debounce period.
func (s *Search) Run(ctx context.Context, q string) ([]SearchResult, error) {
	s.mu.Lock()
	s.query = strings.TrimSpace(q)
	key := searchKey{query: s.query, conversationID: s.store.ActiveID()}
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if key.empty() {
		s.reschedule()
		return nil, nil
	}
	return s.run(ctx, key)
}

func (s *Search) run(ctx context.Context, key searchKey) ([]SearchResult, error) {
	var resp chatResponse
	req := chatRequest{SearchQuery: key.query, ConversationID: key.conversationID}
	if err := s.api.Post(ctx, pathChat, req, &resp); err != nil {
		return nil, s.store.fail(err, parleyerr.CodeChatSearchFailure, "Search failed",
			parleyerr.FieldConversationID(string(key.conversationID)))
	}
	results := resp.SearchResults
	if results == nil {
		results = []SearchResult{}
	}

	current := searchKey{query: s.Query(), conversationID: s.store.ActiveID()}
	if current != key {
		s.logger.Debug("dropping search results for stale query", "query", key.query)
		return append([]SearchResult(nil), results...), nil
	}

	s.mu.Lock()
	s.results = results
	s.resultKey = key
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	out := append([]SearchResult(nil), results...)
	notifyAll(listeners, out)
	return out, nil
}

// Results returns the results for the current query and active
// conversation, or nil when none have arrived for that pair.
func (s *Search) Results() []SearchResult {
	active := s.store.ActiveID()

	s.mu.Lock()
	defer s.mu.Unlock()
	current := searchKey{query: s.query, conversationID: active}
	if current.empty() || current != s.resultKey {
		return nil
	}
	return append([]SearchResult(nil), s.results...)
}

// OnChange registers fn to receive each new result set. fn runs on the
// goroutine that completed the search.
func (s *Search) OnChange(fn func([]SearchResult)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Close stops pending searches and detaches from the store.
func (s *Search) Close() {
	s.mu.Lock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (s *Search) snapshotListeners() []func([]SearchResult) {
	return slices.Clone(s.listeners)
}

func notifyAll(listeners []func([]SearchResult), results []SearchResult) {
	for _, fn := range listeners {
		fn(results)
	}
}
