// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package chat holds the client's conversation state: the cached
// conversation list, the active conversation with its messages, and the
// debounced message search.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parley-dev/parley/internal/apiclient"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// DefaultTitle is used for conversations created from the client.
const DefaultTitle = "New Conversation"

const localIDPrefix = "local-"

const (
	pathConversations = "/chat/conversations/"
	pathChat          = "/chat/"
	pathSummarize     = "/chat/ai/summarize/"
	pathSuggestions   = "/chat/ai/suggestions/"
	pathSearchAll     = "/chat/search/"
)

func conversationPath(id ID) string { return pathConversations + string(id) + "/" }

func archivePath(id ID) string { return conversationPath(id) + "archive/" }

// detailPath is served outside the /chat prefix by the backend.
func detailPath(id ID) string { return "/conversations/" + string(id) + "/" }

// API is the subset of the HTTP client the store and search use.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// StoreOption configures a Store.
type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how local message ids are generated. The
// generated value is prefixed with "local-".
func WithIDGenerator(gen func() string) StoreOption {
	return func(s *Store) { s.newID = gen }
}

func WithDefaultTitle(title string) StoreOption {
	return func(s *Store) {
		if title != "" {
			s.title = title
		}
	}
}

func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

type chatRequest struct {
	Content        string `json:"content,omitempty"`
	SearchQuery    string `json:"search_query,omitempty"`
	ConversationID ID     `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	Response       string         `json:"response"`
	ConversationID ID             `json:"conversation_id"`
	Summary        string         `json:"summary,omitempty"`
	SearchResults  []SearchResult `json:"search_results,omitempty"`
}

// Store is the conversation/message state container. All methods are safe
// for concurrent use; network calls are made without holding the lock.
type Store struct {
	api    API
	notify Notifier
	now    func() time.Time
	newID  func() string
	title  string
	logger *slog.Logger

	mu            sync.Mutex
	conversations []Conversation
	fresh         bool
	listVersion   uint64
	activeID      ID
	active        *Conversation
	sending       int
	subs          map[int]func(Event)
	nextSub       int
}

func NewStore(api API, notify Notifier, opts ...StoreOption) *Store {
	if notify == nil {
		notify = discardNotifier{}
	}
	s := &Store{
		api:    api,
		notify: notify,
		now:    time.Now,
		newID:  uuid.NewString,
		title:  DefaultTitle,
		logger: slog.Default(),
		subs:   make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for change events and returns a function that
// removes it. fn is called without the store lock held.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// ListConversations returns the conversation list, fetching it when the
// cache is empty or has been invalidated.
func (s *Store) ListConversations(ctx context.Context) ([]Conversation, error) {
	s.mu.Lock()
	if s.fresh {
		out := cloneAll(s.conversations)
		s.mu.Unlock()
		return out, nil
	}
	version := s.listVersion
	s.mu.Unlock()

	var list []Conversation
	if err := s.api.Get(ctx, pathConversations, &list); err != nil {
		return nil, s.fail(err, parleyerr.CodeChatListFailure, "Failed to load conversations")
	}
	if list == nil {
		list = []Conversation{}
	}

	s.mu.Lock()
	s.conversations = list
	s.fresh = version == s.listVersion
	out := cloneAll(list)
	s.mu.Unlock()

	s.emit(Event{Kind: EventConversations})
	return out, nil
}

// Invalidate marks the cached list stale.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.fresh = false
	s.listVersion++
	s.mu.Unlock()
}

// refetch invalidates the list and loads it again. A failed reload has
// already been reported through the notifier.
func (s *Store) refetch(ctx context.Context) {
	s.Invalidate()
	if _, err := s.ListConversations(ctx); err != nil {
		s.logger.Debug("refetching conversations", "error", err)
	}
}

// CreateConversation creates an empty conversation. It does not make the
// new conversation active.
func (s *Store) CreateConversation(ctx context.Context) (*Conversation, error) {
	var conv Conversation
	if err := s.api.Post(ctx, pathConversations, map[string]string{"title": s.title}, &conv); err != nil {
		return nil, s.fail(err, parleyerr.CodeChatCreateFailure, "Failed to create conversation")
	}
	s.refetch(ctx)
	return &conv, nil
}

// DeleteConversation deletes a conversation. If it is the active one, the
// active reference is cleared before the request is sent. The list is
// reloaded whether or not the delete succeeded.
func (s *Store) DeleteConversation(ctx context.Context, id ID) error {
	s.clearActiveIf(id)

	err := s.api.Delete(ctx, conversationPath(id), nil)
	s.refetch(ctx)
	if err != nil {
		return s.fail(err, parleyerr.CodeChatDeleteFailure, "Failed to delete conversation", parleyerr.FieldConversationID(string(id)))
	}
	return nil
}

// ArchiveConversation hides a conversation from the list. Active handling
// matches DeleteConversation.
func (s *Store) ArchiveConversation(ctx context.Context, id ID) error {
	s.clearActiveIf(id)

	err := s.api.Post(ctx, archivePath(id), nil, nil)
	s.refetch(ctx)
	if err != nil {
		return s.fail(err, parleyerr.CodeChatArchiveFailure, "Failed to archive conversation", parleyerr.FieldConversationID(string(id)))
	}
	return nil
}

func (s *Store) clearActiveIf(id ID) {
	s.mu.Lock()
	if s.activeID != id || id == "" {
		s.mu.Unlock()
		return
	}
	s.activeID = ""
	s.active = nil
	s.mu.Unlock()
	s.emit(Event{Kind: EventActive})
}

// SetActiveConversation makes conv the active conversation; nil clears it.
// Only conv's id and title are used until the full conversation arrives
// from the backend.
func (s *Store) SetActiveConversation(ctx context.Context, conv *Conversation) error {
	if conv == nil {
		return s.SetActiveConversationID(ctx, "")
	}
	return s.setActive(ctx, conv.ID, conv)
}

// SetActiveConversationID is SetActiveConversation by id.
func (s *Store) SetActiveConversationID(ctx context.Context, id ID) error {
	return s.setActive(ctx, id, nil)
}

func (s *Store) setActive(ctx context.Context, id ID, hint *Conversation) error {
	s.mu.Lock()
	if id == "" {
		changed := s.activeID != "" || s.active != nil
		s.activeID = ""
		s.active = nil
		s.mu.Unlock()
		if changed {
			s.emit(Event{Kind: EventActive})
		}
		return nil
	}

	prevID, prev := s.activeID, s.active
	s.activeID = id
	// Until the detail arrives the active conversation carries no messages.
	placeholder := Conversation{ID: id}
	if cached, ok := s.cached(id); ok {
		placeholder.Title = cached.Title
	} else if hint != nil {
		placeholder.Title = hint.Title
	}
	s.active = &placeholder
	s.mu.Unlock()
	s.emit(Event{Kind: EventActive, ConversationID: id})

	var conv Conversation
	if err := s.api.Get(ctx, detailPath(id), &conv); err != nil {
		s.mu.Lock()
		restored := s.activeID == id
		if restored {
			s.activeID, s.active = prevID, prev
		}
		s.mu.Unlock()
		if restored {
			s.emit(Event{Kind: EventActive, ConversationID: prevID})
		}
		return s.fail(err, parleyerr.CodeChatFetchFailure, "Failed to load conversation", parleyerr.FieldConversationID(string(id)))
	}

	s.mu.Lock()
	if s.activeID != id {
		s.mu.Unlock()
		s.logger.Debug("discarding stale conversation fetch", "conversation_id", id)
		return nil
	}
	conv.ID = id
	s.active = &conv
	s.mu.Unlock()

	s.emit(Event{Kind: EventActive, ConversationID: id}, Event{Kind: EventMessages, ConversationID: id})
	return nil
}

func (s *Store) cached(id ID) (Conversation, bool) {
	for _, c := range s.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}

// SendMessage posts content to the active conversation. Empty content or no
// active conversation is a no-op that returns (nil, nil). On success the
// user message and the reply are appended together, unless the active
// conversation changed while the request was in flight. The returned
// message is the assistant reply.
func (s *Store) SendMessage(ctx context.Context, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	s.mu.Lock()
	id := s.activeID
	if id == "" {
		s.mu.Unlock()
		return nil, nil
	}
	s.sending++
	s.mu.Unlock()
	s.emit(Event{Kind: EventSending, ConversationID: id})

	sentAt := s.now()
	var resp chatResponse
	err := s.api.Post(ctx, pathChat, chatRequest{Content: content, ConversationID: id}, &resp)

	s.mu.Lock()
	if s.sending > 0 {
		s.sending--
	}
	if err != nil {
		s.mu.Unlock()
		s.emit(Event{Kind: EventSending, ConversationID: id})
		return nil, s.fail(err, parleyerr.CodeChatSendFailure, "Failed to send message", parleyerr.FieldConversationID(string(id)))
	}

	reply := Message{
		ID:        s.localID(),
		Content:   resp.Response,
		Role:      RoleAssistant,
		Timestamp: s.now(),
		Status:    StatusSent,
	}
	appended := false
	if s.activeID == id && s.active != nil {
		user := Message{
			ID:        s.localID(),
			Content:   content,
			Role:      RoleUser,
			Timestamp: sentAt,
			Status:    StatusSent,
		}
		s.active.Messages = append(s.active.Messages, user, reply)
		if resp.Summary != "" {
			s.active.Summary = resp.Summary
		}
		appended = true
	}
	s.mu.Unlock()

	events := []Event{{Kind: EventSending, ConversationID: id}}
	if appended {
		events = append(events, Event{Kind: EventMessages, ConversationID: id})
	} else {
		s.logger.Debug("discarding reply for inactive conversation", "conversation_id", id)
	}
	s.emit(events...)

	s.refetch(ctx)
	return &reply, nil
}

// Summarize asks the backend for a fresh summary of conversation id. The
// active copy is updated when id is active.
func (s *Store) Summarize(ctx context.Context, id ID) (string, error) {
	if id == "" {
		return "", parleyerr.New(parleyerr.CodeChatNoActive, "no conversation selected",
			parleyerr.FieldReason("Select a conversation first."))
	}

	var resp struct {
		ConversationID ID     `json:"conversation_id"`
		Summary        string `json:"summary"`
	}
	if err := s.api.Post(ctx, pathSummarize, map[string]ID{"conversation_id": id}, &resp); err != nil {
		return "", s.fail(err, parleyerr.CodeChatSummarizeFailure, "Failed to summarize conversation", parleyerr.FieldConversationID(string(id)))
	}

	s.mu.Lock()
	updated := s.activeID == id && s.active != nil
	if updated {
		s.active.Summary = resp.Summary
	}
	s.mu.Unlock()
	if updated {
		s.emit(Event{Kind: EventActive, ConversationID: id})
	}

	s.refetch(ctx)
	return resp.Summary, nil
}

// SearchAll searches every active conversation of the user. Results carry
// the conversation they were found in. A blank query returns nothing
// without a request.
func (s *Store) SearchAll(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	var resp struct {
		Query   string         `json:"query"`
		Results []SearchResult `json:"results"`
	}
	if err := s.api.Get(ctx, pathSearchAll+"?q="+url.QueryEscape(query), &resp); err != nil {
		return nil, s.fail(err, parleyerr.CodeChatSearchFailure, "Search failed")
	}
	if resp.Results == nil {
		resp.Results = []SearchResult{}
	}
	return resp.Results, nil
}

// Suggestions asks the backend for follow-up messages based on
// conversation id, extra context, or both.
func (s *Store) Suggestions(ctx context.Context, id ID, extra string) ([]string, error) {
	extra = strings.TrimSpace(extra)
	if id == "" && extra == "" {
		return nil, parleyerr.New(parleyerr.CodeChatNoActive, "nothing to base suggestions on",
			parleyerr.FieldReason("Select a conversation or give some context."))
	}

	req := struct {
		ConversationID ID     `json:"conversation_id,omitempty"`
		Context        string `json:"context,omitempty"`
	}{id, extra}
	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := s.api.Post(ctx, pathSuggestions, req, &resp); err != nil {
		return nil, s.fail(err, parleyerr.CodeChatSuggestFailure, "Failed to generate suggestions", parleyerr.FieldConversationID(string(id)))
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []string{}
	}
	return resp.Suggestions, nil
}

// Reset drops all state. It is run on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	s.conversations = nil
	s.fresh = false
	s.listVersion++
	s.activeID = ""
	s.active = nil
	s.sending = 0
	s.mu.Unlock()

	s.emit(Event{Kind: EventConversations}, Event{Kind: EventActive}, Event{Kind: EventSending})
}

// Conversations returns a copy of the cached list without fetching.
func (s *Store) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.conversations)
}

// Active returns a copy of the active conversation, or nil.
func (s *Store) Active() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	c := s.active.clone()
	return &c
}

// ActiveID returns the active conversation id, or "".
func (s *Store) ActiveID() ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Sending reports whether any send is in flight.
func (s *Store) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending > 0
}

func (s *Store) localID() ID {
	return ID(localIDPrefix + s.newID())
}

func (s *Store) emit(events ...Event) {
	s.mu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// fail reports err through the notifier and returns it wrapped with code.
func (s *Store) fail(err error, code parleyerr.Code, fallback string, fields ...parleyerr.Attr) error {
	reason := apiclient.Detail(err)
	if reason == "" {
		reason = fallback
	}
	s.notify.Notify(Notification{Level: LevelError, Message: reason, Err: err})
	return parleyerr.Wrap(err, code, strings.ToLower(fallback[:1])+fallback[1:], append(fields, parleyerr.FieldReason(reason))...)
}

func cloneAll(list []Conversation) []Conversation {
	if list == nil {
		return nil
	}
	out := make([]Conversation, len(list))
	for i, c := range list {
		out[i] = c.clone()
	}
	return out
}

// String is used in log output.
func (e Event) String() string {
	if e.ConversationID == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s(%s)", e.Kind, e.ConversationID)
}
