// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package chat

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ID identifies a conversation or message. Backends send either strings or
// integers; both decode into ID.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Int64 parses numeric ids; ok is false for anything else.
func (id ID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageStatus tracks client-side delivery of a message.
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusError   MessageStatus = "error"
)

type Message struct {
	ID        ID            `json:"id"`
	Content   string        `json:"content"`
	Role      Role          `json:"role"`
	Timestamp time.Time     `json:"timestamp"`
	Status    MessageStatus `json:"status,omitempty"`
}

// UnmarshalJSON also accepts the sender/created_at spelling some backends use.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var wire struct {
		plain
		Sender    Role       `json:"sender"`
		CreatedAt *time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*m = Message(wire.plain)
	if m.Role == "" {
		m.Role = wire.Sender
	}
	if m.Timestamp.IsZero() && wire.CreatedAt != nil {
		m.Timestamp = *wire.CreatedAt
	}
	return nil
}

// Local reports whether the message was created on this client and has no
// backend identity yet.
func (m Message) Local() bool {
	return strings.HasPrefix(string(m.ID), localIDPrefix)
}

// Conversation is a thread. List responses carry MessageCount and
// LastMessage; detail responses carry Messages.
type Conversation struct {
	ID           ID        `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Summary      string    `json:"summary,omitempty"`
	MessageCount int       `json:"message_count,omitempty"`
	LastMessage  *Message  `json:"last_message,omitempty"`
}

func (c Conversation) clone() Conversation {
	out := c
	if c.Messages != nil {
		out.Messages = append([]Message(nil), c.Messages...)
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		out.LastMessage = &lm
	}
	return out
}

// SearchResult is one message matched by a search. The conversation fields
// are set by user-wide searches only.
type SearchResult struct {
	Content           string    `json:"content"`
	Role              Role      `json:"role"`
	Timestamp         time.Time `json:"timestamp"`
	Similarity        float64   `json:"similarity"`
	ConversationID    ID        `json:"conversation_id,omitempty"`
	ConversationTitle string    `json:"conversation_title,omitempty"`
}

// EventKind names the part of the store that changed.
type EventKind string

const (
	EventConversations EventKind = "conversations"
	EventActive        EventKind = "active"
	EventMessages      EventKind = "messages"
	EventSending       EventKind = "sending"
)

type Event struct {
	Kind           EventKind
	ConversationID ID
}
