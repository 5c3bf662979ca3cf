// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package store

import (
	"strings"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Valid reports whether the role is a known message role.
func (r MessageRole) Valid() bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
		return true
	default:
		return false
	}
}

// Validate checks that the User has all required fields set.
func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "user: username is required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "user: email is required")
	}
	if u.PasswordHash == "" {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "user: password hash is required")
	}
	return nil
}

// ValidateProfile checks the fields a user may change.
func (u User) ValidateProfile() error {
	if u.ID == 0 {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "user: id is required")
	}
	if strings.TrimSpace(u.Username) == "" {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "user: username is required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "user: email is required")
	}
	return nil
}

// Validate checks that the Conversation has all required fields set.
func (c Conversation) Validate() error {
	if c.UserID == 0 {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "conversation: user id is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "conversation: title is required")
	}
	return nil
}

// Validate checks that the Message has all required fields set.
func (m Message) Validate() error {
	if m.ConversationID == 0 {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "message: conversation id is required")
	}
	if !m.Role.Valid() {
		return parleyerr.Errorf(parleyerr.CodeStoreInvalidInput, "message: invalid role %q", m.Role)
	}
	return nil
}
