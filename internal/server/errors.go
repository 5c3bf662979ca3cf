// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// apiError turns a coded error into a huma error whose detail is the
// error's reason, or fallback when it has none. Server-side failures are
// logged with the full chain.
func apiError(err error, fallback string) error {
	var ue *upstreamError
	if errors.As(err, &ue) {
		slog.Error(ue.reason, "error", err, "code", parleyerr.CodeOf(err))
		return huma.NewError(http.StatusBadGateway, ue.reason)
	}

	status := parleyerr.HTTPStatus(err)
	if status >= 500 {
		slog.Error(fallback, "error", err, "code", parleyerr.CodeOf(err))
	}
	return huma.NewError(status, parleyerr.Reason(err, fallback))
}

// upstreamError is a provider failure. It is always a 502 with its own
// reason, whatever code the provider attached to the cause.
type upstreamError struct {
	err    error
	reason string
}

func upstream(err error, reason string) error {
	return &upstreamError{err: err, reason: reason}
}

func (e *upstreamError) Error() string { return e.err.Error() }

func (e *upstreamError) Unwrap() error { return e.err }

func badRequest(detail string) error {
	return huma.Error400BadRequest(detail)
}

// conversationRef is a conversation id sent as a JSON number or a numeric
// string.
type conversationRef string

func (r *conversationRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = conversationRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = conversationRef(n.String())
	return nil
}

// Schema lets huma accept both spellings.
func (conversationRef) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "Conversation id",
		OneOf: []*huma.Schema{
			{Type: huma.TypeInteger},
			{Type: huma.TypeString},
		},
	}
}

// id parses the reference. ok is false when it was omitted.
func (r conversationRef) id() (id int64, ok bool, err error) {
	if r == "" {
		return 0, false, nil
	}
	id, perr := strconv.ParseInt(string(r), 10, 64)
	if perr != nil || id <= 0 {
		return 0, true, parleyerr.New(parleyerr.CodeServerEntityNotFound, "malformed conversation id",
			parleyerr.FieldConversationID(string(r)), parleyerr.FieldReason("Not found."))
	}
	return id, true, nil
}
