// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// StatusError is a response that arrived with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// Kind is the failure category every client error falls into.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindValidation
	KindNotFound
	KindTransport
	KindServer
	KindSetup
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindSetup:
		return "setup"
	default:
		return "unknown"
	}
}

// KindOf classifies err. Wrapping by callers does not change the result.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var se *StatusError
	if errors.As(err, &se) {
		return kindForStatus(se.StatusCode)
	}

	switch parleyerr.CodeOf(err) {
	case parleyerr.CodeClientNoResponse, parleyerr.CodeClientRateLimitCanceled:
		return KindTransport
	case parleyerr.CodeClientSetupFailure:
		return KindSetup
	case parleyerr.CodeClientDecodeFailure:
		return KindServer
	}

	switch {
	case parleyerr.IsUnauthorized(err):
		return KindAuthentication
	case parleyerr.IsInvalidInput(err):
		return KindValidation
	case parleyerr.IsNotFound(err):
		return KindNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransport
	}
	return KindUnknown
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuthentication
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindServer
	}
}

// StatusCode returns the HTTP status carried by err, or 0 when no response
// was received.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsUnreachable reports a failed connection attempt, typically a backend
// that is not running.
func IsUnreachable(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

// Detail extracts the human-readable message from a server error body. It
// checks "detail", "error" and "message" in that order, then falls back to
// the first field error of a {"field": ["msg", ...]} body. Returns "" when
// nothing usable is found.
func Detail(err error) string {
	var se *StatusError
	if !errors.As(err, &se) || len(se.Body) == 0 {
		return ""
	}

	var named struct {
		Detail  any `json:"detail"`
		Error   any `json:"error"`
		Message any `json:"message"`
	}
	if json.Unmarshal(se.Body, &named) != nil {
		return ""
	}
	for _, v := range []any{named.Detail, named.Error, named.Message} {
		if s := firstString(v); s != "" {
			return s
		}
	}
	return firstFieldError(se.Body)
}

// firstFieldError walks the top-level object in document order and returns
// the first string found under any key.
func firstFieldError(body []byte) string {
	dec := json.NewDecoder(bytes.NewReader(body))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return ""
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return ""
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return ""
		}
		if s := firstString(v); s != "" {
			return s
		}
	}
	return ""
}

func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s := firstString(item); s != "" {
				return s
			}
		}
	case map[string]any:
		if s, ok := t["message"].(string); ok {
			return s
		}
	}
	return ""
}
