// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package apiclient_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/parley-dev/parley/internal/apiclient"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func statusErr(status int, body string) error {
	se := &apiclient.StatusError{Method: "POST", Path: "/auth/token/", StatusCode: status, Body: []byte(body)}
	return parleyerr.Wrap(se, parleyerr.CodeClientStatusFailure, "backend rejected request")
}

func TestDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail", `{"detail":"No active account found with the given credentials"}`, "No active account found with the given credentials"},
		{"error", `{"error":"Please provide either content or search_query"}`, "Please provide either content or search_query"},
		{"message", `{"message":"rate limited"}`, "rate limited"},
		{"detail wins", `{"message":"m","error":"e","detail":"d"}`, "d"},
		{"error before message", `{"message":"m","error":"e"}`, "e"},
		{"field errors in document order", `{"username":["A user with that username already exists."],"email":["Enter a valid email address."]}`, "A user with that username already exists."},
		{"non field errors", `{"non_field_errors":["Passwords do not match."]}`, "Passwords do not match."},
		{"problem detail", `{"title":"Bad Request","status":400,"detail":"validation failed","errors":[{"message":"expected string"}]}`, "validation failed"},
		{"problem errors only", `{"errors":[{"message":"expected string","location":"body.title"}]}`, "expected string"},
		{"field string", `{"password":"too short"}`, "too short"},
		{"empty detail falls through", `{"detail":"","error":"e"}`, "e"},
		{"not json", `<html>500</html>`, ""},
		{"array", `["x"]`, ""},
		{"empty", ``, ""},
		{"no strings", `{"count":3}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apiclient.Detail(statusErr(400, tt.body)))
		})
	}
}

func TestDetail_NonStatusError(t *testing.T) {
	assert.Empty(t, apiclient.Detail(errors.New("boom")))
	assert.Empty(t, apiclient.Detail(nil))
}

func TestKindOf_SurvivesWrapping(t *testing.T) {
	base := statusErr(401, `{"detail":"bad"}`)

	wrapped := parleyerr.Wrap(base, parleyerr.CodeIdentityLoginFailure, "login failed",
		parleyerr.FieldReason("bad"))
	assert.Equal(t, apiclient.KindAuthentication, apiclient.KindOf(wrapped))
	assert.Equal(t, apiclient.KindAuthentication, apiclient.KindOf(fmt.Errorf("cli: %w", wrapped)))
	assert.Equal(t, "bad", apiclient.Detail(wrapped))
}

func TestKindOf_Codes(t *testing.T) {
	tests := []struct {
		err  error
		want apiclient.Kind
	}{
		{parleyerr.New(parleyerr.CodeClientNoResponse, "x"), apiclient.KindTransport},
		{parleyerr.New(parleyerr.CodeClientRateLimitCanceled, "x"), apiclient.KindTransport},
		{parleyerr.New(parleyerr.CodeClientSetupFailure, "x"), apiclient.KindSetup},
		{parleyerr.New(parleyerr.CodeClientDecodeFailure, "x"), apiclient.KindServer},
		{parleyerr.New(parleyerr.CodeIdentityRegisterInvalid, "x"), apiclient.KindValidation},
		{parleyerr.New(parleyerr.CodeIdentityNotAuthenticated, "x"), apiclient.KindAuthentication},
		{parleyerr.New(parleyerr.CodeChatNoActive, "x"), apiclient.KindNotFound},
		{context.DeadlineExceeded, apiclient.KindTransport},
		{errors.New("plain"), apiclient.KindUnknown},
		{nil, apiclient.KindUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, apiclient.KindOf(tt.err), "%v", tt.err)
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "authentication", apiclient.KindAuthentication.String())
	assert.Equal(t, "transport", apiclient.KindTransport.String())
	assert.Equal(t, "unknown", apiclient.Kind(99).String())
}

func TestStatusError_Error(t *testing.T) {
	se := &apiclient.StatusError{Method: "GET", Path: "/x/", StatusCode: 500}
	assert.Equal(t, "GET /x/: status 500", se.Error())

	se.Body = []byte(" {\"detail\":\"boom\"} ")
	assert.Equal(t, `GET /x/: status 500: {"detail":"boom"}`, se.Error())
}
