// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeClientSetupFailure      Code = "client.request.setup.failure"
	CodeClientNoResponse        Code = "client.request.transport.no_response"
	CodeClientStatusFailure     Code = "client.response.status.failure"
	CodeClientDecodeFailure     Code = "client.response.decode.failure"
	CodeClientRateLimitCanceled Code = "client.request.rate_limit.cancelled"

	CodeIdentityLoginFailure     Code = "identity.login.failure"
	CodeIdentityRegisterFailure  Code = "identity.register.failure"
	CodeIdentityRegisterInvalid  Code = "identity.register.invalid_input"
	CodeIdentityRefreshFailure   Code = "identity.refresh.failure"
	CodeIdentityTokenInvalid     Code = "identity.token.invalid"
	CodeIdentityNotAuthenticated Code = "identity.session.unauthorized"
	CodeIdentityUpdateFailure    Code = "identity.profile.update.failure"
	CodeIdentityRevokeFailure    Code = "identity.logout.revoke.failure"

	CodeChatListFailure      Code = "chat.conversation.list.failure"
	CodeChatCreateFailure    Code = "chat.conversation.create.failure"
	CodeChatDeleteFailure    Code = "chat.conversation.delete.failure"
	CodeChatArchiveFailure   Code = "chat.conversation.archive.failure"
	CodeChatFetchFailure     Code = "chat.conversation.get.failure"
	CodeChatSendFailure      Code = "chat.message.send.failure"
	CodeChatSearchFailure    Code = "chat.search.failure"
	CodeChatSummarizeFailure Code = "chat.summarize.failure"
	CodeChatSuggestFailure   Code = "chat.suggest.failure"
	CodeChatNoActive         Code = "chat.conversation.active.not_found"

	CodeAppSetupFailure Code = "app.setup.failure"

	CodeSecretStoreFailure  Code = "secret.store.failure"
	CodeSecretDeleteFailure Code = "secret.delete.failure"
	CodeSecretListFailure   Code = "secret.list.failure"
	CodeSecretNotFound      Code = "secret.get.not_found"
	CodeSecretInvalidInput  Code = "secret.input.invalid_input"

	CodeStoreEntityNotFound  Code = "store.entity.get.not_found"
	CodeStoreDatabaseFailure Code = "store.database.failure"
	CodeStoreConflict        Code = "store.conflict"
	CodeStoreInvalidInput    Code = "store.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeProviderRequestInvalid       Code = "provider.request.invalid"
	CodeProviderResponseInvalid      Code = "provider.response.invalid"
	CodeProviderUpstreamFailure      Code = "provider.upstream.failure"
	CodeProviderNotFound             Code = "provider.registry.not_found"
	CodeProviderEmbeddingUnsupported Code = "provider.embedding.not_implemented"

	CodeServerRequestInvalid   Code = "server.request.invalid"
	CodeServerAuthUnauthorized Code = "server.auth.unauthorized"
	CodeServerAuthForbidden    Code = "server.auth.forbidden"
	CodeServerInternalFailure  Code = "server.internal.failure"
	CodeServerEntityNotFound   Code = "server.entity.not_found"
	CodeServerConflict         Code = "server.entity.conflict"
	CodeServerConfigInvalid    Code = "server.config.invalid"
	CodeServerStartFailure     Code = "server.start.failure"
	CodeServerShutdownFailure  Code = "server.shutdown.failure"
	CodeServerNotImplemented   Code = "server.method.not_implemented"

	CodeCLIBackendUnreachable Code = "cli.backend.not_running"
	CodeCLIRequestFailure     Code = "cli.request.failure"
	CodeCLISetupFailure       Code = "cli.setup.failure"
	CodeCLIInputInvalid       Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldConversationID(value string) Attr {
	return Field("conversation_id", value)
}

func FieldUserID(value string) Attr {
	return Field("user_id", value)
}

func FieldPath(value string) Attr {
	return Field("path", value)
}

func FieldStatus(value int) Attr {
	return Field("status", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

// FieldReason attaches the human-readable explanation shown to end users.
func FieldReason(value string) Attr {
	return Field(reasonKey, value)
}

const reasonKey = "reason"

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

// Reason returns the human-readable explanation attached with FieldReason,
// or fallback when the chain carries none.
func Reason(err error, fallback string) string {
	if r, ok := FieldsOf(err)[reasonKey].(string); ok && r != "" {
		return r
	}
	return fallback
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case reason(CodeOf(err)) == "not_implemented":
		return http.StatusNotImplemented
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		if reason(CodeOf(err)) == "forbidden" || reason(CodeOf(err)) == "denied" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
