// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package store

import (
	"fmt"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// NotFound reports a missing entity of the given kind.
func NotFound(kind string, id any) error {
	return parleyerr.New(parleyerr.CodeStoreEntityNotFound, fmt.Sprintf("%s %v not found", kind, id),
		parleyerr.Field("entity", kind), parleyerr.FieldReason("Not found."))
}

// Conflict reports a uniqueness violation.
func Conflict(kind, reason string) error {
	return parleyerr.New(parleyerr.CodeStoreConflict, kind+" already exists",
		parleyerr.Field("entity", kind), parleyerr.FieldReason(reason))
}

// DatabaseError wraps a driver failure.
func DatabaseError(err error, format string, args ...any) error {
	return parleyerr.Wrap(err, parleyerr.CodeStoreDatabaseFailure, fmt.Sprintf(format, args...))
}
