// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

type revocationStore struct {
	db  *sql.DB
	now func() time.Time
}

// Revoke records tokenID. Entries whose token has expired anyway are
// pruned on the way.
func (r *revocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if strings.TrimSpace(tokenID) == "" {
		return parleyerr.New(parleyerr.CodeStoreInvalidInput, "revocation: token id is required")
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, formatTime(r.now())); err != nil {
		return store.DatabaseError(err, "pruning revoked tokens")
	}

	const q = `INSERT INTO revoked_tokens (token_id, expires_at) VALUES (?, ?)
ON CONFLICT(token_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, tokenID, formatTime(expiresAt)); err != nil {
		return store.DatabaseError(err, "revoking token %s", tokenID)
	}
	return nil
}

func (r *revocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM revoked_tokens WHERE token_id = ?`, tokenID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, store.DatabaseError(err, "checking token %s", tokenID)
	}
	return true, nil
}
