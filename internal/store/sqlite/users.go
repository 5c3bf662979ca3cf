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
)

type userStore struct {
	db  *sql.DB
	now func() time.Time
}

func (u *userStore) Create(ctx context.Context, user *store.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = u.now()
	}

	const q = `INSERT INTO users (email, username, password_hash, created_at) VALUES (?, ?, ?, ?)`
	result, err := u.db.ExecContext(ctx, q, user.Email, user.Username, user.PasswordHash, formatTime(user.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return userConflict(err)
		}
		return store.DatabaseError(err, "creating user %s", user.Username)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return store.DatabaseError(err, "reading user id")
	}
	user.ID = id
	return nil
}

func (u *userStore) Update(ctx context.Context, user *store.User) error {
	if err := user.ValidateProfile(); err != nil {
		return err
	}

	const q = `UPDATE users SET email = ?, username = ? WHERE id = ?`
	result, err := u.db.ExecContext(ctx, q, user.Email, user.Username, user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return userConflict(err)
		}
		return store.DatabaseError(err, "updating user %d", user.ID)
	}
	return checkAffected(result, "user", user.ID)
}

func userConflict(err error) error {
	if strings.Contains(err.Error(), "users.email") {
		return store.Conflict("user", "A user with that email already exists.")
	}
	return store.Conflict("user", "A user with that username already exists.")
}

func (u *userStore) Get(ctx context.Context, id int64) (*store.User, error) {
	const q = `SELECT id, email, username, password_hash, created_at FROM users WHERE id = ?`
	return u.scanOne(u.db.QueryRowContext(ctx, q, id), id)
}

func (u *userStore) GetByUsername(ctx context.Context, username string) (*store.User, error) {
	const q = `SELECT id, email, username, password_hash, created_at FROM users WHERE username = ?`
	return u.scanOne(u.db.QueryRowContext(ctx, q, username), username)
}

func (u *userStore) scanOne(row *sql.Row, key any) (*store.User, error) {
	var user store.User
	var createdAt string
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("user", key)
	}
	if err != nil {
		return nil, store.DatabaseError(err, "getting user %v", key)
	}
	user.CreatedAt = parseTime(createdAt)
	return &user, nil
}
