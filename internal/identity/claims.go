// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package identity

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// User is the authenticated account.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// tokenClaims is what the client reads out of an access token. The
// signature is not checked; only the backend can do that.
type tokenClaims struct {
	User      User
	ExpiresAt *time.Time
}

// decodeAccessToken parses the claims of token without verifying it.
// user_id may be a JSON number or a numeric string.
func decodeAccessToken(token string) (*tokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, parleyerr.Wrap(err, parleyerr.CodeIdentityTokenInvalid, "decoding access token")
	}

	id, err := userID(claims["user_id"])
	if err != nil {
		return nil, err
	}

	tc := &tokenClaims{User: User{ID: id}}
	tc.User.Email, _ = claims["email"].(string)
	tc.User.Username, _ = claims["username"].(string)

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, parleyerr.Wrap(err, parleyerr.CodeIdentityTokenInvalid, "decoding token expiry")
	}
	if exp != nil {
		t := exp.Time
		tc.ExpiresAt = &t
	}
	return tc, nil
}

func (c *tokenClaims) expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

func userID(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		id, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, parleyerr.Wrap(err, parleyerr.CodeIdentityTokenInvalid, "decoding user_id claim")
		}
		return id, nil
	case nil:
		return 0, parleyerr.New(parleyerr.CodeIdentityTokenInvalid, "access token has no user_id claim")
	default:
		return 0, parleyerr.Errorf(parleyerr.CodeIdentityTokenInvalid, "unsupported user_id claim type %T", v)
	}
}
