// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-dev/parley/internal/server"
	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

func TestNewTokenIssuer_Validation(t *testing.T) {
	_, err := server.NewTokenIssuer("", time.Hour, time.Hour)
	assert.Error(t, err)

	_, err = server.NewTokenIssuer("s", 0, time.Hour)
	assert.Error(t, err)

	_, err = server.NewTokenIssuer("s", time.Hour, -time.Hour)
	assert.Error(t, err)
}

func TestTokenIssuer_IssueAndParse(t *testing.T) {
	issuer, err := server.NewTokenIssuer(testSecret, time.Hour, 24*time.Hour)
	require.NoError(t, err)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	issuer.SetNowFunc(func() time.Time { return now })

	pair, err := issuer.Issue(&store.User{ID: 42, Email: "a@example.com", Username: "alice"})
	require.NoError(t, err)

	claims, err := issuer.Parse(pair.Access, server.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.WithinDuration(t, now.Add(time.Hour), claims.ExpiresAt.Time, 0)
	assert.NotEmpty(t, claims.ID)

	refresh, err := issuer.Parse(pair.Refresh, server.TokenTypeRefresh)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(24*time.Hour), refresh.ExpiresAt.Time, 0)
	assert.NotEqual(t, claims.ID, refresh.ID)

	// The client decodes these claims without verifying.
	unverified := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(pair.Access, unverified)
	require.NoError(t, err)
	assert.InDelta(t, 42, unverified["user_id"], 0)
	assert.Equal(t, "access", unverified["token_type"])
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer, err := server.NewTokenIssuer(testSecret, time.Hour, 24*time.Hour)
	require.NoError(t, err)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	issuer.SetNowFunc(func() time.Time { return now })

	pair, err := issuer.Issue(&store.User{ID: 1, Username: "bob"})
	require.NoError(t, err)

	other, err := server.NewTokenIssuer("another-secret", time.Hour, time.Hour)
	require.NoError(t, err)
	foreign, err := other.Issue(&store.User{ID: 1, Username: "bob"})
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 1, "token_type": "access"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  string
		now   time.Time
	}{
		{name: "wrong type", token: pair.Refresh, want: server.TokenTypeAccess, now: now},
		{name: "expired", token: pair.Access, want: server.TokenTypeAccess, now: now.Add(2 * time.Hour)},
		{name: "foreign secret", token: foreign.Access, want: server.TokenTypeAccess, now: now},
		{name: "unsigned", token: unsigned, want: server.TokenTypeAccess, now: now},
		{name: "garbage", token: "not-a-jwt", want: server.TokenTypeAccess, now: now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer.SetNowFunc(func() time.Time { return tt.now })
			_, err := issuer.Parse(tt.token, tt.want)
			require.Error(t, err)
			assert.True(t, parleyerr.IsUnauthorized(err))
		})
	}
}

func TestRegisterLoginMe(t *testing.T) {
	e := newEnv(t)
	token := e.register(t, "alice")

	rec := e.do(t, http.MethodGet, server.PathMe, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var me struct {
		ID       int64  `json:"id"`
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	decode(t, rec, &me)
	assert.Positive(t, me.ID)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice")

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantDetail string
	}{
		{
			name:       "passwords differ",
			body:       map[string]string{"email": "b@example.com", "username": "bob", "password": "correct-horse", "password2": "battery-staple"},
			wantStatus: http.StatusBadRequest,
			wantDetail: "Password fields didn't match.",
		},
		{
			name:       "short password",
			body:       map[string]string{"email": "b@example.com", "username": "bob", "password": "short", "password2": "short"},
			wantStatus: http.StatusBadRequest,
			wantDetail: "This password is too short. It must contain at least 8 characters.",
		},
		{
			name:       "username taken",
			body:       map[string]string{"email": "other@example.com", "username": "alice", "password": "correct-horse", "password2": "correct-horse"},
			wantStatus: http.StatusConflict,
			wantDetail: "A user with that username already exists.",
		},
		{
			name:       "email taken",
			body:       map[string]string{"email": "alice@example.com", "username": "alice2", "password": "correct-horse", "password2": "correct-horse"},
			wantStatus: http.StatusConflict,
			wantDetail: "A user with that email already exists.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, server.PathRegister, "", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantDetail, detail(t, rec))
		})
	}

	t.Run("missing field", func(t *testing.T) {
		rec := e.do(t, http.MethodPost, server.PathRegister, "", map[string]string{"username": "carol"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestLogin_BadCredentials(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice")

	for _, body := range []map[string]string{
		{"username": "alice", "password": "wrong-password"},
		{"username": "nobody", "password": "correct-horse"},
	} {
		rec := e.do(t, http.MethodPost, server.PathToken, "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "No active account found with the given credentials", detail(t, rec))
	}
}

func TestRefresh(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice")

	rec := e.do(t, http.MethodPost, server.PathToken, "", map[string]string{"username": "alice", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	var pair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	decode(t, rec, &pair)

	rec = e.do(t, http.MethodPost, server.PathTokenRefresh, "", map[string]string{"refresh": pair.Refresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refreshed struct {
		Access string `json:"access"`
	}
	decode(t, rec, &refreshed)
	require.NotEmpty(t, refreshed.Access)

	rec = e.do(t, http.MethodGet, server.PathMe, refreshed.Access, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// An access token is not a refresh token.
	rec = e.do(t, http.MethodPost, server.PathTokenRefresh, "", map[string]string{"refresh": pair.Access})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token is invalid or expired", detail(t, rec))
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice")

	rec := e.do(t, http.MethodGet, server.PathConversations, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication credentials were not provided.", detail(t, rec))

	rec = e.do(t, http.MethodGet, server.PathConversations, "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Given token not valid for any token type", detail(t, rec))

	pair, err := e.tokens.Issue(&store.User{ID: 1, Username: "alice"})
	require.NoError(t, err)
	rec = e.do(t, http.MethodGet, server.PathConversations, pair.Refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_DeletedUser(t *testing.T) {
	e := newEnv(t)
	pair, err := e.tokens.Issue(&store.User{ID: 999, Username: "ghost"})
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, server.PathMe, pair.Access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type tokenPairJSON struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (e *env) login(t *testing.T, username string) tokenPairJSON {
	t.Helper()
	rec := e.do(t, http.MethodPost, server.PathToken, "", map[string]string{"username": username, "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pair tokenPairJSON
	decode(t, rec, &pair)
	return pair
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice")
	pair := e.login(t, "alice")

	rec := e.do(t, http.MethodPost, server.PathLogout, pair.Access, map[string]string{"refresh": pair.Refresh})
	require.Equal(t, http.StatusResetContent, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, server.PathTokenRefresh, "", map[string]string{"refresh": pair.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token is invalid or expired", detail(t, rec))

	// Logging out twice is harmless.
	rec = e.do(t, http.MethodPost, server.PathLogout, pair.Access, map[string]string{"refresh": pair.Refresh})
	assert.Equal(t, http.StatusResetContent, rec.Code)

	// Other sessions keep working.
	other := e.login(t, "alice")
	rec = e.do(t, http.MethodPost, server.PathTokenRefresh, "", map[string]string{"refresh": other.Refresh})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogout_Rejects(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice")
	e.register(t, "bob")
	alice := e.login(t, "alice")
	bob := e.login(t, "bob")

	rec := e.do(t, http.MethodPost, server.PathLogout, "", map[string]string{"refresh": alice.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, server.PathLogout, alice.Access, map[string]string{"refresh": "garbage"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Token is invalid or expired", detail(t, rec))

	rec = e.do(t, http.MethodPost, server.PathLogout, alice.Access, map[string]string{"refresh": alice.Access})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "an access token is not a refresh token")

	rec = e.do(t, http.MethodPost, server.PathLogout, bob.Access, map[string]string{"refresh": alice.Refresh})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "only the owner can revoke a token")

	rec = e.do(t, http.MethodPost, server.PathTokenRefresh, "", map[string]string{"refresh": alice.Refresh})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateMe(t *testing.T) {
	e := newEnv(t)
	token := e.register(t, "alice")

	rec := e.do(t, http.MethodPatch, server.PathMeUpdate, token, map[string]string{"username": "alicia"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var u struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	decode(t, rec, &u)
	assert.Equal(t, "alicia", u.Username)
	assert.Equal(t, "alice@example.com", u.Email, "fields left out are kept")

	rec = e.do(t, http.MethodPatch, server.PathMeUpdate, token, map[string]string{"email": "alicia@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, server.PathMe, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &u)
	assert.Equal(t, "alicia", u.Username)
	assert.Equal(t, "alicia@example.com", u.Email)

	e.login(t, "alicia")
}

func TestUpdateMe_Conflict(t *testing.T) {
	e := newEnv(t)
	token := e.register(t, "alice")
	e.register(t, "bob")

	rec := e.do(t, http.MethodPatch, server.PathMeUpdate, token, map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "A user with that username already exists.", detail(t, rec))

	rec = e.do(t, http.MethodPatch, server.PathMeUpdate, token, map[string]string{"email": "bob@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "A user with that email already exists.", detail(t, rec))

	rec = e.do(t, http.MethodPatch, server.PathMeUpdate, "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
