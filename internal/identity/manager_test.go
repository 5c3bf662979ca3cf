// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/parley-dev/parley/internal/apiclient"
	"github.com/parley-dev/parley/internal/identity"
	"github.com/parley-dev/parley/internal/secrets"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func validToken(t *testing.T, userID any) string {
	return mintToken(t, jwt.MapClaims{
		"user_id":  userID,
		"email":    "ada@example.com",
		"username": "ada",
		"exp":      testNow.Add(time.Hour).Unix(),
	})
}

type fixture struct {
	mgr    *identity.Manager
	tokens *secrets.MemoryStore
	client *apiclient.Client
}

func newFixture(t *testing.T, mux *http.ServeMux) *fixture {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := &fixture{tokens: secrets.NewMemoryStore()}
	client, err := apiclient.New(srv.URL, apiclient.WithTokenSource(apiclient.TokenSourceFunc(func() string {
		return f.mgr.AccessToken()
	})))
	require.NoError(t, err)
	f.client = client
	f.mgr = identity.NewManager(client, f.tokens, identity.WithClock(func() time.Time { return testNow }))
	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func assertNoTokens(t *testing.T, s secrets.Store) {
	t.Helper()
	for _, key := range []string{secrets.KeyAccessToken, secrets.KeyRefreshToken} {
		_, err := s.Get(key)
		assert.True(t, parleyerr.HasCode(err, parleyerr.CodeSecretNotFound), "%s should be purged", key)
	}
}

// ---------------------------------------------------------------------------
// Init
// ---------------------------------------------------------------------------

func TestInit_NoToken(t *testing.T) {
	f := newFixture(t, http.NewServeMux())
	assert.Equal(t, identity.StateUnresolved, f.mgr.State())

	assert.Equal(t, identity.StateAnonymous, f.mgr.Init(context.Background()))
	assert.Nil(t, f.mgr.User())
	assert.False(t, f.mgr.Authenticated())
}

func TestInit_ValidToken(t *testing.T) {
	for name, id := range map[string]any{"number": 42, "string": "42"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, http.NewServeMux())
			tok := validToken(t, id)
			require.NoError(t, f.tokens.Set(secrets.KeyAccessToken, tok))

			assert.Equal(t, identity.StateAuthenticated, f.mgr.Init(context.Background()))
			require.NotNil(t, f.mgr.User())
			assert.Equal(t, identity.User{ID: 42, Email: "ada@example.com", Username: "ada"}, *f.mgr.User())
			assert.Equal(t, tok, f.mgr.AccessToken())
		})
	}
}

func TestInit_DiscardsBadTokens(t *testing.T) {
	tests := map[string]func(t *testing.T) string{
		"expired": func(t *testing.T) string {
			return mintToken(t, jwt.MapClaims{"user_id": 1, "exp": testNow.Add(-time.Minute).Unix()})
		},
		"expires now": func(t *testing.T) string {
			return mintToken(t, jwt.MapClaims{"user_id": 1, "exp": testNow.Unix()})
		},
		"garbage":        func(*testing.T) string { return "not-a-jwt" },
		"no user id":     func(t *testing.T) string { return mintToken(t, jwt.MapClaims{"exp": testNow.Add(time.Hour).Unix()}) },
		"non numeric id": func(t *testing.T) string { return validToken(t, "abc") },
		"bad exp claim":  func(t *testing.T) string { return mintToken(t, jwt.MapClaims{"user_id": 1, "exp": "soon"}) },
	}

	for name, mk := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, http.NewServeMux())
			require.NoError(t, f.tokens.Set(secrets.KeyAccessToken, mk(t)))
			require.NoError(t, f.tokens.Set(secrets.KeyRefreshToken, "refresh"))

			assert.Equal(t, identity.StateAnonymous, f.mgr.Init(context.Background()))
			assert.Nil(t, f.mgr.User())
			assert.Empty(t, f.mgr.AccessToken())
			assertNoTokens(t, f.tokens)
		})
	}
}

func TestInit_TokenWithoutExpiryIsAccepted(t *testing.T) {
	f := newFixture(t, http.NewServeMux())
	require.NoError(t, f.tokens.Set(secrets.KeyAccessToken, mintToken(t, jwt.MapClaims{"user_id": 5})))

	assert.Equal(t, identity.StateAuthenticated, f.mgr.Init(context.Background()))
	assert.Equal(t, int64(5), f.mgr.User().ID)
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func loginMux(t *testing.T, access string, meStatus int) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token/", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var creds identity.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": "refresh-1"})
	})
	mux.HandleFunc("GET /api/users/me/", func(w http.ResponseWriter, r *http.Request) {
		if meStatus != http.StatusOK {
			w.WriteHeader(meStatus)
			return
		}
		assert.Equal(t, "Bearer "+access, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, identity.User{ID: 42, Email: "ada@example.com", Username: "ada"})
	})
	return mux
}

func TestLogin_Success(t *testing.T) {
	access := validToken(t, 42)
	f := newFixture(t, loginMux(t, access, http.StatusOK))
	f.mgr.Init(context.Background())

	user, err := f.mgr.Login(context.Background(), identity.Credentials{Username: "ada", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, identity.StateAuthenticated, f.mgr.State())

	stored, err := f.tokens.Get(secrets.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, access, stored)
	stored, err = f.tokens.Get(secrets.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", stored)
}

func TestLogin_TokenRoundTrip(t *testing.T) {
	f := newFixture(t, loginMux(t, validToken(t, 42), http.StatusOK))
	f.mgr.Init(context.Background())
	_, err := f.mgr.Login(context.Background(), identity.Credentials{Username: "ada", Password: "secret"})
	require.NoError(t, err)

	restarted := identity.NewManager(f.client, f.tokens, identity.WithClock(func() time.Time { return testNow }))
	assert.Equal(t, identity.StateAuthenticated, restarted.Init(context.Background()))
	assert.Equal(t, int64(42), restarted.User().ID)
}

func TestLogin_RejectedUsesServerDetail(t *testing.T) {
	f := newFixture(t, loginMux(t, validToken(t, 42), http.StatusOK))
	f.mgr.Init(context.Background())

	_, err := f.mgr.Login(context.Background(), identity.Credentials{Username: "ada", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, "No active account found with the given credentials", parleyerr.Reason(err, ""))
	assert.Equal(t, apiclient.KindAuthentication, apiclient.KindOf(err))
	assert.Equal(t, identity.StateAnonymous, f.mgr.State())
	assertNoTokens(t, f.tokens)
}

func TestLogin_FallbackReason(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>boom</html>"))
	})
	f := newFixture(t, mux)
	f.mgr.Init(context.Background())

	_, err := f.mgr.Login(context.Background(), identity.Credentials{Username: "ada", Password: "secret"})
	require.Error(t, err)
	assert.Equal(t, identity.LoginFailedReason, parleyerr.Reason(err, ""))
	assert.Equal(t, apiclient.KindServer, apiclient.KindOf(err))
}

func TestLogin_ProfileFailureLeavesNoTokens(t *testing.T) {
	f := newFixture(t, loginMux(t, validToken(t, 42), http.StatusInternalServerError))
	f.mgr.Init(context.Background())

	_, err := f.mgr.Login(context.Background(), identity.Credentials{Username: "ada", Password: "secret"})
	require.Error(t, err)
	assert.Equal(t, identity.StateAnonymous, f.mgr.State())
	assert.Empty(t, f.mgr.AccessToken())
	assertNoTokens(t, f.tokens)
}

func TestLogin_FailureKeepsExistingSession(t *testing.T) {
	existing := validToken(t, 7)
	f := newFixture(t, loginMux(t, validToken(t, 42), http.StatusInternalServerError))
	require.NoError(t, f.tokens.Set(secrets.KeyAccessToken, existing))
	require.NoError(t, f.tokens.Set(secrets.KeyRefreshToken, "old-refresh"))
	require.Equal(t, identity.StateAuthenticated, f.mgr.Init(context.Background()))

	_, err := f.mgr.Login(context.Background(), identity.Credentials{Username: "ada", Password: "secret"})
	require.Error(t, err)

	assert.Equal(t, identity.StateAuthenticated, f.mgr.State())
	assert.Equal(t, int64(7), f.mgr.User().ID)
	assert.Equal(t, existing, f.mgr.AccessToken())
	stored, err := f.tokens.Get(secrets.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "old-refresh", stored)
}

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestRegister_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/register/", func(w http.ResponseWriter, r *http.Request) {
		var reg identity.Registration
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reg))
		assert.Equal(t, "pw", reg.Password2)
		writeJSON(w, http.StatusCreated, identity.User{ID: 9, Email: reg.Email, Username: reg.Username})
	})
	f := newFixture(t, mux)
	f.mgr.Init(context.Background())

	user, err := f.mgr.Register(context.Background(), identity.Registration{
		Email: "b@example.com", Username: "bob", Password: "pw", Password2: "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), user.ID)
	assert.Equal(t, identity.StateAnonymous, f.mgr.State(), "registration never authenticates")
}

func TestRegister_PasswordMismatchIsLocal(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })
	f := newFixture(t, mux)

	_, err := f.mgr.Register(context.Background(), identity.Registration{Password: "a", Password2: "b"})
	require.Error(t, err)
	assert.Equal(t, apiclient.KindValidation, apiclient.KindOf(err))
	assert.Equal(t, identity.PasswordMismatch, parleyerr.Reason(err, ""))
	assert.Zero(t, hits.Load())
}

func TestRegister_FieldErrorReason(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/register/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"username":["A user with that username already exists."]}`))
	})
	f := newFixture(t, mux)

	_, err := f.mgr.Register(context.Background(), identity.Registration{Username: "bob", Password: "p", Password2: "p"})
	require.Error(t, err)
	assert.Equal(t, "A user with that username already exists.", parleyerr.Reason(err, ""))
	assert.Equal(t, apiclient.KindValidation, apiclient.KindOf(err))
}

func TestRegister_FallbackReason(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/register/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	f := newFixture(t, mux)

	_, err := f.mgr.Register(context.Background(), identity.Registration{Password: "p", Password2: "p"})
	require.Error(t, err)
	assert.Equal(t, identity.RegisterFailedReason, parleyerr.Reason(err, ""))
}

// ---------------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------------

func TestLogout_IdempotentAndRunsHooks(t *testing.T) {
	f := newFixture(t, http.NewServeMux())
	require.NoError(t, f.tokens.Set(secrets.KeyAccessToken, validToken(t, 42)))
	require.NoError(t, f.tokens.Set(secrets.KeyRefreshToken, "r"))
	f.mgr.Init(context.Background())

	var calls int
	f.mgr.OnLogout(func() { calls++ })

	for i := 0; i < 2; i++ {
		f.mgr.Logout()
		assert.Equal(t, identity.StateAnonymous, f.mgr.State())
		assert.Nil(t, f.mgr.User())
		assert.Empty(t, f.mgr.AccessToken())
		assertNoTokens(t, f.tokens)
	}
	assert.Equal(t, 2, calls)
}

// ---------------------------------------------------------------------------
// Refresh
// ---------------------------------------------------------------------------

func TestRefresh_Success(t *testing.T) {
	fresh := validToken(t, 42)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body["refresh"])
		writeJSON(w, http.StatusOK, map[string]string{"access": fresh})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.tokens.Set(secrets.KeyRefreshToken, "refresh-1"))
	f.mgr.Init(context.Background())

	require.NoError(t, f.mgr.Refresh(context.Background()))
	assert.Equal(t, identity.StateAuthenticated, f.mgr.State())
	assert.Equal(t, fresh, f.mgr.AccessToken())

	stored, err := f.tokens.Get(secrets.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", stored, "refresh token kept when not rotated")
}

func TestRefresh_FailureLogsOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.tokens.Set(secrets.KeyAccessToken, validToken(t, 42)))
	require.NoError(t, f.tokens.Set(secrets.KeyRefreshToken, "stale"))
	f.mgr.Init(context.Background())

	var loggedOut bool
	f.mgr.OnLogout(func() { loggedOut = true })

	err := f.mgr.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Token is invalid or expired", parleyerr.Reason(err, ""))
	assert.True(t, loggedOut)
	assert.Equal(t, identity.StateAnonymous, f.mgr.State())
	assertNoTokens(t, f.tokens)
}

func TestRefresh_WithoutRefreshToken(t *testing.T) {
	f := newFixture(t, http.NewServeMux())
	f.mgr.Init(context.Background())

	err := f.mgr.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, identity.SessionExpiredReason, parleyerr.Reason(err, ""))
}

func TestRefresh_ReplaysThroughClient(t *testing.T) {
	stale := validToken(t, 42)
	fresh := mintToken(t, jwt.MapClaims{"user_id": 42, "username": "ada", "jti": "fresh", "exp": testNow.Add(time.Hour).Unix()})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access": fresh, "refresh": "refresh-2"})
	})
	mux.HandleFunc("GET /chat/conversations/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+fresh {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, []any{})
	})
	f := newFixture(t, mux)
	f.client.SetRefresher(f.mgr)
	require.NoError(t, f.tokens.Set(secrets.KeyAccessToken, stale))
	require.NoError(t, f.tokens.Set(secrets.KeyRefreshToken, "refresh-1"))
	f.mgr.Init(context.Background())

	var out []any
	require.NoError(t, f.client.Get(context.Background(), "/chat/conversations/", &out))
	assert.Equal(t, fresh, f.mgr.AccessToken())

	stored, err := f.tokens.Get(secrets.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", stored)
}

// ---------------------------------------------------------------------------
// Me / State
// ---------------------------------------------------------------------------

func TestMe_RequiresSession(t *testing.T) {
	f := newFixture(t, http.NewServeMux())
	f.mgr.Init(context.Background())

	_, err := f.mgr.Me(context.Background())
	require.Error(t, err)
	assert.Equal(t, apiclient.KindAuthentication, apiclient.KindOf(err))
}

func TestState_MutualExclusion(t *testing.T) {
	f := newFixture(t, loginMux(t, validToken(t, 42), http.StatusOK))
	check := func() {
		switch f.mgr.State() {
		case identity.StateAuthenticated:
			assert.NotNil(t, f.mgr.User())
		case identity.StateAnonymous:
			assert.Nil(t, f.mgr.User())
		}
	}

	f.mgr.Init(context.Background())
	check()
	_, _ = f.mgr.Login(context.Background(), identity.Credentials{Username: "ada", Password: "wrong"})
	check()
	_, _ = f.mgr.Login(context.Background(), identity.Credentials{Username: "ada", Password: "secret"})
	check()
	f.mgr.Logout()
	check()
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "authenticated", identity.StateAuthenticated.String())
	assert.Equal(t, "anonymous", identity.StateAnonymous.String())
	assert.Equal(t, "unresolved", identity.StateUnresolved.String())
}

// ---------------------------------------------------------------------------
// Profile / Revoke
// ---------------------------------------------------------------------------

func TestUpdateProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/users/me/update/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["username"] == "taken" {
			writeJSON(w, http.StatusConflict, map[string]string{"detail": "A user with that username already exists."})
			return
		}
		assert.Equal(t, map[string]string{"username": "lovelace"}, body, "empty fields are omitted")
		writeJSON(w, http.StatusOK, identity.User{ID: 42, Email: "ada@example.com", Username: "lovelace"})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.tokens.Set(secrets.KeyAccessToken, validToken(t, 42)))
	f.mgr.Init(context.Background())

	user, err := f.mgr.UpdateProfile(context.Background(), identity.Profile{Username: "lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "lovelace", user.Username)
	assert.Equal(t, "lovelace", f.mgr.User().Username)

	_, err = f.mgr.UpdateProfile(context.Background(), identity.Profile{Username: "taken"})
	require.Error(t, err)
	assert.Equal(t, "A user with that username already exists.", parleyerr.Reason(err, ""))
	assert.Equal(t, "lovelace", f.mgr.User().Username, "failed update keeps the cached user")
}

func TestUpdateProfile_RequiresSession(t *testing.T) {
	f := newFixture(t, http.NewServeMux())
	f.mgr.Init(context.Background())

	_, err := f.mgr.UpdateProfile(context.Background(), identity.Profile{Email: "x@example.com"})
	require.Error(t, err)
	assert.True(t, parleyerr.HasCode(err, parleyerr.CodeIdentityNotAuthenticated))
}

func TestRevoke(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/logout/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body["refresh"])
		w.WriteHeader(http.StatusResetContent)
	})
	f := newFixture(t, mux)
	require.NoError(t, f.tokens.Set(secrets.KeyAccessToken, validToken(t, 42)))
	require.NoError(t, f.tokens.Set(secrets.KeyRefreshToken, "refresh-1"))
	f.mgr.Init(context.Background())

	require.NoError(t, f.mgr.Revoke(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, identity.StateAuthenticated, f.mgr.State(), "revoking leaves the local session")

	f.mgr.Logout()
	require.NoError(t, f.mgr.Revoke(context.Background()), "nothing to revoke")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRevoke_Failure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/logout/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Token is invalid or expired"})
	})
	f := newFixture(t, mux)
	require.NoError(t, f.tokens.Set(secrets.KeyAccessToken, validToken(t, 42)))
	require.NoError(t, f.tokens.Set(secrets.KeyRefreshToken, "stale"))
	f.mgr.Init(context.Background())

	err := f.mgr.Revoke(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Token is invalid or expired", parleyerr.Reason(err, ""))
}
