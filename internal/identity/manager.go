// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package identity owns the client session: the stored token pair, the
// decoded user, and the transitions between authenticated and anonymous.
package identity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-dev/parley/internal/apiclient"
	"github.com/parley-dev/parley/internal/secrets"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Fallback reasons shown when the backend gives none.
const (
	LoginFailedReason    = "Login failed. Please check your credentials and try again."
	RegisterFailedReason = "Registration failed. Please try again."
	PasswordMismatch     = "Passwords do not match."
	SessionExpiredReason = "Your session has expired. Please log in again."
	UpdateFailedReason   = "Could not update your profile."
)

// Backend endpoints used by the manager.
const (
	pathToken        = "/auth/token/"
	pathTokenRefresh = "/auth/token/refresh/"
	pathMe           = "/api/users/me/"
	pathMeUpdate     = "/api/users/me/update/"
	pathRegister     = "/api/users/register/"
	pathLogout       = "/api/users/logout/"
)

// State is the resolution state of the session.
type State int

const (
	StateUnresolved State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unresolved"
	}
}

// API is the subset of the HTTP client the manager uses.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Registration struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// Profile holds the account fields a user may change. Empty fields are
// left as they are.
type Profile struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager holds the session. After Init it is always either authenticated
// with a non-nil user or anonymous with a nil user.
type Manager struct {
	api    API
	tokens secrets.Store
	now    func() time.Time
	logger *slog.Logger

	refreshMu sync.Mutex

	mu     sync.RWMutex
	state  State
	user   *User
	access string
	hooks  []func()
}

var _ apiclient.TokenSource = (*Manager)(nil)
var _ apiclient.Refresher = (*Manager)(nil)

func NewManager(api API, tokens secrets.Store, opts ...Option) *Manager {
	m := &Manager{
		api:    api,
		tokens: tokens,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init resolves the session from the stored access token. A token that
// cannot be decoded or has expired is purged together with its refresh token.
func (m *Manager) Init(_ context.Context) State {
	token, err := m.tokens.Get(secrets.KeyAccessToken)
	if err != nil {
		if !parleyerr.HasCode(err, parleyerr.CodeSecretNotFound) {
			m.logger.Warn("reading stored access token", "error", err)
		}
		m.setAnonymous()
		return StateAnonymous
	}

	claims, err := decodeAccessToken(token)
	switch {
	case err != nil:
		m.logger.Info("discarding undecodable access token", "error", err)
		m.purgeTokens()
		m.setAnonymous()
		return StateAnonymous
	case claims.expired(m.now()):
		m.logger.Info("discarding expired access token", "expired_at", claims.ExpiresAt)
		m.purgeTokens()
		m.setAnonymous()
		return StateAnonymous
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.user = &claims.User
	m.access = token
	m.mu.Unlock()
	return StateAuthenticated
}

// Login exchanges credentials for a token pair, persists it, and loads the
// profile. Any failure leaves the previous session in place.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*User, error) {
	var pair tokenPair
	if err := m.api.Post(ctx, pathToken, creds, &pair); err != nil {
		return nil, failure(err, parleyerr.CodeIdentityLoginFailure, "login failed", LoginFailedReason)
	}
	if pair.Access == "" {
		return nil, parleyerr.New(parleyerr.CodeClientDecodeFailure, "token response has no access token",
			parleyerr.FieldReason(LoginFailedReason))
	}

	prevAccess, prevRefresh := m.storedTokens()
	if err := m.storeTokens(pair); err != nil {
		m.restoreTokens(prevAccess, prevRefresh)
		return nil, parleyerr.Wrap(err, parleyerr.CodeIdentityLoginFailure, "persisting tokens",
			parleyerr.FieldReason(LoginFailedReason))
	}

	m.mu.Lock()
	prevCached := m.access
	m.access = pair.Access
	m.mu.Unlock()

	var user User
	if err := m.api.Get(ctx, pathMe, &user); err != nil {
		m.restoreTokens(prevAccess, prevRefresh)
		m.mu.Lock()
		m.access = prevCached
		m.mu.Unlock()
		return nil, failure(err, parleyerr.CodeIdentityLoginFailure, "loading profile", LoginFailedReason)
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.user = &user
	m.mu.Unlock()

	m.logger.Info("logged in", "user_id", user.ID, "username", user.Username)
	out := user
	return &out, nil
}

// Register creates an account. It never changes the session.
func (m *Manager) Register(ctx context.Context, reg Registration) (*User, error) {
	if reg.Password != reg.Password2 {
		return nil, parleyerr.New(parleyerr.CodeIdentityRegisterInvalid, "password confirmation mismatch",
			parleyerr.FieldReason(PasswordMismatch))
	}

	var user User
	if err := m.api.Post(ctx, pathRegister, reg, &user); err != nil {
		return nil, failure(err, parleyerr.CodeIdentityRegisterFailure, "registration failed", RegisterFailedReason)
	}
	return &user, nil
}

// Logout forgets the session locally. It makes no network call and is safe
// to call repeatedly.
func (m *Manager) Logout() {
	m.purgeTokens()

	m.mu.Lock()
	wasAuthenticated := m.state == StateAuthenticated
	m.state = StateAnonymous
	m.user = nil
	m.access = ""
	hooks := append([]func(){}, m.hooks...)
	m.mu.Unlock()

	if wasAuthenticated {
		m.logger.Info("logged out")
	}
	for _, h := range hooks {
		h()
	}
}

// Refresh trades the stored refresh token for a new access token. On any
// failure the session is logged out.
func (m *Manager) Refresh(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	refresh, err := m.tokens.Get(secrets.KeyRefreshToken)
	if err != nil {
		m.Logout()
		return parleyerr.Wrap(err, parleyerr.CodeIdentityRefreshFailure, "no refresh token",
			parleyerr.FieldReason(SessionExpiredReason))
	}

	var pair tokenPair
	if err := m.api.Post(ctx, pathTokenRefresh, map[string]string{"refresh": refresh}, &pair); err != nil {
		m.Logout()
		return failure(err, parleyerr.CodeIdentityRefreshFailure, "refreshing access token", SessionExpiredReason)
	}

	claims, err := decodeAccessToken(pair.Access)
	if err != nil {
		m.Logout()
		return parleyerr.Wrap(err, parleyerr.CodeIdentityRefreshFailure, "refreshed token is invalid",
			parleyerr.FieldReason(SessionExpiredReason))
	}

	if pair.Refresh == "" {
		pair.Refresh = refresh
	}
	if err := m.storeTokens(pair); err != nil {
		m.Logout()
		return parleyerr.Wrap(err, parleyerr.CodeIdentityRefreshFailure, "persisting refreshed token",
			parleyerr.FieldReason(SessionExpiredReason))
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.user = &claims.User
	m.access = pair.Access
	m.mu.Unlock()

	m.logger.Debug("access token refreshed", "user_id", claims.User.ID)
	return nil
}

// Me fetches the profile from the backend and updates the cached user.
func (m *Manager) Me(ctx context.Context) (*User, error) {
	if !m.Authenticated() {
		return nil, parleyerr.New(parleyerr.CodeIdentityNotAuthenticated, "not logged in")
	}
	var user User
	if err := m.api.Get(ctx, pathMe, &user); err != nil {
		return nil, failure(err, parleyerr.CodeIdentityLoginFailure, "loading profile", "Could not load your profile.")
	}

	m.mu.Lock()
	if m.state == StateAuthenticated {
		m.user = &user
	}
	m.mu.Unlock()

	out := user
	return &out, nil
}

// UpdateProfile changes the email or username of the logged-in user and
// updates the cached user.
func (m *Manager) UpdateProfile(ctx context.Context, p Profile) (*User, error) {
	if !m.Authenticated() {
		return nil, parleyerr.New(parleyerr.CodeIdentityNotAuthenticated, "not logged in")
	}
	var user User
	if err := m.api.Patch(ctx, pathMeUpdate, p, &user); err != nil {
		return nil, failure(err, parleyerr.CodeIdentityUpdateFailure, "updating profile", UpdateFailedReason)
	}

	m.mu.Lock()
	if m.state == StateAuthenticated {
		m.user = &user
	}
	m.mu.Unlock()

	m.logger.Info("profile updated", "user_id", user.ID, "username", user.Username)
	out := user
	return &out, nil
}

// Revoke asks the backend to revoke the stored refresh token. It leaves the
// local session alone; callers follow it with Logout. Without a stored
// refresh token there is nothing to revoke.
func (m *Manager) Revoke(ctx context.Context) error {
	refresh, err := m.tokens.Get(secrets.KeyRefreshToken)
	if err != nil {
		if parleyerr.HasCode(err, parleyerr.CodeSecretNotFound) {
			return nil
		}
		return err
	}
	if err := m.api.Post(ctx, pathLogout, map[string]string{"refresh": refresh}, nil); err != nil {
		return failure(err, parleyerr.CodeIdentityRevokeFailure, "revoking refresh token", "Could not end the session on the server.")
	}
	m.logger.Debug("refresh token revoked")
	return nil
}

// OnLogout registers fn to run after every Logout.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	m.hooks = append(m.hooks, fn)
	m.mu.Unlock()
}

// AccessToken implements apiclient.TokenSource.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access
}

// User returns a copy of the current user, or nil when anonymous.
func (m *Manager) User() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Authenticated() bool {
	return m.State() == StateAuthenticated
}

func (m *Manager) setAnonymous() {
	m.mu.Lock()
	m.state = StateAnonymous
	m.user = nil
	m.access = ""
	m.mu.Unlock()
}

func (m *Manager) storeTokens(pair tokenPair) error {
	if err := m.tokens.Set(secrets.KeyAccessToken, pair.Access); err != nil {
		return err
	}
	if pair.Refresh == "" {
		return m.tokens.Delete(secrets.KeyRefreshToken)
	}
	return m.tokens.Set(secrets.KeyRefreshToken, pair.Refresh)
}

func (m *Manager) storedTokens() (access, refresh string) {
	access, _ = m.tokens.Get(secrets.KeyAccessToken)
	refresh, _ = m.tokens.Get(secrets.KeyRefreshToken)
	return access, refresh
}

// restoreTokens puts back a previously stored pair; empty values are removed.
func (m *Manager) restoreTokens(access, refresh string) {
	for key, val := range map[string]string{secrets.KeyAccessToken: access, secrets.KeyRefreshToken: refresh} {
		var err error
		if val == "" {
			err = m.tokens.Delete(key)
		} else {
			err = m.tokens.Set(key, val)
		}
		if err != nil {
			m.logger.Warn("restoring stored token", "key", key, "error", err)
		}
	}
}

func (m *Manager) purgeTokens() {
	for _, key := range []string{secrets.KeyAccessToken, secrets.KeyRefreshToken} {
		if err := m.tokens.Delete(key); err != nil {
			m.logger.Warn("removing stored token", "key", key, "error", err)
		}
	}
}

// failure wraps a client error, attaching the server's message as the
// reason when it sent one.
func failure(err error, code parleyerr.Code, msg, fallback string) error {
	reason := apiclient.Detail(err)
	if reason == "" {
		reason = fallback
	}
	return parleyerr.Wrap(err, code, msg, parleyerr.FieldReason(reason))
}
