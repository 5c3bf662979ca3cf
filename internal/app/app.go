// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package app wires the client components into one explicitly constructed
// container: token store, API client, session manager, conversation store
// and search. Front-ends receive an *App instead of reaching for globals.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/parley-dev/parley/internal/apiclient"
	"github.com/parley-dev/parley/internal/chat"
	"github.com/parley-dev/parley/internal/config"
	"github.com/parley-dev/parley/internal/identity"
	"github.com/parley-dev/parley/internal/secrets"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// tokenFileName is used under the config directory when the keyring is
// unavailable and no token file is configured.
const tokenFileName = "tokens.yaml"

// App is the client state container.
type App struct {
	Config  *config.Config
	Tokens  secrets.Store
	Client  *apiclient.Client
	Session *identity.Manager
	Store   *chat.Store
	Search  *chat.Search
}

type options struct {
	tokens     secrets.Store
	httpClient *http.Client
	notifier   chat.Notifier
	logger     *slog.Logger
}

// Option customizes New.
type Option func(*options)

// WithTokenStore replaces the configured token store.
func WithTokenStore(s secrets.Store) Option {
	return func(o *options) { o.tokens = s }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithNotifier receives the notifications raised by store and search
// operations. Defaults to logging them.
func WithNotifier(n chat.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds the container from cfg. Logging out resets the conversation
// store; the refresher is attached only when enabled in cfg.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, parleyerr.New(parleyerr.CodeAppSetupFailure, "config is required")
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifier == nil {
		o.notifier = chat.LogNotifier{Logger: o.logger}
	}

	tokens := o.tokens
	if tokens == nil {
		var err error
		tokens, err = openTokenStore(cfg.Auth)
		if err != nil {
			return nil, parleyerr.Wrap(err, parleyerr.CodeAppSetupFailure, "opening token store")
		}
	}

	a := &App{Config: cfg, Tokens: tokens}

	client, err := apiclient.New(cfg.Client.BaseURL,
		apiclient.WithHTTPClient(o.httpClient),
		apiclient.WithTimeout(cfg.Client.Timeout),
		apiclient.WithRateLimit(cfg.Client.RateLimit, cfg.Client.Burst),
		apiclient.WithUserAgent(cfg.Client.UserAgent),
		apiclient.WithLogger(o.logger),
		apiclient.WithTokenSource(apiclient.TokenSourceFunc(func() string {
			return a.Session.AccessToken()
		})),
	)
	if err != nil {
		return nil, parleyerr.Wrap(err, parleyerr.CodeAppSetupFailure, "creating api client")
	}
	a.Client = client

	a.Session = identity.NewManager(client, tokens, identity.WithLogger(o.logger))
	if cfg.Client.RefreshOnUnauthorized {
		client.SetRefresher(a.Session)
	}

	a.Store = chat.NewStore(client, o.notifier, chat.WithStoreLogger(o.logger))
	a.Search = chat.NewSearch(client, a.Store,
		chat.WithDebounce(cfg.Search.Debounce),
		chat.WithSearchLogger(o.logger),
	)
	a.Session.OnLogout(a.Store.Reset)

	return a, nil
}

// Init resolves the stored session.
func (a *App) Init(ctx context.Context) identity.State {
	return a.Session.Init(ctx)
}

// Close stops pending background searches.
func (a *App) Close() {
	a.Search.Close()
}

func openTokenStore(cfg config.AuthConfig) (secrets.Store, error) {
	file := cfg.TokenFile
	if file == "" && cfg.TokenStore != secrets.BackendMemory {
		dir, err := config.DefaultDir()
		if err != nil {
			return nil, err
		}
		file = filepath.Join(dir, tokenFileName)
	}
	return secrets.Open(secrets.Options{
		Backend: cfg.TokenStore,
		Service: cfg.Service,
		File:    file,
	})
}
