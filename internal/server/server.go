// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package server is the reference Parley backend: a REST API over the
// conversation store and an LLM provider.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    RateLimitConfig
	Services     *Services
}

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	services *Services

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Server with chi router, huma API, middleware and all routes.
func New(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, parleyerr.New(parleyerr.CodeServerConfigInvalid, "listen address is required")
	}
	if cfg.Services == nil {
		return nil, parleyerr.New(parleyerr.CodeServerConfigInvalid, "services are required")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Replies wait on the LLM.
		cfg.WriteTimeout = 120 * time.Second
	}

	srv := &Server{
		cfg:      cfg,
		services: cfg.Services,
		done:     make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimit, srv.done))
	r.Use(authMiddleware(cfg.Services.tokens))

	version := cfg.Services.settings.Version
	if version == "" {
		version = "dev"
	}
	humaConfig := huma.DefaultConfig("Parley API", version)
	humaConfig.Info.Description = "Conversations with an LLM assistant"
	// No $schema links: response bodies are marshalled as declared, so
	// chatReply keeps its own JSON shape.
	humaConfig.CreateHooks = nil
	api := humachi.New(r, humaConfig)

	srv.router = r
	srv.api = api
	srv.registerRoutes()

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API for registering additional operations.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background goroutines. It is safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return parleyerr.Wrap(err, parleyerr.CodeServerStartFailure, "serving")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return parleyerr.Wrap(err, parleyerr.CodeServerShutdownFailure, "shutting down")
	}
	slog.Info("server stopped")

	return <-errCh
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
