// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package apiclient is the JSON HTTP client every backend call goes through.
// It attaches the bearer token, enforces a per-request timeout and maps
// failures onto a small set of kinds (see KindOf).
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// Client talks JSON to the chat backend.
type Client struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	tokens    TokenSource
	refresher Refresher
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, parleyerr.New(parleyerr.CodeClientSetupFailure, "invalid backend base URL",
			parleyerr.Field("base_url", baseURL))
	}

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		timeout:   DefaultTimeout,
		userAgent: "parley",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// SetRefresher installs r after construction. The identity manager needs
// the client to exist before it can act as its refresher.
func (c *Client) SetRefresher(r Refresher) { c.refresher = r }

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do sends one request. body is JSON-encoded when non-nil; a 2xx response
// body is decoded into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	err := c.send(ctx, method, path, body, out)
	if err == nil || c.refresher == nil || isAuthPath(path) || StatusCode(err) != http.StatusUnauthorized {
		return err
	}

	c.logger.Debug("access token rejected, refreshing", "method", method, "path", path)
	if rerr := c.refresher.Refresh(ctx); rerr != nil {
		c.logger.Debug("token refresh failed", "error", rerr)
		return err
	}
	return c.send(ctx, method, path, body, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	fields := []parleyerr.Attr{parleyerr.Field("method", method), parleyerr.FieldPath(path)}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return parleyerr.Wrap(err, parleyerr.CodeClientRateLimitCanceled, "waiting for request slot", fields...)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return parleyerr.Wrap(err, parleyerr.CodeClientSetupFailure, "encoding request body", fields...)
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return parleyerr.Wrap(err, parleyerr.CodeClientSetupFailure, "building request", fields...)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.tokens != nil && !isAuthPath(path) {
		if tok := c.tokens.AccessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err, "duration", time.Since(start))
		return parleyerr.Wrap(err, parleyerr.CodeClientNoResponse, "no response from backend", fields...)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.logger.Debug("request complete",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	if err != nil {
		return parleyerr.Wrap(err, parleyerr.CodeClientNoResponse, "reading response body", fields...)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: data}
		return parleyerr.Wrap(se, parleyerr.CodeClientStatusFailure, "backend rejected request",
			append(fields, parleyerr.FieldStatus(resp.StatusCode))...)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return parleyerr.Wrap(err, parleyerr.CodeClientDecodeFailure, "decoding response body",
			append(fields, parleyerr.FieldStatus(resp.StatusCode))...)
	}
	return nil
}

// isAuthPath reports endpoints that issue tokens; they never carry one.
func isAuthPath(path string) bool {
	return strings.Contains(path, "/auth/token") || strings.Contains(path, "/login")
}
