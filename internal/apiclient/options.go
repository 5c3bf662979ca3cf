// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package apiclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout bounds every request unless WithTimeout says otherwise.
const DefaultTimeout = 10 * time.Second

// TokenSource supplies the current access token. An empty string means no
// Authorization header is sent.
type TokenSource interface {
	AccessToken() string
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() string

func (f TokenSourceFunc) AccessToken() string { return f() }

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) AccessToken() string { return string(t) }

// Refresher obtains a new access token after the server rejects the current one.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request deadline. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRefresher enables a single refresh-and-replay when a non-auth request
// is answered with 401.
func WithRefresher(r Refresher) Option {
	return func(c *Client) { c.refresher = r }
}

// WithRateLimit paces outgoing requests to rps per second with the given
// burst. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
