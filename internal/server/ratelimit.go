// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

const (
	visitorStaleAfter   = 10 * time.Minute
	visitorCleanupEvery = 5 * time.Minute
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP.
	Burst int
	// MaxVisitors caps the number of IPs tracked at once; the least recently
	// seen are evicted first. Default: 10000.
	MaxVisitors int
}

// Validate checks that the RateLimitConfig is valid and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return parleyerr.Errorf(parleyerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return parleyerr.Errorf(parleyerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return parleyerr.Errorf(parleyerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter holds one token bucket per client IP.
type ipLimiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

func newIPLimiter(cfg RateLimitConfig) *ipLimiter {
	return &ipLimiter{
		cfg:      cfg,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = l.now()
	return v.limiter.AllowN(v.lastSeen, 1)
}

// cleanup drops stale visitors and enforces MaxVisitors.
func (l *ipLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	type entry struct {
		ip       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(l.visitors))
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorStaleAfter {
			delete(l.visitors, ip)
			continue
		}
		entries = append(entries, entry{ip: ip, lastSeen: v.lastSeen})
	}

	if l.cfg.MaxVisitors > 0 && len(entries) > l.cfg.MaxVisitors {
		slices.SortFunc(entries, func(a, b entry) int { return a.lastSeen.Compare(b.lastSeen) })
		toEvict := len(entries) - l.cfg.MaxVisitors
		for i := range toEvict {
			delete(l.visitors, entries[i].ip)
		}
		slog.Warn("rate limiter visitor map cap enforced",
			"evicted", toEvict, "max_visitors", l.cfg.MaxVisitors, "remaining", len(l.visitors))
	}
}

func (l *ipLimiter) cleanupLoop(done <-chan struct{}) {
	ticker := time.NewTicker(visitorCleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-done:
			return
		}
	}
}

// rateLimitMiddleware returns middleware that enforces per-IP rate limits.
// Returns a pass-through middleware when cfg.RequestsPerSecond is zero.
// The done channel signals the cleanup goroutine to exit on shutdown.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	l := newIPLimiter(cfg)
	go l.cleanupLoop(done)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Limit by IP, not by connection.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !l.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := w.Write([]byte(`{"detail":"Request was throttled."}`)); err != nil {
					slog.Warn("failed to write rate limit response", "error", err)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
