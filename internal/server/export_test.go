// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server

import "time"

// IPLimiter exposes the per-IP limiter for direct unit testing.
type IPLimiter = ipLimiter

func NewIPLimiterForTest(cfg RateLimitConfig, now func() time.Time) *IPLimiter {
	l := newIPLimiter(cfg)
	l.now = now
	return l
}

func (l *ipLimiter) Allow(ip string) bool { return l.allow(ip) }

func (l *ipLimiter) RunCleanupNow() { l.cleanup() }

func (l *ipLimiter) Visitors() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// ParseConversationRef exposes conversationRef decoding.
func ParseConversationRef(data []byte) (id int64, ok bool, err error) {
	var r conversationRef
	if err := r.UnmarshalJSON(data); err != nil {
		return 0, false, err
	}
	return r.id()
}

// Upstream and APIError expose provider failure reporting.
func Upstream(err error, reason string) error { return upstream(err, reason) }

func APIError(err error, fallback string) error { return apiError(err, fallback) }

// ParseSuggestions exposes suggestion parsing.
func ParseSuggestions(text string) []string { return parseSuggestions(text) }
