// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package provider

import (
	"context"
	"sync"
	"time"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
	"github.com/parley-dev/parley/pkg/health"
)

// DefaultHealthCooldown is the duration after which an unhealthy provider
// is reported available again.
const DefaultHealthCooldown = 30 * time.Second

// HealthTracker records provider failures. A provider is healthy until
// RecordFailure is called and becomes available again after the cooldown.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	failureCount int64
	nowFunc      func() time.Time
}

// NewHealthTracker creates a HealthTracker that starts healthy.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, parleyerr.Errorf(parleyerr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// isHealthyLocked requires at least h.mu.RLock.
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.mu.Unlock()
}

func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	h.mu.Unlock()
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// Metrics returns a point-in-time snapshot.
func (h *HealthTracker) Metrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{FailureCount: h.failureCount}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	m.Available = h.isHealthyLocked()
	if !h.healthy {
		until := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &until
	}
	return m
}

// Tracked wraps a Provider and feeds a HealthTracker from the outcome of
// every chat and embedding call.
type Tracked struct {
	Provider
	health *HealthTracker
}

// Track wraps p with a tracker using the given cooldown.
func Track(p Provider, cooldown time.Duration) (*Tracked, error) {
	h, err := NewHealthTracker(cooldown)
	if err != nil {
		return nil, err
	}
	return &Tracked{Provider: p, health: h}, nil
}

// Tracker exposes the underlying tracker.
func (t *Tracked) Tracker() *HealthTracker { return t.health }

// Metrics reports the provider's health snapshot.
func (t *Tracked) Metrics() health.Metrics { return t.health.Metrics() }

func (t *Tracked) Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error) {
	in, err := t.Provider.Chat(ctx, req)
	if err != nil {
		t.health.RecordFailure()
		return nil, err
	}

	out := make(chan ChatEvent, cap(in))
	go func() {
		defer close(out)
		for ev := range in {
			switch ev.Type {
			case EventTypeError:
				t.health.RecordFailure()
			case EventTypeDone:
				t.health.RecordSuccess()
			}
			if !Send(ctx, out, ev) {
				// Drain so the inner producer can exit.
				for range in {
				}
				return
			}
		}
	}()
	return out, nil
}

// Embed passes through to the wrapped provider. Unsupported embeddings do
// not count as failures.
func (t *Tracked) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := Embed(ctx, t.Provider, text)
	switch {
	case err == nil:
		t.health.RecordSuccess()
	case !IsEmbeddingUnsupported(err):
		t.health.RecordFailure()
	}
	return v, err
}
