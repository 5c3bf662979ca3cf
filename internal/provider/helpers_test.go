// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package provider_test

import (
	"context"

	"github.com/parley-dev/parley/internal/provider"
)

// scripted replays a fixed event sequence.
type scripted struct {
	events   []provider.ChatEvent
	startErr error
	last     provider.ChatRequest
}

func (s *scripted) Name() string { return "scripted" }
func (s *scripted) Close() error { return nil }

func (s *scripted) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.last = req
	ch := make(chan provider.ChatEvent)
	go func() {
		defer close(ch)
		for _, ev := range s.events {
			if !provider.Send(ctx, ch, ev) {
				return
			}
		}
	}()
	return ch, nil
}

type embedding struct {
	scripted
	vec []float32
	err error
}

func (e *embedding) Embed(context.Context, string) ([]float32, error) {
	return e.vec, e.err
}

func textEvents(parts ...string) []provider.ChatEvent {
	var evs []provider.ChatEvent
	for _, p := range parts {
		evs = append(evs, provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: p})
	}
	return append(evs, provider.ChatEvent{Type: provider.EventTypeDone})
}
