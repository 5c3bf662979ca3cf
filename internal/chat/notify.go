// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package chat

import "log/slog"

type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// Notification is a user-facing message raised by a store operation.
type Notification struct {
	Level   Level
	Message string
	Err     error
}

// Notifier receives notifications. Notify is called synchronously from
// store operations and must not block.
type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// ChannelNotifier forwards notifications to a buffered channel and drops
// them when the buffer is full.
type ChannelNotifier struct {
	ch chan Notification
}

func NewChannelNotifier(size int) *ChannelNotifier {
	if size < 1 {
		size = 1
	}
	return &ChannelNotifier{ch: make(chan Notification, size)}
}

func (c *ChannelNotifier) Notify(n Notification) {
	select {
	case c.ch <- n:
	default:
		slog.Debug("dropping notification", "message", n.Message)
	}
}

// C returns the receive side of the channel.
func (c *ChannelNotifier) C() <-chan Notification { return c.ch }

// LogNotifier writes notifications to a slog logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if n.Level == LevelError {
		logger.Warn(n.Message, "error", n.Err)
		return
	}
	logger.Info(n.Message)
}

type discardNotifier struct{}

func (discardNotifier) Notify(Notification) {}
