// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package logging installs the process-wide slog logger. Records are
// rendered by charmbracelet/log, which implements slog.Handler.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Options controls how log records are rendered.
type Options struct {
	Level  string
	Format string
	// Prefix is printed before every message, e.g. "server".
	Prefix string
	// Timestamps toggles the time column. The CLI keeps it off.
	Timestamps bool
}

// New builds a slog.Logger backed by a charmbracelet/log handler.
func New(w io.Writer, opts Options) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		Level:           ParseLevel(opts.Level),
		Formatter:       formatter(opts.Format),
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.Timestamps,
	})
	handler.SetStyles(styles())
	return slog.New(handler)
}

// Setup builds a logger with New and installs it as slog's default.
func Setup(w io.Writer, opts Options) *slog.Logger {
	logger := New(w, opts)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config level name to a charmbracelet/log level.
// Unknown names fall back to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func formatter(format string) log.Formatter {
	switch format {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	s.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	s.Values["error"] = lipgloss.NewStyle().Bold(true)
	s.Keys["path"] = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	s.Keys["status"] = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	return s
}
