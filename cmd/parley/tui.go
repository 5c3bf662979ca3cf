// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parley-dev/parley/internal/app"
	"github.com/parley-dev/parley/internal/chat"
	"github.com/parley-dev/parley/internal/config"
	"github.com/parley-dev/parley/internal/logging"
	"github.com/parley-dev/parley/internal/tui"
)

func newTUICmd(s *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the full-screen chat interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			closeLog := s.redirectLog()
			defer closeLog()

			notes := chat.NewChannelNotifier(16)
			a, err := s.open(cmd.Context(), app.WithNotifier(notes))
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), a, tui.WithNotifications(notes.C()))
		},
	}
}

// redirectLog keeps log lines off the alternate screen. With --verbose they
// go to tui.log in the config directory, otherwise nowhere.
func (s *cliState) redirectLog() (closeFn func()) {
	var w io.Writer = io.Discard
	closeFn = func() {}
	if s.v.GetBool("verbose") {
		if dir, err := config.DefaultDir(); err == nil && os.MkdirAll(dir, 0o700) == nil {
			f, err := os.OpenFile(filepath.Join(dir, "tui.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
			if err == nil {
				w = f
				closeFn = func() { _ = f.Close() }
			}
		}
	}
	logging.Setup(w, logging.Options{Level: s.cfg.Log.Level, Format: s.cfg.Log.Format, Timestamps: true})
	return closeFn
}
