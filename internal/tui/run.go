// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/parley-dev/parley/internal/app"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Run starts the full-screen UI and blocks until the user quits or ctx is
// cancelled. The session must already be authenticated.
func Run(ctx context.Context, a *app.App, opts ...Option) error {
	if !a.Session.Authenticated() {
		return parleyerr.New(parleyerr.CodeIdentityNotAuthenticated, "not logged in",
			parleyerr.FieldReason("Log in with `parley login` first."))
	}
	p := tea.NewProgram(New(a, opts...),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return parleyerr.Wrap(err, parleyerr.CodeCLISetupFailure, "running terminal ui")
	}
	return nil
}
