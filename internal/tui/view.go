// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/parley-dev/parley/internal/render"
)

func (m Model) View() string {
	header := titleStyle.Render("Parley")
	if u := m.app.Session.User(); u != nil {
		header += dimStyle.Render(" · " + u.Username)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		paneStyle.Width(listWidth).Height(m.viewport.Height).Render(m.listView()),
		paneStyle.Width(m.viewport.Width).Height(m.viewport.Height).Render(m.viewport.View()),
	)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.focus == focusList {
		b.WriteString(m.help.ShortHelpView(m.keys.listHelp()))
	} else {
		b.WriteString(m.help.ShortHelpView(m.keys.inputHelp()))
	}
	return b.String()
}

func (m Model) listView() string {
	if len(m.conversations) == 0 {
		return dimStyle.Render("No conversations.\nPress n to start one.")
	}
	activeID := m.app.Store.ActiveID()
	lines := make([]string, 0, len(m.conversations))
	for i, c := range m.conversations {
		title := render.Truncate(c.Title, listWidth-4)
		marker := "  "
		if i == m.cursor && m.focus == focusList {
			marker = cursorStyle.Render("> ")
		}
		switch {
		case c.ID == activeID:
			title = activeStyle.Render(title)
		case i == m.cursor:
			title = cursorStyle.Render(title)
		}
		line := marker + title
		if c.MessageCount > 0 {
			line += dimStyle.Render(fmt.Sprintf(" (%d)", c.MessageCount))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) statusLine() string {
	switch {
	case m.sending:
		return m.spinner.View() + " Waiting for a reply..."
	case m.busy:
		return m.spinner.View() + " Working..."
	case m.status == "":
		return ""
	case m.statusErr:
		return errorStyle.Render(m.status)
	default:
		return successStyle.Render(m.status)
	}
}
