// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package render turns conversations into terminal output. Assistant
// replies are markdown and go through glamour; everything else is plain
// text styled with lipgloss.
package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/parley-dev/parley/internal/chat"
)

// Glamour style names accepted by New. StyleAuto picks dark or light from
// the terminal background.
const (
	StyleAuto  = "auto"
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
	StyleASCII = "ascii"
)

const (
	defaultWidth = 80
	minWidth     = 20
	timeLayout   = "Jan 2 15:04"
)

var (
	userLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	systemLabel    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Renderer renders messages at a given width. The glamour renderer is
// rebuilt lazily when the width changes. Safe for concurrent use.
type Renderer struct {
	style string

	mu      sync.Mutex
	width   int
	tr      *glamour.TermRenderer
	trWidth int
}

// New returns a renderer for style wrapping at width. Unknown styles fall
// back to StyleAuto; a non-positive width means 80 columns.
func New(style string, width int) *Renderer {
	switch style {
	case StyleAuto, StyleDark, StyleLight, StyleNoTTY, StyleASCII:
	default:
		style = StyleAuto
	}
	r := &Renderer{style: style}
	r.SetWidth(width)
	return r
}

// SetWidth changes the wrap width.
func (r *Renderer) SetWidth(width int) {
	if width <= 0 {
		width = defaultWidth
	}
	if width < minWidth {
		width = minWidth
	}
	r.mu.Lock()
	r.width = width
	r.mu.Unlock()
}

func (r *Renderer) Width() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width
}

func (r *Renderer) termRenderer() *glamour.TermRenderer {
	r.mu.Lock()
	defer r.mu.Unlock()

	wrap := r.width - 4
	if r.tr != nil && r.trWidth == wrap {
		return r.tr
	}
	styleOpt := glamour.WithStandardStyle(r.style)
	if r.style == StyleAuto {
		styleOpt = glamour.WithAutoStyle()
	}
	tr, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(wrap))
	if err != nil {
		return nil
	}
	r.tr = tr
	r.trWidth = wrap
	return tr
}

// Markdown renders text, returning it unchanged if glamour fails.
func (r *Renderer) Markdown(text string) string {
	tr := r.termRenderer()
	if tr == nil {
		return text
	}
	out, err := tr.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// Message renders one message with a role header. Messages still in
// flight or that failed are marked as such.
func (r *Renderer) Message(m chat.Message) string {
	header := roleName(m.Role)
	if !m.Timestamp.IsZero() {
		header += " " + dimStyle.Render(m.Timestamp.Local().Format(timeLayout))
	}
	switch m.Status {
	case chat.StatusSending:
		header += " " + dimStyle.Render("(sending)")
	case chat.StatusError:
		header += " " + errorStyle.Render("(failed)")
	}

	body := m.Content
	if m.Role == chat.RoleAssistant {
		body = r.Markdown(m.Content)
	}
	return header + "\n" + body
}

// Transcript renders messages separated by blank lines.
func (r *Renderer) Transcript(msgs []chat.Message) string {
	if len(msgs) == 0 {
		return dimStyle.Render("No messages yet.")
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, r.Message(m))
	}
	return strings.Join(parts, "\n\n")
}

// SearchResults renders hits with their similarity as a percentage.
func (r *Renderer) SearchResults(results []chat.SearchResult) string {
	if len(results) == 0 {
		return dimStyle.Render("No matching messages.")
	}
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s %s",
			dimStyle.Render(fmt.Sprintf("%3.0f%%", res.Similarity*100)),
			roleName(res.Role),
			dimStyle.Render(res.Timestamp.Local().Format(timeLayout)),
		)
		if res.ConversationID != "" {
			b.WriteString(dimStyle.Render(fmt.Sprintf(" in %s (id %s)", res.ConversationTitle, res.ConversationID)))
		}
		b.WriteString("\n")
		b.WriteString(Truncate(res.Content, r.Width()*3))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func roleName(role chat.Role) string {
	switch role {
	case chat.RoleUser:
		return userLabel.Render("You")
	case chat.RoleAssistant:
		return assistantLabel.Render("Assistant")
	default:
		return systemLabel.Render(string(role))
	}
}

// Truncate shortens s to at most n runes, marking the cut with "...".
// Newlines are folded into spaces.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
