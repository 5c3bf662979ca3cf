// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit       key.Binding
	SwitchPane key.Binding
	Back       key.Binding
	Up         key.Binding
	Down       key.Binding
	Open       key.Binding
	New        key.Binding
	Delete     key.Binding
	Archive    key.Binding
	Summarize  key.Binding
	Search     key.Binding
	Find       key.Binding
	Create     key.Binding
	Refresh    key.Binding
	Submit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		SwitchPane: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
		Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		New:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Delete:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Archive:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "archive")),
		Summarize:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "summarize")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Find:       key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("ctrl+f", "search")),
		Create:     key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new")),
		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	}
}

func (k keyMap) listHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.New, k.Delete, k.Archive, k.Summarize, k.Search, k.SwitchPane, k.Quit}
}

func (k keyMap) inputHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Find, k.Create, k.SwitchPane, k.Back, k.Quit}
}
