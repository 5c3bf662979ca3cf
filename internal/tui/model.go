// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package tui is the interactive terminal front-end: a conversation list,
// the active transcript, a message input and a search mode, all driven by
// the app container.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/parley-dev/parley/internal/app"
	"github.com/parley-dev/parley/internal/chat"
	"github.com/parley-dev/parley/internal/render"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

const (
	opTimeout      = 2 * time.Minute
	listWidth      = 30
	chromeHeight   = 5
	chatPrompt     = "> "
	searchPrompt   = "/ "
	genericFailure = "Something went wrong."
)

type focusArea int

const (
	focusList focusArea = iota
	focusInput
)

type mode int

const (
	modeChat mode = iota
	modeSearch
)

// changedMsg signals that the store or the search results changed. The
// model re-reads their snapshots.
type changedMsg struct{}

type noteMsg chat.Notification

// opDoneMsg reports the end of a background operation.
type opDoneMsg struct {
	status string
	err    error
}

// Model is the bubbletea model.
type Model struct {
	app      *app.App
	renderer *render.Renderer
	keys     keyMap
	help     help.Model

	changes chan struct{}
	notes   <-chan chat.Notification

	width, height int
	focus         focusArea
	mode          mode
	cursor        int

	conversations []chat.Conversation
	active        *chat.Conversation
	results       []chat.SearchResult
	sending       bool
	busy          bool

	status    string
	statusErr bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
}

// Option configures a Model.
type Option func(*Model)

// WithNotifications shows notifications from ch in the status line. Pass
// the channel of the chat.ChannelNotifier the app was built with.
func WithNotifications(ch <-chan chat.Notification) Option {
	return func(m *Model) { m.notes = ch }
}

func WithRenderer(r *render.Renderer) Option {
	return func(m *Model) { m.renderer = r }
}

// New builds the model and subscribes it to a's store and search.
func New(a *app.App, opts ...Option) Model {
	in := textinput.New()
	in.Prompt = chatPrompt
	in.Placeholder = "Type a message"
	in.CharLimit = 8192

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		app:      a,
		keys:     defaultKeys(),
		help:     help.New(),
		changes:  make(chan struct{}, 1),
		input:    in,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.renderer == nil {
		m.renderer = render.New(render.StyleAuto, 80)
	}

	// One pending signal covers any number of changes.
	signal := func() {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	}
	a.Store.Subscribe(func(chat.Event) { signal() })
	a.Search.OnChange(func([]chat.SearchResult) { signal() })
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		waitForChange(m.changes),
		m.run("", func(ctx context.Context) error {
			_, err := m.app.Store.ListConversations(ctx)
			return err
		}),
	}
	if m.notes != nil {
		cmds = append(cmds, waitForNote(m.notes))
	}
	return tea.Batch(cmds...)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func waitForNote(ch <-chan chat.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noteMsg(n)
	}
}

// run executes fn off the update loop and reports its outcome.
func (m Model) run(status string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opDoneMsg{status: status, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case changedMsg:
		m.sync()
		return m, waitForChange(m.changes)

	case noteMsg:
		m.setStatus(msg.Message, msg.Level == chat.LevelError)
		return m, waitForNote(m.notes)

	case opDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setStatus(parleyerr.Reason(msg.err, genericFailure), true)
		} else if msg.status != "" {
			m.setStatus(msg.status, false)
		}
		m.sync()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m.updateInput(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.app.Search.SetQuery("")
		return m, tea.Quit
	case key.Matches(msg, m.keys.SwitchPane):
		return m.setFocus(1 - m.focus)
	case key.Matches(msg, m.keys.Find):
		return m.enterSearch()
	case key.Matches(msg, m.keys.Create):
		return m.createConversation()
	case key.Matches(msg, m.keys.Back):
		if m.mode == modeSearch {
			return m.leaveSearch()
		}
		return m.setFocus(focusList)
	}

	if m.focus == focusInput {
		if key.Matches(msg, m.keys.Submit) {
			return m.submit()
		}
		return m.updateInput(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.conversations)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		return m.openSelected()
	case key.Matches(msg, m.keys.New):
		return m.createConversation()
	case key.Matches(msg, m.keys.Search):
		return m.enterSearch()
	case key.Matches(msg, m.keys.Refresh):
		m.app.Store.Invalidate()
		return m, m.run("Conversations refreshed.", func(ctx context.Context) error {
			_, err := m.app.Store.ListConversations(ctx)
			return err
		})
	case key.Matches(msg, m.keys.Delete):
		conv, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.run("Conversation deleted.", func(ctx context.Context) error {
			return m.app.Store.DeleteConversation(ctx, conv.ID)
		})
	case key.Matches(msg, m.keys.Archive):
		conv, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.run("Conversation archived.", func(ctx context.Context) error {
			return m.app.Store.ArchiveConversation(ctx, conv.ID)
		})
	case key.Matches(msg, m.keys.Summarize):
		conv, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.busy = true
		return m, m.run("Summary updated.", func(ctx context.Context) error {
			_, err := m.app.Store.Summarize(ctx, conv.ID)
			return err
		})
	}

	// Paging keys scroll the transcript.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) selected() (chat.Conversation, bool) {
	if m.cursor < 0 || m.cursor >= len(m.conversations) {
		return chat.Conversation{}, false
	}
	return m.conversations[m.cursor], true
}

func (m Model) openSelected() (tea.Model, tea.Cmd) {
	conv, ok := m.selected()
	if !ok {
		return m, nil
	}
	next, cmd := m.setFocus(focusInput)
	load := m.run("", func(ctx context.Context) error {
		return m.app.Store.SetActiveConversation(ctx, &conv)
	})
	return next, tea.Batch(cmd, load)
}

func (m Model) createConversation() (tea.Model, tea.Cmd) {
	return m, m.run("Conversation created.", func(ctx context.Context) error {
		conv, err := m.app.Store.CreateConversation(ctx)
		if err != nil {
			return err
		}
		return m.app.Store.SetActiveConversation(ctx, conv)
	})
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if m.mode == modeSearch {
		if m.app.Store.ActiveID() == "" {
			m.setStatus("Open a conversation to search it.", true)
			return m, nil
		}
		return m, m.run("", func(ctx context.Context) error {
			_, err := m.app.Search.Run(ctx, text)
			return err
		})
	}

	if m.app.Store.ActiveID() == "" {
		m.setStatus("Select a conversation or press ctrl+n to start one.", true)
		return m, nil
	}
	m.input.Reset()
	return m, m.run("", func(ctx context.Context) error {
		_, err := m.app.Store.SendMessage(ctx, text)
		return err
	})
}

func (m Model) enterSearch() (tea.Model, tea.Cmd) {
	m.mode = modeSearch
	m.input.Reset()
	m.input.Prompt = searchPrompt
	m.input.Placeholder = "Search this conversation"
	m.refreshContent()
	return m.setFocus(focusInput)
}

func (m Model) leaveSearch() (tea.Model, tea.Cmd) {
	m.mode = modeChat
	m.app.Search.SetQuery("")
	m.results = nil
	m.input.Reset()
	m.input.Prompt = chatPrompt
	m.input.Placeholder = "Type a message"
	m.refreshContent()
	return m, nil
}

func (m Model) setFocus(f focusArea) (tea.Model, tea.Cmd) {
	m.focus = f
	if f == focusInput {
		return m, m.input.Focus()
	}
	m.input.Blur()
	return m, nil
}

// updateInput forwards msg to the text input. In search mode every edit
// feeds the debounced search.
func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	before := m.input.Value()

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	if m.mode == modeSearch && m.input.Value() != before {
		m.app.Search.SetQuery(m.input.Value())
	}
	return m, cmd
}

// sync copies the store and search snapshots into the model.
func (m *Model) sync() {
	m.conversations = m.app.Store.Conversations()
	m.active = m.app.Store.Active()
	m.sending = m.app.Store.Sending()
	m.results = m.app.Search.Results()

	if m.cursor >= len(m.conversations) {
		m.cursor = len(m.conversations) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.refreshContent()
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.help.Width = width

	right := width - listWidth - 2
	if right < 20 {
		right = 20
	}
	body := height - chromeHeight
	if body < 3 {
		body = 3
	}
	m.viewport.Width = right
	m.viewport.Height = body
	m.input.Width = width - len(chatPrompt) - 2
	m.renderer.SetWidth(right)
	m.refreshContent()
}

func (m *Model) refreshContent() {
	if m.mode == modeSearch {
		header := dimStyle.Render("Searching: " + m.app.Search.Query())
		m.viewport.SetContent(header + "\n\n" + m.renderer.SearchResults(m.results))
		m.viewport.GotoTop()
		return
	}
	if m.active == nil {
		m.viewport.SetContent(dimStyle.Render("Pick a conversation on the left, or press ctrl+n to start one."))
		return
	}
	content := m.renderer.Transcript(m.active.Messages)
	if m.active.Summary != "" {
		content = dimStyle.Render("Summary: "+m.active.Summary) + "\n\n" + content
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

// Styles shared by the views.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	paneStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62"))
)
