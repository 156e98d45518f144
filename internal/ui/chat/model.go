// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the interactive chat screen of the TUI.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	chatctl "github.com/jeranaias/chatdesk/internal/chat"
	"github.com/jeranaias/chatdesk/internal/notify"
	"github.com/jeranaias/chatdesk/internal/store"
	"github.com/jeranaias/chatdesk/internal/ui/components"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// mode is the focus of the screen.
type mode int

const (
	modeChat mode = iota
	modeSearch
)

// Options configures the chat screen.
type Options struct {
	Store      *store.Store
	Controller *chatctl.Controller

	// Notifications feeds the toast stack, usually a notify.ChanNotifier.
	Notifications <-chan notify.Notification

	// Theme is "auto", "dark" or "light".
	Theme string

	// Compact hides the conversation sidebar.
	Compact bool

	// ExportDir is where Ctrl+E writes Markdown exports. Default: ".".
	ExportDir string

	// Context bounds replies started from the screen.
	Context context.Context

	// Now is the clock used for toast expiry. Default: time.Now.
	Now func() time.Time
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	store *store.Store
	ctrl  *chatctl.Controller

	events      <-chan store.Event
	unsubscribe func()
	notes       <-chan notify.Notification

	theme  *styles.Theme
	md     *components.Markdown
	keys   KeyMap
	help   help.Model
	toasts components.ToastStack

	input    textinput.Model
	search   textinput.Model
	viewport viewport.Model

	mode      mode
	compact   bool
	exportDir string
	ctx       context.Context
	now       func() time.Time

	width  int
	height int
	ready  bool
}

// New creates the chat screen and subscribes to the store.
func New(opts Options) *Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}

	theme := styles.NewTheme(opts.Theme)

	input := textinput.New()
	input.Placeholder = "Send a message..."
	input.Prompt = theme.InputPrompt.Render("> ")
	input.CharLimit = 0
	input.Focus()

	search := textinput.New()
	search.Placeholder = "Search conversations..."
	search.Prompt = theme.SearchPrompt.Render("/ ")

	m := &Model{
		store:     opts.Store,
		ctrl:      opts.Controller,
		notes:     opts.Notifications,
		theme:     theme,
		md:        components.NewMarkdown(theme.MarkdownStyle()),
		keys:      DefaultKeyMap(),
		help:      help.New(),
		input:     input,
		search:    search,
		viewport:  viewport.New(80, 20),
		compact:   opts.Compact,
		exportDir: opts.ExportDir,
		ctx:       opts.Context,
		now:       opts.Now,
		width:     80,
		height:    24,
	}
	m.help.Styles.ShortKey = theme.ShortcutKey
	m.help.Styles.ShortDesc = theme.ShortcutDesc
	m.help.Styles.ShortSeparator = theme.Muted
	m.events, m.unsubscribe = opts.Store.Subscribe()
	m.layout()
	m.refresh()
	return m
}

// Init starts the background listeners.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForEvent(m.events),
		waitForNotification(m.notes),
		tick(),
	)
}

// Close releases the store subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Run shows the chat screen until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	opts.Context = ctx
	m := New(opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) sidebarWidth() int {
	if m.compact || m.width < 60 {
		return 0
	}
	w := m.width / 4
	if w > 32 {
		w = 32
	}
	return w
}

// layout sizes the viewport: header, input and status bar take one line
// each, plus a divider.
func (m *Model) layout() {
	w := m.width - m.sidebarWidth() - 1
	if w < 10 {
		w = 10
	}
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = m.width - 4
	m.search.Width = m.width - 4
}

// refresh re-renders the current conversation into the viewport, following
// the tail when the view was already at the bottom.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()

	var content string
	if id, ok := m.store.Current(); ok {
		conv, _ := m.store.Conversation(id)
		content = components.RenderConversation(m.theme, m.md, conv, m.viewport.Width-1)
	} else {
		content = m.theme.Muted.Render("No conversation selected. Press Ctrl+N or start typing.")
	}
	m.viewport.SetContent(content)
	if atBottom {
		m.viewport.GotoBottom()
	}
}
