// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	chatctl "github.com/jeranaias/chatdesk/internal/chat"
	"github.com/jeranaias/chatdesk/internal/export"
	"github.com/jeranaias/chatdesk/internal/notify"
)

// Update handles a bubbletea message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case storeEventMsg:
		m.refresh()
		return m, waitForEvent(m.events)

	case storeClosedMsg:
		m.events = nil
		return m, nil

	case notificationMsg:
		m.toasts.Push(msg.Notification, m.now())
		return m, waitForNotification(m.notes)

	case replyDoneMsg:
		m.handleReplyDone(msg)
		return m, nil

	case exportDoneMsg:
		if msg.Err != nil {
			m.toast(notify.TypeError, "Export Failed", msg.Err.Error())
		}
		return m, nil

	case tickMsg:
		m.toasts.Prune(time.Time(msg))
		return m, tick()
	}

	return m, m.updateFocused(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.ctrl.StopGeneration()
		return m, tea.Quit
	}
	if m.mode == modeSearch {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		return m, m.submit()

	case key.Matches(msg, m.keys.Stop):
		if m.ctrl.IsStreaming() {
			m.ctrl.StopGeneration()
		} else {
			m.toasts.Dismiss()
		}
		return m, nil

	case key.Matches(msg, m.keys.New):
		m.store.CreateConversation("")
		return m, nil

	case key.Matches(msg, m.keys.Regenerate):
		return m, m.regenerateLast()

	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		m.search.SetValue(m.store.Query())
		m.search.CursorEnd()
		m.input.Blur()
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.Next):
		m.cycle(1)
		return m, nil

	case key.Matches(msg, m.keys.Prev):
		m.cycle(-1)
		return m, nil

	case key.Matches(msg, m.keys.Export):
		return m, m.exportCurrent()

	case key.Matches(msg, m.keys.Delete):
		if id, ok := m.store.Current(); ok && !m.ctrl.IsStreaming() {
			m.store.DeleteConversation(id)
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, m.updateFocused(msg)
}

// handleSearchKey edits the query live. Enter keeps the filter and returns
// to the input; Esc clears it.
func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		m.leaveSearch()
		return m, nil
	case key.Matches(msg, m.keys.Stop):
		m.search.SetValue("")
		m.store.SearchMessages("")
		m.leaveSearch()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.store.SearchMessages(strings.TrimSpace(m.search.Value()))
	return m, cmd
}

func (m *Model) leaveSearch() {
	m.mode = modeChat
	m.search.Blur()
	m.input.Focus()
}

func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if m.mode == modeSearch {
		m.search, cmd = m.search.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return cmd
}

// =============================================================================
// ACTIONS
// =============================================================================

// submit sends the input. The reply streams in a tea.Cmd goroutine; the
// screen follows it through store events.
func (m *Model) submit() tea.Cmd {
	content := m.input.Value()
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if m.ctrl.IsStreaming() {
		m.toast(notify.TypeWarning, "Please Wait", "A reply is still streaming. Press Esc to stop it.")
		return nil
	}
	m.input.Reset()
	m.viewport.GotoBottom()

	ctx := m.ctx
	return func() tea.Msg {
		reply, err := m.ctrl.SendMessage(ctx, content, nil)
		return replyDoneMsg{Reply: reply, Err: err}
	}
}

func (m *Model) regenerateLast() tea.Cmd {
	if m.ctrl.IsStreaming() {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		reply, err := m.ctrl.RegenerateLast(ctx)
		return replyDoneMsg{Reply: reply, Err: err}
	}
}

func (m *Model) handleReplyDone(msg replyDoneMsg) {
	switch {
	case errors.Is(msg.Err, chatctl.ErrBusy):
		m.toast(notify.TypeWarning, "Please Wait", "A reply is still streaming.")
	case errors.Is(msg.Err, chatctl.ErrInvalidTarget):
		m.toast(notify.TypeInfo, "Nothing to Regenerate", "The conversation has no reply to regenerate.")
	case msg.Err != nil:
		m.toast(notify.TypeError, "Error", msg.Err.Error())
	}
	m.refresh()
}

// cycle moves the selection through the visible conversations.
func (m *Model) cycle(step int) {
	convs := m.store.Filtered()
	if len(convs) == 0 {
		return
	}
	current, _ := m.store.Current()
	idx := -1
	for i, c := range convs {
		if c.ID == current {
			idx = i
			break
		}
	}
	next := (idx + step + len(convs)) % len(convs)
	if idx < 0 && step < 0 {
		next = len(convs) - 1
	}
	m.store.SelectConversation(convs[next].ID)
}

// exportCurrent writes the current conversation as Markdown. The store
// announces success; write failures come back as exportDoneMsg.
func (m *Model) exportCurrent() tea.Cmd {
	id, ok := m.store.Current()
	if !ok {
		m.toast(notify.TypeInfo, "Nothing to Export", "Select a conversation first.")
		return nil
	}
	artifact, ok := m.store.ExportConversation(id, export.FormatMarkdown)
	if !ok {
		return nil
	}
	dir := m.exportDir
	return func() tea.Msg {
		path, err := export.WriteArtifact(dir, artifact)
		return exportDoneMsg{Path: path, Err: err}
	}
}

func (m *Model) toast(typ notify.Type, title, message string) {
	m.toasts.Push(notify.Notification{Type: typ, Title: title, Message: message}, m.now())
}
