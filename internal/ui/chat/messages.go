// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	chatctl "github.com/jeranaias/chatdesk/internal/chat"
	"github.com/jeranaias/chatdesk/internal/notify"
	"github.com/jeranaias/chatdesk/internal/store"
)

// storeEventMsg carries a change from the store subscription.
type storeEventMsg struct {
	Event store.Event
}

// storeClosedMsg signals that the store closed its subscription.
type storeClosedMsg struct{}

// notificationMsg carries a notification for the toast stack.
type notificationMsg struct {
	Notification notify.Notification
}

// replyDoneMsg reports the end of a send or regenerate.
type replyDoneMsg struct {
	Reply chatctl.Reply
	Err   error
}

// exportDoneMsg reports a written export.
type exportDoneMsg struct {
	Path string
	Err  error
}

// tickMsg drives toast expiry.
type tickMsg time.Time

const tickInterval = 250 * time.Millisecond

func waitForEvent(events <-chan store.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return storeClosedMsg{}
		}
		return storeEventMsg{Event: ev}
	}
}

func waitForNotification(notes <-chan notify.Notification) tea.Cmd {
	if notes == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-notes
		if !ok {
			return nil
		}
		return notificationMsg{Notification: n}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}
