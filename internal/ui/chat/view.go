// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatdesk/internal/ui/components"
	"github.com/jeranaias/chatdesk/internal/util"
)

// View renders the screen.
func (m *Model) View() string {
	body := m.viewport.View()
	if w := m.sidebarWidth(); w > 0 {
		current, _ := m.store.Current()
		sidebar := components.RenderSidebar(m.theme, components.SidebarProps{
			Conversations: m.store.Filtered(),
			CurrentID:     current,
			Query:         m.store.Query(),
			Width:         w,
			Height:        m.viewport.Height,
		})
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", body)
	}

	sections := []string{m.headerView(), body}
	if toasts := m.toasts.View(m.theme, m.width); toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections,
		m.theme.Divider.Render(strings.Repeat("─", max(m.width, 1))),
		m.inputView(),
		m.statusView(),
	)
	return m.theme.App.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) headerView() string {
	title := "chatdesk"
	if id, ok := m.store.Current(); ok {
		if conv, ok := m.store.Conversation(id); ok {
			title = conv.DisplayTitle()
		}
	}
	header := m.theme.Header.Render(util.TruncateWidth(title, max(m.width-16, 10)))
	if m.ctrl.IsStreaming() {
		header += " " + m.theme.Streaming.Render("● streaming")
	}
	return header
}

func (m *Model) inputView() string {
	if m.mode == modeSearch {
		return m.search.View()
	}
	return m.input.View()
}

func (m *Model) statusView() string {
	count := fmt.Sprintf("%d conversations", m.store.Len())
	if q := m.store.Query(); q != "" {
		count = fmt.Sprintf("%d of %d match", len(m.store.Filtered()), m.store.Len())
	}

	m.help.Width = max(m.width-len(count)-2, 0)
	line := m.help.ShortHelpView(m.keys.ShortHelp())
	gap := max(m.width-lipgloss.Width(line)-len(count), 1)
	return m.theme.StatusBar.Render(line + strings.Repeat(" ", gap) + count)
}
