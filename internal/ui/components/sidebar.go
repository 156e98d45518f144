// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
	"github.com/jeranaias/chatdesk/internal/util"
)

// SidebarProps is everything RenderSidebar needs.
type SidebarProps struct {
	Conversations []*model.Conversation
	CurrentID     string
	Query         string
	Width         int
	Height        int
}

// RenderSidebar renders the conversation list, most recent first. Titles
// are cut to the sidebar width by display width, not bytes.
func RenderSidebar(theme *styles.Theme, p SidebarProps) string {
	inner := p.Width - 2
	if inner < 4 {
		inner = 4
	}

	title := "Conversations"
	if p.Query != "" {
		title = "Search: " + p.Query
	}
	lines := []string{theme.SidebarTitle.Render(util.TruncateWidth(title, inner)), ""}

	if len(p.Conversations) == 0 {
		empty := "No conversations"
		if p.Query != "" {
			empty = "No matches"
		}
		lines = append(lines, theme.SidebarEmpty.Render(empty))
	}

	for _, conv := range p.Conversations {
		label := util.PadWidth(util.TruncateWidth(util.SingleLine(conv.DisplayTitle()), inner), inner)
		if conv.ID == p.CurrentID {
			lines = append(lines, theme.SidebarSelected.Render(label))
		} else {
			lines = append(lines, theme.SidebarItem.Render(label))
		}
	}

	if p.Height > 0 && len(lines) > p.Height {
		lines = lines[:p.Height]
	}
	style := theme.Sidebar.Width(inner)
	if p.Height > 0 {
		style = style.Height(p.Height)
	}
	return style.Render(strings.Join(lines, "\n"))
}
