// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
)

// StreamingCursor trails the content of a reply that is still streaming.
const StreamingCursor = "▌"

// RenderMessage renders one turn. Finished assistant replies go through
// markdown; user input and partial replies are shown verbatim so the text
// does not reflow on every token.
func RenderMessage(theme *styles.Theme, md *Markdown, msg *model.Message, width int) string {
	var header string
	if msg.Type == model.TypeUser {
		header = theme.UserLabel.Render(msg.Type.DisplayName())
	} else {
		header = theme.AssistantLabel.Render(msg.Type.DisplayName())
	}
	header += " " + theme.Timestamp.Render(model.MillisToTime(msg.Timestamp).Format("15:04"))

	body := msg.Content
	switch {
	case msg.IsError:
		body = theme.ErrorBody.Width(width).Render(body)
	case msg.IsStreaming:
		body = theme.MessageBody.Width(width).Render(body) + theme.Cursor.Render(StreamingCursor)
	case msg.Type == model.TypeAssistant && md != nil:
		body = md.Render(body, width)
	default:
		body = theme.MessageBody.Width(width).Render(body)
	}

	parts := []string{header, body}
	for _, a := range msg.Attachments {
		parts = append(parts, theme.Attachment.Render("📎 "+a.Name))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// RenderConversation renders every message of conv separated by blank lines.
func RenderConversation(theme *styles.Theme, md *Markdown, conv *model.Conversation, width int) string {
	if conv == nil || len(conv.Messages) == 0 {
		return theme.Muted.Render("No messages yet. Type below and press Enter.")
	}
	blocks := make([]string, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		blocks = append(blocks, RenderMessage(theme, md, msg, width))
	}
	return strings.Join(blocks, "\n\n")
}
