// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/chatdesk/internal/model"
)

// =============================================================================
// TEXT EXPORTER
// =============================================================================

// TextExporter exports conversations as plain text: the title underlined
// with '=', a blank line, then "Role: content" pairs separated by blank lines.
type TextExporter struct{}

// NewTextExporter creates a new plain text exporter.
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// Export converts a conversation to plain text.
func (e *TextExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}

	title := conv.DisplayTitle()

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", utf8.RuneCountInString(title)))
	sb.WriteString("\n\n")

	for i, msg := range conv.Messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", msg.Type.DisplayName(), msg.Content))
	}

	return []byte(sb.String()), nil
}

// Format returns FormatText.
func (e *TextExporter) Format() Format {
	return FormatText
}

// MimeType returns the MIME type of the artifact.
func (e *TextExporter) MimeType() string {
	return "text/plain"
}
