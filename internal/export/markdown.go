// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/chatdesk/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format: a "# title"
// heading followed by one "## User" or "## Claude" section per message
// holding the raw content.
type MarkdownExporter struct{}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter() *MarkdownExporter {
	return &MarkdownExporter{}
}

// Export converts a conversation to Markdown format.
func (e *MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", conv.DisplayTitle()))

	for _, msg := range conv.Messages {
		sb.WriteString(fmt.Sprintf("## %s\n", msg.Type.DisplayName()))
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}

	return []byte(sb.String()), nil
}

// Format returns FormatMarkdown.
func (e *MarkdownExporter) Format() Format {
	return FormatMarkdown
}

// MimeType returns the MIME type of the artifact.
func (e *MarkdownExporter) MimeType() string {
	return "text/plain"
}
