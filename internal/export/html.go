// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/jeranaias/chatdesk/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page. Message
// content is rendered as Markdown; raw HTML in messages is dropped.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Theme != "light" {
		opts.Theme = "dark"
	}
	return &HTMLExporter{
		options: opts,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// Export converts a conversation to HTML format.
func (e *HTMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}

	title := html.EscapeString(conv.DisplayTitle())

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", title))
	sb.WriteString("    <meta name=\"generator\" content=\"chatdesk\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", e.options.Theme))
	sb.WriteString("    <div class=\"container\">\n")
	sb.WriteString(fmt.Sprintf("        <header class=\"header\"><h1>%s</h1></header>\n", title))
	sb.WriteString("        <main class=\"conversation\">\n")

	for _, msg := range conv.Messages {
		body, err := e.renderMessage(msg)
		if err != nil {
			return nil, err
		}
		sb.WriteString(body)
	}

	sb.WriteString("        </main>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// Format returns FormatHTML.
func (e *HTMLExporter) Format() Format {
	return FormatHTML
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// renderMessage renders a single message.
func (e *HTMLExporter) renderMessage(msg *model.Message) (string, error) {
	var content bytes.Buffer
	if err := e.md.Convert([]byte(msg.Content), &content); err != nil {
		return "", fmt.Errorf("render message %s: %w", msg.ID, err)
	}

	class := string(msg.Type)
	if msg.IsError {
		class += " error"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("            <div class=\"message %s-message\">\n", html.EscapeString(class)))
	sb.WriteString(fmt.Sprintf("                <div class=\"role-label\">%s</div>\n", html.EscapeString(msg.Type.DisplayName())))
	sb.WriteString("                <div class=\"message-content\">\n")
	sb.Write(content.Bytes())
	sb.WriteString("                </div>\n")
	sb.WriteString("            </div>\n")
	return sb.String(), nil
}

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        .dark-theme {
            --bg-primary: #1a1b26; --bg-secondary: #24283b; --text-primary: #c0caf5;
            --text-muted: #565f89; --border-color: #414868; --code-bg: #16161e;
            --accent-user: #7aa2f7; --accent-assistant: #bb9af7; --accent-error: #f7768e;
        }
        .light-theme {
            --bg-primary: #ffffff; --bg-secondary: #f7f8fa; --text-primary: #24292e;
            --text-muted: #6a737d; --border-color: #e1e4e8; --code-bg: #f6f8fa;
            --accent-user: #0366d6; --accent-assistant: #6f42c1; --accent-error: #d73a49;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            line-height: 1.6; color: var(--text-primary); background: var(--bg-primary); padding: 20px;
        }
        .container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; }
        .header { padding: 24px 32px; border-bottom: 1px solid var(--border-color); }
        .conversation { padding: 16px 32px; }
        .message { padding: 16px 0; border-bottom: 1px solid var(--border-color); }
        .role-label { font-weight: 600; margin-bottom: 8px; }
        .user-message .role-label { color: var(--accent-user); }
        .assistant-message .role-label { color: var(--accent-assistant); }
        .error .message-content { color: var(--accent-error); }
        pre { background: var(--code-bg); padding: 12px; border-radius: 6px; overflow-x: auto; }
        code { font-family: "SF Mono", Monaco, "Fira Code", monospace; }
    </style>
`
