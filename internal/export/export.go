// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders conversations as downloadable artifacts.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/util"
)

// =============================================================================
// FORMATS
// =============================================================================

// Format names an export format. The format string is also the file
// extension of the artifact.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
	FormatHTML     Format = "html"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatMarkdown, FormatText, FormatHTML}

// ParseFormat maps a user-supplied name (including common aliases) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported export format: %q", s)
	}
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format and returns the content.
	Export(conv *model.Conversation) ([]byte, error)

	// Format returns the format produced.
	Format() Format

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Artifact is a rendered export ready to be downloaded or written.
type Artifact struct {
	Filename string
	MimeType string
	Data     []byte
}

// Options configures export behavior.
type Options struct {
	// Theme for HTML export ("light" or "dark").
	// Default: "dark"
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{Theme: "dark"}
}

// New returns the exporter for format.
func New(format Format, opts *Options) (Exporter, error) {
	switch format {
	case FormatJSON:
		return NewJSONExporter(), nil
	case FormatMarkdown:
		return NewMarkdownExporter(), nil
	case FormatText:
		return NewTextExporter(), nil
	case FormatHTML:
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// Export renders conv in the given format.
func Export(conv *model.Conversation, format Format, opts *Options) (*Artifact, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}

	exporter, err := New(format, opts)
	if err != nil {
		return nil, err
	}

	data, err := exporter.Export(conv)
	if err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}

	return &Artifact{
		Filename: Filename(conv.DisplayTitle(), format),
		MimeType: exporter.MimeType(),
		Data:     data,
	}, nil
}

// WriteArtifact writes a to dir and returns the output path.
func WriteArtifact(dir string, a *Artifact) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(dir, a.Filename)
	if err := util.AtomicWriteFile(outputPath, a.Data, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

var unsafeFilenameChars = regexp.MustCompile(`[^\w\s-]`)

// Filename builds "<sanitized-title>.<format>". Everything except word
// characters, whitespace and hyphens is stripped from the title.
func Filename(title string, format Format) string {
	return SanitizeFilename(title) + "." + string(format)
}

// SanitizeFilename strips characters other than word characters,
// whitespace and hyphens. An empty result becomes "conversation".
func SanitizeFilename(s string) string {
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	if strings.TrimSpace(s) == "" {
		return "conversation"
	}
	return s
}
