// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders conversations as downloadable artifacts.
//
// # Formats
//
//   - json: the complete conversation, parses back into model.Conversation
//   - markdown: "# title", then a "## User" / "## Claude" section per message
//   - txt: underlined title, then "Role: content" pairs
//   - html: standalone page with message content rendered by goldmark
//
// Artifacts are named "<sanitized-title>.<format>".
//
// # Usage
//
//	artifact, err := export.Export(conv, export.FormatMarkdown, nil)
//	path, err := export.WriteArtifact(".", artifact)
package export
