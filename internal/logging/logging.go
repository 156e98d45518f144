// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the structured zerolog loggers used across chatdesk.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Supported output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Common field names.
const (
	FieldConversation = "conversation_id"
	FieldMessage      = "message_id"
	FieldKey          = "key"
	FieldComponent    = "component"
)

// New constructs a logger writing to stderr.
// Stdout is left to the TUI and to streamed replies.
func New(level, format string) (zerolog.Logger, error) {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter constructs a logger for the given level and format.
// An empty level means "info" and an empty format means "console".
func NewWithWriter(w io.Writer, level, format string) (zerolog.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var logger zerolog.Logger
	switch strings.ToLower(format) {
	case FormatJSON:
		logger = zerolog.New(w).With().Timestamp().Logger()
	case FormatConsole, "":
		consoleWriter := zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
		logger = zerolog.New(consoleWriter).With().Timestamp().Logger()
	default:
		return zerolog.Logger{}, fmt.Errorf("unsupported log format %q", format)
	}

	return logger.Level(lvl), nil
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str(FieldComponent, name).Logger()
}
