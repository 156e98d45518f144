// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"time"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to a zerolog logger.
type LogNotifier struct {
	logger zerolog.Logger
	def    time.Duration
}

// NewLogNotifier creates a notifier that logs each notification.
func NewLogNotifier(logger zerolog.Logger, defaultDuration time.Duration) *LogNotifier {
	return &LogNotifier{logger: logger, def: defaultDuration}
}

// Notify logs n at a level matching its type.
func (l *LogNotifier) Notify(n Notification) {
	n = n.WithDefaults(l.def)

	var ev *zerolog.Event
	switch n.Type {
	case TypeError:
		ev = l.logger.Error()
	case TypeWarning:
		ev = l.logger.Warn()
	default:
		ev = l.logger.Info()
	}
	ev.Str("type", string(n.Type)).
		Str("title", n.Title).
		Int64("duration_ms", n.DurationMillis()).
		Msg(n.Message)
}
