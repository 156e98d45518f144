// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DefaultSubject is the NATS subject notifications are published on.
const DefaultSubject = "chatdesk.notifications"

// Publisher is the subset of *nats.Conn used by NATSNotifier.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes each notification as JSON on a NATS subject so
// other processes (desktop shells, status bars) can surface it.
type NATSNotifier struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
	def     time.Duration
	logger  zerolog.Logger
}

// wire is the JSON shape published on the subject.
type wire struct {
	Type       Type   `json:"type"`
	Title      string `json:"title"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"durationMs"`
	Timestamp  int64  `json:"timestamp"`
}

// NewNATSNotifier wraps an existing publisher.
func NewNATSNotifier(pub Publisher, subject string, defaultDuration time.Duration, logger zerolog.Logger) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSNotifier{pub: pub, subject: subject, def: defaultDuration, logger: logger}
}

// ConnectNATS dials url and returns a notifier that owns the connection.
func ConnectNATS(url, subject string, defaultDuration time.Duration, logger zerolog.Logger) (*NATSNotifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("chatdesk"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	n := NewNATSNotifier(nc, subject, defaultDuration, logger)
	n.conn = nc
	return n, nil
}

// Notify publishes n. Publish failures are logged and otherwise ignored.
func (n *NATSNotifier) Notify(note Notification) {
	note = note.WithDefaults(n.def)
	data, err := json.Marshal(wire{
		Type:       note.Type,
		Title:      note.Title,
		Message:    note.Message,
		DurationMs: note.DurationMillis(),
		Timestamp:  time.Now().UnixMilli(),
	})
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to encode notification")
		return
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		n.logger.Warn().Err(err).Str("subject", n.subject).Msg("failed to publish notification")
	}
}

// Close drains the connection if the notifier owns one.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
