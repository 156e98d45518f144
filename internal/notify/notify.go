// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify delivers user-visible notifications.
//
// The conversation store and the streaming controller emit notifications
// fire-and-forget. Dismissal timing, rendering and transport belong to the
// Notifier implementation, never to the caller.
package notify

import (
	"sync"
	"time"
)

// DefaultDuration is how long a notification stays visible when the sender
// does not say otherwise.
const DefaultDuration = 5000 * time.Millisecond

// Type is the severity of a notification.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Notification is one user-visible event.
type Notification struct {
	Type    Type   `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`

	// Duration is the auto-dismiss delay. Zero means DefaultDuration.
	Duration time.Duration `json:"-"`
}

// WithDefaults returns n with an unset duration replaced by def
// (or DefaultDuration when def is zero).
func (n Notification) WithDefaults(def time.Duration) Notification {
	if def <= 0 {
		def = DefaultDuration
	}
	if n.Duration <= 0 {
		n.Duration = def
	}
	return n
}

// DurationMillis returns the duration in milliseconds.
func (n Notification) DurationMillis() int64 {
	return n.Duration.Milliseconds()
}

// Notifier receives notifications. Notify must not block the caller for
// long and must be safe for concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to the Notifier interface.
type Func func(Notification)

// Notify calls f(n).
func (f Func) Notify(n Notification) { f(n) }

// =============================================================================
// BASIC NOTIFIERS
// =============================================================================

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

// Notify forwards n to every non-nil notifier.
func (m Multi) Notify(n Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(n)
		}
	}
}

// Recorder keeps every notification it receives. Useful in tests.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify records n.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n.WithDefaults(0))
}

// All returns a copy of everything recorded so far.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Titled returns the recorded notifications with the given title.
func (r *Recorder) Titled(title string) []Notification {
	var out []Notification
	for _, n := range r.All() {
		if n.Title == title {
			out = append(out, n)
		}
	}
	return out
}

// Count returns how many notifications have the given title.
func (r *Recorder) Count(title string) int {
	return len(r.Titled(title))
}

// Reset clears the recorder.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// =============================================================================
// CHANNEL NOTIFIER
// =============================================================================

// ChanNotifier delivers notifications on a buffered channel, dropping them
// when the reader falls behind. The TUI drains it to show toasts.
type ChanNotifier struct {
	ch      chan Notification
	def     time.Duration
	mu      sync.Mutex
	dropped int
}

// NewChanNotifier creates a notifier with the given buffer size.
func NewChanNotifier(buffer int, defaultDuration time.Duration) *ChanNotifier {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChanNotifier{
		ch:  make(chan Notification, buffer),
		def: defaultDuration,
	}
}

// Notify enqueues n without blocking.
func (c *ChanNotifier) Notify(n Notification) {
	select {
	case c.ch <- n.WithDefaults(c.def):
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
	}
}

// C returns the receive side of the channel.
func (c *ChanNotifier) C() <-chan Notification {
	return c.ch
}

// Dropped returns how many notifications were discarded.
func (c *ChanNotifier) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
