// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatdesk/internal/notify"
	"github.com/jeranaias/chatdesk/internal/ui/styles"
	"github.com/jeranaias/chatdesk/internal/util"
)

// MaxToasts is the number of toasts visible at once.
const MaxToasts = 3

// Toast is a notification on screen until Expires.
type Toast struct {
	notify.Notification
	Expires time.Time
}

// ToastStack holds visible toasts, newest first. It is owned by the
// bubbletea model and is not safe for concurrent use.
type ToastStack struct {
	toasts []Toast
}

// Push shows n until now plus its duration.
func (s *ToastStack) Push(n notify.Notification, now time.Time) {
	n = n.WithDefaults(notify.DefaultDuration)
	s.toasts = append([]Toast{{Notification: n, Expires: now.Add(n.Duration)}}, s.toasts...)
	if len(s.toasts) > MaxToasts {
		s.toasts = s.toasts[:MaxToasts]
	}
}

// Prune drops expired toasts and reports whether any were removed.
func (s *ToastStack) Prune(now time.Time) bool {
	kept := s.toasts[:0]
	for _, t := range s.toasts {
		if now.Before(t.Expires) {
			kept = append(kept, t)
		}
	}
	removed := len(kept) != len(s.toasts)
	s.toasts = kept
	return removed
}

// Dismiss removes every toast.
func (s *ToastStack) Dismiss() {
	s.toasts = nil
}

// Len returns the number of visible toasts.
func (s *ToastStack) Len() int {
	return len(s.toasts)
}

// Items returns the visible toasts, newest first.
func (s *ToastStack) Items() []Toast {
	out := make([]Toast, len(s.toasts))
	copy(out, s.toasts)
	return out
}

// View renders the stack right-aligned within width.
func (s *ToastStack) View(theme *styles.Theme, width int) string {
	if len(s.toasts) == 0 {
		return ""
	}
	maxWidth := width / 2
	if maxWidth < 24 {
		maxWidth = 24
	}

	rendered := make([]string, 0, len(s.toasts))
	for _, t := range s.toasts {
		text := t.Title
		if t.Message != "" {
			text += ": " + t.Message
		}
		text = util.TruncateWidth(util.SingleLine(text), maxWidth-4)
		rendered = append(rendered, toastStyle(theme, t.Type).Render(icon(t.Type)+" "+text))
	}
	block := lipgloss.JoinVertical(lipgloss.Right, rendered...)
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, block)
}

func toastStyle(theme *styles.Theme, typ notify.Type) lipgloss.Style {
	switch typ {
	case notify.TypeSuccess:
		return theme.ToastSuccess
	case notify.TypeError:
		return theme.ToastError
	case notify.TypeWarning:
		return theme.ToastWarning
	default:
		return theme.ToastInfo
	}
}

func icon(typ notify.Type) string {
	switch typ {
	case notify.TypeSuccess:
		return "✓"
	case notify.TypeError:
		return "✗"
	case notify.TypeWarning:
		return "!"
	default:
		return "i"
	}
}
