// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the interactive chat screen of the TUI.
//
// The screen is a bubbletea model over the conversation store and the
// streaming controller. It never keeps its own copy of conversations:
// every store event re-renders from a fresh snapshot, so a reply streamed
// by the controller shows up token by token.
//
// # Keys
//
//	Enter      send the input (or leave search)
//	Esc        stop the streaming reply, clear search, dismiss toasts
//	Ctrl+N     new conversation
//	Ctrl+R     regenerate the last reply
//	Ctrl+F     search conversations
//	Tab        next conversation (Shift+Tab: previous)
//	Ctrl+E     export the conversation as Markdown
//	Ctrl+X     delete the conversation
//	Ctrl+C     quit
//
// Notifications from a notify.ChanNotifier appear as toasts that expire
// after their duration.
package chat
