// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the rendering pieces of the chatdesk TUI.
//
// Components are plain functions and small stateful types that turn store
// snapshots into strings; they never mutate the store.
//
//   - Markdown: glamour renderer cached per width, for assistant replies
//   - RenderMessage: one conversation turn with label, time and body
//   - RenderSidebar: conversation list with the current one highlighted
//   - ToastStack: auto-dismissing notifications
package components
