// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the chatdesk command line.
//
// Every command loads the configuration, assembles an App (store, reply
// generator, controller and notification fan-out) and closes it when done,
// so conversations are flushed to the configured backend between runs.
//
// # Commands
//
//	chatdesk [tui]             interactive terminal UI
//	chatdesk repl              line-oriented chat with history
//	chatdesk send <message>    one-shot message, reply on stdout
//	chatdesk list|show         inspect conversations
//	chatdesk export [id]       json, markdown, txt or html
//	chatdesk rename|delete     manage conversations
//	chatdesk serve             HTTP API, SSE events and metrics
//	chatdesk config ...        show, get, set, keys, path, init
//	chatdesk schema            JSON Schema of the config file
package cli
