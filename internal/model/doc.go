// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the conversation
// store, the streaming controller, the exporters and the persistence layer.
//
// # Key Types
//
//   - Conversation: ordered, titled collection of messages with timestamps
//   - Message: one turn (user or assistant) with streaming/error flags
//   - Attachment: opaque reference to an uploaded file
//   - MessageDraft / MessagePatch: inputs for add and update operations
//
// # Usage
//
//	conv := model.NewConversation("", model.NowMillis())
//	conv.Append(model.MessageDraft{Type: model.TypeUser, Content: "Hello!"}, model.NowMillis())
//
// Timestamps are milliseconds since the Unix epoch.
package model
