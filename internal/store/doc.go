// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store owns the mapping from conversation ID to conversation.
//
// Every mutation goes through a Store method and is applied under the store
// lock against the current state, so concurrent callers never lose updates.
// Readers get deep copies. Changes are published to subscribers as Events
// and persisted in the background under the "conversations" key; a failed
// save is reported but never rolls back the in-memory state.
//
// # Usage
//
//	st, err := store.Open(ctx, store.Options{KV: kv, Notifier: n, Logger: logger})
//	defer st.Close(context.Background())
//
//	id := st.CreateConversation("")
//	st.AddMessage(id, model.MessageDraft{Type: model.TypeUser, Content: "Hello!"})
package store
