// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coalesces persistence of the conversation mapping.
//
// Every store mutation calls MarkDirty. A background Run loop waits for the
// configured interval, honors a rate.Limiter and then calls the save
// function once, however many mutations happened in between. Flush writes
// synchronously and is used on shutdown so the persisted state equals the
// final in-memory state.
//
// # Usage
//
//	mgr := session.NewManager(session.DefaultConfig(), store.persist)
//	go mgr.Run(ctx)
//	...
//	mgr.MarkDirty()
//	...
//	_ = mgr.Flush(context.Background())
package session
