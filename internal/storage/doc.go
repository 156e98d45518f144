// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the key-value persistence backends used to save
// conversation state.
//
// The conversation store treats persistence as a best-effort side channel:
// it saves the whole conversation mapping under a single logical key and
// reloads it on startup. Backends only need to move opaque byte blobs.
//
// # Key Types
//
//   - KV: the persistence interface (Save/Load by key)
//   - FileKV: one file per key, written atomically
//   - SQLiteKV: a single SQLite table (pure Go driver)
//   - MemoryKV: in-process map, for tests and ephemeral sessions
//   - EncryptedKV: AES-256-GCM wrapper around any other KV
//
// # Usage
//
//	kv, err := storage.NewFileKV(dataDir)
//	err = kv.Save(ctx, "conversations", blob)
//	blob, err := kv.Load(ctx, "conversations")
//	if errors.Is(err, storage.ErrNotFound) {
//	    // first run
//	}
//
// # Storage Location
//
// FileKV defaults to ~/.chatdesk/data/<key>.json.
package storage
