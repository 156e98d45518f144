// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat drives assistant replies through the conversation store.
//
// A Controller runs one reply at a time. SendMessage records the user
// message, appends an empty streaming assistant message and feeds it with
// the deltas of a generate.Generator until the reply completes, is stopped
// with StopGeneration, or fails.
//
// # Terminal states
//
//   - completed: IsStreaming is cleared
//   - stopped: partial content is kept, one "Generation Stopped" warning
//   - failed: content is replaced by FailureContent, IsError is set, one
//     "Generation Failed" error notification
//
// None of these are returned as errors. SendMessage only fails with ErrBusy
// and RegenerateMessage with ErrBusy or ErrInvalidTarget.
package chat
