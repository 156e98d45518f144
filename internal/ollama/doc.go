// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the Ollama chat API.
//
// Only the pieces chatdesk needs are implemented: a health check, model
// listing and streaming chat over newline-delimited JSON.
//
// # Usage
//
//	client := ollama.NewClient()
//	err := client.ChatStream(ctx, "llama3.2", msgs, func(c ollama.StreamChunk) error {
//	    fmt.Print(c.Content)
//	    return nil
//	})
package ollama
