// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the chatdesk HTTP API.
//
// Endpoints:
//   - GET    /health                                     - Health check
//   - GET    /metrics                                    - Prometheus metrics
//   - GET    /v1/conversations?q=                        - List (filtered) conversations
//   - POST   /v1/conversations                           - Create a conversation
//   - GET    /v1/conversations/{id}                      - Full conversation
//   - PATCH  /v1/conversations/{id}                      - Rename
//   - DELETE /v1/conversations/{id}                      - Delete
//   - POST   /v1/conversations/{id}/select               - Make current
//   - GET    /v1/conversations/{id}/export?format=       - Download an export
//   - DELETE /v1/conversations/{id}/messages/{mid}       - Delete a message
//   - POST   /v1/conversations/{id}/messages/{mid}/regenerate
//   - POST   /v1/messages                                - Send (202, or 200 with ?wait=true)
//   - POST   /v1/stop                                    - Stop the in-flight reply
//   - GET    /v1/status                                  - Streaming state
//   - GET    /v1/events                                  - Server-Sent Events of store changes
//
// Every route passes through recovery, security header, request logging and
// per-client rate limiting middleware.
package server
