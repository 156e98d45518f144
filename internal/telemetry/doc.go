// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides Prometheus metrics and OpenTelemetry spans for
// chatdesk.
//
// # Key Types
//
//   - Metrics: generation, streaming and persistence counters
//   - StartGenerationSpan: span around one assistant reply
//
// A nil *Metrics is valid and records nothing, so components can run
// without a registry in tests.
package telemetry
