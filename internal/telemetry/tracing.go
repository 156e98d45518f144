// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jeranaias/chatdesk"

// Tracer returns the chatdesk tracer. Without a configured provider the
// global no-op tracer is used.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// GenerationAttributes returns common attributes for generation spans.
func GenerationAttributes(conversationID, messageID, provider string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("conversation.id", conversationID),
		attribute.String("message.id", messageID),
		attribute.String("generator.provider", provider),
	}
}

// StartGenerationSpan starts a span for one assistant reply.
func StartGenerationSpan(ctx context.Context, conversationID, messageID, provider string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "chat.generate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(GenerationAttributes(conversationID, messageID, provider)...),
	)
}

// EndSpan finishes span with the outcome and, on failure, the error.
func EndSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("generation.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
