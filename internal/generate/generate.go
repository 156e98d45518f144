// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generate defines the source of assistant replies.
//
// A Generator produces a reply as a sequence of text deltas delivered to a
// callback. The streaming controller does not care which implementation is
// plugged in: Canned simulates a reply locally, Ollama and OpenAI pass the
// conversation to a real backend, Failing always fails.
package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/chatdesk/internal/model"
)

// =============================================================================
// GENERATOR INTERFACE
// =============================================================================

// Generator produces an assistant reply.
//
// Generate calls onDelta once per text delta, in order, from the calling
// goroutine. If onDelta returns an error, Generate stops and returns it.
// Generate must return promptly once ctx is done.
type Generator interface {
	Generate(ctx context.Context, req Request, onDelta func(delta string) error) error
}

// Checker is implemented by generators that can report whether their
// backend is reachable and ready to serve the configured model.
type Checker interface {
	Check(ctx context.Context) error
}

// Turn is one earlier message given to the backend as context.
type Turn struct {
	Role    model.MessageType
	Content string
}

// Request is the input of one generation.
type Request struct {
	ConversationID string

	// Prompt is the user message being answered.
	Prompt      string
	Attachments []model.Attachment

	// History holds the turns before Prompt, oldest first.
	History []Turn

	// Model overrides the generator's default model when set.
	Model string
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, req Request, onDelta func(string) error) error

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request, onDelta func(string) error) error {
	return f(ctx, req, onDelta)
}

// =============================================================================
// ERRORS
// =============================================================================

// Code classifies a generation failure.
type Code string

const (
	CodeRateLimited     Code = "rate_limited"
	CodeUnavailable     Code = "unavailable"
	CodeModelNotFound   Code = "model_not_found"
	CodeInvalidResponse Code = "invalid_response"
	CodeCanceled        Code = "canceled"
	CodeUnknown         Code = "unknown"
)

// Error is a structured generation failure. Callers branch on Code, never
// on Message.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same code, so sentinel-style checks
// like errors.Is(err, &Error{Code: CodeRateLimited}) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates an Error.
func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the Code carried by err. Context errors map to
// CodeCanceled; anything else unstructured is CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	return CodeUnknown
}

// History builds the turn list for a request from the messages before the
// prompt. Error and empty messages are left out.
func History(msgs []*model.Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.IsError || m.Content == "" {
			continue
		}
		turns = append(turns, Turn{Role: m.Type, Content: m.Content})
	}
	return turns
}
