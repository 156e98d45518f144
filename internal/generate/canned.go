// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"
)

// DefaultCannedResponse is the reply produced by the simulated generator.
const DefaultCannedResponse = "I understand your question. Here is a detailed response that " +
	"streams in one word at a time, the way a real assistant reply would. " +
	"This text is generated locally so the interface can be exercised without " +
	"a model backend. Connect Ollama or an OpenAI-compatible endpoint to get real answers."

// Default per-token delay bounds of the simulated generator.
const (
	DefaultMinDelay = 50 * time.Millisecond
	DefaultMaxDelay = 150 * time.Millisecond
)

// Canned simulates streaming by replaying a fixed response word by word.
// The first word is emitted bare and every later word with one leading
// space, so the deltas concatenate to the words joined by single spaces.
type Canned struct {
	// Response is the text to replay. Default: DefaultCannedResponse
	Response string

	// Each word is preceded by a random delay in [MinDelay, MaxDelay).
	MinDelay time.Duration
	MaxDelay time.Duration
}

// NewCanned returns a simulated generator with the default text and delays.
func NewCanned() *Canned {
	return &Canned{
		Response: DefaultCannedResponse,
		MinDelay: DefaultMinDelay,
		MaxDelay: DefaultMaxDelay,
	}
}

// Tokens returns the words that Generate emits.
func (c *Canned) Tokens() []string {
	resp := c.Response
	if resp == "" {
		resp = DefaultCannedResponse
	}
	return strings.Fields(resp)
}

// Generate replays the response.
func (c *Canned) Generate(ctx context.Context, req Request, onDelta func(string) error) error {
	for i, tok := range c.Tokens() {
		if err := sleep(ctx, c.delay()); err != nil {
			return err
		}
		if i > 0 {
			tok = " " + tok
		}
		if err := onDelta(tok); err != nil {
			return err
		}
	}
	return nil
}

func (c *Canned) delay() time.Duration {
	if c.MaxDelay <= c.MinDelay {
		return c.MinDelay
	}
	return c.MinDelay + time.Duration(rand.Int64N(int64(c.MaxDelay-c.MinDelay)))
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
