// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generate

import "context"

// Failing emits Partial and then fails with Err.
type Failing struct {
	// Partial deltas delivered before the failure.
	Partial []string

	// Err is returned after Partial. Default: an unavailable Error.
	Err error
}

// Generate emits the partial deltas and returns the configured error.
func (f *Failing) Generate(ctx context.Context, req Request, onDelta func(string) error) error {
	for _, delta := range f.Partial {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onDelta(delta); err != nil {
			return err
		}
	}
	if f.Err != nil {
		return f.Err
	}
	return NewError(CodeUnavailable, "generation backend unavailable", nil)
}
