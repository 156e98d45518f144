// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"sync/atomic"
)

// =============================================================================
// CANCELLATION SIGNAL
// =============================================================================

// run is the cancellation signal of one in-flight reply.
type run struct {
	stopped atomic.Bool
	cancel  context.CancelFunc
}

// Stopped reports whether StopGeneration was called for this run.
func (r *run) Stopped() bool {
	return r.stopped.Load()
}

// cancelManager holds the single in-flight run with mutex protection.
// StopGeneration is called from other goroutines (UI, HTTP handlers) than
// the one streaming.
type cancelManager struct {
	mu      sync.Mutex
	current *run
}

func newCancelManager() *cancelManager {
	return &cancelManager{}
}

// begin registers a new run. It fails with ErrBusy while another run is
// active.
func (cm *cancelManager) begin(parent context.Context) (context.Context, *run, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.current != nil {
		return nil, nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(parent)
	cm.current = &run{cancel: cancel}
	return ctx, cm.current, nil
}

// stop raises the signal of the active run. No-op when idle.
func (cm *cancelManager) stop() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.current == nil {
		return false
	}
	cm.current.stopped.Store(true)
	cm.current.cancel()
	return true
}

// end releases r. The context is always canceled to avoid leaks.
func (cm *cancelManager) end(r *run) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	r.cancel()
	if cm.current == r {
		cm.current = nil
	}
}

func (cm *cancelManager) active() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.current != nil
}
