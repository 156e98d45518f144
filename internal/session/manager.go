// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coalesces persistence of the conversation mapping.
package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// AUTO-SAVE MANAGER
// =============================================================================

// SaveFunc persists the current state. It is called with no Manager lock
// held and must snapshot whatever it writes itself.
type SaveFunc func(ctx context.Context) error

// Manager tracks unsaved changes and flushes them through a SaveFunc.
// Bursts of MarkDirty calls collapse into a single save; the most recent
// state always wins.
type Manager struct {
	mu sync.Mutex

	isDirty bool

	// Save bookkeeping
	lastAutoSave time.Time
	lastErr      error
	saves        int
	failures     int
	streak       int // failures since the last successful save

	// Configuration
	interval time.Duration
	limiter  *rate.Limiter

	// Callbacks
	onAutoSave SaveFunc
	onError    func(error)

	// saveMu serializes saves so two flushes never race on the backend
	saveMu sync.Mutex
	kick   chan struct{}
}

// Config holds configuration for the auto-save manager.
type Config struct {
	// Interval is how long to wait after the first change before saving,
	// so that a burst of changes (a streamed reply) is written once.
	// Default: 250ms
	Interval time.Duration

	// Rate caps saves per second. Zero means no cap.
	Rate float64

	// Burst is the limiter burst size (default: 1).
	Burst int
}

// DefaultConfig returns the default auto-save configuration.
func DefaultConfig() Config {
	return Config{
		Interval: 250 * time.Millisecond,
		Rate:     4,
		Burst:    1,
	}
}

// NewManager creates a manager that persists through save.
func NewManager(cfg Config, save SaveFunc) *Manager {
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}

	return &Manager{
		interval:   cfg.Interval,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		onAutoSave: save,
		kick:       make(chan struct{}, 1),
	}
}

// SetErrorCallback sets the function called when a save fails. It runs
// before the next save can start, so GetStatus inside it describes the
// failed save.
func (m *Manager) SetErrorCallback(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// =============================================================================
// DIRTY TRACKING
// =============================================================================

// MarkDirty indicates the state has unsaved changes and wakes Run.
func (m *Manager) MarkDirty() {
	m.mu.Lock()
	m.isDirty = true
	m.mu.Unlock()

	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// IsDirty returns whether the state has unsaved changes.
func (m *Manager) IsDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isDirty
}

// =============================================================================
// SAVING
// =============================================================================

// Flush saves immediately if there are unsaved changes.
// A failed save leaves the state dirty so a later flush retries it.
func (m *Manager) Flush(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	if !m.isDirty || m.onAutoSave == nil {
		m.mu.Unlock()
		return nil
	}
	// Cleared before the snapshot: a change made during the save marks
	// the state dirty again.
	m.isDirty = false
	save := m.onAutoSave
	m.mu.Unlock()

	err := save(ctx)

	m.mu.Lock()
	if err != nil {
		m.isDirty = true
		m.lastErr = err
		m.failures++
		m.streak++
	} else {
		m.lastAutoSave = time.Now()
		m.lastErr = nil
		m.saves++
		m.streak = 0
	}
	onError := m.onError
	m.mu.Unlock()

	if err != nil && onError != nil {
		onError(err)
	}
	return err
}

// Run saves dirty state in the background until ctx is done.
// Callers should Flush with a fresh context after Run returns.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.kick:
		}

		if m.interval > 0 {
			timer := time.NewTimer(m.interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		if err := m.limiter.Wait(ctx); err != nil {
			return
		}
		// Errors are reported through the error callback.
		_ = m.Flush(ctx)
	}
}

// =============================================================================
// STATUS
// =============================================================================

// Status represents the current auto-save status.
type Status struct {
	IsDirty   bool
	LastSave  time.Time
	Saves     int
	Failures  int
	LastError error

	// ConsecutiveFailures counts failed saves since the last success.
	// It is 1 exactly when a save has just started failing.
	ConsecutiveFailures int
}

// GetStatus returns the current auto-save status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		IsDirty:   m.isDirty,
		LastSave:  m.lastAutoSave,
		Saves:     m.saves,
		Failures:  m.failures,
		LastError: m.lastErr,

		ConsecutiveFailures: m.streak,
	}
}
