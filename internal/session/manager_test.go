// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Interval != 250*time.Millisecond {
		t.Errorf("Default Interval = %v, want 250ms", cfg.Interval)
	}
	if cfg.Rate <= 0 {
		t.Error("Default Rate should cap saves")
	}
}

// =============================================================================
// FLUSH TESTS
// =============================================================================

func TestManager_FlushOnlyWhenDirty(t *testing.T) {
	var calls int32
	m := NewManager(Config{}, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	require.NoError(t, m.Flush(context.Background()))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "clean state is not saved")

	m.MarkDirty()
	assert.True(t, m.IsDirty())
	require.NoError(t, m.Flush(context.Background()))
	assert.False(t, m.IsDirty())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	status := m.GetStatus()
	assert.Equal(t, 1, status.Saves)
	assert.False(t, status.LastSave.IsZero())
}

func TestManager_FailedSaveStaysDirty(t *testing.T) {
	boom := errors.New("disk full")
	var reported []error
	m := NewManager(Config{}, func(ctx context.Context) error { return boom })
	m.SetErrorCallback(func(err error) { reported = append(reported, err) })

	m.MarkDirty()
	err := m.Flush(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, m.IsDirty(), "failed save is retried later")
	assert.Equal(t, []error{boom}, reported)

	status := m.GetStatus()
	assert.Equal(t, 1, status.Failures)
	assert.Equal(t, boom, status.LastError)
}

func TestManager_ConsecutiveFailuresResetOnSuccess(t *testing.T) {
	fail := true
	var streaks []int
	var m *Manager
	m = NewManager(Config{}, func(ctx context.Context) error {
		if fail {
			return errors.New("disk full")
		}
		return nil
	})
	m.SetErrorCallback(func(error) { streaks = append(streaks, m.GetStatus().ConsecutiveFailures) })

	for i := 0; i < 3; i++ {
		m.MarkDirty()
		_ = m.Flush(context.Background())
	}
	assert.Equal(t, []int{1, 2, 3}, streaks)

	fail = false
	require.NoError(t, m.Flush(context.Background()))
	assert.Zero(t, m.GetStatus().ConsecutiveFailures)
	assert.Equal(t, 3, m.GetStatus().Failures)

	fail = true
	m.MarkDirty()
	_ = m.Flush(context.Background())
	assert.Equal(t, []int{1, 2, 3, 1}, streaks)
}

func TestManager_ChangeDuringSaveIsNotLost(t *testing.T) {
	var calls int32
	var m *Manager
	m = NewManager(Config{}, func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			m.MarkDirty()
		}
		return nil
	})

	m.MarkDirty()
	require.NoError(t, m.Flush(context.Background()))
	assert.True(t, m.IsDirty())
	require.NoError(t, m.Flush(context.Background()))
	assert.False(t, m.IsDirty())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// =============================================================================
// RUN LOOP TESTS
// =============================================================================

func TestManager_RunCoalescesBursts(t *testing.T) {
	var calls int32
	m := NewManager(Config{Interval: 50 * time.Millisecond}, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Run(ctx)
	}()

	for i := 0; i < 20; i++ {
		m.MarkDirty()
	}

	assert.Eventually(t, func() bool {
		return !m.IsDirty() && atomic.LoadInt32(&calls) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()

	got := atomic.LoadInt32(&calls)
	assert.LessOrEqual(t, got, int32(2), "a burst collapses into very few saves")
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m := NewManager(Config{Interval: time.Hour}, func(ctx context.Context) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	m.MarkDirty()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, m.IsDirty(), "pending change is left for the final Flush")
}

func TestManager_ConcurrentMarkDirty(t *testing.T) {
	m := NewManager(Config{}, func(ctx context.Context) error { return nil })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.MarkDirty()
			_ = m.Flush(context.Background())
		}()
	}
	wg.Wait()

	require.NoError(t, m.Flush(context.Background()))
	assert.False(t, m.IsDirty())
}
