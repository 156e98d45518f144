// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatctl "github.com/jeranaias/chatdesk/internal/chat"
	"github.com/jeranaias/chatdesk/internal/generate"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/notify"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/store"
)

type harness struct {
	m     *Model
	store *store.Store
	ctrl  *chatctl.Controller
	notes *notify.ChanNotifier
	dir   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	notes := notify.NewChanNotifier(64, 0)
	st, err := store.Open(context.Background(), store.Options{
		Notifier: notes,
		Logger:   zerolog.Nop(),
		AutoSave: session.Config{Interval: time.Millisecond},
	})
	require.NoError(t, err)

	ctrl := chatctl.New(st, chatctl.Options{
		Generator: &generate.Canned{Response: "alpha beta"},
		Notifier:  notes,
		Logger:    zerolog.Nop(),
	})
	dir := t.TempDir()
	m := New(Options{
		Store:         st,
		Controller:    ctrl,
		Notifications: notes.C(),
		Theme:         "dark",
		ExportDir:     dir,
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	t.Cleanup(func() {
		m.Close()
		_ = st.Close(context.Background())
	})
	return &harness{m: m, store: st, ctrl: ctrl, notes: notes, dir: dir}
}

func (h *harness) key(k tea.KeyType) tea.Cmd {
	_, cmd := h.m.Update(tea.KeyMsg{Type: k})
	return cmd
}

func (h *harness) typeText(s string) {
	h.m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// run executes cmd and feeds its message back into the model.
func (h *harness) run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	h.m.Update(msg)
	return msg
}

// =============================================================================
// SENDING
// =============================================================================

func TestSubmit_SendsAndStreams(t *testing.T) {
	h := newHarness(t)
	h.typeText("hello")
	assert.Equal(t, "hello", h.m.input.Value())

	cmd := h.key(tea.KeyEnter)
	assert.Empty(t, h.m.input.Value(), "input clears on send")

	msg := h.run(t, cmd)
	done, ok := msg.(replyDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.Err)
	assert.Equal(t, chatctl.OutcomeCompleted, done.Reply.Outcome)

	conv, ok := h.store.Conversation(done.Reply.ConversationID)
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "alpha beta", conv.Messages[1].Content)

	view := h.m.View()
	assert.Contains(t, view, "hello")
	assert.Contains(t, view, "alpha")
}

func TestSubmit_IgnoresBlankInput(t *testing.T) {
	h := newHarness(t)
	h.typeText("   ")
	assert.Nil(t, h.key(tea.KeyEnter))
	assert.Zero(t, h.store.Len())
}

func TestRegenerateLast(t *testing.T) {
	h := newHarness(t)
	h.typeText("hi")
	first := h.run(t, h.key(tea.KeyEnter)).(replyDoneMsg)

	again := h.run(t, h.key(tea.KeyCtrlR)).(replyDoneMsg)
	require.NoError(t, again.Err)
	assert.NotEqual(t, first.Reply.MessageID, again.Reply.MessageID)

	conv, _ := h.store.Conversation(first.Reply.ConversationID)
	assert.Len(t, conv.Messages, 2)
}

func TestRegenerateLast_NothingToRegenerate(t *testing.T) {
	h := newHarness(t)
	h.key(tea.KeyCtrlN)
	h.run(t, h.key(tea.KeyCtrlR))

	items := h.m.toasts.Items()
	require.NotEmpty(t, items)
	assert.Equal(t, "Nothing to Regenerate", items[0].Title)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestNewAndCycle(t *testing.T) {
	h := newHarness(t)
	h.key(tea.KeyCtrlN)
	h.key(tea.KeyCtrlN)
	require.Equal(t, 2, h.store.Len())

	start, _ := h.store.Current()
	h.key(tea.KeyTab)
	next, _ := h.store.Current()
	assert.NotEqual(t, start, next)

	h.key(tea.KeyShiftTab)
	back, _ := h.store.Current()
	assert.Equal(t, start, back)
}

func TestDeleteCurrent(t *testing.T) {
	h := newHarness(t)
	h.key(tea.KeyCtrlN)
	h.key(tea.KeyCtrlX)
	assert.Zero(t, h.store.Len())
}

func TestSearchMode(t *testing.T) {
	h := newHarness(t)
	trip := h.store.CreateConversation("Trip Planning")
	h.store.CreateConversation("Recipe Ideas")

	h.key(tea.KeyCtrlF)
	require.Equal(t, modeSearch, h.m.mode)
	h.typeText("trip")
	assert.Equal(t, "trip", h.store.Query())

	filtered := h.store.Filtered()
	require.Len(t, filtered, 1)
	assert.Equal(t, trip, filtered[0].ID)
	assert.Contains(t, h.m.View(), "1 of 2 match")

	h.key(tea.KeyEnter)
	assert.Equal(t, modeChat, h.m.mode)
	assert.Equal(t, "trip", h.store.Query(), "enter keeps the filter")

	h.key(tea.KeyCtrlF)
	h.key(tea.KeyEsc)
	assert.Equal(t, modeChat, h.m.mode)
	assert.Empty(t, h.store.Query())
}

// =============================================================================
// EXPORT / NOTIFICATIONS
// =============================================================================

func TestExportCurrent(t *testing.T) {
	h := newHarness(t)
	id := h.store.CreateConversation("Notes")
	h.store.AddMessage(id, model.MessageDraft{Type: model.TypeUser, Content: "remember this"})

	msg := h.run(t, h.key(tea.KeyCtrlE)).(exportDoneMsg)
	require.NoError(t, msg.Err)
	assert.Equal(t, filepath.Join(h.dir, "Notes.markdown"), msg.Path)

	data, err := os.ReadFile(msg.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "remember this")
}

func TestExport_NoConversation(t *testing.T) {
	h := newHarness(t)
	assert.Nil(t, h.key(tea.KeyCtrlE))
	assert.Equal(t, "Nothing to Export", h.m.toasts.Items()[0].Title)
}

func TestNotificationsBecomeToasts(t *testing.T) {
	h := newHarness(t)
	now := time.Unix(100, 0)
	h.m.now = func() time.Time { return now }

	h.m.Update(notificationMsg{Notification: notify.Notification{
		Type:     notify.TypeSuccess,
		Title:    "Conversation Exported",
		Duration: time.Second,
	}})
	assert.Contains(t, h.m.View(), "Conversation Exported")

	h.m.Update(tickMsg(now.Add(2 * time.Second)))
	assert.Zero(t, h.m.toasts.Len())
}

func TestStoreEventsAreConsumed(t *testing.T) {
	h := newHarness(t)
	id := h.store.CreateConversation("Live")

	cmd := waitForEvent(h.m.events)
	msg := h.run(t, cmd)
	ev, ok := msg.(storeEventMsg)
	require.True(t, ok)
	assert.Equal(t, id, ev.Event.ConversationID)
}

func TestEscWithoutStreamingDismissesToasts(t *testing.T) {
	h := newHarness(t)
	h.m.toast(notify.TypeInfo, "x", "")
	h.key(tea.KeyEsc)
	assert.Zero(t, h.m.toasts.Len())
}

func TestQuitStops(t *testing.T) {
	h := newHarness(t)
	cmd := h.key(tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
