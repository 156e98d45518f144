// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdesk/internal/generate"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/notify"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/storage"
	"github.com/jeranaias/chatdesk/internal/store"
	"github.com/jeranaias/chatdesk/internal/telemetry"
)

const cannedText = "alpha beta gamma delta"

func newStore(t *testing.T, rec *notify.Recorder) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.Options{
		Notifier: rec,
		Logger:   zerolog.Nop(),
		AutoSave: session.Config{Interval: time.Millisecond},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

func fastCanned() *generate.Canned {
	return &generate.Canned{Response: cannedText}
}

func newController(t *testing.T, gen generate.Generator) (*Controller, *store.Store, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	st := newStore(t, rec)
	ctrl := New(st, Options{Generator: gen, Notifier: rec, Logger: zerolog.Nop()})
	return ctrl, st, rec
}

func messages(t *testing.T, st *store.Store, convID string) []*model.Message {
	t.Helper()
	conv, ok := st.Conversation(convID)
	require.True(t, ok)
	return conv.Messages
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSendMessage_CompletesReply(t *testing.T) {
	ctrl, st, rec := newController(t, fastCanned())

	reply, err := ctrl.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, reply.Outcome)
	assert.False(t, ctrl.IsStreaming())

	current, ok := st.Current()
	require.True(t, ok)
	assert.Equal(t, current, reply.ConversationID)

	msgs := messages(t, st, reply.ConversationID)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.TypeUser, msgs[0].Type)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, model.TypeAssistant, msgs[1].Type)
	assert.Equal(t, reply.MessageID, msgs[1].ID)
	assert.Equal(t, cannedText, msgs[1].Content)
	assert.False(t, msgs[1].IsStreaming)
	assert.False(t, msgs[1].IsError)

	assert.Equal(t, 1, rec.Count("New Conversation"))
	assert.Zero(t, rec.Count("Generation Stopped"))
	assert.Zero(t, rec.Count("Generation Failed"))
}

func TestSendMessage_UsesCurrentConversation(t *testing.T) {
	ctrl, st, _ := newController(t, fastCanned())
	convID := st.CreateConversation("Existing")

	reply, err := ctrl.SendMessage(context.Background(), "first", nil)
	require.NoError(t, err)
	assert.Equal(t, convID, reply.ConversationID)

	_, err = ctrl.SendMessage(context.Background(), "second", nil)
	require.NoError(t, err)
	assert.Len(t, messages(t, st, convID), 4)
	assert.Equal(t, 1, st.Len())
}

func TestSendMessage_EmptyContentIsNoop(t *testing.T) {
	ctrl, st, rec := newController(t, fastCanned())

	for _, content := range []string{"", "   ", "\n\t"} {
		reply, err := ctrl.SendMessage(context.Background(), content, nil)
		require.NoError(t, err)
		assert.Equal(t, Reply{}, reply)
	}
	assert.Zero(t, st.Len())
	assert.Empty(t, rec.All())
}

func TestSendMessage_PassesHistoryAndAttachments(t *testing.T) {
	var got generate.Request
	gen := generate.Func(func(ctx context.Context, req generate.Request, onDelta func(string) error) error {
		got = req
		return onDelta("ok")
	})
	ctrl, st, _ := newController(t, gen)

	_, err := ctrl.SendMessage(context.Background(), "one", nil)
	require.NoError(t, err)

	att := []model.Attachment{{ID: "a1", Name: "notes.txt", Type: model.AttachmentDocument}}
	reply, err := ctrl.SendMessage(context.Background(), "two", att)
	require.NoError(t, err)

	assert.Equal(t, "two", got.Prompt)
	assert.Equal(t, att, got.Attachments)
	assert.Equal(t, reply.ConversationID, got.ConversationID)
	assert.Equal(t, []generate.Turn{
		{Role: model.TypeUser, Content: "one"},
		{Role: model.TypeAssistant, Content: "ok"},
	}, got.History)

	msgs := messages(t, st, reply.ConversationID)
	assert.Equal(t, att, msgs[2].Attachments)
}

func TestSendMessage_PlaceholderIsStreaming(t *testing.T) {
	var ctrl *Controller
	var seen []model.Message
	gen := generate.Func(func(ctx context.Context, req generate.Request, onDelta func(string) error) error {
		return onDelta("partial")
	})
	rec := &notify.Recorder{}
	st := newStore(t, rec)
	ctrl = New(st, Options{
		Generator: gen,
		Notifier:  rec,
		Logger:    zerolog.Nop(),
		OnDelta: func(convID, msgID, delta string) {
			msg, ok := st.Message(convID, msgID)
			require.True(t, ok)
			seen = append(seen, *msg)
		},
	})

	_, err := ctrl.SendMessage(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.True(t, seen[0].IsStreaming)
	assert.Equal(t, "partial", seen[0].Content)
}

// =============================================================================
// CANCELLATION TESTS
// =============================================================================

func TestStopGeneration_KeepsPartialContent(t *testing.T) {
	rec := &notify.Recorder{}
	st := newStore(t, rec)
	var ctrl *Controller
	ctrl = New(st, Options{
		Generator: fastCanned(),
		Notifier:  rec,
		Logger:    zerolog.Nop(),
		OnDelta: func(convID, msgID, delta string) {
			ctrl.StopGeneration()
		},
	})

	reply, err := ctrl.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStopped, reply.Outcome)
	assert.NoError(t, reply.Err)

	msg, ok := st.Message(reply.ConversationID, reply.MessageID)
	require.True(t, ok)
	assert.False(t, msg.IsStreaming)
	assert.False(t, msg.IsError)
	assert.NotEmpty(t, msg.Content)
	assert.NotEqual(t, cannedText, msg.Content)
	assert.True(t, strings.HasPrefix(cannedText, msg.Content))
	assert.Equal(t, "alpha", msg.Content, "stops at a token boundary")

	assert.Equal(t, 1, rec.Count("Generation Stopped"))
	assert.Equal(t, notify.TypeWarning, rec.Titled("Generation Stopped")[0].Type)
	assert.Zero(t, rec.Count("Generation Failed"))
}

func TestStopGeneration_AfterLastTokenCompletes(t *testing.T) {
	rec := &notify.Recorder{}
	st := newStore(t, rec)
	deltas := 0
	var ctrl *Controller
	ctrl = New(st, Options{
		Generator: &generate.Canned{Response: "a b"},
		Notifier:  rec,
		Logger:    zerolog.Nop(),
		OnDelta: func(convID, msgID, delta string) {
			deltas++
			if deltas == 2 {
				ctrl.StopGeneration()
			}
		},
	})

	reply, err := ctrl.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, reply.Outcome)

	msg, _ := st.Message(reply.ConversationID, reply.MessageID)
	assert.Equal(t, "a b", msg.Content)
	assert.False(t, msg.IsStreaming)
	assert.Zero(t, rec.Count("Generation Stopped"))
}

func TestStopGeneration_NoopWhenIdle(t *testing.T) {
	ctrl, _, rec := newController(t, fastCanned())
	ctrl.StopGeneration()
	assert.False(t, ctrl.IsStreaming())
	assert.Empty(t, rec.All())

	// A stale stop does not affect the next reply.
	reply, err := ctrl.SendMessage(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, reply.Outcome)
}

func TestStopGeneration_InterruptsBlockedGenerator(t *testing.T) {
	started := make(chan struct{})
	gen := generate.Func(func(ctx context.Context, req generate.Request, onDelta func(string) error) error {
		if err := onDelta("first"); err != nil {
			return err
		}
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	ctrl, st, rec := newController(t, gen)

	done := make(chan Reply, 1)
	go func() {
		reply, _ := ctrl.SendMessage(context.Background(), "hi", nil)
		done <- reply
	}()

	<-started
	assert.True(t, ctrl.IsStreaming())
	ctrl.StopGeneration()
	ctrl.StopGeneration()

	var reply Reply
	select {
	case reply = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reply did not stop")
	}
	assert.Equal(t, OutcomeStopped, reply.Outcome)
	assert.Equal(t, 1, rec.Count("Generation Stopped"))

	msg, _ := st.Message(reply.ConversationID, reply.MessageID)
	assert.Equal(t, "first", msg.Content)
	assert.False(t, msg.IsStreaming)
}

func TestSendMessage_CallerCancellationIsNotFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := generate.Func(func(ctx context.Context, req generate.Request, onDelta func(string) error) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	ctrl, st, rec := newController(t, gen)

	reply, err := ctrl.SendMessage(ctx, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStopped, reply.Outcome)
	assert.Zero(t, rec.Count("Generation Failed"))
	assert.Equal(t, 1, rec.Count("Generation Stopped"))

	msg, _ := st.Message(reply.ConversationID, reply.MessageID)
	assert.False(t, msg.IsError)
	assert.False(t, msg.IsStreaming)
}

func TestSendMessage_BusyWhileStreaming(t *testing.T) {
	release := make(chan struct{})
	gen := generate.Func(func(ctx context.Context, req generate.Request, onDelta func(string) error) error {
		select {
		case <-release:
			return onDelta("done")
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	ctrl, st, _ := newController(t, gen)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = ctrl.SendMessage(context.Background(), "first", nil)
	}()
	require.Eventually(t, ctrl.IsStreaming, 5*time.Second, time.Millisecond)

	_, err := ctrl.SendMessage(context.Background(), "second", nil)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	wg.Wait()
	assert.False(t, ctrl.IsStreaming())

	convID, _ := st.Current()
	assert.Len(t, messages(t, st, convID), 2, "the refused send records nothing")
}

func TestStartMessage_ClaimsRunBeforeReturning(t *testing.T) {
	release := make(chan struct{})
	gen := generate.Func(func(ctx context.Context, req generate.Request, onDelta func(string) error) error {
		<-release
		return onDelta("done")
	})
	ctrl, st, _ := newController(t, gen)

	replies, err := ctrl.StartMessage(context.Background(), "first", nil)
	require.NoError(t, err)
	assert.True(t, ctrl.IsStreaming(), "the run is held as soon as StartMessage returns")

	convID, ok := st.Current()
	require.True(t, ok)
	assert.Len(t, messages(t, st, convID), 2)

	_, err = ctrl.StartMessage(context.Background(), "second", nil)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = ctrl.StartRegenerate(context.Background(), convID, messages(t, st, convID)[1].ID)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	reply := <-replies
	assert.Equal(t, OutcomeCompleted, reply.Outcome)
	assert.False(t, ctrl.IsStreaming())
	assert.Equal(t, "done", messages(t, st, convID)[1].Content)
}

// =============================================================================
// FAILURE TESTS
// =============================================================================

func TestSendMessage_FailureMarksReply(t *testing.T) {
	ctrl, st, rec := newController(t, &generate.Failing{Partial: []string{"half an "}})

	reply, err := ctrl.SendMessage(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, reply.Outcome)
	assert.Equal(t, generate.CodeUnavailable, generate.CodeOf(reply.Err))

	msg, _ := st.Message(reply.ConversationID, reply.MessageID)
	assert.Equal(t, FailureContent, msg.Content)
	assert.True(t, msg.IsError)
	assert.False(t, msg.IsStreaming)

	require.Equal(t, 1, rec.Count("Generation Failed"))
	assert.Equal(t, notify.TypeError, rec.Titled("Generation Failed")[0].Type)
	assert.Zero(t, rec.Count("Generation Stopped"))
}

func TestSendMessage_UsableAfterFailure(t *testing.T) {
	fail := true
	gen := generate.Func(func(ctx context.Context, req generate.Request, onDelta func(string) error) error {
		if fail {
			return generate.NewError(generate.CodeRateLimited, "slow down", nil)
		}
		return onDelta("fine")
	})
	ctrl, st, _ := newController(t, gen)

	first, err := ctrl.SendMessage(context.Background(), "one", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, first.Outcome)

	fail = false
	second, err := ctrl.SendMessage(context.Background(), "two", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, second.Outcome)

	msgs := messages(t, st, second.ConversationID)
	require.Len(t, msgs, 4)
	assert.True(t, msgs[1].IsError)
	assert.Equal(t, "fine", msgs[3].Content)
}

func TestFailureDetail(t *testing.T) {
	assert.Contains(t, failureDetail(generate.CodeRateLimited), "rate limited")
	assert.Equal(t, "Failed to generate a response.", failureDetail(generate.CodeUnknown))
}

// brokenDisk refuses every save.
type brokenDisk struct{ *storage.MemoryKV }

func (brokenDisk) Save(ctx context.Context, key string, value []byte) error {
	return errors.New("disk full")
}

func TestSendMessage_SaveFailureNotifiesOncePerReply(t *testing.T) {
	rec := &notify.Recorder{}
	st, err := store.Open(context.Background(), store.Options{
		KV:       brokenDisk{storage.NewMemoryKV()},
		Notifier: rec,
		Logger:   zerolog.Nop(),
		AutoSave: session.Config{Interval: time.Millisecond},
	})
	require.NoError(t, err)
	gen := &generate.Canned{
		Response: strings.Repeat("word ", 20),
		MinDelay: 2 * time.Millisecond,
		MaxDelay: 4 * time.Millisecond,
	}
	ctrl := New(st, Options{Generator: gen, Notifier: rec, Logger: zerolog.Nop()})

	reply, err := ctrl.SendMessage(context.Background(), "hello", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, reply.Outcome)
	require.Eventually(t, func() bool { return rec.Count("Save Failed") > 0 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 1, rec.Count("Save Failed"))

	assert.Error(t, st.Close(context.Background()))
	assert.Equal(t, 1, rec.Count("Save Failed"), "the final flush joins the same outage")
}

// =============================================================================
// REGENERATION TESTS
// =============================================================================

func TestRegenerateMessage_ReplacesReplyInPlace(t *testing.T) {
	ctrl, st, _ := newController(t, fastCanned())
	convID := st.CreateConversation("")
	userID, _ := st.AddMessage(convID, model.MessageDraft{Type: model.TypeUser, Content: "hi"})
	oldID, _ := st.AddMessage(convID, model.MessageDraft{Type: model.TypeAssistant, Content: "old reply"})

	reply, err := ctrl.RegenerateMessage(context.Background(), convID, oldID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, reply.Outcome)

	msgs := messages(t, st, convID)
	require.Len(t, msgs, 2)
	assert.Equal(t, userID, msgs[0].ID)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.NotEqual(t, oldID, msgs[1].ID)
	assert.Equal(t, reply.MessageID, msgs[1].ID)
	assert.Equal(t, cannedText, msgs[1].Content)
}

func TestRegenerateMessage_MiddleReplyKeepsPosition(t *testing.T) {
	var got generate.Request
	gen := generate.Func(func(ctx context.Context, req generate.Request, onDelta func(string) error) error {
		got = req
		return onDelta("new")
	})
	ctrl, st, _ := newController(t, gen)
	convID := st.CreateConversation("")
	st.AddMessage(convID, model.MessageDraft{Type: model.TypeUser, Content: "q1"})
	a1, _ := st.AddMessage(convID, model.MessageDraft{Type: model.TypeAssistant, Content: "r1"})
	st.AddMessage(convID, model.MessageDraft{Type: model.TypeUser, Content: "q2"})
	st.AddMessage(convID, model.MessageDraft{Type: model.TypeAssistant, Content: "r2"})

	reply, err := ctrl.RegenerateMessage(context.Background(), convID, a1)
	require.NoError(t, err)

	msgs := messages(t, st, convID)
	require.Len(t, msgs, 4)
	assert.Equal(t, []string{"q1", "new", "q2", "r2"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content, msgs[3].Content})
	assert.Equal(t, reply.MessageID, msgs[1].ID)
	assert.Equal(t, "q1", got.Prompt)
	assert.Empty(t, got.History)
}

func TestRegenerateMessage_SelectsConversation(t *testing.T) {
	ctrl, st, _ := newController(t, fastCanned())
	convID := st.CreateConversation("")
	st.AddMessage(convID, model.MessageDraft{Type: model.TypeUser, Content: "hi"})
	oldID, _ := st.AddMessage(convID, model.MessageDraft{Type: model.TypeAssistant, Content: "old"})
	st.CreateConversation("other")

	_, err := ctrl.RegenerateMessage(context.Background(), convID, oldID)
	require.NoError(t, err)

	current, _ := st.Current()
	assert.Equal(t, convID, current)
}

func TestRegenerateMessage_InvalidTargets(t *testing.T) {
	ctrl, st, rec := newController(t, fastCanned())
	convID := st.CreateConversation("")
	firstAssistant, _ := st.AddMessage(convID, model.MessageDraft{Type: model.TypeAssistant, Content: "greeting"})
	userID, _ := st.AddMessage(convID, model.MessageDraft{Type: model.TypeUser, Content: "hi"})
	reply, _ := st.AddMessage(convID, model.MessageDraft{Type: model.TypeAssistant, Content: "r"})
	double, _ := st.AddMessage(convID, model.MessageDraft{Type: model.TypeAssistant, Content: "again"})
	rec.Reset()

	tests := []struct {
		name   string
		convID string
		msgID  string
	}{
		{"missing conversation", "conv_missing", reply},
		{"missing message", convID, "msg_missing"},
		{"first message", convID, firstAssistant},
		{"user message", convID, userID},
		{"predecessor not user", convID, double},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ctrl.RegenerateMessage(context.Background(), tc.convID, tc.msgID)
			assert.ErrorIs(t, err, ErrInvalidTarget)
		})
	}

	assert.Len(t, messages(t, st, convID), 4, "invalid targets change nothing")
	assert.Empty(t, rec.All())
}

func TestRegenerateLast(t *testing.T) {
	ctrl, st, _ := newController(t, fastCanned())
	_, err := ctrl.RegenerateLast(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTarget)

	first, err := ctrl.SendMessage(context.Background(), "hi", nil)
	require.NoError(t, err)

	again, err := ctrl.RegenerateLast(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.MessageID, again.MessageID)
	assert.Len(t, messages(t, st, first.ConversationID), 2)
}

// =============================================================================
// METRICS TESTS
// =============================================================================

func TestController_RecordsMetrics(t *testing.T) {
	rec := &notify.Recorder{}
	st := newStore(t, rec)
	metrics := telemetry.NewMetrics()
	ctrl := New(st, Options{Generator: fastCanned(), Notifier: rec, Logger: zerolog.Nop(), Metrics: metrics})

	_, err := ctrl.SendMessage(context.Background(), "hi", nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GenerationsTotal.WithLabelValues(telemetry.OutcomeCompleted)))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.TokensStreamed))
}

func TestCheckRegenerate(t *testing.T) {
	ctrl, st, _ := newController(t, fastCanned())
	convID := st.CreateConversation("")
	userID, _ := st.AddMessage(convID, model.MessageDraft{Type: model.TypeUser, Content: "hi"})
	replyID, _ := st.AddMessage(convID, model.MessageDraft{Type: model.TypeAssistant, Content: "r"})

	assert.NoError(t, ctrl.CheckRegenerate(convID, replyID))
	assert.ErrorIs(t, ctrl.CheckRegenerate(convID, userID), ErrInvalidTarget)
	assert.ErrorIs(t, ctrl.CheckRegenerate("conv_missing", replyID), ErrInvalidTarget)
	assert.Len(t, messages(t, st, convID), 2, "checking changes nothing")
}
