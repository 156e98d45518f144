// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/chatdesk/internal/generate"
	"github.com/jeranaias/chatdesk/internal/logging"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/notify"
	"github.com/jeranaias/chatdesk/internal/store"
	"github.com/jeranaias/chatdesk/internal/telemetry"
)

// FailureContent replaces the content of a reply whose generation failed.
const FailureContent = "Sorry, I encountered an error while processing your request. Please try again."

var (
	// ErrBusy is returned when a reply is already streaming.
	ErrBusy = errors.New("chat: a reply is already streaming")

	// ErrInvalidTarget is returned by RegenerateMessage when the message is
	// not an assistant reply directly following a user message.
	ErrInvalidTarget = errors.New("chat: message cannot be regenerated")

	errMessageGone = errors.New("chat: reply message no longer exists")
)

// Outcome is the terminal state of a reply.
type Outcome string

const (
	OutcomeCompleted Outcome = telemetry.OutcomeCompleted
	OutcomeStopped   Outcome = telemetry.OutcomeStopped
	OutcomeFailed    Outcome = telemetry.OutcomeFailed
)

// Reply describes a finished reply.
type Reply struct {
	ConversationID string
	MessageID      string
	Outcome        Outcome

	// Err is the generator error when Outcome is OutcomeFailed.
	Err error
}

// DeltaFunc observes every delta appended to a reply.
type DeltaFunc func(conversationID, messageID, delta string)

// Options configures a Controller.
type Options struct {
	// Generator produces replies. Default: generate.NewCanned().
	Generator generate.Generator

	// Notifier receives stop and failure notifications. Default: discard.
	Notifier notify.Notifier

	Logger  zerolog.Logger
	Metrics *telemetry.Metrics

	// Provider names the generator in logs and spans.
	Provider string

	// Model overrides the generator's default model.
	Model string

	// OnDelta is called after each delta is stored.
	OnDelta DeltaFunc
}

// Controller streams assistant replies into a store. It runs at most one
// reply at a time and is safe for concurrent use.
type Controller struct {
	store     *store.Store
	gen       generate.Generator
	notifier  notify.Notifier
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
	provider  string
	model     string
	onDelta   DeltaFunc
	cancelMgr *cancelManager
}

// New creates a controller for st.
func New(st *store.Store, opts Options) *Controller {
	if opts.Generator == nil {
		opts.Generator = generate.NewCanned()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	if opts.Provider == "" {
		opts.Provider = "canned"
	}
	return &Controller{
		store:     st,
		gen:       opts.Generator,
		notifier:  opts.Notifier,
		logger:    logging.Component(opts.Logger, "chat"),
		metrics:   opts.Metrics,
		provider:  opts.Provider,
		model:     opts.Model,
		onDelta:   opts.OnDelta,
		cancelMgr: newCancelManager(),
	}
}

// IsStreaming reports whether a reply is in flight.
func (c *Controller) IsStreaming() bool {
	return c.cancelMgr.active()
}

// StopGeneration raises the cancellation signal of the in-flight reply.
// It is a no-op when nothing is streaming.
func (c *Controller) StopGeneration() {
	if c.cancelMgr.stop() {
		c.logger.Debug().Msg("stop requested")
	}
}

// =============================================================================
// SEND
// =============================================================================

// SendMessage records a user message in the current conversation, creating
// one if none is current, and streams the reply. It blocks until the reply
// reaches a terminal state. Content that is empty after trimming is ignored
// and yields a zero Reply.
func (c *Controller) SendMessage(ctx context.Context, content string, attachments []model.Attachment) (Reply, error) {
	j, err := c.prepareSend(ctx, content, attachments)
	if err != nil {
		return Reply{}, err
	}
	return c.finish(j), nil
}

// StartMessage is SendMessage without the wait. The run is claimed and the
// messages recorded before it returns, so ErrBusy is reported synchronously;
// the reply arrives on the channel once streaming ends.
func (c *Controller) StartMessage(ctx context.Context, content string, attachments []model.Attachment) (<-chan Reply, error) {
	j, err := c.prepareSend(ctx, content, attachments)
	if err != nil {
		return nil, err
	}
	return c.background(j), nil
}

func (c *Controller) prepareSend(ctx context.Context, content string, attachments []model.Attachment) (*job, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	runCtx, r, err := c.cancelMgr.begin(ctx)
	if err != nil {
		return nil, err
	}

	user := model.MessageDraft{Type: model.TypeUser, Content: content, Attachments: attachments}
	convID, ok := c.store.Current()
	if !ok {
		convID = c.store.CreateConversation("")
	}
	var history []*model.Message
	if conv, found := c.store.Conversation(convID); found {
		history = conv.Messages
	}
	if _, ok := c.store.AddMessage(convID, user); !ok {
		// The current conversation was deleted in between.
		convID = c.store.CreateConversation("")
		history = nil
		c.store.AddMessage(convID, user)
	}

	msgID, _ := c.store.AddMessage(convID, model.MessageDraft{Type: model.TypeAssistant, IsStreaming: true})
	return &job{
		parent: ctx,
		ctx:    runCtx,
		run:    r,
		convID: convID,
		msgID:  msgID,
		req: generate.Request{
			ConversationID: convID,
			Prompt:         content,
			Attachments:    attachments,
			History:        generate.History(history),
			Model:          c.model,
		},
	}, nil
}

// =============================================================================
// REGENERATE
// =============================================================================

// RegenerateMessage replaces an assistant reply with a new one generated from
// the same user message. The reply must directly follow a user message. The
// user message is not duplicated; the new reply takes the old one's place.
func (c *Controller) RegenerateMessage(ctx context.Context, convID, msgID string) (Reply, error) {
	j, err := c.prepareRegenerate(ctx, convID, msgID)
	if err != nil {
		return Reply{}, err
	}
	return c.finish(j), nil
}

// StartRegenerate is RegenerateMessage without the wait.
func (c *Controller) StartRegenerate(ctx context.Context, convID, msgID string) (<-chan Reply, error) {
	j, err := c.prepareRegenerate(ctx, convID, msgID)
	if err != nil {
		return nil, err
	}
	return c.background(j), nil
}

func (c *Controller) prepareRegenerate(ctx context.Context, convID, msgID string) (*job, error) {
	conv, idx, err := c.target(convID, msgID)
	if err != nil {
		return nil, err
	}
	prompt := conv.Messages[idx-1]

	runCtx, r, err := c.cancelMgr.begin(ctx)
	if err != nil {
		return nil, err
	}

	c.store.SelectConversation(convID)
	if !c.store.DeleteMessage(convID, msgID) {
		c.cancelMgr.end(r)
		return nil, ErrInvalidTarget
	}
	newID, ok := c.store.InsertMessage(convID, prompt.ID, model.MessageDraft{Type: model.TypeAssistant, IsStreaming: true})
	if !ok {
		c.cancelMgr.end(r)
		return nil, ErrInvalidTarget
	}

	c.logger.Debug().
		Str(logging.FieldConversation, convID).
		Str(logging.FieldMessage, msgID).
		Msg("regenerating reply")

	return &job{
		parent: ctx,
		ctx:    runCtx,
		run:    r,
		convID: convID,
		msgID:  newID,
		req: generate.Request{
			ConversationID: convID,
			Prompt:         prompt.Content,
			Attachments:    prompt.Attachments,
			History:        generate.History(conv.Messages[:idx-1]),
			Model:          c.model,
		},
	}, nil
}

// CheckRegenerate reports whether RegenerateMessage would accept the target.
// It returns nil, ErrInvalidTarget or ErrBusy.
func (c *Controller) CheckRegenerate(convID, msgID string) error {
	if _, _, err := c.target(convID, msgID); err != nil {
		return err
	}
	if c.IsStreaming() {
		return ErrBusy
	}
	return nil
}

// target returns a snapshot of the conversation and the index of a valid
// regeneration target.
func (c *Controller) target(convID, msgID string) (*model.Conversation, int, error) {
	conv, ok := c.store.Conversation(convID)
	if !ok {
		return nil, 0, ErrInvalidTarget
	}
	idx := conv.IndexOf(msgID)
	if idx < 1 || conv.Messages[idx].Type != model.TypeAssistant {
		return nil, 0, ErrInvalidTarget
	}
	if conv.Messages[idx-1].Type != model.TypeUser {
		return nil, 0, ErrInvalidTarget
	}
	return conv, idx, nil
}

// RegenerateLast regenerates the last assistant reply of the current
// conversation.
func (c *Controller) RegenerateLast(ctx context.Context) (Reply, error) {
	convID, ok := c.store.Current()
	if !ok {
		return Reply{}, ErrInvalidTarget
	}
	conv, ok := c.store.Conversation(convID)
	if !ok {
		return Reply{}, ErrInvalidTarget
	}
	last := conv.LastOfType(model.TypeAssistant)
	if last == nil {
		return Reply{}, ErrInvalidTarget
	}
	return c.RegenerateMessage(ctx, convID, last.ID)
}

// =============================================================================
// STREAMING
// =============================================================================

// job is a claimed run whose messages are recorded and whose reply has not
// been streamed yet.
type job struct {
	parent context.Context
	ctx    context.Context
	run    *run
	convID string
	msgID  string
	req    generate.Request
}

// finish streams the job and releases its run. A nil job yields a zero Reply.
func (c *Controller) finish(j *job) Reply {
	if j == nil {
		return Reply{}
	}
	defer c.cancelMgr.end(j.run)
	return c.stream(j.parent, j.ctx, j.run, j.convID, j.msgID, j.req)
}

func (c *Controller) background(j *job) <-chan Reply {
	out := make(chan Reply, 1)
	go func() {
		defer close(out)
		out <- c.finish(j)
	}()
	return out
}

func (c *Controller) stream(parent, ctx context.Context, r *run, convID, msgID string, req generate.Request) Reply {
	start := time.Now()
	ctx, span := telemetry.StartGenerationSpan(ctx, convID, msgID, c.provider)
	log := c.logger.With().
		Str(logging.FieldConversation, convID).
		Str(logging.FieldMessage, msgID).
		Str("provider", c.provider).
		Logger()

	tokens := 0
	interrupted := false
	err := c.gen.Generate(ctx, req, func(delta string) error {
		if r.Stopped() {
			interrupted = true
			return context.Canceled
		}
		if !c.store.AppendContent(convID, msgID, delta) {
			return errMessageGone
		}
		tokens++
		c.metrics.RecordToken()
		if c.onDelta != nil {
			c.onDelta(convID, msgID, delta)
		}
		return nil
	})

	reply := Reply{ConversationID: convID, MessageID: msgID}
	gone := errors.Is(err, errMessageGone)
	// A generator that finished every delta completed, even if a stop
	// arrived after the last one was appended.
	canceled := interrupted || (err != nil && (r.Stopped() || parent.Err() != nil))
	switch {
	case canceled || gone:
		reply.Outcome = OutcomeStopped
		c.store.UpdateMessage(convID, msgID, model.MessagePatch{IsStreaming: model.Bool(false)})
		if canceled && !gone {
			c.notifier.Notify(notify.Notification{
				Type:    notify.TypeWarning,
				Title:   "Generation Stopped",
				Message: "The response was stopped",
			})
		}
		log.Info().Int("tokens", tokens).Msg("reply stopped")

	case err != nil:
		reply.Outcome = OutcomeFailed
		reply.Err = err
		c.store.UpdateMessage(convID, msgID, model.MessagePatch{
			Content:     model.String(FailureContent),
			IsStreaming: model.Bool(false),
			IsError:     model.Bool(true),
		})
		c.notifier.Notify(notify.Notification{
			Type:    notify.TypeError,
			Title:   "Generation Failed",
			Message: failureDetail(generate.CodeOf(err)),
		})
		log.Error().Err(err).Str("code", string(generate.CodeOf(err))).Msg("reply failed")

	default:
		reply.Outcome = OutcomeCompleted
		c.store.UpdateMessage(convID, msgID, model.MessagePatch{IsStreaming: model.Bool(false)})
		log.Debug().Int("tokens", tokens).Msg("reply completed")
	}

	var spanErr error
	if reply.Outcome == OutcomeFailed {
		spanErr = err
	}
	telemetry.EndSpan(span, string(reply.Outcome), spanErr)
	c.metrics.RecordGeneration(string(reply.Outcome), time.Since(start))
	return reply
}

// failureDetail returns the notification text for a failure code.
func failureDetail(code generate.Code) string {
	switch code {
	case generate.CodeRateLimited:
		return "The assistant is rate limited. Wait a moment and try again."
	case generate.CodeModelNotFound:
		return "The configured model is not available."
	case generate.CodeUnavailable:
		return "The assistant backend is unavailable."
	case generate.CodeInvalidResponse:
		return "The assistant returned an invalid response."
	default:
		return "Failed to generate a response."
	}
}
