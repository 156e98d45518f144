// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/chatdesk/internal/export"
	"github.com/jeranaias/chatdesk/internal/logging"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/notify"
	"github.com/jeranaias/chatdesk/internal/session"
	"github.com/jeranaias/chatdesk/internal/storage"
	"github.com/jeranaias/chatdesk/internal/telemetry"
)

// =============================================================================
// STORE
// =============================================================================

// Options configures a Store.
type Options struct {
	// KV persists the conversation mapping. Default: in-memory.
	KV storage.KV

	// Notifier receives user-visible notifications. Default: discard.
	Notifier notify.Notifier

	Logger zerolog.Logger

	// AutoSave controls save coalescing.
	AutoSave session.Config

	// Metrics is optional.
	Metrics *telemetry.Metrics

	// Export configures the HTML exporter.
	Export *export.Options

	// Now returns the current time in milliseconds. Default: wall clock.
	Now func() int64
}

// Store is the conversation store. It is safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	currentID     string
	query         string

	kv       storage.KV
	notifier notify.Notifier
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	exportOp *export.Options
	now      func() int64

	saver     *session.Manager
	cancelRun context.CancelFunc
	runDone   chan struct{}
	closeOnce sync.Once

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int
	closed  bool
}

// Open creates a store seeded from opts.KV and starts background saving.
// Absent or unreadable saved state yields an empty store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := newStore(opts)
	s.load(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancelRun = cancel
	s.runDone = make(chan struct{})
	go func() {
		defer close(s.runDone)
		s.saver.Run(runCtx)
	}()

	return s, nil
}

func newStore(opts Options) *Store {
	if opts.KV == nil {
		opts.KV = storage.NewMemoryKV()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	if opts.Now == nil {
		opts.Now = model.NowMillis
	}
	if opts.AutoSave == (session.Config{}) {
		opts.AutoSave = session.DefaultConfig()
	}

	s := &Store{
		conversations: make(map[string]*model.Conversation),
		kv:            opts.KV,
		notifier:      opts.Notifier,
		logger:        logging.Component(opts.Logger, "store"),
		metrics:       opts.Metrics,
		exportOp:      opts.Export,
		now:           opts.Now,
		subs:          make(map[int]chan Event),
	}
	s.saver = session.NewManager(opts.AutoSave, s.persist)
	s.saver.SetErrorCallback(s.onSaveError)
	return s
}

// Close stops background saving and writes the final state.
// Subscriber channels are closed.
func (s *Store) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		if s.cancelRun != nil {
			s.cancelRun()
			<-s.runDone
		}
		err = s.saver.Flush(ctx)
		s.closeSubscribers()
	})
	return err
}

// Flush writes pending changes now.
func (s *Store) Flush(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

// changed records a mutation: schedules a save and publishes ev.
func (s *Store) changed(ev Event) {
	s.saver.MarkDirty()
	s.emit(ev)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// CreateConversation adds an empty conversation and makes it current.
// An empty title is derived from the first user message.
func (s *Store) CreateConversation(title string) string {
	s.mu.Lock()
	conv := model.NewConversation(title, s.now())
	s.conversations[conv.ID] = conv
	s.currentID = conv.ID
	count := len(s.conversations)
	s.mu.Unlock()

	s.metrics.SetConversations(count)
	s.logger.Debug().Str(logging.FieldConversation, conv.ID).Msg("conversation created")
	s.changed(Event{Type: EventConversationCreated, ConversationID: conv.ID})
	s.emit(Event{Type: EventConversationSelected, ConversationID: conv.ID})
	s.notifier.Notify(notify.Notification{
		Type:    notify.TypeInfo,
		Title:   "New Conversation",
		Message: "Started a new conversation",
	})
	return conv.ID
}

// DeleteConversation removes a conversation. If it was current, nothing is
// current afterwards.
func (s *Store) DeleteConversation(id string) bool {
	s.mu.Lock()
	if _, ok := s.conversations[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.conversations, id)
	if s.currentID == id {
		s.currentID = ""
	}
	count := len(s.conversations)
	s.mu.Unlock()

	s.metrics.SetConversations(count)
	s.changed(Event{Type: EventConversationDeleted, ConversationID: id})
	s.notifier.Notify(notify.Notification{
		Type:    notify.TypeInfo,
		Title:   "Conversation Deleted",
		Message: "The conversation has been removed",
	})
	return true
}

// RenameConversation sets an explicit title.
func (s *Store) RenameConversation(id, title string) bool {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	if ok {
		conv.SetTitle(title, s.now())
	}
	s.mu.Unlock()

	if ok {
		s.changed(Event{Type: EventConversationUpdated, ConversationID: id})
	}
	return ok
}

// SelectConversation makes id the current conversation.
func (s *Store) SelectConversation(id string) bool {
	s.mu.Lock()
	_, ok := s.conversations[id]
	if ok {
		s.currentID = id
	}
	s.mu.Unlock()

	if ok {
		s.emit(Event{Type: EventConversationSelected, ConversationID: id})
	}
	return ok
}

// Current returns the ID of the current conversation.
func (s *Store) Current() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID, s.currentID != ""
}

// Conversation returns a copy of the conversation with the given ID.
func (s *Store) Conversation(id string) (*model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// Conversations returns copies of all conversations, most recently updated
// first.
func (s *Store) Conversations() []*model.Conversation {
	s.mu.RLock()
	out := make([]*model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, conv.Clone())
	}
	s.mu.RUnlock()

	sortByRecent(out)
	return out
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

func sortByRecent(convs []*model.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		a, b := convs[i], convs[j]
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt > b.UpdatedAt
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ID < b.ID
	})
}

// =============================================================================
// MESSAGES
// =============================================================================

// AddMessage appends a message built from draft. It returns the new message
// ID, or false when the conversation does not exist.
func (s *Store) AddMessage(convID string, draft model.MessageDraft) (string, bool) {
	s.mu.Lock()
	conv, ok := s.conversations[convID]
	if !ok {
		s.mu.Unlock()
		return "", false
	}
	msg := conv.Append(draft, s.now())
	s.mu.Unlock()

	s.changed(Event{Type: EventMessageAdded, ConversationID: convID, MessageID: msg.ID})
	return msg.ID, true
}

// InsertMessage places a message built from draft directly after afterID.
// It returns false when the conversation or afterID does not exist.
func (s *Store) InsertMessage(convID, afterID string, draft model.MessageDraft) (string, bool) {
	s.mu.Lock()
	conv, ok := s.conversations[convID]
	if !ok {
		s.mu.Unlock()
		return "", false
	}
	msg := conv.InsertAfter(afterID, draft, s.now())
	s.mu.Unlock()

	if msg == nil {
		return "", false
	}
	s.changed(Event{Type: EventMessageAdded, ConversationID: convID, MessageID: msg.ID})
	return msg.ID, true
}

// UpdateMessage merges patch into a message. It reports false when either
// ID does not exist.
func (s *Store) UpdateMessage(convID, msgID string, patch model.MessagePatch) bool {
	s.mu.Lock()
	conv, ok := s.conversations[convID]
	if ok {
		ok = conv.Update(msgID, patch, s.now())
	}
	s.mu.Unlock()

	if ok {
		s.changed(Event{Type: EventMessageUpdated, ConversationID: convID, MessageID: msgID})
	}
	return ok
}

// AppendContent adds delta to the end of a message's content. The read and
// write happen under one lock so concurrent appends are never lost.
func (s *Store) AppendContent(convID, msgID, delta string) bool {
	s.mu.Lock()
	ok := false
	if conv, found := s.conversations[convID]; found {
		if msg := conv.MessageByID(msgID); msg != nil {
			ok = conv.Update(msgID, model.MessagePatch{Content: model.String(msg.Content + delta)}, s.now())
		}
	}
	s.mu.Unlock()

	if ok {
		s.changed(Event{Type: EventMessageUpdated, ConversationID: convID, MessageID: msgID})
	}
	return ok
}

// DeleteMessage removes a message, keeping the order of the others.
// Deleting a missing message is a no-op.
func (s *Store) DeleteMessage(convID, msgID string) bool {
	s.mu.Lock()
	conv, ok := s.conversations[convID]
	if ok {
		ok = conv.Remove(msgID, s.now())
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.changed(Event{Type: EventMessageDeleted, ConversationID: convID, MessageID: msgID})
	s.notifier.Notify(notify.Notification{
		Type:    notify.TypeInfo,
		Title:   "Message Deleted",
		Message: "The message has been removed",
	})
	return true
}

// Message returns a copy of one message.
func (s *Store) Message(convID, msgID string) (*model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[convID]
	if !ok {
		return nil, false
	}
	msg := conv.MessageByID(msgID)
	if msg == nil {
		return nil, false
	}
	return msg.Clone(), true
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportConversation renders a conversation in the given format. It returns
// false, and notifies nothing, when the conversation does not exist.
func (s *Store) ExportConversation(id string, format export.Format) (*export.Artifact, bool) {
	conv, ok := s.Conversation(id)
	if !ok {
		return nil, false
	}

	artifact, err := export.Export(conv, format, s.exportOp)
	if err != nil {
		s.logger.Error().Err(err).Str(logging.FieldConversation, id).Str("format", string(format)).Msg("export failed")
		s.notifier.Notify(notify.Notification{
			Type:    notify.TypeError,
			Title:   "Export Failed",
			Message: err.Error(),
		})
		return nil, false
	}

	s.notifier.Notify(notify.Notification{
		Type:    notify.TypeSuccess,
		Title:   "Conversation Exported",
		Message: "Saved as " + artifact.Filename,
	})
	return artifact, true
}
