// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

// EventType identifies a change in the store.
type EventType string

const (
	EventConversationCreated  EventType = "conversation.created"
	EventConversationUpdated  EventType = "conversation.updated"
	EventConversationDeleted  EventType = "conversation.deleted"
	EventConversationSelected EventType = "conversation.selected"
	EventMessageAdded         EventType = "message.added"
	EventMessageUpdated       EventType = "message.updated"
	EventMessageDeleted       EventType = "message.deleted"
	EventQueryChanged         EventType = "query.changed"
	EventStoreReplaced        EventType = "store.replaced"
)

// Event describes one applied change. Subscribers re-read the store for
// the new state.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversationId,omitempty"`
	MessageID      string    `json:"messageId,omitempty"`
}

// subscriberBuffer is the per-subscriber queue length. Events beyond it are
// dropped for that subscriber only.
const subscriberBuffer = 256

// Subscribe returns a channel of store events and a function that cancels
// the subscription. A subscriber that does not keep up misses events
// rather than blocking the store.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) emit(ev Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Store) closeSubscribers() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
