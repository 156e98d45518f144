// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/chatdesk/internal/logging"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/notify"
	"github.com/jeranaias/chatdesk/internal/storage"
)

// =============================================================================
// PERSISTENCE
// =============================================================================

// FormatVersion is the layout written under storage.ConversationsKey.
//
//	1: the bare id -> conversation mapping, attachments untyped
//	2: the mapping inside a versioned envelope, attachments typed
const FormatVersion = 2

// savedState is the envelope persisted under storage.ConversationsKey.
type savedState struct {
	Version       int                            `json:"version"`
	Conversations map[string]*model.Conversation `json:"conversations"`
}

// persist writes the whole mapping under storage.ConversationsKey.
// It is the session.Manager save callback.
func (s *Store) persist(ctx context.Context) error {
	s.mu.RLock()
	data, err := json.Marshal(savedState{Version: FormatVersion, Conversations: s.conversations})
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode conversations: %w", err)
	}

	err = s.kv.Save(ctx, storage.ConversationsKey, data)
	s.metrics.RecordPersist(err)
	if err != nil {
		return fmt.Errorf("save conversations: %w", err)
	}

	s.logger.Debug().Int("bytes", len(data)).Msg("conversations saved")
	return nil
}

// onSaveError reports a failed save. In-memory state stays authoritative.
// Every failure is logged; the user is told once per run of failures, not
// on every retry while a reply streams.
func (s *Store) onSaveError(err error) {
	streak := s.saver.GetStatus().ConsecutiveFailures
	s.logger.Error().Err(err).
		Str(logging.FieldKey, storage.ConversationsKey).
		Int("consecutive_failures", streak).
		Msg("failed to persist conversations")
	if streak > 1 {
		return
	}
	s.notifier.Notify(notify.Notification{
		Type:    notify.TypeError,
		Title:   "Save Failed",
		Message: "Your conversations could not be saved. Changes are kept for this session.",
	})
}

// load seeds the mapping from the KV. Absent state is normal; unreadable
// state is logged and reported, and the store starts empty.
func (s *Store) load(ctx context.Context) {
	data, err := s.kv.Load(ctx, storage.ConversationsKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug().Msg("no saved conversations")
			return
		}
		s.logger.Error().Err(err).Str(logging.FieldKey, storage.ConversationsKey).Msg("failed to load conversations")
		s.notifyLoadFailure()
		return
	}

	convs, err := decodeConversations(data)
	if err != nil {
		s.logger.Warn().Err(err).Str(logging.FieldKey, storage.ConversationsKey).Msg("saved conversations are malformed, starting empty")
		s.notifyLoadFailure()
		return
	}

	s.mu.Lock()
	s.conversations = convs
	count := len(convs)
	s.mu.Unlock()

	s.metrics.SetConversations(count)
	s.logger.Info().Int("conversations", count).Msg("conversations loaded")
}

func (s *Store) notifyLoadFailure() {
	s.notifier.Notify(notify.Notification{
		Type:    notify.TypeWarning,
		Title:   "Conversations Unavailable",
		Message: "Saved conversations could not be read. Starting with an empty history.",
	})
}

// decodeConversations parses saved state of any known version, migrates it
// to FormatVersion and repairs each entry.
func decodeConversations(data []byte) (map[string]*model.Conversation, error) {
	state, err := decodeState(data)
	if err != nil {
		return nil, err
	}
	if state.Version > FormatVersion {
		return nil, fmt.Errorf("saved state has version %d, newer than supported %d", state.Version, FormatVersion)
	}
	migrate(state)

	out := make(map[string]*model.Conversation, len(state.Conversations))
	for key, conv := range state.Conversations {
		if conv == nil {
			continue
		}
		if conv.ID == "" {
			conv.ID = key
		}
		conv.Normalize()
		out[conv.ID] = conv
	}
	return out, nil
}

// decodeState recognizes the envelope by its numeric version field. Anything
// else is read as the version 1 bare mapping.
func decodeState(data []byte) (*savedState, error) {
	var head struct {
		Version json.RawMessage `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var version int
	if len(head.Version) > 0 && json.Unmarshal(head.Version, &version) == nil {
		state := &savedState{}
		if err := json.Unmarshal(data, state); err != nil {
			return nil, err
		}
		return state, nil
	}

	state := &savedState{Version: 1}
	if err := json.Unmarshal(data, &state.Conversations); err != nil {
		return nil, err
	}
	return state, nil
}

// migrate upgrades state in place, one version at a time.
func migrate(state *savedState) {
	if state.Version < 2 {
		for _, conv := range state.Conversations {
			if conv == nil {
				continue
			}
			for _, msg := range conv.Messages {
				if msg != nil {
					msg.ClassifyAttachments()
				}
			}
		}
		state.Version = 2
	}
}
