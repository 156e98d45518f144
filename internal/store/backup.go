// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/notify"
)

// =============================================================================
// BACKUP / RESTORE
// =============================================================================

// Backup returns every conversation in the persisted layout, indented.
// The result can be fed back to Restore.
func (s *Store) Backup() ([]byte, error) {
	s.mu.RLock()
	data, err := json.MarshalIndent(savedState{Version: FormatVersion, Conversations: s.conversations}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return data, nil
}

// Restore replaces every conversation with the contents of a backup. Older
// layouts are migrated. On error the store is left unchanged. It returns the
// number of conversations restored.
func (s *Store) Restore(data []byte) (int, error) {
	convs, err := decodeConversations(data)
	if err != nil {
		return 0, fmt.Errorf("read backup: %w", err)
	}
	count := s.replace(convs)
	s.logger.Info().Int("conversations", count).Msg("conversations restored")
	s.notifier.Notify(notify.Notification{
		Type:    notify.TypeSuccess,
		Title:   "Conversations Restored",
		Message: fmt.Sprintf("%d conversations imported", count),
	})
	return count, nil
}

// Clear removes every conversation.
func (s *Store) Clear() {
	s.replace(make(map[string]*model.Conversation))
	s.logger.Info().Msg("conversations cleared")
	s.notifier.Notify(notify.Notification{
		Type:    notify.TypeInfo,
		Title:   "Conversations Cleared",
		Message: "All conversations have been removed",
	})
}

func (s *Store) replace(convs map[string]*model.Conversation) int {
	s.mu.Lock()
	s.conversations = convs
	s.currentID = ""
	count := len(convs)
	s.mu.Unlock()

	s.metrics.SetConversations(count)
	s.changed(Event{Type: EventStoreReplaced})
	return count
}
