// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"golang.org/x/text/cases"

	"github.com/jeranaias/chatdesk/internal/model"
)

// =============================================================================
// SEARCH
// =============================================================================

// SearchMessages sets the search query used by Filtered.
func (s *Store) SearchMessages(query string) {
	s.mu.Lock()
	changed := s.query != query
	s.query = query
	s.mu.Unlock()

	if changed {
		s.emit(Event{Type: EventQueryChanged})
	}
}

// Query returns the current search query.
func (s *Store) Query() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// Filtered returns copies of the conversations whose title or any message
// contains the current query, ignoring case. It is recomputed on every call.
func (s *Store) Filtered() []*model.Conversation {
	s.mu.RLock()
	query := s.query
	s.mu.RUnlock()
	return s.Search(query)
}

// Search returns copies of the conversations matching query without
// changing the stored query. Matching uses Unicode case folding.
func (s *Store) Search(query string) []*model.Conversation {
	fold := cases.Fold()

	s.mu.RLock()
	out := make([]*model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		if conv.Matches(query, fold.String) {
			out = append(out, conv.Clone())
		}
	}
	s.mu.RUnlock()

	sortByRecent(out)
	return out
}
