// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"

	"github.com/google/uuid"
)

// TitleMaxRunes is the length of the title derived from the first user message.
const TitleMaxRunes = 50

// DefaultTitle is shown for conversations that have no title yet.
const DefaultTitle = "New Conversation"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a complete chat conversation with history and metadata.
// A Conversation exclusively owns its messages.
type Conversation struct {
	// Identity
	ID    string `json:"id"`
	Title string `json:"title"`

	// Messages, in chronological (insertion) order
	Messages []*Message `json:"messages"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// NewConversation creates a new conversation with a generated ID.
// An empty title is derived later from the first user message.
func NewConversation(title string, now int64) *Conversation {
	return &Conversation{
		ID:        NewConversationID(),
		Title:     strings.TrimSpace(title),
		Messages:  make([]*Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append creates a message from the draft and adds it to the conversation.
// The first message, when it is a user message, names an untitled conversation.
func (c *Conversation) Append(draft MessageDraft, now int64) *Message {
	msg := newMessage(draft, now)
	c.Messages = append(c.Messages, msg)
	if len(c.Messages) == 1 && msg.Type == TypeUser && c.Title == "" {
		c.Title = DeriveTitle(msg.Content)
	}
	c.Touch(now)
	return msg
}

// InsertAfter creates a message from the draft and places it directly after
// the message with ID afterID. Returns nil if afterID does not exist.
func (c *Conversation) InsertAfter(afterID string, draft MessageDraft, now int64) *Message {
	idx := c.IndexOf(afterID)
	if idx < 0 {
		return nil
	}
	msg := newMessage(draft, now)
	c.Messages = append(c.Messages, nil)
	copy(c.Messages[idx+2:], c.Messages[idx+1:])
	c.Messages[idx+1] = msg
	c.Touch(now)
	return msg
}

// Update merges patch into the message with the given ID.
// Returns false if no such message exists.
func (c *Conversation) Update(id string, patch MessagePatch, now int64) bool {
	msg := c.MessageByID(id)
	if msg == nil {
		return false
	}
	patch.Apply(msg)
	c.Touch(now)
	return true
}

// Remove deletes a message by ID, keeping the order of the others.
func (c *Conversation) Remove(id string, now int64) bool {
	idx := c.IndexOf(id)
	if idx < 0 {
		return false
	}
	c.Messages = append(c.Messages[:idx], c.Messages[idx+1:]...)
	c.Touch(now)
	return true
}

// MessageByID returns a message by its ID.
func (c *Conversation) MessageByID(id string) *Message {
	if idx := c.IndexOf(id); idx >= 0 {
		return c.Messages[idx]
	}
	return nil
}

// IndexOf returns the position of the message with the given ID, or -1.
func (c *Conversation) IndexOf(id string) int {
	for i, msg := range c.Messages {
		if msg.ID == id {
			return i
		}
	}
	return -1
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// LastOfType returns the most recent message of the given type.
func (c *Conversation) LastOfType(t MessageType) *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Type == t {
			return c.Messages[i]
		}
	}
	return nil
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// Touch refreshes UpdatedAt. UpdatedAt never moves backwards, even if the
// wall clock does, and never precedes CreatedAt.
func (c *Conversation) Touch(now int64) {
	if now < c.UpdatedAt {
		now = c.UpdatedAt
	}
	if now < c.CreatedAt {
		now = c.CreatedAt
	}
	c.UpdatedAt = now
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// DeriveTitle builds a conversation title from message content: the first
// 50 characters, with "..." appended when the content was longer.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= TitleMaxRunes {
		return content
	}
	return string(runes[:TitleMaxRunes]) + "..."
}

// DisplayTitle returns the conversation title or a default.
func (c *Conversation) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return DefaultTitle
}

// SetTitle manually sets the conversation title.
func (c *Conversation) SetTitle(title string, now int64) {
	c.Title = strings.TrimSpace(title)
	c.Touch(now)
}

// =============================================================================
// SEARCH
// =============================================================================

// Matches reports whether the title or any message content contains query.
// fold normalizes both sides (typically Unicode case folding); an empty
// query matches every conversation.
func (c *Conversation) Matches(query string, fold func(string) string) bool {
	if query == "" {
		return true
	}
	if fold == nil {
		fold = strings.ToLower
	}
	q := fold(query)
	if strings.Contains(fold(c.DisplayTitle()), q) {
		return true
	}
	for _, msg := range c.Messages {
		if strings.Contains(fold(msg.Content), q) {
			return true
		}
	}
	return false
}

// =============================================================================
// SERIALIZATION HELPERS
// =============================================================================

// Preview returns a short preview of the conversation.
func (c *Conversation) Preview() string {
	if len(c.Messages) == 0 {
		return "Empty conversation"
	}
	last := c.LastOfType(TypeUser)
	if last == nil {
		last = c.Messages[0]
	}
	return last.Preview(100)
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Messages:  make([]*Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		clone.Messages[i] = msg.Clone()
	}
	return clone
}

// Normalize repairs state loaded from persistence: messages left streaming by
// an interrupted session are finalized, nil slices are replaced and the
// timestamp invariant is restored.
func (c *Conversation) Normalize() {
	if c.Messages == nil {
		c.Messages = make([]*Message, 0)
	}
	kept := c.Messages[:0]
	for _, msg := range c.Messages {
		if msg == nil {
			continue
		}
		msg.IsStreaming = false
		kept = append(kept, msg)
	}
	c.Messages = kept
	if c.UpdatedAt < c.CreatedAt {
		c.UpdatedAt = c.CreatedAt
	}
}

// NewConversationID creates a unique conversation ID.
func NewConversationID() string {
	return "conv_" + uuid.NewString()
}
