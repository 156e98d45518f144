// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// MessageType identifies the author of a message.
type MessageType string

const (
	TypeUser      MessageType = "user"
	TypeAssistant MessageType = "assistant"
)

// String returns the string representation of the type.
func (t MessageType) String() string {
	return string(t)
}

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	return t == TypeUser || t == TypeAssistant
}

// DisplayName returns the label used in exports and transcripts.
func (t MessageType) DisplayName() string {
	switch t {
	case TypeUser:
		return "User"
	case TypeAssistant:
		return "Claude"
	default:
		return string(t)
	}
}

// =============================================================================
// ATTACHMENT
// =============================================================================

// AttachmentType is the broad kind of an attached file.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentDocument AttachmentType = "document"
)

// AttachmentTypeOf classifies a MIME type. Anything that is not an image is
// a document.
func AttachmentTypeOf(mimeType string) AttachmentType {
	if strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return AttachmentImage
	}
	return AttachmentDocument
}

// Attachment references a file managed by the upload collaborator.
// The conversation only keeps the reference, never the file contents.
type Attachment struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     AttachmentType `json:"type,omitempty"`
	MimeType string         `json:"mimeType,omitempty"`
	Size     int64          `json:"size,omitempty"`
	URL      string         `json:"url,omitempty"`
}

// =============================================================================
// MESSAGE
// =============================================================================

// Message is a single turn in a conversation.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"`

	// Streaming state
	IsStreaming bool `json:"isStreaming"`
	IsError     bool `json:"isError"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// MessageDraft is the caller-supplied part of a new message.
// ID and Timestamp are always assigned by the conversation.
type MessageDraft struct {
	Type        MessageType
	Content     string
	IsStreaming bool
	Attachments []Attachment
}

func newMessage(draft MessageDraft, now int64) *Message {
	return &Message{
		ID:          NewMessageID(),
		Type:        draft.Type,
		Content:     draft.Content,
		Timestamp:   now,
		IsStreaming: draft.IsStreaming,
		Attachments: typedAttachments(draft.Attachments),
	}
}

// MessagePatch holds the fields to merge into an existing message.
// Nil fields are left untouched.
type MessagePatch struct {
	Content     *string
	IsStreaming *bool
	IsError     *bool
	Attachments *[]Attachment
}

// Apply merges the patch into m.
func (p MessagePatch) Apply(m *Message) {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.IsStreaming != nil {
		m.IsStreaming = *p.IsStreaming
	}
	if p.IsError != nil {
		m.IsError = *p.IsError
	}
	if p.Attachments != nil {
		m.Attachments = typedAttachments(*p.Attachments)
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p MessagePatch) IsEmpty() bool {
	return p.Content == nil && p.IsStreaming == nil && p.IsError == nil && p.Attachments == nil
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// Bool returns a pointer to b, for building patches.
func Bool(b bool) *bool { return &b }

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	c := *m
	c.Attachments = cloneAttachments(m.Attachments)
	return &c
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// NowMillis returns the current wall-clock time in milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// MillisToTime converts a millisecond timestamp to a time.Time.
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// NewMessageID creates a unique message ID.
func NewMessageID() string {
	return "msg_" + uuid.NewString()
}

// ClassifyAttachments fills each attachment's missing Type from its MIME type.
func (m *Message) ClassifyAttachments() {
	for i := range m.Attachments {
		if m.Attachments[i].Type == "" {
			m.Attachments[i].Type = AttachmentTypeOf(m.Attachments[i].MimeType)
		}
	}
}

func typedAttachments(in []Attachment) []Attachment {
	m := Message{Attachments: cloneAttachments(in)}
	m.ClassifyAttachments()
	return m.Attachments
}

func cloneAttachments(in []Attachment) []Attachment {
	if in == nil {
		return nil
	}
	out := make([]Attachment, len(in))
	copy(out, in)
	return out
}
