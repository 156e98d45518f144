// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("a", 60)
	exact := strings.Repeat("b", 50)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "short", content: "hello", want: "hello"},
		{name: "exactly fifty", content: exact, want: exact},
		{name: "longer than fifty", content: long, want: long[:50] + "..."},
		{name: "unicode counted by rune", content: strings.Repeat("é", 55), want: strings.Repeat("é", 50) + "..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveTitle(tc.content); got != tc.want {
				t.Errorf("DeriveTitle() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestConversation_AppendDerivesTitleFromFirstUserMessage(t *testing.T) {
	conv := NewConversation("", 1000)
	content := strings.Repeat("x", 51)

	conv.Append(MessageDraft{Type: TypeUser, Content: content}, 1001)
	assert.Equal(t, content[:50]+"...", conv.Title)

	conv.Append(MessageDraft{Type: TypeUser, Content: "second"}, 1002)
	assert.Equal(t, content[:50]+"...", conv.Title, "title only derives from the first message")
}

func TestConversation_AppendKeepsExplicitTitle(t *testing.T) {
	conv := NewConversation("Trip Planning", 1000)
	conv.Append(MessageDraft{Type: TypeUser, Content: "where to?"}, 1001)
	assert.Equal(t, "Trip Planning", conv.Title)
}

func TestConversation_AssistantFirstDoesNotDeriveTitle(t *testing.T) {
	conv := NewConversation("", 1000)
	conv.Append(MessageDraft{Type: TypeAssistant, Content: "hi"}, 1001)
	conv.Append(MessageDraft{Type: TypeUser, Content: "hello"}, 1002)
	assert.Empty(t, conv.Title)
	assert.Equal(t, DefaultTitle, conv.DisplayTitle())
}

// =============================================================================
// MESSAGE MANAGEMENT TESTS
// =============================================================================

func TestConversation_AppendAssignsUniqueIDs(t *testing.T) {
	conv := NewConversation("", 1)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		msg := conv.Append(MessageDraft{Type: TypeUser, Content: "m"}, int64(i+1))
		require.False(t, seen[msg.ID], "duplicate id %s", msg.ID)
		seen[msg.ID] = true
		require.Equal(t, i+1, conv.MessageCount())
	}
}

func TestConversation_UpdateMergesFields(t *testing.T) {
	conv := NewConversation("", 1)
	msg := conv.Append(MessageDraft{Type: TypeAssistant, IsStreaming: true}, 2)

	ok := conv.Update(msg.ID, MessagePatch{Content: String("partial")}, 3)
	require.True(t, ok)
	assert.Equal(t, "partial", msg.Content)
	assert.True(t, msg.IsStreaming, "unset fields are untouched")

	ok = conv.Update(msg.ID, MessagePatch{IsStreaming: Bool(false), IsError: Bool(true)}, 4)
	require.True(t, ok)
	assert.False(t, msg.IsStreaming)
	assert.True(t, msg.IsError)
	assert.Equal(t, "partial", msg.Content)
	assert.Equal(t, int64(4), conv.UpdatedAt)

	assert.False(t, conv.Update("missing", MessagePatch{Content: String("x")}, 5))
}

func TestConversation_RemovePreservesOrder(t *testing.T) {
	conv := NewConversation("", 1)
	a := conv.Append(MessageDraft{Type: TypeUser, Content: "a"}, 2)
	b := conv.Append(MessageDraft{Type: TypeAssistant, Content: "b"}, 3)
	c := conv.Append(MessageDraft{Type: TypeUser, Content: "c"}, 4)

	require.True(t, conv.Remove(b.ID, 5))
	require.False(t, conv.Remove(b.ID, 6))

	require.Len(t, conv.Messages, 2)
	assert.Equal(t, a.ID, conv.Messages[0].ID)
	assert.Equal(t, c.ID, conv.Messages[1].ID)
}

func TestConversation_InsertAfter(t *testing.T) {
	conv := NewConversation("", 1)
	a := conv.Append(MessageDraft{Type: TypeUser, Content: "a"}, 2)
	c := conv.Append(MessageDraft{Type: TypeUser, Content: "c"}, 3)

	b := conv.InsertAfter(a.ID, MessageDraft{Type: TypeAssistant, Content: "b"}, 4)
	require.NotNil(t, b)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{conv.Messages[0].ID, conv.Messages[1].ID, conv.Messages[2].ID})
	assert.Equal(t, int64(4), conv.UpdatedAt)

	last := conv.InsertAfter(c.ID, MessageDraft{Type: TypeAssistant}, 5)
	require.NotNil(t, last)
	assert.Equal(t, last.ID, conv.LastMessage().ID)

	assert.Nil(t, conv.InsertAfter("missing", MessageDraft{Type: TypeUser}, 6))
}

func TestConversation_TouchIsMonotonic(t *testing.T) {
	conv := NewConversation("", 100)
	conv.Touch(200)
	conv.Touch(150)
	assert.Equal(t, int64(200), conv.UpdatedAt)

	conv = NewConversation("", 100)
	conv.Touch(50)
	assert.Equal(t, int64(100), conv.UpdatedAt)
}

func TestConversation_CloneIsDeep(t *testing.T) {
	conv := NewConversation("", 1)
	msg := conv.Append(MessageDraft{
		Type:        TypeUser,
		Content:     "hi",
		Attachments: []Attachment{{ID: "a1", Name: "photo.png"}},
	}, 2)

	clone := conv.Clone()
	clone.Messages[0].Content = "changed"
	clone.Messages[0].Attachments[0].Name = "other.png"

	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, "photo.png", msg.Attachments[0].Name)
}

func TestAttachmentTypeOf(t *testing.T) {
	assert.Equal(t, AttachmentImage, AttachmentTypeOf("image/png"))
	assert.Equal(t, AttachmentImage, AttachmentTypeOf("IMAGE/JPEG"))
	assert.Equal(t, AttachmentDocument, AttachmentTypeOf("application/pdf"))
	assert.Equal(t, AttachmentDocument, AttachmentTypeOf(""))
}

func TestConversation_AppendClassifiesAttachments(t *testing.T) {
	conv := NewConversation("", 1)
	msg := conv.Append(MessageDraft{
		Type:    TypeUser,
		Content: "see attached",
		Attachments: []Attachment{
			{ID: "a1", Name: "photo.png", MimeType: "image/png"},
			{ID: "a2", Name: "notes.txt", MimeType: "text/plain"},
			{ID: "a3", Name: "scan", MimeType: "application/pdf", Type: AttachmentImage},
		},
	}, 2)

	assert.Equal(t, AttachmentImage, msg.Attachments[0].Type)
	assert.Equal(t, AttachmentDocument, msg.Attachments[1].Type)
	assert.Equal(t, AttachmentImage, msg.Attachments[2].Type, "an explicit type is kept")
}

// =============================================================================
// SEARCH TESTS
// =============================================================================

func TestConversation_Matches(t *testing.T) {
	conv := NewConversation("Recipe Ideas", 1)
	conv.Append(MessageDraft{Type: TypeUser, Content: "pasta carbonara"}, 2)

	assert.True(t, conv.Matches("", nil))
	assert.True(t, conv.Matches("PASTA", nil))
	assert.True(t, conv.Matches("recipe", nil))
	assert.False(t, conv.Matches("trip", nil))
}

func TestConversation_NormalizeFinalizesStreaming(t *testing.T) {
	conv := &Conversation{
		ID:        "conv_1",
		CreatedAt: 10,
		UpdatedAt: 5,
		Messages:  []*Message{{ID: "m1", Type: TypeAssistant, IsStreaming: true}, nil},
	}
	conv.Normalize()

	require.Len(t, conv.Messages, 1)
	assert.False(t, conv.Messages[0].IsStreaming)
	assert.Equal(t, int64(10), conv.UpdatedAt)
}

func TestMessageType_DisplayName(t *testing.T) {
	assert.Equal(t, "User", TypeUser.DisplayName())
	assert.Equal(t, "Claude", TypeAssistant.DisplayName())
	assert.False(t, MessageType("system").Valid())
}
