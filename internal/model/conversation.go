// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is the sentinel title of a conversation that has not yet
// been summarized. The title summarizer only ever replaces this value,
// which gives rename-once semantics.
const DefaultTitle = "New Chat"

// Greeting seeds every new conversation so the message list is never
// empty after creation.
const Greeting = "Hello! How can I help you with your scholarship questions today?"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is one chat thread: ordered messages, a title, and
// millisecond timestamps. Messages are append-only; insertion order is
// chronological order.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"` // Unix milliseconds
	UpdatedAt int64     `json:"updatedAt"` // Unix milliseconds
}

// NewConversation creates a blank conversation seeded with the greeting.
// greetingID is the message id to assign to the seeded message.
func NewConversation(greetingID int64) *Conversation {
	now := time.Now().UnixMilli()
	return &Conversation{
		ID:    uuid.New().String(),
		Title: DefaultTitle,
		Messages: []Message{
			{ID: greetingID, Sender: SenderAI, Text: Greeting},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a message and refreshes UpdatedAt.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now().UnixMilli()
}

// FirstUserMessage returns the first user-authored message, or nil.
func (c *Conversation) FirstUserMessage() *Message {
	for i := range c.Messages {
		if c.Messages[i].Sender == SenderUser {
			return &c.Messages[i]
		}
	}
	return nil
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// HasDefaultTitle reports whether the title is still the sentinel.
func (c *Conversation) HasDefaultTitle() bool {
	return c.Title == DefaultTitle
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// MaxMessageID returns the largest message id in the conversation,
// or 0 if there are no messages.
func (c *Conversation) MaxMessageID() int64 {
	var max int64
	for i := range c.Messages {
		if c.Messages[i].ID > max {
			max = c.Messages[i].ID
		}
	}
	return max
}

// Preview returns the first user message truncated for list display,
// falling back to the greeting.
func (c *Conversation) Preview(maxRunes int) string {
	text := Greeting
	if first := c.FirstUserMessage(); first != nil {
		text = first.Text
	}
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", "")
	runes := []rune(text)
	if len(runes) > maxRunes && maxRunes > 3 {
		return string(runes[:maxRunes-3]) + "..."
	}
	return text
}

// Clone returns a deep copy of the conversation. Context slices are
// copied shallowly; entries are never mutated after append.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = make([]Message, len(c.Messages))
	copy(clone.Messages, c.Messages)
	return &clone
}
