// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Sender identifies who authored a message. Exactly two values exist.
type Sender string

const (
	// SenderUser is a message typed by the user.
	SenderUser Sender = "user"

	// SenderAI is a message produced by the backend assistant.
	SenderAI Sender = "ai"
)

// Message is one turn in a conversation.
//
// IDs are numeric and monotonically increasing within a process; the
// store owns the counter and reseeds it above any persisted id on load.
type Message struct {
	ID     int64  `json:"id"`
	Sender Sender `json:"sender"`
	Text   string `json:"text"`

	// Context holds the retrieval excerpts the backend used for this
	// reply. Only present on AI messages that used retrieval.
	Context []RetrievedContext `json:"context,omitempty"`
}

// IsUser reports whether the message was authored by the user.
func (m *Message) IsUser() bool {
	return m.Sender == SenderUser
}

// IsAI reports whether the message was authored by the assistant.
func (m *Message) IsAI() bool {
	return m.Sender == SenderAI
}

// HistoryEntry is the role/content pair sent to the backend as prior
// conversation context.
type HistoryEntry struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ToHistory converts messages into the backend's history format.
// The greeting and any error banners are AI messages too; all turns are
// forwarded and the backend decides what to attend to.
func ToHistory(messages []Message) []HistoryEntry {
	history := make([]HistoryEntry, 0, len(messages))
	for _, msg := range messages {
		role := "assistant"
		if msg.Sender == SenderUser {
			role = "user"
		}
		if msg.Text == "" {
			continue
		}
		history = append(history, HistoryEntry{Role: role, Content: msg.Text})
	}
	return history
}
