// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	"github.com/goodnight-labs/goodnightgpt/internal/model"
	"github.com/goodnight-labs/goodnightgpt/internal/util"
)

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store holds the ordered conversation collection and the current
// selection pointer. New conversations are prepended, so index 0 is
// always the most recently created thread.
type Store struct {
	mu sync.Mutex

	path          string
	conversations []*model.Conversation
	currentID     string

	// nextMsgID is seeded above the largest persisted message id so
	// ids stay unique across reloads.
	nextMsgID int64
}

// Open loads the persisted collection from path. A missing, empty, or
// malformed file falls back to a freshly created single conversation.
func Open(path string) *Store {
	s := &Store{path: path, nextMsgID: 1}

	data, err := os.ReadFile(path)
	if err == nil {
		var parsed []*model.Conversation
		if jsonErr := json.Unmarshal(data, &parsed); jsonErr == nil {
			// A JSON null still unmarshals into a nil element; keep
			// only real conversations.
			for _, conv := range parsed {
				if conv != nil {
					s.conversations = append(s.conversations, conv)
				}
			}
		} else {
			log.Printf("conversation store: ignoring malformed state file: %v", jsonErr)
		}
	}

	// Reseed the message-id counter strictly above anything persisted.
	for _, conv := range s.conversations {
		if max := conv.MaxMessageID(); max >= s.nextMsgID {
			s.nextMsgID = max + 1
		}
	}

	if len(s.conversations) == 0 {
		fresh := model.NewConversation(s.nextMessageIDLocked())
		s.conversations = []*model.Conversation{fresh}
	}
	s.currentID = s.conversations[0].ID

	return s
}

// nextMessageIDLocked hands out the next message id. Callers hold mu
// (or, during Open, exclusive ownership).
func (s *Store) nextMessageIDLocked() int64 {
	id := s.nextMsgID
	s.nextMsgID++
	return id
}

// NextMessageID returns a fresh message id.
func (s *Store) NextMessageID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextMessageIDLocked()
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Create builds a fresh conversation seeded with the greeting,
// prepends it, and makes it current.
func (s *Store) Create() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := model.NewConversation(s.nextMessageIDLocked())
	s.conversations = append([]*model.Conversation{fresh}, s.conversations...)
	s.currentID = fresh.ID
	s.persistLocked()
	return fresh
}

// Select makes the addressed conversation current. Unknown ids are a
// silent no-op; callers are expected to only offer valid ids.
func (s *Store) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) != nil {
		s.currentID = id
	}
}

// Delete removes the conversation. Deleting the last remaining thread
// leaves the collection empty with no current selection; the caller
// decides when to create a replacement.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, conv := range s.conversations {
		if conv.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	if len(s.conversations) == 0 {
		s.currentID = ""
	} else if s.currentID == id {
		s.currentID = s.conversations[0].ID
	}
	s.persistLocked()
}

// Append adds a message to the addressed conversation and bumps its
// UpdatedAt. Unknown conversation ids are a no-op; this operation
// never fails from the caller's perspective.
func (s *Store) Append(conversationID string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil {
		return
	}
	conv.Append(msg)
	s.persistLocked()
}

// RenameIfDefault replaces the title only while it still equals the
// "New Chat" sentinel. Once replaced, later calls have no effect, so
// the summarizer can never clobber a manual rename.
func (s *Store) RenameIfDefault(conversationID, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil || !conv.HasDefaultTitle() || title == "" {
		return false
	}
	conv.Title = title
	s.persistLocked()
	return true
}

// Rename sets the title unconditionally (manual rename).
func (s *Store) Rename(conversationID, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil || title == "" {
		return false
	}
	conv.Title = title
	s.persistLocked()
	return true
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Current returns the selected conversation, or nil when the
// collection is empty.
func (s *Store) Current() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(s.currentID)
}

// CurrentID returns the selected conversation id ("" when empty).
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// Get returns a conversation by id, or nil.
func (s *Store) Get(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(id)
}

// List returns the conversations in collection order (most recently
// created first). The slice is a copy; the elements are shared.
func (s *Store) List() []*model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// findLocked returns the conversation with the given id. Callers hold mu.
func (s *Store) findLocked(id string) *model.Conversation {
	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persistLocked writes the whole collection as one JSON array,
// replacing the previous file atomically. Failures are logged and
// swallowed: loss of persistence is non-fatal to the session.
func (s *Store) persistLocked() {
	data, err := json.MarshalIndent(s.conversations, "", "  ")
	if err != nil {
		log.Printf("conversation store: marshal failed: %v", err)
		return
	}
	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		log.Printf("conversation store: persist failed: %v", err)
	}
}
