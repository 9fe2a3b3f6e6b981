// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goodnight-labs/goodnightgpt/internal/util"
)

// =============================================================================
// UPLOADED DOCUMENT CACHE
// =============================================================================

// UploadedDocument is the locally-tracked metadata for one knowledge
// base upload. DocumentID is the backend's id, used for deletion.
type UploadedDocument struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	FileType      string `json:"fileType"`
	ChunksIndexed int    `json:"chunksIndexed"`
	UploadedAt    int64  `json:"uploadedAt"` // Unix milliseconds
	DocumentID    string `json:"documentId"`
}

// DocumentCache mirrors the backend's document list for offline
// display. The backend listing is authoritative; this cache tolerates
// being empty or stale.
type DocumentCache struct {
	mu   sync.Mutex
	path string
	docs []UploadedDocument
}

// OpenDocumentCache loads the cache from path. Any read or parse
// failure yields an empty cache.
func OpenDocumentCache(path string) *DocumentCache {
	c := &DocumentCache{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	if err := json.Unmarshal(data, &c.docs); err != nil {
		log.Printf("document cache: ignoring malformed state file: %v", err)
		c.docs = nil
		return c
	}

	// Entries written before deletion support carried no backend id.
	for i := range c.docs {
		if c.docs[i].DocumentID == "" {
			c.docs[i].DocumentID = "legacy-" + c.docs[i].ID
		}
	}
	return c
}

// Add records a fresh upload at the head of the list.
func (c *DocumentCache) Add(filename, fileType string, chunks int, documentID string) UploadedDocument {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc := UploadedDocument{
		ID:            uuid.New().String(),
		Filename:      filename,
		FileType:      fileType,
		ChunksIndexed: chunks,
		UploadedAt:    time.Now().UnixMilli(),
		DocumentID:    documentID,
	}
	c.docs = append([]UploadedDocument{doc}, c.docs...)
	c.persistLocked()
	return doc
}

// Remove drops the entry whose backend document id matches. Unknown
// ids are a no-op.
func (c *DocumentCache) Remove(documentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, doc := range c.docs {
		if doc.DocumentID == documentID {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			c.persistLocked()
			return
		}
	}
}

// List returns a copy of the cached entries, newest first.
func (c *DocumentCache) List() []UploadedDocument {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]UploadedDocument, len(c.docs))
	copy(out, c.docs)
	return out
}

// Find returns the entry for a backend document id, if cached.
func (c *DocumentCache) Find(documentID string) (UploadedDocument, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, doc := range c.docs {
		if doc.DocumentID == documentID {
			return doc, true
		}
	}
	return UploadedDocument{}, false
}

// persistLocked mirrors the list to disk, best-effort.
func (c *DocumentCache) persistLocked() {
	data, err := json.MarshalIndent(c.docs, "", "  ")
	if err != nil {
		log.Printf("document cache: marshal failed: %v", err)
		return
	}
	if err := util.AtomicWriteFile(c.path, data, 0600); err != nil {
		log.Printf("document cache: persist failed: %v", err)
	}
}
