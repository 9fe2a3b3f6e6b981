// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"github.com/goodnight-labs/goodnightgpt/internal/model"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatRequest is the body of POST {base}/chat.
type ChatRequest struct {
	Message string               `json:"message"`
	History []model.HistoryEntry `json:"history,omitempty"`
}

// ChatResponse is the body of a successful chat reply.
type ChatResponse struct {
	Response string                   `json:"response"`
	Context  []model.RetrievedContext `json:"context,omitempty"`
}

// UploadResponse is the body of a successful document upload.
type UploadResponse struct {
	Message       string `json:"message"`
	ChunksIndexed int    `json:"chunks_indexed"`
	FileType      string `json:"file_type"`
	Columns       int    `json:"columns,omitempty"`
	Pages         int    `json:"pages,omitempty"`
	DocumentID    string `json:"document_id"`
}

// DeleteResponse is the body of a successful document deletion.
type DeleteResponse struct {
	Message        string `json:"message"`
	VectorsDeleted int    `json:"vectors_deleted"`
}

// DocumentInfo describes one indexed document as reported by the
// backend listing endpoint. The backend listing is authoritative; the
// local cache in the store package only mirrors it.
type DocumentInfo struct {
	DocumentID   string `json:"document_id"`
	Source       string `json:"source"`
	Type         string `json:"type"`
	ChunkCount   int    `json:"chunk_count"`
	TotalChunks  int    `json:"total_chunks"`
	ColumnsCount int    `json:"columns_count,omitempty"`
	Pages        int    `json:"pages,omitempty"`
}

// documentsResponse is the internal envelope of GET {base}/documents.
type documentsResponse struct {
	Documents []DocumentInfo `json:"documents"`
}

// errorDetail is the error envelope some backend failures carry.
type errorDetail struct {
	Detail string `json:"detail"`
}
