// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"strings"
)

// =============================================================================
// RETRIEVED CONTEXT
// =============================================================================

// RetrievedContext is a scored excerpt returned by the backend's
// retrieval step and attached to an AI message.
//
// The id is conventionally "<documentId>-<chunkIndex>". Score is a
// relevance score with no guaranteed range; higher is more relevant.
type RetrievedContext struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentID returns the document part of the chunk id, i.e. everything
// before the trailing "-<chunkIndex>" suffix. IDs without a chunk
// suffix are returned unchanged.
func (rc *RetrievedContext) DocumentID() string {
	idx := strings.LastIndex(rc.ID, "-")
	if idx <= 0 {
		return rc.ID
	}
	// Only strip a numeric chunk suffix; document ids may themselves
	// contain hyphens.
	suffix := rc.ID[idx+1:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return rc.ID
		}
	}
	return rc.ID[:idx]
}

// Source returns the "source" metadata value when present.
func (rc *RetrievedContext) Source() string {
	if rc.Metadata == nil {
		return ""
	}
	if s, ok := rc.Metadata["source"].(string); ok {
		return s
	}
	return ""
}

// DedupeSources collapses context entries to one per document, keeping
// the highest-scoring chunk for each, sorted descending by score.
// Used for the "document sources" display so a document retrieved
// through several chunks is listed once.
func DedupeSources(entries []RetrievedContext) []RetrievedContext {
	best := make(map[string]RetrievedContext)
	order := make([]string, 0, len(entries))

	for _, entry := range entries {
		doc := entry.DocumentID()
		prev, seen := best[doc]
		if !seen {
			order = append(order, doc)
			best[doc] = entry
			continue
		}
		if entry.Score > prev.Score {
			best[doc] = entry
		}
	}

	result := make([]RetrievedContext, 0, len(order))
	for _, doc := range order {
		result = append(result, best[doc])
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})

	return result
}
