// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package title derives a short human-readable conversation title from
// the first user/AI exchange.
//
// This is a best-effort heuristic, not a correctness-critical
// algorithm: every input, including empty strings, produces some
// non-empty title, terminating at the literal "New Chat" fallback.
package title
