// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store is the single source of truth for conversation threads
// and the local uploaded-document cache.
//
// Both collections persist as whole JSON arrays, replaced wholesale
// after every mutation. Persistence is best-effort: failures are
// logged and never surfaced to callers, since the in-memory state
// remains authoritative for the session.
package store
