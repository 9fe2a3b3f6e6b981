// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for the GoodnightGPT backend.
//
// The client wraps every operation with a wall-clock timeout, maps
// transport and HTTP failures into the typed error taxonomy, and
// retries retryable failures with exponential backoff. It is the sole
// translator from transport-level failures to *ChatError; callers only
// ever need to special-case that one type.
package api
