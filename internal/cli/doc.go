// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the interactive goodnightgpt terminal client:
// a readline-style REPL over the conversation store, the backend API
// client, and the connection monitor.
package cli
