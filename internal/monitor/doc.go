// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package monitor tracks backend reachability with a periodic probe.
//
// The monitor classifies the connection as checking, online, degraded,
// or offline based on probe success and round-trip time, and notifies
// a callback on every state change so the UI can react without polling.
package monitor
