// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the connection state as shown to the user.
type Status string

const (
	// StatusChecking is the initial state before the first probe
	// completes.
	StatusChecking Status = "checking"

	// StatusOnline means the last probe succeeded quickly.
	StatusOnline Status = "online"

	// StatusDegraded means the last probe succeeded but took longer
	// than DegradedThreshold.
	StatusDegraded Status = "degraded"

	// StatusOffline means the last probe failed.
	StatusOffline Status = "offline"
)

// Usable reports whether requests should be attempted in this state.
// Degraded still counts: slow is not down.
func (s Status) Usable() bool {
	return s == StatusOnline || s == StatusDegraded
}

// Indicator returns a short badge for the status line.
func (s Status) Indicator() string {
	switch s {
	case StatusOnline:
		return "● online"
	case StatusDegraded:
		return "◐ degraded"
	case StatusOffline:
		return "○ offline"
	default:
		return "… checking"
	}
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultInterval is how often the background loop probes.
	DefaultInterval = 30 * time.Second

	// DefaultProbeTimeout bounds a single probe.
	DefaultProbeTimeout = 5 * time.Second

	// DegradedThreshold is the round-trip time above which a
	// successful probe is still reported as degraded.
	DegradedThreshold = 3000 * time.Millisecond
)

// Classify maps one probe result to a status. Pure so it can be
// tested without a network.
func Classify(err error, rtt time.Duration) Status {
	if err != nil {
		return StatusOffline
	}
	if rtt > DegradedThreshold {
		return StatusDegraded
	}
	return StatusOnline
}

// =============================================================================
// MONITOR
// =============================================================================

// ProbeFunc performs one reachability check. A nil return means the
// backend answered.
type ProbeFunc func(ctx context.Context) error

// Monitor runs the probe periodically and tracks the resulting state.
type Monitor struct {
	mu           sync.Mutex
	probe        ProbeFunc
	interval     time.Duration
	probeTimeout time.Duration
	status       Status
	lastCheck    time.Time
	lastRTT      time.Duration
	lastErr      error
	onChange     func(old, new Status)
}

// New creates a monitor in the checking state. The probe runs only
// when Start or CheckNow is called.
func New(probe ProbeFunc) *Monitor {
	return &Monitor{
		probe:        probe,
		interval:     DefaultInterval,
		probeTimeout: DefaultProbeTimeout,
		status:       StatusChecking,
	}
}

// WithInterval overrides the background probe interval.
func (m *Monitor) WithInterval(d time.Duration) *Monitor {
	if d > 0 {
		m.interval = d
	}
	return m
}

// WithProbeTimeout overrides the per-probe timeout.
func (m *Monitor) WithProbeTimeout(d time.Duration) *Monitor {
	if d > 0 {
		m.probeTimeout = d
	}
	return m
}

// OnChange registers a callback fired whenever the status changes.
// The callback runs outside the monitor's lock, so it may call back
// into the monitor.
func (m *Monitor) OnChange(fn func(old, new Status)) *Monitor {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
	return m
}

// Status returns the current connection state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsUsable reports whether sending a request is worth attempting.
func (m *Monitor) IsUsable() bool {
	return m.Status().Usable()
}

// LastCheck returns when the most recent probe finished. Zero before
// the first probe.
func (m *Monitor) LastCheck() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCheck
}

// LastRTT returns the round-trip time of the most recent successful
// probe.
func (m *Monitor) LastRTT() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRTT
}

// LastError returns the failure from the most recent probe, or nil.
func (m *Monitor) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// CheckNow runs one probe immediately and returns the new status.
func (m *Monitor) CheckNow(ctx context.Context) Status {
	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	start := time.Now()
	err := m.probe(pctx)
	rtt := time.Since(start)

	return m.record(Classify(err, rtt), rtt, err)
}

// ForceOffline marks the connection offline without probing. Used
// when a request just failed with a network error, so the UI reflects
// reality before the next scheduled probe.
func (m *Monitor) ForceOffline() {
	m.record(StatusOffline, 0, nil)
}

// Start runs the probe loop until ctx is cancelled. The first probe
// fires immediately.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		m.CheckNow(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckNow(ctx)
			}
		}
	}()
}

// record updates the tracked state and fires the change callback
// outside the lock.
func (m *Monitor) record(next Status, rtt time.Duration, err error) Status {
	m.mu.Lock()
	old := m.status
	m.status = next
	m.lastCheck = time.Now()
	m.lastErr = err
	if err == nil && rtt > 0 {
		m.lastRTT = rtt
	}
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil && old != next {
		fn(old, next)
	}
	return next
}
