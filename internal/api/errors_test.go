// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestFromStatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		wantType  ErrorType
		retryable bool
	}{
		{400, ErrBadRequest, false},
		{401, ErrUnauthorized, false},
		{429, ErrRateLimit, true},
		{500, ErrServer, true},
		{502, ErrServer, true},
		{503, ErrServer, true},
		{504, ErrTimeout, true},
		{418, ErrUnknown, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, "test")
			if err.Type != tt.wantType {
				t.Errorf("type = %v, want %v", err.Type, tt.wantType)
			}
			if err.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", err.Retryable, tt.retryable)
			}
			if err.StatusCode != tt.status {
				t.Errorf("status code = %d, want %d", err.StatusCode, tt.status)
			}
			if err.UserMessage == "" {
				t.Error("user message is empty")
			}
			if err.Timestamp.IsZero() {
				t.Error("timestamp not stamped")
			}
		})
	}
}

func TestFromTransportError(t *testing.T) {
	if err := FromTransportError(context.DeadlineExceeded); err.Type != ErrTimeout {
		t.Errorf("deadline exceeded mapped to %v, want %v", err.Type, ErrTimeout)
	}
	if err := FromTransportError(context.Canceled); err.Type != ErrTimeout {
		t.Errorf("cancellation mapped to %v, want %v", err.Type, ErrTimeout)
	}

	netErr := FromTransportError(errors.New("dial tcp: connection refused"))
	if netErr.Type != ErrNetwork {
		t.Errorf("connection failure mapped to %v, want %v", netErr.Type, ErrNetwork)
	}
	if !netErr.Retryable {
		t.Error("network error should be retryable")
	}
	if netErr.StatusCode != 0 {
		t.Errorf("status code = %d, want 0 for transport errors", netErr.StatusCode)
	}
}

func TestChatErrorIs(t *testing.T) {
	err := FromStatus(503, "Service Unavailable")
	if !errors.Is(err, &ChatError{Type: ErrServer}) {
		t.Error("errors.Is failed to match by type")
	}
	if errors.Is(err, &ChatError{Type: ErrRateLimit}) {
		t.Error("errors.Is matched the wrong type")
	}
	if errors.Is(err, errors.New("plain")) {
		t.Error("errors.Is matched a non-ChatError")
	}
}

func TestChatErrorSevere(t *testing.T) {
	severe := map[ErrorType]bool{
		ErrServer:       true,
		ErrNetwork:      true,
		ErrRateLimit:    false,
		ErrBadRequest:   false,
		ErrUnauthorized: false,
		ErrTimeout:      false,
		ErrUpload:       false,
		ErrUnknown:      false,
	}
	for typ, want := range severe {
		err := &ChatError{Type: typ}
		if got := err.Severe(); got != want {
			t.Errorf("%v.Severe() = %v, want %v", typ, got, want)
		}
	}
}

func TestChatErrorError(t *testing.T) {
	withStatus := FromStatus(500, "Internal Server Error")
	if got := withStatus.Error(); got == "" || !errors.As(error(withStatus), new(*ChatError)) {
		t.Errorf("Error() = %q", got)
	}

	noStatus := FromTransportError(errors.New("refused"))
	if noStatus.Error() == "" {
		t.Error("Error() returned empty string")
	}
}

func TestWrapUnknownPassesChatErrorThrough(t *testing.T) {
	original := FromStatus(429, "Too Many Requests")
	wrapped := WrapUnknown(fmt.Errorf("while sending: %w", original))
	if wrapped != original {
		t.Error("WrapUnknown rebuilt an existing ChatError")
	}

	plain := WrapUnknown(errors.New("boom"))
	if plain.Type != ErrUnknown {
		t.Errorf("plain error mapped to %v, want %v", plain.Type, ErrUnknown)
	}
	if !plain.Retryable {
		t.Error("unknown errors should be retryable")
	}
}

func TestUploadErrorDefaultsDetail(t *testing.T) {
	err := UploadError("", 0, false)
	if err.Message == "" || err.UserMessage == "" {
		t.Error("empty detail should get a default message")
	}
	if err.Type != ErrUpload {
		t.Errorf("type = %v, want %v", err.Type, ErrUpload)
	}
}
