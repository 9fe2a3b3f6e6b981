// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrorType classifies a failure for retry policy and display.
type ErrorType string

const (
	ErrNetwork      ErrorType = "NETWORK_ERROR"
	ErrServer       ErrorType = "SERVER_ERROR"
	ErrRateLimit    ErrorType = "RATE_LIMIT"
	ErrUnauthorized ErrorType = "UNAUTHORIZED"
	ErrBadRequest   ErrorType = "BAD_REQUEST"
	ErrTimeout      ErrorType = "TIMEOUT"
	ErrUpload       ErrorType = "UPLOAD_ERROR"
	ErrUnknown      ErrorType = "UNKNOWN"
)

// ChatError is the typed error every backend failure is translated to.
//
// Message is the internal diagnostic string; UserMessage is pre-written
// display text. Retryable governs both automatic retry and whether a
// caller should auto-hide the notification.
type ChatError struct {
	Type        ErrorType
	Message     string
	UserMessage string
	StatusCode  int // 0 when no HTTP response was received
	Retryable   bool
	Timestamp   time.Time
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is implements errors.Is support; two ChatErrors match when their
// types match, so callers can compare against &ChatError{Type: ...}.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Severe reports whether the error class should not auto-dismiss when
// displayed (connectivity and server-side failures).
func (e *ChatError) Severe() bool {
	return e.Type == ErrServer || e.Type == ErrNetwork
}

// newChatError stamps the creation time.
func newChatError(typ ErrorType, message, userMessage string, status int, retryable bool) *ChatError {
	return &ChatError{
		Type:        typ,
		Message:     message,
		UserMessage: userMessage,
		StatusCode:  status,
		Retryable:   retryable,
		Timestamp:   time.Now(),
	}
}

// FromStatus maps a non-2xx HTTP status to a ChatError.
func FromStatus(status int, statusText string) *ChatError {
	switch status {
	case http.StatusBadRequest:
		return newChatError(ErrBadRequest,
			fmt.Sprintf("bad request: %s", statusText),
			"Your message couldn't be processed. Please try rephrasing your question.",
			status, false)
	case http.StatusUnauthorized:
		return newChatError(ErrUnauthorized,
			fmt.Sprintf("unauthorized: %s", statusText),
			"Authentication failed. Please refresh the page and try again.",
			status, false)
	case http.StatusTooManyRequests:
		return newChatError(ErrRateLimit,
			fmt.Sprintf("rate limit exceeded: %s", statusText),
			"Too many requests. Please wait a moment before trying again.",
			status, true)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return newChatError(ErrServer,
			fmt.Sprintf("server error: %s", statusText),
			"Our servers are experiencing issues. We're working to fix this.",
			status, true)
	case http.StatusGatewayTimeout:
		return newChatError(ErrTimeout,
			fmt.Sprintf("gateway timeout: %s", statusText),
			"The request took too long to process. Please try again.",
			status, true)
	default:
		return newChatError(ErrUnknown,
			fmt.Sprintf("unexpected status: %d %s", status, statusText),
			"Something went wrong. Please try again.",
			status, true)
	}
}

// FromTransportError maps a network-level failure (no HTTP response
// received) to a ChatError. Cancellation and deadline expiry count as
// timeouts; everything else is a connectivity failure. Both are
// retryable.
func FromTransportError(err error) *ChatError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newChatError(ErrTimeout,
			"request was cancelled",
			"Request was cancelled. Please try again.",
			0, true)
	}
	return newChatError(ErrNetwork,
		fmt.Sprintf("network error: %v", err),
		"Unable to connect to the server. Please check your internet connection.",
		0, true)
}

// UploadError builds an UPLOAD_ERROR. detail is the server-provided
// message when present; retryable is false for deletions to avoid
// double-delete ambiguity.
func UploadError(detail string, status int, retryable bool) *ChatError {
	if detail == "" {
		detail = "upload failed"
	}
	return newChatError(ErrUpload, detail, detail, status, retryable)
}

// WrapUnknown wraps an unexpected non-ChatError so callers above the
// client never see anything but the taxonomy. ChatErrors pass through
// unchanged.
func WrapUnknown(err error) *ChatError {
	var chatErr *ChatError
	if errors.As(err, &chatErr) {
		return chatErr
	}
	return newChatError(ErrUnknown,
		fmt.Sprintf("unexpected error: %v", err),
		"Something went wrong. Please try again.",
		0, true)
}
