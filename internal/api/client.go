// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/goodnight-labs/goodnightgpt/internal/model"
)

// Configuration constants for the backend API.
const (
	// DefaultChatTimeout bounds a single chat request.
	DefaultChatTimeout = 30 * time.Second

	// DefaultUploadTimeout bounds a document upload (larger payloads).
	DefaultUploadTimeout = 60 * time.Second

	// DefaultDeleteTimeout bounds a document deletion.
	DefaultDeleteTimeout = 30 * time.Second

	// DefaultHealthTimeout bounds the liveness probe.
	DefaultHealthTimeout = 5 * time.Second

	// DefaultChatRetries is how many times a retryable chat failure is
	// re-attempted after the first try.
	DefaultChatRetries = 2

	// DefaultUploadRetries is the retry ceiling for uploads. Deletions
	// are never retried.
	DefaultUploadRetries = 1

	// retryBaseDelay is the backoff before the first re-attempt; it
	// doubles per attempt up to retryMaxDelay.
	retryBaseDelay = 1000 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	// MaxUploadSize is the client-side file size ceiling, checked
	// before any bytes are sent.
	MaxUploadSize = 10 * 1024 * 1024
)

// SupportedExtensions is the upload allow-list, checked client-side.
var SupportedExtensions = []string{".txt", ".pdf", ".docx", ".doc", ".csv"}

// sharedTransport pools connections across all clients.
var sharedTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the GoodnightGPT backend with uniform timeout, retry,
// and error-mapping behavior.
type Client struct {
	baseURL    string
	httpClient *http.Client

	chatTimeout   time.Duration
	uploadTimeout time.Duration
	deleteTimeout time.Duration
	healthTimeout time.Duration

	chatRetries   int
	uploadRetries int

	backoffBase time.Duration
	backoffMax  time.Duration

	// limiter paces outgoing sends so a rate-limited backend is not
	// hammered between user keystrokes. Nil disables pacing.
	limiter *rate.Limiter

	// nextID produces fresh local message ids for AI replies. The CLI
	// wires this to the conversation store's counter.
	nextID func() int64

	verbose bool
}

// NewClient creates a client for the given backend base URL.
func NewClient(baseURL string) *Client {
	fallbackID := new(atomic.Int64)
	fallbackID.Store(time.Now().UnixMilli())

	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		httpClient:    &http.Client{Transport: sharedTransport},
		chatTimeout:   DefaultChatTimeout,
		uploadTimeout: DefaultUploadTimeout,
		deleteTimeout: DefaultDeleteTimeout,
		healthTimeout: DefaultHealthTimeout,
		chatRetries:   DefaultChatRetries,
		uploadRetries: DefaultUploadRetries,
		backoffBase:   retryBaseDelay,
		backoffMax:    retryMaxDelay,
		nextID:        func() int64 { return fallbackID.Add(1) },
	}
}

// WithTimeouts overrides the per-operation timeouts. Zero values keep
// the current setting.
func (c *Client) WithTimeouts(chat, upload, del, health time.Duration) *Client {
	if chat > 0 {
		c.chatTimeout = chat
	}
	if upload > 0 {
		c.uploadTimeout = upload
	}
	if del > 0 {
		c.deleteTimeout = del
	}
	if health > 0 {
		c.healthTimeout = health
	}
	return c
}

// WithRetries overrides the retry ceilings.
func (c *Client) WithRetries(chat, upload int) *Client {
	if chat >= 0 {
		c.chatRetries = chat
	}
	if upload >= 0 {
		c.uploadRetries = upload
	}
	return c
}

// WithBackoff overrides the backoff base and cap.
func (c *Client) WithBackoff(base, max time.Duration) *Client {
	if base > 0 {
		c.backoffBase = base
	}
	if max > 0 {
		c.backoffMax = max
	}
	return c
}

// WithSendRate enables client-side send pacing at the given minimum
// interval between sends.
func (c *Client) WithSendRate(minInterval time.Duration) *Client {
	if minInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return c
}

// WithIDSource sets the generator for AI-message ids.
func (c *Client) WithIDSource(next func() int64) *Client {
	if next != nil {
		c.nextID = next
	}
	return c
}

// WithVerbose enables request/response logging.
func (c *Client) WithVerbose(v bool) *Client {
	c.verbose = v
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetBaseURL swaps the backend base URL (used by config live reload).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
}

// =============================================================================
// CHAT
// =============================================================================

// SendMessage posts a chat message and returns the AI reply as a fresh
// local Message. Retryable failures are re-attempted with exponential
// backoff up to the chat retry ceiling; non-retryable failures abort
// immediately. Exhausting retries returns the last error unchanged.
func (c *Client) SendMessage(ctx context.Context, text string, history []model.HistoryEntry) (*model.Message, error) {
	if c.limiter != nil {
		// Wait also fails fast, with its own error, when the pause
		// would outlive the context deadline; both cases are timeouts.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, newChatError(ErrTimeout,
				fmt.Sprintf("send pacing: %v", err),
				"Request was cancelled. Please try again.",
				0, true)
		}
	}

	var lastErr *ChatError

	for attempt := 0; attempt <= c.chatRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleepBackoff(ctx, attempt-1); err != nil {
				return nil, lastErr
			}
		}

		msg, chatErr := c.doChat(ctx, text, history)
		if chatErr == nil {
			return msg, nil
		}

		if !chatErr.Retryable {
			return nil, chatErr
		}
		lastErr = chatErr
	}

	return nil, lastErr
}

// doChat performs a single chat request.
func (c *Client) doChat(ctx context.Context, text string, history []model.HistoryEntry) (*model.Message, *ChatError) {
	reqCtx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	body, err := json.Marshal(ChatRequest{Message: text, History: history})
	if err != nil {
		return nil, WrapUnknown(err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, WrapUnknown(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, FromTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp)
	if err != nil {
		return nil, WrapUnknown(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, FromStatus(resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, WrapUnknown(fmt.Errorf("failed to parse chat response: %w", err))
	}

	replyText := chatResp.Response
	if replyText == "" {
		replyText = "(no response)"
	}

	return &model.Message{
		ID:      c.nextID(),
		Sender:  model.SenderAI,
		Text:    replyText,
		Context: chatResp.Context,
	}, nil
}

// =============================================================================
// DOCUMENT UPLOAD
// =============================================================================

// ValidateUpload checks the client-side constraints for an upload
// candidate without touching the network. Returns a descriptive
// UPLOAD_ERROR when the file is too large or of an unsupported type.
func ValidateUpload(filename string, size int64) *ChatError {
	if size > MaxUploadSize {
		return UploadError(
			fmt.Sprintf("File size must be less than %dMB", MaxUploadSize/(1024*1024)),
			0, false)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range SupportedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return UploadError(
		fmt.Sprintf("Unsupported file type. Supported types: %s", strings.Join(SupportedExtensions, ", ")),
		0, false)
}

// UploadDocument validates and uploads a file to the knowledge base.
// Validation failures are rejected locally before any request is made.
func (c *Client) UploadDocument(ctx context.Context, path string) (*UploadResponse, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, UploadError(fmt.Sprintf("cannot read file: %v", err), 0, false)
	}
	if chatErr := ValidateUpload(info.Name(), info.Size()); chatErr != nil {
		return nil, chatErr
	}

	var lastErr *ChatError

	for attempt := 0; attempt <= c.uploadRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleepBackoff(ctx, attempt-1); err != nil {
				return nil, lastErr
			}
		}

		resp, chatErr := c.doUpload(ctx, path, info.Name())
		if chatErr == nil {
			return resp, nil
		}

		if !chatErr.Retryable {
			return nil, chatErr
		}
		lastErr = chatErr
	}

	return nil, lastErr
}

// doUpload performs a single multipart upload request.
func (c *Client) doUpload(ctx context.Context, path, filename string) (*UploadResponse, *ChatError) {
	f, err := os.Open(path)
	if err != nil {
		return nil, UploadError(fmt.Sprintf("cannot read file: %v", err), 0, false)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, WrapUnknown(err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, WrapUnknown(err)
	}
	if err := writer.Close(); err != nil {
		return nil, WrapUnknown(err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/upload-document", &buf)
	if err != nil {
		return nil, WrapUnknown(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return nil, FromTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp)
	if err != nil {
		return nil, WrapUnknown(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, UploadError(serverDetail(respBody, "Upload failed"), resp.StatusCode, true)
	}

	var uploadResp UploadResponse
	if err := json.Unmarshal(respBody, &uploadResp); err != nil {
		return nil, WrapUnknown(fmt.Errorf("failed to parse upload response: %w", err))
	}
	return &uploadResp, nil
}

// =============================================================================
// DOCUMENT DELETE / LIST
// =============================================================================

// DeleteDocument removes a document from the knowledge base. Deletions
// are never automatically retried, so a failure is always surfaced as
// a non-retryable UPLOAD_ERROR.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) (*DeleteResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.deleteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodDelete,
		c.baseURL+"/delete-document/"+documentID, nil)
	if err != nil {
		return nil, WrapUnknown(err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, UploadError(fmt.Sprintf("delete failed: %v", err), 0, false)
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp)
	if err != nil {
		return nil, WrapUnknown(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, UploadError(serverDetail(respBody, "Delete failed"), resp.StatusCode, false)
	}

	var deleteResp DeleteResponse
	if err := json.Unmarshal(respBody, &deleteResp); err != nil {
		return nil, WrapUnknown(fmt.Errorf("failed to parse delete response: %w", err))
	}
	return &deleteResp, nil
}

// ListDocuments fetches the authoritative document list from the
// backend.
func (c *Client) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/documents", nil)
	if err != nil {
		return nil, WrapUnknown(err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, FromTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp)
	if err != nil {
		return nil, WrapUnknown(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, FromStatus(resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var docsResp documentsResponse
	if err := json.Unmarshal(respBody, &docsResp); err != nil {
		return nil, WrapUnknown(fmt.Errorf("failed to parse documents response: %w", err))
	}
	return docsResp.Documents, nil
}

// =============================================================================
// HEALTH
// =============================================================================

// CheckHealth probes the backend liveness endpoint. It returns false on
// any failure and never returns an error; it is used purely as a
// boolean signal.
func (c *Client) CheckHealth(ctx context.Context) bool {
	return c.Probe(ctx) == nil
}

// Probe performs the liveness request and returns the failure, if any.
// The connection monitor uses this form so it can measure round-trip
// time itself.
func (c *Client) Probe(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health probe status %d", resp.StatusCode)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// do executes a request with optional logging.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.verbose {
		if err != nil {
			log.Printf("API %s %s failed: %v", req.Method, req.URL.Path, err)
		} else {
			log.Printf("API %s %s: %d (%v)", req.Method, req.URL.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond))
		}
	}
	return resp, err
}

// sleepBackoff waits for the exponential backoff delay, respecting
// context cancellation.
func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	delay := c.backoffBase * time.Duration(1<<uint(attempt))
	if delay > c.backoffMax {
		delay = c.backoffMax
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// readResponse reads a response body with a size cap.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// serverDetail extracts the backend's error detail when the body
// carries one, falling back to the given default.
func serverDetail(body []byte, fallback string) string {
	var detail errorDetail
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}
	if len(body) > 0 && len(body) < 200 {
		return fmt.Sprintf("%s: %s", fallback, strings.TrimSpace(string(body)))
	}
	return fallback
}
