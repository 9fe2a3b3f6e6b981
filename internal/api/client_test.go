// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goodnight-labs/goodnightgpt/internal/model"
)

// fastClient returns a client pointed at the server with near-zero
// backoff so retry tests run quickly.
func fastClient(url string) *Client {
	return NewClient(url).WithBackoff(time.Millisecond, 5*time.Millisecond)
}

func TestSendMessageSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("path = %q, want /chat", r.URL.Path)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Message != "what is a pell grant" {
			t.Errorf("message = %q", req.Message)
		}
		if len(req.History) != 1 {
			t.Errorf("history length = %d, want 1", len(req.History))
		}
		json.NewEncoder(w).Encode(ChatResponse{Response: "A Pell Grant is federal aid."})
	}))
	defer server.Close()

	var id atomic.Int64
	client := fastClient(server.URL).WithIDSource(func() int64 { return id.Add(1) })

	history := []model.HistoryEntry{{Role: "user", Content: "hi"}}
	msg, err := client.SendMessage(context.Background(), "what is a pell grant", history)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.Sender != model.SenderAI {
		t.Errorf("sender = %v, want %v", msg.Sender, model.SenderAI)
	}
	if msg.Text != "A Pell Grant is federal aid." {
		t.Errorf("text = %q", msg.Text)
	}
	if msg.ID != 1 {
		t.Errorf("id = %d, want 1 from injected source", msg.ID)
	}
}

func TestSendMessageRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ChatResponse{Response: "recovered"})
	}))
	defer server.Close()

	client := fastClient(server.URL)
	msg, err := client.SendMessage(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.Text != "recovered" {
		t.Errorf("text = %q", msg.Text)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server hit %d times, want 3 (1 try + 2 retries)", got)
	}
}

func TestSendMessageExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := fastClient(server.URL)
	_, err := client.SendMessage(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var chatErr *ChatError
	if !errors.As(err, &chatErr) {
		t.Fatalf("error type = %T, want *ChatError", err)
	}
	if chatErr.Type != ErrServer {
		t.Errorf("type = %v, want %v", chatErr.Type, ErrServer)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server hit %d times, want 3", got)
	}
}

func TestSendMessageNonRetryableAbortsImmediately(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := fastClient(server.URL)
	_, err := client.SendMessage(context.Background(), "hello", nil)

	var chatErr *ChatError
	if !errors.As(err, &chatErr) || chatErr.Type != ErrBadRequest {
		t.Fatalf("err = %v, want BAD_REQUEST", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server hit %d times, want exactly 1 for a 400", got)
	}
}

func TestSendMessageBackoffIncreases(t *testing.T) {
	var stamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, time.Now())
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL).WithBackoff(40*time.Millisecond, time.Second)
	client.SendMessage(context.Background(), "hello", nil)

	if len(stamps) != 3 {
		t.Fatalf("server hit %d times, want 3", len(stamps))
	}
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	if first < 40*time.Millisecond {
		t.Errorf("first retry delay %v, want at least 40ms", first)
	}
	if second < 80*time.Millisecond {
		t.Errorf("second retry delay %v, want at least 80ms (doubled)", second)
	}
}

func TestSendMessagePacedBySendRate(t *testing.T) {
	var stamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, time.Now())
		fmt.Fprint(w, `{"response":"ok"}`)
	}))
	defer server.Close()

	client := fastClient(server.URL).WithSendRate(60 * time.Millisecond)

	start := time.Now()
	if _, err := client.SendMessage(context.Background(), "first", nil); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("first send waited %v, want immediate (burst of one)", elapsed)
	}

	if _, err := client.SendMessage(context.Background(), "second", nil); err != nil {
		t.Fatalf("second send: %v", err)
	}

	if len(stamps) != 2 {
		t.Fatalf("server hit %d times, want 2", len(stamps))
	}
	if gap := stamps[1].Sub(stamps[0]); gap < 50*time.Millisecond {
		t.Errorf("sends spaced %v apart, want at least the pacing interval", gap)
	}
}

func TestSendRatePacingCancellable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":"ok"}`)
	}))
	defer server.Close()

	client := fastClient(server.URL).WithSendRate(time.Hour)
	if _, err := client.SendMessage(context.Background(), "drains the burst", nil); err != nil {
		t.Fatalf("first send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.SendMessage(ctx, "blocked by pacing", nil)
	if err == nil {
		t.Fatal("expected an error when pacing outlives the context")
	}
	var chatErr *ChatError
	if !errors.As(err, &chatErr) || chatErr.Type != ErrTimeout {
		t.Errorf("error = %v, want TIMEOUT from the cancelled wait", err)
	}
}

func TestSendMessageEmptyResponsePlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{Response: ""})
	}))
	defer server.Close()

	msg, err := fastClient(server.URL).SendMessage(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.Text != "(no response)" {
		t.Errorf("text = %q, want placeholder", msg.Text)
	}
}

func TestSendMessageTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := fastClient(server.URL).
		WithTimeouts(20*time.Millisecond, 0, 0, 0).
		WithRetries(0, 0)

	_, err := client.SendMessage(context.Background(), "hello", nil)

	var chatErr *ChatError
	if !errors.As(err, &chatErr) {
		t.Fatalf("err = %v, want *ChatError", err)
	}
	if chatErr.Type != ErrTimeout {
		t.Errorf("type = %v, want %v", chatErr.Type, ErrTimeout)
	}
	if !chatErr.Retryable {
		t.Error("timeout should be retryable")
	}
}

func TestSendMessageContextCancelStopsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(server.URL).WithBackoff(time.Hour, time.Hour)

	done := make(chan error, 1)
	go func() {
		_, err := client.SendMessage(ctx, "hello", nil)
		done <- err
	}()

	// Let the first attempt fail, then cancel during backoff.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendMessage did not return after cancellation")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  bool
	}{
		{"pdf ok", "notes.pdf", 1024, false},
		{"txt ok", "essay.txt", 1, false},
		{"csv ok", "grades.CSV", 500, false},
		{"too large", "big.pdf", MaxUploadSize + 1, true},
		{"at limit", "edge.pdf", MaxUploadSize, false},
		{"bad extension", "malware.exe", 10, true},
		{"no extension", "README", 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.filename, tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUpload(%q, %d) error = %v, wantErr %v", tt.filename, tt.size, err, tt.wantErr)
			}
			if err != nil && err.Type != ErrUpload {
				t.Errorf("type = %v, want %v", err.Type, ErrUpload)
			}
			if err != nil && err.Retryable {
				t.Error("validation failures must not be retryable")
			}
		})
	}
}

func TestUploadDocumentRejectsLocallyWithoutRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.xlsx")
	if err := os.WriteFile(path, []byte("data"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := fastClient(server.URL).UploadDocument(context.Background(), path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("server hit %d times, want 0 for local rejection", got)
	}
}

func TestUploadDocumentSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload-document" {
			t.Errorf("path = %q", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "essay.txt" {
			t.Errorf("filename = %q", header.Filename)
		}
		json.NewEncoder(w).Encode(UploadResponse{
			Message:       "indexed",
			ChunksIndexed: 4,
			FileType:      "txt",
			DocumentID:    "doc-123",
		})
	}))
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "essay.txt")
	if err := os.WriteFile(path, []byte("my scholarship essay"), 0600); err != nil {
		t.Fatal(err)
	}

	resp, err := fastClient(server.URL).UploadDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if resp.ChunksIndexed != 4 {
		t.Errorf("chunks = %d, want 4", resp.ChunksIndexed)
	}
	if resp.DocumentID != "doc-123" {
		t.Errorf("document id = %q", resp.DocumentID)
	}
}

func TestUploadDocumentRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "essay.txt")
	if err := os.WriteFile(path, []byte("text"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := fastClient(server.URL).UploadDocument(context.Background(), path)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server hit %d times, want 2 (1 try + 1 retry)", got)
	}
}

func TestDeleteDocumentNeverRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := fastClient(server.URL).DeleteDocument(context.Background(), "doc-1")
	if err == nil {
		t.Fatal("expected error")
	}

	var chatErr *ChatError
	if !errors.As(err, &chatErr) {
		t.Fatalf("error type = %T", err)
	}
	if chatErr.Retryable {
		t.Error("delete failures must not be retryable")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server hit %d times, want exactly 1", got)
	}
}

func TestDeleteDocumentSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %q, want DELETE", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/delete-document/doc-9") {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(DeleteResponse{Message: "deleted", VectorsDeleted: 12})
	}))
	defer server.Close()

	resp, err := fastClient(server.URL).DeleteDocument(context.Background(), "doc-9")
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if resp.VectorsDeleted != 12 {
		t.Errorf("vectors deleted = %d, want 12", resp.VectorsDeleted)
	}
}

func TestCheckHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cache-Control") != "no-cache" {
			t.Error("probe missing Cache-Control header")
		}
		w.WriteHeader(http.StatusOK)
	}))

	client := fastClient(server.URL)
	if !client.CheckHealth(context.Background()) {
		t.Error("CheckHealth = false for healthy backend")
	}

	server.Close()
	if client.CheckHealth(context.Background()) {
		t.Error("CheckHealth = true for unreachable backend")
	}
}

func TestListDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"documents": []DocumentInfo{
				{DocumentID: "doc-1", Source: "a.pdf"},
				{DocumentID: "doc-2", Source: "b.txt"},
			},
		})
	}))
	defer server.Close()

	docs, err := fastClient(server.URL).ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].DocumentID != "doc-1" {
		t.Errorf("first document id = %q", docs[0].DocumentID)
	}
}
