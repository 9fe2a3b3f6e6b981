// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat session for the goodnightgpt CLI.
//
// Provides the REPL that ties together the conversation store, the
// backend client, the connection monitor, and the title summarizer.
//
// Interactive Commands:
//   /new                Start a new conversation
//   /list               List conversations
//   /switch N           Switch to conversation N
//   /delete [N]         Delete conversation N (default: current)
//   /rename TITLE       Rename the current conversation
//   /retry              Resend the last failed message
//   /sources            Show document sources for the last reply
//   /docs               List uploaded documents
//   /upload PATH        Upload a document to the knowledge base
//   /remove N           Remove uploaded document N
//   /status             Show connection and session status
//   /help               Show available commands
//   /quit               Exit
//   Ctrl+C              Cancel the in-flight request
//   Ctrl+D              Exit
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/goodnight-labs/goodnightgpt/internal/api"
	"github.com/goodnight-labs/goodnightgpt/internal/config"
	"github.com/goodnight-labs/goodnightgpt/internal/model"
	"github.com/goodnight-labs/goodnightgpt/internal/monitor"
	"github.com/goodnight-labs/goodnightgpt/internal/store"
	"github.com/goodnight-labs/goodnightgpt/internal/title"
	"github.com/goodnight-labs/goodnightgpt/internal/ui/styles"
	"github.com/goodnight-labs/goodnightgpt/internal/util"
)

// =============================================================================
// SESSION STATE
// =============================================================================

// Session holds the state of one interactive run.
type Session struct {
	Config  *config.Config
	Store   *store.Store
	Docs    *store.DocumentCache
	Client  *api.Client
	Monitor *monitor.Monitor
	Input   *LineReader

	// lastFailed remembers, per conversation, the most recent message
	// that did not get a reply, so /retry can resend it.
	lastFailed map[string]string

	// cancel aborts the in-flight request on Ctrl+C. Written by the
	// REPL goroutine and invoked from the signal goroutine, so all
	// access goes through cancelMu.
	cancelMu sync.Mutex
	cancel   context.CancelFunc

	StartTime time.Time
	Sent      int
	Failed    int
}

// NewSession wires a session from configuration.
func NewSession(cfg *config.Config) (*Session, error) {
	convPath, err := cfg.ConversationsPath()
	if err != nil {
		return nil, fmt.Errorf("resolve conversations path: %w", err)
	}
	docsPath, err := cfg.DocumentsPath()
	if err != nil {
		return nil, fmt.Errorf("resolve documents path: %w", err)
	}
	historyPath, err := cfg.HistoryPath()
	if err != nil {
		return nil, fmt.Errorf("resolve history path: %w", err)
	}
	if err := config.EnsureConfigDir(); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	st := store.Open(convPath)

	client := api.NewClient(cfg.API.BaseURL).
		WithTimeouts(cfg.API.ChatTimeout(), cfg.API.UploadTimeout(), cfg.API.DeleteTimeout(), cfg.Monitor.ProbeTimeout()).
		WithRetries(cfg.API.ChatRetries, cfg.API.UploadRetries).
		WithBackoff(cfg.API.BackoffBase(), cfg.API.BackoffMax()).
		WithIDSource(st.NextMessageID).
		WithVerbose(cfg.UI.Verbose)
	if cfg.API.SendRatePerMin > 0 {
		client.WithSendRate(time.Minute / time.Duration(cfg.API.SendRatePerMin))
	}

	mon := monitor.New(client.Probe).
		WithInterval(cfg.Monitor.Interval()).
		WithProbeTimeout(cfg.Monitor.ProbeTimeout())

	return &Session{
		Config:     cfg,
		Store:      st,
		Docs:       store.OpenDocumentCache(docsPath),
		Client:     client,
		Monitor:    mon,
		Input:      NewLineReader(historyPath),
		lastFailed: make(map[string]string),
		StartTime:  time.Now(),
	}, nil
}

// =============================================================================
// RUN LOOP
// =============================================================================

// Run starts the connection monitor and the REPL, returning when the
// user exits.
func (s *Session) Run(ctx context.Context) error {
	lipgloss.SetColorProfile(GetColorProfile())

	monCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()

	s.Monitor.OnChange(func(old, new monitor.Status) {
		if new == monitor.StatusOffline {
			fmt.Fprintf(os.Stderr, "\n%s backend unreachable\n",
				statusStyle(string(new)).Render("[offline]"))
		} else if old == monitor.StatusOffline {
			fmt.Fprintf(os.Stderr, "\n%s connection restored\n",
				statusStyle(string(new)).Render("[online]"))
		}
	})
	s.Monitor.Start(monCtx)

	if !IsTTY() {
		fmt.Fprintln(os.Stderr, warningStyle.Render("stdin is not a terminal; line editing and history are unavailable"))
	}

	s.printWelcome()
	defer s.Input.Close()

	// First Ctrl+C cancels the in-flight request rather than exiting.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if s.cancelInFlight() {
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		input, err := s.Input.ReadInput(promptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt and EOF (Ctrl+D) both exit cleanly.
			if err != liner.ErrPromptAborted && err != io.EOF {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			fmt.Println()
			s.printExitSummary()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := s.handleCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				s.printExitSummary()
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			s.printExitSummary()
			return nil
		}

		s.sendMessage(ctx, input)
	}
}

// =============================================================================
// MESSAGE SENDING
// =============================================================================

// sendMessage runs the full send flow: gate on connectivity, append
// the user turn, call the backend, title the conversation after its
// first reply, and display the result.
func (s *Session) sendMessage(ctx context.Context, text string) {
	conv := s.Store.Current()
	if conv == nil {
		// The last conversation was deleted; sending starts a new one.
		conv = s.Store.Create()
	}

	if !s.Monitor.IsUsable() {
		s.lastFailed[conv.ID] = text
		fmt.Fprintf(os.Stderr, "%s not connected; message not sent. Use /retry once the connection is back.\n",
			warningStyle.Render("[Offline]"))
		return
	}

	// History reflects the conversation before this turn; the new text
	// rides in the request's message field.
	history := model.ToHistory(conv.Messages)

	userMsg := model.Message{
		ID:     s.Store.NextMessageID(),
		Sender: model.SenderUser,
		Text:   text,
	}
	s.Store.Append(conv.ID, userMsg)

	reqCtx, cancel := context.WithCancel(ctx)
	s.setCancel(cancel)
	defer func() {
		s.setCancel(nil)
		cancel()
	}()

	start := time.Now()
	reply, err := s.Client.SendMessage(reqCtx, text, history)
	if err != nil {
		s.Failed++
		s.lastFailed[conv.ID] = text
		s.showChatError(err)
		return
	}

	s.Sent++
	delete(s.lastFailed, conv.ID)
	s.Store.Append(conv.ID, *reply)

	// Title the thread once its first exchange exists.
	if conv.HasDefaultTitle() {
		if updated := s.Store.Get(conv.ID); updated != nil {
			s.Store.RenameIfDefault(conv.ID, title.Generate(updated.Messages))
		}
	}

	fmt.Println()
	displayReply(reply.Text, s.Config.UI.Markdown)
	if len(reply.Context) > 0 {
		sources := model.DedupeSources(reply.Context)
		fmt.Println(mutedStyle.Render(fmt.Sprintf("  (%d source%s; /sources for details)",
			len(sources), plural(len(sources)))))
	}
	if !s.Config.UI.Compact {
		fmt.Println()
	}
	if s.Config.UI.Verbose {
		fmt.Fprintf(os.Stderr, "%s %s\n", infoStyle.Render("[Stats]"),
			time.Since(start).Round(time.Millisecond))
	}
}

// setCancel installs (or clears, with nil) the in-flight cancel func.
func (s *Session) setCancel(fn context.CancelFunc) {
	s.cancelMu.Lock()
	s.cancel = fn
	s.cancelMu.Unlock()
}

// cancelInFlight aborts the in-flight request, if any, and reports
// whether one was cancelled. The func is cleared under the lock so a
// second signal cannot invoke it twice.
func (s *Session) cancelInFlight() bool {
	s.cancelMu.Lock()
	fn := s.cancel
	s.cancel = nil
	s.cancelMu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// showChatError renders a taxonomy error for the user and nudges the
// monitor when the failure indicates lost connectivity.
func (s *Session) showChatError(err error) {
	var chatErr *api.ChatError
	if !errors.As(err, &chatErr) {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		return
	}

	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("[Error]"), chatErr.UserMessage)
	if chatErr.Retryable {
		fmt.Fprintln(os.Stderr, mutedStyle.Render("  Your message was kept; /retry to resend."))
	}

	if chatErr.Type == api.ErrNetwork {
		s.Monitor.ForceOffline()
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleCommand processes one slash command. Returns keepGoing=false
// to exit the REPL.
func (s *Session) handleCommand(ctx context.Context, input string) (bool, error) {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		s.printHelp()
		return true, nil

	case "/new", "/n":
		conv := s.Store.Create()
		fmt.Printf("%s started %s\n", commandStyle.Render(styles.StatusIndicators.Success), conv.Title)
		return true, nil

	case "/list", "/ls", "/l":
		s.printConversations()
		return true, nil

	case "/switch", "/sw":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /switch N (see /list)")
		}
		conv, err := s.resolveConversation(args[0])
		if err != nil {
			return true, err
		}
		s.Store.Select(conv.ID)
		fmt.Printf("%s switched to %q\n", commandStyle.Render(styles.StatusIndicators.Success), conv.Title)
		return true, nil

	case "/delete", "/del":
		return true, s.deleteConversation(args)

	case "/rename":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /rename NEW TITLE")
		}
		conv := s.Store.Current()
		if conv == nil {
			return true, fmt.Errorf("no conversation to rename")
		}
		newTitle := strings.Join(args, " ")
		s.Store.Rename(conv.ID, newTitle)
		fmt.Printf("%s renamed to %q\n", commandStyle.Render(styles.StatusIndicators.Success), newTitle)
		return true, nil

	case "/retry", "/r":
		s.retryLastFailed(ctx)
		return true, nil

	case "/sources":
		s.printSources()
		return true, nil

	case "/docs", "/documents":
		s.printDocuments(ctx)
		return true, nil

	case "/upload", "/up":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /upload PATH")
		}
		return true, s.uploadDocument(ctx, strings.Join(args, " "))

	case "/remove", "/rm":
		if len(args) == 0 {
			return true, fmt.Errorf("usage: /remove N (see /docs)")
		}
		return true, s.removeDocument(ctx, args[0])

	case "/status", "/s":
		s.printStatus(ctx)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// resolveConversation accepts a 1-based /list index or an id prefix.
func (s *Session) resolveConversation(ref string) (*model.Conversation, error) {
	list := s.Store.List()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(list) {
			return nil, fmt.Errorf("no conversation %d (have %d)", n, len(list))
		}
		return list[n-1], nil
	}
	for _, conv := range list {
		if strings.HasPrefix(conv.ID, ref) {
			return conv, nil
		}
	}
	return nil, fmt.Errorf("no conversation matching %q", ref)
}

// deleteConversation deletes by reference, defaulting to the current
// thread. Deleting the last conversation leaves the session empty; the
// next message starts a fresh thread.
func (s *Session) deleteConversation(args []string) error {
	var conv *model.Conversation
	if len(args) == 0 {
		conv = s.Store.Current()
		if conv == nil {
			return fmt.Errorf("nothing to delete")
		}
	} else {
		var err error
		conv, err = s.resolveConversation(args[0])
		if err != nil {
			return err
		}
	}

	s.Store.Delete(conv.ID)
	delete(s.lastFailed, conv.ID)
	fmt.Printf("%s deleted %q\n", commandStyle.Render(styles.StatusIndicators.Success), conv.Title)

	if current := s.Store.Current(); current != nil {
		fmt.Printf("%s now on %q\n", infoStyle.Render(styles.StatusIndicators.Info), current.Title)
	} else {
		fmt.Println(infoStyle.Render("[i] no conversations left; your next message starts a new one"))
	}
	return nil
}

// retryLastFailed resends the most recent failed message of the
// current conversation.
func (s *Session) retryLastFailed(ctx context.Context) {
	conv := s.Store.Current()
	if conv == nil {
		fmt.Println(infoStyle.Render("[i] nothing to retry"))
		return
	}
	text, ok := s.lastFailed[conv.ID]
	if !ok {
		fmt.Println(infoStyle.Render("[i] nothing to retry"))
		return
	}
	fmt.Printf("%s resending: %s\n", infoStyle.Render("[Retry]"), util.Truncate(text, 60))
	s.sendMessage(ctx, text)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// uploadDocument validates, uploads, and records a knowledge base file.
func (s *Session) uploadDocument(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if chatErr := api.ValidateUpload(info.Name(), info.Size()); chatErr != nil {
		return fmt.Errorf("%s", chatErr.UserMessage)
	}

	fmt.Printf("%s uploading %s...\n", infoStyle.Render("[Upload]"), info.Name())
	resp, err := s.Client.UploadDocument(ctx, path)
	if err != nil {
		var chatErr *api.ChatError
		if errors.As(err, &chatErr) {
			return fmt.Errorf("%s", chatErr.UserMessage)
		}
		return err
	}

	s.Docs.Add(info.Name(), resp.FileType, resp.ChunksIndexed, resp.DocumentID)
	fmt.Printf("%s indexed %d chunk%s\n", commandStyle.Render(styles.StatusIndicators.Success),
		resp.ChunksIndexed, plural(resp.ChunksIndexed))
	return nil
}

// removeDocument deletes by /docs index or backend document id.
func (s *Session) removeDocument(ctx context.Context, ref string) error {
	docs := s.Docs.List()

	documentID := ref
	filename := ref
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(docs) {
			return fmt.Errorf("no document %d (have %d)", n, len(docs))
		}
		documentID = docs[n-1].DocumentID
		filename = docs[n-1].Filename
	}

	if _, err := s.Client.DeleteDocument(ctx, documentID); err != nil {
		var chatErr *api.ChatError
		if errors.As(err, &chatErr) {
			return fmt.Errorf("%s", chatErr.UserMessage)
		}
		return err
	}

	s.Docs.Remove(documentID)
	fmt.Printf("%s removed %s\n", commandStyle.Render(styles.StatusIndicators.Success), filename)
	return nil
}

// printDocuments lists the backend's documents, falling back to the
// local cache when the backend is unreachable.
func (s *Session) printDocuments(ctx context.Context) {
	fmt.Println()
	fmt.Println(headerStyle.Render("Documents"))

	if s.Monitor.IsUsable() {
		if docs, err := s.Client.ListDocuments(ctx); err == nil {
			if len(docs) == 0 {
				fmt.Println(infoStyle.Render("  (none indexed)"))
			}
			for i, doc := range docs {
				fmt.Printf("  %d. %s  %s\n", i+1,
					util.Pad(doc.Source, 32),
					mutedStyle.Render(fmt.Sprintf("%d chunks", doc.ChunkCount)))
			}
			fmt.Println()
			return
		}
	}

	// Offline: show the cached view, clearly marked.
	docs := s.Docs.List()
	if len(docs) == 0 {
		fmt.Println(infoStyle.Render("  (none uploaded)"))
		fmt.Println()
		return
	}
	fmt.Println(mutedStyle.Render("  (cached; backend unreachable)"))
	for i, doc := range docs {
		fmt.Printf("  %d. %s  %s\n", i+1,
			util.Pad(doc.Filename, 32),
			mutedStyle.Render(fmt.Sprintf("%d chunks", doc.ChunksIndexed)))
	}
	fmt.Println()
}

// printSources shows the deduplicated document sources of the last
// assistant reply in the current conversation.
func (s *Session) printSources() {
	conv := s.Store.Current()
	if conv == nil {
		fmt.Println(infoStyle.Render("[i] no conversation"))
		return
	}

	var last *model.Message
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].IsAI() && len(conv.Messages[i].Context) > 0 {
			last = &conv.Messages[i]
			break
		}
	}
	if last == nil {
		fmt.Println(infoStyle.Render("[i] the last reply used no document sources"))
		return
	}

	sources := model.DedupeSources(last.Context)
	fmt.Println()
	fmt.Println(headerStyle.Render("Sources"))
	for i, src := range sources {
		name := src.Source()
		if name == "" {
			name = src.DocumentID()
		}
		fmt.Printf("  %d. %s  %s\n", i+1,
			util.Pad(name, 32),
			mutedStyle.Render(fmt.Sprintf("score %.2f", src.Score)))
		if excerpt := util.Truncate(util.SingleLine(src.Text), 96); excerpt != "" {
			fmt.Printf("     %s\n", mutedStyle.Render(excerpt))
		}
	}
	fmt.Println()
}

// =============================================================================
// DISPLAY
// =============================================================================

func (s *Session) printWelcome() {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("goodnightgpt"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n", infoStyle.Render("Backend:"), commandStyle.Render(s.Client.BaseURL()))
	if conv := s.Store.Current(); conv != nil {
		fmt.Printf("%s %s (%d message%s)\n", infoStyle.Render("Thread:"),
			commandStyle.Render(conv.Title), conv.MessageCount(), plural(conv.MessageCount()))
	}
	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

func (s *Session) printConversations() {
	list := s.Store.List()
	currentID := s.Store.CurrentID()

	fmt.Println()
	fmt.Println(headerStyle.Render("Conversations"))
	for i, conv := range list {
		marker := "  "
		if conv.ID == currentID {
			marker = commandStyle.Render("> ")
		}
		fmt.Printf("%s%d. %s  %s\n", marker, i+1,
			util.Pad(util.Truncate(conv.Title, 28), 28),
			mutedStyle.Render(conv.Preview(40)))
	}
	if len(list) == 0 {
		fmt.Println(infoStyle.Render("  (none; your next message starts one)"))
	}
	fmt.Println()
}

func (s *Session) printStatus(ctx context.Context) {
	status := s.Monitor.CheckNow(ctx)

	fmt.Println()
	fmt.Println(headerStyle.Render("Status"))
	fmt.Printf("  %s %s\n", infoStyle.Render("Connection:"),
		statusStyle(string(status)).Render(status.Indicator()))
	if rtt := s.Monitor.LastRTT(); rtt > 0 {
		fmt.Printf("  %s %s\n", infoStyle.Render("Latency:"), rtt.Round(time.Millisecond))
	}
	fmt.Printf("  %s %s\n", infoStyle.Render("Backend:"), s.Client.BaseURL())
	fmt.Printf("  %s %d\n", infoStyle.Render("Conversations:"), s.Store.Len())
	fmt.Printf("  %s %d sent, %d failed\n", infoStyle.Render("Messages:"), s.Sent, s.Failed)
	fmt.Printf("  %s %s\n", infoStyle.Render("Uptime:"),
		time.Since(s.StartTime).Round(time.Second))
	fmt.Println()
}

func (s *Session) printHelp() {
	fmt.Println()
	fmt.Println(headerStyle.Render("Available Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/new", "Start a new conversation"},
		{"/list", "List conversations"},
		{"/switch N", "Switch to conversation N"},
		{"/delete [N]", "Delete conversation N (default: current)"},
		{"/rename TITLE", "Rename the current conversation"},
		{"/retry", "Resend the last failed message"},
		{"/sources", "Show sources for the last reply"},
		{"/docs", "List uploaded documents"},
		{"/upload PATH", "Upload a document"},
		{"/remove N", "Remove uploaded document N"},
		{"/status", "Show connection and session status"},
		{"/quit", "Exit"},
	}
	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels the current request, Ctrl+D exits"))
	fmt.Println()
}

func (s *Session) printExitSummary() {
	if s.Sent == 0 && s.Failed == 0 {
		fmt.Println(infoStyle.Render("Goodbye!"))
		return
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Session Summary"))
	fmt.Printf("  %s %d sent, %d failed\n", infoStyle.Render("Messages:"), s.Sent, s.Failed)
	fmt.Printf("  %s %s\n", infoStyle.Render("Duration:"),
		time.Since(s.StartTime).Round(time.Second))
	fmt.Println()
	fmt.Println(infoStyle.Render("Goodbye!"))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
