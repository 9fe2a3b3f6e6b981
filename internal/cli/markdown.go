// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the global glamour renderer for assistant replies.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	wrap := GetTerminalWidth()
	if wrap > 100 {
		wrap = 100
	}
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		// Fall back to plain text if renderer initialization fails.
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown content for terminal display,
// returning the original content if rendering fails.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayReply prints an assistant reply, rendered as markdown when
// stdout is a TTY and markdown rendering is enabled.
func displayReply(text string, useMarkdown bool) {
	if useMarkdown && IsStdoutTTY() {
		fmt.Print(renderMarkdown(text))
		return
	}
	fmt.Println(replyStyle.Render(text))
}
