// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/goodnight-labs/goodnightgpt/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// Prompt style
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	// Welcome banner style
	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Indigo).
			Bold(true)

	// Info style
	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	// Command/success style
	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	// Warning style
	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	// Error style
	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	// Section header style
	headerStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	// Muted hint style
	mutedStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	// Assistant reply body when markdown rendering is off
	replyStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimary)
)

// statusStyle returns a style colored for the given connection status.
func statusStyle(status string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(styles.ForStatus(status))
}
