// goodnightgpt - terminal chat client for the GoodnightGPT backend.
//
// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goodnight-labs/goodnightgpt/internal/cli"
	"github.com/goodnight-labs/goodnightgpt/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	cmd, args := parseArgs(os.Args[1:])

	switch cmd {
	case "chat", "":
		if err := runChat(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "config":
		if err := handleConfig(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("goodnightgpt %s (%s, built %s)\n", Version, GitCommit, BuildDate)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

// parseArgs splits the first non-flag argument off as the command.
// Flags before the command (--verbose, --url) apply globally.
func parseArgs(argv []string) (cmd string, rest []string) {
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch arg {
		case "--verbose":
			os.Setenv("GOODNIGHTGPT_VERBOSE", "1")
		case "--url":
			if i+1 < len(argv) {
				i++
				os.Setenv("GOODNIGHTGPT_API_URL", argv[i])
			}
		case "--version", "-v", "--help", "-h":
			return arg, nil
		default:
			return arg, argv[i+1:]
		}
	}
	return "", nil
}

func runChat(args []string) error {
	cfg := config.Global()

	session, err := cli.NewSession(cfg)
	if err != nil {
		return err
	}

	// Reload config edits live. An invalid edit keeps the previous
	// values; a changed backend URL is picked up without a restart.
	configPath, err := config.ConfigPath()
	if err == nil {
		watcher, werr := config.NewWatcher(configPath, func(updated *config.Config) {
			session.Client.SetBaseURL(updated.API.BaseURL)
		})
		if werr == nil && watcher.Watch() == nil {
			defer watcher.Close()
		}
	}

	return session.Run(context.Background())
}

func handleConfig(args []string) error {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil

	case "init":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}
		if err := config.Save(config.Default()); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return nil

	case "show":
		cfg := config.Global()
		fmt.Printf("backend url:     %s\n", cfg.API.BaseURL)
		fmt.Printf("chat timeout:    %s\n", cfg.API.ChatTimeout())
		fmt.Printf("upload timeout:  %s\n", cfg.API.UploadTimeout())
		fmt.Printf("chat retries:    %d\n", cfg.API.ChatRetries)
		fmt.Printf("probe interval:  %s\n", cfg.Monitor.Interval())
		fmt.Printf("theme:           %s\n", cfg.UI.Theme)
		fmt.Printf("markdown:        %t\n", cfg.UI.Markdown)
		return nil

	default:
		return fmt.Errorf("unknown config subcommand: %s (want show, path, or init)", sub)
	}
}

func printUsage() {
	fmt.Println(`goodnightgpt - terminal chat client

Usage:
  goodnightgpt [flags] [command]

Commands:
  chat            Start an interactive chat session (default)
  config show     Print the effective configuration
  config path     Print the config file location
  config init     Write a default config file
  version         Print version information
  help            Show this help

Flags:
  --url URL       Backend base URL (overrides config)
  --verbose       Verbose output

Environment:
  GOODNIGHTGPT_API_URL   Backend base URL
  GOODNIGHTGPT_DIR       Data directory override
  NO_COLOR               Disable colored output`)
}
