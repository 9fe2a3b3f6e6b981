// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for goodnightgpt.
//
// Configuration lives in ~/.goodnightgpt/config.toml with sensible
// defaults, environment variable overrides, and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/goodnight-labs/goodnightgpt/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete goodnightgpt configuration.
type Config struct {
	Version string `toml:"version"`

	// Backend API configuration
	API APIConfig `toml:"api"`

	// Connection monitor configuration
	Monitor MonitorConfig `toml:"monitor"`

	// Local storage configuration
	Storage StorageConfig `toml:"storage"`

	// Terminal UI configuration
	UI UIConfig `toml:"ui"`
}

// APIConfig contains backend request configuration.
type APIConfig struct {
	// BaseURL is the chat backend base URL
	BaseURL string `toml:"base_url"`
	// ChatTimeoutSecs bounds one chat request attempt
	ChatTimeoutSecs int `toml:"chat_timeout_secs"`
	// UploadTimeoutSecs bounds one document upload attempt
	UploadTimeoutSecs int `toml:"upload_timeout_secs"`
	// DeleteTimeoutSecs bounds a document delete request
	DeleteTimeoutSecs int `toml:"delete_timeout_secs"`
	// ChatRetries is how many times a failed chat request is retried
	ChatRetries int `toml:"chat_retries"`
	// UploadRetries is how many times a failed upload is retried
	UploadRetries int `toml:"upload_retries"`
	// BackoffBaseMs is the first retry delay in milliseconds
	BackoffBaseMs int `toml:"backoff_base_ms"`
	// BackoffMaxMs caps the exponential retry delay
	BackoffMaxMs int `toml:"backoff_max_ms"`
	// SendRatePerMin limits outgoing chat requests per minute (0 = unlimited)
	SendRatePerMin int `toml:"send_rate_per_min"`
}

// MonitorConfig contains connection monitor configuration.
type MonitorConfig struct {
	// IntervalSecs is how often the background health probe runs
	IntervalSecs int `toml:"interval_secs"`
	// ProbeTimeoutSecs bounds a single health probe
	ProbeTimeoutSecs int `toml:"probe_timeout_secs"`
}

// StorageConfig contains local persistence configuration.
type StorageConfig struct {
	// Dir is the data directory (empty = ~/.goodnightgpt)
	Dir string `toml:"dir"`
	// ConversationsFile is the conversations file name within Dir
	ConversationsFile string `toml:"conversations_file"`
	// DocumentsFile is the uploaded-documents cache file name within Dir
	DocumentsFile string `toml:"documents_file"`
	// HistoryFile is the REPL input history file name within Dir
	HistoryFile string `toml:"history_file"`
}

// UIConfig contains terminal UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// Markdown renders assistant replies as markdown on a TTY
	Markdown bool `toml:"markdown"`
	// Compact suppresses blank lines between turns
	Compact bool `toml:"compact"`
	// Verbose logs each outgoing request
	Verbose bool `toml:"verbose"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		API: APIConfig{
			BaseURL:           "http://127.0.0.1:8000",
			ChatTimeoutSecs:   30,
			UploadTimeoutSecs: 60,
			DeleteTimeoutSecs: 30,
			ChatRetries:       2,
			UploadRetries:     1,
			BackoffBaseMs:     1000,
			BackoffMaxMs:      10000,
			SendRatePerMin:    0, // unlimited
		},

		Monitor: MonitorConfig{
			IntervalSecs:     30,
			ProbeTimeoutSecs: 5,
		},

		Storage: StorageConfig{
			ConversationsFile: "conversations.json",
			DocumentsFile:     "documents.json",
			HistoryFile:       "history",
		},

		UI: UIConfig{
			Theme:    "dark",
			Markdown: true,
			Compact:  false,
			Verbose:  false,
		},
	}
}

// Duration helpers so callers don't repeat the unit conversions.

// ChatTimeout returns the per-attempt chat timeout.
func (a APIConfig) ChatTimeout() time.Duration { return time.Duration(a.ChatTimeoutSecs) * time.Second }

// UploadTimeout returns the per-attempt upload timeout.
func (a APIConfig) UploadTimeout() time.Duration {
	return time.Duration(a.UploadTimeoutSecs) * time.Second
}

// DeleteTimeout returns the delete request timeout.
func (a APIConfig) DeleteTimeout() time.Duration {
	return time.Duration(a.DeleteTimeoutSecs) * time.Second
}

// BackoffBase returns the first retry delay.
func (a APIConfig) BackoffBase() time.Duration {
	return time.Duration(a.BackoffBaseMs) * time.Millisecond
}

// BackoffMax returns the retry delay ceiling.
func (a APIConfig) BackoffMax() time.Duration {
	return time.Duration(a.BackoffMaxMs) * time.Millisecond
}

// Interval returns the background probe interval.
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSecs) * time.Second
}

// ProbeTimeout returns the per-probe timeout.
func (m MonitorConfig) ProbeTimeout() time.Duration {
	return time.Duration(m.ProbeTimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the goodnightgpt configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".goodnightgpt"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// DataDir resolves the storage directory, falling back to the config
// directory when storage.dir is unset.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	return ConfigDir()
}

// ConversationsPath returns the resolved conversations file path.
func (c *Config) ConversationsPath() (string, error) {
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.ConversationsFile), nil
}

// DocumentsPath returns the resolved uploaded-documents cache path.
func (c *Config) DocumentsPath() (string, error) {
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.DocumentsFile), nil
}

// HistoryPath returns the resolved REPL history file path.
func (c *Config) HistoryPath() (string, error) {
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.HistoryFile), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file, falling back to
// defaults when no file exists. Environment overrides are applied
// last, then defaults fill in and the result is validated.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				loadErr = fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, loadErr
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600
// permissions, written atomically.
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# goodnightgpt configuration file\n")
	sb.WriteString("# Generated by goodnightgpt - edit with care\n")
	sb.WriteString("\n")

	encoder := toml.NewEncoder(&sb)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// API settings
	if c.API.BaseURL != "" {
		parsed, err := url.Parse(c.API.BaseURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			errs = append(errs, ValidationError{
				Field:   "api.base_url",
				Message: fmt.Sprintf("invalid URL '%s', must be http or https", c.API.BaseURL),
			})
		}
	}
	if c.API.ChatTimeoutSecs < 1 || c.API.ChatTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "api.chat_timeout_secs",
			Message: fmt.Sprintf("must be 1-600, got %d", c.API.ChatTimeoutSecs),
		})
	}
	if c.API.UploadTimeoutSecs < 1 || c.API.UploadTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "api.upload_timeout_secs",
			Message: fmt.Sprintf("must be 1-600, got %d", c.API.UploadTimeoutSecs),
		})
	}
	if c.API.ChatRetries < 0 || c.API.ChatRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "api.chat_retries",
			Message: fmt.Sprintf("must be 0-10, got %d", c.API.ChatRetries),
		})
	}
	if c.API.UploadRetries < 0 || c.API.UploadRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "api.upload_retries",
			Message: fmt.Sprintf("must be 0-10, got %d", c.API.UploadRetries),
		})
	}
	if c.API.BackoffBaseMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "api.backoff_base_ms",
			Message: "must be non-negative",
		})
	}
	if c.API.BackoffMaxMs > 0 && c.API.BackoffMaxMs < c.API.BackoffBaseMs {
		errs = append(errs, ValidationError{
			Field:   "api.backoff_max_ms",
			Message: fmt.Sprintf("must be at least backoff_base_ms (%d), got %d", c.API.BackoffBaseMs, c.API.BackoffMaxMs),
		})
	}
	if c.API.SendRatePerMin < 0 {
		errs = append(errs, ValidationError{
			Field:   "api.send_rate_per_min",
			Message: "must be non-negative",
		})
	}

	// Monitor settings
	if c.Monitor.IntervalSecs < 5 || c.Monitor.IntervalSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "monitor.interval_secs",
			Message: fmt.Sprintf("must be 5-3600, got %d", c.Monitor.IntervalSecs),
		})
	}
	if c.Monitor.ProbeTimeoutSecs < 1 || c.Monitor.ProbeTimeoutSecs > 60 {
		errs = append(errs, ValidationError{
			Field:   "monitor.probe_timeout_secs",
			Message: fmt.Sprintf("must be 1-60, got %d", c.Monitor.ProbeTimeoutSecs),
		})
	}

	// UI settings
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value
// configuration fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}

	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.ChatTimeoutSecs == 0 {
		c.API.ChatTimeoutSecs = defaults.API.ChatTimeoutSecs
	}
	if c.API.UploadTimeoutSecs == 0 {
		c.API.UploadTimeoutSecs = defaults.API.UploadTimeoutSecs
	}
	if c.API.DeleteTimeoutSecs == 0 {
		c.API.DeleteTimeoutSecs = defaults.API.DeleteTimeoutSecs
	}
	if c.API.BackoffBaseMs == 0 {
		c.API.BackoffBaseMs = defaults.API.BackoffBaseMs
	}
	if c.API.BackoffMaxMs == 0 {
		c.API.BackoffMaxMs = defaults.API.BackoffMaxMs
	}

	if c.Monitor.IntervalSecs == 0 {
		c.Monitor.IntervalSecs = defaults.Monitor.IntervalSecs
	}
	if c.Monitor.ProbeTimeoutSecs == 0 {
		c.Monitor.ProbeTimeoutSecs = defaults.Monitor.ProbeTimeoutSecs
	}

	if c.Storage.ConversationsFile == "" {
		c.Storage.ConversationsFile = defaults.Storage.ConversationsFile
	}
	if c.Storage.DocumentsFile == "" {
		c.Storage.DocumentsFile = defaults.Storage.DocumentsFile
	}
	if c.Storage.HistoryFile == "" {
		c.Storage.HistoryFile = defaults.Storage.HistoryFile
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - GOODNIGHTGPT_API_URL: overrides api.base_url
//   - GOODNIGHTGPT_DIR: overrides storage.dir
//   - GOODNIGHTGPT_THEME: overrides ui.theme
//   - GOODNIGHTGPT_VERBOSE: enables request logging ("1" or "true")
//   - GOODNIGHTGPT_NO_MARKDOWN: disables markdown rendering
//   - GOODNIGHTGPT_CHAT_RETRIES: overrides api.chat_retries
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv("GOODNIGHTGPT_API_URL"); u != "" {
		c.API.BaseURL = u
	}
	if dir := os.Getenv("GOODNIGHTGPT_DIR"); dir != "" {
		c.Storage.Dir = dir
	}
	if theme := os.Getenv("GOODNIGHTGPT_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if v := os.Getenv("GOODNIGHTGPT_VERBOSE"); v != "" {
		c.UI.Verbose = v == "1" || strings.ToLower(v) == "true"
	}
	if v := os.Getenv("GOODNIGHTGPT_NO_MARKDOWN"); v != "" {
		if v == "1" || strings.ToLower(v) == "true" {
			c.UI.Markdown = false
		}
	}
	if v := os.Getenv("GOODNIGHTGPT_CHAT_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.API.ChatRetries = n
		}
	}
}

// =============================================================================
// GLOBAL CONFIG
// =============================================================================

var (
	globalConfig     *Config
	globalConfigMu   sync.RWMutex
	globalConfigOnce sync.Once
)

// Global returns the global configuration, loading it on first use.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	globalConfigOnce.Do(func() {})
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
