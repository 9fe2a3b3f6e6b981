// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, path, baseURL string) {
	t.Helper()
	content := "[api]\nbase_url = \"" + baseURL + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func waitForReload(t *testing.T, ch <-chan *Config) *Config {
	t.Helper()
	select {
	case cfg := <-ch:
		return cfg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config reload")
		return nil
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfigFile(t, path, "http://127.0.0.1:8000")

	reloads := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) {
		reloads <- cfg
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	require.NoError(t, w.Watch())

	writeConfigFile(t, path, "http://127.0.0.1:9000")

	cfg := waitForReload(t, reloads)
	require.Equal(t, "http://127.0.0.1:9000", cfg.API.BaseURL)
	require.Equal(t, "http://127.0.0.1:9000", Global().API.BaseURL)
}

func TestWatcherKeepsPreviousOnInvalidEdit(t *testing.T) {
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfigFile(t, path, "http://127.0.0.1:8000")

	prev, err := LoadFromPath(path)
	require.NoError(t, err)
	SetGlobal(prev)

	reloads := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) {
		reloads <- cfg
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	require.NoError(t, w.Watch())

	// An invalid URL scheme fails validation; the previous config stays.
	writeConfigFile(t, path, "ftp://bad")

	select {
	case cfg := <-reloads:
		t.Fatalf("unexpected reload with invalid config: %+v", cfg.API)
	case <-time.After(time.Second):
	}
	require.Equal(t, "http://127.0.0.1:8000", Global().API.BaseURL)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfigFile(t, path, "http://127.0.0.1:8000")

	reloads := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) {
		reloads <- cfg
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	require.NoError(t, w.Watch())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1\n"), 0600))

	select {
	case <-reloads:
		t.Fatal("reload triggered by an unrelated file")
	case <-time.After(time.Second):
	}
}
