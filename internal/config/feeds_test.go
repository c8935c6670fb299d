package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"feedsync/internal/logging"
)

func writeFeeds(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoadFeeds_AppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("FEEDSYNC_TEST_SCOPE", "u42")
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	writeFeeds(t, path, `
notifications:
  poll_interval: 10s
  max_retry: 0
  channel_scope: ${FEEDSYNC_TEST_SCOPE}
activities:
  enabled: false
  backoff_factor: 1.5
  dedup_realtime: true
`)

	cfg, err := LoadFeeds(path)
	if err != nil {
		t.Fatalf("LoadFeeds() error = %v", err)
	}
	n := cfg.Notifications
	if n.PollInterval != 10*time.Second || n.Retries() != 0 || n.ChannelScope != "u42" {
		t.Fatalf("notifications = %#v", n)
	}
	if n.BaseDelay != DefaultBaseDelay || n.BackoffFactor != DefaultBackoffFactor || n.PageSize != DefaultPageSize {
		t.Fatalf("notifications defaults not applied: %#v", n)
	}
	if !n.IsEnabled() {
		t.Fatalf("notifications should default to enabled")
	}
	a := cfg.Activities
	if a.IsEnabled() || a.BackoffFactor != 1.5 || !a.DedupRealtime || a.Retries() != DefaultMaxRetry {
		t.Fatalf("activities = %#v", a)
	}
}

func TestLoadFeeds_RejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"shrinking factor": "activities:\n  backoff_factor: 0.5\n",
		"negative retry":   "notifications:\n  max_retry: -1\n",
		"negative delay":   "notifications:\n  base_delay: -1s\n",
		"bad yaml":         "notifications: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "feeds.yaml")
			writeFeeds(t, path, body)
			if _, err := LoadFeeds(path); err == nil {
				t.Fatalf("LoadFeeds() error = nil")
			}
		})
	}
}

func TestDefaultFeedsValidate(t *testing.T) {
	if err := DefaultFeeds().Validate(); err != nil {
		t.Fatalf("DefaultFeeds().Validate() error = %v", err)
	}
}

func TestWatchFeeds_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	writeFeeds(t, path, "notifications:\n  poll_interval: 10s\n")

	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan FeedsConfig, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchFeeds(ctx, path, logger, func(cfg FeedsConfig) { updates <- cfg })
	}()

	// Give the watcher time to register before editing.
	time.Sleep(100 * time.Millisecond)
	writeFeeds(t, path, "notifications:\n  poll_interval: 45s\n")

	select {
	case cfg := <-updates:
		if cfg.Notifications.PollInterval != 45*time.Second {
			t.Fatalf("reloaded poll interval = %s, want 45s", cfg.Notifications.PollInterval)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no reload after editing feeds file")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("WatchFeeds() error = %v", err)
	}
}
