// Package feed keeps the notification and activity feeds in sync with the
// backend. A Manager owns one realtime channel, reconnects it with bounded
// backoff, falls back to polling once the retry budget is spent and returns to
// push when the connection recovers.
package feed

import (
	"fmt"
	"time"

	"feedsync/internal/retry"
)

type Feed string

const (
	Notifications Feed = "notifications"
	Activities    Feed = "activities"
)

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateRealtime     ConnectionState = "realtime"
	StatePolling      ConnectionState = "polling"
	StateError        ConnectionState = "error"
)

// State is a snapshot for the UI. Err is diagnostic only.
type State struct {
	Feed              Feed
	IsSubscribed      bool
	ConnectionState   ConnectionState
	IsPollingFallback bool
	Err               error
	IsRefreshing      bool
	Attempts          int
	UnreadCount       int
}

type Config struct {
	Enabled bool
	// PollInterval must be positive for the polling fallback to activate.
	PollInterval  time.Duration
	MaxRetry      int
	BaseDelay     time.Duration
	BackoffFactor float64
	// MaxDelay caps a single reconnect delay. Zero means uncapped.
	MaxDelay        time.Duration
	ChannelScopeKey string

	PageSize      int
	DedupCapacity int
	DedupWindow   time.Duration
	// DedupRealtime drops realtime inserts for ids already delivered.
	DedupRealtime bool
}

func (c Config) retryConfig() retry.Config {
	return retry.Config{
		MaxRetry:  c.MaxRetry,
		BaseDelay: c.BaseDelay,
		Factor:    c.BackoffFactor,
		MaxDelay:  c.MaxDelay,
	}
}

func (c Config) Validate() error {
	if err := c.retryConfig().Validate(); err != nil {
		return err
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must be >= 0, got %s", c.PollInterval)
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page size must be >= 0, got %d", c.PageSize)
	}
	if c.DedupWindow < 0 {
		return fmt.Errorf("dedup window must be >= 0, got %s", c.DedupWindow)
	}
	return nil
}
