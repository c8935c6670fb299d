package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for optional feed tuning fields.
const (
	DefaultPollInterval  = 30 * time.Second
	DefaultMaxRetry      = 3
	DefaultBaseDelay     = time.Second
	DefaultBackoffFactor = 2.0
	DefaultMaxDelay      = 30 * time.Second
	DefaultDedupCapacity = 500
	DefaultPageSize      = 20
)

// FeedTuning configures one feed manager.
type FeedTuning struct {
	Enabled       *bool         `yaml:"enabled"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxRetry      *int          `yaml:"max_retry"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	ChannelScope  string        `yaml:"channel_scope"`
	PageSize      int           `yaml:"page_size"`
	DedupCapacity int           `yaml:"dedup_capacity"`
	DedupWindow   time.Duration `yaml:"dedup_window"`
	// DedupRealtime drops realtime inserts whose id was already delivered.
	DedupRealtime bool `yaml:"dedup_realtime"`
}

func (t FeedTuning) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

func (t FeedTuning) Retries() int {
	if t.MaxRetry == nil {
		return DefaultMaxRetry
	}
	return *t.MaxRetry
}

type FeedsConfig struct {
	Notifications FeedTuning `yaml:"notifications"`
	Activities    FeedTuning `yaml:"activities"`
}

// DefaultFeeds is used when no feeds file is configured.
func DefaultFeeds() FeedsConfig {
	var cfg FeedsConfig
	cfg.applyDefaults()
	return cfg
}

// LoadFeeds reads a feeds file, expanding ${VAR} references, then applies
// defaults and validates.
func LoadFeeds(path string) (FeedsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FeedsConfig{}, fmt.Errorf("read feeds file: %w", err)
	}
	var cfg FeedsConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return FeedsConfig{}, fmt.Errorf("parse feeds yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return FeedsConfig{}, fmt.Errorf("validate feeds: %w", err)
	}
	return cfg, nil
}

func (c *FeedsConfig) applyDefaults() {
	applyTuningDefaults(&c.Notifications)
	applyTuningDefaults(&c.Activities)
}

func applyTuningDefaults(t *FeedTuning) {
	if t.PollInterval == 0 {
		t.PollInterval = DefaultPollInterval
	}
	if t.BaseDelay == 0 {
		t.BaseDelay = DefaultBaseDelay
	}
	if t.BackoffFactor == 0 {
		t.BackoffFactor = DefaultBackoffFactor
	}
	if t.MaxDelay == 0 {
		t.MaxDelay = DefaultMaxDelay
	}
	if t.PageSize == 0 {
		t.PageSize = DefaultPageSize
	}
	if t.DedupCapacity == 0 {
		t.DedupCapacity = DefaultDedupCapacity
	}
}

func (c FeedsConfig) Validate() error {
	if err := c.Notifications.validate("notifications"); err != nil {
		return err
	}
	return c.Activities.validate("activities")
}

func (t FeedTuning) validate(prefix string) error {
	if t.PollInterval < 0 {
		return fmt.Errorf("%s.poll_interval must be >= 0", prefix)
	}
	if t.Retries() < 0 {
		return fmt.Errorf("%s.max_retry must be >= 0, got %d", prefix, t.Retries())
	}
	if t.BaseDelay <= 0 {
		return fmt.Errorf("%s.base_delay must be positive", prefix)
	}
	if t.BackoffFactor < 1 {
		return fmt.Errorf("%s.backoff_factor must be >= 1, got %v", prefix, t.BackoffFactor)
	}
	if t.MaxDelay < 0 {
		return fmt.Errorf("%s.max_delay must be >= 0", prefix)
	}
	if t.PageSize < 1 {
		return errors.New(prefix + ".page_size must be >= 1")
	}
	if t.DedupCapacity < 1 {
		return errors.New(prefix + ".dedup_capacity must be >= 1")
	}
	return nil
}
