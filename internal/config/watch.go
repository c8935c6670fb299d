package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"feedsync/internal/logging"
)

const feedsReloadDebounce = 250 * time.Millisecond

// WatchFeeds reloads path whenever it changes and calls onChange with each
// valid configuration. Invalid edits are logged and skipped. The directory is
// watched rather than the file so editors that replace the file on save keep
// working.
func WatchFeeds(ctx context.Context, path string, logger *logging.Logger, onChange func(FeedsConfig)) error {
	if logger == nil {
		panic("config.WatchFeeds: logger must not be nil")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch feeds directory %s: %w", dir, err)
	}
	logger.Debugf("watching feeds file: %s", target)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debugf("fsnotify event: op=%s path=%s", event.Op.String(), event.Name)
			debounce = time.After(feedsReloadDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("feeds watcher error", logging.Field("error", err))
		case <-debounce:
			debounce = nil
			cfg, err := LoadFeeds(target)
			if err != nil {
				logger.Warn("ignoring invalid feeds file", logging.Field("path", target), logging.Field("error", err))
				continue
			}
			logger.Info("feeds file reloaded", logging.Field("path", target))
			onChange(cfg)
		}
	}
}
