package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedsync/internal/app"
	"feedsync/internal/config"
	"feedsync/internal/feed"
	"feedsync/internal/instance"
	"feedsync/internal/logging"
	"feedsync/internal/runtime"
	"feedsync/internal/ui/headless"

	flags "github.com/jessevdk/go-flags"
)

var BuildVersion = "dev"

const plainStopTimeout = 10 * time.Second

func main() {
	rootCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	opts, err := config.ParseOptions()
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if opts.SaveSettings {
		merged := opts
		if saved, loadErr := config.LoadSettings(); loadErr == nil {
			merged = config.MergeOptionsWithSettings(opts, saved)
		}
		if saveErr := config.SaveSettings(config.SettingsFromOptions(merged)); saveErr != nil {
			fmt.Fprintln(os.Stderr, "failed to save settings:", saveErr)
			os.Exit(2)
		}
	}

	lock, err := instance.Acquire("feedsync")
	switch {
	case errors.Is(err, instance.ErrAlreadyRunning):
		fmt.Fprintln(os.Stderr, "feedsync is already running.")
		os.Exit(1)
	case err != nil:
		fmt.Fprintln(os.Stderr, "failed to initialize single-instance lock:", err)
		os.Exit(2)
	}
	defer func() {
		_ = lock.Release()
	}()

	if opts.Plain {
		os.Exit(runPlain(rootCtx, opts))
	}
	headless.Run(rootCtx, BuildVersion, opts)
}

// runPlain runs the feeds without the dashboard and logs every delivery to
// the terminal until a signal arrives or the runtime exits.
func runPlain(ctx context.Context, opts config.Options) int {
	if saved, loadErr := config.LoadSettings(); loadErr == nil {
		opts = config.MergeOptionsWithSettings(opts, saved)
	}

	logger := logging.New(opts.Debug)
	defer func() {
		_ = logger.Close()
	}()
	logger.Info("starting feedsync", logging.Field("version", BuildVersion), logging.Field("transport", opts.Transport))

	exited := make(chan error, 1)
	controller := runtime.NewController(ctx)
	err := controller.Start(opts, logger, runtime.StartHooks{
		OnStatus: func(status string) {
			logger.Info("connectivity changed", logging.Field("status", status))
		},
		OnFeedState: func(s feed.State) {
			logger.Debug("feed state",
				logging.Field("feed", s.Feed),
				logging.Field("connection_state", s.ConnectionState),
				logging.Field("polling_fallback", s.IsPollingFallback),
				logging.Field("attempts", s.Attempts),
				logging.Field("unread", s.UnreadCount))
		},
		OnDelivery: func(d app.Delivery) {
			logger.Info("event",
				logging.Field("feed", d.Feed),
				logging.Field("op", d.Op),
				logging.Field("id", d.View.ID),
				logging.Field("type", d.View.Type),
				logging.Field("actor", d.View.Actor.Name()),
				logging.Field("target", d.View.Target))
		},
		OnExit: func(runErr error) {
			exited <- runErr
		},
	})
	if err != nil {
		logger.Error("failed to start feeds", logging.Field("error", err))
		return 2
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		if !controller.StopAndWait(plainStopTimeout) {
			logger.Warn("feeds did not stop in time")
			return 1
		}
		return 0
	case runErr := <-exited:
		if runErr != nil {
			logger.Error("feeds stopped", logging.Field("error", runErr))
			return 1
		}
		return 0
	}
}
