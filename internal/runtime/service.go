package runtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feedsync/internal/app"
	"feedsync/internal/client"
	"feedsync/internal/clock"
	"feedsync/internal/config"
	"feedsync/internal/hydrate"
	"feedsync/internal/logging"
	"feedsync/internal/netmon"
	"feedsync/internal/realtime"
	"feedsync/internal/realtime/phoenix"
	"feedsync/internal/realtime/sse"
	"feedsync/internal/store"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	storeOpenTimeout   = 10 * time.Second
	sessionRefreshLead = 30 * time.Second
)

type Service interface {
	RunContext(ctx context.Context) error
	Refresh(ctx context.Context) error
	MarkRead(ctx context.Context, ids []string) error
}

func NewService(opts config.Options, logger *logging.Logger) (Service, error) {
	return NewServiceWithHooks(opts, logger, StartHooks{})
}

func NewServiceWithHooks(opts config.Options, logger *logging.Logger, hooks StartHooks) (Service, error) {
	if logger == nil {
		panic("runtime.NewServiceWithHooks: logger must not be nil")
	}
	if err := config.ValidateRequired(opts); err != nil {
		return nil, err
	}

	endpoints, err := config.BuildEndpoints(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if override := strings.TrimSpace(opts.RealtimeURL); override != "" {
		endpoints.RealtimeURL = override
	}
	logger.Debug("constructed API endpoints",
		logging.Field("base_url", endpoints.BaseURL),
		logging.Field("session_url", endpoints.SessionURL),
		logging.Field("session_refresh_url", endpoints.SessionRefreshURL),
		logging.Field("realtime_url", endpoints.RealtimeURL),
		logging.Field("mark_read_url", endpoints.MarkReadURL),
		logging.Field("probe_address", endpoints.ProbeAddress),
	)

	clk := clock.Real()
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	feedClient := client.New(httpClient, opts.Token, endpoints, logger)
	auth := client.NewSessionAuth(feedClient, clk)
	provider := realtime.NewProvider(transportFactory(opts, endpoints.RealtimeURL, auth, clk, logger))
	closers := []io.Closer{provider}

	var lookup hydrate.Lookup
	if dsn := strings.TrimSpace(opts.StoreDSN); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), storeOpenTimeout)
		st, err := store.Open(ctx, dsn)
		cancel()
		if err != nil {
			logger.Warn("direct store unavailable; hydrating from the read API only", logging.Field("error", err))
		} else {
			lookup = st
			closers = append(closers, st)
		}
	}

	network := netmon.New(true, logger)
	return app.New(opts, app.Deps{
		API:      feedClient,
		Source:   provider,
		Hydrator: hydrate.New(feedClient, lookup, logger),
		Network:  network,
		Prober: &netmon.Prober{
			Address:  endpoints.ProbeAddress,
			Interval: opts.ProbeInterval,
			Clock:    clk,
			Logger:   logger,
		},
		Clock:   clk,
		Closers: closers,
	}, logger, app.Callbacks{
		OnStatusChange: hooks.OnStatus,
		OnFeedState:    hooks.OnFeedState,
		OnDelivery:     hooks.OnDelivery,
	}), nil
}

// transportFactory defers building the realtime client until a feed first
// connects, so a bad transport setting surfaces as a feed error.
func transportFactory(opts config.Options, realtimeURL string, auth realtime.Auth, clk clock.Clock, logger *logging.Logger) realtime.Factory {
	return func() (realtime.Client, error) {
		switch opts.Transport {
		case config.TransportWebsocket:
			return phoenix.New(phoenix.Options{
				URL:    realtimeURL,
				APIKey: opts.RealtimeKey,
				Auth:   auth,
				Clock:  clk,
				Logger: logger,
			})
		case "", config.TransportSSE:
			return sse.New(sse.Options{
				HTTP:        &http.Client{},
				URL:         realtimeURL,
				Auth:        auth,
				RefreshLead: sessionRefreshLead,
				Clock:       clk,
				Logger:      logger,
			})
		default:
			return nil, fmt.Errorf("unknown realtime transport %q", opts.Transport)
		}
	}
}
