package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"feedsync/internal/client"
	"feedsync/internal/clock"
	"feedsync/internal/config"
	"feedsync/internal/feed"
	"feedsync/internal/hydrate"
	"feedsync/internal/logging"
	"feedsync/internal/netmon"
	"feedsync/internal/runctx"
	"feedsync/internal/runstatus"
)

const deliveryBufferSize = 256

// API is the part of the read API the app drives directly.
type API interface {
	ListEvents(ctx context.Context, feed string, cursor string, limit int) (client.EventPage, error)
	MarkRead(ctx context.Context, ids []string) error
}

// Delivery is one view handed to the consumer.
type Delivery struct {
	Feed feed.Feed
	Op   feed.Op
	View hydrate.View
}

type Callbacks struct {
	OnStatusChange func(string)
	OnFeedState    func(feed.State)
	OnDelivery     func(Delivery)
}

// Deps are the collaborators shared by every feed manager.
type Deps struct {
	API      API
	Source   feed.ClientSource
	Hydrator feed.Hydrator
	Network  *netmon.Monitor
	// Prober keeps Network current. Nil leaves Network to the caller.
	Prober *netmon.Prober
	Clock  clock.Clock
	// Closers are released when RunContext returns.
	Closers []io.Closer
}

type FeedApp struct {
	opts   config.Options
	deps   Deps
	logger *logging.Logger
	hooks  Callbacks
	status runtimeStatusState

	deliveries chan Delivery

	mu       sync.Mutex
	running  bool
	managers map[feed.Feed]*runningFeed

	statesMu sync.Mutex
	states   map[feed.Feed]feed.State
}

type runningFeed struct {
	manager     *feed.Manager
	unsubscribe func()
}

func New(opts config.Options, deps Deps, logger *logging.Logger, hooks Callbacks) *FeedApp {
	if logger == nil {
		panic("app.New: logger must not be nil")
	}
	if deps.Source == nil {
		panic("app.New: realtime source must not be nil")
	}
	if deps.Network == nil {
		deps.Network = netmon.New(true, logger)
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	return &FeedApp{
		opts:       opts,
		deps:       deps,
		logger:     logger,
		hooks:      hooks,
		deliveries: make(chan Delivery, deliveryBufferSize),
		managers:   map[feed.Feed]*runningFeed{},
		states:     map[feed.Feed]feed.State{},
	}
}

func (a *FeedApp) Run() error {
	return a.RunContext(context.Background())
}

// RunContext starts every enabled feed and keeps them running until ctx is
// done. A feeds file, when configured, is watched and edits are applied live.
func (a *FeedApp) RunContext(ctx context.Context) error {
	feeds, err := a.loadFeeds()
	if err != nil {
		return err
	}
	a.logger.Info("feedsync app starting",
		logging.Field("transport", a.opts.Transport),
		logging.Field("feeds_file", a.opts.FeedsFile),
		logging.Field("notifications_enabled", feeds.Notifications.IsEnabled()),
		logging.Field("activities_enabled", feeds.Activities.IsEnabled()),
	)
	defer a.closeDeps()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	unsubscribeNetwork := a.deps.Network.OnChange(func(online bool) {
		a.logger.Info("network reachability changed", logging.Field("online", online))
		a.refreshStatus()
	})
	defer unsubscribeNetwork()

	var wg sync.WaitGroup
	wg.Go(func() { a.forwardDeliveries(runCtx) })
	if a.deps.Prober != nil {
		prober := *a.deps.Prober
		wg.Go(func() { prober.Run(runCtx, a.deps.Network) })
	}

	if err := a.applyFeeds(feeds); err != nil {
		a.stopAll()
		cancel()
		wg.Wait()
		return err
	}

	if path := strings.TrimSpace(a.opts.FeedsFile); path != "" {
		wg.Go(func() {
			watchErr := config.WatchFeeds(runCtx, path, a.logger, func(next config.FeedsConfig) {
				if err := a.applyFeeds(next); err != nil {
					a.logger.Warn("failed to apply feeds update", logging.Field("error", err))
				}
			})
			if watchErr != nil && runCtx.Err() == nil {
				a.logger.Warn("feeds file watcher stopped", logging.Field("error", watchErr))
			}
		})
	}

	<-ctx.Done()
	a.logger.Debug("stopping feedsync app: context canceled", logging.Field("error", ctx.Err()))
	a.stopAll()
	cancel()
	wg.Wait()
	a.setRuntimeStatus(runstatus.Stopped)
	a.logger.Info("feedsync app stopped")
	return nil
}

// Refresh refreshes every running feed and joins their errors.
func (a *FeedApp) Refresh(ctx context.Context) error {
	managers := a.runningManagers()
	if len(managers) == 0 {
		return ErrNotRunning
	}
	var errs []error
	for _, m := range managers {
		if err := m.Refresh(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MarkRead marks notifications read and refreshes the notifications feed so
// the unread count follows.
func (a *FeedApp) MarkRead(ctx context.Context, ids []string) error {
	if a.deps.API == nil {
		return fmt.Errorf("%w: no read API configured", ErrMarkReadFailed)
	}
	if err := a.deps.API.MarkRead(ctx, ids); err != nil {
		return fmt.Errorf("%w: %w", ErrMarkReadFailed, err)
	}
	a.mu.Lock()
	rf := a.managers[feed.Notifications]
	a.mu.Unlock()
	if rf == nil {
		return nil
	}
	if err := rf.manager.Refresh(ctx); err != nil {
		a.logger.Debug("refresh after mark read failed", logging.Field("error", err))
	}
	return nil
}

// States returns the latest state of every running feed.
func (a *FeedApp) States() []feed.State {
	a.statesMu.Lock()
	defer a.statesMu.Unlock()
	return a.sortedStatesLocked()
}

func (a *FeedApp) loadFeeds() (config.FeedsConfig, error) {
	path := strings.TrimSpace(a.opts.FeedsFile)
	if path == "" {
		return config.DefaultFeeds(), nil
	}
	feeds, err := config.LoadFeeds(path)
	if err != nil {
		return config.FeedsConfig{}, fmt.Errorf("%w: %w", ErrFeedsConfig, err)
	}
	return feeds, nil
}

// applyFeeds reconciles running managers with feeds. A feed whose effective
// config is unchanged keeps running untouched.
func (a *FeedApp) applyFeeds(feeds config.FeedsConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return ErrNotRunning
	}
	var errs []error
	for _, kind := range []feed.Feed{feed.Notifications, feed.Activities} {
		tuning := feeds.Notifications
		if kind == feed.Activities {
			tuning = feeds.Activities
		}
		cfg := a.feedConfig(kind, tuning)
		current := a.managers[kind]
		if current != nil && current.manager.Config() == cfg {
			continue
		}
		if current != nil {
			a.logger.Info("restarting feed with new settings", logging.Field("feed", string(kind)))
			a.stopFeedLocked(kind)
		}
		if !cfg.Enabled {
			a.logger.Info("feed disabled", logging.Field("feed", string(kind)))
			continue
		}
		if err := a.startFeedLocked(kind, cfg); err != nil {
			errs = append(errs, err)
		}
	}
	a.refreshStatus()
	return errors.Join(errs...)
}

func (a *FeedApp) feedConfig(kind feed.Feed, t config.FeedTuning) feed.Config {
	scope := strings.TrimSpace(t.ChannelScope)
	if scope == "" && kind == feed.Notifications {
		scope = strings.TrimSpace(a.opts.UserID)
	}
	return feed.Config{
		Enabled:         t.IsEnabled(),
		PollInterval:    t.PollInterval,
		MaxRetry:        t.Retries(),
		BaseDelay:       t.BaseDelay,
		BackoffFactor:   t.BackoffFactor,
		MaxDelay:        t.MaxDelay,
		ChannelScopeKey: scope,
		PageSize:        t.PageSize,
		DedupCapacity:   t.DedupCapacity,
		DedupWindow:     t.DedupWindow,
		DedupRealtime:   t.DedupRealtime,
	}
}

func (a *FeedApp) startFeedLocked(kind feed.Feed, cfg feed.Config) error {
	deps := feed.Deps{
		Source:   a.deps.Source,
		Hydrator: a.deps.Hydrator,
		Fetch:    a.fetcher(kind, cfg.PageSize),
		Network:  a.deps.Network,
		Clock:    a.deps.Clock,
		Logger:   a.logger,
	}
	var (
		m   *feed.Manager
		err error
	)
	switch kind {
	case feed.Notifications:
		m, err = feed.NewNotifications(cfg, deps)
	default:
		m, err = feed.NewActivities(cfg, deps)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFeedSetup, err)
	}
	m.SetCallbacks(feed.Callbacks{
		OnInsert: a.handler(kind, feed.OpInsert),
		OnUpdate: a.handler(kind, feed.OpUpdate),
		OnDelete: a.handler(kind, feed.OpDelete),
	})
	rf := &runningFeed{manager: m, unsubscribe: m.OnState(a.onFeedState)}
	a.managers[kind] = rf
	m.Start()
	return nil
}

func (a *FeedApp) stopFeedLocked(kind feed.Feed) {
	rf := a.managers[kind]
	if rf == nil {
		return
	}
	delete(a.managers, kind)
	rf.unsubscribe()
	rf.manager.Stop()

	a.statesMu.Lock()
	delete(a.states, kind)
	a.statesMu.Unlock()
	if a.hooks.OnFeedState != nil {
		a.hooks.OnFeedState(rf.manager.State())
	}
}

// stopAll stops every feed and waits for their background work, so nothing
// touches the transport after closeDeps.
func (a *FeedApp) stopAll() {
	a.mu.Lock()
	a.running = false
	stopped := make([]*feed.Manager, 0, len(a.managers))
	for kind, rf := range a.managers {
		stopped = append(stopped, rf.manager)
		a.stopFeedLocked(kind)
	}
	a.mu.Unlock()

	for _, m := range stopped {
		m.Wait()
	}
}

func (a *FeedApp) runningManagers() []*feed.Manager {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*feed.Manager, 0, len(a.managers))
	for _, kind := range []feed.Feed{feed.Notifications, feed.Activities} {
		if rf := a.managers[kind]; rf != nil {
			out = append(out, rf.manager)
		}
	}
	return out
}

func (a *FeedApp) fetcher(kind feed.Feed, pageSize int) feed.Fetcher {
	if a.deps.API == nil {
		return nil
	}
	return func(ctx context.Context) (client.EventPage, error) {
		return a.deps.API.ListEvents(ctx, string(kind), "", pageSize)
	}
}

func (a *FeedApp) handler(kind feed.Feed, op feed.Op) feed.Handler {
	return func(view hydrate.View) error {
		a.logger.Debug("feed delivery",
			logging.Field("feed", string(kind)),
			logging.Field("op", string(op)),
			logging.Field("id", view.ID),
			logging.Field("target", view.Target),
		)
		if err := runctx.TrySend(a.deliveries, Delivery{Feed: kind, Op: op, View: view}); err != nil {
			return fmt.Errorf("drop %s %s: %w", kind, view.ID, err)
		}
		return nil
	}
}

func (a *FeedApp) forwardDeliveries(ctx context.Context) {
	for {
		d, ok := runctx.RecvOrDone(ctx, "delivery forwarder", a.logger, a.deliveries)
		if !ok {
			return
		}
		if a.hooks.OnDelivery != nil {
			a.hooks.OnDelivery(d)
		}
	}
}

func (a *FeedApp) onFeedState(s feed.State) {
	a.statesMu.Lock()
	a.states[s.Feed] = s
	a.statesMu.Unlock()
	if a.hooks.OnFeedState != nil {
		a.hooks.OnFeedState(s)
	}
	a.refreshStatus()
}

func (a *FeedApp) refreshStatus() {
	a.statesMu.Lock()
	states := a.sortedStatesLocked()
	a.statesMu.Unlock()
	a.setRuntimeStatus(runstatus.Summarize(a.deps.Network.Online(), states))
}

func (a *FeedApp) sortedStatesLocked() []feed.State {
	out := make([]feed.State, 0, len(a.states))
	for _, s := range a.states {
		out = append(out, s)
	}
	slices.SortFunc(out, func(x, y feed.State) int { return strings.Compare(string(x.Feed), string(y.Feed)) })
	return out
}

func (a *FeedApp) closeDeps() {
	for _, c := range a.deps.Closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("failed to close dependency", logging.Field("error", err))
		}
	}
}

type runtimeStatusState struct {
	mu      sync.Mutex
	current string
}

func (s *runtimeStatusState) update(status string) (string, string, bool) {
	trimmed := strings.TrimSpace(status)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == trimmed {
		return s.current, trimmed, false
	}
	previous := s.current
	s.current = trimmed
	return previous, trimmed, true
}

func (a *FeedApp) notifyStatus(status string) {
	if a.hooks.OnStatusChange == nil {
		return
	}
	a.hooks.OnStatusChange(status)
}

func (a *FeedApp) setRuntimeStatus(status string) {
	previous, next, changed := a.status.update(status)
	if !changed {
		return
	}
	a.logger.Debug("runtime status transition",
		logging.Field("from", previous),
		logging.Field("to", next),
	)
	a.notifyStatus(status)
}
