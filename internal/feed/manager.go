package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"feedsync/internal/client"
	"feedsync/internal/clock"
	"feedsync/internal/dedup"
	"feedsync/internal/hydrate"
	"feedsync/internal/logging"
	"feedsync/internal/netmon"
	"feedsync/internal/realtime"
	"feedsync/internal/retry"
)

const (
	sessionDiagnosticsTimeout = 2 * time.Second
	// maxQueuedEvents bounds realtime events waiting for hydration. The
	// oldest is dropped when a slow hydrator lets the queue fill up.
	maxQueuedEvents = 256
)

// ClientSource hands out the shared realtime client. realtime.Provider
// satisfies it.
type ClientSource interface {
	Client() (realtime.Client, error)
}

// Hydrator resolves event ids to views. A nil view means nothing resolved.
type Hydrator interface {
	Hydrate(ctx context.Context, feed string, id string) (*hydrate.View, error)
	HydrateMany(ctx context.Context, feed string, ids []string) (map[string]*hydrate.View, error)
}

// Fetcher reads the head of the feed for polling and refresh.
type Fetcher func(ctx context.Context) (client.EventPage, error)

type Deps struct {
	Source   ClientSource
	Hydrator Hydrator
	// Fetch enables polling fallback and Refresh. It may be nil.
	Fetch Fetcher
	// Network may be nil, in which case the manager assumes it is online.
	Network *netmon.Monitor
	Clock   clock.Clock
	Logger  *logging.Logger
}

// Manager keeps one feed live. All methods are safe for concurrent use.
type Manager struct {
	def      definition
	cfg      Config
	source   ClientSource
	hydrator Hydrator
	fetch    Fetcher
	network  *netmon.Monitor
	clock    clock.Clock
	logger   *logging.Logger
	retry    *retry.Scheduler
	seen     *dedup.Set

	callbacks atomic.Pointer[Callbacks]

	mu          sync.Mutex
	started     bool
	epoch       uint64
	cancel      context.CancelFunc
	rc          realtime.Client
	channel     realtime.Channel
	poll        *poller
	refreshing  int
	state       State
	unsubscribe []func()
	inbox       []queuedEvent
	draining    bool

	// work tracks connect attempts, queued event handling and failure
	// diagnostics. Add is only called under mu while started.
	work sync.WaitGroup

	notifyMu     sync.Mutex
	observers    map[int]func(State)
	nextObserver int
}

func NewNotifications(cfg Config, deps Deps) (*Manager, error) {
	return newManager(notificationsDefinition, cfg, deps)
}

func NewActivities(cfg Config, deps Deps) (*Manager, error) {
	return newManager(activitiesDefinition, cfg, deps)
}

func newManager(def definition, cfg Config, deps Deps) (*Manager, error) {
	if deps.Logger == nil {
		panic("feed.New: logger must not be nil")
	}
	if deps.Source == nil {
		panic("feed.New: client source must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s config: %w", def.feed, err)
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger.With(logging.Field("feed", string(def.feed)))
	m := &Manager{
		def:       def,
		cfg:       cfg,
		source:    deps.Source,
		hydrator:  deps.Hydrator,
		fetch:     deps.Fetch,
		network:   deps.Network,
		clock:     clk,
		logger:    logger,
		retry:     retry.New(cfg.retryConfig(), clk, logger),
		seen:      dedup.New(cfg.DedupCapacity, cfg.DedupWindow, clk),
		observers: map[int]func(State){},
		state:     State{Feed: def.feed, ConnectionState: StateDisconnected},
	}
	m.callbacks.Store(&Callbacks{})
	return m, nil
}

func (m *Manager) Feed() Feed {
	return m.def.feed
}

func (m *Manager) Config() Config {
	return m.cfg
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	s := m.state
	m.mu.Unlock()
	s.Attempts = m.retry.Attempts()
	return s
}

// OnState registers fn for every state change. fn runs synchronously and must
// not call back into the manager. The returned func unregisters it.
func (m *Manager) OnState(fn func(State)) func() {
	if fn == nil {
		panic("feed.Manager.OnState: callback must not be nil")
	}
	m.notifyMu.Lock()
	id := m.nextObserver
	m.nextObserver++
	m.observers[id] = fn
	m.notifyMu.Unlock()
	return func() {
		m.notifyMu.Lock()
		delete(m.observers, id)
		m.notifyMu.Unlock()
	}
}

func (m *Manager) publish() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if len(m.observers) == 0 {
		return
	}
	snapshot := m.State()
	for _, fn := range m.observers {
		fn(snapshot)
	}
}

// Start enables the feed. While online it begins connecting in the
// background; otherwise it waits for the network to come back. A disabled
// config makes Start a no-op.
func (m *Manager) Start() {
	if !m.cfg.Enabled {
		m.logger.Info("feed disabled")
		return
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.state = State{Feed: m.def.feed, ConnectionState: StateDisconnected}
	if m.network != nil {
		m.unsubscribe = append(m.unsubscribe,
			m.network.OnChange(func(online bool) {
				if !online {
					m.goOffline()
				}
			}),
			m.network.OnOnline(m.comeOnline),
		)
	}
	m.mu.Unlock()

	m.logger.Info("feed started", logging.Field("channel", m.channelName()))
	m.attempt("start")
}

// Stop tears the feed down: the channel is removed, every timer is cancelled
// and in-flight work is discarded. Delivered ids are forgotten, so a later
// Start begins with an empty dedup set.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	rc, ch, poll := m.invalidateLocked()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.state = State{Feed: m.def.feed, ConnectionState: StateDisconnected}
	m.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	m.retry.Reset()
	m.seen.Clear()
	poll.stop()
	m.removeChannel(rc, ch)
	m.logger.Info("feed stopped")
	m.publish()
}

// Wait blocks until background connect attempts and queued realtime
// deliveries finish. Once Stop and Wait return, no realtime event reaches the
// callbacks.
func (m *Manager) Wait() {
	m.work.Wait()
}

func (m *Manager) goOffline() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	rc, ch, poll := m.invalidateLocked()
	m.state.ConnectionState = StateDisconnected
	m.state.IsSubscribed = false
	m.state.IsPollingFallback = false
	m.mu.Unlock()

	m.retry.Clear()
	poll.stop()
	m.removeChannel(rc, ch)
	m.logger.Info("feed paused while offline")
	m.publish()
}

func (m *Manager) comeOnline() {
	m.retry.Reset()
	m.attempt("online")
}

// invalidateLocked supersedes the current epoch and detaches the channel and
// poller so the caller can release them outside the lock.
func (m *Manager) invalidateLocked() (realtime.Client, realtime.Channel, *poller) {
	m.epoch++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	rc, ch, poll := m.rc, m.channel, m.poll
	m.channel = nil
	m.poll = nil
	clear(m.inbox)
	m.inbox = m.inbox[:0]
	return rc, ch, poll
}

func (m *Manager) removeChannel(rc realtime.Client, ch realtime.Channel) {
	if rc == nil || ch == nil {
		return
	}
	if err := rc.RemoveChannel(ch); err != nil {
		m.logger.Warn("remove channel failed",
			logging.Field("channel", ch.Name()),
			logging.Field("error", err))
	}
}

func (m *Manager) online() bool {
	return m.network == nil || m.network.Online()
}

func (m *Manager) channelName() string {
	return m.def.channelName(m.cfg.ChannelScopeKey)
}

// attempt starts a fresh connect sequence under a new epoch on its own
// goroutine, so network callbacks and Start never wait on the session
// lookup. Polling, if active, keeps running until the channel reports
// SUBSCRIBED.
func (m *Manager) attempt(reason string) {
	online := m.online()

	m.mu.Lock()
	if !m.started || !online {
		m.mu.Unlock()
		return
	}
	m.epoch++
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	epoch := m.epoch
	rc, stale := m.rc, m.channel
	m.channel = nil
	m.state.IsSubscribed = false
	if m.poll == nil {
		m.state.ConnectionState = StateConnecting
	}
	m.work.Add(1)
	m.mu.Unlock()

	m.removeChannel(rc, stale)
	m.logger.Debug("connecting",
		logging.Field("reason", reason),
		logging.Field("epoch", epoch),
		logging.Field("attempt_id", uuid.NewString()))
	m.publish()
	go func() {
		defer m.work.Done()
		m.connect(ctx, epoch)
	}()
}

func (m *Manager) current(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && m.epoch == epoch
}

func (m *Manager) connect(ctx context.Context, epoch uint64) {
	rc, err := m.source.Client()
	if err != nil {
		m.fail(epoch, newError(ErrClientConstruction, m.def.feed, err))
		return
	}

	name := m.channelName()
	ready := EnsureSessionReady(ctx, rc, name, m.def.requiresAuth, m.clock, m.logger)
	if !m.current(epoch) {
		return
	}
	if !ready {
		m.scheduleReconnect(epoch, newError(ErrSessionNotReady, m.def.feed, nil))
		return
	}

	ch := rc.Channel(name)
	m.def.bind(ch, m.cfg.ChannelScopeKey, func(env realtime.Envelope) {
		m.enqueue(ctx, epoch, env)
	})

	m.mu.Lock()
	if !m.started || m.epoch != epoch {
		m.mu.Unlock()
		m.removeChannel(rc, ch)
		return
	}
	m.rc = rc
	m.channel = ch
	m.mu.Unlock()

	ch.Subscribe(func(status realtime.Status, err error) {
		m.onStatus(ctx, epoch, rc, ch, status, err)
	})
}

// fail records a fault that no retry can fix.
func (m *Manager) fail(epoch uint64, err error) {
	m.mu.Lock()
	if !m.started || m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.state.ConnectionState = StateError
	m.state.IsSubscribed = false
	m.state.Err = err
	m.mu.Unlock()

	m.logger.Error("feed unavailable", logging.Field("error", err))
	m.publish()
}

func (m *Manager) onStatus(ctx context.Context, epoch uint64, rc realtime.Client, ch realtime.Channel, status realtime.Status, cause error) {
	m.mu.Lock()
	if !m.started || m.epoch != epoch || m.channel != ch {
		m.mu.Unlock()
		return
	}

	switch {
	case status == realtime.StatusSubscribed:
		m.state.ConnectionState = StateRealtime
		m.state.IsSubscribed = true
		m.state.IsPollingFallback = false
		m.state.Err = nil
		poll := m.poll
		m.poll = nil
		m.mu.Unlock()

		m.retry.Reset()
		poll.stop()
		m.logger.Info("realtime subscribed", logging.Field("channel", ch.Name()))
		m.publish()

	case status.Failed():
		m.channel = nil
		m.state.IsSubscribed = false
		m.work.Add(1)
		m.mu.Unlock()

		go func() {
			defer m.work.Done()
			m.logChannelFailure(ctx, rc, ch, status, cause)
		}()
		m.removeChannel(rc, ch)
		err := fmt.Errorf("%s", status)
		if cause != nil {
			err = fmt.Errorf("%s: %w", status, cause)
		}
		m.scheduleReconnect(epoch, newError(ErrChannelSubscriptionFailed, m.def.feed, err))

	default:
		m.mu.Unlock()
		m.logger.Debug("ignoring channel status", logging.Field("status", string(status)))
	}
}

// logChannelFailure adds session context to the failure log. The lookup is
// best effort and never changes the outcome.
func (m *Manager) logChannelFailure(ctx context.Context, rc realtime.Client, ch realtime.Channel, status realtime.Status, cause error) {
	fields := []slog.Attr{
		logging.Field("channel", ch.Name()),
		logging.Field("status", string(status)),
	}
	if cause != nil {
		fields = append(fields, logging.Field("error", cause))
	}

	lookupCtx, cancel := context.WithTimeout(ctx, sessionDiagnosticsTimeout)
	defer cancel()
	session, err := lookupSession(lookupCtx, rc)
	switch {
	case err != nil:
		fields = append(fields, logging.Field("session_error", err))
	case session == nil:
		fields = append(fields, logging.Field("session", "none"))
	default:
		fields = append(fields,
			logging.Field("session_user", session.UserID),
			logging.Field("session_valid", session.Valid(m.clock.Now())))
	}
	m.logger.Warn("realtime channel failed", fields...)
}

// scheduleReconnect arms the next retry or, once the budget is spent, falls
// back to polling when a fetcher exists and to the error state otherwise.
func (m *Manager) scheduleReconnect(epoch uint64, cause error) {
	m.mu.Lock()
	if !m.started || m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	delay, ok := m.retry.Schedule(func() { m.attempt("retry") })
	if ok {
		if m.poll == nil {
			m.state.ConnectionState = StateConnecting
		}
		m.state.Err = cause
		m.mu.Unlock()

		m.logger.Warn("reconnect scheduled",
			logging.Field("delay", delay.String()),
			logging.Field("error", cause))
		m.publish()
		return
	}

	if m.poll != nil {
		m.state.Err = cause
		m.mu.Unlock()
		m.logger.Warn("realtime still unavailable; polling continues", logging.Field("error", cause))
		m.publish()
		return
	}

	if m.fetch == nil || m.cfg.PollInterval <= 0 {
		m.state.ConnectionState = StateError
		m.state.Err = cause
		m.mu.Unlock()
		m.logger.Error("retries exhausted", logging.Field("error", cause))
		m.publish()
		return
	}

	poll := m.newPollerLocked()
	m.state.ConnectionState = StatePolling
	m.state.IsPollingFallback = true
	m.state.Err = cause
	m.mu.Unlock()

	m.logger.Warn("retries exhausted; polling",
		logging.Field("interval", m.cfg.PollInterval.String()),
		logging.Field("error", cause))
	m.publish()
	poll.start()
}

// Refresh fetches the head of the feed once and delivers unseen items through
// the same path as polling. From the polling or error state it also restores
// the retry budget and tries realtime again. Errors are recorded in State.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return newError(ErrNotStarted, m.def.feed, nil)
	}
	m.refreshing++
	m.state.IsRefreshing = true
	mode := m.state.ConnectionState
	m.mu.Unlock()
	m.publish()

	defer func() {
		m.mu.Lock()
		m.refreshing--
		m.state.IsRefreshing = m.refreshing > 0
		m.mu.Unlock()
		m.publish()
	}()

	var err error
	if m.fetch != nil {
		err = m.fetchAndDeliver(ctx, func() bool { return m.isStarted() })
	}

	if mode == StatePolling || mode == StateError {
		m.retry.Reset()
		m.attempt("refresh")
	}
	return err
}

func (m *Manager) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *Manager) setErr(err error) {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.state.Err = err
	m.mu.Unlock()
	m.publish()
}
