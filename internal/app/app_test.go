package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"feedsync/internal/client"
	"feedsync/internal/config"
	"feedsync/internal/feed"
	"feedsync/internal/hydrate"
	"feedsync/internal/logging"
	"feedsync/internal/netmon"
	"feedsync/internal/realtime"
	"feedsync/internal/realtime/realtimetest"
	"feedsync/internal/runstatus"
)

type fakeAPI struct {
	mu     sync.Mutex
	lists  []string
	marked [][]string
	err    error
}

func (f *fakeAPI) ListEvents(_ context.Context, feedName string, _ string, _ int) (client.EventPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, feedName)
	return client.EventPage{UnreadCount: 2}, nil
}

func (f *fakeAPI) MarkRead(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.marked = append(f.marked, ids)
	return nil
}

func (f *fakeAPI) listed(feedName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, name := range f.lists {
		if name == feedName {
			n++
		}
	}
	return n
}

type closeRecorder struct {
	mu     sync.Mutex
	closed int
}

func (c *closeRecorder) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

type recorder struct {
	mu         sync.Mutex
	statuses   []string
	deliveries []Delivery
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnStatusChange: func(status string) {
			r.mu.Lock()
			r.statuses = append(r.statuses, status)
			r.mu.Unlock()
		},
		OnDelivery: func(d Delivery) {
			r.mu.Lock()
			r.deliveries = append(r.deliveries, d)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) lastStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *recorder) delivered() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

type harness struct {
	rt      *realtimetest.Client
	api     *fakeAPI
	closer  *closeRecorder
	network *netmon.Monitor
	events  *recorder
	app     *FeedApp
}

func testLogger() *logging.Logger {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	return logger
}

func newHarness(t *testing.T, opts config.Options) *harness {
	t.Helper()
	logger := testLogger()
	auth := &realtimetest.Auth{}
	auth.Set(&realtime.Session{AccessToken: "token", UserID: "u1"}, nil)
	h := &harness{
		rt:      realtimetest.NewClient(auth),
		api:     &fakeAPI{},
		closer:  &closeRecorder{},
		network: netmon.New(true, logger),
		events:  &recorder{},
	}
	if opts.UserID == "" {
		opts.UserID = "u1"
	}
	h.app = New(opts, Deps{
		API:      h.api,
		Source:   realtime.NewProvider(func() (realtime.Client, error) { return h.rt, nil }),
		Hydrator: hydrate.New(nil, nil, logger),
		Network:  h.network,
		Closers:  []io.Closer{h.closer},
	}, logger, h.events.callbacks())
	return h
}

func (h *harness) run(t *testing.T) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.app.RunContext(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})
	return cancel, done
}

func (h *harness) channel(name string) *realtimetest.Channel {
	var found *realtimetest.Channel
	for _, ch := range h.rt.Channels() {
		if ch.Name() == name && ch.Subscribed() && !ch.Removed() {
			found = ch
		}
	}
	return found
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRunContextStartsFeedsAndForwardsDeliveries(t *testing.T) {
	h := newHarness(t, config.Options{})
	cancel, done := h.run(t)

	waitFor(t, "both channels", func() bool {
		return h.channel("notifications:u1") != nil && h.channel("activities:public") != nil
	})
	if got := h.events.lastStatus(); got != runstatus.Connecting {
		t.Fatalf("status = %q, want %q", got, runstatus.Connecting)
	}

	h.channel("notifications:u1").Emit(realtime.StatusSubscribed, nil)
	h.channel("activities:public").Emit(realtime.StatusSubscribed, nil)
	if got := h.events.lastStatus(); got != runstatus.Live {
		t.Fatalf("status = %q, want %q", got, runstatus.Live)
	}

	h.channel("activities:public").Deliver(realtime.Envelope{
		Kind:      realtime.KindRowChange,
		Action:    realtime.ActionDelete,
		Schema:    "public",
		Table:     "activities",
		OldRecord: json.RawMessage(`{"id":"a9","type":"LIKE","actor_id":"u2"}`),
	})
	waitFor(t, "delivery", func() bool { return len(h.events.delivered()) == 1 })
	d := h.events.delivered()[0]
	if d.Feed != feed.Activities || d.Op != feed.OpDelete || d.View.ID != "a9" {
		t.Fatalf("delivery = %+v", d)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunContext() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RunContext did not return after cancel")
	}
	if got := h.events.lastStatus(); got != runstatus.Stopped {
		t.Fatalf("status = %q, want %q", got, runstatus.Stopped)
	}
	if h.rt.Active() != 0 {
		t.Fatalf("active channels = %d, want 0", h.rt.Active())
	}
	if h.closer.closed != 1 {
		t.Fatalf("closers closed = %d, want 1", h.closer.closed)
	}
}

func TestOfflineOverridesFeedStatus(t *testing.T) {
	h := newHarness(t, config.Options{})
	h.run(t)
	waitFor(t, "channels", func() bool { return h.channel("activities:public") != nil })

	h.network.Set(false)
	if got := h.events.lastStatus(); got != runstatus.Offline {
		t.Fatalf("status = %q, want %q", got, runstatus.Offline)
	}
}

func TestRefreshAndMarkRead(t *testing.T) {
	h := newHarness(t, config.Options{})
	if err := h.app.Refresh(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Refresh() before run error = %v, want ErrNotRunning", err)
	}

	h.run(t)
	waitFor(t, "channels", func() bool { return len(h.app.States()) == 2 })

	if err := h.app.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if h.api.listed("notifications") != 1 || h.api.listed("activities") != 1 {
		t.Fatalf("lists: notifications=%d activities=%d, want one per feed", h.api.listed("notifications"), h.api.listed("activities"))
	}

	if err := h.app.MarkRead(context.Background(), []string{"n1", "n2"}); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if len(h.api.marked) != 1 || len(h.api.marked[0]) != 2 {
		t.Fatalf("marked = %v", h.api.marked)
	}
	if h.api.listed("notifications") != 2 {
		t.Fatalf("MarkRead did not refresh notifications")
	}
	for _, s := range h.app.States() {
		if s.Feed == feed.Notifications && s.UnreadCount != 2 {
			t.Fatalf("UnreadCount = %d, want 2", s.UnreadCount)
		}
	}

	h.api.mu.Lock()
	h.api.err = errors.New("503")
	h.api.mu.Unlock()
	if err := h.app.MarkRead(context.Background(), []string{"n3"}); !errors.Is(err, ErrMarkReadFailed) {
		t.Fatalf("MarkRead() error = %v, want ErrMarkReadFailed", err)
	}
}

func TestFeedsFileEditsRestartFeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write feeds file: %v", err)
		}
	}
	write("activities:\n  enabled: false\n")

	h := newHarness(t, config.Options{FeedsFile: path})
	h.run(t)
	waitFor(t, "notifications channel", func() bool { return h.channel("notifications:u1") != nil })
	if h.channel("activities:public") != nil {
		t.Fatalf("disabled activities feed opened a channel")
	}

	// The watcher starts after the first reconcile, so keep rewriting until
	// an edit lands.
	deadline := time.Now().Add(3 * time.Second)
	for h.channel("activities:team") == nil {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for activities channel")
		}
		write("activities:\n  enabled: true\n  channel_scope: team\n")
		time.Sleep(400 * time.Millisecond)
	}
	if got := len(h.rt.Channels()); got != 2 {
		t.Fatalf("channels = %d, want notifications left running", got)
	}
}

func TestInvalidFeedsFileFailsStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	if err := os.WriteFile(path, []byte("notifications:\n  backoff_factor: 0.5\n"), 0o644); err != nil {
		t.Fatalf("write feeds file: %v", err)
	}
	h := newHarness(t, config.Options{FeedsFile: path})
	err := h.app.RunContext(context.Background())
	if !errors.Is(err, ErrFeedsConfig) {
		t.Fatalf("RunContext() error = %v, want ErrFeedsConfig", err)
	}
	if len(h.rt.Channels()) != 0 {
		t.Fatalf("invalid config opened channels")
	}
}
