package netmon

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"feedsync/internal/clock"
	"feedsync/internal/logging"
)

func testLogger() *logging.Logger {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	return logger
}

func TestOnOnlineFiresOnlyOnOfflineToOnline(t *testing.T) {
	m := New(true, testLogger())

	online := 0
	m.OnOnline(func() { online++ })

	m.Set(true)
	m.Set(true)
	if online != 0 {
		t.Fatalf("OnOnline calls = %d while staying online, want 0", online)
	}

	m.Set(false)
	m.Set(false)
	m.Set(true)
	m.Set(true)
	if online != 1 {
		t.Fatalf("OnOnline calls = %d, want 1", online)
	}
	if !m.Online() {
		t.Fatalf("Online() = false, want true")
	}
}

func TestOnOnlineNotCalledForInitialState(t *testing.T) {
	m := New(false, testLogger())
	called := false
	m.OnOnline(func() { called = true })
	if called {
		t.Fatalf("OnOnline fired on registration")
	}
	m.Set(true)
	if !called {
		t.Fatalf("OnOnline did not fire on first transition to online")
	}
}

func TestOnChangeSeesEveryTransition(t *testing.T) {
	m := New(true, testLogger())

	var seen []bool
	unsubscribe := m.OnChange(func(online bool) { seen = append(seen, online) })
	m.Set(false)
	m.Set(true)
	m.Set(true)
	unsubscribe()
	m.Set(false)

	if len(seen) != 2 || seen[0] != false || seen[1] != true {
		t.Fatalf("transitions = %v, want [false true]", seen)
	}
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f dialFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestProberReportsReachability(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	m := New(true, testLogger())

	var reachable atomic.Bool
	var dials atomic.Int32
	prober := Prober{
		Address:  "backend:443",
		Interval: 5 * time.Second,
		Clock:    clk,
		Logger:   testLogger(),
		Dialer: dialFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
			dials.Add(1)
			if !reachable.Load() {
				return nil, errors.New("connection refused")
			}
			client, server := net.Pipe()
			_ = server.Close()
			return client, nil
		}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		prober.Run(ctx, m)
	}()

	waitFor(t, func() bool { return !m.Online() && clk.Pending() == 1 })

	reachable.Store(true)
	clk.Advance(5 * time.Second)
	waitFor(t, func() bool { return m.Online() })
	if got := dials.Load(); got != 2 {
		t.Fatalf("dials = %d, want 2", got)
	}

	cancel()
	<-done
}
