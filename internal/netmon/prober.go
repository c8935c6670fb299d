package netmon

import (
	"context"
	"net"
	"time"

	"feedsync/internal/clock"
	"feedsync/internal/logging"
)

type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober feeds a Monitor by dialing the backend on a fixed interval.
type Prober struct {
	Address  string
	Interval time.Duration
	Timeout  time.Duration
	Dialer   Dialer
	Clock    clock.Clock
	Logger   *logging.Logger
}

// Run probes once immediately, then every Interval until ctx is done.
func (p Prober) Run(ctx context.Context, monitor *Monitor) {
	if p.Logger == nil {
		panic("netmon.Prober.Run: logger must not be nil")
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	report := func() {
		online := p.probe(ctx)
		if ctx.Err() != nil {
			return
		}
		monitor.Set(online)
	}

	report()
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report()
		}
	}
}

func (p Prober) probe(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	dialer := p.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(probeCtx, "tcp", p.Address)
	if err != nil {
		if ctx.Err() == nil {
			p.Logger.Debug("reachability probe failed",
				logging.Field("address", p.Address),
				logging.Field("error", err))
		}
		return false
	}
	_ = conn.Close()
	return true
}
