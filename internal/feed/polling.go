package feed

import (
	"context"
	"sync"
	"time"

	"feedsync/internal/clock"
	"feedsync/internal/logging"
)

// poller fetches once on start and then every interval until stopped. It
// outlives connect epochs so polling continues while realtime is retried.
type poller struct {
	m        *Manager
	clock    clock.Clock
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   clock.Timer
	armed   uint64
	stopped bool
	ticks   int
}

func (m *Manager) newPollerLocked() *poller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{
		m:        m,
		clock:    m.clock,
		interval: m.cfg.PollInterval,
		ctx:      ctx,
		cancel:   cancel,
	}
	m.poll = p
	return p
}

// start runs the first fetch through a zero delay timer, which the real clock
// runs on its own goroutine.
func (p *poller) start() {
	p.arm(0)
}

func (p *poller) arm(delay time.Duration) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.armed++
	gen := p.armed
	p.mu.Unlock()

	// A zero delay tick on a fake clock runs inside AfterFunc and re-arms;
	// the generation check keeps that newer timer.
	timer := p.clock.AfterFunc(delay, p.tick)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		timer.Stop()
		return
	}
	if p.armed == gen {
		p.timer = timer
	}
}

func (p *poller) tick() {
	if !p.live() {
		return
	}
	p.mu.Lock()
	p.ticks++
	n := p.ticks
	p.mu.Unlock()

	p.m.logger.Debug("polling feed", logging.Field("tick", n))
	_ = p.m.fetchAndDeliver(p.ctx, p.live)
	p.arm(p.interval)
}

func (p *poller) live() bool {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return false
	}
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	return p.m.started && p.m.poll == p
}

// stop cancels the pending tick and any in-flight fetch. It is nil safe.
func (p *poller) stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.stopped = true
	timer := p.timer
	p.timer = nil
	p.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	p.cancel()
}
