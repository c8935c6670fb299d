// Package retry arms one reconnect timer at a time with exponentially growing
// delays and a bounded attempt budget.
package retry

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"feedsync/internal/clock"
	"feedsync/internal/logging"
)

type Config struct {
	// MaxRetry is the number of delays handed out before Schedule reports
	// exhaustion.
	MaxRetry  int
	BaseDelay time.Duration
	Factor    float64
	// MaxDelay caps a single delay. Zero means uncapped.
	MaxDelay time.Duration
}

func (c Config) Validate() error {
	if c.MaxRetry < 0 {
		return fmt.Errorf("max retry must be >= 0, got %d", c.MaxRetry)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive, got %s", c.BaseDelay)
	}
	if c.Factor < 1 {
		return fmt.Errorf("backoff factor must be >= 1, got %v", c.Factor)
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("max delay must be >= 0, got %s", c.MaxDelay)
	}
	return nil
}

type Scheduler struct {
	cfg    Config
	clock  clock.Clock
	logger *logging.Logger

	mu       sync.Mutex
	policy   *backoff.ExponentialBackOff
	attempts int
	timer    clock.Timer
	// armed identifies the in-flight timer; a callback whose generation no
	// longer matches was superseded or cancelled.
	armed uint64
}

func New(cfg Config, clk clock.Clock, logger *logging.Logger) *Scheduler {
	if logger == nil {
		panic("retry.New: logger must not be nil")
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Scheduler{
		cfg:    cfg,
		clock:  clk,
		logger: logger,
		policy: newPolicy(cfg),
	}
}

func newPolicy(cfg Config) *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.BaseDelay
	policy.Multiplier = cfg.Factor
	policy.RandomizationFactor = 0
	policy.MaxInterval = time.Duration(math.MaxInt64)
	if cfg.MaxDelay > 0 {
		policy.MaxInterval = cfg.MaxDelay
	}
	policy.Reset()
	return policy
}

// Schedule counts one attempt and arms task after the next backoff delay,
// replacing any timer still pending. It returns false without arming when the
// attempt budget is spent.
func (s *Scheduler) Schedule(task func()) (time.Duration, bool) {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	if attempt > s.cfg.MaxRetry {
		s.mu.Unlock()
		s.logger.Debug("retry budget exhausted",
			logging.Field("attempt", attempt),
			logging.Field("max_retry", s.cfg.MaxRetry))
		return 0, false
	}
	s.stopLocked()
	delay := s.policy.NextBackOff()
	if s.cfg.MaxDelay > 0 && delay > s.cfg.MaxDelay {
		delay = s.cfg.MaxDelay
	}
	s.armed++
	gen := s.armed
	s.mu.Unlock()

	timer := s.clock.AfterFunc(delay, func() { s.fire(gen, task) })

	s.mu.Lock()
	if s.armed == gen {
		s.timer = timer
	} else {
		timer.Stop()
	}
	s.mu.Unlock()

	s.logger.Debug("retry scheduled",
		logging.Field("attempt", attempt),
		logging.Field("delay", delay.String()))
	return delay, true
}

func (s *Scheduler) fire(gen uint64, task func()) {
	s.mu.Lock()
	if s.armed != gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("retry task panicked", logging.Field("panic", fmt.Sprint(r)))
		}
	}()
	task()
}

// Reset cancels the pending timer and restores the full attempt budget.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.attempts = 0
	s.policy.Reset()
}

// Clear cancels the pending timer and keeps the attempt count.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *Scheduler) pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) stopLocked() {
	s.armed++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
