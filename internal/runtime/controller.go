package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"feedsync/internal/app"
	"feedsync/internal/config"
	"feedsync/internal/feed"
	"feedsync/internal/logging"
)

var ErrNotRunning = errors.New("feedsync is not running")

type Controller struct {
	rootCtx context.Context
	mu      sync.Mutex
	cancel  context.CancelFunc
	service Service
	running bool
	wg      sync.WaitGroup
}

type StartHooks struct {
	OnStatus    func(string)
	OnFeedState func(feed.State)
	OnDelivery  func(app.Delivery)
	OnExit      func(error)
}

func NewController(rootCtx context.Context) *Controller {
	if rootCtx == nil {
		rootCtx = context.Background()
	}
	return &Controller{rootCtx: rootCtx}
}

func (c *Controller) Start(opts config.Options, logger *logging.Logger, hooks StartHooks) error {
	if logger == nil {
		panic("runtime.Controller.Start: logger must not be nil")
	}
	if err := config.ValidateRequired(opts); err != nil {
		return err
	}
	logger.Debug("runtime start requested",
		logging.Field("transport", opts.Transport),
		logging.Field("feeds_file", opts.FeedsFile),
		logging.Field("has_store", opts.StoreDSN != ""),
	)

	service, err := NewServiceWithHooks(opts, logger, hooks)
	if err != nil {
		return err
	}
	return c.run(service, logger, hooks.OnExit)
}

func (c *Controller) run(service Service, logger *logging.Logger, onExit func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("feedsync is already running")
	}

	ctx, cancel := context.WithCancel(c.rootCtx)
	c.cancel = cancel
	c.service = service
	c.running = true
	c.wg.Go(func() {
		defer cancel()
		runErr := service.RunContext(ctx)
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			logger.Debug("runtime service exited due to context cancellation", logging.Field("error", runErr))
		} else if runErr != nil {
			logger.Warn("runtime service exited with error", logging.Field("error", runErr))
		} else {
			logger.Info("runtime service exited")
		}
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.service = nil
		c.mu.Unlock()

		if onExit != nil {
			onExit(runErr)
		}
	})

	return nil
}

func (c *Controller) current() (Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.service == nil {
		return nil, ErrNotRunning
	}
	return c.service, nil
}

// Refresh asks every running feed to re-read its head.
func (c *Controller) Refresh(ctx context.Context) error {
	service, err := c.current()
	if err != nil {
		return err
	}
	return service.Refresh(ctx)
}

func (c *Controller) MarkRead(ctx context.Context, ids []string) error {
	service, err := c.current()
	if err != nil {
		return err
	}
	return service.MarkRead(ctx, ids)
}

func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) Wait(timeout time.Duration) bool {
	waitDone := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(waitDone)
	}()
	if timeout <= 0 {
		<-waitDone
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-waitDone:
		return true
	case <-timer.C:
		return false
	}
}

func (c *Controller) StopAndWait(timeout time.Duration) bool {
	c.Stop()
	return c.Wait(timeout)
}

func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
