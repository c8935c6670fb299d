package feed

import (
	"context"
	"errors"
	"fmt"

	"feedsync/internal/client"
	"feedsync/internal/hydrate"
	"feedsync/internal/logging"
	"feedsync/internal/realtime"
)

// Handler consumes one delivered view. A returned error or a panic is
// recorded in State.Err; delivery continues.
type Handler func(hydrate.View) error

// Callbacks are read on every delivery, so swapping them never touches the
// subscription. Notifications only ever call OnInsert.
type Callbacks struct {
	OnInsert Handler
	OnUpdate Handler
	OnDelete Handler
}

// SetCallbacks replaces the consumer callbacks.
func (m *Manager) SetCallbacks(cb Callbacks) {
	m.callbacks.Store(&cb)
}

type queuedEvent struct {
	ctx   context.Context
	epoch uint64
	env   realtime.Envelope
}

// enqueue hands env to the manager's drain goroutine and returns at once, so
// a slow hydrator never holds up the shared transport. Events keep their
// arrival order.
func (m *Manager) enqueue(ctx context.Context, epoch uint64, env realtime.Envelope) {
	m.mu.Lock()
	if !m.started || m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	var dropped *queuedEvent
	if len(m.inbox) >= maxQueuedEvents {
		oldest := m.inbox[0]
		dropped = &oldest
		m.inbox[0] = queuedEvent{}
		m.inbox = m.inbox[1:]
	}
	m.inbox = append(m.inbox, queuedEvent{ctx: ctx, epoch: epoch, env: env})
	spawn := !m.draining
	if spawn {
		m.draining = true
		m.work.Add(1)
	}
	m.mu.Unlock()

	if dropped != nil {
		m.logger.Warn("event queue full; dropping oldest",
			logging.Field("channel", dropped.env.Channel),
			logging.Field("kind", string(dropped.env.Kind)))
	}
	if spawn {
		go m.drain()
	}
}

func (m *Manager) drain() {
	defer m.work.Done()
	for {
		m.mu.Lock()
		if len(m.inbox) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		next := m.inbox[0]
		m.inbox[0] = queuedEvent{}
		m.inbox = m.inbox[1:]
		m.mu.Unlock()

		m.handleEnvelope(next.ctx, next.epoch, next.env)
	}
}

func (m *Manager) handleEnvelope(ctx context.Context, epoch uint64, env realtime.Envelope) {
	ev, err := Normalize(env)
	if err != nil {
		m.logger.Warn("dropping realtime event",
			logging.Field("channel", env.Channel),
			logging.Field("kind", string(env.Kind)),
			logging.Field("error", err))
		return
	}
	if !m.current(epoch) {
		return
	}
	if !m.def.supports(ev.Op) {
		m.logger.Debug("ignoring unsupported event",
			logging.Field("op", string(ev.Op)),
			logging.Field("id", ev.ID))
		return
	}
	if ev.Op == OpInsert {
		if fresh := m.seen.Add(ev.ID); !fresh && m.cfg.DedupRealtime {
			m.logger.Debug("dropping duplicate realtime event",
				logging.Field("id", ev.ID),
				logging.Field("origin", string(ev.Origin)))
			return
		}
	}

	var view hydrate.View
	if ev.Op == OpDelete {
		view = hydrate.Fallback(string(m.def.feed), ev.raw())
	} else {
		view = m.hydrateOne(ctx, ev)
		if !m.current(epoch) {
			return
		}
	}
	m.deliver(ev.Op, view)
}

func (m *Manager) hydrateOne(ctx context.Context, ev InboundEvent) hydrate.View {
	if m.hydrator != nil {
		v, err := m.hydrator.Hydrate(ctx, string(m.def.feed), ev.ID)
		if v != nil {
			return *v
		}
		if ctx.Err() == nil {
			m.logger.Debug("using fallback view",
				logging.Field("id", ev.ID),
				logging.Field("error", newError(ErrHydrationFailed, m.def.feed, err)))
		}
	}
	return hydrate.Fallback(string(m.def.feed), ev.raw())
}

// fetchAndDeliver reads one page and delivers items not seen before. live is
// checked after each suspension point.
func (m *Manager) fetchAndDeliver(ctx context.Context, live func() bool) error {
	page, err := m.fetch(ctx)
	if !live() {
		return ctx.Err()
	}
	if err != nil {
		wrapped := newError(ErrPollFetchFailed, m.def.feed, err)
		if ctx.Err() == nil {
			m.logger.Warn("feed fetch failed", logging.Field("error", err))
			m.setErr(wrapped)
		}
		return wrapped
	}

	m.mu.Lock()
	changed := m.state.UnreadCount != page.UnreadCount
	m.state.UnreadCount = page.UnreadCount
	// A fetch failure only lasts until the next good fetch.
	if errors.Is(m.state.Err, ErrPollFetchFailed) {
		m.state.Err = nil
		changed = true
	}
	m.mu.Unlock()
	if changed {
		m.publish()
	}

	fresh := make([]client.EventItem, 0, len(page.Items))
	for _, item := range page.Items {
		if item.ID == "" {
			continue
		}
		if m.seen.Add(item.ID) {
			fresh = append(fresh, item)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	views := m.viewsForItems(ctx, fresh)
	if !live() {
		return ctx.Err()
	}
	m.logger.Debug("delivering fetched events", logging.Field("count", len(views)))
	for _, view := range views {
		m.deliver(OpInsert, view)
	}
	return nil
}

// viewsForItems keeps the page order. Items already joined by the read API
// are used as is; the rest go through the hydrator in one batch.
func (m *Manager) viewsForItems(ctx context.Context, items []client.EventItem) []hydrate.View {
	feed := string(m.def.feed)
	views := make([]hydrate.View, len(items))
	var missing []string
	for i, item := range items {
		if item.Actor != nil {
			views[i] = hydrate.FromItem(feed, item)
			continue
		}
		missing = append(missing, item.ID)
	}
	var resolved map[string]*hydrate.View
	if len(missing) > 0 && m.hydrator != nil {
		var err error
		resolved, err = m.hydrator.HydrateMany(ctx, feed, missing)
		if err != nil && ctx.Err() == nil {
			m.logger.Debug("batch hydration incomplete",
				logging.Field("error", newError(ErrHydrationFailed, m.def.feed, err)))
		}
	}
	for i, item := range items {
		if item.Actor != nil {
			continue
		}
		if v := resolved[item.ID]; v != nil {
			views[i] = *v
			continue
		}
		views[i] = hydrate.Fallback(feed, hydrate.Raw{
			ID:        item.ID,
			Type:      item.Type,
			ActorID:   item.ActorID,
			Refs:      hydrate.Refs{ActivityID: item.ActivityID, PostSlug: item.PostSlug},
			CreatedAt: item.CreatedAt,
		})
	}
	return views
}

func (m *Manager) deliver(op Op, view hydrate.View) {
	cb := m.callbacks.Load()
	if cb == nil {
		return
	}
	var fn Handler
	switch op {
	case OpInsert:
		fn = cb.OnInsert
	case OpUpdate:
		fn = cb.OnUpdate
	case OpDelete:
		fn = cb.OnDelete
	}
	if fn == nil {
		return
	}
	if err := invoke(fn, view); err != nil {
		wrapped := newError(ErrConsumerCallback, m.def.feed, err)
		m.logger.Error("consumer callback failed",
			logging.Field("op", string(op)),
			logging.Field("id", view.ID),
			logging.Field("error", err))
		m.setErr(wrapped)
	}
}

func invoke(fn Handler, view hydrate.View) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := fn(view); err != nil {
		return err
	}
	return nil
}
