// Package hydrate turns bare event ids into display views. Lookups go to
// the read API first, then to the database, and give up with nil.
package hydrate

import (
	"context"
	"errors"
	"fmt"

	"feedsync/internal/client"
	"feedsync/internal/logging"
	"feedsync/internal/store"
)

var ErrNotFound = errors.New("event could not be hydrated")

// API is the batch lookup of the read API.
type API interface {
	FetchEvents(ctx context.Context, feed string, ids []string, limit int) ([]client.EventItem, error)
}

// Lookup is the single-row database fallback.
type Lookup interface {
	LookupEvent(ctx context.Context, feed string, id string) (store.Event, error)
}

type Hydrator struct {
	api    API
	store  Lookup
	logger *logging.Logger
}

// New builds a hydrator. Either source may be nil.
func New(api API, lookup Lookup, logger *logging.Logger) *Hydrator {
	if logger == nil {
		panic("hydrate.New: logger must not be nil")
	}
	return &Hydrator{api: api, store: lookup, logger: logger}
}

// Hydrate resolves one event. It returns nil and an error wrapping
// ErrNotFound when neither source produced the event.
func (h *Hydrator) Hydrate(ctx context.Context, feed string, id string) (*View, error) {
	views, err := h.HydrateMany(ctx, feed, []string{id})
	if v, ok := views[id]; ok {
		return v, nil
	}
	if err == nil {
		err = fmt.Errorf("%s %s: %w", feed, id, ErrNotFound)
	}
	return nil, err
}

// HydrateMany resolves ids with one read API call and falls back to the
// store for ids the API did not return. The returned map holds only ids
// that resolved; err describes the ones that did not.
func (h *Hydrator) HydrateMany(ctx context.Context, feed string, ids []string) (map[string]*View, error) {
	views := make(map[string]*View, len(ids))
	if len(ids) == 0 {
		return views, nil
	}

	var apiErr error
	if h.api != nil {
		items, err := h.api.FetchEvents(ctx, feed, ids, len(ids))
		if err != nil {
			apiErr = err
			if ctx.Err() == nil {
				h.logger.Debug("read api hydration failed",
					logging.Field("feed", feed),
					logging.Field("count", len(ids)),
					logging.Field("error", err))
			}
		}
		for _, item := range items {
			v := FromItem(feed, item)
			views[item.ID] = &v
		}
	}

	var missing []error
	for _, id := range ids {
		if _, ok := views[id]; ok {
			continue
		}
		if ctx.Err() != nil {
			return views, ctx.Err()
		}
		if h.store == nil {
			missing = append(missing, fmt.Errorf("%s %s: %w", feed, id, ErrNotFound))
			continue
		}
		ev, err := h.store.LookupEvent(ctx, feed, id)
		if err != nil {
			h.logger.Debug("store hydration failed",
				logging.Field("feed", feed),
				logging.Field("id", id),
				logging.Field("error", err))
			missing = append(missing, fmt.Errorf("%s %s: %w", feed, id, errors.Join(ErrNotFound, err)))
			continue
		}
		v := fromStore(feed, ev)
		views[id] = &v
	}
	if len(missing) == 0 {
		return views, nil
	}
	if apiErr != nil {
		missing = append([]error{apiErr}, missing...)
	}
	return views, errors.Join(missing...)
}
