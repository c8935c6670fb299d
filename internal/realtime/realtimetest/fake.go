// Package realtimetest provides an in-memory realtime.Client for tests.
// Tests drive channel lifecycles with Emit and push envelopes with Deliver.
package realtimetest

import (
	"context"
	"sync"

	"feedsync/internal/realtime"
)

type Auth struct {
	mu      sync.Mutex
	session *realtime.Session
	err     error
	calls   int
}

func (a *Auth) Set(session *realtime.Session, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session, a.err = session, err
}

func (a *Auth) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *Auth) GetSession(ctx context.Context) (*realtime.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.session, a.err
}

type Client struct {
	auth *Auth

	mu       sync.Mutex
	channels []*Channel
	removed  []*Channel
}

func NewClient(auth *Auth) *Client {
	if auth == nil {
		auth = &Auth{}
	}
	return &Client{auth: auth}
}

func (c *Client) Channel(name string) realtime.Channel {
	ch := &Channel{name: name, client: c}
	c.mu.Lock()
	c.channels = append(c.channels, ch)
	c.mu.Unlock()
	return ch
}

func (c *Client) RemoveChannel(ch realtime.Channel) error {
	fake, ok := ch.(*Channel)
	if !ok {
		return nil
	}
	fake.mu.Lock()
	if fake.removed {
		fake.mu.Unlock()
		return nil
	}
	fake.removed = true
	fake.mu.Unlock()

	c.mu.Lock()
	c.removed = append(c.removed, fake)
	c.mu.Unlock()
	return nil
}

func (c *Client) Auth() realtime.Auth { return c.auth }

func (c *Client) Close() error { return nil }

// Channels returns every channel created so far, in creation order.
func (c *Client) Channels() []*Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Channel(nil), c.channels...)
}

// Last returns the most recently created channel, or nil.
func (c *Client) Last() *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.channels) == 0 {
		return nil
	}
	return c.channels[len(c.channels)-1]
}

func (c *Client) Removed() []*Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Channel(nil), c.removed...)
}

// Active counts channels created and not yet removed.
func (c *Client) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.channels) - len(c.removed)
}

type binding struct {
	kind    realtime.Kind
	filter  realtime.Filter
	handler realtime.Handler
}

type Channel struct {
	name   string
	client *Client

	mu         sync.Mutex
	bindings   []binding
	statusFn   realtime.StatusFunc
	subscribed bool
	removed    bool
}

func (ch *Channel) Name() string { return ch.name }

func (ch *Channel) On(kind realtime.Kind, filter realtime.Filter, handler realtime.Handler) realtime.Channel {
	ch.mu.Lock()
	ch.bindings = append(ch.bindings, binding{kind: kind, filter: filter, handler: handler})
	ch.mu.Unlock()
	return ch
}

func (ch *Channel) Subscribe(fn realtime.StatusFunc) realtime.Channel {
	ch.mu.Lock()
	ch.statusFn = fn
	ch.subscribed = true
	ch.mu.Unlock()
	return ch
}

func (ch *Channel) Subscribed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.subscribed
}

func (ch *Channel) Removed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.removed
}

func (ch *Channel) Bindings() []realtime.Filter {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]realtime.Filter, 0, len(ch.bindings))
	for _, b := range ch.bindings {
		out = append(out, b.filter)
	}
	return out
}

// Emit reports status to the subscriber, as the transport would. It is a
// no-op before Subscribe.
func (ch *Channel) Emit(status realtime.Status, err error) {
	ch.mu.Lock()
	fn := ch.statusFn
	ch.mu.Unlock()
	if fn != nil {
		fn(status, err)
	}
}

// Deliver routes env to every binding of the same kind whose filter matches.
func (ch *Channel) Deliver(env realtime.Envelope) {
	if env.Channel == "" {
		env.Channel = ch.name
	}
	ch.mu.Lock()
	handlers := make([]realtime.Handler, 0, len(ch.bindings))
	for _, b := range ch.bindings {
		if b.kind == env.Kind && b.filter.Matches(env) {
			handlers = append(handlers, b.handler)
		}
	}
	ch.mu.Unlock()
	for _, h := range handlers {
		h(env)
	}
}
