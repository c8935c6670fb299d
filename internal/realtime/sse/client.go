// Package sse implements realtime.Client over a PocketBase-style event
// stream: the server assigns a client id on connect and the client then posts
// its topic subscriptions. Each channel holds its own stream.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"feedsync/internal/clock"
	"feedsync/internal/logging"
	"feedsync/internal/realtime"
)

const sessionTimeout = 10 * time.Second

type Options struct {
	HTTP *http.Client
	// URL serves the event stream on GET and accepts subscriptions on POST.
	URL         string
	Auth        realtime.Auth
	RefreshLead time.Duration
	ForceHTTP1  bool
	Clock       clock.Clock
	Logger      *logging.Logger
}

type Client struct {
	opts   Options
	stream stream

	mu       sync.Mutex
	channels map[*channel]struct{}
	closed   bool
}

func New(opts Options) (*Client, error) {
	if opts.Logger == nil {
		panic("sse.New: logger must not be nil")
	}
	parsed, err := url.Parse(strings.TrimSpace(opts.URL))
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("realtime url %q: scheme must be http or https", opts.URL)
	}
	if opts.HTTP == nil {
		opts.HTTP = http.DefaultClient
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Client{
		opts: opts,
		stream: stream{
			HTTP:        opts.HTTP,
			URL:         parsed.String(),
			RefreshLead: opts.RefreshLead,
			ForceHTTP1:  opts.ForceHTTP1,
			Clock:       opts.Clock,
			Logger:      opts.Logger,
		},
		channels: map[*channel]struct{}{},
	}, nil
}

func (c *Client) Channel(name string) realtime.Channel {
	ch := &channel{name: name, client: c}
	c.mu.Lock()
	c.channels[ch] = struct{}{}
	c.mu.Unlock()
	return ch
}

func (c *Client) RemoveChannel(rc realtime.Channel) error {
	ch, ok := rc.(*channel)
	if !ok || ch.client != c {
		return fmt.Errorf("channel %q does not belong to this client", rc.Name())
	}
	c.mu.Lock()
	delete(c.channels, ch)
	c.mu.Unlock()
	ch.stop()
	return nil
}

func (c *Client) Auth() realtime.Auth { return c.opts.Auth }

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	open := make([]*channel, 0, len(c.channels))
	for ch := range c.channels {
		open = append(open, ch)
	}
	clear(c.channels)
	c.mu.Unlock()

	for _, ch := range open {
		ch.stop()
	}
	return nil
}

func (c *Client) session(ctx context.Context) (*realtime.Session, error) {
	if c.opts.Auth == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, sessionTimeout)
	defer cancel()
	return c.opts.Auth.GetSession(ctx)
}

func (c *Client) subscribe(ctx context.Context, clientID string, token string, topics []string) error {
	c.opts.Logger.Debug("subscribing realtime topics",
		logging.Field("client_id", clientID),
		logging.Field("topics", topics))

	body, err := json.Marshal(struct {
		ClientID      string   `json:"clientId"`
		Subscriptions []string `json:"subscriptions"`
	}{ClientID: clientID, Subscriptions: topics})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.stream.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.opts.Logger.Warn("realtime subscribe failed",
			logging.Field("status", resp.Status),
			logging.Field("response", logging.FormatPayload(data)))
		return &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

type binding struct {
	kind    realtime.Kind
	filter  realtime.Filter
	handler realtime.Handler
	topic   string
}

type channel struct {
	name   string
	client *Client

	mu       sync.Mutex
	bindings []binding
	cancel   context.CancelFunc
	statusFn realtime.StatusFunc
	final    bool
}

func (ch *channel) Name() string { return ch.name }

func (ch *channel) On(kind realtime.Kind, filter realtime.Filter, handler realtime.Handler) realtime.Channel {
	ch.mu.Lock()
	ch.bindings = append(ch.bindings, binding{
		kind:    kind,
		filter:  filter,
		handler: handler,
		topic:   topicFor(ch.name, kind, filter),
	})
	ch.mu.Unlock()
	return ch
}

func (ch *channel) Subscribe(fn realtime.StatusFunc) realtime.Channel {
	ch.mu.Lock()
	if ch.cancel != nil || ch.final {
		ch.mu.Unlock()
		return ch
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch.cancel = cancel
	ch.statusFn = fn
	topics := make([]string, 0, len(ch.bindings))
	for _, b := range ch.bindings {
		topics = append(topics, b.topic)
	}
	ch.mu.Unlock()

	go ch.run(ctx, subscribeTopics(topics))
	return ch
}

func (ch *channel) run(ctx context.Context, topics []string) {
	logger := ch.client.opts.Logger.With(logging.Field("channel", ch.name))

	session, err := ch.client.session(ctx)
	if err != nil && ctx.Err() == nil {
		ch.report(realtime.StatusChannelError, fmt.Errorf("load realtime session: %w", err))
		return
	}

	runErr := ch.client.stream.run(ctx, session, topics, ch.client.subscribe, sessionHandlers{
		OnConnected: func(clientID string) {
			logger.Debug("realtime channel subscribed", logging.Field("client_id", clientID))
			ch.report(realtime.StatusSubscribed, nil)
		},
		OnFrame: ch.dispatch,
	})
	switch {
	case ctx.Err() != nil:
		ch.report(realtime.StatusClosed, nil)
	case errors.Is(runErr, ErrSessionRefreshDue):
		ch.report(realtime.StatusTimedOut, runErr)
	case runErr == nil, errors.Is(runErr, io.EOF):
		ch.report(realtime.StatusClosed, io.EOF)
	default:
		ch.report(realtime.StatusChannelError, runErr)
	}
}

// report forwards status to the subscriber. Nothing is reported after the
// first failure status.
func (ch *channel) report(status realtime.Status, err error) {
	ch.mu.Lock()
	if ch.final {
		ch.mu.Unlock()
		return
	}
	if status.Failed() {
		ch.final = true
	}
	fn := ch.statusFn
	ch.mu.Unlock()
	if fn != nil {
		fn(status, err)
	}
}

func (ch *channel) dispatch(f frame) {
	ch.mu.Lock()
	matched := make([]binding, 0, 1)
	for _, b := range ch.bindings {
		if b.topic == f.Name {
			matched = append(matched, b)
		}
	}
	ch.mu.Unlock()

	logger := ch.client.opts.Logger
	if len(matched) == 0 {
		logger.Debug("ignoring realtime frame", logging.Field("event", f.Name))
		return
	}
	for _, b := range matched {
		env, err := decodeFrame(ch.name, b, f)
		if err != nil {
			logger.Warn("invalid realtime frame",
				logging.Field("event", f.Name),
				logging.Field("error", err),
				logging.Field("payload", string(f.Data)))
			continue
		}
		if !b.filter.Matches(env) {
			continue
		}
		b.handler(env)
	}
}

// stop cancels the stream without waiting for it; it may be called from a
// status callback running on the stream goroutine. Subscribers see
// StatusClosed unless the channel already failed.
func (ch *channel) stop() {
	ch.mu.Lock()
	cancel := ch.cancel
	if cancel == nil {
		ch.final = true
	}
	ch.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// topicFor maps a binding to its stream topic. Row changes subscribe to the
// table, optionally narrowed by a filter; broadcasts are namespaced by
// channel.
func topicFor(channelName string, kind realtime.Kind, filter realtime.Filter) string {
	switch kind {
	case realtime.KindRowChange:
		topic := filter.Table
		if filter.Where != "" {
			topic += "?filter=" + url.QueryEscape(filter.Where)
		}
		return topic
	default:
		event := filter.Event
		if event == "" {
			event = "*"
		}
		return channelName + "/" + event
	}
}

type broadcastMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type recordMessage struct {
	Action          string          `json:"action"`
	Record          json.RawMessage `json:"record"`
	OldRecord       json.RawMessage `json:"old_record"`
	CommitTimestamp string          `json:"commit_timestamp"`
}

func decodeFrame(channelName string, b binding, f frame) (realtime.Envelope, error) {
	if b.kind != realtime.KindRowChange {
		env := realtime.Envelope{
			Kind:    realtime.KindBroadcast,
			Channel: channelName,
			Event:   strings.TrimPrefix(f.Name, channelName+"/"),
			Payload: json.RawMessage(f.Data),
		}
		var msg broadcastMessage
		if json.Unmarshal(f.Data, &msg) == nil && msg.Event != "" && len(msg.Payload) > 0 {
			env.Event = msg.Event
			env.Payload = msg.Payload
		}
		return env, nil
	}

	var msg recordMessage
	if err := json.Unmarshal(f.Data, &msg); err != nil {
		return realtime.Envelope{}, err
	}
	action, err := parseAction(msg.Action)
	if err != nil {
		return realtime.Envelope{}, err
	}
	return realtime.Envelope{
		Kind:            realtime.KindRowChange,
		Channel:         channelName,
		Action:          action,
		Schema:          b.filter.Schema,
		Table:           b.filter.Table,
		Record:          msg.Record,
		OldRecord:       msg.OldRecord,
		CommitTimestamp: msg.CommitTimestamp,
	}, nil
}

func parseAction(raw string) (realtime.Action, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "create", "insert":
		return realtime.ActionInsert, nil
	case "update":
		return realtime.ActionUpdate, nil
	case "delete":
		return realtime.ActionDelete, nil
	default:
		return "", fmt.Errorf("unknown record action %q", raw)
	}
}
