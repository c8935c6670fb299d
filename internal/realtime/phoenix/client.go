// Package phoenix implements realtime.Client over a Phoenix channels
// websocket, the protocol spoken by Supabase Realtime. One socket is shared by
// every channel of a client and is dialed on first subscribe.
package phoenix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"feedsync/internal/clock"
	"feedsync/internal/logging"
	"feedsync/internal/realtime"
)

var (
	ErrClosed      = errors.New("realtime client closed")
	ErrJoinTimeout = errors.New("channel join timed out")
)

const (
	defaultHeartbeat    = 25 * time.Second
	defaultJoinTimeout  = 10 * time.Second
	defaultWriteTimeout = 5 * time.Second
	sessionTimeout      = 10 * time.Second
	protocolVersion     = "1.0.0"
)

type Options struct {
	// URL is the websocket endpoint, e.g. wss://project.supabase.co/realtime/v1/websocket.
	URL               string
	APIKey            string
	Auth              realtime.Auth
	Dialer            *websocket.Dialer
	HeartbeatInterval time.Duration
	JoinTimeout       time.Duration
	WriteTimeout      time.Duration
	Clock             clock.Clock
	Logger            *logging.Logger
}

type Client struct {
	opts     Options
	endpoint string
	// instance tags log lines so sockets of different processes can be told
	// apart in server logs.
	instance string

	dialMu sync.Mutex

	mu       sync.Mutex
	sock     *socket
	channels map[string]*channel
	ref      uint64
	closed   bool
}

func New(opts Options) (*Client, error) {
	if opts.Logger == nil {
		panic("phoenix.New: logger must not be nil")
	}
	parsed, err := url.Parse(strings.TrimSpace(opts.URL))
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	switch parsed.Scheme {
	case "ws", "wss":
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return nil, fmt.Errorf("realtime url %q: scheme must be ws or wss", opts.URL)
	}
	query := parsed.Query()
	if opts.APIKey != "" {
		query.Set("apikey", opts.APIKey)
	}
	query.Set("vsn", protocolVersion)
	parsed.RawQuery = query.Encode()

	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeat
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = defaultJoinTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	instance := uuid.NewString()
	opts.Logger = opts.Logger.With(logging.Field("socket", instance))
	return &Client{
		opts:     opts,
		endpoint: parsed.String(),
		instance: instance,
		channels: map[string]*channel{},
	}, nil
}

func (c *Client) Channel(name string) realtime.Channel {
	return &channel{name: name, topic: topicPrefix + name, client: c}
}

func (c *Client) RemoveChannel(rc realtime.Channel) error {
	ch, ok := rc.(*channel)
	if !ok || ch.client != c {
		return fmt.Errorf("channel %q does not belong to this client", rc.Name())
	}
	c.mu.Lock()
	sock := c.sock
	if c.channels[ch.topic] == ch {
		delete(c.channels, ch.topic)
	}
	idle := len(c.channels) == 0
	if idle {
		c.sock = nil
	}
	c.mu.Unlock()

	joinRef, joined, notify := ch.leave()
	if joined && sock != nil && !idle {
		if err := sock.write(message{JoinRef: joinRef, Ref: c.nextRef(), Topic: ch.topic, Event: eventLeave, Payload: json.RawMessage("{}")}); err != nil {
			c.opts.Logger.Debug("channel leave failed", logging.Field("channel", ch.name), logging.Field("error", err))
		}
	}
	if idle && sock != nil {
		sock.close()
	}
	// Reported off the caller's goroutine so a remover holding its own lock
	// can observe the status without deadlocking.
	if notify != nil {
		go notify(realtime.StatusClosed, nil)
	}
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
	sock := c.sock
	c.sock = nil
	open := make([]*channel, 0, len(c.channels))
	for _, ch := range c.channels {
		open = append(open, ch)
	}
	clear(c.channels)
	c.mu.Unlock()

	if sock != nil {
		sock.close()
	}
	for _, ch := range open {
		if _, _, notify := ch.leave(); notify != nil {
			notify(realtime.StatusClosed, ErrClosed)
		}
	}
	return nil
}

func (c *Client) nextRef() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ref++
	return strconv.FormatUint(c.ref, 10)
}

func (c *Client) session(ctx context.Context) (*realtime.Session, error) {
	if c.opts.Auth == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, sessionTimeout)
	defer cancel()
	return c.opts.Auth.GetSession(ctx)
}

// connect returns the live socket, dialing one if needed.
func (c *Client) connect(ctx context.Context) (*socket, error) {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.sock != nil {
		sock := c.sock
		c.mu.Unlock()
		return sock, nil
	}
	c.mu.Unlock()

	header := http.Header{}
	if c.opts.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}
	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime socket: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial realtime socket: %w", err)
	}
	sock := &socket{
		conn:         conn,
		done:         make(chan struct{}),
		writeTimeout: c.opts.WriteTimeout,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sock.close()
		return nil, ErrClosed
	}
	c.sock = sock
	c.mu.Unlock()

	go c.readLoop(sock)
	go c.heartbeatLoop(sock)
	c.opts.Logger.Debug("realtime socket connected", logging.Field("url", c.opts.URL))
	return sock, nil
}

func (c *Client) register(ch *channel) {
	c.mu.Lock()
	c.channels[ch.topic] = ch
	c.mu.Unlock()
}

func (c *Client) readLoop(sock *socket) {
	for {
		_, data, err := sock.conn.ReadMessage()
		if err != nil {
			c.dropSocket(sock, err)
			return
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.opts.Logger.Warn("invalid realtime message", logging.Field("error", err), logging.Field("payload", string(data)))
			continue
		}
		if msg.Topic == socketTopic {
			if msg.Event == eventReply {
				sock.ackHeartbeat(msg.Ref)
			}
			continue
		}
		c.mu.Lock()
		ch := c.channels[msg.Topic]
		c.mu.Unlock()
		if ch == nil {
			c.opts.Logger.Debug("message for unknown channel", logging.Field("topic", msg.Topic), logging.Field("event", msg.Event))
			continue
		}
		ch.handle(msg)
	}
}

// dropSocket fails every channel bound to sock after the socket dies.
func (c *Client) dropSocket(sock *socket, cause error) {
	if sock.closing() {
		return
	}
	sock.close()

	c.mu.Lock()
	if c.sock != sock {
		c.mu.Unlock()
		return
	}
	c.sock = nil
	affected := make([]*channel, 0, len(c.channels))
	for topic, ch := range c.channels {
		affected = append(affected, ch)
		delete(c.channels, topic)
	}
	c.mu.Unlock()

	c.opts.Logger.Warn("realtime socket lost", logging.Field("error", cause), logging.Field("channels", len(affected)))
	for _, ch := range affected {
		ch.report(realtime.StatusChannelError, fmt.Errorf("realtime socket lost: %w", cause))
	}
}

func (c *Client) heartbeatLoop(sock *socket) {
	ticker := c.opts.Clock.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sock.done:
			return
		case <-ticker.C:
			if sock.heartbeatPending() {
				c.dropSocket(sock, errors.New("heartbeat timeout"))
				return
			}
			ref := c.nextRef()
			sock.expectHeartbeat(ref)
			if err := sock.write(message{Ref: ref, Topic: socketTopic, Event: eventHeartbeat, Payload: json.RawMessage("{}")}); err != nil {
				c.dropSocket(sock, err)
				return
			}
		}
	}
}

type socket struct {
	conn         *websocket.Conn
	done         chan struct{}
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	heartbeat string
}

func (s *socket) write(msg message) error {
	if msg.Payload == nil {
		msg.Payload = json.RawMessage("{}")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closing() {
		return ErrClosed
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *socket) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	_ = s.conn.Close()
}

func (s *socket) closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *socket) expectHeartbeat(ref string) {
	s.mu.Lock()
	s.heartbeat = ref
	s.mu.Unlock()
}

func (s *socket) ackHeartbeat(ref string) {
	s.mu.Lock()
	if s.heartbeat == ref {
		s.heartbeat = ""
	}
	s.mu.Unlock()
}

func (s *socket) heartbeatPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeat != ""
}
