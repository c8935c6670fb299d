package phoenix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"feedsync/internal/clock"
	"feedsync/internal/logging"
	"feedsync/internal/realtime"
)

type channelState int

const (
	stateIdle channelState = iota
	stateJoining
	stateJoined
	stateDone
)

type binding struct {
	kind    realtime.Kind
	filter  realtime.Filter
	handler realtime.Handler
}

type channel struct {
	name   string
	topic  string
	client *Client

	mu        sync.Mutex
	bindings  []binding
	state     channelState
	joinRef   string
	joinTimer clock.Timer
	statusFn  realtime.StatusFunc
}

func (ch *channel) Name() string { return ch.name }

func (ch *channel) On(kind realtime.Kind, filter realtime.Filter, handler realtime.Handler) realtime.Channel {
	ch.mu.Lock()
	ch.bindings = append(ch.bindings, binding{kind: kind, filter: filter, handler: handler})
	ch.mu.Unlock()
	return ch
}

func (ch *channel) Subscribe(fn realtime.StatusFunc) realtime.Channel {
	ch.mu.Lock()
	if ch.state != stateIdle {
		ch.mu.Unlock()
		return ch
	}
	ch.state = stateJoining
	ch.statusFn = fn
	ch.mu.Unlock()

	go ch.join()
	return ch
}

func (ch *channel) join() {
	c := ch.client
	logger := c.opts.Logger.With(logging.Field("channel", ch.name))
	ctx := context.Background()

	token := ""
	session, err := c.session(ctx)
	switch {
	case err != nil:
		logger.Debug("joining without session", logging.Field("error", err))
	case session != nil:
		token = session.AccessToken
	}

	sock, err := c.connect(ctx)
	if err != nil {
		ch.report(realtime.StatusChannelError, err)
		return
	}

	payload, err := json.Marshal(joinPayload{
		Config:      ch.joinConfig(),
		AccessToken: token,
	})
	if err != nil {
		ch.report(realtime.StatusChannelError, err)
		return
	}

	ref := c.nextRef()
	ch.mu.Lock()
	if ch.state != stateJoining {
		ch.mu.Unlock()
		return
	}
	ch.joinRef = ref
	ch.joinTimer = c.opts.Clock.AfterFunc(c.opts.JoinTimeout, func() {
		ch.mu.Lock()
		pending := ch.state == stateJoining && ch.joinRef == ref
		ch.mu.Unlock()
		if pending {
			ch.report(realtime.StatusTimedOut, ErrJoinTimeout)
		}
	})
	c.register(ch)
	ch.mu.Unlock()

	logger.Debug("joining realtime channel", logging.Field("ref", ref))
	if err := sock.write(message{JoinRef: ref, Ref: ref, Topic: ch.topic, Event: eventJoin, Payload: payload}); err != nil {
		ch.report(realtime.StatusChannelError, fmt.Errorf("send join: %w", err))
	}
}

func (ch *channel) joinConfig() joinConfig {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	cfg := joinConfig{PostgresChanges: []changeConfig{}}
	for _, b := range ch.bindings {
		if b.kind == realtime.KindRowChange {
			cfg.PostgresChanges = append(cfg.PostgresChanges, changeConfigFor(b.filter))
		}
	}
	return cfg
}

func (ch *channel) handle(msg message) {
	logger := ch.client.opts.Logger
	switch msg.Event {
	case eventReply:
		ch.handleReply(msg)
	case eventError:
		ch.report(realtime.StatusChannelError, errors.New("channel error from server"))
	case eventClose:
		ch.report(realtime.StatusClosed, nil)
	case eventBroadcast:
		var p broadcastPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			logger.Warn("invalid broadcast payload", logging.Field("channel", ch.name), logging.Field("error", err))
			return
		}
		ch.dispatch(realtime.Envelope{
			Kind:    realtime.KindBroadcast,
			Channel: ch.name,
			Event:   p.Event,
			Payload: p.Payload,
		})
	case eventChanges:
		var p changesPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			logger.Warn("invalid postgres_changes payload", logging.Field("channel", ch.name), logging.Field("error", err))
			return
		}
		ch.dispatch(realtime.Envelope{
			Kind:            realtime.KindRowChange,
			Channel:         ch.name,
			Action:          realtime.Action(strings.ToUpper(p.Data.Type)),
			Schema:          p.Data.Schema,
			Table:           p.Data.Table,
			Record:          p.Data.Record,
			OldRecord:       p.Data.OldRecord,
			CommitTimestamp: p.Data.CommitTimestamp,
		})
	case eventSystem:
		logger.Debug("realtime system message", logging.Field("channel", ch.name), logging.Field("payload", string(msg.Payload)))
	default:
		logger.Debug("ignoring realtime event", logging.Field("channel", ch.name), logging.Field("event", msg.Event))
	}
}

func (ch *channel) handleReply(msg message) {
	ch.mu.Lock()
	if ch.state != stateJoining || msg.Ref != ch.joinRef {
		ch.mu.Unlock()
		return
	}
	ch.stopTimerLocked()
	ch.mu.Unlock()

	var reply replyPayload
	if err := json.Unmarshal(msg.Payload, &reply); err != nil {
		ch.report(realtime.StatusChannelError, fmt.Errorf("invalid join reply: %w", err))
		return
	}
	if reply.Status != "ok" {
		var reason replyError
		_ = json.Unmarshal(reply.Response, &reason)
		if reason.Reason == "" {
			reason.Reason = reply.Status
		}
		ch.report(realtime.StatusChannelError, fmt.Errorf("join rejected: %s", reason.Reason))
		return
	}
	ch.report(realtime.StatusSubscribed, nil)
}

func (ch *channel) dispatch(env realtime.Envelope) {
	ch.mu.Lock()
	if ch.state != stateJoined {
		ch.mu.Unlock()
		return
	}
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

// report applies status to the channel state and forwards it. Nothing is
// forwarded once the channel has failed or been removed.
func (ch *channel) report(status realtime.Status, err error) {
	ch.mu.Lock()
	if ch.state == stateDone {
		ch.mu.Unlock()
		return
	}
	if status == realtime.StatusSubscribed {
		ch.state = stateJoined
	} else {
		ch.state = stateDone
		ch.stopTimerLocked()
	}
	fn := ch.statusFn
	ch.mu.Unlock()
	if fn != nil {
		fn(status, err)
	}
}

// leave marks the channel removed. It returns the join ref when the server
// knows about the channel, and the status callback still owed a final
// StatusClosed.
func (ch *channel) leave() (string, bool, realtime.StatusFunc) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	joined := ch.state == stateJoining || ch.state == stateJoined
	var fn realtime.StatusFunc
	if ch.state != stateDone {
		fn = ch.statusFn
	}
	ch.state = stateDone
	ch.stopTimerLocked()
	return ch.joinRef, joined && ch.joinRef != "", fn
}

func (ch *channel) stopTimerLocked() {
	if ch.joinTimer != nil {
		ch.joinTimer.Stop()
		ch.joinTimer = nil
	}
}
