// Package realtime defines the push transport consumed by feed managers. A
// Client multiplexes named channels; each channel delivers broadcast and
// row-change envelopes and reports its lifecycle through status callbacks.
package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

type Kind string

const (
	KindBroadcast Kind = "broadcast"
	KindRowChange Kind = "postgres_changes"
)

type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusClosed       Status = "CLOSED"
)

// Failed reports whether s ends the channel's usefulness.
func (s Status) Failed() bool {
	return s == StatusChannelError || s == StatusTimedOut || s == StatusClosed
}

type Action string

const (
	ActionAll    Action = "*"
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Filter narrows a binding. Broadcast bindings match on Event; row-change
// bindings match on Action, Schema, Table and a Where clause in the
// "column=eq.value" form.
type Filter struct {
	Event  string
	Action Action
	Schema string
	Table  string
	Where  string
}

// Matches reports whether a row-change envelope satisfies the table and
// action parts of f. Where clauses are applied server side.
func (f Filter) Matches(env Envelope) bool {
	switch env.Kind {
	case KindBroadcast:
		return f.Event == "" || f.Event == "*" || f.Event == env.Event
	case KindRowChange:
		if f.Table != "" && !strings.EqualFold(f.Table, env.Table) {
			return false
		}
		return f.Action == "" || f.Action == ActionAll || f.Action == env.Action
	default:
		return false
	}
}

// Envelope is one inbound message. Kind selects which fields are set:
// broadcast envelopes carry Event and Payload, row-change envelopes carry
// Action, Table, Record and OldRecord.
type Envelope struct {
	Kind    Kind
	Channel string

	Event   string
	Payload json.RawMessage

	Action          Action
	Schema          string
	Table           string
	Record          json.RawMessage
	OldRecord       json.RawMessage
	CommitTimestamp string
}

type Handler func(Envelope)

// StatusFunc receives channel lifecycle updates. err is set for
// StatusChannelError and may be set for the other failure statuses.
type StatusFunc func(status Status, err error)

type Channel interface {
	Name() string
	On(kind Kind, filter Filter, handler Handler) Channel
	// Subscribe starts delivery. It returns immediately; the outcome arrives
	// through fn.
	Subscribe(fn StatusFunc) Channel
}

type Client interface {
	Channel(name string) Channel
	// RemoveChannel unsubscribes ch and releases it. Removing a channel twice
	// is a no-op.
	RemoveChannel(ch Channel) error
	Auth() Auth
	Close() error
}

type Session struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the session carries a token that has not expired at now.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || strings.TrimSpace(s.AccessToken) == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// Auth returns the current session, or nil without error when signed out.
type Auth interface {
	GetSession(ctx context.Context) (*Session, error)
}
