package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"feedsync/internal/hydrate"
	"feedsync/internal/realtime"
)

type Origin string

const (
	OriginBroadcast Origin = "broadcast"
	OriginRowChange Origin = "row_change"
	OriginPoll      Origin = "poll"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// InboundEvent is the single shape both push origins are reduced to.
type InboundEvent struct {
	Origin    Origin
	Op        Op
	ID        string
	Type      string
	ActorID   string
	Refs      hydrate.Refs
	CreatedAt string
}

func (e InboundEvent) raw() hydrate.Raw {
	return hydrate.Raw{
		ID:        e.ID,
		Type:      e.Type,
		ActorID:   e.ActorID,
		Refs:      e.Refs,
		CreatedAt: e.CreatedAt,
	}
}

// record accepts both the snake_case columns of row changes and the
// camelCase bodies of broadcasts.
type record struct {
	ID              flexString      `json:"id"`
	Type            string          `json:"type"`
	ActorID         flexString      `json:"actor_id"`
	ActorIDCamel    flexString      `json:"actorId"`
	ActivityID      flexString      `json:"activity_id"`
	ActivityIDCamel flexString      `json:"activityId"`
	PostSlug        string          `json:"post_slug"`
	PostSlugCamel   string          `json:"postSlug"`
	CreatedAt       string          `json:"created_at"`
	CreatedAtCamel  string          `json:"createdAt"`
	Nested          json.RawMessage `json:"record"`
}

// flexString decodes ids that arrive as either strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Normalize reduces a transport envelope to an InboundEvent with a canonical
// UTC timestamp.
func Normalize(env realtime.Envelope) (InboundEvent, error) {
	var (
		ev   InboundEvent
		body json.RawMessage
	)
	switch env.Kind {
	case realtime.KindBroadcast:
		ev.Origin = OriginBroadcast
		ev.Op = OpInsert
		body = env.Payload
	case realtime.KindRowChange:
		ev.Origin = OriginRowChange
		switch env.Action {
		case realtime.ActionInsert:
			ev.Op = OpInsert
			body = env.Record
		case realtime.ActionUpdate:
			ev.Op = OpUpdate
			body = env.Record
		case realtime.ActionDelete:
			ev.Op = OpDelete
			body = env.OldRecord
		default:
			return InboundEvent{}, fmt.Errorf("%w: unsupported action %q", ErrMalformedEvent, env.Action)
		}
	default:
		return InboundEvent{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, env.Kind)
	}

	rec, err := decodeRecord(body)
	if err != nil {
		return InboundEvent{}, err
	}
	ev.ID = strings.TrimSpace(string(rec.ID))
	if ev.ID == "" {
		return InboundEvent{}, fmt.Errorf("%w: missing id", ErrMalformedEvent)
	}
	ev.Type = strings.ToUpper(strings.TrimSpace(rec.Type))
	ev.ActorID = firstNonEmpty(string(rec.ActorID), string(rec.ActorIDCamel))
	ev.Refs = hydrate.Refs{
		ActivityID: firstNonEmpty(string(rec.ActivityID), string(rec.ActivityIDCamel)),
		PostSlug:   firstNonEmpty(rec.PostSlug, rec.PostSlugCamel),
	}
	ev.CreatedAt = hydrate.CanonicalTime(firstNonEmpty(rec.CreatedAt, rec.CreatedAtCamel, env.CommitTimestamp))
	return ev, nil
}

func decodeRecord(body json.RawMessage) (record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return record{}, fmt.Errorf("%w: empty body", ErrMalformedEvent)
	}
	var rec record
	if err := json.Unmarshal(body, &rec); err != nil {
		return record{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	nested := bytes.TrimSpace(rec.Nested)
	if len(nested) > 0 && nested[0] == '{' {
		return decodeRecord(nested)
	}
	return rec, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
