package phoenix

import (
	"encoding/json"

	"feedsync/internal/realtime"
)

const (
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventError     = "phx_error"
	eventClose     = "phx_close"
	eventHeartbeat = "heartbeat"
	eventBroadcast = "broadcast"
	eventChanges   = "postgres_changes"
	eventSystem    = "system"

	socketTopic = "phoenix"
	topicPrefix = "realtime:"
)

type message struct {
	JoinRef string          `json:"join_ref,omitempty"`
	Ref     string          `json:"ref,omitempty"`
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Config      joinConfig `json:"config"`
	AccessToken string     `json:"access_token,omitempty"`
}

type joinConfig struct {
	Broadcast       broadcastConfig `json:"broadcast"`
	Presence        presenceConfig  `json:"presence"`
	PostgresChanges []changeConfig  `json:"postgres_changes"`
}

type broadcastConfig struct {
	Self bool `json:"self"`
	Ack  bool `json:"ack"`
}

type presenceConfig struct {
	Key string `json:"key"`
}

type changeConfig struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table,omitempty"`
	Filter string `json:"filter,omitempty"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type replyError struct {
	Reason string `json:"reason"`
}

type broadcastPayload struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type changesPayload struct {
	IDs  []int64 `json:"ids"`
	Data struct {
		Type            string          `json:"type"`
		Schema          string          `json:"schema"`
		Table           string          `json:"table"`
		Record          json.RawMessage `json:"record"`
		OldRecord       json.RawMessage `json:"old_record"`
		CommitTimestamp string          `json:"commit_timestamp"`
	} `json:"data"`
}

func changeConfigFor(filter realtime.Filter) changeConfig {
	event := string(filter.Action)
	if event == "" {
		event = string(realtime.ActionAll)
	}
	schema := filter.Schema
	if schema == "" {
		schema = "public"
	}
	return changeConfig{Event: event, Schema: schema, Table: filter.Table, Filter: filter.Where}
}
