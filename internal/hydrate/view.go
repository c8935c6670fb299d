package hydrate

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"feedsync/internal/client"
	"feedsync/internal/store"
)

type Actor struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
}

// View is an event ready for display. Fallback marks views built from the
// raw payload after every lookup failed; those carry only the actor id.
type View struct {
	ID         string
	Feed       string
	Type       string
	Actor      Actor
	ActivityID string
	PostID     string
	PostSlug   string
	PostTitle  string
	Message    string
	Read       bool
	Target     string
	CreatedAt  string
	Fallback   bool
}

// Raw is the minimum an inbound event carries before hydration.
type Raw struct {
	ID        string
	Type      string
	ActorID   string
	Refs      Refs
	CreatedAt string
}

// FromItem builds a view from a read API item.
func FromItem(feed string, item client.EventItem) View {
	actor := Actor{ID: item.ActorID}
	if item.Actor != nil {
		actor = Actor{
			ID:          firstNonEmpty(item.Actor.ID, item.ActorID),
			Username:    item.Actor.Username,
			DisplayName: item.Actor.DisplayName,
			AvatarURL:   item.Actor.AvatarURL,
		}
	}
	activityID := item.ActivityID
	if feed == "activities" && activityID == "" {
		activityID = item.ID
	}
	v := View{
		ID:         item.ID,
		Feed:       feed,
		Type:       item.Type,
		Actor:      normalizeActor(actor),
		ActivityID: activityID,
		PostID:     item.PostID,
		PostSlug:   item.PostSlug,
		PostTitle:  item.PostTitle,
		Message:    item.Message,
		Read:       item.Read,
		CreatedAt:  CanonicalTime(item.CreatedAt),
	}
	v.Target = Target(v.Type, v.Actor.ID, Refs{ActivityID: v.ActivityID, PostSlug: v.PostSlug})
	return v
}

func fromStore(feed string, ev store.Event) View {
	v := View{
		ID:   ev.ID,
		Feed: feed,
		Type: ev.Type,
		Actor: normalizeActor(Actor{
			ID:          ev.ActorID,
			Username:    ev.Username,
			DisplayName: ev.DisplayName,
			AvatarURL:   ev.AvatarURL,
		}),
		ActivityID: ev.ActivityID,
		PostID:     ev.PostID,
		PostSlug:   ev.PostSlug,
		PostTitle:  ev.PostTitle,
		Message:    ev.Message,
		Read:       ev.Read,
	}
	if !ev.CreatedAt.IsZero() {
		v.CreatedAt = ev.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	v.Target = Target(v.Type, v.Actor.ID, Refs{ActivityID: v.ActivityID, PostSlug: v.PostSlug})
	return v
}

// Fallback builds the view used when hydration returned nothing.
func Fallback(feed string, raw Raw) View {
	return View{
		ID:         raw.ID,
		Feed:       feed,
		Type:       raw.Type,
		Actor:      Actor{ID: raw.ActorID},
		ActivityID: raw.Refs.ActivityID,
		PostSlug:   raw.Refs.PostSlug,
		Target:     Target(raw.Type, raw.ActorID, raw.Refs),
		CreatedAt:  CanonicalTime(raw.CreatedAt),
		Fallback:   true,
	}
}

// Name is the label shown for the actor.
func (a Actor) Name() string {
	return firstNonEmpty(a.DisplayName, a.Username, a.ID)
}

var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// CanonicalTime rewrites a timestamp as RFC3339Nano in UTC. Values without
// a zone are taken as UTC. Unparseable input is returned trimmed.
func CanonicalTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339Nano)
		}
	}
	return raw
}

func normalizeActor(a Actor) Actor {
	a.Username = strings.TrimSpace(a.Username)
	a.DisplayName = norm.NFC.String(strings.TrimSpace(a.DisplayName))
	return a
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
