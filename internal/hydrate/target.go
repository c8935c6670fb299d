package hydrate

import (
	"net/url"
	"strings"
)

// Event types with a navigation target.
const (
	TypeFollow  = "FOLLOW"
	TypeComment = "COMMENT"
	TypeLike    = "LIKE"
)

// Refs are the entities an event may point at. An activity reference wins
// over a post reference.
type Refs struct {
	ActivityID string
	PostSlug   string
}

// Target returns the in-app path a reader is sent to for an event, or "" when
// the event has no destination.
func Target(eventType string, actorID string, refs Refs) string {
	activity := strings.TrimSpace(refs.ActivityID)
	slug := strings.TrimSpace(refs.PostSlug)

	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case TypeFollow:
		if strings.TrimSpace(actorID) == "" {
			return ""
		}
		return "/profile/" + url.PathEscape(actorID)
	case TypeComment:
		if activity != "" {
			return highlight(activity)
		}
		if slug != "" {
			return "/blog/" + url.PathEscape(slug) + "#comments"
		}
	case TypeLike:
		if activity != "" {
			return highlight(activity)
		}
		if slug != "" {
			return "/blog/" + url.PathEscape(slug)
		}
	}
	return ""
}

func highlight(activityID string) string {
	return "/feed?highlight=" + url.QueryEscape(activityID)
}
