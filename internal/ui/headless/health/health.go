package health

import (
	"fmt"
	"strings"
	"time"

	"feedsync/internal/feed"
)

const RefreshRate = 5 * time.Second

// quietAfter marks a live feed as warn when nothing arrived for a while.
const quietAfter = 30 * time.Minute

type Kind int

const (
	Missing Kind = iota
	Active
	Warn
	Stale
)

type Row struct {
	Name   string
	Kind   Kind
	Reason string
}

// Compute turns feed states into dashboard rows. lastEvent holds the time of
// the most recent delivery per feed.
func Compute(states []feed.State, lastEvent map[feed.Feed]time.Time, now time.Time) ([]Row, string) {
	rows := make([]Row, 0, len(states))
	if len(states) == 0 {
		return rows, "No feeds running."
	}
	for _, s := range states {
		row := Row{Name: feedName(s)}
		last, seen := lastEvent[s.Feed]
		switch s.ConnectionState {
		case feed.StateRealtime:
			row.Kind = Active
			row.Reason = "realtime"
			if seen {
				age := now.Sub(last).Round(time.Second)
				row.Reason = fmt.Sprintf("realtime, last event %s ago", age)
				if now.Sub(last) > quietAfter {
					row.Kind = Warn
				}
			}
		case feed.StateConnecting:
			row.Kind = Warn
			row.Reason = "connecting"
			if s.Attempts > 0 {
				row.Reason = fmt.Sprintf("reconnecting (attempt %d)", s.Attempts)
			}
		case feed.StatePolling:
			row.Kind = Stale
			row.Reason = "polling fallback"
		case feed.StateError:
			row.Kind = Missing
			row.Reason = "error"
		default:
			row.Kind = Missing
			row.Reason = "disconnected"
		}
		if s.Err != nil {
			row.Reason += ": " + s.Err.Error()
		}
		if s.IsRefreshing {
			row.Reason += " (refreshing)"
		}
		rows = append(rows, row)
	}
	return rows, ""
}

func feedName(s feed.State) string {
	name := string(s.Feed)
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	if s.Feed == feed.Notifications && s.UnreadCount > 0 {
		name = fmt.Sprintf("%s (%d unread)", name, s.UnreadCount)
	}
	return name
}
