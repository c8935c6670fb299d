package runstatus

import (
	"strings"

	"feedsync/internal/feed"
)

const (
	Live         = "Live"
	Connecting   = "Connecting"
	Reconnecting = "Reconnecting"
	Degraded     = "Degraded (polling)"
	Offline      = "Offline"
	Error        = "Error"
	Stopped      = "Stopped"
)

const (
	KeyLive         = "live"
	KeyConnecting   = "connecting"
	KeyReconnecting = "reconnecting"
	KeyDegraded     = "degraded (polling)"
	KeyOffline      = "offline"
	KeyError        = "error"
	KeyStopped      = "stopped"
)

func Key(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// ForFeed labels a single feed state.
func ForFeed(s feed.State) string {
	switch s.ConnectionState {
	case feed.StateRealtime:
		return Live
	case feed.StatePolling:
		return Degraded
	case feed.StateError:
		return Error
	case feed.StateConnecting:
		if s.Attempts > 0 {
			return Reconnecting
		}
		return Connecting
	default:
		return Stopped
	}
}

// Summarize folds the states of every running feed into one connectivity
// label. The worst feed wins.
func Summarize(online bool, states []feed.State) string {
	if len(states) == 0 {
		return Stopped
	}
	if !online {
		return Offline
	}
	rank := map[string]int{Live: 0, Stopped: 1, Connecting: 2, Reconnecting: 3, Degraded: 4, Error: 5}
	worst := Live
	for _, s := range states {
		label := ForFeed(s)
		if rank[label] > rank[worst] {
			worst = label
		}
	}
	return worst
}
