package health

import (
	"errors"
	"strings"
	"testing"
	"time"

	"feedsync/internal/feed"
)

func TestCompute_ClassifiesFeedStates(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	states := []feed.State{
		{Feed: feed.Activities, ConnectionState: feed.StateRealtime},
		{Feed: feed.Notifications, ConnectionState: feed.StatePolling, UnreadCount: 3},
	}
	last := map[feed.Feed]time.Time{feed.Activities: now.Add(-5 * time.Minute)}

	rows, msg := Compute(states, last, now)
	if msg != "" {
		t.Fatalf("Compute() message = %q, want empty", msg)
	}
	if len(rows) != 2 {
		t.Fatalf("rows len = %d, want 2", len(rows))
	}
	if rows[0].Kind != Active || !strings.Contains(rows[0].Reason, "5m0s ago") {
		t.Fatalf("activities row = %+v", rows[0])
	}
	if rows[1].Kind != Stale || rows[1].Name != "Notifications (3 unread)" {
		t.Fatalf("notifications row = %+v", rows[1])
	}
}

func TestCompute_QuietRealtimeFeedWarns(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	states := []feed.State{{Feed: feed.Activities, ConnectionState: feed.StateRealtime}}
	last := map[feed.Feed]time.Time{feed.Activities: now.Add(-2 * time.Hour)}

	rows, _ := Compute(states, last, now)
	if rows[0].Kind != Warn {
		t.Fatalf("Kind = %v, want Warn", rows[0].Kind)
	}
}

func TestCompute_ReportsRetriesAndErrors(t *testing.T) {
	states := []feed.State{
		{Feed: feed.Activities, ConnectionState: feed.StateConnecting, Attempts: 2},
		{Feed: feed.Notifications, ConnectionState: feed.StateError, Err: errors.New("client construction failed")},
	}
	rows, _ := Compute(states, nil, time.Now())
	if rows[0].Kind != Warn || rows[0].Reason != "reconnecting (attempt 2)" {
		t.Fatalf("activities row = %+v", rows[0])
	}
	if rows[1].Kind != Missing || !strings.Contains(rows[1].Reason, "client construction failed") {
		t.Fatalf("notifications row = %+v", rows[1])
	}
}

func TestCompute_NoFeeds(t *testing.T) {
	rows, msg := Compute(nil, nil, time.Now())
	if len(rows) != 0 || !strings.Contains(msg, "No feeds") {
		t.Fatalf("Compute(nil) rows=%d msg=%q", len(rows), msg)
	}
}
