package headless

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"feedsync/internal/app"
	"feedsync/internal/feed"
	"feedsync/internal/ui/headless/health"
	headlessview "feedsync/internal/ui/headless/view"
)

// feedBoard is what the overview knows about running feeds and the
// deliveries they produced.
type feedBoard struct {
	feeds     map[feed.Feed]feed.State
	lastEvent map[feed.Feed]time.Time
	recent    []headlessview.DeliveryLine
	unread    []string

	rows       []health.Row
	detail     string
	computedAt time.Time
}

func newFeedBoard() feedBoard {
	return feedBoard{
		feeds:     make(map[feed.Feed]feed.State),
		lastEvent: make(map[feed.Feed]time.Time),
	}
}

// clearFeeds forgets feed states but keeps delivery history.
func (b *feedBoard) clearFeeds(now time.Time) {
	clear(b.feeds)
	b.recompute(now)
}

func (b *feedBoard) setState(s feed.State, now time.Time) {
	if s.ConnectionState == feed.StateDisconnected && !s.IsSubscribed {
		delete(b.feeds, s.Feed)
	} else {
		b.feeds[s.Feed] = s
	}
	b.recompute(now)
}

func (b *feedBoard) record(d app.Delivery, now time.Time) {
	b.lastEvent[d.Feed] = now
	b.recent = append(b.recent, deliveryLine(d))
	if over := len(b.recent) - deliveryLimit; over > 0 {
		b.recent = slices.Clone(b.recent[over:])
	}
	if d.Feed == feed.Notifications && d.View.ID != "" {
		unread := d.Op == feed.OpInsert && !d.View.Read
		switch {
		case unread && !slices.Contains(b.unread, d.View.ID):
			b.unread = append(b.unread, d.View.ID)
		case d.Op == feed.OpDelete || d.View.Read:
			b.unread = slices.DeleteFunc(b.unread, func(id string) bool { return id == d.View.ID })
		}
	}
	b.recompute(now)
}

func (b *feedBoard) markRead(ids []string) {
	b.unread = slices.DeleteFunc(b.unread, func(id string) bool { return slices.Contains(ids, id) })
	for i, line := range b.recent {
		if line.Feed == string(feed.Notifications) && slices.Contains(ids, line.ID) {
			b.recent[i].Read = true
		}
	}
}

func (b *feedBoard) states() []feed.State {
	out := make([]feed.State, 0, len(b.feeds))
	for _, s := range b.feeds {
		out = append(out, s)
	}
	slices.SortFunc(out, func(x, y feed.State) int { return strings.Compare(string(x.Feed), string(y.Feed)) })
	return out
}

func (b *feedBoard) recompute(now time.Time) {
	b.computedAt = now
	b.rows, b.detail = health.Compute(b.states(), b.lastEvent, now)
}

// due reports whether the health rows should be recomputed for quiet feeds.
func (b *feedBoard) due(now time.Time) bool {
	return now.Sub(b.computedAt) >= health.RefreshRate
}

// deliveryLine summarizes a delivery as "who did what on which post".
func deliveryLine(d app.Delivery) headlessview.DeliveryLine {
	v := d.View
	var b strings.Builder
	b.WriteString(cmp.Or(strings.TrimSpace(v.Actor.Name()), "someone"))
	if kind := strings.ToLower(strings.TrimSpace(v.Type)); kind != "" {
		b.WriteString(" " + kind)
	}
	if v.PostTitle != "" {
		b.WriteString(" on " + v.PostTitle)
	} else if v.Message != "" {
		b.WriteString(": " + v.Message)
	}
	if v.Fallback {
		b.WriteString(" (unresolved)")
	}
	return headlessview.DeliveryLine{
		ID:     v.ID,
		Feed:   string(d.Feed),
		Op:     string(d.Op),
		Text:   b.String(),
		Target: v.Target,
		Read:   v.Read,
	}
}
