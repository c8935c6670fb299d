package headless

import (
	"strings"
	"testing"
	"time"

	"feedsync/internal/app"
	"feedsync/internal/feed"
	"feedsync/internal/hydrate"
)

var boardNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func notification(id string, op feed.Op, read bool) app.Delivery {
	return app.Delivery{Feed: feed.Notifications, Op: op, View: hydrate.View{
		ID:        id,
		Type:      "COMMENT",
		Actor:     hydrate.Actor{ID: "u2", DisplayName: "Ada"},
		PostTitle: "Hello",
		Target:    "/posts/hello",
		Read:      read,
	}}
}

func TestBoardTracksUnreadNotifications(t *testing.T) {
	b := newFeedBoard()
	b.record(notification("n1", feed.OpInsert, false), boardNow)
	b.record(notification("n1", feed.OpInsert, false), boardNow)
	b.record(notification("n2", feed.OpInsert, false), boardNow)
	if strings.Join(b.unread, ",") != "n1,n2" {
		t.Fatalf("unread = %v, want [n1 n2]", b.unread)
	}
	if !b.lastEvent[feed.Notifications].Equal(boardNow) {
		t.Fatalf("lastEvent not recorded")
	}
	if got := b.recent[0].Text; got != "Ada comment on Hello" {
		t.Fatalf("delivery text = %q", got)
	}

	b.record(notification("n2", feed.OpUpdate, true), boardNow)
	if strings.Join(b.unread, ",") != "n1" {
		t.Fatalf("unread after read update = %v, want [n1]", b.unread)
	}

	b.markRead([]string{"n1"})
	if len(b.unread) != 0 || !b.recent[0].Read || !b.recent[1].Read {
		t.Fatalf("after markRead: unread=%v recent=%+v", b.unread, b.recent[:2])
	}
}

func TestBoardDeleteClearsUnread(t *testing.T) {
	b := newFeedBoard()
	b.record(notification("n1", feed.OpInsert, false), boardNow)
	b.record(notification("n1", feed.OpDelete, false), boardNow)
	if len(b.unread) != 0 {
		t.Fatalf("unread after delete = %v", b.unread)
	}
}

func TestBoardBoundsHistory(t *testing.T) {
	b := newFeedBoard()
	for i := range deliveryLimit + 5 {
		b.record(app.Delivery{Feed: feed.Activities, Op: feed.OpUpdate, View: hydrate.View{ID: string(rune('a' + i%26))}}, boardNow)
	}
	if len(b.recent) != deliveryLimit {
		t.Fatalf("recent = %d, want %d", len(b.recent), deliveryLimit)
	}
	if len(b.unread) != 0 {
		t.Fatalf("activities counted as unread: %v", b.unread)
	}
}

func TestBoardDropsStoppedFeeds(t *testing.T) {
	b := newFeedBoard()
	b.setState(feed.State{Feed: feed.Activities, ConnectionState: feed.StateRealtime, IsSubscribed: true}, boardNow)
	if len(b.rows) != 1 {
		t.Fatalf("rows = %+v, want one", b.rows)
	}
	b.setState(feed.State{Feed: feed.Activities, ConnectionState: feed.StateDisconnected}, boardNow)
	if len(b.feeds) != 0 || b.detail == "" {
		t.Fatalf("stopped feed kept: feeds=%v detail=%q", b.feeds, b.detail)
	}
	if b.due(boardNow) || !b.due(boardNow.Add(time.Minute)) {
		t.Fatalf("due() did not follow the health refresh rate")
	}
}

func TestDeliveryLine(t *testing.T) {
	tests := []struct {
		name string
		view hydrate.View
		want string
	}{
		{name: "message", view: hydrate.View{Actor: hydrate.Actor{Username: "bo"}, Type: "MENTION", Message: "hi"}, want: "bo mention: hi"},
		{name: "anonymous", view: hydrate.View{}, want: "someone"},
		{name: "fallback", view: hydrate.View{Actor: hydrate.Actor{ID: "u7"}, Fallback: true}, want: "u7 (unresolved)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deliveryLine(app.Delivery{Feed: feed.Activities, Op: feed.OpDelete, View: tt.view}).Text; got != tt.want {
				t.Fatalf("deliveryLine() = %q, want %q", got, tt.want)
			}
		})
	}
}
