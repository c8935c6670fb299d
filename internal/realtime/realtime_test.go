package realtime

import (
	"errors"
	"testing"
	"time"
)

func TestFilterMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		env    Envelope
		want   bool
	}{
		{name: "broadcast exact", filter: Filter{Event: "new_notification"}, env: Envelope{Kind: KindBroadcast, Event: "new_notification"}, want: true},
		{name: "broadcast other", filter: Filter{Event: "new_notification"}, env: Envelope{Kind: KindBroadcast, Event: "typing"}},
		{name: "broadcast wildcard", filter: Filter{Event: "*"}, env: Envelope{Kind: KindBroadcast, Event: "typing"}, want: true},
		{name: "row all actions", filter: Filter{Action: ActionAll, Table: "activities"}, env: Envelope{Kind: KindRowChange, Action: ActionDelete, Table: "activities"}, want: true},
		{name: "row action mismatch", filter: Filter{Action: ActionInsert, Table: "notifications"}, env: Envelope{Kind: KindRowChange, Action: ActionUpdate, Table: "notifications"}},
		{name: "row table mismatch", filter: Filter{Action: ActionInsert, Table: "notifications"}, env: Envelope{Kind: KindRowChange, Action: ActionInsert, Table: "activities"}},
		{name: "unknown kind", filter: Filter{}, env: Envelope{Kind: "presence"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.env); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionValid(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tests := []struct {
		name    string
		session *Session
		want    bool
	}{
		{name: "nil", session: nil},
		{name: "empty token", session: &Session{AccessToken: "  "}},
		{name: "no expiry", session: &Session{AccessToken: "tok"}, want: true},
		{name: "future expiry", session: &Session{AccessToken: "tok", ExpiresAt: now.Add(time.Minute)}, want: true},
		{name: "expired", session: &Session{AccessToken: "tok", ExpiresAt: now.Add(-time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Valid(now); got != tt.want {
				t.Fatalf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

type nopClient struct{}

func (nopClient) Channel(string) Channel      { return nil }
func (nopClient) RemoveChannel(Channel) error { return nil }
func (nopClient) Auth() Auth                  { return nil }
func (nopClient) Close() error                { return nil }

func TestProviderBuildsOnce(t *testing.T) {
	calls := 0
	p := NewProvider(func() (Client, error) {
		calls++
		return nopClient{}, nil
	})
	for i := 0; i < 3; i++ {
		if _, err := p.Client(); err != nil {
			t.Fatalf("Client() error = %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("factory calls = %d, want 1", calls)
	}
}

func TestProviderCachesConstructionError(t *testing.T) {
	calls := 0
	boom := errors.New("missing realtime url")
	p := NewProvider(func() (Client, error) {
		calls++
		return nil, boom
	})
	for i := 0; i < 2; i++ {
		if _, err := p.Client(); !errors.Is(err, boom) {
			t.Fatalf("Client() error = %v, want %v", err, boom)
		}
	}
	if calls != 1 {
		t.Fatalf("factory calls = %d, want 1", calls)
	}
}

func TestProviderRecoversFactoryPanic(t *testing.T) {
	p := NewProvider(func() (Client, error) { panic("bad config") })
	if _, err := p.Client(); err == nil {
		t.Fatalf("Client() error = nil, want panic converted to error")
	}
}

type closeCounter struct {
	nopClient
	closed *int
}

func (c closeCounter) Close() error {
	*c.closed++
	return nil
}

func TestProviderCloseOnlyClosesBuiltClient(t *testing.T) {
	closed := 0
	calls := 0
	p := NewProvider(func() (Client, error) {
		calls++
		return closeCounter{closed: &closed}, nil
	})
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if calls != 0 {
		t.Fatalf("Close() built the client")
	}
	if _, err := p.Client(); err != nil {
		t.Fatalf("Client() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if closed != 1 {
		t.Fatalf("closed = %d, want 1", closed)
	}
}
