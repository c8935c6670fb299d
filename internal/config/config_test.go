package config

import "testing"

func TestBuildEndpoints_NormalizeAPIBaseURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{name: "root host", base: "http://127.0.0.1:8090", want: "http://127.0.0.1:8090/api"},
		{name: "already api", base: "http://127.0.0.1:8090/api", want: "http://127.0.0.1:8090/api"},
		{name: "api with trailing", base: "http://127.0.0.1:8090/api/", want: "http://127.0.0.1:8090/api"},
		{name: "pasted feed endpoint", base: "http://127.0.0.1:8090/api/notifications?cursor=x", want: "http://127.0.0.1:8090/api"},
		{name: "subpath drops extra path", base: "https://example.com/blog/api/activities", want: "https://example.com/api"},
		{name: "query fragment dropped", base: "https://example.com/anything?x=1#y", want: "https://example.com/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoints, err := BuildEndpoints(tt.base)
			if err != nil {
				t.Fatalf("BuildEndpoints failed: %v", err)
			}
			if endpoints.BaseURL != tt.want {
				t.Fatalf("BaseURL = %q, want %q", endpoints.BaseURL, tt.want)
			}
			if endpoints.SessionURL != tt.want+"/realtime/session" {
				t.Fatalf("SessionURL = %q", endpoints.SessionURL)
			}
			if endpoints.SessionRefreshURL != tt.want+"/realtime/session/refresh" {
				t.Fatalf("SessionRefreshURL = %q", endpoints.SessionRefreshURL)
			}
			if endpoints.RealtimeURL != tt.want+"/realtime" {
				t.Fatalf("RealtimeURL = %q", endpoints.RealtimeURL)
			}
			if got := endpoints.EventsURL("notifications"); got != tt.want+"/notifications" {
				t.Fatalf("EventsURL() = %q", got)
			}
		})
	}
}

func TestBuildEndpoints_ProbeAddress(t *testing.T) {
	tests := map[string]string{
		"https://example.com":       "example.com:443",
		"http://example.com/api":    "example.com:80",
		"http://127.0.0.1:8090/api": "127.0.0.1:8090",
	}
	for base, want := range tests {
		endpoints, err := BuildEndpoints(base)
		if err != nil {
			t.Fatalf("BuildEndpoints(%q) error = %v", base, err)
		}
		if endpoints.ProbeAddress != want {
			t.Fatalf("ProbeAddress for %q = %q, want %q", base, endpoints.ProbeAddress, want)
		}
	}
}

func TestBuildEndpoints_InvalidScheme(t *testing.T) {
	tests := []string{
		"ftp://example.com",
		"ws://example.com",
		"file:///tmp/feedsync",
	}
	for _, base := range tests {
		t.Run(base, func(t *testing.T) {
			if _, err := BuildEndpoints(base); err == nil {
				t.Fatalf("expected error for %q", base)
			}
		})
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		ok   bool
	}{
		{name: "complete", opts: Options{BaseURL: "https://example.com", Token: "tok", Transport: TransportSSE}, ok: true},
		{name: "missing base", opts: Options{Token: "tok"}},
		{name: "missing token", opts: Options{BaseURL: "https://example.com"}},
		{name: "websocket without url", opts: Options{BaseURL: "https://example.com", Token: "tok", Transport: TransportWebsocket}},
		{name: "websocket with url", opts: Options{BaseURL: "https://example.com", Token: "tok", Transport: TransportWebsocket, RealtimeURL: "wss://rt.example.com/socket"}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequired(tt.opts)
			if (err == nil) != tt.ok {
				t.Fatalf("ValidateRequired() error = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
