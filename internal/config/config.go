package config

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const (
	TransportSSE       = "sse"
	TransportWebsocket = "websocket"
)

type Options struct {
	BaseURL       string        `long:"base-url" env:"FEEDSYNC_BASE_URL" description:"Platform base URL (e.g. https://blog.example.com)"`
	Token         string        `long:"token" env:"FEEDSYNC_TOKEN" description:"User API token"`
	UserID        string        `long:"user-id" env:"FEEDSYNC_USER_ID" description:"User id scoping the notifications channel"`
	Transport     string        `long:"transport" env:"FEEDSYNC_TRANSPORT" default:"sse" choice:"sse" choice:"websocket" description:"Realtime transport"`
	RealtimeURL   string        `long:"realtime-url" env:"FEEDSYNC_REALTIME_URL" description:"Realtime endpoint override; required for the websocket transport"`
	RealtimeKey   string        `long:"realtime-key" env:"FEEDSYNC_REALTIME_KEY" description:"API key sent when opening the realtime websocket"`
	StoreDSN      string        `long:"store-dsn" env:"FEEDSYNC_STORE_DSN" description:"Direct store used when the read API cannot hydrate an event (postgres://... or a SQLite file path)"`
	FeedsFile     string        `long:"feeds-file" env:"FEEDSYNC_FEEDS_FILE" description:"YAML file with per-feed tuning; edits apply live"`
	ProbeInterval time.Duration `long:"probe-interval" env:"FEEDSYNC_PROBE_INTERVAL" default:"5s" description:"Backend reachability probe interval"`
	Plain         bool          `long:"plain" env:"FEEDSYNC_PLAIN" description:"Log deliveries to the terminal instead of running the dashboard"`
	AutoConnect   bool          `long:"auto-connect" env:"FEEDSYNC_AUTO_CONNECT" description:"Start feeds on launch"`
	SaveSettings  bool          `long:"save-settings" description:"Persist the effective connection settings for later runs"`
	Debug         bool          `long:"debug" env:"FEEDSYNC_DEBUG" description:"Enable verbose debug output"`
}

type APIEndpoints struct {
	BaseURL           string
	SessionURL        string
	SessionRefreshURL string
	RealtimeURL       string
	MarkReadURL       string
	// ProbeAddress is the backend host:port dialed by the reachability probe.
	ProbeAddress string
}

// EventsURL is the read endpoint of one feed.
func (e APIEndpoints) EventsURL(feed string) string {
	return e.BaseURL + "/" + strings.Trim(feed, "/")
}

const (
	realtimeSessionPath = "/realtime/session"
	realtimeEventsPath  = "/realtime"
)

func ParseOptions() (Options, error) {
	_ = godotenv.Load()
	opts := Options{}
	if _, err := flags.Parse(&opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func ValidateRequired(opts Options) error {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return errors.New("base URL is required")
	}
	if strings.TrimSpace(opts.Token) == "" {
		return errors.New("user token is required")
	}
	if opts.Transport == TransportWebsocket && strings.TrimSpace(opts.RealtimeURL) == "" {
		return errors.New("realtime URL is required for the websocket transport")
	}
	return nil
}

func BuildEndpoints(rawBaseURL string) (APIEndpoints, error) {
	parsed, err := parseBaseURL(rawBaseURL)
	if err != nil {
		return APIEndpoints{}, err
	}
	apiBaseURL := strings.TrimRight(parsed.String(), "/")
	return APIEndpoints{
		BaseURL:           apiBaseURL,
		SessionURL:        apiBaseURL + realtimeSessionPath,
		SessionRefreshURL: apiBaseURL + realtimeSessionPath + "/refresh",
		RealtimeURL:       apiBaseURL + realtimeEventsPath,
		MarkReadURL:       apiBaseURL + "/notifications/read",
		ProbeAddress:      probeAddress(parsed),
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	value := strings.TrimSpace(raw)
	parsed, err := url.Parse(value)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("expected absolute URL like https://example.com")
	}
	if !strings.EqualFold(parsed.Scheme, "http") && !strings.EqualFold(parsed.Scheme, "https") {
		return nil, errors.New("base URL scheme must be http or https")
	}

	// Normalize any pasted endpoint/path to canonical API base.
	parsed.Path = "/api"
	parsed.RawPath = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed, nil
}

func probeAddress(u *url.URL) string {
	if port := u.Port(); port != "" {
		return u.Host
	}
	if strings.EqualFold(u.Scheme, "https") {
		return net.JoinHostPort(u.Hostname(), "443")
	}
	return net.JoinHostPort(u.Hostname(), "80")
}
