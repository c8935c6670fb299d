// Package client talks to the platform's HTTP read API: paged feed listings,
// id lookups used for hydration, and short-lived realtime sessions.
package client

import (
	"net/http"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/logging"
)

const (
	responseLimit       = 1 << 20
	realtimeRefreshLead = 30 * time.Second
)

type FeedClient struct {
	http      *http.Client
	token     string
	endpoints config.APIEndpoints
	logger    *logging.Logger
}

func New(httpClient *http.Client, token string, endpoints config.APIEndpoints, logger *logging.Logger) *FeedClient {
	if logger == nil {
		panic("client.New: logger must not be nil")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &FeedClient{http: httpClient, token: token, endpoints: endpoints, logger: logger}
}
