package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"feedsync/internal/clock"
	"feedsync/internal/logging"
	"feedsync/internal/realtime"
)

// FetchRealtimeSession exchanges the user token for a short-lived realtime
// session.
func (c *FeedClient) FetchRealtimeSession(ctx context.Context) (realtime.Session, error) {
	if strings.TrimSpace(c.token) == "" {
		return realtime.Session{}, &HTTPStatusError{StatusCode: http.StatusUnauthorized, Status: "missing user token"}
	}
	return c.postSession(ctx, c.endpoints.SessionURL, c.token)
}

// RefreshSession extends a realtime session before it expires.
func (c *FeedClient) RefreshSession(ctx context.Context, accessToken string) (realtime.Session, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return realtime.Session{}, &HTTPStatusError{StatusCode: http.StatusUnauthorized, Status: "missing realtime session token"}
	}
	return c.postSession(ctx, c.endpoints.SessionRefreshURL, token)
}

func (c *FeedClient) postSession(ctx context.Context, endpoint string, bearer string) (realtime.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader("{}"))
	if err != nil {
		return realtime.Session{}, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return realtime.Session{}, err
	}
	defer resp.Body.Close()
	c.logger.Debugf("POST %s -> %s", endpoint, resp.Status)

	data, _ := io.ReadAll(io.LimitReader(resp.Body, responseLimit))
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("realtime session rejected",
			logging.Field("status", resp.Status),
			logging.Field("response", logging.FormatPayload(data)))
		return realtime.Session{}, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var payload sessionResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return realtime.Session{}, fmt.Errorf("invalid realtime session response: %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return realtime.Session{}, fmt.Errorf("realtime session response missing access_token")
	}
	session := realtime.Session{AccessToken: payload.AccessToken, UserID: payload.UserID}
	if payload.ExpiresAt > 0 {
		session.ExpiresAt = time.Unix(payload.ExpiresAt, 0)
	}
	return session, nil
}

// SessionAuth caches the realtime session and refreshes it shortly before it
// expires. Concurrent callers share one in-flight request.
type SessionAuth struct {
	client *FeedClient
	clock  clock.Clock
	lead   time.Duration

	mu      sync.Mutex
	current *realtime.Session
}

func NewSessionAuth(c *FeedClient, clk clock.Clock) *SessionAuth {
	if clk == nil {
		clk = clock.Real()
	}
	return &SessionAuth{client: c, clock: clk, lead: realtimeRefreshLead}
}

// GetSession returns the cached session, refreshing or re-fetching it when it
// is near expiry. A rejected user token yields a nil session without error.
func (a *SessionAuth) GetSession(ctx context.Context) (*realtime.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if a.current.Valid(now.Add(a.lead)) {
		return a.copyCurrent(), nil
	}

	if a.current.Valid(now) {
		session, err := a.client.RefreshSession(ctx, a.current.AccessToken)
		if err == nil {
			a.current = &session
			return a.copyCurrent(), nil
		}
		a.client.logger.Debug("realtime session refresh failed; requesting a new one", logging.Field("error", err))
	}

	session, err := a.client.FetchRealtimeSession(ctx)
	if err != nil {
		a.current = nil
		if IsUnauthorized(err) {
			return nil, nil
		}
		return nil, err
	}
	a.current = &session
	return a.copyCurrent(), nil
}

// Invalidate drops the cached session so the next call fetches a new one.
func (a *SessionAuth) Invalidate() {
	a.mu.Lock()
	a.current = nil
	a.mu.Unlock()
}

func (a *SessionAuth) copyCurrent() *realtime.Session {
	session := *a.current
	return &session
}
