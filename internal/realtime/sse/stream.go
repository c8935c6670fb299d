package sse

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feedsync/internal/clock"
	"feedsync/internal/logging"
	"feedsync/internal/realtime"
)

const connectEvent = "PB_CONNECT"

type subscribeFunc func(ctx context.Context, clientID string, token string, topics []string) error

type sessionHandlers struct {
	OnConnected func(clientID string)
	OnFrame     func(frame)
}

type stream struct {
	HTTP        *http.Client
	URL         string
	RefreshLead time.Duration
	ForceHTTP1  bool
	Clock       clock.Clock
	Logger      *logging.Logger
}

// run holds one event stream open. It subscribes topics once the server
// assigns a client id and returns when the stream ends, ctx is done or the
// session reaches its refresh boundary.
func (s stream) run(ctx context.Context, session *realtime.Session, topics []string, subscribe subscribeFunc, handlers sessionHandlers) error {
	clk := s.Clock
	if clk == nil {
		clk = clock.Real()
	}
	var refresh <-chan time.Time
	token := ""
	if session != nil {
		token = session.AccessToken
		if !session.ExpiresAt.IsZero() {
			lead := s.RefreshLead
			if lead <= 0 {
				lead = 10 * time.Second
			}
			refreshAfter := session.ExpiresAt.Add(-lead).Sub(clk.Now())
			if refreshAfter <= 0 {
				return ErrSessionRefreshDue
			}
			refresh = clk.After(refreshAfter)
			s.Logger.Debug("starting realtime stream",
				logging.Field("topics", topics),
				logging.Field("refresh_after", refreshAfter.String()))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	httpClient := s.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	// The body stays open for the life of the stream.
	streamHTTP := *httpClient
	streamHTTP.Timeout = 0
	if s.ForceHTTP1 {
		streamHTTP.Transport = http1OnlyRoundTripper(streamHTTP.Transport)
	}

	resp, err := streamHTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		s.Logger.Warn("realtime connect failed",
			logging.Field("status", resp.Status),
			logging.Field("response", logging.FormatPayload(data)))
		return &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	frames := make(chan frame, 16)
	streamErrs := make(chan error, 1)
	go readFrames(ctx, resp.Body, frames, streamErrs)

	var clientID string
	handle := func(f frame) error {
		if f.Name != connectEvent {
			if handlers.OnFrame != nil {
				handlers.OnFrame(f)
			}
			return nil
		}
		var payload struct {
			ClientID string `json:"clientId"`
		}
		if err := json.Unmarshal(f.Data, &payload); err != nil {
			return fmt.Errorf("invalid %s payload: %w", connectEvent, err)
		}
		if payload.ClientID == "" {
			return ErrMissingClientID
		}
		if payload.ClientID == clientID {
			s.Logger.Debug("ignoring duplicate connect event", logging.Field("client_id", clientID))
			return nil
		}
		clientID = payload.ClientID
		if err := subscribe(ctx, clientID, token, topics); err != nil {
			return err
		}
		if handlers.OnConnected != nil {
			handlers.OnConnected(clientID)
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refresh:
			s.Logger.Debug("realtime stream refresh boundary reached")
			return ErrSessionRefreshDue
		case streamErr := <-streamErrs:
			// Frames buffered ahead of the error are still delivered.
			for f := range frames {
				if err := handle(f); err != nil {
					return err
				}
			}
			return streamErr
		case f, ok := <-frames:
			if !ok {
				return <-streamErrs
			}
			if err := handle(f); err != nil {
				return err
			}
		}
	}
}

func http1OnlyRoundTripper(rt http.RoundTripper) http.RoundTripper {
	switch transport := rt.(type) {
	case nil:
		base, ok := http.DefaultTransport.(*http.Transport)
		if !ok {
			return rt
		}
		clone := base.Clone()
		disableHTTP2(clone)
		return clone
	case *http.Transport:
		clone := transport.Clone()
		disableHTTP2(clone)
		return clone
	default:
		// Custom transports may not speak HTTP/2 at all.
		return rt
	}
}

func disableHTTP2(transport *http.Transport) {
	transport.ForceAttemptHTTP2 = false
	transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
}

func subscribeTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, topic := range topics {
		name := strings.TrimSpace(topic)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
