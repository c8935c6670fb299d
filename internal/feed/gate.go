package feed

import (
	"context"
	"fmt"

	"feedsync/internal/clock"
	"feedsync/internal/logging"
	"feedsync/internal/realtime"
)

// EnsureSessionReady reports whether channelName may be joined. Public
// channels pass without I/O. Private channels need a session with a token
// that has not expired. Lookup errors are logged and read as not ready.
func EnsureSessionReady(ctx context.Context, client realtime.Client, channelName string, requiresAuth bool, clk clock.Clock, logger *logging.Logger) bool {
	if !requiresAuth {
		return true
	}
	if client == nil {
		return false
	}
	if clk == nil {
		clk = clock.Real()
	}
	session, err := lookupSession(ctx, client)
	if err != nil {
		if ctx.Err() == nil && logger != nil {
			logger.Warn("session check failed",
				logging.Field("channel", channelName),
				logging.Field("error", err))
		}
		return false
	}
	if !session.Valid(clk.Now()) {
		if logger != nil {
			logger.Debug("session not ready", logging.Field("channel", channelName))
		}
		return false
	}
	return true
}

// lookupSession contains panics from the auth provider.
func lookupSession(ctx context.Context, client realtime.Client) (session *realtime.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			session, err = nil, fmt.Errorf("session lookup panicked: %v", r)
		}
	}()
	auth := client.Auth()
	if auth == nil {
		return nil, nil
	}
	return auth.GetSession(ctx)
}
