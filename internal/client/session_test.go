package client

import (
	"context"
	"net/http"
	"testing"
	"time"

	"feedsync/internal/clock"
)

func TestFetchRealtimeSession_UsesUserToken(t *testing.T) {
	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/api/realtime/session" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-token" {
			t.Fatalf("Authorization = %q", got)
		}
		return jsonResponse(r, http.StatusOK, `{"access_token":"rt-1","user_id":"u1","expires_at":1700003600}`), nil
	})}
	c := New(httpClient, "user-token", testEndpoints(t), testLogger())
	session, err := c.FetchRealtimeSession(context.Background())
	if err != nil {
		t.Fatalf("FetchRealtimeSession() error = %v", err)
	}
	if session.AccessToken != "rt-1" || session.UserID != "u1" || !session.ExpiresAt.Equal(time.Unix(1700003600, 0)) {
		t.Fatalf("session = %#v", session)
	}
}

func TestFetchRealtimeSession_MissingTokenFails(t *testing.T) {
	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusOK, `{}`), nil
	})}
	c := New(httpClient, "user-token", testEndpoints(t), testLogger())
	if _, err := c.FetchRealtimeSession(context.Background()); err == nil {
		t.Fatalf("FetchRealtimeSession() expected missing token error")
	}
}

func TestSessionAuth_CachesRefreshesAndRefetches(t *testing.T) {
	clk := clock.Fake(time.Unix(1700000000, 0))
	var paths []string
	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		paths = append(paths, r.URL.Path+" "+r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/realtime/session":
			return jsonResponse(r, http.StatusOK, `{"access_token":"rt-1","expires_at":1700000600}`), nil
		case "/api/realtime/session/refresh":
			return jsonResponse(r, http.StatusOK, `{"access_token":"rt-2","expires_at":1700001200}`), nil
		default:
			return jsonResponse(r, http.StatusNotFound, ""), nil
		}
	})}
	auth := NewSessionAuth(New(httpClient, "user-token", testEndpoints(t), testLogger()), clk)

	first, err := auth.GetSession(context.Background())
	if err != nil || first.AccessToken != "rt-1" {
		t.Fatalf("GetSession() = %#v, %v", first, err)
	}
	cached, _ := auth.GetSession(context.Background())
	if cached.AccessToken != "rt-1" || len(paths) != 1 {
		t.Fatalf("second GetSession() = %q after %d requests, want cached rt-1", cached.AccessToken, len(paths))
	}

	// Inside the refresh lead the session is extended with its own token.
	clk.Advance(580 * time.Second)
	refreshed, _ := auth.GetSession(context.Background())
	if refreshed.AccessToken != "rt-2" {
		t.Fatalf("refreshed token = %q, want rt-2", refreshed.AccessToken)
	}
	if paths[1] != "/api/realtime/session/refresh Bearer rt-1" {
		t.Fatalf("refresh request = %q", paths[1])
	}

	// Past expiry a new session is requested with the user token.
	clk.Advance(time.Hour)
	renewed, _ := auth.GetSession(context.Background())
	if renewed.AccessToken != "rt-1" || paths[2] != "/api/realtime/session Bearer user-token" {
		t.Fatalf("renewed = %q via %q", renewed.AccessToken, paths[2])
	}
}

func TestSessionAuth_UnauthorizedMeansSignedOut(t *testing.T) {
	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusUnauthorized, `{"message":"bad token"}`), nil
	})}
	auth := NewSessionAuth(New(httpClient, "user-token", testEndpoints(t), testLogger()), nil)
	session, err := auth.GetSession(context.Background())
	if err != nil || session != nil {
		t.Fatalf("GetSession() = %#v, %v; want nil, nil", session, err)
	}
}

func TestSessionAuth_TransportErrorIsReturned(t *testing.T) {
	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusBadGateway, ""), nil
	})}
	auth := NewSessionAuth(New(httpClient, "user-token", testEndpoints(t), testLogger()), nil)
	if _, err := auth.GetSession(context.Background()); err == nil {
		t.Fatalf("GetSession() error = nil, want 502")
	}
}
