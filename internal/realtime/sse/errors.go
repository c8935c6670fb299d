package sse

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSessionRefreshDue ends a stream when the session token is about to
	// expire; the channel reports it as a timeout.
	ErrSessionRefreshDue = errors.New("realtime session refresh due")
	ErrMissingClientID   = errors.New("missing realtime client id")
)

type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "http request failed"
	}
	if e.Status != "" {
		return e.Status
	}
	return fmt.Sprintf("http status %d", e.StatusCode)
}

func IsUnauthorized(err error) bool {
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
}
