package app

import "errors"

var (
	ErrFeedsConfig    = errors.New("feedsync feeds configuration invalid")
	ErrFeedSetup      = errors.New("feedsync feed manager setup failed")
	ErrNotRunning     = errors.New("feedsync is not running")
	ErrMarkReadFailed = errors.New("feedsync mark read failed")
)
