package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrUnknownStore     = errors.New("unknown preference store")
	ErrStoreUnavailable = errors.New("preference store unavailable")
)
