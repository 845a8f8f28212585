package repository

import "errors"

// Sentinel kinds for preference store errors.
var (
	ErrNotFound        = errors.New("preference not found")
	ErrInvalidClientID = errors.New("invalid client id")
	ErrClosed          = errors.New("preference store closed")
)
