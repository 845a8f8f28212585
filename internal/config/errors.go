package config

import "errors"

var (
	// ErrInvalidConfig reports a setting outside its allowed values.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig reports an unreadable file or environment layer.
	ErrLoadConfig = errors.New("load config failed")
)
