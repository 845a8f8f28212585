package aggregator

import "errors"

// Sentinel kinds for aggregator lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("aggregator already started")
	ErrStopped        = errors.New("aggregator stopped")
	ErrNilCallback    = errors.New("aggregator: nil update callback")
)
