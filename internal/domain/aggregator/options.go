package aggregator

import "github.com/okian/devinfo/pkg/logger"

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for source failures.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithSessionID tags log lines with the owning session.
func WithSessionID(id string) Option {
	return func(a *Aggregator) {
		a.sessionID = id
	}
}
