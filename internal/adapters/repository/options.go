package repository

import "time"

type storeConfig struct {
	now func() time.Time
}

func newStoreConfig(opts []Option) storeConfig {
	cfg := storeConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option applies a configuration option to a store.
type Option func(*storeConfig)

// WithClock sets the clock used to stamp UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}
