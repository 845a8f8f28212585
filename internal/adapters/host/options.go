package host

import (
	"io/fs"
	"os"
	"time"

	"github.com/okian/devinfo/pkg/logger"
)

// Option applies a configuration option to the Host.
type Option func(*Host)

// WithSysFS replaces the sysfs tree, rooted where /sys would be.
func WithSysFS(fsys fs.FS) Option {
	return func(h *Host) {
		if fsys != nil {
			h.sysfs = fsys
		}
	}
}

// WithTerminal sets the file whose terminal supplies the viewport. A nil file
// disables terminal probing.
func WithTerminal(f *os.File) Option {
	return func(h *Host) { h.tty = f }
}

// WithGetenv replaces the environment lookup.
func WithGetenv(fn func(string) string) Option {
	return func(h *Host) {
		if fn != nil {
			h.getenv = fn
		}
	}
}

// WithPollInterval sets how often the battery watcher rereads sysfs.
func WithPollInterval(d time.Duration) Option {
	return func(h *Host) {
		if d > 0 {
			h.pollInterval = d
		}
	}
}

// WithGeolocation enables the geolocation source.
func WithGeolocation(cfg GeoConfig) Option {
	return func(h *Host) { h.geo = &cfg }
}

// WithVersion sets the version embedded in the synthesized user agent.
func WithVersion(v string) Option {
	return func(h *Host) {
		if v != "" {
			h.version = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Host) { h.logger = l }
}
