// Package host reads device facts from the machine devinfo runs on: the
// controlling terminal stands in for the viewport, sysfs for battery and
// network, and the kernel for memory and cores.
package host

import (
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/okian/devinfo/internal/domain/aggregator"
	"github.com/okian/devinfo/internal/domain/facts"
	"github.com/okian/devinfo/pkg/logger"
)

const (
	defaultPollInterval = 30 * time.Second
	fallbackColumns     = 80
	fallbackRows        = 24
)

// GeoConfig is the fixed position and permission the geolocation source reports.
type GeoConfig struct {
	Allowed   bool
	Latitude  float64
	Longitude float64
}

// Host reads facts from the local machine.
type Host struct {
	sysfs        fs.FS
	tty          *os.File
	getenv       func(string) string
	pollInterval time.Duration
	geo          *GeoConfig
	version      string
	logger       logger.Logger
}

// New returns a Host with defaults overridden by opts.
func New(opts ...Option) *Host {
	h := &Host{
		sysfs:        os.DirFS("/sys"),
		tty:          os.Stdout,
		getenv:       os.Getenv,
		pollInterval: defaultPollInterval,
		version:      "dev",
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Named("host")
	}
	return h
}

// Environment returns the synchronous readings.
func (h *Host) Environment() aggregator.Environment {
	return aggregator.Environment{
		UserAgent:  UserAgent(runtime.GOOS, runtime.GOARCH, h.version),
		Viewport:   h.viewport(),
		PixelRatio: 1,
		TimeZone:   h.timeZone(),
		Locale:     Locale(h.getenv),
		ColorDepth: h.colorDepth(),
	}
}

// Capabilities returns the asynchronous sources present on this machine.
// Sources whose sysfs tree is missing are left nil.
func (h *Host) Capabilities() aggregator.Capabilities {
	var caps aggregator.Capabilities
	if b := newBattery(h.sysfs, h.pollInterval, h.logger); b.present() {
		caps.Battery = b
	}
	if c := newNetwork(h.sysfs); c.present() {
		caps.Connection = c
	}
	if h.geo != nil {
		caps.Geolocation = geolocation(*h.geo)
	}
	if term := h.terminal(); term != nil {
		caps.Viewport = term
		caps.Orientation = term
	}
	caps.Hardware = hardware{}
	return caps
}

func (h *Host) terminal() *terminal {
	if h.tty == nil || !isatty.IsTerminal(h.tty.Fd()) {
		return nil
	}
	return &terminal{fd: int(h.tty.Fd())}
}

func (h *Host) viewport() facts.Viewport {
	if h.tty != nil {
		if w, rows, err := terminalSize(int(h.tty.Fd())); err == nil && w > 0 && rows > 0 {
			return facts.Viewport{Width: w, Height: rows}
		}
	}
	v := facts.Viewport{Width: fallbackColumns, Height: fallbackRows}
	var n int
	if _, err := fmt.Sscan(h.getenv("COLUMNS"), &n); err == nil && n > 0 {
		v.Width = n
	}
	if _, err := fmt.Sscan(h.getenv("LINES"), &n); err == nil && n > 0 {
		v.Height = n
	}
	return v
}

func (h *Host) timeZone() string {
	if tz := strings.TrimPrefix(h.getenv("TZ"), ":"); tz != "" {
		return tz
	}
	if target, err := os.Readlink("/etc/localtime"); err == nil {
		if i := strings.Index(target, "zoneinfo/"); i >= 0 {
			return target[i+len("zoneinfo/"):]
		}
	}
	name, _ := time.Now().Zone()
	return name
}

func (h *Host) colorDepth() int {
	tty := h.tty != nil && (isatty.IsTerminal(h.tty.Fd()) || isatty.IsCygwinTerminal(h.tty.Fd()))
	return ColorDepth(tty, h.getenv)
}

// UserAgent synthesizes a browser-shaped agent string for goos/goarch so the
// same identification table applies to hosts and browsers.
func UserAgent(goos, goarch, version string) string {
	var platform string
	switch goos {
	case "linux":
		arch := "x86_64"
		if goarch == "arm64" {
			arch = "aarch64"
		}
		platform = "X11; Linux " + arch
	case "darwin":
		platform = "Macintosh; Intel Mac OS X 10_15_7"
	case "windows":
		platform = "Windows NT 10.0; Win64; x64"
	case "android":
		platform = "Linux; Android 14"
	default:
		platform = goos + "; " + goarch
	}
	return fmt.Sprintf("Mozilla/5.0 (%s) devinfo/%s", platform, version)
}

// Locale derives a BCP 47 style tag from the POSIX locale variables.
func Locale(getenv func(string) string) string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := getenv(key)
		if v == "" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		if v == "C" || v == "POSIX" || v == "" {
			return ""
		}
		return strings.ReplaceAll(v, "_", "-")
	}
	return ""
}

// ColorDepth estimates the terminal color depth in bits.
func ColorDepth(tty bool, getenv func(string) string) int {
	if !tty {
		return 1
	}
	switch strings.ToLower(getenv("COLORTERM")) {
	case "truecolor", "24bit":
		return 24
	}
	term := getenv("TERM")
	switch {
	case strings.Contains(term, "256color"):
		return 8
	case term == "" || term == "dumb":
		return 1
	default:
		return 4
	}
}
