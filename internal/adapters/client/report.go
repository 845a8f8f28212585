// Package client turns a device report posted by a browser into the
// environment and capabilities the aggregator collects from.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/devinfo/internal/domain/aggregator"
	"github.com/okian/devinfo/internal/domain/facts"
)

const maxReportBytes = 64 << 10

// Report is what the page script gathers. A nil section means the browser
// does not expose that API.
type Report struct {
	UserAgent    string             `json:"user_agent,omitempty"`
	Viewport     facts.Viewport     `json:"viewport"`
	PixelRatio   float64            `json:"pixel_ratio,omitempty"`
	TimeZone     string             `json:"time_zone,omitempty"`
	Locale       string             `json:"locale,omitempty"`
	ColorDepth   int                `json:"color_depth,omitempty"`
	Battery      *BatteryReport     `json:"battery,omitempty"`
	Geolocation  *GeolocationReport `json:"geolocation,omitempty"`
	Connection   *facts.Connection  `json:"connection,omitempty"`
	Orientation  string             `json:"orientation,omitempty"`
	DeviceMemory *float64           `json:"device_memory,omitempty"`
	CPUCores     *int               `json:"cpu_cores,omitempty"`
}

// BatteryReport mirrors the battery manager's level (0..1) and charging flag.
type BatteryReport struct {
	Level    float64 `json:"level"`
	Charging bool    `json:"charging"`
}

// GeolocationReport is the outcome of the position request.
type GeolocationReport struct {
	Denied    bool    `json:"denied,omitempty"`
	Error     string  `json:"error,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Decode reads a JSON report from r. An empty body is an empty report.
func Decode(r io.Reader) (Report, error) {
	var rep Report
	err := json.NewDecoder(io.LimitReader(r, maxReportBytes)).Decode(&rep)
	if err != nil && !errors.Is(err, io.EOF) {
		return Report{}, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	if rep.Battery != nil && (rep.Battery.Level < 0 || rep.Battery.Level > 1) {
		return Report{}, fmt.Errorf("%w: battery level %v outside 0..1", ErrInvalidReport, rep.Battery.Level)
	}
	return rep, nil
}

// Environment returns the synchronous readings, falling back to request
// headers for the agent and locale.
func (r Report) Environment(req *http.Request) aggregator.Environment {
	e := aggregator.Environment{
		UserAgent:  r.UserAgent,
		Viewport:   r.Viewport,
		PixelRatio: r.PixelRatio,
		TimeZone:   r.TimeZone,
		Locale:     r.Locale,
		ColorDepth: r.ColorDepth,
	}
	if req != nil {
		if e.UserAgent == "" {
			e.UserAgent = req.UserAgent()
		}
		if e.Locale == "" {
			e.Locale = PreferredLanguage(req.Header.Get("Accept-Language"))
		}
	}
	return e
}

// Capabilities returns a source for every section present in the report.
// Address and location are left to the caller.
func (r Report) Capabilities() aggregator.Capabilities {
	var caps aggregator.Capabilities
	if r.Battery != nil {
		caps.Battery = batterySource(*r.Battery)
	}
	if r.Geolocation != nil {
		caps.Geolocation = geolocationSource(*r.Geolocation)
	}
	if r.Connection != nil {
		caps.Connection = connectionSource(*r.Connection)
	}
	if r.Orientation != "" {
		caps.Orientation = orientationSource(r.Orientation)
	}
	if r.DeviceMemory != nil || r.CPUCores != nil {
		caps.Hardware = hardwareSource{memory: r.DeviceMemory, cores: r.CPUCores}
	}
	return caps
}

// PreferredLanguage returns the first tag of an Accept-Language header.
func PreferredLanguage(header string) string {
	first := strings.TrimSpace(strings.Split(header, ",")[0])
	if i := strings.IndexByte(first, ';'); i >= 0 {
		first = strings.TrimSpace(first[:i])
	}
	if first == "*" {
		return ""
	}
	return first
}

type batterySource BatteryReport

func (b batterySource) Battery(ctx context.Context) (facts.Battery, error) {
	if err := ctx.Err(); err != nil {
		return facts.Battery{}, err
	}
	return facts.BatteryFromLevel(b.Level, b.Charging), nil
}

type geolocationSource GeolocationReport

func (g geolocationSource) CurrentPosition(ctx context.Context) (facts.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return facts.Coordinates{}, err
	}
	if g.Denied {
		return facts.Coordinates{}, fmt.Errorf("geolocation: %w", facts.ErrPermissionDenied)
	}
	if g.Error != "" {
		return facts.Coordinates{}, fmt.Errorf("geolocation: %w: %s", ErrPositionUnavailable, g.Error)
	}
	return facts.Coordinates{Latitude: g.Latitude, Longitude: g.Longitude}, nil
}

type connectionSource facts.Connection

func (c connectionSource) Connection(ctx context.Context) (facts.Connection, error) {
	if err := ctx.Err(); err != nil {
		return facts.Connection{}, err
	}
	if c.EffectiveType == "" {
		return facts.Connection{}, fmt.Errorf("connection: %w", facts.ErrCapabilityAbsent)
	}
	return facts.Connection(c), nil
}

type orientationSource string

func (o orientationSource) Orientation(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(o), nil
}

type hardwareSource struct {
	memory *float64
	cores  *int
}

func (h hardwareSource) DeviceMemory(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if h.memory == nil || *h.memory <= 0 {
		return 0, fmt.Errorf("device memory: %w", facts.ErrCapabilityAbsent)
	}
	return *h.memory, nil
}

func (h hardwareSource) LogicalCores(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if h.cores == nil || *h.cores <= 0 {
		return 0, fmt.Errorf("cpu cores: %w", facts.ErrCapabilityAbsent)
	}
	return *h.cores, nil
}
