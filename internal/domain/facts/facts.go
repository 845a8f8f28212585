// Package facts contains the device fact view model shared by the aggregator,
// the HTTP layer and the CLI renderer.
package facts

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Field names one fact in the aggregate.
type Field string

// Known fields.
const (
	FieldAddress      Field = "address"
	FieldLocation     Field = "location"
	FieldUserAgent    Field = "user_agent"
	FieldBrowser      Field = "browser"
	FieldOS           Field = "os"
	FieldDeviceClass  Field = "device_class"
	FieldViewport     Field = "viewport"
	FieldPixelRatio   Field = "pixel_ratio"
	FieldTimeZone     Field = "time_zone"
	FieldBattery      Field = "battery"
	FieldConnection   Field = "connection"
	FieldGeolocation  Field = "geolocation"
	FieldDeviceMemory Field = "device_memory"
	FieldCPUCores     Field = "cpu_cores"
	FieldOrientation  Field = "orientation"
	FieldColorDepth   Field = "color_depth"
	FieldLocale       Field = "locale"
)

// AllFields lists every field in display order.
var AllFields = []Field{
	FieldDeviceClass,
	FieldAddress,
	FieldLocation,
	FieldUserAgent,
	FieldBrowser,
	FieldOS,
	FieldViewport,
	FieldBattery,
	FieldConnection,
	FieldGeolocation,
	FieldPixelRatio,
	FieldColorDepth,
	FieldLocale,
	FieldDeviceMemory,
	FieldCPUCores,
	FieldTimeZone,
	FieldOrientation,
}

// ExtendedFields are shown only in the "more" view.
var ExtendedFields = map[Field]bool{
	FieldDeviceMemory: true,
	FieldCPUCores:     true,
	FieldTimeZone:     true,
	FieldOrientation:  true,
	FieldPixelRatio:   true,
	FieldColorDepth:   true,
	FieldLocale:       true,
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	for _, known := range AllFields {
		if known == f {
			return true
		}
	}
	return false
}

// State is where a fact is in its lifecycle.
type State int

// Fact states. A fact only ever moves from Unresolved to one of the others.
const (
	Unresolved State = iota
	Resolved
	Unavailable
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unresolved":
		*s = Unresolved
	case "resolved":
		*s = Resolved
	case "unavailable":
		*s = Unavailable
	default:
		return fmt.Errorf("unknown fact state %q", string(b))
	}
	return nil
}

// Fact is one value in the aggregate together with its state.
type Fact struct {
	State State `json:"state"`
	Value any   `json:"value,omitempty"`
}

// Resolve returns a resolved fact holding v.
func Resolve(v any) Fact { return Fact{State: Resolved, Value: v} }

// Missing returns an unavailable fact.
func Missing() Fact { return Fact{State: Unavailable} }

// Viewport is the visible area in CSS pixels (or terminal cells on a host).
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (v Viewport) String() string { return fmt.Sprintf("%d x %d", v.Width, v.Height) }

// Battery is the charge state of the device battery.
type Battery struct {
	Percentage int  `json:"percentage"`
	Charging   bool `json:"charging"`
}

func (b Battery) String() string {
	state := "Not Charging"
	if b.Charging {
		state = "Charging"
	}
	return fmt.Sprintf("%d%% - %s", b.Percentage, state)
}

// BatteryFromLevel converts a 0..1 level to a Battery with a rounded percentage.
func BatteryFromLevel(level float64, charging bool) Battery {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	return Battery{Percentage: int(level*100 + 0.5), Charging: charging}
}

// Connection describes the network link.
type Connection struct {
	EffectiveType string  `json:"effective_type"`
	DownlinkMbps  float64 `json:"downlink_mbps,omitempty"`
	RTTMillis     int     `json:"rtt_ms,omitempty"`
}

func (c Connection) String() string { return c.EffectiveType }

// Coordinates is a geolocation fix.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("Lat: %v, Lon: %v", c.Latitude, c.Longitude)
}

// Location is the place an address geolocates to.
type Location struct {
	City    string `json:"city"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country"`
}

// String formats the location as "{city}, {country}".
func (l Location) String() string { return fmt.Sprintf("%s, %s", l.City, l.Country) }

// Facts maps each field to its current fact. Values handed to consumers are
// snapshots and must not be mutated.
type Facts map[Field]Fact

// NewFacts returns an aggregate with every field unresolved.
func NewFacts() Facts {
	f := make(Facts, len(AllFields))
	for _, field := range AllFields {
		f[field] = Fact{State: Unresolved}
	}
	return f
}

// Clone returns an independent copy.
func (f Facts) Clone() Facts {
	out := make(Facts, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Get returns the fact for field, Unresolved when absent.
func (f Facts) Get(field Field) Fact {
	if v, ok := f[field]; ok {
		return v
	}
	return Fact{State: Unresolved}
}

// Pending lists fields still unresolved, sorted by name.
func (f Facts) Pending() []Field {
	var out []Field
	for k, v := range f {
		if v.State == Unresolved {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Settled reports whether no field is unresolved.
func (f Facts) Settled() bool {
	for _, v := range f {
		if v.State == Unresolved {
			return false
		}
	}
	return true
}

// MarshalJSON emits fields in a stable order.
func (f Facts) MarshalJSON() ([]byte, error) {
	m := make(map[string]Fact, len(f))
	for k, v := range f {
		m[string(k)] = v
	}
	return json.Marshal(m)
}
