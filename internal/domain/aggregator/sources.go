package aggregator

import (
	"context"

	"github.com/okian/devinfo/internal/domain/facts"
)

// Environment holds the synchronous readings available the moment a session
// starts. They never fail.
type Environment struct {
	UserAgent  string
	Viewport   facts.Viewport
	PixelRatio float64
	TimeZone   string
	Locale     string
	ColorDepth int
}

// Unsubscribe releases a live subscription. It must be safe to call more than once.
type Unsubscribe func()

// BatterySource reads the battery once.
type BatterySource interface {
	Battery(ctx context.Context) (facts.Battery, error)
}

// BatteryWatcher is implemented by battery sources that report charge changes.
type BatteryWatcher interface {
	WatchBattery(fn func(facts.Battery)) (Unsubscribe, error)
}

// GeolocationSource asks for the current position. Implementations return an
// error wrapping facts.ErrPermissionDenied when the user declines.
type GeolocationSource interface {
	CurrentPosition(ctx context.Context) (facts.Coordinates, error)
}

// ConnectionSource reads network link information once.
type ConnectionSource interface {
	Connection(ctx context.Context) (facts.Connection, error)
}

// OrientationSource reads the screen orientation once.
type OrientationSource interface {
	Orientation(ctx context.Context) (string, error)
}

// OrientationWatcher is implemented by orientation sources that report rotation.
type OrientationWatcher interface {
	WatchOrientation(fn func(string)) (Unsubscribe, error)
}

// ViewportWatcher reports viewport resizes.
type ViewportWatcher interface {
	WatchViewport(fn func(facts.Viewport)) (Unsubscribe, error)
}

// HardwareSource reads memory and core estimates. Either method may return
// facts.ErrCapabilityAbsent.
type HardwareSource interface {
	DeviceMemory(ctx context.Context) (float64, error)
	LogicalCores(ctx context.Context) (int, error)
}

// AddressResolver finds the public network address.
type AddressResolver interface {
	ResolveAddress(ctx context.Context) (string, error)
}

// AddressLocator geolocates a network address.
type AddressLocator interface {
	Locate(ctx context.Context, address string) (facts.Location, error)
}

// Capabilities are the optional asynchronous sources. A nil member means the
// capability is absent and its fields are unavailable from the first snapshot.
type Capabilities struct {
	Battery     BatterySource
	Geolocation GeolocationSource
	Connection  ConnectionSource
	Orientation OrientationSource
	Viewport    ViewportWatcher
	Hardware    HardwareSource
	Address     AddressResolver
	Location    AddressLocator
}
