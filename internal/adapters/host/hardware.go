package host

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/okian/devinfo/internal/domain/facts"
)

// geolocation reports a configured position. Hosts have no positioning
// hardware, so the operator either grants a fixed fix or denies.
type geolocation GeoConfig

// CurrentPosition returns the configured coordinates.
func (g geolocation) CurrentPosition(ctx context.Context) (facts.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return facts.Coordinates{}, err
	}
	if !g.Allowed {
		return facts.Coordinates{}, fmt.Errorf("geolocation: %w", facts.ErrPermissionDenied)
	}
	return facts.Coordinates{Latitude: g.Latitude, Longitude: g.Longitude}, nil
}

type hardware struct{}

// DeviceMemory returns installed memory in binary gigabytes (GiB), rounded to
// a tenth, matching the unit of navigator.deviceMemory.
func (hardware) DeviceMemory(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	total, err := totalMemory()
	if err != nil {
		return 0, err
	}
	return math.Round(float64(total)/(1<<30)*10) / 10, nil
}

// LogicalCores returns the number of usable CPUs.
func (hardware) LogicalCores(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return runtime.NumCPU(), nil
}
