// Package config defines devinfo configuration and its loading layers.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and DEVINFO_ environment variables on top.
// - Errors are wrapped with ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"context"
	"time"
)

// Address sources.
const (
	AddressUpstream = "upstream"
	AddressRequest  = "request"
)

// Preference stores.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// IPAddressURL returns the caller's public address as {"ip": "..."}.
	IPAddressURL string `koanf:"ip_address_url"`

	// IPLocationURL is the base of {base}/{ip}/json location lookups.
	IPLocationURL string `koanf:"ip_location_url"`

	// LookupTimeoutMS bounds each outbound lookup request.
	LookupTimeoutMS int `koanf:"lookup_timeout_ms"`

	// CollectTimeoutMS bounds how long a one-shot collection waits to settle.
	CollectTimeoutMS int `koanf:"collect_timeout_ms"`

	// AddressSource picks how served sessions learn the address: upstream asks
	// the address service, request uses the inbound connection.
	AddressSource string `koanf:"address_source"`

	// PreferenceStore selects memory or sqlite persistence.
	PreferenceStore string `koanf:"preference_store"`

	// PreferenceDB is the SQLite file for the sqlite store.
	PreferenceDB string `koanf:"preference_db"`

	// BatteryPollMS is how often host battery readings are refreshed.
	BatteryPollMS int `koanf:"battery_poll_ms"`

	// SysfsRoot is where the host sysfs tree is mounted.
	SysfsRoot string `koanf:"sysfs_root"`

	// MetricsEnabled turns Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// Geolocation for host sessions. Without permission the field reports a
	// denial notice.
	GeolocationAllowed   bool    `koanf:"geolocation_allowed"`
	GeolocationLatitude  float64 `koanf:"geolocation_latitude"`
	GeolocationLongitude float64 `koanf:"geolocation_longitude"`
}

// New creates a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		IPAddressURL:     "https://api.ipify.org?format=json",
		IPLocationURL:    "https://ipinfo.io",
		LookupTimeoutMS:  5_000,
		CollectTimeoutMS: 10_000,
		AddressSource:    AddressUpstream,
		PreferenceStore:  StoreMemory,
		PreferenceDB:     "devinfo.db",
		BatteryPollMS:    30_000,
		SysfsRoot:        "/sys",
		MetricsEnabled:   true,
	}
}

// LookupTimeout returns LookupTimeoutMS as a duration.
func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutMS) * time.Millisecond
}

// CollectTimeout returns CollectTimeoutMS as a duration.
func (c *Config) CollectTimeout() time.Duration {
	return time.Duration(c.CollectTimeoutMS) * time.Millisecond
}

// BatteryPoll returns BatteryPollMS as a duration.
func (c *Config) BatteryPoll() time.Duration {
	return time.Duration(c.BatteryPollMS) * time.Millisecond
}
