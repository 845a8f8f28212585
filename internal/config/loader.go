package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override; EnvConfigPath names the YAML file.
const (
	EnvPrefix     = "DEVINFO_"
	EnvConfigPath = "DEVINFO_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if DEVINFO_CONFIG is set
//  3. env (prefix DEVINFO_)
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, os.Getenv(EnvConfigPath))
}

// LoadFrom is Load with an explicit file path; an empty path skips the file layer.
func LoadFrom(ctx context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// DEVINFO_LOOKUP_TIMEOUT_MS -> lookup_timeout_ms. Keys stay flat so the
	// underscores match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	k.Delete("config")

	cfg := *New(ctx)
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return bad("log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return bad("log_format %q", c.LogFormat)
	}
	switch {
	case c.Addr == "":
		return bad("addr must not be empty")
	case c.IPAddressURL == "":
		return bad("ip_address_url must not be empty")
	case c.IPLocationURL == "":
		return bad("ip_location_url must not be empty")
	case c.LookupTimeoutMS <= 0:
		return bad("lookup_timeout_ms must be positive")
	case c.CollectTimeoutMS <= 0:
		return bad("collect_timeout_ms must be positive")
	case c.BatteryPollMS <= 0:
		return bad("battery_poll_ms must be positive")
	case c.GeolocationLatitude < -90 || c.GeolocationLatitude > 90:
		return bad("geolocation_latitude %v out of range", c.GeolocationLatitude)
	case c.GeolocationLongitude < -180 || c.GeolocationLongitude > 180:
		return bad("geolocation_longitude %v out of range", c.GeolocationLongitude)
	}
	switch c.AddressSource {
	case AddressUpstream, AddressRequest:
	default:
		return bad("address_source %q", c.AddressSource)
	}
	switch c.PreferenceStore {
	case StoreMemory:
	case StoreSQLite:
		if c.PreferenceDB == "" {
			return bad("preference_db must be set for the sqlite store")
		}
	default:
		return bad("preference_store %q", c.PreferenceStore)
	}
	return nil
}
