package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"

	"barbuddy/internal/reservation"
)

// EngineConfig configures a customer-side coordination engine
type EngineConfig struct {
	ServiceURL     string   `toml:"service_url"`
	CustomerID     string   `toml:"customer_id"`
	BarID          string   `toml:"bar_id"`
	MaxTables      int      `toml:"max_tables"`
	RequestTimeout Duration `toml:"request_timeout"`
	ReleaseTimeout Duration `toml:"release_timeout"`
	RedisAddr      string   `toml:"redis_addr"`
	RedisPassword  string   `toml:"redis_password"`
	RedisDB        int      `toml:"redis_db"`
}

// Duration decodes TOML strings such as "5s" into time.Duration
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// DefaultEngineConfig returns the engine defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ServiceURL:     "http://localhost:8080/api/v1",
		MaxTables:      reservation.MaxTables,
		RequestTimeout: Duration{10 * time.Second},
		ReleaseTimeout: Duration{3 * time.Second},
		RedisAddr:      "localhost:6379",
	}
}

// LoadEngine decodes the TOML file at path over the defaults and then applies
// ENGINE_* environment overrides. A missing file is not an error.
func LoadEngine(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return EngineConfig{}, fmt.Errorf("failed to decode engine config %s: %w", path, err)
		}
	}

	cfg.ServiceURL = getEnv("ENGINE_SERVICE_URL", cfg.ServiceURL)
	cfg.CustomerID = getEnv("ENGINE_CUSTOMER_ID", cfg.CustomerID)
	cfg.BarID = getEnv("ENGINE_BAR_ID", cfg.BarID)
	cfg.RedisAddr = getEnv("ENGINE_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("ENGINE_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getIntEnv("ENGINE_REDIS_DB", cfg.RedisDB)
	cfg.RequestTimeout.Duration = getDurationEnv("ENGINE_REQUEST_TIMEOUT", cfg.RequestTimeout.Duration)
	cfg.ReleaseTimeout.Duration = getDurationEnv("ENGINE_RELEASE_TIMEOUT", cfg.ReleaseTimeout.Duration)

	if cfg.MaxTables <= 0 || cfg.MaxTables > reservation.MaxTables {
		cfg.MaxTables = reservation.MaxTables
	}

	return cfg, nil
}
