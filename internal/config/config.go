// Package config defines the top-level configuration for the market engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MARKET_* environment
// variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Oracle   OracleConfig   `toml:"oracle"`
	Market   MarketConfig   `toml:"market"`
	Limits   LimitsConfig   `toml:"limits"`
	Fixtures FixturesConfig `toml:"fixtures"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL connection parameters. An empty URL means
// the in-memory store is used.
type DatabaseConfig struct {
	URL          string `toml:"url"`
	PoolMaxConns int    `toml:"pool_max_conns"`
}

// RedisConfig holds Redis cache parameters. An empty URL disables caching.
type RedisConfig struct {
	URL string   `toml:"url"`
	TTL duration `toml:"ttl"`
}

// OracleConfig holds the consensus-oracle gateway endpoint and credentials.
// An empty endpoint disables odds generation, resolution, and disputes.
type OracleConfig struct {
	Endpoint string   `toml:"endpoint"`
	APIKey   string   `toml:"api_key"`
	Timeout  duration `toml:"timeout"`
}

// MarketConfig holds the engine's economic parameters.
type MarketConfig struct {
	InitialBalance int64  `toml:"initial_balance"`
	ProtocolFeeBps int64  `toml:"protocol_fee_bps"`
	MinOdds        string `toml:"min_odds"`
	MaxOdds        string `toml:"max_odds"`
}

// LimitsConfig holds optional open-stake exposure limits. Zero disables the
// corresponding check.
type LimitsConfig struct {
	MaxStakePerMarket int64 `toml:"max_stake_per_market"`
	MaxStakePerLeague int64 `toml:"max_stake_per_league"`
}

// FixturesConfig points at the static fixture catalog. An empty path means
// no catalog is served.
type FixturesConfig struct {
	CatalogPath string `toml:"catalog_path"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "30s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "30s" or "2m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			PoolMaxConns: 10,
		},
		Redis: RedisConfig{
			TTL: duration{30 * time.Second},
		},
		Oracle: OracleConfig{
			Timeout: duration{2 * time.Minute},
		},
		Market: MarketConfig{
			InitialBalance: 1000,
			ProtocolFeeBps: 250,
			MinOdds:        "1.50",
			MaxOdds:        "5.00",
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Redis.TTL.Duration < 0 {
		errs = append(errs, "redis: ttl must not be negative")
	}
	if c.Oracle.Timeout.Duration <= 0 {
		errs = append(errs, "oracle: timeout must be positive")
	}
	if c.Market.InitialBalance <= 0 {
		errs = append(errs, "market: initial_balance must be > 0")
	}
	if c.Market.ProtocolFeeBps < 0 || c.Market.ProtocolFeeBps > 10000 {
		errs = append(errs, fmt.Sprintf("market: protocol_fee_bps must be 0-10000, got %d", c.Market.ProtocolFeeBps))
	}
	if c.Limits.MaxStakePerMarket < 0 {
		errs = append(errs, "limits: max_stake_per_market must be >= 0")
	}
	if c.Limits.MaxStakePerLeague < 0 {
		errs = append(errs, "limits: max_stake_per_league must be >= 0")
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
