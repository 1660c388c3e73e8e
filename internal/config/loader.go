package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKET_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment overrides. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Server.Port, "MARKET_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // compatibility alias
	setStringSlice(&cfg.Server.CORSOrigins, "MARKET_SERVER_CORS_ORIGINS")

	setStr(&cfg.Database.URL, "MARKET_DATABASE_URL")
	setStr(&cfg.Database.URL, "DATABASE_URL") // compatibility alias
	setInt(&cfg.Database.PoolMaxConns, "MARKET_DATABASE_POOL_MAX_CONNS")

	setStr(&cfg.Redis.URL, "MARKET_REDIS_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL") // compatibility alias
	setDuration(&cfg.Redis.TTL, "MARKET_REDIS_TTL")

	setStr(&cfg.Oracle.Endpoint, "MARKET_ORACLE_ENDPOINT")
	setStr(&cfg.Oracle.APIKey, "MARKET_ORACLE_API_KEY")
	setDuration(&cfg.Oracle.Timeout, "MARKET_ORACLE_TIMEOUT")

	setInt64(&cfg.Market.InitialBalance, "MARKET_INITIAL_BALANCE")
	setInt64(&cfg.Market.ProtocolFeeBps, "MARKET_PROTOCOL_FEE_BPS")
	setStr(&cfg.Market.MinOdds, "MARKET_MIN_ODDS")
	setStr(&cfg.Market.MaxOdds, "MARKET_MAX_ODDS")

	setInt64(&cfg.Limits.MaxStakePerMarket, "MARKET_LIMITS_MAX_STAKE_PER_MARKET")
	setInt64(&cfg.Limits.MaxStakePerLeague, "MARKET_LIMITS_MAX_STAKE_PER_LEAGUE")

	setStr(&cfg.Fixtures.CatalogPath, "MARKET_FIXTURES_CATALOG_PATH")

	setStr(&cfg.LogLevel, "MARKET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
