package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matchbook/market-engine/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Market.InitialBalance != 1000 {
		t.Errorf("expected default initial balance 1000, got %d", cfg.Market.InitialBalance)
	}
	if cfg.Market.ProtocolFeeBps != 250 {
		t.Errorf("expected default fee 250 bps, got %d", cfg.Market.ProtocolFeeBps)
	}
	if cfg.Oracle.Timeout.Duration != 2*time.Minute {
		t.Errorf("expected default oracle timeout 2m, got %s", cfg.Oracle.Timeout.Duration)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
log_level = "debug"

[server]
port = 9000

[market]
initial_balance = 5000
protocol_fee_bps = 100

[oracle]
endpoint = "https://oracle.example.com"
timeout = "90s"

[limits]
max_stake_per_market = 500
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Market.InitialBalance != 5000 {
		t.Errorf("expected initial balance 5000, got %d", cfg.Market.InitialBalance)
	}
	if cfg.Oracle.Timeout.Duration != 90*time.Second {
		t.Errorf("expected oracle timeout 90s, got %s", cfg.Oracle.Timeout.Duration)
	}
	if cfg.Limits.MaxStakePerMarket != 500 {
		t.Errorf("expected per-market limit 500, got %d", cfg.Limits.MaxStakePerMarket)
	}
	// Untouched sections keep their defaults.
	if cfg.Redis.TTL.Duration != 30*time.Second {
		t.Errorf("expected default redis ttl, got %s", cfg.Redis.TTL.Duration)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MARKET_SERVER_PORT", "7001")
	t.Setenv("MARKET_INITIAL_BALANCE", "250")
	t.Setenv("MARKET_ORACLE_ENDPOINT", "https://oracle.internal:9443")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 7001 {
		t.Errorf("env port override not applied, got %d", cfg.Server.Port)
	}
	if cfg.Market.InitialBalance != 250 {
		t.Errorf("env balance override not applied, got %d", cfg.Market.InitialBalance)
	}
	if cfg.Oracle.Endpoint != "https://oracle.internal:9443" {
		t.Errorf("env endpoint override not applied, got %s", cfg.Oracle.Endpoint)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad port", func(c *config.Config) { c.Server.Port = 0 }},
		{"negative fee", func(c *config.Config) { c.Market.ProtocolFeeBps = -1 }},
		{"fee over 100%", func(c *config.Config) { c.Market.ProtocolFeeBps = 10001 }},
		{"zero balance", func(c *config.Config) { c.Market.InitialBalance = 0 }},
		{"bad log level", func(c *config.Config) { c.LogLevel = "verbose" }},
		{"negative limit", func(c *config.Config) { c.Limits.MaxStakePerMarket = -5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Defaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
