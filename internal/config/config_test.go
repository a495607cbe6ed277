package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Polymarket.SeriesSlug = "btc-updown-15m"
	cfg.Wallet.PrivateKey = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := validConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("monitor mode needs no wallet", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "monitor"
		cfg.Wallet.PrivateKey = ""
		assert.NoError(t, cfg.Validate())
	})

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unsupported mode", func(c *Config) { c.Mode = "backtest" }},
		{"trade mode without key", func(c *Config) { c.Wallet.PrivateKey = "" }},
		{"missing series slug", func(c *Config) { c.Polymarket.SeriesSlug = "" }},
		{"non-positive cycle", func(c *Config) { c.Strategy.CycleMinutes = 0 }},
		{"non-positive order size", func(c *Config) { c.Strategy.BaseOrderUSD = 0 }},
		{"decreasing cheap tiers", func(c *Config) { c.Strategy.CheapMid = 0.2 }},
		{"tier bounds inverted", func(c *Config) { c.Strategy.Tier1Min = 10 }},
		{"late hedge ceiling at 1", func(c *Config) { c.Strategy.LateHedgeCeiling = 1.0 }},
		{"size factor out of range", func(c *Config) { c.Strategy.AdverseStreakSizeFactor = 0 }},
		{"non-positive exposure", func(c *Config) { c.Risk.MaxOpenExposureUSD = 0 }},
		{"win rate above 1", func(c *Config) { c.Risk.MinWinRate = 1.5 }},
		{"limit price above 1", func(c *Config) { c.Execution.MaxLimitPrice = 1.01 }},
		{"unknown backend", func(c *Config) { c.Persistence.Backend = "sqlite" }},
		{"file backend without dir", func(c *Config) { c.Persistence.DataDir = "" }},
		{"postgres backend without dsn", func(c *Config) {
			c.Persistence.Backend = "postgres"
		}},
		{"s3 enabled without bucket", func(c *Config) { c.S3.Enabled = true }},
		{"server port out of range", func(c *Config) { c.Server.Port = 70000 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCheapThreshold(t *testing.T) {
	s := Defaults().Strategy

	assert.Equal(t, s.CheapEarly, s.CheapThreshold(2))
	assert.Equal(t, s.CheapMid, s.CheapThreshold(5))
	assert.Equal(t, s.CheapMid, s.CheapThreshold(9.9))
	assert.Equal(t, s.CheapLate, s.CheapThreshold(10))
	assert.Equal(t, s.CheapLate, s.CheapThreshold(14))
}

func TestDurationHelpers(t *testing.T) {
	s := Defaults().Strategy
	assert.Equal(t, 15*time.Minute, s.CycleDuration())
	assert.Equal(t, 45*time.Second, s.Cooldown())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
mode = "monitor"

[polymarket]
series_slug = "btc-updown-15m"
poll_interval = "5s"

[strategy]
base_order_usd = 20.0

[risk]
pause_duration = "45m"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "btc-updown-15m", cfg.Polymarket.SeriesSlug)
	assert.Equal(t, 5*time.Second, cfg.Polymarket.PollInterval.Duration)
	assert.Equal(t, 20.0, cfg.Strategy.BaseOrderUSD)
	assert.Equal(t, 45*time.Minute, cfg.Risk.PauseDuration.Duration)

	// Untouched fields keep their defaults.
	assert.Equal(t, "https://clob.polymarket.com", cfg.Polymarket.ClobHost)
	assert.Equal(t, 15, cfg.Strategy.CycleMinutes)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "trade"`), 0o644))

	t.Setenv("UPDOWN_MODE", "monitor")
	t.Setenv("UPDOWN_STRATEGY_BASE_ORDER_USD", "25.5")
	t.Setenv("UPDOWN_POLYMARKET_SERIES_SLUG", "eth-updown-15m")
	t.Setenv("UPDOWN_REDIS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, 25.5, cfg.Strategy.BaseOrderUSD)
	assert.Equal(t, "eth-updown-15m", cfg.Polymarket.SeriesSlug)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
