// Package config defines the top-level configuration for the up/down bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by UPDOWN_* environment variables.
type Config struct {
	Wallet      WalletConfig      `toml:"wallet"`
	Polymarket  PolymarketConfig  `toml:"polymarket"`
	Binance     BinanceConfig     `toml:"binance"`
	Strategy    StrategyConfig    `toml:"strategy"`
	Risk        RiskConfig        `toml:"risk"`
	Execution   ExecutionConfig   `toml:"execution"`
	Persistence PersistenceConfig `toml:"persistence"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Server      ServerConfig      `toml:"server"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// WalletConfig holds the trading wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints, chain parameters, and the
// market series this bot trades (one paired Up/Down market at a time).
type PolymarketConfig struct {
	ClobHost     string   `toml:"clob_host"`
	GammaHost    string   `toml:"gamma_host"`
	ChainID      int      `toml:"chain_id"`
	SeriesSlug   string   `toml:"series_slug"` // e.g. "btc-updown-15m"
	PollInterval duration `toml:"poll_interval"`
}

// BinanceConfig holds the spot price feed parameters.
type BinanceConfig struct {
	WsHost string `toml:"ws_host"`
	Symbol string `toml:"symbol"` // e.g. "btcusdt"
}

// StrategyConfig holds the decision-engine gate parameters. All prices are
// dollars per share, all times are minutes into the 15-minute cycle unless
// noted otherwise.
type StrategyConfig struct {
	Enabled bool `toml:"enabled"`

	// CycleMinutes is the market cycle length; up/down markets roll every 15m.
	CycleMinutes int `toml:"cycle_minutes"`

	// BaseOrderUSD is the dollar size of one buy instruction.
	BaseOrderUSD float64 `toml:"base_order_usd"`

	// MinElapsedMin rejects evaluations before the quote has matured.
	MinElapsedMin float64 `toml:"min_elapsed_min"`

	// CooldownSec is the minimum spacing between buys in one window.
	CooldownSec int `toml:"cooldown_sec"`

	// MaxWindowSpendUSD caps total spend per window.
	MaxWindowSpendUSD float64 `toml:"max_window_spend_usd"`

	// MaxCombinedOpenPrice rejects opening when upAsk+downAsk exceeds it.
	MaxCombinedOpenPrice float64 `toml:"max_combined_open_price"`

	// Cheap-price tiers, relaxed as the window ages.
	CheapEarly     float64 `toml:"cheap_early"`      // below Tier1Min
	CheapMid       float64 `toml:"cheap_mid"`        // below Tier2Min
	CheapLate      float64 `toml:"cheap_late"`       // at or after Tier2Min
	Tier1Min       float64 `toml:"tier1_min"`        // first breakpoint, minutes
	Tier2Min       float64 `toml:"tier2_min"`        // second breakpoint, minutes
	NewPositionMax float64 `toml:"new_position_max"` // no new opens after this many minutes

	// HedgeCeiling rejects opening a cheap side whose opposite ask is above
	// it (the pair could never be hedged at a sane cost).
	HedgeCeiling float64 `toml:"hedge_ceiling"`

	// LateHedgeMin / LateHedgeCeiling allow a materially worse hedge price
	// late in the cycle instead of carrying an unhedged total loss.
	LateHedgeMin     float64 `toml:"late_hedge_min"`
	LateHedgeCeiling float64 `toml:"late_hedge_ceiling"`

	// OverreactionPct is the minimum |delta3m| (percent) required before
	// opening: the underlying must show a true excess move, not noise.
	OverreactionPct float64 `toml:"overreaction_pct"`

	// StreakBiasWins and StreakBiasCeiling block same-direction opens above
	// the ceiling after this many consecutive same-side wins.
	StreakBiasWins    int     `toml:"streak_bias_wins"`
	StreakBiasCeiling float64 `toml:"streak_bias_ceiling"`

	// AdverseStreakLosses / AdverseStreakSizeFactor shrink entries taken
	// against a recent losing streak.
	AdverseStreakLosses     int     `toml:"adverse_streak_losses"`
	AdverseStreakSizeFactor float64 `toml:"adverse_streak_size_factor"`
}

// CycleDuration returns the configured cycle length as a time.Duration.
func (s StrategyConfig) CycleDuration() time.Duration {
	return time.Duration(s.CycleMinutes) * time.Minute
}

// Cooldown returns the configured buy cooldown as a time.Duration.
func (s StrategyConfig) Cooldown() time.Duration {
	return time.Duration(s.CooldownSec) * time.Second
}

// CheapThreshold returns the time-scaled cheap-price threshold for the given
// elapsed minutes: low early, progressively relaxed across the three tiers.
func (s StrategyConfig) CheapThreshold(elapsedMin float64) float64 {
	switch {
	case elapsedMin < s.Tier1Min:
		return s.CheapEarly
	case elapsedMin < s.Tier2Min:
		return s.CheapMid
	default:
		return s.CheapLate
	}
}

// RiskConfig holds the risk-governor parameters.
type RiskConfig struct {
	// MaxOpenExposureUSD is the aggregate open-position cost ceiling.
	MaxOpenExposureUSD float64 `toml:"max_open_exposure_usd"`

	// PauseLossStreak consecutive losses trigger a pause of PauseDuration.
	PauseLossStreak int      `toml:"pause_loss_streak"`
	PauseDuration   duration `toml:"pause_duration"`

	// MinTotalPnLUSD stops trading when cumulative P&L falls below it.
	MinTotalPnLUSD float64 `toml:"min_total_pnl_usd"`

	// MinWinRate / MinResolvedTrades stop trading when the win rate is below
	// the floor after enough resolved trades.
	MinWinRate        float64 `toml:"min_win_rate"`
	MinResolvedTrades int     `toml:"min_resolved_trades"`

	// StopLossPct is the advisory mark-to-market loss threshold.
	StopLossPct float64 `toml:"stop_loss_pct"`

	// StaleAfter marks unresolved positions as stale losses this long past
	// their market end time.
	StaleAfter duration `toml:"stale_after"`
}

// ExecutionConfig holds order-pricing parameters for the execution adapter.
type ExecutionConfig struct {
	SlippageAllowance float64 `toml:"slippage_allowance"` // added to the quoted ask
	MaxLimitPrice     float64 `toml:"max_limit_price"`    // hard ceiling
	MinShares         float64 `toml:"min_shares"`
	TickInterval      duration `toml:"tick_interval"` // decision loop period
}

// PersistenceConfig selects the durable store backend and file locations.
type PersistenceConfig struct {
	// Backend is "file" or "postgres".
	Backend string `toml:"backend"`

	// DataDir holds state.json, trades.csv and events.jsonl for the file
	// backend.
	DataDir string `toml:"data_dir"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis connection parameters for the latest-value caches.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for journal
// archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sane defaults for every tunable.
func Defaults() Config {
	return Config{
		Mode:     "trade",
		LogLevel: "info",
		Polymarket: PolymarketConfig{
			ClobHost:     "https://clob.polymarket.com",
			GammaHost:    "https://gamma-api.polymarket.com",
			ChainID:      137,
			PollInterval: duration{3 * time.Second},
		},
		Binance: BinanceConfig{
			WsHost: "wss://stream.binance.com:9443",
			Symbol: "btcusdt",
		},
		Strategy: StrategyConfig{
			Enabled:                 true,
			CycleMinutes:            15,
			BaseOrderUSD:            10,
			MinElapsedMin:           1.5,
			CooldownSec:             45,
			MaxWindowSpendUSD:       150,
			MaxCombinedOpenPrice:    1.02,
			CheapEarly:              0.35,
			CheapMid:                0.42,
			CheapLate:               0.48,
			Tier1Min:                5,
			Tier2Min:                10,
			NewPositionMax:          11,
			HedgeCeiling:            0.65,
			LateHedgeMin:            12,
			LateHedgeCeiling:        0.75,
			OverreactionPct:         0.12,
			StreakBiasWins:          2,
			StreakBiasCeiling:       0.30,
			AdverseStreakLosses:     2,
			AdverseStreakSizeFactor: 0.5,
		},
		Risk: RiskConfig{
			MaxOpenExposureUSD: 500,
			PauseLossStreak:    3,
			PauseDuration:      duration{30 * time.Minute},
			MinTotalPnLUSD:     -100,
			MinWinRate:         0.30,
			MinResolvedTrades:  6,
			StopLossPct:        0.20,
			StaleAfter:         duration{5 * time.Minute},
		},
		Execution: ExecutionConfig{
			SlippageAllowance: 0.02,
			MaxLimitPrice:     0.99,
			MinShares:         5,
			TickInterval:      duration{5 * time.Second},
		},
		Persistence: PersistenceConfig{
			Backend: "file",
			DataDir: "data",
		},
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			SSLMode:      "require",
			PoolMaxConns: 4,
			PoolMinConns: 1,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "journal",
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
	}
}

// Validate checks the configuration for inconsistencies that would make the
// bot unsafe to run. It returns the first problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "trade", "monitor":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Mode == "trade" && c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		return fmt.Errorf("config: trade mode requires wallet.private_key or wallet.encrypted_key_path")
	}
	if c.Polymarket.SeriesSlug == "" {
		return fmt.Errorf("config: polymarket.series_slug is required")
	}

	s := c.Strategy
	if s.CycleMinutes <= 0 {
		return fmt.Errorf("config: strategy.cycle_minutes must be positive")
	}
	if s.BaseOrderUSD <= 0 {
		return fmt.Errorf("config: strategy.base_order_usd must be positive")
	}
	if !(s.CheapEarly <= s.CheapMid && s.CheapMid <= s.CheapLate) {
		return fmt.Errorf("config: cheap thresholds must be non-decreasing across tiers")
	}
	if s.Tier1Min >= s.Tier2Min {
		return fmt.Errorf("config: strategy.tier1_min must be below tier2_min")
	}
	if s.LateHedgeCeiling >= 1.0 {
		return fmt.Errorf("config: strategy.late_hedge_ceiling must be below 1.0")
	}
	if s.AdverseStreakSizeFactor <= 0 || s.AdverseStreakSizeFactor > 1 {
		return fmt.Errorf("config: strategy.adverse_streak_size_factor must be in (0,1]")
	}

	if c.Risk.MaxOpenExposureUSD <= 0 {
		return fmt.Errorf("config: risk.max_open_exposure_usd must be positive")
	}
	if c.Risk.MinWinRate < 0 || c.Risk.MinWinRate > 1 {
		return fmt.Errorf("config: risk.min_win_rate must be in [0,1]")
	}

	if c.Execution.MaxLimitPrice <= 0 || c.Execution.MaxLimitPrice > 1 {
		return fmt.Errorf("config: execution.max_limit_price must be in (0,1]")
	}

	switch c.Persistence.Backend {
	case "file":
		if c.Persistence.DataDir == "" {
			return fmt.Errorf("config: persistence.data_dir is required for the file backend")
		}
	case "postgres":
		if c.Postgres.DSN == "" && c.Postgres.Database == "" {
			return fmt.Errorf("config: postgres connection parameters are required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unsupported persistence backend %q", c.Persistence.Backend)
	}

	if c.S3.Enabled && c.S3.Bucket == "" {
		return fmt.Errorf("config: s3.bucket is required when s3 is enabled")
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server.port out of range")
	}

	return nil
}
