package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies UPDOWN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known UPDOWN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "UPDOWN_MODE")
	setStr(&cfg.LogLevel, "UPDOWN_LOG_LEVEL")

	setStr(&cfg.Wallet.PrivateKey, "UPDOWN_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "UPDOWN_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "UPDOWN_WALLET_KEY_PASSWORD")

	setStr(&cfg.Polymarket.ClobHost, "UPDOWN_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "UPDOWN_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.ChainID, "UPDOWN_POLYMARKET_CHAIN_ID")
	setStr(&cfg.Polymarket.SeriesSlug, "UPDOWN_POLYMARKET_SERIES_SLUG")

	setStr(&cfg.Binance.WsHost, "UPDOWN_BINANCE_WS_HOST")
	setStr(&cfg.Binance.Symbol, "UPDOWN_BINANCE_SYMBOL")

	setBool(&cfg.Strategy.Enabled, "UPDOWN_STRATEGY_ENABLED")
	setFloat(&cfg.Strategy.BaseOrderUSD, "UPDOWN_STRATEGY_BASE_ORDER_USD")
	setFloat(&cfg.Strategy.MaxWindowSpendUSD, "UPDOWN_STRATEGY_MAX_WINDOW_SPEND_USD")

	setFloat(&cfg.Risk.MaxOpenExposureUSD, "UPDOWN_RISK_MAX_OPEN_EXPOSURE_USD")
	setFloat(&cfg.Risk.MinTotalPnLUSD, "UPDOWN_RISK_MIN_TOTAL_PNL_USD")

	setStr(&cfg.Persistence.Backend, "UPDOWN_PERSISTENCE_BACKEND")
	setStr(&cfg.Persistence.DataDir, "UPDOWN_PERSISTENCE_DATA_DIR")

	setStr(&cfg.Postgres.DSN, "UPDOWN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "UPDOWN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "UPDOWN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "UPDOWN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "UPDOWN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "UPDOWN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "UPDOWN_POSTGRES_SSLMODE")

	setBool(&cfg.Redis.Enabled, "UPDOWN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "UPDOWN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "UPDOWN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "UPDOWN_REDIS_DB")

	setBool(&cfg.S3.Enabled, "UPDOWN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "UPDOWN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "UPDOWN_S3_REGION")
	setStr(&cfg.S3.Bucket, "UPDOWN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "UPDOWN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "UPDOWN_S3_SECRET_KEY")

	setBool(&cfg.Server.Enabled, "UPDOWN_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "UPDOWN_SERVER_PORT")
}

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

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
