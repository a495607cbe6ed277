package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/updownbot/internal/blob/s3"
	"github.com/alanyoungcy/updownbot/internal/cache/redis"
	"github.com/alanyoungcy/updownbot/internal/config"
	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/server/handler"
	"github.com/alanyoungcy/updownbot/internal/store/file"
	"github.com/alanyoungcy/updownbot/internal/store/postgres"
)

// Dependencies bundles the durable and shared infrastructure the operating
// modes build on. Constructed by Wire, torn down by the returned cleanup
// function.
type Dependencies struct {
	StateStore domain.StateStore
	Journal    domain.JournalStore

	// EventLog is the JSONL sink for decision and resolution events; it is
	// always file-backed.
	EventLog *file.EventLog

	// SpotCache and QuoteCache are nil unless Redis is enabled.
	SpotCache  domain.SpotCache
	QuoteCache domain.QuoteCache

	// BlobWriter and Archiver are nil unless S3 is enabled.
	BlobWriter domain.BlobWriter
	S3Client   *s3blob.Client

	// HealthChecks probe the enabled backends for the health endpoint.
	HealthChecks map[string]handler.HealthCheckFunc
}

// Wire constructs the concrete dependency implementations from the
// configuration and returns them with a cleanup function.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		HealthChecks: make(map[string]handler.HealthCheckFunc),
	}

	// --- Durable stores ---
	switch strings.ToLower(cfg.Persistence.Backend) {
	case "", "file":
		stateStore, err := file.NewStateStore(cfg.Persistence.DataDir)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: file state store: %w", err)
		}
		journal, err := file.NewJournalStore(cfg.Persistence.DataDir)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: file journal: %w", err)
		}
		deps.StateStore = stateStore
		deps.Journal = journal

	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}

		deps.StateStore = postgres.NewStateStore(pgClient)
		deps.Journal = postgres.NewJournalStore(pgClient)
		deps.HealthChecks["postgres"] = func(ctx context.Context) error {
			return pgClient.Pool().Ping(ctx)
		}

	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown persistence backend %q", cfg.Persistence.Backend)
	}

	// Event log always lives on the local filesystem.
	eventLog, err := file.NewEventLog(cfg.Persistence.DataDir, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: event log: %w", err)
	}
	deps.EventLog = eventLog

	// --- Redis latest-value caches ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SpotCache = redis.NewSpotCache(redisClient)
		deps.QuoteCache = redis.NewQuoteCache(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- S3 journal archival ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.S3Client = s3Client
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	return deps, cleanup, nil
}
