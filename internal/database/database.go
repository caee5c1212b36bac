// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/campus-events/internal/config"
	"github.com/Shivanand-hulikatti/campus-events/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL applied by EnsureSchema.
func Schema() string {
	return schemaSQL
}

// NewPool creates and validates a pgxpool connection pool.
// It retries cfg.ConnectRetries times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	return connect(ctx, poolCfg, cfg)
}

// NewPoolFromURL is NewPool for a postgres:// connection string.
func NewPoolFromURL(ctx context.Context, url string, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	return connect(ctx, poolCfg, cfg)
}

func connect(ctx context.Context, poolCfg *pgxpool.Config, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	attempts := cfg.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				logging.Info().
					Str("host", poolCfg.ConnConfig.Host).
					Str("database", poolCfg.ConnConfig.Database).
					Int32("max_conns", poolCfg.MaxConns).
					Msg("connected to postgres")
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err
		logging.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("retry_in", cfg.RetryDelay).
			Msg("db connect attempt failed")

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to postgres: %w", ctx.Err())
		case <-time.After(cfg.RetryDelay):
		}
	}
	return nil, fmt.Errorf("connect to postgres: %w", lastErr)
}

// EnsureSchema applies the embedded DDL. Every statement is idempotent, so
// running it against an initialised database is a no-op.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	// No arguments, so pgx uses the simple protocol and accepts multiple statements.
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logging.Info().Msg("database schema ensured")
	return nil
}
