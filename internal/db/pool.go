// Package db holds the optional postgres pool. The service keeps no records;
// the pool only backs the readiness probe when ENABLE_DB is set.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthChecker is satisfied by *pgxpool.Pool.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Connect parses url, opens a pool and pings it within pingTimeout.
func Connect(ctx context.Context, url string, pingTimeout time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

// Status pings hc and reports "ok", "disabled" when hc is nil, or the
// failure text.
func Status(ctx context.Context, hc HealthChecker, timeout time.Duration) (string, error) {
	if hc == nil {
		return "disabled", nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := hc.Ping(ctx); err != nil {
		return fmt.Sprintf("unhealthy: %v", err), err
	}
	return "ok", nil
}
