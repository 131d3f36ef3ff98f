// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package store owns the PostgreSQL schema and connection pool.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolConfig configures Connect.
type PoolConfig struct {
	URL      string `koanf:"url"`
	MaxConns int32  `koanf:"max_conns"`
	// ConnectTimeout bounds the whole startup, retries included.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	// RetryBase is the first backoff between ping attempts.
	RetryBase time.Duration `koanf:"retry_base"`
}

// DefaultPoolConfig returns the configuration used when nothing is set.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:       10,
		ConnectTimeout: 30 * time.Second,
		RetryBase:      250 * time.Millisecond,
	}
}

// pinger is the part of *pgxpool.Pool Connect needs to check readiness.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pool on cfg.URL and pings it until the database answers
// or cfg.ConnectTimeout runs out.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, oops.Code("DATABASE_URL_MISSING").Errorf("database url is required")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DATABASE_URL_INVALID").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, oops.Code("DATABASE_CONNECT_FAILED").Wrap(err)
	}
	if err := waitReady(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitReady(ctx context.Context, db pinger, cfg PoolConfig) error {
	base := cfg.RetryBase
	if base <= 0 {
		base = DefaultPoolConfig().RetryBase
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultPoolConfig().ConnectTimeout
	}
	backoff := retry.WithMaxDuration(timeout, retry.WithCappedDuration(5*time.Second, retry.NewExponential(base)))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DATABASE_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return nil
}
