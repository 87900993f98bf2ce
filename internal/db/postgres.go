package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New creates a connection pool from a Postgres URL and verifies it with a
// ping. The pool is closed again if the ping fails.
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	// Pool sizing:
	//
	// MaxConns (25): live viewers sit on websockets, not on connections.
	//   Only request handlers, the write path and the reconciler borrow a
	//   connection, each for a few queries. A thread view runs up to 8
	//   reply lookups in parallel, so a handful of concurrent views is
	//   what the cap really has to cover.
	//
	// MinConns (5): a warm floor so the first posts after a quiet night
	//   don't pay connection setup.
	//
	// MaxConnLifetime (1h) / MaxConnIdleTime (20min): recycle connections
	//   so failovers and DNS changes are picked up, and give slots back to
	//   Postgres when the campus is asleep.
	//
	// HealthCheckPeriod (1min): find dead idle connections before a
	//   request does.
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 20 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	logger.Info("DB connection established",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)
	return &DB{
		pool:   pool,
		logger: logger,
	}, nil
}

// Migrate applies schema.sql. Statements are idempotent, so this runs on
// every start.
func (db *DB) Migrate(ctx context.Context) error {
	// No arguments: pgx sends this with the simple protocol, which accepts
	// several statements in one round trip.
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	db.logger.Info("database schema applied")
	return nil
}

func (db *DB) Close() {
	db.logger.Info("closing database connection pool")
	db.pool.Close()
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
