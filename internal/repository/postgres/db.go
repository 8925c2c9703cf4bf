// Package postgres stores knowledge chunks in PostgreSQL with pgvector.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/chatpdf/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrVectorMissing means the pgvector extension is not installed
var ErrVectorMissing = errors.New("pgvector extension is not installed")

// DB wraps the database connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB connects to cfg and checks that the chunk store is usable
func NewDB(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	db := &DB{Pool: pool}
	if err := db.ready(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

// ready pings the server and verifies pgvector
func (db *DB) ready(ctx context.Context) error {
	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	var version string
	err := db.Pool.QueryRow(ctx, `SELECT extversion FROM pg_extension WHERE extname = 'vector'`).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVectorMissing
	}
	if err != nil {
		return fmt.Errorf("failed to check pgvector: %w", err)
	}
	return nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}
