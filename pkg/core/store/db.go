package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoDatabaseURL is returned by InitDB when DATABASE_URL is unset.
var ErrNoDatabaseURL = errors.New("DATABASE_URL environment variable not set")

var (
	pool    *pgxpool.Pool
	once    sync.Once
	initErr error
)

// InitDB initializes the database connection pool using the DATABASE_URL
// environment variable (the Supabase Postgres connection string). It is safe
// to call more than once; later calls return the first result.
func InitDB(ctx context.Context) error {
	once.Do(func() {
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			initErr = ErrNoDatabaseURL
			return
		}

		config, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			initErr = fmt.Errorf("failed to parse database config: %w", err)
			return
		}

		p, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			initErr = fmt.Errorf("failed to create pool: %w", err)
			return
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			initErr = fmt.Errorf("failed to reach database: %w", err)
			return
		}
		pool = p
	})
	return initErr
}

// GetPool returns the database connection pool, or nil before InitDB succeeded.
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}
