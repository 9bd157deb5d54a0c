package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing defaults.
const (
	DefaultMaxConns       int32 = 32
	DefaultMinConns       int32 = 8
	DefaultAcquireTimeout       = 15 * time.Second
)

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	MaxConns       int32
	MinConns       int32         // connections kept open while idle
	AcquireTimeout time.Duration // 0 waits as long as ctx allows
}

// DefaultPoolConfig returns the default pool sizing.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:       DefaultMaxConns,
		MinConns:       DefaultMinConns,
		AcquireTimeout: DefaultAcquireTimeout,
	}
}

// Pool is a pgx connection pool whose Acquire is bounded by a timeout.
type Pool struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// NewPool creates a pgx connection pool for the given database URL.
// It parses the connection string, applies the sizing in pc, and pings the
// database to verify connectivity.
func NewPool(ctx context.Context, databaseURL string, pc PoolConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	if pc.MaxConns > 0 {
		poolCfg.MaxConns = pc.MaxConns
	}

	if pc.MinConns > 0 && pc.MinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = pc.MinConns
	}

	pgPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p := &Pool{pool: pgPool, acquireTimeout: pc.AcquireTimeout}

	if err := p.Ping(ctx); err != nil {
		pgPool.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return p, nil
}

// Acquire returns a dedicated connection. The caller must Release it.
func (p *Pool) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPool, err)
	}

	return conn, nil
}

// Ping runs SELECT 1 on a pooled connection.
func (p *Pool) Ping(ctx context.Context) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	var one int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("checking database: %w", err)
	}

	return nil
}

// Close closes every connection in the pool.
func (p *Pool) Close() {
	p.pool.Close()
}
