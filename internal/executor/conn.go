package executor

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aqasim81/migrate-gate/internal/database"
	"github.com/aqasim81/migrate-gate/internal/ledger"
	"github.com/aqasim81/migrate-gate/internal/migration"
)

// Conn is one acquired database connection. *pgxpool.Conn satisfies it.
type Conn interface {
	ledger.DBTX
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Release()
}

// Source lists migration units in apply order.
type Source interface {
	List() ([]migration.Unit, error)
	Latest() (*migration.Unit, error)
}

// Ledger abstracts ledger table operations for testability.
type Ledger interface {
	EnsureTable(ctx context.Context, q ledger.DBTX) error
	Lock(ctx context.Context, q ledger.DBTX) error
	LastApplied(ctx context.Context, q ledger.DBTX) (*ledger.Record, error)
	Record(ctx context.Context, q ledger.DBTX, id string) error
}

// acquireFunc returns a connection that the caller must release.
type acquireFunc func(ctx context.Context) (Conn, error)

func poolAcquirer(pool *database.Pool) acquireFunc {
	return func(ctx context.Context) (Conn, error) {
		if pool == nil {
			return nil, fmt.Errorf("%w: no pool configured", database.ErrPool)
		}

		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}

		return conn, nil
	}
}
