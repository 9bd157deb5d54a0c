package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// runTxOptions pins READ COMMITTED whatever default_transaction_isolation
// says. Each statement after the ledger lock must see what the previous lock
// holder committed, and pg_advisory_xact_lock takes its snapshot before it
// blocks.
var runTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted} //nolint:gochecknoglobals // read-only options

// execInTransaction runs fn inside a transaction on conn. On success the
// transaction is committed; on error it is rolled back before the error is
// returned, which also releases any transaction-scoped lock.
func execInTransaction(ctx context.Context, conn Conn, fn func(tx pgx.Tx) error) error {
	tx, err := conn.BeginTx(ctx, runTxOptions)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rolling back transaction: %w", rbErr))
		}

		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
