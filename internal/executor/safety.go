package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aqasim81/migrate-gate/internal/ledger"
	"github.com/aqasim81/migrate-gate/internal/parser"
)

// setLocalTimeout sets a transaction-scoped timeout such as lock_timeout or
// statement_timeout. It reverts when the transaction ends.
func setLocalTimeout(ctx context.Context, q ledger.DBTX, setting string, timeout time.Duration) error {
	sql := fmt.Sprintf("SET LOCAL %s = '%dms'", setting, timeout.Milliseconds())

	if _, err := q.Exec(ctx, sql); err != nil {
		return fmt.Errorf("setting %s: %w", setting, err)
	}

	return nil
}

// checkTransactional parses sql and rejects statements that cannot share the
// run's transaction.
func checkTransactional(sql string) error {
	result, err := parser.Parse(sql)
	if err != nil {
		return err
	}

	if found := result.TransactionBlockViolations(); len(found) > 0 {
		return fmt.Errorf("%w: %s", ErrNotTransactional, strings.Join(found, ", "))
	}

	return nil
}
