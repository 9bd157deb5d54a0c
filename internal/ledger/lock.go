package ledger

import (
	"context"
	"fmt"
	"hash/fnv"
)

// LockMode selects the database primitive that serializes appliers.
type LockMode string

// Supported lock modes. Both are transaction-scoped and released by COMMIT or
// ROLLBACK.
const (
	// LockTable takes LOCK TABLE ... IN ACCESS EXCLUSIVE MODE on the ledger.
	LockTable LockMode = "table"
	// LockAdvisory takes pg_advisory_xact_lock keyed on the ledger table name.
	LockAdvisory LockMode = "advisory"
)

// ParseLockMode validates a lock mode string.
func ParseLockMode(s string) (LockMode, error) {
	switch LockMode(s) {
	case LockTable, LockAdvisory:
		return LockMode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLockMode, s)
	}
}

// Lock blocks until this transaction holds the migration lock. q must be a
// transaction; outside one the lock is released as soon as the statement ends.
func (l *Ledger) Lock(ctx context.Context, q DBTX) error {
	var err error

	switch l.lockMode {
	case LockAdvisory:
		_, err = q.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", l.advisoryKey())
	case LockTable:
		_, err = q.Exec(ctx, fmt.Sprintf("LOCK TABLE %s IN ACCESS EXCLUSIVE MODE", l.table))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLockMode, l.lockMode)
	}

	if err != nil {
		return fmt.Errorf("locking ledger %s (%s): %w", l.table, l.lockMode, err)
	}

	return nil
}

// advisoryKey derives a stable non-negative int64 key from the table name, so
// separate ledgers in one database do not contend.
func (l *Ledger) advisoryKey() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("migrate-gate:" + l.table))

	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF) //nolint:gosec // intentional truncation for advisory lock key
}
