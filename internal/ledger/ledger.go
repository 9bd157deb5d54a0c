// Package ledger persists which migrations have been applied.
//
// The ledger is a single append-only table. Every method runs on the DBTX it
// is given, so the caller decides whether a call joins a transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aqasim81/migrate-gate/internal/migration"
)

// DefaultTable is the ledger table name used when none is configured.
const DefaultTable = "migrations"

// DBTX is the query surface shared by *pgx.Conn, *pgxpool.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Record is one applied migration.
type Record struct {
	ID        string
	AppliedAt time.Time
}

// Ledger reads and writes the ledger table.
type Ledger struct {
	table    string // sanitized, ready to interpolate
	lockMode LockMode
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLockMode selects the lock primitive used by Lock.
func WithLockMode(m LockMode) Option {
	return func(l *Ledger) { l.lockMode = m }
}

// New creates a Ledger for the named table. An empty name selects DefaultTable.
// A dotted name such as "ops.migrations" is treated as schema-qualified.
func New(table string, opts ...Option) *Ledger {
	if table == "" {
		table = DefaultTable
	}

	l := &Ledger{
		table:    pgx.Identifier(strings.Split(table, ".")).Sanitize(),
		lockMode: LockTable,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Table returns the quoted table name.
func (l *Ledger) Table() string {
	return l.table
}

// EnsureTable creates the ledger table if it does not exist. Losing a
// creation race to another process is not an error.
func (l *Ledger) EnsureTable(ctx context.Context, q DBTX) error {
	_, err := q.Exec(ctx, fmt.Sprintf(createTableSQL, l.table))
	if err != nil && !isPgError(err, codeUniqueViolation, codeDuplicateTable) {
		return fmt.Errorf("%w %s: %w", ErrLedgerInit, l.table, err)
	}

	return nil
}

// LastApplied returns the record with the greatest identifier, in the same
// order the migration source uses, or nil when nothing has been applied. A
// missing table reads as an empty ledger.
func (l *Ledger) LastApplied(ctx context.Context, q DBTX) (*Record, error) {
	records, err := l.Applied(ctx, q)
	if err != nil {
		if isPgError(err, codeUndefinedTable) {
			return nil, nil //nolint:nilnil // nil,nil signals "nothing applied"
		}

		return nil, fmt.Errorf("querying last applied migration: %w", err)
	}

	if len(records) == 0 {
		return nil, nil //nolint:nilnil // nil,nil signals "nothing applied"
	}

	return &records[len(records)-1], nil
}

// Record appends id with the current UTC time. Call it inside the transaction
// that executed the migration.
func (l *Ledger) Record(ctx context.Context, q DBTX, id string) error {
	_, err := q.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (identifier, applied_at) VALUES ($1, $2)`, l.table),
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording migration %s: %w", id, err)
	}

	return nil
}

// Applied returns every record ordered by migration.Compare. Ordering happens
// here rather than in SQL because lower() follows the database's ctype, which
// need not agree with Go's case folding for non-ASCII identifiers.
func (l *Ledger) Applied(ctx context.Context, q DBTX) ([]Record, error) {
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT identifier, applied_at FROM %s`, l.table))
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		if scanErr := row.Scan(&r.ID, &r.AppliedAt); scanErr != nil {
			return Record{}, fmt.Errorf("scanning ledger row: %w", scanErr)
		}

		r.AppliedAt = r.AppliedAt.UTC()

		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning applied migrations: %w", err)
	}

	slices.SortFunc(records, func(a, b Record) int {
		if c := migration.Compare(a.ID, b.ID); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return records, nil
}

func isPgError(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	for _, c := range codes {
		if pgErr.Code == c {
			return true
		}
	}

	return false
}
