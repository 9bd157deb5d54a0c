package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aqasim81/migrate-gate/internal/database"
	"github.com/aqasim81/migrate-gate/internal/migration"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ProgressEvent is emitted by the executor for each pending migration.
type ProgressEvent struct {
	Unit     *migration.Unit
	Status   string
	Duration time.Duration
	Error    error
}

// Executor applies pending migrations. Runs from any number of processes are
// serialized by the ledger lock, and each run commits all of its pending
// migrations or none of them.
type Executor struct {
	source           Source
	ledger           Ledger
	logger           *slog.Logger
	lockTimeout      time.Duration
	statementTimeout time.Duration
	validateSQL      bool
	onProgress       func(ProgressEvent)
	acquire          acquireFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithLockTimeout sets lock_timeout for the run's transaction. It bounds the
// wait for the ledger lock as well as every lock the migrations take.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Executor) { e.lockTimeout = d }
}

// WithStatementTimeout sets statement_timeout for the migration statements.
func WithStatementTimeout(d time.Duration) Option {
	return func(e *Executor) { e.statementTimeout = d }
}

// WithSQLValidation toggles parsing pending migrations before executing them.
func WithSQLValidation(b bool) Option {
	return func(e *Executor) { e.validateSQL = b }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(e *Executor) { e.onProgress = fn }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an Executor that reads units from src and records them in l,
// using connections from pool.
func New(pool *database.Pool, src Source, l Ledger, opts ...Option) *Executor {
	e := &Executor{
		source:      src,
		ledger:      l,
		validateSQL: true,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if e.acquire == nil {
		e.acquire = poolAcquirer(pool)
	}

	return e
}

// Migrate applies every pending migration in one transaction while holding
// the ledger lock. Concurrent callers block on the lock and then find
// nothing pending.
func (e *Executor) Migrate(ctx context.Context) error {
	conn, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if err := e.ledger.EnsureTable(ctx, conn); err != nil {
		return err
	}

	var applied []migration.Unit

	err = execInTransaction(ctx, conn, func(tx pgx.Tx) error {
		var runErr error

		applied, runErr = e.migrateLocked(ctx, tx)

		return runErr
	})
	if err != nil {
		e.logger.Error("migration run failed, nothing committed", "error", err)

		return err
	}

	if len(applied) > 0 {
		e.logger.Info("migrations committed",
			"count", len(applied),
			"latest", applied[len(applied)-1].ID)
	}

	return nil
}

// migrateLocked runs inside the transaction: lock, compute pending, apply.
func (e *Executor) migrateLocked(ctx context.Context, tx pgx.Tx) ([]migration.Unit, error) {
	if e.lockTimeout > 0 {
		if err := setLocalTimeout(ctx, tx, "lock_timeout", e.lockTimeout); err != nil {
			return nil, err
		}
	}

	e.logger.Debug("waiting for ledger lock")

	if err := e.ledger.Lock(ctx, tx); err != nil {
		return nil, err
	}

	units, err := e.source.List()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	last, err := e.ledger.LastApplied(ctx, tx)
	if err != nil {
		return nil, err
	}

	pending, err := Pending(units, last)
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		e.logger.Info("schema up to date", "migrations", len(units), "last_applied", lastID(last))

		return nil, nil
	}

	e.logger.Info("applying migrations",
		"pending", len(pending),
		"from", pending[0].ID,
		"to", pending[len(pending)-1].ID)

	if err := e.prepare(ctx, tx, pending); err != nil {
		return nil, err
	}

	for i := range pending {
		if err := e.applyOne(ctx, tx, &pending[i]); err != nil {
			return nil, err
		}
	}

	return pending, nil
}

// prepare validates the pending batch and sets statement_timeout. It runs
// after the ledger lock so the timeout never bounds the lock wait.
func (e *Executor) prepare(ctx context.Context, tx pgx.Tx, pending []migration.Unit) error {
	if e.validateSQL {
		for i := range pending {
			if err := checkTransactional(pending[i].SQL); err != nil {
				return &ApplyError{ID: pending[i].ID, Err: err}
			}
		}
	}

	if e.statementTimeout > 0 {
		if err := setLocalTimeout(ctx, tx, "statement_timeout", e.statementTimeout); err != nil {
			return err
		}
	}

	return nil
}

// applyOne executes a unit's statements and records it, both on tx.
func (e *Executor) applyOne(ctx context.Context, tx pgx.Tx, u *migration.Unit) error {
	e.fireProgress(ProgressEvent{Unit: u, Status: StatusStarting})
	e.logger.Info("applying migration", "id", u.ID, "checksum", u.Checksum[:min(12, len(u.Checksum))])

	start := time.Now()
	err := e.execUnit(ctx, tx, u)
	duration := time.Since(start)

	if err != nil {
		e.fireProgress(ProgressEvent{Unit: u, Status: StatusFailed, Duration: duration, Error: err})

		return &ApplyError{ID: u.ID, Err: err}
	}

	e.fireProgress(ProgressEvent{Unit: u, Status: StatusCompleted, Duration: duration})
	e.logger.Debug("migration applied", "id", u.ID, "duration", duration.Truncate(time.Millisecond))

	return nil
}

func (e *Executor) execUnit(ctx context.Context, tx pgx.Tx, u *migration.Unit) error {
	if strings.TrimSpace(u.SQL) != "" {
		if _, err := tx.Exec(ctx, u.SQL); err != nil {
			return fmt.Errorf("executing SQL: %w", err)
		}
	}

	return e.ledger.Record(ctx, tx, u.ID)
}

func (e *Executor) fireProgress(event ProgressEvent) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}
