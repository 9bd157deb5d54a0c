package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aqasim81/migrate-gate/internal/database"
	"github.com/aqasim81/migrate-gate/internal/ledger"
)

// DefaultWaitInterval is the pause between ledger polls.
const DefaultWaitInterval = time.Second

// Waiter blocks until the ledger reaches the source's latest migration. It
// never applies anything itself.
type Waiter struct {
	source   Source
	ledger   Ledger
	logger   *slog.Logger
	interval time.Duration
	acquire  acquireFunc
	after    func(time.Duration) <-chan time.Time
}

// WaitOption configures a Waiter.
type WaitOption func(*Waiter)

// WithWaitInterval sets the pause between polls.
func WithWaitInterval(d time.Duration) WaitOption {
	return func(w *Waiter) { w.interval = d }
}

// WithWaitLogger sets the logger. The default discards output.
func WithWaitLogger(l *slog.Logger) WaitOption {
	return func(w *Waiter) { w.logger = l }
}

// NewWaiter creates a Waiter reading units from src and records from l.
func NewWaiter(pool *database.Pool, src Source, l Ledger, opts ...WaitOption) *Waiter {
	w := &Waiter{
		source:   src,
		ledger:   l,
		interval: DefaultWaitInterval,
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if w.interval <= 0 {
		w.interval = DefaultWaitInterval
	}

	if w.acquire == nil {
		w.acquire = poolAcquirer(pool)
	}

	if w.after == nil {
		w.after = time.After
	}

	return w
}

// Wait polls the ledger until its last record equals the source's latest
// migration. It fails at once, without retrying, if the ledger is ahead of
// the source. There is no built-in deadline; bound the wait through ctx.
func (w *Waiter) Wait(ctx context.Context) error {
	latest, err := w.source.Latest()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	if latest == nil {
		w.logger.Info("no migrations on disk, nothing to wait for")

		return nil
	}

	conn, err := w.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for polls := 0; ; polls++ {
		last, err := w.ledger.LastApplied(ctx, conn)
		if err != nil {
			return err
		}

		done, err := converged(latest.ID, last)
		if err != nil {
			return err
		}

		if done {
			w.logger.Info("migration reached", "id", latest.ID, "polls", polls)

			return nil
		}

		if polls == 0 {
			w.logger.Info("waiting for migration",
				"target", latest.ID,
				"last_applied", lastID(last),
				"interval", w.interval)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for migration %s: %w", latest.ID, ctx.Err())
		case <-w.after(w.interval):
		}
	}
}

func lastID(r *ledger.Record) string {
	if r == nil {
		return ""
	}

	return r.ID
}
