package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/migrate-gate/internal/config"
	"github.com/aqasim81/migrate-gate/internal/database"
	"github.com/aqasim81/migrate-gate/internal/executor"
	"github.com/aqasim81/migrate-gate/internal/ledger"
	"github.com/aqasim81/migrate-gate/internal/logging"
	"github.com/aqasim81/migrate-gate/internal/migration"
)

// components is everything a run needs, built from the loaded config.
type components struct {
	pool   *database.Pool
	source *migration.Source
	ledger *ledger.Ledger
	logger *slog.Logger
}

func runRoot(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	wait, _ := cmd.Flags().GetBool("wait")

	if wait {
		if done, err := nothingToWaitFor(cfg); err != nil || done {
			if done {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations found, nothing to wait for.")
			}

			return err
		}
	}

	c, err := connect(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer c.pool.Close()

	if wait {
		return waitForMigration(ctx, cmd.OutOrStdout(), cfg, c)
	}

	return migrate(ctx, cmd.OutOrStdout(), cfg, c)
}

// nothingToWaitFor reports whether the migrations directory is empty, in
// which case waiting succeeds without touching the database.
func nothingToWaitFor(cfg *config.Config) (bool, error) {
	latest, err := migration.NewDirSource(cfg.MigrationsDir).Latest()
	if err != nil {
		return false, fmt.Errorf("loading migrations: %w", err)
	}

	return latest == nil, nil
}

func connect(ctx context.Context, cfg *config.Config, logOut io.Writer) (*components, error) {
	logger := logging.NewLogger(logOut, cfg.LogLevel, cfg.LogFormat)

	mode, err := ledger.ParseLockMode(cfg.LockMode)
	if err != nil {
		return nil, err
	}

	l := ledger.New(cfg.LedgerTable, ledger.WithLockMode(mode))

	logger.Info("connecting to database",
		"url", config.RedactURL(cfg.DatabaseURL),
		"ledger", l.Table(),
		"lock_mode", mode)

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxConns:       int32(cfg.MaxConns), //nolint:gosec // Validate bounds it to [1, MaxInt32]
		MinConns:       int32(cfg.MinConns), //nolint:gosec // Validate bounds it to [0, MaxConns]
		AcquireTimeout: cfg.AcquireTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &components{
		pool:   pool,
		source: migration.NewDirSource(cfg.MigrationsDir),
		ledger: l,
		logger: logger,
	}, nil
}

func migrate(ctx context.Context, out io.Writer, cfg *config.Config, c *components) error {
	applied := 0

	exec := executor.New(c.pool, c.source, c.ledger,
		executor.WithLockTimeout(cfg.LockTimeout),
		executor.WithStatementTimeout(cfg.StatementTimeout),
		executor.WithSQLValidation(cfg.ValidateSQL),
		executor.WithLogger(c.logger),
		executor.WithProgressCallback(func(event executor.ProgressEvent) {
			switch event.Status {
			case executor.StatusStarting:
				fmt.Fprintf(out, "  Applying %s ... ", event.Unit.ID)
			case executor.StatusCompleted:
				fmt.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))
				applied++
			case executor.StatusFailed:
				fmt.Fprintf(out, "FAILED\n")
				fmt.Fprintf(out, "    Error: %v\n", event.Error)
			}
		}),
	)

	if err := exec.Migrate(ctx); err != nil {
		return err
	}

	if applied == 0 {
		fmt.Fprintln(out, "Schema is up to date.")
	} else {
		fmt.Fprintf(out, "\nMigrate complete: %d applied.\n", applied)
	}

	return nil
}

func waitForMigration(ctx context.Context, out io.Writer, cfg *config.Config, c *components) error {
	if cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cfg.WaitTimeout)
		defer cancel()
	}

	w := executor.NewWaiter(c.pool, c.source, c.ledger,
		executor.WithWaitInterval(cfg.WaitInterval),
		executor.WithWaitLogger(c.logger),
	)

	if err := w.Wait(ctx); err != nil {
		return err
	}

	fmt.Fprintln(out, "Schema is at the latest migration.")

	return nil
}
