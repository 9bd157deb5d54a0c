package executor_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/migrate-gate/internal/database"
	"github.com/aqasim81/migrate-gate/internal/executor"
	"github.com/aqasim81/migrate-gate/internal/ledger"
	"github.com/aqasim81/migrate-gate/internal/migration"
)

func unitsFor(ids ...string) []migration.Unit {
	units := make([]migration.Unit, 0, len(ids))
	for _, id := range ids {
		units = append(units, migration.Unit{ID: id})
	}

	return units
}

func idsOf(units []migration.Unit) []string {
	ids := make([]string, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}

	return ids
}

func TestPending(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		source  []string
		last    *ledger.Record
		want    []string
		wantErr bool
	}{
		{name: "empty ledger", source: []string{"A", "B"}, last: nil, want: []string{"A", "B"}},
		{name: "prefix applied", source: []string{"A", "B", "C"}, last: &ledger.Record{ID: "A"}, want: []string{"B", "C"}},
		{name: "up to date", source: []string{"A", "B"}, last: &ledger.Record{ID: "B"}, want: []string{}},
		{name: "empty source", source: nil, last: nil, want: []string{}},
		{name: "unknown id", source: []string{"A", "B"}, last: &ledger.Record{ID: "X"}, wantErr: true},
		{name: "case variant is unknown", source: []string{"A", "B"}, last: &ledger.Record{ID: "a"}, wantErr: true},
		{name: "empty source with ledger", source: nil, last: &ledger.Record{ID: "A"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := executor.Pending(unitsFor(tt.source...), tt.last)

			if tt.wantErr {
				require.ErrorIs(t, err, executor.ErrMigrationNotFound)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, idsOf(got))
		})
	}
}

func TestApplyError(t *testing.T) {
	t.Parallel()

	cause := errors.New("relation \"users\" already exists")
	err := fmt.Errorf("run: %w", &executor.ApplyError{ID: "0002_users", Err: cause})

	assert.ErrorIs(t, err, executor.ErrApply)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, executor.ErrMigrationNotFound)
	assert.Contains(t, err.Error(), "applying migration 0002_users")
}

func TestNotFoundError(t *testing.T) {
	t.Parallel()

	err := &executor.NotFoundError{ID: "0009_future"}

	assert.ErrorIs(t, err, executor.ErrMigrationNotFound)
	assert.NotErrorIs(t, err, executor.ErrApply)
	assert.Contains(t, err.Error(), `"0009_future"`)
}

func TestStatusConstants(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "starting", executor.StatusStarting)
	assert.Equal(t, "completed", executor.StatusCompleted)
	assert.Equal(t, "failed", executor.StatusFailed)
}

func TestMigrate_withoutPool_returnsPoolError(t *testing.T) {
	t.Parallel()

	src := migration.NewSource(nil)
	exec := executor.New(nil, src, ledger.New(ledger.DefaultTable),
		executor.WithLockTimeout(10*time.Second),
		executor.WithStatementTimeout(30*time.Second),
	)

	err := exec.Migrate(context.Background())

	assert.ErrorIs(t, err, database.ErrPool)
}

func TestWait_withoutPool_returnsPoolError(t *testing.T) {
	t.Parallel()

	src := &staticSource{latest: &migration.Unit{ID: "A"}}
	w := executor.NewWaiter(nil, src, ledger.New(ledger.DefaultTable),
		executor.WithWaitInterval(10*time.Millisecond),
	)

	err := w.Wait(context.Background())

	assert.ErrorIs(t, err, database.ErrPool)
}

type staticSource struct {
	latest *migration.Unit
}

func (s *staticSource) List() ([]migration.Unit, error) {
	if s.latest == nil {
		return nil, nil
	}

	return []migration.Unit{*s.latest}, nil
}

func (s *staticSource) Latest() (*migration.Unit, error) { return s.latest, nil }
