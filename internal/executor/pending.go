package executor

import (
	"github.com/aqasim81/migrate-gate/internal/ledger"
	"github.com/aqasim81/migrate-gate/internal/migration"
)

// Pending returns the units that follow last in source order. With no last
// record every unit is pending. A last record absent from units is a
// NotFoundError.
func Pending(units []migration.Unit, last *ledger.Record) ([]migration.Unit, error) {
	if last == nil {
		return units, nil
	}

	for i := range units {
		if units[i].ID == last.ID {
			return units[i+1:], nil
		}
	}

	return nil, &NotFoundError{ID: last.ID}
}

// converged compares the ledger's last record with the source's latest
// identifier. It returns true once they match and a NotFoundError when the
// ledger is ahead of, or disagrees with, the source.
func converged(target string, last *ledger.Record) (bool, error) {
	if last == nil {
		return false, nil
	}

	if last.ID == target {
		return true, nil
	}

	if migration.Compare(last.ID, target) >= 0 {
		return false, &NotFoundError{ID: last.ID}
	}

	return false, nil
}
