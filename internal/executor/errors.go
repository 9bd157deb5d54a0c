package executor

import (
	"errors"
	"fmt"
)

// ErrApply indicates a migration's statements or its ledger record failed.
var ErrApply = errors.New("migration apply failed")

// ErrMigrationNotFound indicates the ledger references a migration that is
// not in the source. This is a deploy-ordering defect and is never retried.
var ErrMigrationNotFound = errors.New("migration recorded in ledger not found in source")

// ErrNotTransactional indicates a migration contains statements that cannot
// run inside the single transaction shared by a run.
var ErrNotTransactional = errors.New("migration cannot run inside a transaction")

// ApplyError reports the migration whose batch failed.
type ApplyError struct {
	ID  string
	Err error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("applying migration %s: %v", e.ID, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Is matches ErrApply.
func (e *ApplyError) Is(target error) bool { return target == ErrApply }

// NotFoundError reports a ledger identifier missing from the source.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("migration %q from ledger not found in migration source", e.ID)
}

// Is matches ErrMigrationNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrMigrationNotFound }
