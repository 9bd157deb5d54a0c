package ledger

import "errors"

// ErrLedgerInit indicates the ledger table could not be created.
var ErrLedgerInit = errors.New("creating ledger table")

// ErrUnknownLockMode indicates a lock mode other than table or advisory.
var ErrUnknownLockMode = errors.New("unknown ledger lock mode")
