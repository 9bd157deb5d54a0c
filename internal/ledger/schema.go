package ledger

// createTableSQL is the DDL for the ledger table. %s is the sanitized table name.
const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
    identifier TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgreSQL error codes the ledger reacts to.
const (
	codeUniqueViolation = "23505"
	codeDuplicateTable  = "42P07"
	codeUndefinedTable  = "42P01"
)
