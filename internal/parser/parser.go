package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ParseResult holds the parsed AST and original SQL.
type ParseResult struct {
	Stmts []*pg_query.RawStmt
	SQL   string
}

// Parse parses a PostgreSQL SQL string and returns the AST.
// Returns an empty result (zero statements) for empty or whitespace-only input.
func Parse(sql string) (*ParseResult, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return &ParseResult{SQL: sql}, nil
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}

	return &ParseResult{
		Stmts: tree.Stmts,
		SQL:   sql,
	}, nil
}

// TransactionBlockViolations lists the statements that PostgreSQL refuses to
// run inside a transaction block, or that would end the surrounding one.
// An empty result means the whole script can share a single transaction.
func (r *ParseResult) TransactionBlockViolations() []string {
	var found []string

	for _, raw := range r.Stmts {
		if v := violation(raw.GetStmt()); v != "" {
			found = append(found, v)
		}
	}

	return found
}

func violation(n *pg_query.Node) string {
	switch node := n.GetNode().(type) {
	case *pg_query.Node_IndexStmt:
		if node.IndexStmt.GetConcurrent() {
			return "CREATE INDEX CONCURRENTLY"
		}
	case *pg_query.Node_DropStmt:
		if node.DropStmt.GetConcurrent() {
			return "DROP INDEX CONCURRENTLY"
		}
	case *pg_query.Node_VacuumStmt:
		if node.VacuumStmt.GetIsVacuumcmd() {
			return "VACUUM"
		}
	case *pg_query.Node_CreatedbStmt:
		return "CREATE DATABASE"
	case *pg_query.Node_DropdbStmt:
		return "DROP DATABASE"
	case *pg_query.Node_AlterSystemStmt:
		return "ALTER SYSTEM"
	case *pg_query.Node_CreateTableSpaceStmt:
		return "CREATE TABLESPACE"
	case *pg_query.Node_DropTableSpaceStmt:
		return "DROP TABLESPACE"
	case *pg_query.Node_TransactionStmt:
		return transactionControl(node.TransactionStmt.GetKind())
	}

	return ""
}

// transactionControl reports statements that open or close a transaction.
// Savepoints nest inside the surrounding transaction and are allowed.
func transactionControl(kind pg_query.TransactionStmtKind) string {
	switch kind {
	case pg_query.TransactionStmtKind_TRANS_STMT_BEGIN,
		pg_query.TransactionStmtKind_TRANS_STMT_START:
		return "BEGIN"
	case pg_query.TransactionStmtKind_TRANS_STMT_COMMIT:
		return "COMMIT"
	case pg_query.TransactionStmtKind_TRANS_STMT_ROLLBACK:
		return "ROLLBACK"
	case pg_query.TransactionStmtKind_TRANS_STMT_PREPARE,
		pg_query.TransactionStmtKind_TRANS_STMT_COMMIT_PREPARED,
		pg_query.TransactionStmtKind_TRANS_STMT_ROLLBACK_PREPARED:
		return "two-phase commit"
	default:
		return ""
	}
}
