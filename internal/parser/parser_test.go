package parser_test

import (
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/migrate-gate/internal/parser"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sql       string
		wantErr   bool
		wantStmts int
		checkNode func(t *testing.T, result *parser.ParseResult)
	}{
		{
			name:      "valid CREATE TABLE returns one statement",
			sql:       "CREATE TABLE users (id SERIAL PRIMARY KEY, username TEXT NOT NULL);",
			wantStmts: 1,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				_, ok := result.Stmts[0].Stmt.Node.(*pg_query.Node_CreateStmt)
				assert.True(t, ok, "expected CreateStmt node")
			},
		},
		{
			name:      "multi-statement script returns every statement",
			sql:       "CREATE TABLE todo (id INT); ALTER TABLE todo ADD COLUMN checked BOOLEAN; CREATE INDEX ON todo (id);",
			wantStmts: 3,
		},
		{
			name:    "invalid SQL returns error",
			sql:     "SELECT * FROM WHERE;",
			wantErr: true,
		},
		{
			name:      "whitespace-only returns zero statements",
			sql:       "   \n\t  ",
			wantStmts: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := parser.Parse(tt.sql)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, result)

				return
			}

			require.NoError(t, err)
			assert.Len(t, result.Stmts, tt.wantStmts)
			assert.Equal(t, tt.sql, result.SQL)

			if tt.checkNode != nil {
				tt.checkNode(t, result)
			}
		})
	}
}

func TestTransactionBlockViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "plain DDL is allowed",
			sql:  "CREATE TABLE users (id INT); CREATE INDEX idx_users_id ON users (id);",
		},
		{
			name: "savepoints are allowed",
			sql:  "SAVEPOINT s1; CREATE TABLE t (id INT); RELEASE SAVEPOINT s1;",
		},
		{
			name: "ANALYZE is allowed",
			sql:  "ANALYZE users;",
		},
		{
			name: "concurrent index build",
			sql:  "CREATE INDEX CONCURRENTLY idx_users_email ON users (email);",
			want: []string{"CREATE INDEX CONCURRENTLY"},
		},
		{
			name: "concurrent index drop",
			sql:  "DROP INDEX CONCURRENTLY idx_users_email;",
			want: []string{"DROP INDEX CONCURRENTLY"},
		},
		{
			name: "vacuum",
			sql:  "VACUUM FULL users;",
			want: []string{"VACUUM"},
		},
		{
			name: "explicit transaction control",
			sql:  "BEGIN; CREATE TABLE t (id INT); COMMIT;",
			want: []string{"BEGIN", "COMMIT"},
		},
		{
			name: "database and system level statements",
			sql:  "CREATE DATABASE other; ALTER SYSTEM SET work_mem = '64MB';",
			want: []string{"CREATE DATABASE", "ALTER SYSTEM"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := parser.Parse(tt.sql)
			require.NoError(t, err)

			assert.Equal(t, tt.want, result.TransactionBlockViolations())
		})
	}
}
