package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lumen/pkg/core"
)

func TestValidate_Accepts(t *testing.T) {
	queries := []string{
		"SELECT * FROM orders",
		"SELECT status, COUNT(*) FROM orders GROUP BY status ORDER BY 2 DESC LIMIT 10",
		"WITH monthly AS (SELECT date_trunc('month', created_at) AS m, SUM(amount) AS total FROM orders GROUP BY 1) SELECT * FROM monthly",
		"SELECT a FROM t UNION ALL SELECT a FROM u",
		"SELECT * FROM t WHERE id IN (SELECT id FROM u) AND EXISTS (SELECT 1 FROM v)",
		"SELECT update, delete FROM audit_log",
		"SELECT 'DELETE FROM orders' AS note",
		"SELECT * FROM orders;",
		"-- top customers\nSELECT name FROM customers",
	}

	for _, sql := range queries {
		t.Run(sql, func(t *testing.T) {
			res := Validate(sql)
			require.True(t, res.OK(), "diagnostics: %v", res.Diagnostics)
			assert.Equal(t, sql, res.Value)
			assert.Empty(t, res.Diagnostics)
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		wantCode string
		wantMsg  string
	}{
		{"empty", "", core.CodeSQLParseError, "empty query"},
		{"whitespace", "   \n", core.CodeSQLParseError, "empty query"},
		{"syntax error", "SELECT FROM WHERE", core.CodeSQLParseError, "parse error"},
		{"unterminated", "SELECT 'oops", core.CodeSQLParseError, "unterminated"},
		{"two statements", "SELECT * FROM orders; DELETE FROM orders;", core.CodeValidationError, "single statement"},
		{"two selects", "SELECT 1; SELECT 2", core.CodeValidationError, "single statement"},
		{"top level delete", "DELETE FROM orders", core.CodeValidationError, "DELETE"},
		{"top level insert", "INSERT INTO t VALUES (1)", core.CodeValidationError, "INSERT"},
		{"drop", "DROP TABLE orders", core.CodeValidationError, "DROP"},
		{"truncate", "TRUNCATE orders", core.CodeValidationError, "TRUNCATE"},
		{"grant", "GRANT SELECT ON orders TO analyst", core.CodeValidationError, "GRANT"},
		{"copy", "COPY orders TO '/tmp/out.csv'", core.CodeValidationError, "COPY"},
		{"values", "VALUES (1), (2)", core.CodeValidationError, "VALUES"},
		{"set command", "SET statement_timeout = 0", core.CodeValidationError, "SET"},
		{"cte delete", "WITH d AS (DELETE FROM x RETURNING *) SELECT * FROM d", core.CodeValidationError, "DELETE"},
		{"cte update", "WITH u AS (UPDATE t SET a = 1 RETURNING id) SELECT count(*) FROM u", core.CodeValidationError, "UPDATE"},
		{"with insert", "WITH x AS (SELECT 1) INSERT INTO t SELECT * FROM x", core.CodeValidationError, "INSERT"},
		{"derived table write", "SELECT * FROM (DELETE FROM x RETURNING *) d", core.CodeValidationError, "DELETE"},
		{"nested cte", "WITH a AS (WITH b AS (INSERT INTO t VALUES (1) RETURNING *) SELECT * FROM b) SELECT * FROM a", core.CodeValidationError, "INSERT"},
		{"select into", "SELECT * INTO backup FROM orders", core.CodeValidationError, "SELECT INTO"},
		{"for update", "SELECT * FROM orders WHERE id = 1 FOR UPDATE", core.CodeValidationError, "FOR UPDATE"},
		{"for share", "SELECT * FROM orders FOR SHARE", core.CodeValidationError, "FOR SHARE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.sql)
			require.False(t, res.OK())

			d, ok := res.FirstError()
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, d.Code)
			assert.Contains(t, d.Message, tt.wantMsg)
			assert.Empty(t, res.Value)
		})
	}
}

func TestValidate_Deterministic(t *testing.T) {
	sql := "WITH d AS (DELETE FROM x RETURNING *) SELECT * FROM d"
	first := Validate(sql)
	second := Validate(sql)
	assert.Equal(t, first, second)
}
