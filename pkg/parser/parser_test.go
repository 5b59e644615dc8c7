package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidQueries(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"simple select", "SELECT a, b FROM t"},
		{"star", "SELECT * FROM orders"},
		{"table star", "SELECT o.* FROM orders o"},
		{"top customers", `SELECT c.name, SUM(o.amount) AS revenue
			FROM customers c JOIN orders o ON o.customer_id = c.id
			GROUP BY c.name ORDER BY revenue DESC LIMIT 10`},
		{"cte", "WITH x AS (SELECT 1 AS n) SELECT n FROM x"},
		{"recursive cte", "WITH RECURSIVE r(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM r WHERE n < 5) SELECT * FROM r"},
		{"materialized cte", "WITH x AS MATERIALIZED (SELECT 1) SELECT * FROM x"},
		{"union", "SELECT a FROM t UNION SELECT a FROM u"},
		{"parenthesized union", "(SELECT a FROM t) UNION ALL (SELECT a FROM u) ORDER BY 1"},
		{"intersect except", "SELECT a FROM t INTERSECT SELECT a FROM u EXCEPT SELECT a FROM v"},
		{"derived table", "SELECT s.total FROM (SELECT SUM(x) AS total FROM t) s"},
		{"derived table column aliases", "SELECT * FROM (VALUES (1, 'a'), (2, 'b')) AS v(id, label)"},
		{"lateral", "SELECT * FROM t, LATERAL (SELECT * FROM u WHERE u.t_id = t.id) x"},
		{"table function", "SELECT gs.n FROM generate_series(1, 3) AS gs(n)"},
		{"scalar subquery", "SELECT (SELECT MAX(x) FROM t) AS m"},
		{"in subquery", "SELECT * FROM t WHERE id IN (SELECT id FROM u)"},
		{"not in list", "SELECT * FROM t WHERE id NOT IN (1, 2, 3)"},
		{"exists", "SELECT * FROM t WHERE NOT EXISTS (SELECT 1 FROM u WHERE u.id = t.id)"},
		{"between", "SELECT * FROM t WHERE d BETWEEN DATE '2024-01-01' AND DATE '2024-12-31' AND x > 1"},
		{"like escape", "SELECT * FROM t WHERE name ILIKE '%a\\%%' ESCAPE '\\'"},
		{"is distinct from", "SELECT * FROM t WHERE a IS NOT DISTINCT FROM b"},
		{"case", "SELECT CASE WHEN x > 0 THEN 'pos' WHEN x < 0 THEN 'neg' ELSE 'zero' END FROM t"},
		{"simple case", "SELECT CASE status WHEN 'a' THEN 1 END FROM t"},
		{"cast forms", "SELECT CAST(x AS numeric(10, 2)), y::date, z::timestamp with time zone, w::double precision FROM t"},
		{"interval", "SELECT now() - INTERVAL '30 days', INTERVAL '1' month"},
		{"extract", "SELECT EXTRACT(EPOCH FROM created_at::timestamp) / 86400.0 FROM t"},
		{"substring position trim", "SELECT SUBSTRING(s FROM 1 FOR 3), POSITION('a' IN s), TRIM(BOTH ' ' FROM s) FROM t"},
		{"window", "SELECT SUM(x) OVER (PARTITION BY g ORDER BY d ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW) FROM t"},
		{"named window", "SELECT rank() OVER w FROM t WINDOW w AS (ORDER BY x DESC)"},
		{"filter and within group", "SELECT COUNT(*) FILTER (WHERE x > 1), percentile_cont(0.5) WITHIN GROUP (ORDER BY y) FROM t"},
		{"aggregate order by", "SELECT string_agg(name, ', ' ORDER BY name) FROM t"},
		{"regression", `SELECT regr_slope(y, EXTRACT(EPOCH FROM "t"::timestamp) / 86400.0) AS slope FROM baseline`},
		{"json operators", "SELECT data->>'name', data->'tags' FROM t"},
		{"array", "SELECT ARRAY[1, 2, 3], tags[1] FROM t WHERE x = ANY(ARRAY[1, 2])"},
		{"left function", "SELECT LEFT(name, 3), RIGHT(name, 2) FROM t"},
		{"distinct on", "SELECT DISTINCT ON (a) a, b FROM t ORDER BY a, b DESC NULLS LAST"},
		{"joins", "SELECT * FROM a LEFT OUTER JOIN b USING (id) FULL JOIN c ON c.id = b.id CROSS JOIN d NATURAL JOIN e"},
		{"paren join", "SELECT * FROM (a JOIN b ON a.id = b.id)"},
		{"offset fetch", "SELECT * FROM t ORDER BY x OFFSET 5 ROWS FETCH FIRST 10 ROWS ONLY"},
		{"limit all", "SELECT * FROM t LIMIT ALL"},
		{"grouping sets", "SELECT a, b, SUM(x) FROM t GROUP BY GROUPING SETS ((a), (b))"},
		{"rollup", "SELECT a, b, SUM(x) FROM t GROUP BY ROLLUP (a, b)"},
		{"qualify", "SELECT * FROM t QUALIFY row_number() OVER (PARTITION BY g ORDER BY x) = 1"},
		{"quoted identifiers", `SELECT "Order Id", "weird""name" FROM "My Table"`},
		{"comments", "-- leading\nSELECT /* inline /* nested */ */ 1"},
		{"params", "SELECT * FROM t WHERE id = $1 AND name = ?"},
		{"dollar quoted", "SELECT $$it's$$"},
		{"string alias", "SELECT 1 AS 'one'"},
		{"column named like write keyword", "SELECT update, (delete + 1) FROM audit"},
		{"trailing semicolon", "SELECT 1;"},
		{"at time zone", "SELECT created_at AT TIME ZONE 'UTC' FROM t"},
		{"star exclude", "SELECT * EXCLUDE (secret) FROM t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := Parse(tt.sql)
			require.NoError(t, err)
			require.NotNil(t, stmt)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantMsg string
	}{
		{"empty", "", ErrEmptyInput},
		{"whitespace", "  \n\t ", ErrEmptyInput},
		{"only semicolons", ";;", ErrEmptyInput},
		{"unterminated string", "SELECT 'abc", ErrUnterminatedString},
		{"unterminated identifier", `SELECT "abc`, ErrUnterminatedIdent},
		{"missing from target", "SELECT * FROM", "expected table name"},
		{"dangling operator", "SELECT 1 +", "expected expression"},
		{"missing paren", "SELECT (1 + 2", "expected )"},
		{"trailing garbage", "SELECT 1 2", "unexpected"},
		{"case without when", "SELECT CASE END", "expected expression"},
		{"bad cast", "SELECT CAST(1 AS) ", "expected type name"},
		{"natural join with on", "SELECT * FROM a NATURAL JOIN b ON a.x = b.x", "cannot have ON"},
		{"illegal character", "SELECT 1 # 2", "unexpected character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript(tt.sql)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Contains(t, perr.Message, tt.wantMsg)
		})
	}
}

func TestParseError_Position(t *testing.T) {
	_, err := ParseScript("SELECT a\nFROM t\nWHERE a = ")
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, perr.Pos.Line)
	assert.Contains(t, err.Error(), "parse error at line 3")
}

func TestParseScript_Statements(t *testing.T) {
	tests := []struct {
		name  string
		sql   string
		kinds []string
	}{
		{"single select", "SELECT 1", []string{"select"}},
		{"select then delete", "SELECT * FROM orders; DELETE FROM orders;", []string{"select", "write:DELETE"}},
		{"insert", "INSERT INTO t VALUES (1)", []string{"write:INSERT"}},
		{"with insert", "WITH x AS (SELECT 1) INSERT INTO t SELECT * FROM x", []string{"write:INSERT"}},
		{"ddl", "CREATE TABLE t (id int); DROP TABLE t", []string{"write:CREATE", "write:DROP"}},
		{"grant", "GRANT SELECT ON t TO bob", []string{"write:GRANT"}},
		{"command", "SET search_path = public", []string{"command:SET"}},
		{"values", "VALUES (1), (2)", []string{"values"}},
		{"stray semicolons", ";SELECT 1;;SELECT 2;", []string{"select", "select"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := ParseScript(tt.sql)
			require.NoError(t, err)

			var kinds []string
			for _, s := range stmts {
				switch v := s.(type) {
				case *SelectStmt:
					kinds = append(kinds, "select")
				case *WriteStmt:
					kinds = append(kinds, "write:"+v.Kind)
				case *CommandStmt:
					kinds = append(kinds, "command:"+v.Name)
				case *ValuesStmt:
					kinds = append(kinds, "values")
				}
			}
			assert.Equal(t, tt.kinds, kinds)
		})
	}
}

func TestInspect_FindsNestedWrites(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"cte delete", "WITH d AS (DELETE FROM x RETURNING *) SELECT * FROM d", "DELETE"},
		{"cte update", "WITH u AS (UPDATE t SET a = 1 RETURNING id) SELECT count(*) FROM u", "UPDATE"},
		{"cte insert", "WITH i AS (INSERT INTO t (a) VALUES (1) RETURNING a) SELECT a FROM i", "INSERT"},
		{"derived table", "SELECT * FROM (DELETE FROM x RETURNING *) d", "DELETE"},
		{"in subquery", "SELECT * FROM t WHERE id IN (DELETE FROM x RETURNING id)", "DELETE"},
		{"nested cte", "WITH a AS (WITH b AS (DELETE FROM x RETURNING *) SELECT * FROM b) SELECT * FROM a", "DELETE"},
		{"merge in cte", "WITH m AS (MERGE INTO t USING s ON t.id = s.id WHEN MATCHED THEN DELETE) SELECT 1", "MERGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := Parse(tt.sql)
			require.NoError(t, err)

			var found []string
			Inspect(stmt, func(n Node) bool {
				if w, ok := n.(*WriteStmt); ok {
					found = append(found, w.Kind)
				}
				return true
			})
			assert.Equal(t, []string{tt.want}, found)
		})
	}
}

func TestInspect_SelectIntoAndLocking(t *testing.T) {
	stmt, err := Parse("SELECT * INTO backup FROM orders")
	require.NoError(t, err)
	core := firstCore(t, stmt)
	require.NotNil(t, core.Into)
	assert.Equal(t, "backup", core.Into.Target)

	stmt, err = Parse("SELECT * FROM orders WHERE id = 1 FOR UPDATE SKIP LOCKED")
	require.NoError(t, err)
	core = firstCore(t, stmt)
	require.Len(t, core.Locking, 1)
	assert.Equal(t, "UPDATE", core.Locking[0].Strength)

	stmt, err = Parse("SELECT * FROM orders FOR NO KEY UPDATE OF orders NOWAIT")
	require.NoError(t, err)
	assert.Equal(t, "NO KEY UPDATE", firstCore(t, stmt).Locking[0].Strength)
}

func TestInspect_VisitsEveryColumnRef(t *testing.T) {
	stmt, err := Parse("SELECT a, f(b) FROM t WHERE c IN (SELECT d FROM u) ORDER BY e")
	require.NoError(t, err)

	var cols []string
	Inspect(stmt, func(n Node) bool {
		if c, ok := n.(*ColumnRef); ok {
			cols = append(cols, c.Name())
		}
		return true
	})
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, cols)
}

func TestInspect_StopsDescending(t *testing.T) {
	stmt, err := Parse("SELECT a FROM (SELECT b FROM t) s")
	require.NoError(t, err)

	var cols []string
	Inspect(stmt, func(n Node) bool {
		if _, ok := n.(*DerivedTable); ok {
			return false
		}
		if c, ok := n.(*ColumnRef); ok {
			cols = append(cols, c.Name())
		}
		return true
	})
	assert.Equal(t, []string{"a"}, cols)
}

func TestParse_ExpressionShape(t *testing.T) {
	stmt, err := Parse("SELECT 1 + 2 * 3")
	require.NoError(t, err)

	core := firstCore(t, stmt)
	bin, ok := core.Columns[0].Expr.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, TOKEN_PLUS, bin.Op)

	right, ok := bin.Right.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, TOKEN_STAR, right.Op)
}

func firstCore(t *testing.T, stmt Statement) *SelectCore {
	t.Helper()
	sel, ok := stmt.(*SelectStmt)
	require.True(t, ok, "expected *SelectStmt, got %T", stmt)
	core, ok := sel.Body.Left.(*SelectCore)
	require.True(t, ok, "expected *SelectCore, got %T", sel.Body.Left)
	return core
}
