package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lumen/internal/testutil"
	"github.com/leapstack-labs/lumen/pkg/adapter"
	"github.com/leapstack-labs/lumen/pkg/core"
)

var fixture = []string{
	`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, region TEXT)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER REFERENCES customers(id),
		amount REAL,
		ordered_at TEXT
	)`,
	`INSERT INTO customers VALUES (1, 'Acme', 'EMEA'), (2, 'Globex', 'AMER'), (3, 'Initech', 'AMER')`,
	`INSERT INTO orders VALUES (10, 1, 120.5, '2024-01-03'), (11, 2, 80, '2024-02-11'), (12, 2, 42.25, '2024-03-09')`,
}

func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range fixture {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())
	return path
}

func newAdapter(t *testing.T) *Adapter {
	t.Helper()
	adp := New(testutil.NewTestLogger(t))
	require.NoError(t, adp.Connect(context.Background(), adapter.Config{Type: "sqlite", Path: seedDatabase(t)}))
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}

func TestAdapter_Registry(t *testing.T) {
	assert.True(t, adapter.IsRegistered("sqlite"))
	assert.Equal(t, "sqlite", New(nil).Name())
}

func TestBuildDSN(t *testing.T) {
	assert.Equal(t,
		"file:data/shop.db?_pragma=query_only%281%29&_pragma=busy_timeout%285000%29&mode=ro",
		buildDSN("data/shop.db"))
}

func TestAdapter_Connect_RequiresPath(t *testing.T) {
	err := New(nil).Connect(context.Background(), adapter.Config{Type: "sqlite"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a database path")
}

func TestAdapter_Connect_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	err := New(nil).Connect(context.Background(), adapter.Config{Path: path})
	assert.Error(t, err)
}

func TestAdapter_Execute(t *testing.T) {
	adp := newAdapter(t)
	ctx := context.Background()

	t.Run("rows", func(t *testing.T) {
		res := adp.Execute(ctx, "SELECT region, COUNT(*) AS customers FROM customers GROUP BY region ORDER BY region", 5*time.Second, 100)
		require.True(t, res.OK(), "%v", res.Diagnostics)

		assert.Equal(t, []string{"region", "customers"}, res.Value.Columns)
		require.Len(t, res.Value.Rows, 2)
		assert.Equal(t, "AMER", res.Value.Rows[0]["region"])
		assert.EqualValues(t, 2, res.Value.Rows[0]["customers"])
	})

	t.Run("truncated", func(t *testing.T) {
		res := adp.Execute(ctx, "SELECT * FROM orders ORDER BY id", 5*time.Second, 2)
		require.True(t, res.OK())

		assert.Len(t, res.Value.Rows, 2)
		assert.Equal(t, 3, res.Value.RowCount)
		assert.True(t, res.Value.Truncated)
	})

	t.Run("unknown column", func(t *testing.T) {
		res := adp.Execute(ctx, "SELECT revenue FROM orders", 5*time.Second, 100)
		require.False(t, res.OK())

		d, _ := res.FirstError()
		assert.Equal(t, core.CodeSQLError, d.Code)
		assert.Equal(t, "Check column names against the schema", d.Hint)
	})

	t.Run("writes rejected", func(t *testing.T) {
		_, err := adp.DB.Exec("DELETE FROM orders")
		assert.Error(t, err)
	})
}

func TestAdapter_Tables(t *testing.T) {
	adp := newAdapter(t)

	tables, err := adp.Tables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)

	customers := tables[0]
	assert.Equal(t, "customers", customers.Name)
	assert.EqualValues(t, 3, customers.RowEstimate)
	assert.Equal(t, []string{"id"}, customers.PrimaryKey)
	require.Len(t, customers.Columns, 3)
	assert.Equal(t, adapter.ColumnMeta{Name: "id", Type: "INTEGER", Position: 1}, customers.Columns[0])
	assert.False(t, customers.Columns[1].Nullable)
	assert.True(t, customers.Columns[2].Nullable)

	orders := tables[1]
	assert.Equal(t, "orders", orders.Name)
	assert.Equal(t, []adapter.ForeignKey{{Column: "customer_id", RefTable: "customers", RefColumn: "id"}}, orders.ForeignKeys)
}

func TestAdapter_Profile(t *testing.T) {
	adp := newAdapter(t)
	ctx := context.Background()

	table := adapter.TableMeta{Name: "orders"}
	prof, err := adp.Profile(ctx, table, adapter.ColumnMeta{Name: "ordered_at"}, adapter.ProfileOptions{Range: true})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", prof.Min)
	assert.Equal(t, "2024-03-09", prof.Max)
	assert.EqualValues(t, -1, prof.DistinctCount)
}

func TestAdapter_DatabaseName(t *testing.T) {
	adp := newAdapter(t)
	assert.Equal(t, "shop", adp.DatabaseName())
}
