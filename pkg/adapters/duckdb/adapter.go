// Package duckdb provides a read-only DuckDB adapter for lumen.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/marcboeker/go-duckdb"

	"github.com/leapstack-labs/lumen/pkg/adapter"
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// Name returns the registered adapter type.
func (a *Adapter) Name() string {
	return "duckdb"
}

// Connect opens the DuckDB database. File databases are opened with
// access_mode=READ_ONLY; ":memory:" (the default) cannot be read-only and
// is meant for tests and ad hoc file queries.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := decodeParams(cfg.Params)
	if err != nil {
		return err
	}

	dsn := buildDSN(cfg)
	a.Logger.Debug("connecting to duckdb", slog.String("dsn", dsn))

	boot := params.bootStatements()
	connector, err := duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
		for _, stmt := range boot {
			if _, err := execer.ExecContext(context.Background(), stmt, nil); err != nil {
				return fmt.Errorf("failed to run %q: %w", strings.SplitN(stmt, "\n", 2)[0], err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

func buildDSN(cfg adapter.Config) string {
	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path + "?access_mode=READ_ONLY"
}

func (a *Adapter) schema() string {
	if a.Cfg.Schema != "" {
		return a.Cfg.Schema
	}
	return "main"
}

const columnsQuery = `
	SELECT table_name, column_name, data_type, is_nullable, column_index, COALESCE(comment, '')
	FROM duckdb_columns()
	WHERE schema_name = ? AND NOT internal
	ORDER BY table_name, column_index`

const constraintsQuery = `
	SELECT table_name, constraint_type, constraint_column_names,
		COALESCE(referenced_table, ''), referenced_column_names
	FROM duckdb_constraints()
	WHERE schema_name = ? AND constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')`

const tableStatsQuery = `
	SELECT table_name, estimated_size, COALESCE(comment, '')
	FROM duckdb_tables()
	WHERE schema_name = ? AND NOT internal`

// Tables lists tables and views in the configured schema.
func (a *Adapter) Tables(ctx context.Context) ([]adapter.TableMeta, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	schema := a.schema()
	set := adapter.NewTableSet()

	rows, err := a.DB.QueryContext(ctx, columnsQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	for rows.Next() {
		var table string
		var col adapter.ColumnMeta
		if err := rows.Scan(&table, &col.Name, &col.Type, &col.Nullable, &col.Position, &col.Comment); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Position++
		set.AddColumn(schema, table, col)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	rows, err = a.DB.QueryContext(ctx, constraintsQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query constraints: %w", err)
	}
	for rows.Next() {
		var table, kind, refTable string
		var cols, refCols any
		if err := rows.Scan(&table, &kind, &cols, &refTable, &refCols); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan constraint: %w", err)
		}
		columns, refColumns := toStrings(cols), toStrings(refCols)
		switch kind {
		case "PRIMARY KEY":
			for _, c := range columns {
				set.AddPrimaryKey(table, c)
			}
		case "FOREIGN KEY":
			for i, c := range columns {
				if i < len(refColumns) && refTable != "" {
					set.AddForeignKey(table, adapter.ForeignKey{Column: c, RefTable: refTable, RefColumn: refColumns[i]})
				}
			}
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("error iterating constraints: %w", err)
	}

	rows, err = a.DB.QueryContext(ctx, tableStatsQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query table statistics: %w", err)
	}
	for rows.Next() {
		var name, comment string
		var estimate sql.NullInt64
		if err := rows.Scan(&name, &estimate, &comment); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan table statistics: %w", err)
		}
		if t, ok := set.Lookup(name); ok {
			t.RowEstimate = estimate.Int64
			t.Comment = comment
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("error iterating table statistics: %w", err)
	}

	return set.List(), nil
}

// toStrings converts a scanned DuckDB LIST value.
func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			if e != nil {
				out = append(out, fmt.Sprint(e))
			}
		}
		return out
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	_ = rows.Close()
	return err
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
