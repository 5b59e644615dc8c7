// Package sqlite provides a read-only SQLite adapter for lumen.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"sort"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/leapstack-labs/lumen/pkg/adapter"
)

// Adapter implements the adapter.Adapter interface for SQLite files.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// Name returns the registered adapter type.
func (a *Adapter) Name() string {
	return "sqlite"
}

// Connect opens the database file in read-only mode with query_only set.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		return fmt.Errorf("sqlite adapter requires a database path")
	}

	dsn := buildDSN(path)
	a.Logger.Debug("connecting to sqlite", slog.String("dsn", dsn))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

func buildDSN(path string) string {
	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", "query_only(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

const tablesQuery = `
	SELECT name FROM sqlite_master
	WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
	ORDER BY name`

const columnsQuery = `SELECT cid, name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`

const foreignKeysQuery = `SELECT "from", "table", COALESCE("to", '') FROM pragma_foreign_key_list(?) ORDER BY id, seq`

// Tables lists user tables and views with columns, keys and row counts.
func (a *Adapter) Tables(ctx context.Context) ([]adapter.TableMeta, error) {
	if a.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	names, err := a.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	set := adapter.NewTableSet()
	for _, name := range names {
		set.Ensure("", name)
		if err := a.loadColumns(ctx, set, name); err != nil {
			return nil, err
		}
		if err := a.loadForeignKeys(ctx, set, name); err != nil {
			return nil, err
		}

		var count int64
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s", adapter.QuoteIdent(name)) //nolint:gosec // identifier is quoted
		if err := a.DB.QueryRowContext(ctx, q).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count rows of %s: %w", name, err)
		}
		if t, ok := set.Lookup(name); ok {
			t.RowEstimate = count
		}
	}
	return set.List(), nil
}

func (a *Adapter) tableNames(ctx context.Context) ([]string, error) {
	rows, err := a.DB.QueryContext(ctx, tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (a *Adapter) loadColumns(ctx context.Context, set *adapter.TableSet, table string) error {
	rows, err := a.DB.QueryContext(ctx, columnsQuery, table)
	if err != nil {
		return fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	type pkCol struct {
		name string
		seq  int
	}
	var pks []pkCol
	for rows.Next() {
		var (
			cid     int
			col     adapter.ColumnMeta
			colType sql.NullString
			notNull int
			pk      int
		)
		if err := rows.Scan(&cid, &col.Name, &colType, &notNull, &pk); err != nil {
			return fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		col.Type = colType.String
		col.Nullable = notNull == 0 && pk == 0
		col.Position = cid + 1
		set.AddColumn("", table, col)
		if pk > 0 {
			pks = append(pks, pkCol{name: col.Name, seq: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating columns of %s: %w", table, err)
	}

	sort.Slice(pks, func(i, j int) bool { return pks[i].seq < pks[j].seq })
	for _, pk := range pks {
		set.AddPrimaryKey(table, pk.name)
	}
	return nil
}

func (a *Adapter) loadForeignKeys(ctx context.Context, set *adapter.TableSet, table string) error {
	rows, err := a.DB.QueryContext(ctx, foreignKeysQuery, table)
	if err != nil {
		return fmt.Errorf("failed to read foreign keys of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var fk adapter.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return fmt.Errorf("failed to scan foreign key of %s: %w", table, err)
		}
		set.AddForeignKey(table, fk)
	}
	return rows.Err()
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
