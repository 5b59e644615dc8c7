// Package postgres provides a read-only PostgreSQL adapter for lumen.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/pkg/adapter"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// sqlStateQueryCanceled is raised when statement_timeout fires.
const sqlStateQueryCanceled = "57014"

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, IsTimeout: isStatementTimeout},
	}
}

// Name returns the registered adapter type.
func (a *Adapter) Name() string {
	return "postgres"
}

// Connect establishes a connection to PostgreSQL. Every pooled session is
// switched to read-only transactions before first use.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	connConfig, err := pgx.ParseConfig(buildPostgresDSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to parse postgres connection settings: %w", err)
	}

	db := stdlib.OpenDB(*connConfig, stdlib.OptionAfterConnect(func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY")
		return err
	}))

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if app, ok := cfg.Options["application_name"]; ok {
		dsn += fmt.Sprintf(" application_name=%s", app)
	}

	return dsn
}

// Execute runs sqlStr on a dedicated session with a server-side
// statement_timeout matching the client-side timeout.
func (a *Adapter) Execute(ctx context.Context, sqlStr string, timeout time.Duration, rowCap int) core.Result[*cell.Result] {
	if a.DB == nil {
		return a.BaseSQLAdapter.Execute(ctx, sqlStr, timeout, rowCap)
	}

	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return core.Fail[*cell.Result](core.Errorf(core.CodeSQLError, "failed to acquire connection: %v", err))
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET statement_timeout = %d", timeout.Milliseconds())); err != nil {
		return core.Fail[*cell.Result](adapter.ErrorDiagnostic(err))
	}

	return a.ExecuteOn(ctx, conn, sqlStr, timeout, rowCap)
}

func isStatementTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateQueryCanceled
}

func (a *Adapter) schema() string {
	if a.Cfg.Schema != "" {
		return a.Cfg.Schema
	}
	return "public"
}

const columnsQuery = `
	SELECT
		c.table_name,
		c.column_name,
		c.data_type,
		c.is_nullable,
		c.ordinal_position,
		COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position), '')
	FROM information_schema.columns c
	JOIN information_schema.tables t
		ON t.table_schema = c.table_schema AND t.table_name = c.table_name
	WHERE c.table_schema = $1 AND t.table_type IN ('BASE TABLE', 'VIEW')
	ORDER BY c.table_name, c.ordinal_position`

const constraintsQuery = `
	SELECT
		tc.table_name,
		tc.constraint_type,
		kcu.column_name,
		COALESCE(ccu.table_name, ''),
		COALESCE(ccu.column_name, '')
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
	LEFT JOIN information_schema.constraint_column_usage ccu
		ON tc.constraint_type = 'FOREIGN KEY'
		AND ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
	WHERE tc.table_schema = $1 AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')
	ORDER BY tc.table_name, kcu.ordinal_position`

const tableStatsQuery = `
	SELECT
		c.relname,
		GREATEST(c.reltuples, 0)::bigint,
		COALESCE(obj_description(c.oid, 'pg_class'), '')
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1 AND c.relkind IN ('r', 'p', 'v', 'm')`

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
		var table, nullable string
		var col adapter.ColumnMeta
		if err := rows.Scan(&table, &col.Name, &col.Type, &nullable, &col.Position, &col.Comment); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
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
		var table, kind, column, refTable, refColumn string
		if err := rows.Scan(&table, &kind, &column, &refTable, &refColumn); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan constraint: %w", err)
		}
		switch kind {
		case "PRIMARY KEY":
			set.AddPrimaryKey(table, column)
		case "FOREIGN KEY":
			if refTable != "" && refColumn != "" {
				set.AddForeignKey(table, adapter.ForeignKey{Column: column, RefTable: refTable, RefColumn: refColumn})
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
		var estimate int64
		if err := rows.Scan(&name, &estimate, &comment); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan table statistics: %w", err)
		}
		if t, ok := set.Lookup(name); ok {
			t.RowEstimate = estimate
			t.Comment = comment
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("error iterating table statistics: %w", err)
	}

	return set.List(), nil
}

func closeRows(rows interface {
	Err() error
	Close() error
}) error {
	err := rows.Err()
	_ = rows.Close()
	return err
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
