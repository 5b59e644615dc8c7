package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Execute, DatabaseName and Profile implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger

	// IsTimeout reports driver errors that mean the server cancelled the
	// statement because of its own timeout.
	IsTimeout func(error) bool
}

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// DatabaseName returns the configured database name, or the base name of
// the database file for file-backed engines.
func (b *BaseSQLAdapter) DatabaseName() string {
	if b.Cfg.Database != "" {
		return b.Cfg.Database
	}
	if b.Cfg.Path != "" {
		return strings.TrimSuffix(filepath.Base(b.Cfg.Path), filepath.Ext(b.Cfg.Path))
	}
	return "memory"
}

// Execute runs sqlStr on the shared connection pool.
func (b *BaseSQLAdapter) Execute(ctx context.Context, sqlStr string, timeout time.Duration, rowCap int) core.Result[*cell.Result] {
	if b.DB == nil {
		return core.Fail[*cell.Result](core.Errorf(core.CodeSQLError, "database connection not established"))
	}
	return b.ExecuteOn(ctx, b.DB, sqlStr, timeout, rowCap)
}

// ExecuteOn runs sqlStr on q under a client-side timeout and converts the
// outcome into a result with diagnostics.
func (b *BaseSQLAdapter) ExecuteOn(ctx context.Context, q Queryer, sqlStr string, timeout time.Duration, rowCap int) core.Result[*cell.Result] {
	qctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := q.QueryContext(qctx, sqlStr)
	if err != nil {
		return core.Fail[*cell.Result](b.classify(ctx, qctx, err, timeout))
	}
	defer func() { _ = rows.Close() }()

	res, err := ScanRows(rows, rowCap)
	if err != nil {
		return core.Fail[*cell.Result](b.classify(ctx, qctx, err, timeout))
	}
	res.ExecutionTimeMS = time.Since(start).Milliseconds()

	if b.Logger != nil {
		b.Logger.Debug("query executed",
			slog.Int("rows", res.RowCount),
			slog.Bool("truncated", res.Truncated),
			slog.Int64("elapsed_ms", res.ExecutionTimeMS))
	}

	var diags []core.Diagnostic
	if res.RowCount == 0 {
		diags = append(diags, core.Warnf(core.CodeEmptyResult, "Query returned no rows"))
	}
	if res.Truncated {
		diags = append(diags, core.Warnf(core.CodeResultTruncated, "Results truncated to %d rows", rowCap).
			WithHint("Add a LIMIT clause to your query"))
	}
	res.Diagnostics = diags
	return core.Ok(res, diags...)
}

// ScanRows reads every row from rows. At most rowCap rows are kept
// (rowCap <= 0 keeps all); RowCount and DataHash cover every row read.
func ScanRows(rows *sql.Rows, rowCap int) (*cell.Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	types := make([]string, len(columns))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			if i < len(types) {
				types[i] = strings.ToLower(ct.DatabaseTypeName())
			}
		}
	}

	res := &cell.Result{
		Columns:     columns,
		ColumnTypes: types,
		Rows:        []map[string]any{},
	}
	hasher := cell.NewDataHasher(columns)

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = cell.Normalize(values[i])
		}
		hasher.Add(row)
		res.RowCount++

		if rowCap <= 0 || len(res.Rows) < rowCap {
			res.Rows = append(res.Rows, row)
		} else {
			res.Truncated = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res.DataHash = hasher.Sum()
	return res, nil
}

func (b *BaseSQLAdapter) classify(ctx, qctx context.Context, err error, timeout time.Duration) core.Diagnostic {
	timedOut := errors.Is(err, context.DeadlineExceeded) ||
		(ctx.Err() == nil && errors.Is(qctx.Err(), context.DeadlineExceeded)) ||
		(b.IsTimeout != nil && b.IsTimeout(err))

	if timedOut {
		return TimeoutDiagnostic(timeout)
	}
	if ctx.Err() != nil {
		return core.Errorf(core.CodeSQLError, "query cancelled: %v", ctx.Err())
	}
	return ErrorDiagnostic(err)
}

// TimeoutDiagnostic reports a query that exceeded its timeout.
func TimeoutDiagnostic(timeout time.Duration) core.Diagnostic {
	return core.Errorf(core.CodeSQLTimeout, "Query exceeded %s timeout", formatTimeout(timeout)).
		WithHint("Simplify the query or add filters")
}

// ErrorDiagnostic reports a database error with a hint for common causes.
func ErrorDiagnostic(err error) core.Diagnostic {
	d := core.Errorf(core.CodeSQLError, "SQL execution error: %v", err)
	if hint := SuggestFix(err.Error()); hint != "" {
		d = d.WithHint(hint)
	}
	return d
}

// SuggestFix maps common database error messages to a correction hint.
func SuggestFix(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "column") && (strings.Contains(lower, "does not exist") || strings.Contains(lower, "not found") || strings.Contains(lower, "no such column")):
		return "Check column names against the schema"
	case strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "no such table"),
		strings.Contains(lower, "table with name") && strings.Contains(lower, "does not exist"):
		return "Check table names against the schema"
	case strings.Contains(lower, "syntax error"):
		return "Check SQL syntax"
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "read-only"), strings.Contains(lower, "readonly"):
		return "The database user lacks permissions for this operation"
	}
	return ""
}

func formatTimeout(d time.Duration) string {
	if d > 0 && d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}

// QuoteIdent double-quotes an identifier, escaping embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteTable returns the quoted, schema-qualified table reference.
func QuoteTable(t TableMeta) string {
	if t.Schema == "" {
		return QuoteIdent(t.Name)
	}
	return QuoteIdent(t.Schema) + "." + QuoteIdent(t.Name)
}

// Profile gathers column statistics with portable SQL.
func (b *BaseSQLAdapter) Profile(ctx context.Context, table TableMeta, column ColumnMeta, opts ProfileOptions) (ColumnProfile, error) {
	prof := ColumnProfile{DistinctCount: -1}
	if b.DB == nil {
		return prof, fmt.Errorf("database connection not established")
	}

	tbl := QuoteTable(table)
	col := QuoteIdent(column.Name)

	if opts.Distinct || opts.Samples {
		q := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", col, tbl) //nolint:gosec // identifiers are quoted
		if err := b.DB.QueryRowContext(ctx, q).Scan(&prof.DistinctCount); err != nil {
			return prof, fmt.Errorf("failed to count distinct values of %s.%s: %w", table.Name, column.Name, err)
		}
	}

	if opts.Samples && prof.DistinctCount >= 0 && prof.DistinctCount <= opts.SampleThreshold {
		limit := opts.MaxSamples
		if limit <= 0 {
			limit = 20
		}
		q := fmt.Sprintf("SELECT DISTINCT CAST(%s AS VARCHAR) FROM %s WHERE %s IS NOT NULL ORDER BY 1 LIMIT %d", col, tbl, col, limit) //nolint:gosec // identifiers are quoted
		rows, err := b.DB.QueryContext(ctx, q)
		if err != nil {
			return prof, fmt.Errorf("failed to sample values of %s.%s: %w", table.Name, column.Name, err)
		}
		for rows.Next() {
			var v sql.NullString
			if err := rows.Scan(&v); err != nil {
				_ = rows.Close()
				return prof, fmt.Errorf("failed to scan sample value: %w", err)
			}
			if v.Valid {
				prof.Samples = append(prof.Samples, v.String)
			}
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return prof, fmt.Errorf("error iterating sample values: %w", err)
		}
	}

	if opts.Range {
		var lo, hi sql.NullString
		q := fmt.Sprintf("SELECT CAST(MIN(%s) AS VARCHAR), CAST(MAX(%s) AS VARCHAR) FROM %s", col, col, tbl) //nolint:gosec // identifiers are quoted
		if err := b.DB.QueryRowContext(ctx, q).Scan(&lo, &hi); err != nil {
			return prof, fmt.Errorf("failed to read range of %s.%s: %w", table.Name, column.Name, err)
		}
		prof.Min, prof.Max = lo.String, hi.String
	}

	return prof, nil
}
