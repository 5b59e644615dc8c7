// Package adapter provides the read-only database boundary used by lumen.
//
// This package contains the contract every database adapter implements:
// executing a validated query under a timeout and row cap, and describing
// the database for schema introspection. Concrete adapters live in
// pkg/adapters/ subdirectories and register themselves by name.
package adapter

import (
	"context"
	"time"

	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// Config holds configuration for connecting to a database.
type Config struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Executor runs a validated query. Implementations run under a read-only
// session, abort the query after timeout and keep at most rowCap rows.
//
// Failures are reported as diagnostics: SQL_TIMEOUT when the timeout fires,
// SQL_ERROR otherwise. EMPTY_RESULT and RESULT_TRUNCATED are warnings.
type Executor interface {
	Execute(ctx context.Context, sql string, timeout time.Duration, rowCap int) core.Result[*cell.Result]
}

// Introspector describes the database for schema context assembly.
type Introspector interface {
	// DatabaseName identifies the connected database.
	DatabaseName() string

	// Tables lists the user tables with their columns and constraints.
	Tables(ctx context.Context) ([]TableMeta, error)

	// Profile gathers value statistics for one column.
	Profile(ctx context.Context, table TableMeta, column ColumnMeta, opts ProfileOptions) (ColumnProfile, error)
}

// Adapter is a connected database.
type Adapter interface {
	Executor
	Introspector

	// Connect establishes a read-only connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Name returns the registered adapter type.
	Name() string
}

// TableMeta describes one table.
type TableMeta struct {
	Schema      string
	Name        string
	Comment     string
	RowEstimate int64
	Columns     []ColumnMeta
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// QualifiedName returns schema.name, or name when the schema is empty.
func (t TableMeta) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ColumnMeta describes one column.
type ColumnMeta struct {
	Name     string
	Type     string
	Nullable bool
	Comment  string
	Position int
}

// ForeignKey links a column to a column of another table.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// ProfileOptions bounds the statistics gathered for a column.
type ProfileOptions struct {
	// Distinct counts distinct values.
	Distinct bool
	// Samples collects up to MaxSamples distinct values when the column has
	// at most SampleThreshold distinct values.
	Samples         bool
	SampleThreshold int64
	MaxSamples      int
	// Range collects MIN and MAX.
	Range bool
}

// ColumnProfile holds gathered column statistics. DistinctCount is -1 when
// it was not gathered.
type ColumnProfile struct {
	DistinctCount int64
	Samples       []string
	Min           string
	Max           string
}
