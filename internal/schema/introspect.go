package schema

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/lumen/pkg/adapter"
)

// Profiling limits.
const (
	SampleThreshold = 50
	MaxSamples      = 20

	defaultConcurrency = 4
)

// Introspector reads raw table metadata from a database and profiles its
// columns. The result has no roles yet; see Enrich.
type Introspector struct {
	source      adapter.Introspector
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// IntrospectorOption configures an Introspector.
type IntrospectorOption func(*Introspector)

// WithConcurrency bounds the number of profiling queries in flight.
func WithConcurrency(n int) IntrospectorOption {
	return func(i *Introspector) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// WithClock overrides the introspection timestamp source.
func WithClock(now func() time.Time) IntrospectorOption {
	return func(i *Introspector) { i.now = now }
}

// NewIntrospector creates an introspector over source.
func NewIntrospector(source adapter.Introspector, logger *slog.Logger, opts ...IntrospectorOption) *Introspector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	i := &Introspector{source: source, logger: logger, concurrency: defaultConcurrency, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Introspect lists tables and profiles every column. Profiling failures
// are logged and leave the column's hints empty; only a failure to list
// tables is returned as an error.
func (i *Introspector) Introspect(ctx context.Context) (*Context, error) {
	metas, err := i.source.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return i.build(ctx, metas)
}

// build profiles the columns of already listed tables.
func (i *Introspector) build(ctx context.Context, metas []adapter.TableMeta) (*Context, error) {
	out := &Context{
		Database:       i.source.DatabaseName(),
		IntrospectedAt: i.now().UTC().Format(time.RFC3339),
		Tables:         make([]Table, len(metas)),
	}
	if len(metas) > 0 {
		out.Schema = metas[0].Schema
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)

	for ti, meta := range metas {
		out.Tables[ti] = tableFromMeta(meta)
		for ci := range meta.Columns {
			table := &out.Tables[ti]
			col := &table.Columns[ci]
			colMeta := meta.Columns[ci]
			g.Go(func() error {
				i.profile(gctx, meta, colMeta, col)
				return nil
			})
		}
	}
	// Profiling goroutines never return errors.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.logger.Debug("schema introspected",
		slog.String("database", out.Database),
		slog.Int("tables", len(out.Tables)))
	return out, nil
}

func tableFromMeta(meta adapter.TableMeta) Table {
	pk := make(map[string]bool, len(meta.PrimaryKey))
	for _, c := range meta.PrimaryKey {
		pk[c] = true
	}
	fk := make(map[string]string, len(meta.ForeignKeys))
	for _, f := range meta.ForeignKeys {
		fk[f.Column] = f.RefTable + "." + f.RefColumn
	}

	t := Table{
		Name:        meta.Name,
		RowCount:    max(meta.RowEstimate, 0),
		Description: meta.Comment,
		Columns:     make([]Column, len(meta.Columns)),
	}
	for i, c := range meta.Columns {
		t.Columns[i] = Column{
			Name:        c.Name,
			Type:        c.Type,
			Nullable:    c.Nullable,
			Description: c.Comment,
			Role:        RoleOther,
			PrimaryKey:  pk[c.Name],
			ForeignKey:  fk[c.Name],
		}
	}
	return t
}

func (i *Introspector) profile(ctx context.Context, table adapter.TableMeta, meta adapter.ColumnMeta, col *Column) {
	opts := adapter.ProfileOptions{
		Distinct:        true,
		Samples:         IsStringType(meta.Type) || IsBooleanType(meta.Type),
		SampleThreshold: SampleThreshold,
		MaxSamples:      MaxSamples,
		Range:           IsTemporalType(meta.Type) || IsNumericType(meta.Type),
	}

	prof, err := i.source.Profile(ctx, table, meta, opts)
	if err != nil {
		i.logger.Debug("could not profile column",
			slog.String("table", table.Name),
			slog.String("column", meta.Name),
			slog.String("error", err.Error()))
	}

	if prof.DistinctCount >= 0 {
		n := prof.DistinctCount
		col.DistinctCount = &n
	}
	col.Samples = prof.Samples
	col.Min, col.Max = prof.Min, prof.Max
}
