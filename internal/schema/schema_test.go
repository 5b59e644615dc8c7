package schema

import (
	"context"
	"errors"
	"sync"

	"github.com/leapstack-labs/lumen/pkg/adapter"
)

// fakeSource is an in-memory adapter.Introspector.
type fakeSource struct {
	mu       sync.Mutex
	name     string
	tables   []adapter.TableMeta
	profiles map[string]adapter.ColumnProfile
	failList error
	calls    []adapter.ProfileOptions
}

func (f *fakeSource) DatabaseName() string { return f.name }

func (f *fakeSource) Tables(context.Context) ([]adapter.TableMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	return append([]adapter.TableMeta(nil), f.tables...), nil
}

func (f *fakeSource) Profile(_ context.Context, t adapter.TableMeta, c adapter.ColumnMeta, opts adapter.ProfileOptions) (adapter.ColumnProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	p, ok := f.profiles[t.Name+"."+c.Name]
	if !ok {
		return adapter.ColumnProfile{DistinctCount: -1}, errors.New("no profile")
	}
	return p, nil
}

func (f *fakeSource) setTables(tables []adapter.TableMeta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables = tables
}

func shopSource() *fakeSource {
	return &fakeSource{
		name: "shop",
		tables: []adapter.TableMeta{
			{
				Schema: "main", Name: "customers", RowEstimate: 3,
				Columns: []adapter.ColumnMeta{
					{Name: "id", Type: "INTEGER", Position: 1},
					{Name: "name", Type: "VARCHAR", Position: 2},
					{Name: "region", Type: "VARCHAR", Nullable: true, Position: 3},
				},
				PrimaryKey: []string{"id"},
			},
			{
				Schema: "main", Name: "orders", RowEstimate: 1200, Comment: "One row per order",
				Columns: []adapter.ColumnMeta{
					{Name: "id", Type: "INTEGER", Position: 1},
					{Name: "customer_id", Type: "INTEGER", Position: 2},
					{Name: "amount", Type: "DECIMAL(18,2)", Position: 3},
					{Name: "ordered_at", Type: "DATE", Position: 4},
				},
				PrimaryKey:  []string{"id"},
				ForeignKeys: []adapter.ForeignKey{{Column: "customer_id", RefTable: "customers", RefColumn: "id"}},
			},
		},
		profiles: map[string]adapter.ColumnProfile{
			"customers.region":  {DistinctCount: 2, Samples: []string{"AMER", "EMEA"}},
			"customers.name":    {DistinctCount: 3, Samples: []string{"Acme", "Globex", "Initech"}},
			"orders.ordered_at": {DistinctCount: 300, Min: "2024-01-03", Max: "2024-12-30"},
			"orders.amount":     {DistinctCount: 900, Min: "1.50", Max: "999.00"},
		},
	}
}

func ptr(n int64) *int64 { return &n }
