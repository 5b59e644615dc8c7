package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lumen/internal/testutil"
	"github.com/leapstack-labs/lumen/pkg/adapter"
	"github.com/leapstack-labs/lumen/pkg/core"
)

var fixedClock = WithClock(func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) })

func TestIntrospector_Introspect(t *testing.T) {
	src := shopSource()
	in := NewIntrospector(src, testutil.NewTestLogger(t), fixedClock, WithConcurrency(2))

	got, err := in.Introspect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "shop", got.Database)
	assert.Equal(t, "main", got.Schema)
	assert.Equal(t, "2024-05-01T10:00:00Z", got.IntrospectedAt)
	require.Len(t, got.Tables, 2)

	customers := got.Tables[0]
	assert.True(t, customers.Columns[0].PrimaryKey)
	assert.Nil(t, customers.Columns[0].DistinctCount, "failed profile leaves hints empty")
	assert.Equal(t, []string{"AMER", "EMEA"}, customers.Columns[2].Samples)
	assert.Equal(t, ptr(2), customers.Columns[2].DistinctCount)

	orders := got.Tables[1]
	assert.Equal(t, "One row per order", orders.Description)
	assert.EqualValues(t, 1200, orders.RowCount)
	assert.Equal(t, "customers.id", orders.Columns[1].ForeignKey)
	assert.Equal(t, "2024-01-03", orders.Columns[3].Min)
	assert.Equal(t, "2024-12-30", orders.Columns[3].Max)

	assert.Len(t, src.calls, 7)
}

func TestIntrospector_ProfileOptions(t *testing.T) {
	src := &fakeSource{tables: []adapter.TableMeta{{Name: "t", Columns: []adapter.ColumnMeta{
		{Name: "label", Type: "TEXT"},
	}}}}
	_, err := NewIntrospector(src, nil).Introspect(context.Background())
	require.NoError(t, err)

	require.Len(t, src.calls, 1)
	assert.Equal(t, adapter.ProfileOptions{
		Distinct: true, Samples: true, SampleThreshold: SampleThreshold, MaxSamples: MaxSamples,
	}, src.calls[0])

	src = &fakeSource{tables: []adapter.TableMeta{{Name: "t", Columns: []adapter.ColumnMeta{
		{Name: "at", Type: "TIMESTAMP"},
	}}}}
	_, err = NewIntrospector(src, nil).Introspect(context.Background())
	require.NoError(t, err)
	assert.True(t, src.calls[0].Range)
	assert.False(t, src.calls[0].Samples)
}

func TestIntrospector_ListFailure(t *testing.T) {
	src := &fakeSource{failList: errors.New("connection refused")}
	_, err := NewIntrospector(src, nil).Introspect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func newService(t *testing.T, src *fakeSource, docsPath string) *Service {
	t.Helper()
	return NewService(ServiceConfig{
		Source:   src,
		DocsPath: docsPath,
		Logger:   testutil.NewTestLogger(t),
		Options:  []IntrospectorOption{fixedClock},
	})
}

func TestService_Refresh(t *testing.T) {
	svc := newService(t, shopSource(), "")

	cur, hash := svc.Current()
	assert.Nil(t, cur)
	assert.Empty(t, hash)

	res := svc.Refresh(context.Background())
	require.True(t, res.OK(), "%v", res.Diagnostics)

	cur, hash = svc.Current()
	require.NotNil(t, cur)
	assert.Same(t, res.Value, cur)
	assert.Equal(t, Hash(cur), hash)

	orders, ok := cur.Table("orders")
	require.True(t, ok)
	assert.Equal(t, RoleMeasureCandidate, orders.Columns[2].Role)
	assert.Equal(t, RoleTimeDimension, orders.Columns[3].Role)
}

func TestService_IsStale(t *testing.T) {
	ctx := context.Background()
	src := shopSource()
	svc := newService(t, src, "")

	assert.True(t, svc.IsStale(ctx, ""), "nothing published yet")

	require.True(t, svc.Refresh(ctx).OK())
	_, hash := svc.Current()

	assert.False(t, svc.IsStale(ctx, hash))
	assert.True(t, svc.IsStale(ctx, "sha256:other"))

	// Row counts drifting is not a structural change
	tables := shopSource().tables
	tables[1].RowEstimate = 5000
	src.setTables(tables)
	assert.False(t, svc.IsStale(ctx, hash))

	// A new column is
	tables = shopSource().tables
	tables[1].Columns = append(tables[1].Columns, adapter.ColumnMeta{Name: "channel", Type: "VARCHAR"})
	src.setTables(tables)
	assert.True(t, svc.IsStale(ctx, hash))

	require.True(t, svc.Refresh(ctx).OK())
	_, newHash := svc.Current()
	assert.NotEqual(t, hash, newHash)
	assert.False(t, svc.IsStale(ctx, newHash))
}

func TestService_IsStale_CatalogError(t *testing.T) {
	ctx := context.Background()
	src := shopSource()
	svc := newService(t, src, "")
	require.True(t, svc.Refresh(ctx).OK())
	_, hash := svc.Current()

	src.failList = errors.New("timeout")
	assert.False(t, svc.IsStale(ctx, hash), "keep the snapshot when the catalog cannot be read")
}

func TestService_DocsChangeMakesStale(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lumen-docs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("notes: first\n"), 0o600))

	svc := newService(t, shopSource(), path)
	require.True(t, svc.Refresh(ctx).OK())
	cur, hash := svc.Current()
	assert.Equal(t, "first", cur.AugmentedDocs)
	assert.False(t, svc.IsStale(ctx, hash))

	require.NoError(t, os.WriteFile(path, []byte("notes: second\n"), 0o600))
	assert.True(t, svc.IsStale(ctx, hash))

	require.True(t, svc.Refresh(ctx).OK())
	cur, _ = svc.Current()
	assert.Equal(t, "second", cur.AugmentedDocs)
}

func TestService_BadDocsWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lumen-docs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models: [unclosed"), 0o600))

	svc := newService(t, shopSource(), path)
	res := svc.Refresh(context.Background())
	require.True(t, res.OK())
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, core.SeverityWarning, res.Diagnostics[0].Severity)
	assert.Equal(t, core.CodeConfigError, res.Diagnostics[0].Code)
}

func TestService_RefreshFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	src := shopSource()
	svc := newService(t, src, "")
	require.True(t, svc.Refresh(ctx).OK())
	before, _ := svc.Current()

	src.failList = errors.New("connection reset")
	res := svc.Refresh(ctx)
	require.False(t, res.OK())
	d, _ := res.FirstError()
	assert.Equal(t, core.CodeSchemaStale, d.Code)

	after, _ := svc.Current()
	assert.Same(t, before, after)
}
