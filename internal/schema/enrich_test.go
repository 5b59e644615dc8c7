package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRole(t *testing.T) {
	tests := []struct {
		name     string
		col      Column
		rowCount int64
		want     Role
	}{
		{name: "primary key", col: Column{Name: "id", Type: "integer", PrimaryKey: true}, rowCount: 10, want: RoleKey},
		{name: "foreign key", col: Column{Name: "owner", Type: "text", ForeignKey: "users.id"}, rowCount: 10, want: RoleKey},
		{name: "high cardinality _id string", col: Column{Name: "session_id", Type: "varchar", DistinctCount: ptr(95)}, rowCount: 100, want: RoleKey},
		{name: "_id with unknown cardinality", col: Column{Name: "session_id", Type: "varchar"}, rowCount: 100, want: RoleKey},
		{name: "low cardinality _id string is not a key", col: Column{Name: "store_id", Type: "varchar", DistinctCount: ptr(5)}, rowCount: 100, want: RoleCategorical},
		{name: "numeric _id", col: Column{Name: "store_id", Type: "bigint", DistinctCount: ptr(5)}, rowCount: 100, want: RoleKey},
		{name: "date", col: Column{Name: "ordered_at", Type: "DATE"}, want: RoleTimeDimension},
		{name: "timestamp with zone", col: Column{Name: "created", Type: "timestamp with time zone"}, want: RoleTimeDimension},
		{name: "boolean", col: Column{Name: "active", Type: "BOOLEAN"}, want: RoleCategorical},
		{name: "dimension suffix", col: Column{Name: "order_status", Type: "text", DistinctCount: ptr(100000)}, rowCount: 100000, want: RoleCategorical},
		{name: "low cardinality string", col: Column{Name: "region", Type: "character varying(32)", DistinctCount: ptr(12)}, rowCount: 100000, want: RoleCategorical},
		{name: "repetitive string", col: Column{Name: "city", Type: "text", DistinctCount: ptr(5000)}, rowCount: 100000, want: RoleCategorical},
		{name: "unique string", col: Column{Name: "email", Type: "text", DistinctCount: ptr(99000)}, rowCount: 100000, want: RoleOther},
		{name: "string without stats", col: Column{Name: "email", Type: "text"}, rowCount: 100000, want: RoleOther},
		{name: "decimal measure", col: Column{Name: "amount", Type: "DECIMAL(18,2)"}, want: RoleMeasureCandidate},
		{name: "double precision measure", col: Column{Name: "score", Type: "double precision"}, want: RoleMeasureCandidate},
		{name: "unknown type", col: Column{Name: "payload", Type: "jsonb"}, want: RoleOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRole(tt.col, tt.rowCount))
		})
	}
}

func TestSuggestAggregation(t *testing.T) {
	tests := map[string]string{
		"revenue":        "sum",
		"total_cost":     "sum",
		"quantity":       "sum",
		"review_rating":  "avg",
		"conversion_pct": "avg",
		"duration_sec":   "avg",
		"widgets":        "sum",
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, SuggestAggregation(name))
		})
	}
}

func TestEnrich(t *testing.T) {
	raw := &Context{
		Database: "shop",
		Tables: []Table{{
			Name:     "orders",
			RowCount: 1000,
			Columns: []Column{
				{Name: "id", Type: "integer", PrimaryKey: true},
				{Name: "amount", Type: "numeric"},
				{Name: "status", Type: "text", DistinctCount: ptr(4), Samples: []string{"new", "paid"}},
			},
		}},
	}

	got := Enrich(raw)
	require.NotNil(t, got)

	cols := got.Tables[0].Columns
	assert.Equal(t, RoleKey, cols[0].Role)
	assert.Equal(t, RoleMeasureCandidate, cols[1].Role)
	assert.Equal(t, "sum", cols[1].SuggestedAgg)
	assert.Equal(t, RoleCategorical, cols[2].Role)
	assert.Empty(t, cols[2].SuggestedAgg)

	// Input untouched
	assert.Empty(t, raw.Tables[0].Columns[1].Role)

	// Deterministic
	assert.Equal(t, got, Enrich(raw))
	assert.Nil(t, Enrich(nil))
}

func TestRoles(t *testing.T) {
	c := &Context{Tables: []Table{
		{Name: "a", Columns: []Column{{Name: "id", Role: RoleKey}, {Name: "region", Role: RoleCategorical}}},
		{Name: "b", Columns: []Column{{Name: "region", Role: RoleOther}, {Name: "amount", Role: RoleMeasureCandidate}}},
	}}

	assert.Equal(t, map[string]Role{
		"id":     RoleKey,
		"region": RoleCategorical,
		"amount": RoleMeasureCandidate,
	}, c.Roles())

	tbl, ok := c.Table("b")
	require.True(t, ok)
	assert.Equal(t, "b", tbl.Name)

	_, ok = c.Table("missing")
	assert.False(t, ok)
}

func TestTypePredicates(t *testing.T) {
	assert.Equal(t, "decimal", NormalizeType(" DECIMAL(18, 3) "))
	assert.True(t, IsNumericType("INT8"))
	assert.True(t, IsNumericType("hugeint"))
	assert.True(t, IsTemporalType("TIMESTAMPTZ"))
	assert.True(t, IsStringType("character(2)"))
	assert.True(t, IsBooleanType("bool"))
	assert.False(t, IsNumericType("text"))
	assert.False(t, IsTemporalType("interval"))
}
