package viz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lumen/pkg/core"
)

func TestApplyTheme(t *testing.T) {
	in := map[string]any{
		"mark": "bar",
		"config": map[string]any{
			"background": "#fff",
			"axis":       map[string]any{"labelFontSize": 14},
		},
	}

	out := ApplyTheme(in, ThemeDefault)

	assert.Equal(t, SchemaURL, out["$schema"])
	cfg := out["config"].(map[string]any)
	assert.Equal(t, "#fff", cfg["background"], "user keys win")
	axis := cfg["axis"].(map[string]any)
	assert.Equal(t, 14, axis["labelFontSize"])
	assert.Equal(t, font, axis["labelFont"], "theme fills the rest of a section")
	assert.Equal(t, "Inter, system-ui, sans-serif", cfg["font"])

	category := cfg["range"].(map[string]any)["category"].([]any)
	require.Len(t, category, 8)
	assert.Equal(t, "#3b5998", category[0])

	// Input untouched
	assert.NotContains(t, in, "$schema")
	assert.Len(t, in["config"].(map[string]any), 2)
	assert.Len(t, in["config"].(map[string]any)["axis"].(map[string]any), 1)
}

func TestApplyTheme_KeepsSchema(t *testing.T) {
	out := ApplyTheme(map[string]any{"mark": "bar", "$schema": "custom"}, ThemeDefault)
	assert.Equal(t, "custom", out["$schema"])
}

func TestApplyTheme_None(t *testing.T) {
	out := ApplyTheme(map[string]any{"mark": "bar"}, ThemeNone)
	assert.Equal(t, SchemaURL, out["$schema"])
	assert.NotContains(t, out, "config")
}

func TestApplyTheme_Table(t *testing.T) {
	assert.Equal(t, TableSpec(), ApplyTheme(TableSpec(), ThemeDefault))
}

func TestValidateTheme(t *testing.T) {
	assert.NoError(t, ValidateTheme(""))
	assert.NoError(t, ValidateTheme(ThemeDefault))
	assert.NoError(t, ValidateTheme(ThemeNone))
	assert.Error(t, ValidateTheme("solarized"))
}

func TestTrendChart(t *testing.T) {
	chart := TrendChart("month", "revenue")

	res := Validate(chart, []string{"month", "revenue", "period_type"})
	require.True(t, res.OK(), "%v", res.Diagnostics)

	layers := chart["layer"].([]any)
	require.Len(t, layers, 2)

	actual := layers[0].(map[string]any)
	assert.Equal(t, "datum.period_type === 'actual'", actual["transform"].([]any)[0].(map[string]any)["filter"])
	assert.Equal(t, "#3b5998", actual["encoding"].(map[string]any)["color"].(map[string]any)["value"])

	projected := layers[1].(map[string]any)
	mark := projected["mark"].(map[string]any)
	assert.Equal(t, []any{6, 4}, mark["strokeDash"])
	assert.Equal(t, "diamond", mark["point"].(map[string]any)["shape"])
	assert.Equal(t, "#c67a3c", projected["encoding"].(map[string]any)["color"].(map[string]any)["value"])

	assert.False(t, Validate(chart, []string{"month"}).OK())
}

func TestResolve(t *testing.T) {
	shape := Shape{Columns: []string{"name", "revenue"}, ColumnTypes: []string{"text", "numeric"}, RowCount: 10}

	t.Run("valid proposal kept", func(t *testing.T) {
		proposed := map[string]any{
			"mark":     "arc",
			"encoding": map[string]any{"theta": map[string]any{"field": "revenue", "type": "quantitative"}},
		}
		r := Resolve(proposed, shape)
		assert.False(t, r.AutoDetected)
		assert.Equal(t, proposed, r.Spec)
		assert.Empty(t, r.Diagnostics)
	})

	t.Run("invalid proposal falls back", func(t *testing.T) {
		proposed := map[string]any{
			"mark":     "line",
			"encoding": map[string]any{"x": map[string]any{"field": "month", "type": "temporal"}},
		}
		r := Resolve(proposed, shape)
		assert.True(t, r.AutoDetected)
		assert.Equal(t, "bar", MarkType(r.Spec))

		require.Len(t, r.Diagnostics, 2)
		assert.Equal(t, core.CodeVizFieldMismatch, r.Diagnostics[0].Code)
		assert.Equal(t, core.SeverityWarning, r.Diagnostics[0].Severity)
		assert.Equal(t, core.CodeVizFallback, r.Diagnostics[1].Code)
		assert.Equal(t, core.SeverityInfo, r.Diagnostics[1].Severity)
		assert.False(t, core.HasErrors(r.Diagnostics))
	})

	t.Run("missing proposal falls back", func(t *testing.T) {
		r := Resolve(nil, shape)
		assert.True(t, r.AutoDetected)
		require.Len(t, r.Diagnostics, 1)
		assert.Equal(t, core.CodeVizFallback, r.Diagnostics[0].Code)
	})

	t.Run("plausible mark warning kept", func(t *testing.T) {
		r := Resolve(map[string]any{"mark": "rule"}, shape)
		assert.False(t, r.AutoDetected)
		require.Len(t, r.Diagnostics, 1)
		assert.Equal(t, core.CodeVizMarkUnrecognized, r.Diagnostics[0].Code)
	})
}
