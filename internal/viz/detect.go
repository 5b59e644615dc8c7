package viz

import (
	"encoding/json"
	"time"

	"github.com/leapstack-labs/lumen/internal/schema"
)

// Kind is the coarse class of a result column.
type Kind int

// Column kinds.
const (
	KindOther Kind = iota
	KindNumeric
	KindTemporal
	KindCategorical
)

// Shape describes a query result for auto-detection.
type Shape struct {
	Columns     []string
	ColumnTypes []string
	RowCount    int

	// Rows is an optional sample used when neither the driver type nor the
	// schema says what a column holds.
	Rows []map[string]any

	// Roles maps column names to schema roles.
	Roles map[string]schema.Role
}

// Classify returns the kind of column i. The driver type decides first;
// the schema role map refines it (numeric keys are categorical) or fills
// in when the type is unknown; sample values are the last resort.
func (s Shape) Classify(i int) Kind {
	name := s.Columns[i]
	var typ string
	if i < len(s.ColumnTypes) {
		typ = s.ColumnTypes[i]
	}
	role, hasRole := s.Roles[name]

	switch {
	case schema.IsTemporalType(typ):
		return KindTemporal
	case schema.IsNumericType(typ):
		if hasRole && role == schema.RoleKey {
			return KindCategorical
		}
		return KindNumeric
	case schema.IsStringType(typ), schema.IsBooleanType(typ):
		return KindCategorical
	}

	if hasRole {
		switch role {
		case schema.RoleTimeDimension:
			return KindTemporal
		case schema.RoleMeasureCandidate:
			return KindNumeric
		case schema.RoleCategorical, schema.RoleKey:
			return KindCategorical
		}
	}

	return kindOfValues(s.Rows, name)
}

func kindOfValues(rows []map[string]any, name string) Kind {
	for _, row := range rows {
		switch v := row[name].(type) {
		case nil:
			continue
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
			return KindNumeric
		case bool:
			return KindCategorical
		case time.Time:
			return KindTemporal
		case string:
			if looksTemporal(v) {
				return KindTemporal
			}
			return KindCategorical
		default:
			return KindOther
		}
	}
	return KindOther
}

var temporalLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

func looksTemporal(s string) bool {
	for _, layout := range temporalLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// AutoDetect picks a chart from the result shape. Rules, first match wins:
//
//  1. one row and one numeric column: single value
//  2. a temporal column and numeric columns: line (multi-series when >1)
//  3. exactly one categorical and one numeric column: horizontal bar
//  4. exactly two numeric columns: scatter
//  5. otherwise a table, with no field encodings
//
// The returned spec only references columns of the shape, so it always
// passes Validate.
func AutoDetect(shape Shape) map[string]any {
	var temporal, numeric, categorical []string
	for i, col := range shape.Columns {
		switch shape.Classify(i) {
		case KindTemporal:
			temporal = append(temporal, col)
		case KindNumeric:
			numeric = append(numeric, col)
		case KindCategorical:
			categorical = append(categorical, col)
		}
	}

	switch {
	case shape.RowCount == 1 && len(numeric) == 1:
		return singleValueSpec(numeric[0])
	case len(temporal) > 0 && len(numeric) > 1:
		return multiLineSpec(temporal[0], numeric)
	case len(temporal) > 0 && len(numeric) == 1:
		return lineSpec(temporal[0], numeric[0])
	case len(categorical) == 1 && len(numeric) == 1:
		return barSpec(categorical[0], numeric[0])
	case len(numeric) == 2 && len(temporal) == 0:
		return scatterSpec(numeric[0], numeric[1])
	}
	return TableSpec()
}

// TableSpec is the no-chart fallback.
func TableSpec() map[string]any {
	return map[string]any{"mark": "text", "lumen_table": true}
}

// IsTable reports whether spec is the table fallback.
func IsTable(spec map[string]any) bool {
	v, _ := spec["lumen_table"].(bool)
	return v
}

// MarkType returns the mark name of spec, or of its first layer.
func MarkType(spec map[string]any) string {
	if IsTable(spec) {
		return "table"
	}
	switch m := spec["mark"].(type) {
	case string:
		return m
	case map[string]any:
		s, _ := m["type"].(string)
		return s
	}
	if layers, ok := spec["layer"].([]any); ok && len(layers) > 0 {
		if first, ok := layers[0].(map[string]any); ok {
			return MarkType(first)
		}
	}
	return ""
}

func singleValueSpec(field string) map[string]any {
	return map[string]any{
		"mark": map[string]any{
			"type":       "text",
			"fontSize":   48,
			"fontWeight": 700,
			"color":      Palette[0],
		},
		"encoding": map[string]any{
			"text": map[string]any{"field": field, "type": "quantitative", "format": ",.2~f"},
		},
		"width":  "container",
		"height": 80,
	}
}

func lineSpec(x, y string) map[string]any {
	return map[string]any{
		"mark": map[string]any{"type": "line", "point": true},
		"encoding": map[string]any{
			"x":     map[string]any{"field": x, "type": "temporal"},
			"y":     map[string]any{"field": y, "type": "quantitative"},
			"color": map[string]any{"value": Palette[0]},
		},
		"width":  "container",
		"height": 300,
	}
}

func multiLineSpec(x string, measures []string) map[string]any {
	fold := make([]any, len(measures))
	for i, m := range measures {
		fold[i] = m
	}
	return map[string]any{
		"transform": []any{
			map[string]any{"fold": fold, "as": []any{"metric", "value"}},
		},
		"mark": map[string]any{"type": "line", "point": true},
		"encoding": map[string]any{
			"x":     map[string]any{"field": x, "type": "temporal"},
			"y":     map[string]any{"field": "value", "type": "quantitative"},
			"color": map[string]any{"field": "metric", "type": "nominal"},
		},
		"width":  "container",
		"height": 300,
	}
}

// barSpec is horizontal and ranked descending by the measure.
func barSpec(category, measure string) map[string]any {
	return map[string]any{
		"mark": map[string]any{"type": "bar", "cornerRadiusEnd": 3},
		"encoding": map[string]any{
			"y":     map[string]any{"field": category, "type": "nominal", "sort": "-x"},
			"x":     map[string]any{"field": measure, "type": "quantitative"},
			"color": map[string]any{"value": Palette[0]},
		},
		"width":  "container",
		"height": 300,
	}
}

func scatterSpec(x, y string) map[string]any {
	return map[string]any{
		"mark": map[string]any{"type": "point", "filled": true},
		"encoding": map[string]any{
			"x":     map[string]any{"field": x, "type": "quantitative"},
			"y":     map[string]any{"field": y, "type": "quantitative"},
			"color": map[string]any{"value": Palette[0]},
		},
		"width":  "container",
		"height": 300,
	}
}
