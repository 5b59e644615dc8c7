package viz

// TrendChart builds the layered chart for a trend projection: actual
// periods as a solid line, projected periods dashed. Both layers filter on
// the period_type column of the projection result.
func TrendChart(timeField, measure string) map[string]any {
	layer := func(periodType, color string, mark map[string]any) map[string]any {
		return map[string]any{
			"transform": []any{
				map[string]any{"filter": "datum.period_type === '" + periodType + "'"},
			},
			"mark": mark,
			"encoding": map[string]any{
				"x":     map[string]any{"field": timeField, "type": "temporal"},
				"y":     map[string]any{"field": measure, "type": "quantitative"},
				"color": map[string]any{"value": color},
			},
		}
	}

	return map[string]any{
		"layer": []any{
			layer("actual", Palette[0], map[string]any{
				"type":        "line",
				"point":       map[string]any{"shape": "circle", "size": 40},
				"strokeWidth": 2,
			}),
			layer("projected", Palette[1], map[string]any{
				"type":        "line",
				"point":       map[string]any{"shape": "diamond", "size": 50},
				"strokeWidth": 2,
				"strokeDash":  []any{6, 4},
			}),
		},
		"width":  "container",
		"height": 300,
	}
}
