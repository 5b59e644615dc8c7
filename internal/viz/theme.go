package viz

import "fmt"

// Theme names accepted in configuration.
const (
	ThemeDefault = "lumen-default"
	ThemeNone    = "none"
)

// SchemaURL is the Vega-Lite JSON schema every emitted spec declares.
const SchemaURL = "https://vega.github.io/schema/vega-lite/v5.json"

// Palette is the lumen categorical color range.
var Palette = []string{
	"#3b5998", "#c67a3c", "#5a9e6f", "#8b6caf",
	"#c75a5a", "#4a9cc2", "#d4a843", "#7d7d7d",
}

const font = "Inter, system-ui, sans-serif"

// themeConfig returns a fresh copy of the lumen Vega-Lite config.
func themeConfig() map[string]any {
	category := make([]any, len(Palette))
	for i, c := range Palette {
		category[i] = c
	}
	return map[string]any{
		"font": font,
		"axis": map[string]any{
			"labelFont":       font,
			"titleFont":       font,
			"labelFontSize":   11,
			"titleFontSize":   12,
			"titleFontWeight": 600,
			"gridDash":        []any{3, 3},
			"gridColor":       "#e0e0e0",
			"domainColor":     "#ccc",
			"tickColor":       "#ccc",
			"labelLimit":      150,
			"titlePadding":    12,
		},
		"legend": map[string]any{
			"labelFont":     font,
			"titleFont":     font,
			"labelFontSize": 11,
			"titleFontSize": 12,
		},
		"title": map[string]any{
			"font":       font,
			"fontSize":   14,
			"fontWeight": 600,
		},
		"bar":        map[string]any{"cornerRadiusEnd": 3},
		"line":       map[string]any{"strokeWidth": 2, "point": map[string]any{"size": 40}},
		"point":      map[string]any{"size": 60, "opacity": 0.7},
		"area":       map[string]any{"opacity": 0.7, "line": true},
		"range":      map[string]any{"category": category},
		"view":       map[string]any{"strokeWidth": 0},
		"padding":    map[string]any{"row": 10, "column": 10},
		"background": "transparent",
	}
}

// ValidateTheme rejects unknown theme names.
func ValidateTheme(name string) error {
	switch name {
	case "", ThemeDefault, ThemeNone:
		return nil
	}
	return fmt.Errorf("unknown theme %q (available: %s, %s)", name, ThemeDefault, ThemeNone)
}

// ApplyTheme returns a copy of spec with the theme merged into its config
// and $schema set. Keys the spec already sets win over theme keys, one
// level deep. The table fallback is returned as a copy without changes.
func ApplyTheme(spec map[string]any, theme string) map[string]any {
	out := make(map[string]any, len(spec)+2)
	for k, v := range spec {
		out[k] = v
	}
	if IsTable(out) {
		return out
	}
	if _, ok := out["$schema"]; !ok {
		out["$schema"] = SchemaURL
	}
	if theme == ThemeNone {
		return out
	}

	existing, _ := spec["config"].(map[string]any)
	merged := make(map[string]any, len(existing))
	for k, v := range existing {
		merged[k] = v
	}
	for key, value := range themeConfig() {
		current, ok := merged[key]
		if !ok {
			merged[key] = value
			continue
		}
		themeSection, isMap := value.(map[string]any)
		userSection, userIsMap := current.(map[string]any)
		if isMap && userIsMap {
			section := make(map[string]any, len(themeSection)+len(userSection))
			for k, v := range themeSection {
				section[k] = v
			}
			for k, v := range userSection {
				section[k] = v
			}
			merged[key] = section
		}
	}
	out["config"] = merged
	return out
}
