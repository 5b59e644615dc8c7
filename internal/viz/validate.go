// Package viz validates Vega-Lite chart specifications against query
// results and derives fallback charts from the shape of a result.
package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/lumen/pkg/core"
)

var recognizedMarks = map[string]bool{
	"bar": true, "line": true, "point": true, "area": true, "rect": true,
	"text": true, "arc": true, "circle": true, "square": true, "tick": true,
}

// Valid Vega-Lite marks outside the recognized set render, but are not
// something auto-detection or the theme are tuned for.
var plausibleMarks = map[string]bool{
	"boxplot": true, "errorbar": true, "errorband": true, "trail": true,
	"rule": true, "geoshape": true, "image": true,
}

var encodingTypes = map[string]bool{
	"nominal": true, "ordinal": true, "quantitative": true, "temporal": true,
}

// Keys whose values are nested view specifications.
var compositeKeys = []string{"layer", "concat", "hconcat", "vconcat"}

// Validate checks spec structurally against the result columns: every
// unit view has a recognized mark, every encoded field names a column (or
// a field the spec derives itself through transforms or repeat), and
// encoding types are valid. The spec is returned unchanged on success.
func Validate(spec map[string]any, columns []string) core.Result[map[string]any] {
	if len(spec) == 0 {
		return core.Fail[map[string]any](mismatch(columns, "chart spec is empty"))
	}

	v := &validator{columns: columns}
	available := make(map[string]bool, len(columns))
	for _, c := range columns {
		available[c] = true
	}
	v.view(spec, available, false, "spec")

	if core.HasErrors(v.diags) {
		return core.Fail[map[string]any](v.diags...)
	}
	return core.Ok(spec, v.diags...)
}

type validator struct {
	columns []string
	diags   []core.Diagnostic
}

func (v *validator) fail(format string, args ...any) {
	v.diags = append(v.diags, mismatch(v.columns, format, args...))
}

func mismatch(columns []string, format string, args ...any) core.Diagnostic {
	return core.Errorf(core.CodeVizFieldMismatch, "%s; available columns: %s",
		fmt.Sprintf(format, args...), strings.Join(columns, ", ")).
		WithHint("Reference only columns returned by the query")
}

// view validates one (possibly composite) view. path locates it in
// messages, e.g. "spec.layer[1]".
func (v *validator) view(spec map[string]any, inherited map[string]bool, inheritedOpen bool, path string) {
	available, open := withDerived(spec, inherited)
	open = open || inheritedOpen

	composite := false
	for _, key := range compositeKeys {
		raw, ok := spec[key]
		if !ok {
			continue
		}
		composite = true
		children, ok := raw.([]any)
		if !ok {
			v.fail("%s.%s must be a list of views", path, key)
			continue
		}
		for i, child := range children {
			m, ok := child.(map[string]any)
			if !ok {
				v.fail("%s.%s[%d] must be an object", path, key, i)
				continue
			}
			v.view(m, available, open, fmt.Sprintf("%s.%s[%d]", path, key, i))
		}
	}
	if inner, ok := spec["spec"].(map[string]any); ok {
		composite = true
		v.view(inner, available, open, path+".spec")
	}

	if !composite {
		v.mark(spec, path)
	}
	if enc, ok := spec["encoding"]; ok {
		v.encoding(enc, available, open, path)
	}
}

func (v *validator) mark(spec map[string]any, path string) {
	raw, ok := spec["mark"]
	if !ok {
		v.fail("%s has no mark", path)
		return
	}
	name := raw
	if m, ok := raw.(map[string]any); ok {
		name = m["type"]
	}
	s, ok := name.(string)
	switch {
	case !ok || s == "":
		v.fail("%s has an unrecognizable mark %v", path, raw)
	case recognizedMarks[s]:
	case plausibleMarks[s]:
		v.diags = append(v.diags, core.Warnf(core.CodeVizMarkUnrecognized, "mark %q in %s is not a recognized chart type", s, path))
	default:
		v.fail("%s has an unknown mark %q", path, s)
	}
}

func (v *validator) encoding(raw any, available map[string]bool, open bool, path string) {
	enc, ok := raw.(map[string]any)
	if !ok {
		v.fail("%s.encoding must be an object", path)
		return
	}
	channels := make([]string, 0, len(enc))
	for ch := range enc {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	for _, ch := range channels {
		switch def := enc[ch].(type) {
		case map[string]any:
			v.channel(def, available, open, ch)
		case []any:
			// tooltip and detail accept lists of definitions
			for _, item := range def {
				if m, ok := item.(map[string]any); ok {
					v.channel(m, available, open, ch)
				}
			}
		}
	}
}

func (v *validator) channel(def map[string]any, available map[string]bool, open bool, ch string) {
	switch field := def["field"].(type) {
	case string:
		if !open && field != "" && !available[field] {
			v.fail("field %q in channel %s is not in the result", field, ch)
		}
	case map[string]any:
		// {"repeat": "row"} is resolved by the repeat operator
		if _, ok := field["repeat"]; !ok {
			v.fail("field in channel %s must be a column name", ch)
		}
	case nil:
	default:
		v.fail("field in channel %s must be a column name", ch)
	}

	if t, ok := def["type"]; ok {
		s, _ := t.(string)
		if !encodingTypes[s] {
			v.fail("invalid encoding type %v in channel %s", t, ch)
		}
	}

	if cond, ok := def["condition"].(map[string]any); ok {
		v.channel(cond, available, open, ch)
	}
}

// withDerived adds the fields spec's transforms produce to inherited.
// open is true when a transform produces data-dependent field names
// (pivot), in which case field references cannot be checked.
func withDerived(spec map[string]any, inherited map[string]bool) (map[string]bool, bool) {
	transforms, _ := spec["transform"].([]any)
	if len(transforms) == 0 {
		return inherited, false
	}

	out := make(map[string]bool, len(inherited)+4)
	for k := range inherited {
		out[k] = true
	}
	add := func(v any) {
		switch as := v.(type) {
		case string:
			out[as] = true
		case []any:
			for _, a := range as {
				if s, ok := a.(string); ok {
					out[s] = true
				}
			}
		}
	}

	open := false
	for _, t := range transforms {
		m, ok := t.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := m["pivot"]; ok {
			open = true
		}
		if _, ok := m["fold"]; ok {
			if _, hasAs := m["as"]; !hasAs {
				add([]any{"key", "value"})
			}
		}
		if _, ok := m["density"]; ok {
			if _, hasAs := m["as"]; !hasAs {
				add([]any{"value", "density"})
			}
		}
		add(m["as"])
		for _, key := range []string{"aggregate", "window", "joinaggregate"} {
			ops, _ := m[key].([]any)
			for _, op := range ops {
				if om, ok := op.(map[string]any); ok {
					add(om["as"])
				}
			}
		}
	}
	return out, open
}
