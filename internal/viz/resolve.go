package viz

import (
	"github.com/leapstack-labs/lumen/pkg/core"
)

// Resolution is the chart chosen for a result.
type Resolution struct {
	Spec         map[string]any
	AutoDetected bool
	Diagnostics  []core.Diagnostic
}

// Resolve validates proposed against the result and falls back to
// AutoDetect when it is missing or invalid. A fallback is a degradation,
// never a failure: it is reported with an info VIZ_FALLBACK diagnostic
// and the validation errors are kept as warnings.
func Resolve(proposed map[string]any, shape Shape) Resolution {
	if len(proposed) > 0 {
		res := Validate(proposed, shape.Columns)
		if res.OK() {
			return Resolution{Spec: res.Value, Diagnostics: res.Diagnostics}
		}

		diags := make([]core.Diagnostic, 0, len(res.Diagnostics)+1)
		for _, d := range res.Diagnostics {
			if d.Severity == core.SeverityError {
				d.Severity = core.SeverityWarning
			}
			diags = append(diags, d)
		}
		spec := AutoDetect(shape)
		diags = append(diags, core.Infof(core.CodeVizFallback, "Chart spec did not match the result; using an auto-detected %s chart", MarkType(spec)))
		return Resolution{Spec: spec, AutoDetected: true, Diagnostics: diags}
	}

	spec := AutoDetect(shape)
	return Resolution{
		Spec:         spec,
		AutoDetected: true,
		Diagnostics:  []core.Diagnostic{core.Infof(core.CodeVizFallback, "No chart spec proposed; using an auto-detected %s chart", MarkType(spec))},
	}
}
