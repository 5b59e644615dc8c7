package whatif

import "fmt"

// Caveats returns the fixed assumption statements for technique.
func Caveats(technique string, p Params) []string {
	if technique != Technique {
		return []string{"Unknown technique; no specific caveats available."}
	}
	periods, interval := p.PeriodsAhead, p.PeriodInterval
	if periods == 0 {
		periods = 3
	}
	if interval == "" {
		interval = "month"
	}
	return []string{
		fmt.Sprintf("Projects %d %s(s) ahead using linear regression on historical data.", periods, interval),
		"Assumes the historical trend continues unchanged; external shocks are not modeled.",
		"R-squared (R²) indicates fit quality: values below 0.5 suggest weak predictive power.",
		"Extrapolation beyond observed data ranges carries increasing uncertainty.",
	}
}
