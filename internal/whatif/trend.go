// Package whatif builds projection queries on top of an answered question.
//
// The only technique is trend extrapolation: the baseline query is wrapped
// in SQL that fits a least-squares line of the measure over time and
// appends generated future periods. Rows carry a period_type column of
// 'actual' or 'projected'.
package whatif

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/lumen/pkg/core"
)

// Technique names the trend extrapolation technique.
const Technique = "trend_extrapolation"

// MaxPeriods bounds PeriodsAhead.
const MaxPeriods = 24

// Dialects understood by BuildTrendSQL. They match adapter names.
const (
	DialectPostgres = "postgres"
	DialectDuckDB   = "duckdb"
	DialectSQLite   = "sqlite"
)

// PeriodColumn is the column distinguishing actual from projected rows.
const PeriodColumn = "period_type"

var intervals = map[string]bool{"day": true, "week": true, "month": true, "quarter": true, "year": true}

// Params configures a trend projection.
type Params struct {
	TimeField      string `json:"time_field"`
	Measure        string `json:"measure"`
	PeriodsAhead   int    `json:"periods_ahead"`
	PeriodInterval string `json:"period_interval"`
}

// TrendSQL is a built projection query.
type TrendSQL struct {
	SQL         string `json:"sql"`
	BaselineSQL string `json:"baseline_sql"`
	Params
}

// Validate checks the interval and period count.
func (p Params) Validate() []core.Diagnostic {
	if !intervals[p.PeriodInterval] {
		return []core.Diagnostic{core.Errorf(core.CodeTrendInvalidInterval,
			"Invalid period_interval '%s'", p.PeriodInterval).
			WithHint("Must be one of: " + strings.Join(Intervals(), ", "))}
	}
	if p.PeriodsAhead < 1 || p.PeriodsAhead > MaxPeriods {
		return []core.Diagnostic{core.Errorf(core.CodeTrendInvalidPeriods,
			"periods_ahead must be 1-%d, got %d", MaxPeriods, p.PeriodsAhead)}
	}
	if strings.TrimSpace(p.TimeField) == "" || strings.TrimSpace(p.Measure) == "" {
		return []core.Diagnostic{core.Errorf(core.CodeTrendFailed, "trend projection needs a time field and a measure")}
	}
	return nil
}

// Intervals lists the accepted period intervals in sorted order.
func Intervals() []string {
	out := make([]string, 0, len(intervals))
	for k := range intervals {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// BuildTrendSQL wraps baseline with a linear regression of the measure over
// the time field and p.PeriodsAhead projected periods.
func BuildTrendSQL(dialect, baseline string, p Params) core.Result[TrendSQL] {
	if diags := p.Validate(); len(diags) > 0 {
		return core.Fail[TrendSQL](diags...)
	}

	base := strings.TrimRight(strings.TrimSpace(baseline), ";")
	t, m := quoteIdent(p.TimeField), quoteIdent(p.Measure)

	var sql string
	switch dialect {
	case DialectPostgres, DialectDuckDB:
		sql = epochTrendSQL(base, t, m, p)
	case DialectSQLite:
		sql = julianTrendSQL(base, t, m, p)
	default:
		return core.Fail[TrendSQL](core.Errorf(core.CodeTrendFailed,
			"trend projection is not supported for %q databases", dialect))
	}

	return core.Ok(TrendSQL{SQL: sql, BaselineSQL: base, Params: p})
}

// epochTrendSQL uses regr_slope/regr_intercept/regr_r2 over days since the
// epoch and generate_series for the future periods.
func epochTrendSQL(base, t, m string, p Params) string {
	step := pgInterval(p.PeriodInterval)
	epoch := fmt.Sprintf("EXTRACT(EPOCH FROM %s::timestamp) / 86400.0", t)
	measure := m + "::double precision"
	futureTS := fmt.Sprintf("lp.max_time + (gs.n * INTERVAL '%s')", step)
	futureEpoch := fmt.Sprintf("EXTRACT(EPOCH FROM (%s)::timestamp) / 86400.0", futureTS)
	bridgeEpoch := "EXTRACT(EPOCH FROM lp.max_time::timestamp) / 86400.0"

	var b strings.Builder
	fmt.Fprintf(&b, "WITH baseline AS (SELECT * FROM (%s) AS _b),\n", base)
	b.WriteString("regression AS (\n  SELECT\n")
	fmt.Fprintf(&b, "    regr_slope(%s, %s) AS slope,\n", measure, epoch)
	fmt.Fprintf(&b, "    regr_intercept(%s, %s) AS intercept,\n", measure, epoch)
	fmt.Fprintf(&b, "    regr_r2(%s, %s) AS r_squared,\n", measure, epoch)
	b.WriteString("    COUNT(*) AS n_points\n  FROM baseline\n")
	fmt.Fprintf(&b, "  WHERE %s IS NOT NULL AND %s IS NOT NULL\n),\n", m, t)
	writeActuals(&b, t, m)
	fmt.Fprintf(&b, "last_period AS (\n  SELECT MAX(%s::timestamp) AS max_time FROM baseline\n),\n", t)
	b.WriteString("bridge AS (\n  SELECT\n")
	fmt.Fprintf(&b, "    lp.max_time AS %s,\n", t)
	fmt.Fprintf(&b, "    r.slope * (%s) + r.intercept AS %s,\n", bridgeEpoch, m)
	b.WriteString("    'projected' AS period_type\n  FROM last_period lp\n  CROSS JOIN regression r\n  WHERE lp.max_time IS NOT NULL\n),\n")
	b.WriteString("future_periods AS (\n  SELECT\n")
	fmt.Fprintf(&b, "    (%s)::timestamp AS %s,\n", futureTS, t)
	fmt.Fprintf(&b, "    r.slope * (%s) + r.intercept AS %s,\n", futureEpoch, m)
	b.WriteString("    'projected' AS period_type\n")
	fmt.Fprintf(&b, "  FROM generate_series(1, %d) AS gs(n)\n", p.PeriodsAhead)
	b.WriteString("  CROSS JOIN regression r\n  CROSS JOIN last_period lp\n  WHERE lp.max_time IS NOT NULL\n)\n")
	writeUnion(&b, t)
	return b.String()
}

// julianTrendSQL computes the least-squares fit from running sums over
// julian days and generates future periods with a recursive CTE.
func julianTrendSQL(base, t, m string, p Params) string {
	n, unit := sqliteStep(p.PeriodInterval)
	offset := fmt.Sprintf("'+' || (s.n * %d) || ' %s'", n, unit)
	sxy := "(cnt * sxy - sx * sy)"
	sxx := "(cnt * sxx - sx * sx)"
	syy := "(cnt * syy - sy * sy)"

	var b strings.Builder
	fmt.Fprintf(&b, "WITH RECURSIVE baseline AS (SELECT * FROM (%s) AS _b),\n", base)
	b.WriteString("points AS (\n")
	fmt.Fprintf(&b, "  SELECT julianday(%s) AS x, CAST(%s AS REAL) AS y\n  FROM baseline\n", t, m)
	fmt.Fprintf(&b, "  WHERE %s IS NOT NULL AND %s IS NOT NULL\n),\n", m, t)
	b.WriteString("sums AS (\n  SELECT COUNT(*) AS cnt, SUM(x) AS sx, SUM(y) AS sy, SUM(x * x) AS sxx, SUM(x * y) AS sxy, SUM(y * y) AS syy\n  FROM points\n),\n")
	b.WriteString("regression AS (\n  SELECT\n")
	fmt.Fprintf(&b, "    %s / NULLIF(%s, 0) AS slope,\n", sxy, sxx)
	fmt.Fprintf(&b, "    (sy - %s / NULLIF(%s, 0) * sx) / NULLIF(cnt, 0) AS intercept,\n", sxy, sxx)
	fmt.Fprintf(&b, "    %s * %s / NULLIF(%s * %s, 0) AS r_squared,\n", sxy, sxy, sxx, syy)
	b.WriteString("    cnt AS n_points\n  FROM sums\n),\n")
	writeActuals(&b, t, m)
	fmt.Fprintf(&b, "last_period AS (\n  SELECT MAX(julianday(%s)) AS max_jd FROM baseline\n),\n", t)
	fmt.Fprintf(&b, "steps(n) AS (\n  SELECT 1\n  UNION ALL\n  SELECT n + 1 FROM steps WHERE n < %d\n),\n", p.PeriodsAhead)
	b.WriteString("bridge AS (\n  SELECT\n")
	fmt.Fprintf(&b, "    date(lp.max_jd) AS %s,\n", t)
	fmt.Fprintf(&b, "    r.slope * lp.max_jd + r.intercept AS %s,\n", m)
	b.WriteString("    'projected' AS period_type\n  FROM last_period lp\n  CROSS JOIN regression r\n  WHERE lp.max_jd IS NOT NULL\n),\n")
	b.WriteString("future_periods AS (\n  SELECT\n")
	fmt.Fprintf(&b, "    date(lp.max_jd, %s) AS %s,\n", offset, t)
	fmt.Fprintf(&b, "    r.slope * julianday(date(lp.max_jd, %s)) + r.intercept AS %s,\n", offset, m)
	b.WriteString("    'projected' AS period_type\n")
	b.WriteString("  FROM steps s\n  CROSS JOIN regression r\n  CROSS JOIN last_period lp\n  WHERE lp.max_jd IS NOT NULL\n)\n")
	writeUnion(&b, t)
	return b.String()
}

func writeActuals(b *strings.Builder, t, m string) {
	fmt.Fprintf(b, "actuals AS (\n  SELECT\n    %s,\n    %s,\n    'actual' AS period_type\n  FROM baseline\n),\n", t, m)
}

func writeUnion(b *strings.Builder, t string) {
	b.WriteString("SELECT * FROM actuals\nUNION ALL\nSELECT * FROM bridge\nUNION ALL\nSELECT * FROM future_periods\n")
	fmt.Fprintf(b, "ORDER BY %s", t)
}

// pgInterval spells one period as an interval literal. Postgres has no
// quarter unit.
func pgInterval(interval string) string {
	if interval == "quarter" {
		return "3 months"
	}
	return "1 " + interval
}

// sqliteStep returns the date() modifier multiple and unit for one period.
func sqliteStep(interval string) (int, string) {
	switch interval {
	case "week":
		return 7, "days"
	case "month":
		return 1, "months"
	case "quarter":
		return 3, "months"
	case "year":
		return 1, "years"
	default:
		return 1, "days"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
