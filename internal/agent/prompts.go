package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// DefaultNarrateSampleRows bounds the rows shown to the narrator.
const DefaultNarrateSampleRows = 50

// narrateUserMessage is the only user turn of the narrate call.
const narrateUserMessage = "Generate the narrative insight."

var dialectNames = map[string]string{
	"postgres": "Postgres",
	"duckdb":   "DuckDB",
	"sqlite":   "SQLite",
}

// DialectName returns the display name of an adapter's SQL dialect.
func DialectName(adapterName string) string {
	if n, ok := dialectNames[adapterName]; ok {
		return n
	}
	if adapterName == "" {
		return "SQL"
	}
	return adapterName
}

// PlanPrompt is everything the plan call's system prompt is built from.
type PlanPrompt struct {
	Dialect   string
	SchemaXML string
	History   []*cell.Cell
	MaxTurns  int
	Parent    *cell.Cell
}

// String renders the system prompt.
func (p PlanPrompt) String() string {
	dialect := DialectName(p.Dialect)
	parts := []string{
		"You are Lumen, an expert data analyst. You answer questions about data by writing SQL queries " +
			"and creating visualizations.",
		"",
		"## Database Schema",
		p.SchemaXML,
		"",
		"## Rules",
		fmt.Sprintf("1. Write a single %s SELECT statement. Never write INSERT, UPDATE, DELETE, DROP, or any DDL/DML.", dialect),
		"2. Use CTEs (WITH clauses) for complex queries to improve readability.",
		"3. Always include ORDER BY for meaningful ordering.",
		"4. Include LIMIT when returning individual records (default LIMIT 100).",
		"5. Use aggregate functions (SUM, AVG, COUNT, etc.) when the question implies aggregation.",
		"6. Alias columns with clear, readable names using AS.",
		"7. For the chart_spec: use Vega-Lite v5. Field names must exactly match SQL column aliases.",
		"8. Set chart width to 'container'. Choose appropriate mark types (bar, line, point, etc.).",
		"9. For bar charts with categorical data, sort by the measure descending (sort: '-y').",
		"10. The chart_spec is written before the query runs: reference column names only and never " +
			"embed literal data values in it.",
		"11. Only when the user asks for a projection or forecast, set whatif with technique " +
			"'trend_extrapolation'; the SQL must then return one row per period with the time column and the measure.",
	}

	if conv := ConversationContext(p.History, p.MaxTurns); conv != "" {
		parts = append(parts, "", "## Conversation So Far", conv)
	}

	if p.Parent != nil {
		parts = append(parts, "", "## Refinement Context",
			"The user is refining a previous question. Use the parent cell context below "+
				"to understand what was previously asked and build upon it.",
			RefinementContext(p.Parent))
	}

	return strings.Join(parts, "\n")
}

// NarratePrompt is everything the narrate call's system prompt is built
// from. It never includes the schema.
type NarratePrompt struct {
	Question   string
	SQL        string
	Result     *cell.Result
	Mark       string
	Caveats    []string
	SampleRows int
}

// String renders the system prompt.
func (p NarratePrompt) String() string {
	rows := 0
	if p.Result != nil {
		rows = p.Result.RowCount
	}

	parts := []string{
		"You are Lumen, an expert data analyst. Based on the query results below, " +
			"write a concise narrative insight.",
		"",
		"## Question: " + p.Question,
		"",
		"## SQL Query\n```sql\n" + p.SQL + "\n```",
		"",
		fmt.Sprintf("## Results (%d rows)\n%s", rows, FormatResult(p.Result, p.SampleRows)),
	}
	if p.Mark != "" {
		parts = append(parts, "", "## Chart", fmt.Sprintf("The results are shown as a %s chart.", p.Mark))
	}

	instructions := []string{
		"1. Write 2-4 sentences highlighting the key findings.",
		"2. Reference specific data values (numbers, names) from the results.",
		"3. Be analytical and direct; state what the data shows, not generic observations.",
		"4. Include data_references for each specific value you mention.",
	}
	if len(p.Caveats) > 0 {
		parts = append(parts, "", "## Projection Caveats")
		for _, c := range p.Caveats {
			parts = append(parts, "- "+c)
		}
		instructions = append(instructions,
			"5. Rows with period_type 'projected' are extrapolated, not observed. Say so, and mention the most important caveat.")
	}
	parts = append(parts, "", "## Instructions")
	parts = append(parts, instructions...)

	return strings.Join(parts, "\n")
}

// FormatResult renders at most maxRows rows of r as a pipe-separated table.
func FormatResult(r *cell.Result, maxRows int) string {
	if r == nil || len(r.Rows) == 0 {
		return "(no data)"
	}
	if len(r.Columns) == 0 {
		return "(no columns)"
	}
	if maxRows <= 0 {
		maxRows = DefaultNarrateSampleRows
	}

	shown := r.Rows
	if len(shown) > maxRows {
		shown = shown[:maxRows]
	}

	lines := make([]string, 0, len(shown)+3)
	lines = append(lines, strings.Join(r.Columns, " | "))
	sep := make([]string, len(r.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	lines = append(lines, strings.Join(sep, " | "))

	values := make([]string, len(r.Columns))
	for _, row := range shown {
		for i, col := range r.Columns {
			values[i] = formatValue(row[col])
		}
		lines = append(lines, strings.Join(values, " | "))
	}

	total := r.RowCount
	if total < len(r.Rows) {
		total = len(r.Rows)
	}
	if total > len(shown) {
		lines = append(lines, fmt.Sprintf("... (%d more rows)", total-len(shown)))
	}
	return strings.Join(lines, "\n")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

// correctionFeedback is the tool result sent back after a failed execution.
func correctionFeedback(diags []core.Diagnostic) string {
	var msgs, hints []string
	for _, d := range diags {
		if d.Severity != core.SeverityError {
			continue
		}
		msgs = append(msgs, d.Message)
		if d.Hint != "" {
			hints = append(hints, d.Hint)
		}
	}
	feedback := "SQL execution error: " + strings.Join(msgs, "; ")
	if len(hints) > 0 {
		feedback += "\nHints: " + strings.Join(hints, "; ")
	}
	return feedback
}
