package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/leapstack-labs/lumen/internal/narrative"
)

// Tool names and plan defaults.
const (
	PlanToolName    = "plan_query"
	NarrateToolName = "narrate_results"
	SuggestToolName = "suggest_questions"
	TechniqueTrend  = "trend_extrapolation"
	DefaultPeriods  = 3
	DefaultInterval = "month"
)

// PlanTool is the tool of the planning call.
func PlanTool(dialect string) Tool {
	return Tool{
		Name: PlanToolName,
		Description: "Plan and generate a SQL query to answer the user's question, " +
			"along with a Vega-Lite chart specification for visualizing the results.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reasoning": map[string]any{
					"type":        "string",
					"description": "Step-by-step reasoning about how to answer the question using the available schema.",
				},
				"sql": map[string]any{
					"type": "string",
					"description": fmt.Sprintf("A single %s SELECT statement. Must be read-only. "+
						"Use CTEs for clarity. Include ORDER BY and LIMIT where appropriate.", dialect),
				},
				"chart_spec": map[string]any{
					"type": "object",
					"description": "A Vega-Lite v5 specification object with 'mark' and 'encoding'. " +
						"Reference SQL column aliases by name only; never embed data values. Set width to 'container'.",
				},
				"whatif": map[string]any{
					"type":        "object",
					"description": "Optional. Set only when the user asks for a projection or forecast of a measure over time.",
					"properties": map[string]any{
						"technique":       map[string]any{"type": "string", "enum": []any{TechniqueTrend}},
						"time_field":      map[string]any{"type": "string", "description": "Time column alias in the SQL result."},
						"measure":         map[string]any{"type": "string", "description": "Numeric column alias to project."},
						"periods_ahead":   map[string]any{"type": "integer", "minimum": 1, "maximum": 24},
						"period_interval": map[string]any{"type": "string", "enum": []any{"day", "week", "month", "quarter", "year"}},
					},
					"required": []any{"technique", "time_field", "measure"},
				},
			},
			"required": []any{"reasoning", "sql", "chart_spec"},
		},
	}
}

// NarrateTool is the tool of the narration call.
func NarrateTool() Tool {
	return Tool{
		Name:        NarrateToolName,
		Description: "Generate a concise narrative insight from the query results, with data references.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"narrative": map[string]any{
					"type":        "string",
					"description": "A 2-4 sentence insight about the data. Reference specific values. Be direct and analytical, not generic.",
				},
				"data_references": map[string]any{
					"type":        "array",
					"description": "Specific data points referenced in the narrative.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"ref_id": map[string]any{"type": "string", "description": "Unique ID like 'r1', 'r2'"},
							"text":   map[string]any{"type": "string", "description": "The exact text substring from the narrative that references this data point."},
							"source": map[string]any{"type": "string", "description": "Where this value comes from (e.g., 'row 1, revenue column')."},
						},
						"required": []any{"ref_id", "text", "source"},
					},
				},
			},
			"required": []any{"narrative", "data_references"},
		},
	}
}

// SuggestTool is the tool of the suggestions call.
func SuggestTool() Tool {
	return Tool{
		Name:        SuggestToolName,
		Description: "Suggest questions a business user could ask about this database.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"questions": map[string]any{
					"type":        "array",
					"description": "Short natural-language questions, each under 60 characters.",
					"items":       map[string]any{"type": "string"},
				},
			},
			"required": []any{"questions"},
		},
	}
}

// PlanProposal is the parsed planning call.
type PlanProposal struct {
	Reasoning string
	SQL       string
	ChartSpec map[string]any
	WhatIf    *TrendRequest
}

// TrendRequest asks for a linear trend projection of the result.
type TrendRequest struct {
	TimeField      string `json:"time_field"`
	Measure        string `json:"measure"`
	PeriodsAhead   int    `json:"periods_ahead"`
	PeriodInterval string `json:"period_interval"`
}

// NarrationProposal is the parsed narration call.
type NarrationProposal struct {
	Narrative      string
	DataReferences []narrative.DataReference
}

// MalformedError reports a tool call whose arguments do not match the tool.
type MalformedError struct {
	Tool   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s call: %s", e.Tool, e.Reason)
}

func malformed(tool, format string, args ...any) error {
	return &MalformedError{Tool: tool, Reason: fmt.Sprintf(format, args...)}
}

// fields decodes the top-level argument object.
func fields(call *ToolCall, tool string) (map[string]json.RawMessage, error) {
	if call == nil {
		return nil, malformed(tool, "no call")
	}
	if call.Name != tool {
		return nil, malformed(tool, "model called %q", call.Name)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(call.Arguments, &m); err != nil || m == nil {
		return nil, malformed(tool, "arguments are not a JSON object")
	}
	return m, nil
}

func requireString(m map[string]json.RawMessage, tool, key string, allowEmpty bool) (string, error) {
	raw, ok := m[key]
	if !ok || isNull(raw) {
		return "", malformed(tool, "missing required field %q", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", malformed(tool, "field %q must be a string", key)
	}
	if !allowEmpty && strings.TrimSpace(s) == "" {
		return "", malformed(tool, "field %q is empty", key)
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// ParsePlan checks and decodes a plan_query call. reasoning and sql are
// required strings; chart_spec is a required object, also accepted as a
// string holding a JSON object since some models encode nested objects
// that way.
func ParsePlan(call *ToolCall) (PlanProposal, error) {
	var p PlanProposal
	m, err := fields(call, PlanToolName)
	if err != nil {
		return p, err
	}

	if p.Reasoning, err = requireString(m, PlanToolName, "reasoning", true); err != nil {
		return p, err
	}
	if p.SQL, err = requireString(m, PlanToolName, "sql", false); err != nil {
		return p, err
	}

	raw, ok := m["chart_spec"]
	if !ok || isNull(raw) {
		return p, malformed(PlanToolName, "missing required field %q", "chart_spec")
	}
	if p.ChartSpec, err = decodeObject(raw); err != nil {
		return p, malformed(PlanToolName, "field %q must be an object", "chart_spec")
	}

	if raw, ok := m["whatif"]; ok && !isNull(raw) {
		p.WhatIf, err = parseTrend(raw)
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return obj, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("not an object")
	}
	return obj, nil
}

// parseTrend returns nil for techniques other than trend extrapolation.
func parseTrend(raw json.RawMessage) (*TrendRequest, error) {
	var w struct {
		Technique string `json:"technique"`
		TrendRequest
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, malformed(PlanToolName, "field %q must be an object", "whatif")
	}
	if w.Technique != TechniqueTrend {
		return nil, nil
	}
	if w.TimeField == "" || w.Measure == "" {
		return nil, malformed(PlanToolName, "whatif requires time_field and measure")
	}
	t := w.TrendRequest
	if t.PeriodsAhead == 0 {
		t.PeriodsAhead = DefaultPeriods
	}
	if t.PeriodInterval == "" {
		t.PeriodInterval = DefaultInterval
	}
	return &t, nil
}

// ParseNarration checks and decodes a narrate_results call. Every data
// reference needs a ref_id and a text.
func ParseNarration(call *ToolCall) (NarrationProposal, error) {
	var n NarrationProposal
	m, err := fields(call, NarrateToolName)
	if err != nil {
		return n, err
	}

	if n.Narrative, err = requireString(m, NarrateToolName, "narrative", false); err != nil {
		return n, err
	}

	raw, ok := m["data_references"]
	if !ok || isNull(raw) {
		return n, malformed(NarrateToolName, "missing required field %q", "data_references")
	}
	var refs []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &refs); err != nil {
		return n, malformed(NarrateToolName, "field %q must be a list of objects", "data_references")
	}
	for i, r := range refs {
		id, err := requireString(r, NarrateToolName, "ref_id", false)
		if err != nil {
			return n, malformed(NarrateToolName, "data_references[%d]: missing ref_id", i)
		}
		text, err := requireString(r, NarrateToolName, "text", false)
		if err != nil {
			return n, malformed(NarrateToolName, "data_references[%d]: missing text", i)
		}
		var source string
		if rawSource, ok := r["source"]; ok && !isNull(rawSource) {
			_ = json.Unmarshal(rawSource, &source)
		}
		n.DataReferences = append(n.DataReferences, narrative.DataReference{RefID: id, Text: text, Source: source})
	}
	return n, nil
}

// ParseSuggestions decodes a suggest_questions call.
func ParseSuggestions(call *ToolCall) ([]string, error) {
	m, err := fields(call, SuggestToolName)
	if err != nil {
		return nil, err
	}
	raw, ok := m["questions"]
	if !ok || isNull(raw) {
		return nil, malformed(SuggestToolName, "missing required field %q", "questions")
	}
	var qs []string
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, malformed(SuggestToolName, "field %q must be a list of strings", "questions")
	}
	return qs, nil
}
