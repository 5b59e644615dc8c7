// Package cell defines the record produced by one question-answering run and
// its canonical serialization.
//
// A Cell is immutable once emitted. Refining a question or editing its SQL
// produces a new Cell whose context points at the parent.
package cell

import (
	"github.com/leapstack-labs/lumen/internal/narrative"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// Generator identities recorded in SQL.GeneratedBy.
const (
	GeneratedByLLM  = "llm"
	GeneratedByUser = "user"
)

// DefaultTheme is the chart theme applied when none is configured.
const DefaultTheme = "lumen-default"

// Cell is one question/answer record.
type Cell struct {
	ID        string     `json:"id"`
	CreatedAt string     `json:"created_at"`
	Question  string     `json:"question"`
	Title     string     `json:"title,omitempty"`
	Context   Context    `json:"context"`
	SQL       *SQL       `json:"sql,omitempty"`
	Result    *Result    `json:"result,omitempty"`
	Chart     *Chart     `json:"chart,omitempty"`
	Narrative *Narrative `json:"narrative,omitempty"`
	Metadata  Metadata   `json:"metadata"`
}

// Context places a cell inside its conversation.
type Context struct {
	ParentCellID string `json:"parent_cell_id,omitempty"`
	Refinement   bool   `json:"refinement,omitempty"`
	Position     int    `json:"conversation_position,omitempty"`
}

// SQL records the executed query and who wrote it.
type SQL struct {
	Query           string `json:"query"`
	GeneratedBy     string `json:"generated_by"`
	EditedByUser    bool   `json:"edited_by_user,omitempty"`
	UserSQLOverride string `json:"user_sql_override,omitempty"`
}

// Result is the outcome of executing a query. Rows is bounded by the row cap;
// RowCount and DataHash describe the full result.
type Result struct {
	Columns         []string          `json:"columns"`
	ColumnTypes     []string          `json:"column_types"`
	RowCount        int               `json:"row_count"`
	DataHash        string            `json:"data_hash,omitempty"`
	Rows            []map[string]any  `json:"data"`
	Truncated       bool              `json:"truncated,omitempty"`
	ExecutionTimeMS int64             `json:"execution_time_ms"`
	Diagnostics     []core.Diagnostic `json:"diagnostics,omitempty"`
}

// Chart is the validated or fallback chart specification.
type Chart struct {
	Spec         map[string]any `json:"spec"`
	AutoDetected bool           `json:"auto_detected,omitempty"`
	Theme        string         `json:"theme,omitempty"`
}

// Narrative is the generated prose with its data references resolved into
// segments.
type Narrative struct {
	Text           string                    `json:"text"`
	DataReferences []narrative.DataReference `json:"data_references,omitempty"`
	Segments       []narrative.Segment       `json:"segments,omitempty"`
}

// WhatIf records the parameters of a projection.
type WhatIf struct {
	Technique  string         `json:"technique"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Caveats    []string       `json:"caveats,omitempty"`
}

// Metadata records how the cell was produced.
type Metadata struct {
	Model       string            `json:"model,omitempty"`
	SchemaHash  string            `json:"schema_hash,omitempty"`
	AgentSteps  []string          `json:"agent_steps,omitempty"`
	RetryCount  int               `json:"retry_count,omitempty"`
	Reasoning   string            `json:"reasoning,omitempty"`
	WhatIf      *WhatIf           `json:"whatif,omitempty"`
	Diagnostics []core.Diagnostic `json:"diagnostics,omitempty"`
}

// Mark returns the chart's mark type, or "" when there is no chart.
func (c *Cell) Mark() string {
	if c.Chart == nil {
		return ""
	}
	switch m := c.Chart.Spec["mark"].(type) {
	case string:
		return m
	case map[string]any:
		if t, ok := m["type"].(string); ok {
			return t
		}
	}
	return ""
}

// EffectiveSQL returns the query text that produced the cell's result.
func (c *Cell) EffectiveSQL() string {
	if c.SQL == nil {
		return ""
	}
	if c.SQL.UserSQLOverride != "" {
		return c.SQL.UserSQLOverride
	}
	return c.SQL.Query
}
