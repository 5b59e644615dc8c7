package cell

import (
	"time"

	"github.com/leapstack-labs/lumen/internal/narrative"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// Input is the terminal state of a pipeline run.
type Input struct {
	// ID and CreatedAt are generated when empty/zero.
	ID        string
	CreatedAt time.Time

	Question   string
	Title      string
	ParentID   string
	Refinement bool
	Position   int

	SQL             string
	GeneratedBy     string
	EditedByUser    bool
	UserSQLOverride string

	Result *Result

	ChartSpec    map[string]any
	AutoDetected bool
	Theme        string

	NarrativeText  string
	DataReferences []narrative.DataReference
	Segments       []narrative.Segment

	Model       string
	SchemaHash  string
	AgentSteps  []string
	RetryCount  int
	Reasoning   string
	WhatIf      *WhatIf
	Diagnostics []core.Diagnostic
}

// Assemble builds a Cell from in. Slices are copied so later changes to in
// do not reach the cell.
func Assemble(in Input) *Cell {
	id := in.ID
	if id == "" {
		id = NewID()
	}
	created := in.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	title := in.Title
	if title == "" {
		title = DefaultTitle(in.Question)
	}

	c := &Cell{
		ID:        id,
		CreatedAt: created.UTC().Format(time.RFC3339),
		Question:  in.Question,
		Title:     title,
		Context: Context{
			ParentCellID: in.ParentID,
			Refinement:   in.Refinement,
			Position:     in.Position,
		},
		Metadata: Metadata{
			Model:       in.Model,
			SchemaHash:  in.SchemaHash,
			AgentSteps:  append([]string(nil), in.AgentSteps...),
			RetryCount:  in.RetryCount,
			Reasoning:   in.Reasoning,
			WhatIf:      in.WhatIf,
			Diagnostics: append([]core.Diagnostic(nil), in.Diagnostics...),
		},
	}

	if in.SQL != "" {
		generatedBy := in.GeneratedBy
		if generatedBy == "" {
			generatedBy = GeneratedByLLM
		}
		c.SQL = &SQL{
			Query:           in.SQL,
			GeneratedBy:     generatedBy,
			EditedByUser:    in.EditedByUser,
			UserSQLOverride: in.UserSQLOverride,
		}
	}

	c.Result = in.Result

	if in.ChartSpec != nil {
		theme := in.Theme
		if theme == "" {
			theme = DefaultTheme
		}
		c.Chart = &Chart{Spec: in.ChartSpec, AutoDetected: in.AutoDetected, Theme: theme}
	}

	if in.NarrativeText != "" || len(in.DataReferences) > 0 {
		c.Narrative = &Narrative{
			Text:           in.NarrativeText,
			DataReferences: append([]narrative.DataReference(nil), in.DataReferences...),
			Segments:       append([]narrative.Segment(nil), in.Segments...),
		}
	}

	return c
}
