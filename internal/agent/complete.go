package agent

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/internal/llm"
	"github.com/leapstack-labs/lumen/internal/narrative"
	"github.com/leapstack-labs/lumen/internal/schema"
	"github.com/leapstack-labs/lumen/internal/sqlguard"
	"github.com/leapstack-labs/lumen/internal/viz"
	"github.com/leapstack-labs/lumen/internal/whatif"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// completion carries a successful execution into the projection, chart,
// narration and assembly steps.
type completion struct {
	conversationID string
	question       string
	title          string
	parentID       string
	refinement     bool

	sql          string
	generatedBy  string
	editedByUser bool
	result       *cell.Result

	proposedChart map[string]any
	trend         *llm.TrendRequest
	reasoning     string
	retries       int

	schema     *schema.Context
	schemaHash string
}

func (o *Orchestrator) complete(ctx context.Context, r *run, c completion) core.Result[*cell.Cell] {
	var projection *cell.WhatIf
	if c.trend != nil {
		projection = o.project(ctx, r, &c)
	}

	r.to(StateChartResolving)
	r.stage(StageRendering)
	var chart viz.Resolution
	if projection != nil {
		chart = viz.Resolution{Spec: viz.TrendChart(c.trend.TimeField, c.trend.Measure), AutoDetected: true}
	} else {
		chart = viz.Resolve(c.proposedChart, viz.Shape{
			Columns:     c.result.Columns,
			ColumnTypes: c.result.ColumnTypes,
			RowCount:    c.result.RowCount,
			Rows:        c.result.Rows,
			Roles:       c.schema.Roles(),
		})
	}
	r.note(chart.Diagnostics...)
	spec := viz.ApplyTheme(chart.Spec, o.settings.Theme)

	r.to(StateNarrating)
	r.stage(StageNarrating)
	var caveats []string
	if projection != nil {
		caveats = projection.Caveats
	}
	system := NarratePrompt{
		Question:   c.question,
		SQL:        c.sql,
		Result:     c.result,
		Mark:       viz.MarkType(spec),
		Caveats:    caveats,
		SampleRows: o.settings.NarrateSampleRows,
	}.String()
	call, err := o.llm.Invoke(ctx, llm.Request{
		System:    system,
		Messages:  []llm.Message{llm.UserMessage(narrateUserMessage)},
		Tool:      llm.NarrateTool(),
		MaxTokens: narrateMaxTokens,
	})
	if err != nil {
		return r.fail(llmError("narrate", err))
	}
	story, err := llm.ParseNarration(call)
	if err != nil {
		return r.fail(llmError("narrate", err))
	}
	segments, linkDiags := narrative.LinkWithDiagnostics(story.Narrative, story.DataReferences)
	r.note(linkDiags...)

	r.to(StateAssembling)
	position := 0
	if o.store != nil {
		if position, err = o.store.NextPosition(ctx, c.conversationID); err != nil {
			return r.fail(core.Errorf(core.CodeStoreError, "failed to read conversation position: %v", err))
		}
	}

	in := cell.Input{
		CreatedAt:      o.now(),
		Question:       c.question,
		Title:          c.title,
		ParentID:       c.parentID,
		Refinement:     c.refinement,
		Position:       position,
		SQL:            c.sql,
		GeneratedBy:    c.generatedBy,
		EditedByUser:   c.editedByUser,
		Result:         c.result,
		ChartSpec:      spec,
		AutoDetected:   chart.AutoDetected,
		Theme:          o.settings.Theme,
		NarrativeText:  story.Narrative,
		DataReferences: story.DataReferences,
		Segments:       segments,
		Model:          o.llm.Model(),
		SchemaHash:     c.schemaHash,
		AgentSteps:     r.steps,
		RetryCount:     c.retries,
		Reasoning:      c.reasoning,
		WhatIf:         projection,
		Diagnostics:    r.diags,
	}
	if c.editedByUser {
		in.UserSQLOverride = c.sql
	}
	out := cell.Assemble(in)

	if o.store != nil {
		if err := o.store.Append(ctx, c.conversationID, out); err != nil {
			r.logger.Error("failed to save cell", slog.String("cell", out.ID), slog.Any("error", err))
			return r.fail(core.Errorf(core.CodeStoreError, "failed to save cell: %v", err))
		}
	}
	return r.done(out)
}

// project runs the trend projection over the baseline query. On success
// c.sql and c.result are replaced by the projection; on failure the
// baseline is kept and the failure is recorded as warnings.
func (o *Orchestrator) project(ctx context.Context, r *run, c *completion) *cell.WhatIf {
	r.to(StateProjecting)
	r.stage(StageProjecting)

	params := whatif.Params{
		TimeField:      c.trend.TimeField,
		Measure:        c.trend.Measure,
		PeriodsAhead:   c.trend.PeriodsAhead,
		PeriodInterval: c.trend.PeriodInterval,
	}
	degrade := func(diags []core.Diagnostic) *cell.WhatIf {
		r.logger.Warn("trend projection failed, keeping baseline", slog.Any("diagnostics", diags))
		r.note(core.Warnf(core.CodeTrendFailed, "Trend projection failed; showing the baseline result"))
		for _, d := range diags {
			if d.Severity == core.SeverityError {
				d.Severity = core.SeverityWarning
			}
			r.note(d)
		}
		return nil
	}

	built := whatif.BuildTrendSQL(o.dialect, c.sql, params)
	if !built.OK() {
		return degrade(built.Diagnostics)
	}
	if v := sqlguard.Validate(built.Value.SQL); !v.OK() {
		return degrade(v.Diagnostics)
	}
	exec := o.executor.Execute(ctx, built.Value.SQL, o.settings.StatementTimeout, o.settings.RowCap)
	if !exec.OK() {
		return degrade(exec.Diagnostics)
	}

	c.sql = built.Value.SQL
	c.result = exec.Value
	return &cell.WhatIf{
		Technique: whatif.Technique,
		Parameters: map[string]any{
			"time_field":      params.TimeField,
			"measure":         params.Measure,
			"periods_ahead":   params.PeriodsAhead,
			"period_interval": params.PeriodInterval,
			"baseline_sql":    built.Value.BaselineSQL,
		},
		Caveats: whatif.Caveats(whatif.Technique, params),
	}
}

// run tracks one pipeline execution.
type run struct {
	o      *Orchestrator
	emit   Emitter
	logger *slog.Logger
	state  State
	steps  []string
	diags  []core.Diagnostic
}

func (o *Orchestrator) newRun(emit Emitter, attrs ...any) *run {
	if emit == nil {
		emit = Discard
	}
	return &run{o: o, emit: emit, logger: o.logger.With(attrs...), state: StateBuildingContext}
}

func (r *run) to(s State) {
	if s == r.state {
		return
	}
	r.logger.Debug("state transition", slog.String("from", r.state.String()), slog.String("to", s.String()))
	if r.o.onTransition != nil {
		r.o.onTransition(r.state, s)
	}
	r.state = s
}

func (r *run) stage(s Stage) {
	r.steps = append(r.steps, string(s))
	r.emit.Emit(Event{Type: EventStage, Stage: s})
}

// note records non-fatal diagnostics for the cell's metadata.
func (r *run) note(diags ...core.Diagnostic) {
	r.diags = append(r.diags, diags...)
}

func (r *run) fail(diags ...core.Diagnostic) core.Result[*cell.Cell] {
	r.to(StateFailed)
	ev := Event{Type: EventError, Diagnostics: diags}
	for i := range diags {
		if diags[i].Severity == core.SeverityError {
			d := diags[i]
			ev.Error = &d
			break
		}
	}
	if ev.Error != nil {
		r.logger.Warn("run failed", slog.String("code", ev.Error.Code), slog.String("message", ev.Error.Message))
	}
	r.emit.Emit(ev)
	return core.Fail[*cell.Cell](diags...)
}

func (r *run) done(c *cell.Cell) core.Result[*cell.Cell] {
	r.to(StateDone)
	r.logger.Info("cell ready", slog.String("cell", c.ID), slog.Int("retries", c.Metadata.RetryCount))
	r.emit.Emit(Event{Type: EventCell, Cell: c})
	return core.Ok(c, r.diags...)
}
