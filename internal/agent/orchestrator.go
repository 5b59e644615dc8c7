// Package agent answers questions about a database.
//
// The Orchestrator runs one sequential pipeline per question: plan a query
// with the language model, validate it, execute it (re-planning after
// execution failures), resolve a chart, narrate the observed rows, and
// assemble an immutable cell. Progress is reported through an Emitter as
// stage events followed by exactly one terminal event.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/internal/llm"
	"github.com/leapstack-labs/lumen/internal/schema"
	"github.com/leapstack-labs/lumen/internal/sqlguard"
	"github.com/leapstack-labs/lumen/internal/state"
	"github.com/leapstack-labs/lumen/internal/viz"
	"github.com/leapstack-labs/lumen/pkg/adapter"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// Pipeline defaults.
const (
	DefaultMaxAttempts      = 3
	DefaultStatementTimeout = 30 * time.Second
	DefaultRowCap           = 1000

	planMaxTokens    = 4096
	narrateMaxTokens = 1024
)

// Settings bound a pipeline run. Zero values take the defaults.
type Settings struct {
	// MaxAttempts is the number of execution attempts per question.
	MaxAttempts       int
	StatementTimeout  time.Duration
	RowCap            int
	HistoryTurns      int
	NarrateSampleRows int
	Theme             string
}

func (s Settings) withDefaults() Settings {
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
	if s.StatementTimeout <= 0 {
		s.StatementTimeout = DefaultStatementTimeout
	}
	if s.RowCap <= 0 {
		s.RowCap = DefaultRowCap
	}
	if s.HistoryTurns <= 0 {
		s.HistoryTurns = DefaultHistoryTurns
	}
	if s.NarrateSampleRows <= 0 {
		s.NarrateSampleRows = DefaultNarrateSampleRows
	}
	if s.Theme == "" {
		s.Theme = viz.ThemeDefault
	}
	return s
}

// Config holds orchestrator dependencies.
type Config struct {
	Schema   schema.Provider
	Executor adapter.Executor
	LLM      llm.Provider

	// Store persists cells and supplies conversation history. Optional for
	// Ask; RunEdited needs it to load the edited cell.
	Store state.CellStore

	// Dialect is the adapter name, used in prompts and trend SQL.
	Dialect string

	Settings Settings

	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger

	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)

	// Now overrides the clock used for cell timestamps.
	Now func() time.Time
}

// Orchestrator runs the question-answering pipeline.
type Orchestrator struct {
	schema       schema.Provider
	executor     adapter.Executor
	llm          llm.Provider
	store        state.CellStore
	dialect      string
	settings     Settings
	logger       *slog.Logger
	onTransition func(from, to State)
	now          func() time.Time
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Schema == nil {
		return nil, fmt.Errorf("agent: schema provider is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("agent: executor is required")
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("agent: llm provider is required")
	}
	settings := cfg.Settings.withDefaults()
	if err := viz.ValidateTheme(settings.Theme); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		schema:       cfg.Schema,
		executor:     cfg.Executor,
		llm:          cfg.LLM,
		store:        cfg.Store,
		dialect:      cfg.Dialect,
		settings:     settings,
		logger:       logger,
		onTransition: cfg.OnTransition,
		now:          now,
	}, nil
}

// AskRequest is a natural-language question.
type AskRequest struct {
	Question string

	// ConversationID groups cells; a new conversation is started when it
	// is empty and there is no parent.
	ConversationID string

	// ParentCellID makes the question a refinement of that cell.
	ParentCellID string
}

// EditRequest re-runs a stored cell with user-written SQL.
type EditRequest struct {
	CellID string
	SQL    string
}

// Ask answers req.Question. The returned result carries the cell on
// success, or the diagnostics of the failure; the same outcome is sent to
// emit as the terminal event.
func (o *Orchestrator) Ask(ctx context.Context, req AskRequest, emit Emitter) core.Result[*cell.Cell] {
	r := o.newRun(emit, slog.String("op", "ask"))

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return r.fail(core.Errorf(core.CodeValidationError, "question is empty").
			WithHint("Ask a question about your data"))
	}
	r.logger.Info("answering question", slog.String("question", question), slog.String("parent", req.ParentCellID))

	r.stage(StageThinking)
	sc, hash, diags := o.snapshot(ctx)
	if sc == nil {
		return r.fail(diags...)
	}
	r.note(diags...)

	conv, history, parent, d := o.conversation(ctx, req)
	if d != nil {
		return r.fail(*d)
	}

	system := PlanPrompt{
		Dialect:   o.dialect,
		SchemaXML: schema.XML(sc),
		History:   history,
		MaxTurns:  o.settings.HistoryTurns,
		Parent:    parent,
	}.String()
	tool := llm.PlanTool(DialectName(o.dialect))
	turns := transcript{llm.UserMessage(question)}

	var (
		plan    llm.PlanProposal
		exec    core.Result[*cell.Result]
		retries int
	)
	for attempt := 1; ; attempt++ {
		r.to(StatePlanning)
		call, err := o.llm.Invoke(ctx, llm.Request{System: system, Messages: turns, Tool: tool, MaxTokens: planMaxTokens})
		if err != nil {
			return r.fail(llmError("plan", err))
		}
		if call.ID == "" {
			call.ID = fmt.Sprintf("plan_%d", attempt)
		}
		plan, err = llm.ParsePlan(call)
		if err != nil {
			return r.fail(llmError("plan", err))
		}

		r.to(StateValidating)
		if v := sqlguard.Validate(plan.SQL); !v.OK() {
			r.logger.Warn("proposed SQL rejected", slog.Int("attempt", attempt))
			return r.fail(v.Diagnostics...)
		}

		r.to(StateExecuting)
		r.stage(StageExecuting)
		exec = o.executor.Execute(ctx, plan.SQL, o.settings.StatementTimeout, o.settings.RowCap)
		if exec.OK() {
			break
		}

		r.logger.Warn("query failed", slog.Int("attempt", attempt), slog.Any("diagnostics", exec.Diagnostics))
		if attempt >= o.settings.MaxAttempts {
			return r.fail(exec.Diagnostics...)
		}

		r.to(StateCorrecting)
		r.stage(StageCorrecting)
		retries++
		turns = turns.with(
			llm.AssistantToolCall(*call),
			llm.ToolResult(*call, correctionFeedback(exec.Diagnostics)),
		)
	}

	return o.complete(ctx, r, completion{
		conversationID: conv,
		question:       question,
		parentID:       req.ParentCellID,
		refinement:     parent != nil,
		sql:            plan.SQL,
		generatedBy:    cell.GeneratedByLLM,
		result:         exec.Value,
		proposedChart:  plan.ChartSpec,
		trend:          plan.WhatIf,
		reasoning:      plan.Reasoning,
		retries:        retries,
		schema:         sc,
		schemaHash:     hash,
	})
}

// RunEdited executes user-written SQL in place of a stored cell's query.
// The user is treated as the planner: there is no plan call and no retry.
// The new cell points at the edited one through its parent id.
func (o *Orchestrator) RunEdited(ctx context.Context, req EditRequest, emit Emitter) core.Result[*cell.Cell] {
	r := o.newRun(emit, slog.String("op", "edit"), slog.String("cell", req.CellID))

	if o.store == nil {
		return r.fail(core.Errorf(core.CodeConfigError, "editing SQL requires a cell store"))
	}
	original, err := o.store.Get(ctx, req.CellID)
	if err != nil {
		return r.fail(storeDiagnostic(req.CellID, err))
	}
	conv, err := o.store.ConversationOf(ctx, req.CellID)
	if err != nil {
		return r.fail(storeDiagnostic(req.CellID, err))
	}

	sql := strings.TrimSpace(req.SQL)
	r.to(StateValidating)
	if v := sqlguard.Validate(sql); !v.OK() {
		return r.fail(v.Diagnostics...)
	}

	r.to(StateExecuting)
	r.stage(StageExecuting)
	exec := o.executor.Execute(ctx, sql, o.settings.StatementTimeout, o.settings.RowCap)
	if !exec.OK() {
		return r.fail(exec.Diagnostics...)
	}

	var proposed map[string]any
	if original.Chart != nil && !viz.IsTable(original.Chart.Spec) {
		proposed = original.Chart.Spec
	}
	sc, hash := o.schema.Current()

	return o.complete(ctx, r, completion{
		conversationID: conv,
		question:       original.Question,
		title:          original.Title,
		parentID:       original.ID,
		sql:            sql,
		generatedBy:    cell.GeneratedByUser,
		editedByUser:   true,
		result:         exec.Value,
		proposedChart:  proposed,
		schema:         sc,
		schemaHash:     hash,
	})
}

// snapshot returns the schema to plan against, refreshing it first when it
// is missing or stale. A failed refresh of a stale snapshot keeps the old
// one with a warning; without any snapshot the run cannot continue.
func (o *Orchestrator) snapshot(ctx context.Context) (*schema.Context, string, []core.Diagnostic) {
	sc, hash := o.schema.Current()
	if sc != nil && !o.schema.IsStale(ctx, hash) {
		return sc, hash, nil
	}

	res := o.schema.Refresh(ctx)
	if !res.OK() {
		if sc == nil {
			return nil, "", res.Diagnostics
		}
		o.logger.Warn("schema refresh failed, keeping previous snapshot", slog.Any("diagnostics", res.Diagnostics))
		return sc, hash, []core.Diagnostic{core.Warnf(core.CodeSchemaStale,
			"Schema may be out of date; refresh failed").WithHint("Run `lumen schema --refresh` once the database is reachable")}
	}

	diags := res.Diagnostics
	if sc != nil {
		diags = append(diags, core.Infof(core.CodeSchemaStale, "Schema changed since the last introspection and was refreshed"))
	}
	return res.Value, res.Value.Hash, diags
}

// conversation resolves the conversation id, the planner's history window
// and the refinement parent.
func (o *Orchestrator) conversation(ctx context.Context, req AskRequest) (string, []*cell.Cell, *cell.Cell, *core.Diagnostic) {
	conv := req.ConversationID
	if o.store == nil {
		if conv == "" {
			conv = cell.NewConversationID()
		}
		return conv, nil, nil, nil
	}

	var parent *cell.Cell
	if req.ParentCellID != "" {
		p, err := o.store.Get(ctx, req.ParentCellID)
		if err != nil {
			d := storeDiagnostic(req.ParentCellID, err)
			return "", nil, nil, &d
		}
		parent = p
		if conv == "" {
			if conv, err = o.store.ConversationOf(ctx, req.ParentCellID); err != nil {
				d := storeDiagnostic(req.ParentCellID, err)
				return "", nil, nil, &d
			}
		}
	}
	if conv == "" {
		return cell.NewConversationID(), nil, parent, nil
	}

	history, err := o.store.LatestForConversation(ctx, conv, o.settings.HistoryTurns)
	if err != nil {
		d := core.Errorf(core.CodeStoreError, "failed to load conversation history: %v", err)
		return "", nil, nil, &d
	}
	return conv, history, parent, nil
}

func storeDiagnostic(id string, err error) core.Diagnostic {
	if errors.Is(err, state.ErrCellNotFound) {
		return core.Errorf(core.CodeValidationError, "cell %s not found", id).
			WithHint("List cells with `lumen cells list`")
	}
	return core.Errorf(core.CodeStoreError, "failed to load cell %s: %v", id, err)
}

func llmError(call string, err error) core.Diagnostic {
	return core.Errorf(core.CodeLLMError, "%s call failed: %v", call, err).
		WithHint("Check the llm provider settings and API key")
}

// transcript is the plan conversation. Each correction builds a new
// transcript; earlier ones are never modified.
type transcript []llm.Message

func (t transcript) with(msgs ...llm.Message) transcript {
	out := make(transcript, 0, len(t)+len(msgs))
	out = append(out, t...)
	return append(out, msgs...)
}
