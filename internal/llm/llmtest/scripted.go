// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/leapstack-labs/lumen/internal/llm"
)

// Step is one scripted reply: a tool call or an error.
type Step struct {
	Call *llm.ToolCall
	Err  error
}

// Scripted replays Steps in order and records every Request.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	requests []llm.Request
	model    string
}

// New returns a provider that replays steps.
func New(steps ...Step) *Scripted {
	return &Scripted{steps: steps, model: "scripted"}
}

// Model implements llm.Provider.
func (s *Scripted) Model() string { return s.model }

// Invoke implements llm.Provider.
func (s *Scripted) Invoke(ctx context.Context, req llm.Request) (*llm.ToolCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.steps) == 0 {
		return nil, fmt.Errorf("llmtest: unexpected call %d to %s", len(s.requests), req.Tool.Name)
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	call := *step.Call
	if call.ID == "" {
		call.ID = fmt.Sprintf("call_%d", len(s.requests))
	}
	return &call, nil
}

// Requests returns the recorded requests.
func (s *Scripted) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.requests...)
}

// Remaining reports how many steps were not consumed.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// Call builds a step calling tool with args encoded as JSON.
func Call(tool string, args any) Step {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return Step{Call: &llm.ToolCall{Name: tool, Arguments: raw}}
}

// Raw builds a step calling tool with literal JSON arguments.
func Raw(tool, arguments string) Step {
	return Step{Call: &llm.ToolCall{Name: tool, Arguments: json.RawMessage(arguments)}}
}

// Fail builds a step that returns err.
func Fail(err error) Step {
	return Step{Err: err}
}

// Plan builds a plan_query step.
func Plan(sql string, chart map[string]any) Step {
	return Call(llm.PlanToolName, map[string]any{
		"reasoning":  "scripted plan",
		"sql":        sql,
		"chart_spec": chart,
	})
}

// Narrate builds a narrate_results step.
func Narrate(text string, refs ...map[string]string) Step {
	if refs == nil {
		refs = []map[string]string{}
	}
	return Call(llm.NarrateToolName, map[string]any{
		"narrative":       text,
		"data_references": refs,
	})
}

// Ref builds a data reference for Narrate.
func Ref(id, text, source string) map[string]string {
	return map[string]string{"ref_id": id, "text": text, "source": source}
}
