package agent

import (
	"sync"

	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// Stage names a user-visible pipeline step.
type Stage string

// Stages reported while a question is answered.
const (
	StageThinking   Stage = "thinking"
	StageExecuting  Stage = "executing"
	StageCorrecting Stage = "correcting"
	StageProjecting Stage = "projecting"
	StageRendering  Stage = "rendering"
	StageNarrating  Stage = "narrating"
)

// EventType is the kind of an Event.
type EventType string

// Event types. Every run ends with exactly one cell or error event.
const (
	EventStage EventType = "stage"
	EventCell  EventType = "cell"
	EventError EventType = "error"
)

// Event is one message of the staged event stream.
type Event struct {
	Type  EventType
	Stage Stage
	Cell  *cell.Cell

	// Error is the first error diagnostic of a failed run; Diagnostics
	// holds the whole set.
	Error       *core.Diagnostic
	Diagnostics []core.Diagnostic
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventCell || e.Type == EventError
}

// Emitter receives pipeline events in order.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Emitter.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Stages returns the recorded stage events in order.
func (r *Recorder) Stages() []Stage {
	var out []Stage
	for _, e := range r.Events() {
		if e.Type == EventStage {
			out = append(out, e.Stage)
		}
	}
	return out
}

// Terminal returns the terminal events. A well-formed run has exactly one.
func (r *Recorder) Terminal() []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Terminal() {
			out = append(out, e)
		}
	}
	return out
}
