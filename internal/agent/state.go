package agent

// State is a state of the question-answering state machine.
type State int

// Pipeline states. Failed is reachable from Planning, Validating and
// Executing (and from Narrating when the provider fails).
const (
	StateBuildingContext State = iota
	StatePlanning
	StateValidating
	StateExecuting
	StateCorrecting
	StateProjecting
	StateChartResolving
	StateNarrating
	StateAssembling
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateBuildingContext: "building_context",
	StatePlanning:        "planning",
	StateValidating:      "validating",
	StateExecuting:       "executing",
	StateCorrecting:      "correcting",
	StateProjecting:      "projecting",
	StateChartResolving:  "chart_resolving",
	StateNarrating:       "narrating",
	StateAssembling:      "assembling",
	StateDone:            "done",
	StateFailed:          "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
