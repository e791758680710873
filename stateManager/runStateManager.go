package stateManager

import (
	"interleave/event"
)

// A type that manages the state of a single run at a time.
//
// Should only be accessed from a single goroutine at a time.
// When the run has ended the run is handed to the StateManager and the state is reset.
// The RunStateManager can then safely be used on a new run.
type RunStateManager struct {
	sm        StateManager
	decisions []event.Decision
}

func NewRunStateManager(sm StateManager) *RunStateManager {
	return &RunStateManager{
		sm:        sm,
		decisions: make([]event.Decision, 0),
	}
}

// Add a decision taken in the current run
func (rsm *RunStateManager) Record(d event.Decision) {
	rsm.decisions = append(rsm.decisions, d)
}

// Returns the decisions taken so far in the current run
func (rsm *RunStateManager) Decisions() []event.Decision {
	return rsm.decisions
}

// Hand the run to the StateManager and prepare for the next run
func (rsm *RunStateManager) EndRun(fingerprint, stateDigest uint64, complete bool) (Verdict, error) {
	run := Run{
		Decisions:   rsm.decisions,
		Fingerprint: fingerprint,
		StateDigest: stateDigest,
		Complete:    complete,
	}
	rsm.decisions = make([]event.Decision, 0)
	return rsm.sm.AddRun(run)
}

// Drop the decisions of a run that is not handed to the StateManager
func (rsm *RunStateManager) Reset() {
	rsm.decisions = make([]event.Decision, 0)
}
