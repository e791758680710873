package stateManager

import (
	"interleave/event"
)

// Manages what has been learned about the explored executions across several runs.
type StateManager interface {
	GetRunStateManager() *RunStateManager
	AddRun(run Run) (Verdict, error)
	Stats() Stats
}

// The summary of one execution
type Run struct {
	Decisions []event.Decision
	// Digest of the happens-before relation of the execution
	Fingerprint uint64
	// Digest of the program state at the end of the execution
	StateDigest uint64
	// False if the execution was aborted before it ended
	Complete bool
}

// What the state manager learned from a run
type Verdict struct {
	// An equivalent execution has been seen before
	Redundant bool
	// The end state has not been seen before
	NewState bool
}

type Stats struct {
	Runs           int
	Redundant      int
	DistinctStates int
}
