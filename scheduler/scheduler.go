package scheduler

import (
	"interleave/event"
	"interleave/trace"

	"github.com/pkg/errors"
)

// Used to manage the exploration of the state space.
// The global scheduler manages the search state across several runs.
// It communicates with several run schedulers in separate goroutines to keep the exploration consistent.
type GlobalScheduler interface {
	// Create a RunScheduler that will communicate with the global scheduler
	GetRunScheduler() RunScheduler
}

// Takes the decisions of one run at a time.
// A RunScheduler is used from a single goroutine.
type RunScheduler interface {
	// Prepare for starting a new run. Returns a NoRunsError if all possible runs have been completed. May block until new runs are available.
	StartRun() error

	// Select the task performing the next step among the enabled tasks
	Next(state RunState) (event.TaskId, error)

	// Select a value in [0, n) for a random choice taken by the task
	Choose(task event.TaskId, n int) (int, error)

	// Finish the current run. The trace contains every event recorded during the run.
	// Will always be called after a successful StartRun, even if the run was aborted.
	EndRun(tr *trace.Trace) error
}

// Implemented by global schedulers that know when every run has been explored
type Finisher interface {
	// Returns true if no run is left. Only meaningful while no run is in flight
	Finished() bool
}

// A task that can be scheduled, with the operation it is waiting to perform
type Candidate struct {
	Task event.TaskId
	Op   event.Signature
}

// The state of a run at a scheduling decision
type RunState struct {
	// The index of the schedule decision that is being taken
	Step int
	// Tasks whose pending operation is enabled, ordered by task id
	Enabled []Candidate
	// Tasks whose pending operation is disabled, ordered by task id
	Blocked []Candidate
	// The events recorded by the previous step
	Last []event.Event
}

var (
	NoRunsError = errors.New("scheduler: No available new runs to be started")

	// Every enabled task is in the sleep set. Continuing the run can only produce executions that have already been explored.
	ErrSleepBlocked = errors.New("scheduler: all enabled tasks are sleeping")
	// Replaying a prefix did not reproduce the same pending operations
	ErrNondeterminism = errors.New("scheduler: the program is not deterministic under a fixed decision sequence")
	// The recorded decision could not be taken
	ErrReplayDiverged = errors.New("scheduler: the run diverged from the recorded decisions")
)

func tasks(candidates []Candidate) []event.TaskId {
	ids := make([]event.TaskId, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Task
	}
	return ids
}
