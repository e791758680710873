package explorer

import (
	"interleave/event"
	"interleave/metrics"
	"interleave/report"
	"interleave/stateManager"
	"interleave/task"
	"interleave/trace"
)

// How a single execution ended
type Outcome int

const (
	// Every task finished
	Completed Outcome = iota
	// A task failed an assertion or panicked
	Violated
	// Every unfinished task was blocked
	Deadlocked
	// Every enabled task was in the sleep set. The execution would repeat an explored one
	Blocked
	// The execution reached the maximum depth
	Truncated
	// A task broke the programming model
	ModelError
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return metrics.OutcomeCompleted
	case Violated:
		return metrics.OutcomeViolated
	case Deadlocked:
		return metrics.OutcomeDeadlocked
	case Blocked:
		return metrics.OutcomeBlocked
	case Truncated:
		return metrics.OutcomeTruncated
	}
	return metrics.OutcomeModelError
}

// The record of one execution
type Execution struct {
	Worker    int
	Outcome   Outcome
	Decisions []event.Decision
	Trace     *trace.Trace
	// Number of schedule decisions taken
	Depth int
	// Set when the outcome is Violated, Deadlocked or ModelError
	Violation *report.Violation
	// Set when the outcome is ModelError
	ModelError *task.ModelError
	Verdict    stateManager.Verdict
}
