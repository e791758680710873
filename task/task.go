package task

import (
	"fmt"

	"interleave/event"
)

type State int

const (
	Runnable State = iota
	Blocked
	Finished
)

func (s State) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Blocked:
		return "blocked"
	}
	return "finished"
}

// A Task is a simulated thread of the program under test.
//
// Every task is backed by a goroutine that only runs while the driver has resumed it.
// The fields of a task are only accessed by the goroutine currently holding control, either the task itself or the driver.
type Task struct {
	id   event.TaskId
	name string

	// the operation the task announced at its current scheduling point
	pending Op

	finished bool
	failure  *Failure
	// the task-end event, set by the driver when the end has been recorded
	end *event.EventId

	// number of recorded events
	events int
	// number of resources created by the task
	resources int

	wake     chan wakeup
	aborting bool
}

type wakeup struct {
	result any
	abort  bool
}

func (t *Task) Id() event.TaskId {
	return t.id
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) String() string {
	if t.name == "" {
		return t.id.String()
	}
	return fmt.Sprintf("%s (%v)", t.name, t.id)
}

// Returns the operation the task is waiting to perform, or nil if the task has finished
func (t *Task) Pending() Op {
	return t.pending
}

func (t *Task) State() State {
	switch {
	case t.finished:
		return Finished
	case t.pending != nil && !t.pending.Enabled():
		return Blocked
	}
	return Runnable
}

func (t *Task) Failure() *Failure {
	return t.failure
}

// Returns the id the next event of the task will get
func (t *Task) NextEventId() event.EventId {
	return event.EventId{Task: t.id, Index: t.events + 1}
}

// Marks the next event id as used. Called by the driver after the event has been recorded.
func (t *Task) Advance() {
	t.events++
}

// Called by the driver once the task-end event has been recorded
func (t *Task) SetEnd(id event.EventId) {
	t.end = &id
}

// Returns the task-end event if it has been recorded
func (t *Task) End() (event.EventId, bool) {
	if t.end == nil {
		return event.EventId{}, false
	}
	return *t.end, true
}

// A handle to a spawned task. The handle can be used to wait for the task to finish.
type Handle struct {
	task *Task
	rt   *Runtime
}

func (h *Handle) Id() event.TaskId {
	return h.task.id
}

// Block until the task has finished.
// The task-end event of the joined task happens before the join.
func (h *Handle) Join(t *T) {
	if h.rt != t.rt {
		t.ModelErrorf(event.KindJoin, "joins a task that belongs to another execution")
	}
	t.Do(&joinOp{target: h.task})
}
