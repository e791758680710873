package event

import (
	"fmt"

	"interleave/clock"
)

// Identifies a task within one execution. Ids are handed out in spawn order starting with the root task at 0,
// so the same program under the same decision sequence always assigns the same ids.
type TaskId int

func (t TaskId) String() string {
	return fmt.Sprintf("task%d", int(t))
}

// Identifies an event by the task that produced it and the per-task index of the event.
// The index starts at 1 and is the logical timestamp of the event in its own task.
type EventId struct {
	Task  TaskId
	Index int
}

func (id EventId) String() string {
	return fmt.Sprintf("%v#%d", id.Task, id.Index)
}

// An event is one observable action of a task: the effect of the operation the task announced at a scheduling point.
// Events are immutable once they have been recorded by the trace.
type Event struct {
	Id       EventId
	Kind     Kind
	Resource ResourceId

	// The index of the schedule decision whose step produced the event
	Step int
	// The position of the event in the trace
	Position int

	// Events the event synchronises with. Every partner happens before the event.
	Partners []EventId

	// Vector clock of the event. Set when the event is recorded.
	Clock clock.VectorClock

	// Human readable description of the operation, e.g. the value that was written
	Detail string
}

func (e Event) Task() TaskId {
	return e.Id.Task
}

// Returns the kind and resource of the event
func (e Event) Signature() Signature {
	return Signature{Kind: e.Kind, Resource: e.Resource}
}

func (e Event) String() string {
	if e.Resource.IsZero() {
		return fmt.Sprintf("%v %v", e.Id, e.Kind)
	}
	return fmt.Sprintf("%v %v(%v)", e.Id, e.Kind, e.Resource)
}

// The kind and resource of an operation.
// Signatures are used to compare the pending operations of a task across executions
// and to decide whether two operations are dependent before they are performed.
type Signature struct {
	Kind     Kind
	Resource ResourceId
}

func (s Signature) String() string {
	if s.Resource.IsZero() {
		return s.Kind.String()
	}
	return fmt.Sprintf("%v(%v)", s.Kind, s.Resource)
}

// Returns true if the order of the two operations can change the outcome of an execution.
// Two operations are dependent if they act on the same resource and at least one of them mutates it.
func Dependent(a, b Signature) bool {
	if a.Resource.IsZero() || b.Resource.IsZero() {
		return false
	}
	if a.Resource != b.Resource {
		return false
	}
	return a.Kind.IsMutation() || b.Kind.IsMutation()
}
