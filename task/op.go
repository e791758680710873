package task

import (
	"fmt"

	"interleave/event"
)

// An Op is an operation announced by a task at a scheduling point.
//
// The task parks after announcing the operation. When the driver selects the task it calls Perform on the driver goroutine,
// records the resulting event and resumes the task with the result.
// Enabled and Perform are only called while all tasks are parked.
type Op interface {
	// The kind and resource of the event the operation will produce.
	// The signature must not change while the operation is pending.
	Signature() event.Signature

	// Returns true if the operation can be performed in the current state
	Enabled() bool

	// Apply the effect of the operation on the shared state.
	// A *ModelError is reported as a programming-model violation of the task.
	Perform(s *Step) (Effect, error)
}

// The context of performing an operation
type Step struct {
	// The id of the event the operation will produce
	Id      event.EventId
	Task    *Task
	Runtime *Runtime

	// Draws a controlled random value in [0, n)
	Choose func(n int) (int, error)
}

// The outcome of performing an operation
type Effect struct {
	// Returned to the task from its scheduling point
	Result any
	// The events the new event synchronises with
	Partners []event.EventId
	// Human readable description of the event
	Detail string
	// Set when the operation started a new task
	Spawned *Spawned
}

// A task started while performing an operation, together with the result of running it to its first scheduling point
type Spawned struct {
	Task   *Task
	Result RunResult
}

var spawner = event.NamedResource(event.ResourceTask, "spawn")

type spawnOp struct {
	name string
	body func(*T)
}

// Spawns share one resource. The id of a child depends on the order of spawns.
func (op *spawnOp) Signature() event.Signature {
	return event.Signature{Kind: event.KindSpawn, Resource: spawner}
}

func (op *spawnOp) Enabled() bool {
	return true
}

func (op *spawnOp) Perform(s *Step) (Effect, error) {
	child, result := s.Runtime.Spawn(op.name, op.body)
	return Effect{
		Result:  &Handle{task: child, rt: s.Runtime},
		Detail:  child.String(),
		Spawned: &Spawned{Task: child, Result: result},
	}, nil
}

type joinOp struct {
	target *Task
}

func (op *joinOp) Signature() event.Signature {
	return event.Signature{Kind: event.KindJoin, Resource: event.TaskResource(op.target.id)}
}

func (op *joinOp) Enabled() bool {
	_, ok := op.target.End()
	return ok
}

func (op *joinOp) Perform(s *Step) (Effect, error) {
	end, _ := op.target.End()
	return Effect{Partners: []event.EventId{end}, Detail: op.target.String()}, nil
}

type yieldOp struct{}

func (yieldOp) Signature() event.Signature {
	return event.Signature{Kind: event.KindYield}
}

func (yieldOp) Enabled() bool {
	return true
}

func (yieldOp) Perform(s *Step) (Effect, error) {
	return Effect{}, nil
}

type chooseOp struct {
	n int
}

func (op *chooseOp) Signature() event.Signature {
	return event.Signature{Kind: event.KindRandom}
}

func (op *chooseOp) Enabled() bool {
	return true
}

func (op *chooseOp) Perform(s *Step) (Effect, error) {
	v, err := s.Choose(op.n)
	if err != nil {
		return Effect{}, err
	}
	return Effect{Result: v, Detail: fmt.Sprintf("%d of %d", v, op.n)}, nil
}
