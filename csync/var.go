package csync

import (
	"interleave/event"
	"interleave/task"
)

// A plain shared variable. Loads and stores are not synchronising: unordered conflicting accesses race.
// Values are copied when they enter and leave the variable.
type Var[V any] struct {
	resource
	value V
}

// Create a variable holding a copy of initial.
// The variable is part of the state digested at the end of the execution.
func NewVar[V any](t *task.T, initial V) *Var[V] {
	v := &Var[V]{resource: newResource(t, event.ResourceVar)}
	v.value = clone(t, event.KindWrite, initial)
	t.Runtime().Track(v)
	return v
}

func (v *Var[V]) Load(t *task.T) V {
	v.bind(t, event.KindRead)
	return clone(t, event.KindRead, as[V](t.Do(&readOp[V]{v: v})))
}

func (v *Var[V]) Store(t *task.T, value V) {
	v.bind(t, event.KindWrite)
	t.Do(&writeOp[V]{v: v, value: clone(t, event.KindWrite, value)})
}

// Returns the current value. Only meant for the engine, tasks must use Load.
func (v *Var[V]) Value() any {
	return v.value
}

type readOp[V any] struct {
	v *Var[V]
}

func (op *readOp[V]) Signature() event.Signature {
	return event.Signature{Kind: event.KindRead, Resource: op.v.id}
}

func (op *readOp[V]) Enabled() bool {
	return true
}

func (op *readOp[V]) Perform(s *task.Step) (task.Effect, error) {
	return task.Effect{Result: op.v.value, Detail: render(op.v.value)}, nil
}

type writeOp[V any] struct {
	v     *Var[V]
	value V
}

func (op *writeOp[V]) Signature() event.Signature {
	return event.Signature{Kind: event.KindWrite, Resource: op.v.id}
}

func (op *writeOp[V]) Enabled() bool {
	return true
}

func (op *writeOp[V]) Perform(s *task.Step) (task.Effect, error) {
	op.v.value = op.value
	return task.Effect{Detail: render(op.value)}, nil
}
