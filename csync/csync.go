// Package csync contains the synchronisation primitives and shared variables of the programming model.
//
// Every operation on a primitive is a scheduling point: the calling task announces the operation
// and the engine decides when it is performed. Primitives must be created inside an execution
// and only be used by tasks of that execution.
package csync

import (
	"interleave/event"
	"interleave/task"
	"interleave/valueid"
)

type resource struct {
	id event.ResourceId
	rt *task.Runtime
}

func newResource(t *task.T, kind event.ResourceKind) resource {
	return resource{id: t.NewResource(kind), rt: t.Runtime()}
}

func (r *resource) Resource() event.ResourceId {
	return r.id
}

// Fails the task if the primitive belongs to another execution
func (r *resource) bind(t *task.T, kind event.Kind) {
	if t.Runtime() != r.rt {
		t.ModelErrorf(kind, "uses %v created in another execution", r.id)
	}
}

// Returns a copy of v that shares no memory with it.
// Values without an identity capability are a programming-model violation.
func clone[V any](t *task.T, kind event.Kind, v V) V {
	c, err := t.Runtime().Registry().Clone(v)
	if err != nil {
		t.ModelErrorf(kind, "%v", err)
	}
	if c == nil {
		var zero V
		return zero
	}
	return c.(V)
}

// Converts the result of an operation. A nil interface becomes the zero value.
func as[V any](x any) V {
	v, _ := x.(V)
	return v
}

func render(v any) string {
	return valueid.Render(v)
}
