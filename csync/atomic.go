package csync

import (
	"interleave/event"
	"interleave/task"
)

// An atomic variable. A store happens before every load and read-modify-write that observes it.
type Atomic[V any] struct {
	resource
	value     V
	lastStore *event.EventId
}

func NewAtomic[V any](t *task.T, initial V) *Atomic[V] {
	a := &Atomic[V]{resource: newResource(t, event.ResourceAtomic)}
	a.value = clone(t, event.KindAtomicStore, initial)
	t.Runtime().Track(a)
	return a
}

func (a *Atomic[V]) Load(t *task.T) V {
	a.bind(t, event.KindAtomicLoad)
	return clone(t, event.KindAtomicLoad, as[V](t.Do(&atomicOp[V]{a: a, kind: event.KindAtomicLoad})))
}

func (a *Atomic[V]) Store(t *task.T, value V) {
	a.bind(t, event.KindAtomicStore)
	value = clone(t, event.KindAtomicStore, value)
	t.Do(&atomicOp[V]{a: a, kind: event.KindAtomicStore, update: func(V) (V, bool, error) { return value, true, nil }})
}

// Store value and return the previous value
func (a *Atomic[V]) Swap(t *task.T, value V) V {
	a.bind(t, event.KindAtomicRMW)
	value = clone(t, event.KindAtomicRMW, value)
	old := t.Do(&atomicOp[V]{a: a, kind: event.KindAtomicRMW, update: func(V) (V, bool, error) { return value, true, nil }})
	return clone(t, event.KindAtomicRMW, as[V](old))
}

// Store new if the current value equals old. Returns true if the value was swapped.
func (a *Atomic[V]) CompareAndSwap(t *task.T, old, new V) bool {
	a.bind(t, event.KindAtomicRMW)
	registry := t.Runtime().Registry()
	new = clone(t, event.KindAtomicRMW, new)
	swapped := false
	t.Do(&atomicOp[V]{a: a, kind: event.KindAtomicRMW, update: func(current V) (V, bool, error) {
		eq, err := registry.Equal(current, old)
		if err != nil || !eq {
			return current, false, err
		}
		swapped = true
		return new, true, nil
	}})
	return swapped
}

func (a *Atomic[V]) Value() any {
	return a.value
}

type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Atomically add delta to the variable and return the new value
func Add[V Integer](t *task.T, a *Atomic[V], delta V) V {
	a.bind(t, event.KindAtomicRMW)
	var result V
	t.Do(&atomicOp[V]{a: a, kind: event.KindAtomicRMW, update: func(current V) (V, bool, error) {
		result = current + delta
		return result, true, nil
	}})
	return result
}

type atomicOp[V any] struct {
	a    *Atomic[V]
	kind event.Kind
	// Computes the new value from the current one. Nil for loads.
	update func(V) (V, bool, error)
}

func (op *atomicOp[V]) Signature() event.Signature {
	return event.Signature{Kind: op.kind, Resource: op.a.id}
}

func (op *atomicOp[V]) Enabled() bool {
	return true
}

func (op *atomicOp[V]) Perform(s *task.Step) (task.Effect, error) {
	a := op.a
	eff := task.Effect{Result: a.value}
	if a.lastStore != nil && op.kind != event.KindAtomicStore {
		eff.Partners = []event.EventId{*a.lastStore}
	}
	if op.update == nil {
		eff.Detail = render(a.value)
		return eff, nil
	}
	value, stored, err := op.update(a.value)
	if err != nil {
		return task.Effect{}, s.ModelError(op.kind, "%v", err)
	}
	if stored {
		a.value = value
		id := s.Id
		a.lastStore = &id
	}
	eff.Detail = render(a.value)
	return eff, nil
}
