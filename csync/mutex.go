package csync

import (
	"interleave/event"
	"interleave/task"
)

// A mutual exclusion lock.
// A release happens before the next acquire of the same lock.
type Mutex struct {
	resource

	locked bool
	owner  event.TaskId

	lastRelease *event.EventId
}

func NewMutex(t *task.T) *Mutex {
	return &Mutex{resource: newResource(t, event.ResourceLock)}
}

// Block until the lock is free and acquire it
func (m *Mutex) Lock(t *task.T) {
	m.bind(t, event.KindLockAcquire)
	t.Do(&lockOp{m: m})
}

// Release the lock. Releasing a lock held by another task is a programming-model violation.
func (m *Mutex) Unlock(t *task.T) {
	m.bind(t, event.KindLockRelease)
	t.Do(&unlockOp{m: m})
}

type lockOp struct {
	m *Mutex
}

func (op *lockOp) Signature() event.Signature {
	return event.Signature{Kind: event.KindLockAcquire, Resource: op.m.id}
}

func (op *lockOp) Enabled() bool {
	return !op.m.locked
}

func (op *lockOp) Perform(s *task.Step) (task.Effect, error) {
	op.m.locked = true
	op.m.owner = s.Task.Id()
	eff := task.Effect{}
	if op.m.lastRelease != nil {
		eff.Partners = []event.EventId{*op.m.lastRelease}
	}
	return eff, nil
}

type unlockOp struct {
	m *Mutex
}

func (op *unlockOp) Signature() event.Signature {
	return event.Signature{Kind: event.KindLockRelease, Resource: op.m.id}
}

func (op *unlockOp) Enabled() bool {
	return true
}

func (op *unlockOp) Perform(s *task.Step) (task.Effect, error) {
	if !op.m.locked || op.m.owner != s.Task.Id() {
		return task.Effect{}, s.ModelError(event.KindLockRelease, "unlocks %v which it does not hold", op.m.id)
	}
	op.m.locked = false
	id := s.Id
	op.m.lastRelease = &id
	return task.Effect{}, nil
}
