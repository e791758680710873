package csync

import (
	"interleave/event"
	"interleave/task"
)

// Notify wakes waiting tasks.
//
// NotifyOne wakes one registered waiter. Without waiters it stores a single permit that the next Wait consumes;
// permits do not accumulate. NotifyAll wakes every registered waiter and stores no permit.
// A notify happens before the wait it releases.
type Notify struct {
	resource

	permit *event.EventId
	// number of registered waiters that have not been woken
	waiters int
	// notifications handed to woken waiters that have not returned yet
	tickets []event.EventId
}

func NewNotify(t *task.T) *Notify {
	return &Notify{resource: newResource(t, event.ResourceNotify), tickets: []event.EventId{}}
}

// Wait until notified
func (n *Notify) Wait(t *task.T) {
	n.bind(t, event.KindWait)
	if consumed := t.Do(&registerOp{n: n}).(bool); consumed {
		return
	}
	t.Do(&wakeOp{n: n})
}

func (n *Notify) NotifyOne(t *task.T) {
	n.bind(t, event.KindNotify)
	t.Do(&notifyOp{n: n})
}

func (n *Notify) NotifyAll(t *task.T) {
	n.bind(t, event.KindNotify)
	t.Do(&notifyOp{n: n, all: true})
}

// Consumes a stored permit or registers the task as a waiter
type registerOp struct {
	n *Notify
}

func (op *registerOp) Signature() event.Signature {
	return event.Signature{Kind: event.KindWait, Resource: op.n.id}
}

func (op *registerOp) Enabled() bool {
	return true
}

func (op *registerOp) Perform(s *task.Step) (task.Effect, error) {
	n := op.n
	if n.permit != nil {
		eff := task.Effect{Result: true, Partners: []event.EventId{*n.permit}, Detail: "permit"}
		n.permit = nil
		return eff, nil
	}
	n.waiters++
	return task.Effect{Result: false, Detail: "registered"}, nil
}

type wakeOp struct {
	n *Notify
}

func (op *wakeOp) Signature() event.Signature {
	return event.Signature{Kind: event.KindWait, Resource: op.n.id}
}

func (op *wakeOp) Enabled() bool {
	return len(op.n.tickets) > 0
}

func (op *wakeOp) Perform(s *task.Step) (task.Effect, error) {
	n := op.n
	ticket := n.tickets[0]
	n.tickets = n.tickets[1:]
	return task.Effect{Partners: []event.EventId{ticket}, Detail: "woken"}, nil
}

type notifyOp struct {
	n   *Notify
	all bool
}

func (op *notifyOp) Signature() event.Signature {
	return event.Signature{Kind: event.KindNotify, Resource: op.n.id}
}

func (op *notifyOp) Enabled() bool {
	return true
}

func (op *notifyOp) Perform(s *task.Step) (task.Effect, error) {
	n := op.n
	switch {
	case op.all:
		for ; n.waiters > 0; n.waiters-- {
			n.tickets = append(n.tickets, s.Id)
		}
	case n.waiters > 0:
		n.waiters--
		n.tickets = append(n.tickets, s.Id)
	default:
		id := s.Id
		n.permit = &id
	}
	return task.Effect{}, nil
}
