package csync

import (
	"interleave/event"
	"interleave/task"
)

// A FIFO channel between tasks.
//
// A send happens before the receive of the same message and a close happens before every receive that observes it.
// A capacity of zero or less gives an unbounded channel where sends never block.
type Chan[V any] struct {
	resource

	capacity int
	buf      []message[V]

	closed     bool
	closeEvent event.EventId
}

type message[V any] struct {
	value V
	sent  event.EventId
}

type closedChannel string

func NewChan[V any](t *task.T, capacity int) *Chan[V] {
	return &Chan[V]{
		resource: newResource(t, event.ResourceChan),
		capacity: capacity,
		buf:      []message[V]{},
	}
}

// Send a copy of value. Blocks while a bounded channel is full.
// Sending on a closed channel panics.
func (c *Chan[V]) Send(t *task.T, value V) {
	c.bind(t, event.KindSend)
	if msg, ok := t.Do(&sendOp[V]{c: c, value: clone(t, event.KindSend, value)}).(closedChannel); ok {
		panic(string(msg))
	}
}

// Receive the oldest message. Blocks while the channel is empty and open.
// Returns the zero value and false once the channel is closed and drained.
func (c *Chan[V]) Recv(t *task.T) (V, bool) {
	c.bind(t, event.KindRecv)
	msg, ok := t.Do(&recvOp[V]{c: c}).(message[V])
	if !ok {
		var zero V
		return zero, false
	}
	return clone(t, event.KindRecv, msg.value), true
}

// Close the channel. Closing a closed channel panics.
func (c *Chan[V]) Close(t *task.T) {
	c.bind(t, event.KindClose)
	if msg, ok := t.Do(&closeOp[V]{c: c}).(closedChannel); ok {
		panic(string(msg))
	}
}

type sendOp[V any] struct {
	c     *Chan[V]
	value V
}

func (op *sendOp[V]) Signature() event.Signature {
	return event.Signature{Kind: event.KindSend, Resource: op.c.id}
}

func (op *sendOp[V]) Enabled() bool {
	c := op.c
	return c.closed || c.capacity <= 0 || len(c.buf) < c.capacity
}

func (op *sendOp[V]) Perform(s *task.Step) (task.Effect, error) {
	c := op.c
	if c.closed {
		return task.Effect{Result: closedChannel("send on closed channel"), Partners: []event.EventId{c.closeEvent}}, nil
	}
	c.buf = append(c.buf, message[V]{value: op.value, sent: s.Id})
	return task.Effect{Detail: render(op.value)}, nil
}

type recvOp[V any] struct {
	c *Chan[V]
}

func (op *recvOp[V]) Signature() event.Signature {
	return event.Signature{Kind: event.KindRecv, Resource: op.c.id}
}

func (op *recvOp[V]) Enabled() bool {
	return len(op.c.buf) > 0 || op.c.closed
}

func (op *recvOp[V]) Perform(s *task.Step) (task.Effect, error) {
	c := op.c
	if len(c.buf) == 0 {
		return task.Effect{Partners: []event.EventId{c.closeEvent}, Detail: "closed"}, nil
	}
	msg := c.buf[0]
	c.buf = c.buf[1:]
	return task.Effect{Result: msg, Partners: []event.EventId{msg.sent}, Detail: render(msg.value)}, nil
}

type closeOp[V any] struct {
	c *Chan[V]
}

func (op *closeOp[V]) Signature() event.Signature {
	return event.Signature{Kind: event.KindClose, Resource: op.c.id}
}

func (op *closeOp[V]) Enabled() bool {
	return true
}

func (op *closeOp[V]) Perform(s *task.Step) (task.Effect, error) {
	c := op.c
	if c.closed {
		return task.Effect{Result: closedChannel("close of closed channel"), Partners: []event.EventId{c.closeEvent}}, nil
	}
	c.closed = true
	c.closeEvent = s.Id
	return task.Effect{}, nil
}
