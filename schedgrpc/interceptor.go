// Package schedgrpc turns gRPC client calls made by tasks into scheduling points.
//
// A call is announced to the engine before it is sent, so the order in which tasks reach
// a service is decided by the scheduler and explored like any other shared resource.
// Calls on the same target and method are dependent. Each call happens after the previous call
// on the same target and method.
package schedgrpc

import (
	"context"

	"interleave/event"
	"interleave/task"

	"google.golang.org/grpc"
)

type lastCallsKey struct{}

// The last recorded call of every resource in the current execution
type lastCalls map[event.ResourceId]event.EventId

func callsOf(rt *task.Runtime) lastCalls {
	return rt.Local(lastCallsKey{}, func() any { return lastCalls{} }).(lastCalls)
}

type callOp struct {
	resource event.ResourceId
	method   string
}

func (op *callOp) Signature() event.Signature {
	return event.Signature{Kind: event.KindRPC, Resource: op.resource}
}

func (op *callOp) Enabled() bool {
	return true
}

func (op *callOp) Perform(s *task.Step) (task.Effect, error) {
	calls := callsOf(s.Runtime)
	eff := task.Effect{Detail: op.method}
	if prev, ok := calls[op.resource]; ok {
		eff.Partners = []event.EventId{prev}
	}
	calls[op.resource] = s.Id
	return eff, nil
}

// Returns the resource representing calls of method on the target of cc
func Resource(cc *grpc.ClientConn, method string) event.ResourceId {
	return event.NamedResource(event.ResourceRPC, cc.Target()+method)
}

// Wait at a scheduling point until the engine lets the task behind ctx make the call.
// Calls from a context without a task proceed immediately.
func schedule(ctx context.Context, cc *grpc.ClientConn, method string) {
	t, ok := task.FromContext(ctx)
	if !ok {
		return
	}
	t.Do(&callOp{resource: Resource(cc, method), method: method})
}

// Create a UnaryClientInterceptor that makes every unary call a scheduling point.
// The context of the call must be derived from task.T.Context for the call to be controlled.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		schedule(ctx, cc, method)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Create a StreamClientInterceptor that makes opening a stream a scheduling point.
// Messages sent and received on the stream are not controlled.
func StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		schedule(ctx, cc, method)
		return streamer(ctx, desc, cc, method, opts...)
	}
}
