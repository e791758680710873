package task

import (
	"fmt"
	"runtime/debug"

	"interleave/event"
)

type FailureKind int

const (
	FailurePanic FailureKind = iota
	FailureAssertion
	FailureModel
)

func (k FailureKind) String() string {
	switch k {
	case FailureAssertion:
		return "assertion"
	case FailureModel:
		return "model"
	}
	return "panic"
}

// Describes why a task failed
type Failure struct {
	Kind    FailureKind
	Value   any
	Message string
	Stack   string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%v: %s", f.Kind, f.Message)
}

// The program broke the rules of the programming model, e.g. by unlocking a mutex it does not hold
// or by using a primitive created in another execution.
type ModelError struct {
	Task   event.TaskId
	Kind   event.Kind
	Reason string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("task: programming model violation by %v at %v: %s", e.Task, e.Kind, e.Reason)
}

// Returns a ModelError for the task behind the step
func (s *Step) ModelError(kind event.Kind, format string, args ...any) *ModelError {
	return &ModelError{Task: s.Task.id, Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Fail the task with a programming-model violation. Used by instrumented primitives.
func (t *T) ModelErrorf(kind event.Kind, format string, args ...any) {
	panic(&ModelError{Task: t.task.id, Kind: kind, Reason: fmt.Sprintf(format, args...)})
}

type assertion struct {
	msg string
}

func newAssertion(format string, args ...any) *assertion {
	return &assertion{msg: fmt.Sprintf(format, args...)}
}

func newFailure(r any) *Failure {
	f := &Failure{Value: r, Stack: string(debug.Stack())}
	switch v := r.(type) {
	case *assertion:
		f.Kind = FailureAssertion
		f.Message = v.msg
	case *ModelError:
		f.Kind = FailureModel
		f.Message = v.Error()
	case error:
		f.Kind = FailurePanic
		f.Message = v.Error()
	default:
		f.Kind = FailurePanic
		f.Message = fmt.Sprint(v)
	}
	return f
}
