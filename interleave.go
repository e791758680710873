// Package interleave tests concurrent programs by exploring their interleavings.
//
// The program is a function run as the main task of every execution. Tasks interact through
// the primitives of the csync package and the handles returned by task.T.Spawn. Every such
// interaction is a scheduling point where the engine decides which task runs next, so the
// same program is run under many orderings until an assertion fails, a task panics, the tasks
// deadlock or the search ends.
//
// A failing execution is reported as a counterexample holding the decisions that reproduce it.
// Replay runs the program again under exactly these decisions.
package interleave

import (
	"context"
	"testing"

	"interleave/explorer"
	"interleave/report"
	"interleave/scheduler"
	"interleave/task"

	"github.com/pkg/errors"
)

var (
	// The program broke the rules of the programming model. The error also unwraps to the *task.ModelError.
	ErrModelViolation = errors.New("interleave: programming model violation")

	// Replaying a decision prefix did not reproduce the same pending operations.
	// The program depends on something the engine does not control.
	ErrNondeterminism = scheduler.ErrNondeterminism
)

type modelViolation struct {
	err *task.ModelError
}

func (mv *modelViolation) Error() string {
	return ErrModelViolation.Error() + ": " + mv.err.Error()
}

func (mv *modelViolation) Is(target error) bool {
	return target == ErrModelViolation
}

func (mv *modelViolation) Unwrap() error {
	return mv.err
}

func wrapModelError(err error) error {
	var modelErr *task.ModelError
	if errors.As(err, &modelErr) {
		return &modelViolation{err: modelErr}
	}
	return err
}

// Explore the executions of body.
//
// Violations found in the program are described by the report.
// An error is returned if the exploration could not be completed:
// the configuration is invalid, the program broke the programming model (ErrModelViolation)
// or the engine detected that the program is not deterministic (ErrNondeterminism).
// The report is returned together with the error when the exploration started.
func Explore(body func(*task.T), opts ...Option) (*report.Report, error) {
	return ExploreContext(context.Background(), body, opts...)
}

// Explore the executions of body. ctx is carried by the contexts of the tasks.
func ExploreContext(ctx context.Context, body func(*task.T), opts ...Option) (*report.Report, error) {
	s, err := resolve(opts)
	if err != nil {
		return nil, err
	}
	r, err := s.newExplorer().Explore(ctx, body)
	return r, wrapModelError(err)
}

// Replay the counterexample.
//
// Runs body once under the decisions of the counterexample.
// Returns a *report.ReplayMismatchError if the execution diverges from the decisions
// or does not end with the same kind of violation on the same resource.
func Replay(body func(*task.T), cx *report.Counterexample, opts ...Option) (*report.Report, error) {
	return ReplayContext(context.Background(), body, cx, opts...)
}

func ReplayContext(ctx context.Context, body func(*task.T), cx *report.Counterexample, opts ...Option) (*report.Report, error) {
	var got *report.Violation
	opts = append(opts,
		WithScheduler(scheduler.NewReplay(cx.Decisions)),
		Workers(1),
		MaxDepth(0),
		MaxExecutions(0),
		WithObserver(func(ex *explorer.Execution) { got = ex.Violation }),
	)
	s, err := resolve(opts)
	if err != nil {
		return nil, err
	}
	s.strategy = "replay"
	s.cfg.Seed = cx.Seed

	r, err := s.newExplorer().Explore(ctx, body)
	var modelErr *task.ModelError
	switch {
	case errors.Is(err, scheduler.ErrReplayDiverged):
		return r, &report.ReplayMismatchError{Expected: cx.Violation, Cause: err}
	case errors.As(err, &modelErr):
	case err != nil:
		return r, err
	}
	return r, report.Compare(cx.Violation, got)
}

// Explore the executions of body and fail the test if a violation is found or the exploration fails.
// The failure message holds the counterexample.
func Check(tb testing.TB, body func(*task.T), opts ...Option) *report.Report {
	tb.Helper()
	r, err := Explore(body, opts...)
	if r == nil {
		tb.Fatalf("interleave: %v", err)
		return nil
	}
	if ok, desc := r.Response(); !ok || err != nil {
		tb.Fatalf("interleave: %s", desc)
	}
	return r
}
