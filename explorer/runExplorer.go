package explorer

import (
	"context"
	"fmt"
	"strings"

	"interleave/event"
	"interleave/report"
	"interleave/scheduler"
	"interleave/stateManager"
	"interleave/task"
	"interleave/trace"
	"interleave/valueid"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// The result of one execution sent to the main loop
type runStatus struct {
	ex  *Execution
	err error
	// The scheduler had no run left to start
	noRuns bool
}

// Drives one execution at a time.
// A runExplorer owns the task runtime and the trace of its current execution.
type runExplorer struct {
	id       int
	sch      scheduler.RunScheduler
	sm       *stateManager.RunStateManager
	registry *valueid.Registry
	maxDepth int
	log      Logger

	rt   *task.Runtime
	tr   *trace.Trace
	ex   *Execution
	step int
	done bool
}

func newRunExplorer(id int, sch scheduler.RunScheduler, sm *stateManager.RunStateManager, registry *valueid.Registry, maxDepth int, log Logger) *runExplorer {
	return &runExplorer{
		id:       id,
		sch:      sch,
		sm:       sm,
		registry: registry,
		maxDepth: maxDepth,
		log:      log,
	}
}

// Main loop of the runExplorer.
// Explores one execution every time it receives a signal on nextRun and sends the result on status.
// Stops when nextRun is closed or when the scheduler has no more runs.
// Returns the error that made an execution fail.
func (re *runExplorer) ExploreRuns(ctx context.Context, nextRun <-chan bool, status chan<- runStatus, body func(*task.T)) error {
	for range nextRun {
		ex, err := re.exploreRun(ctx, body)
		if errors.Is(err, scheduler.NoRunsError) {
			status <- runStatus{noRuns: true}
			return nil
		}
		status <- runStatus{ex: ex, err: err}
		if err != nil {
			return err
		}
	}
	return nil
}

func (re *runExplorer) exploreRun(ctx context.Context, body func(*task.T)) (ex *Execution, err error) {
	if err := re.sch.StartRun(); err != nil {
		return nil, err
	}
	re.rt = task.NewRuntime(ctx, re.registry)
	re.tr = trace.New()
	re.ex = &Execution{Worker: re.id, Trace: re.tr, Decisions: []event.Decision{}}
	re.step = 0
	re.done = false

	// Always teardown the run
	defer func() {
		if endErr := re.teardownRun(); err == nil {
			err = endErr
		}
	}()

	if err := re.executeRun(body); err != nil {
		return re.ex, err
	}
	return re.ex, re.endState()
}

// Takes steps until the execution ends
func (re *runExplorer) executeRun(body func(*task.T)) error {
	root, result := re.rt.Spawn("main", body)
	if err := re.settle(root, result); err != nil || re.done {
		return err
	}

	last := slices.Clone(re.tr.Events())
	for {
		state, unfinished := re.runState(last)
		if unfinished == 0 {
			re.end(Completed)
			return nil
		}
		if len(state.Enabled) == 0 {
			re.deadlock(state.Blocked)
			return nil
		}
		if re.maxDepth > 0 && re.step >= re.maxDepth {
			re.end(Truncated)
			return nil
		}

		id, err := re.sch.Next(state)
		if errors.Is(err, scheduler.ErrSleepBlocked) {
			re.end(Blocked)
			return nil
		} else if err != nil {
			return err
		}

		start := re.tr.Len()
		if err := re.executeStep(id); err != nil || re.done {
			return err
		}
		last = slices.Clone(re.tr.Since(start))
		re.step++
	}
}

// Returns the scheduling state and the number of unfinished tasks
func (re *runExplorer) runState(last []event.Event) (scheduler.RunState, int) {
	state := scheduler.RunState{Step: re.step, Last: last}
	unfinished := 0
	for _, t := range re.rt.Tasks() {
		switch t.State() {
		case task.Runnable:
			state.Enabled = append(state.Enabled, scheduler.Candidate{Task: t.Id(), Op: t.Pending().Signature()})
		case task.Blocked:
			state.Blocked = append(state.Blocked, scheduler.Candidate{Task: t.Id(), Op: t.Pending().Signature()})
		default:
			continue
		}
		unfinished++
	}
	return state, unfinished
}

// Perform the pending operation of the task, record its event and resume the task
func (re *runExplorer) executeStep(id event.TaskId) error {
	current := re.rt.Task(id)
	if current == nil || current.State() != task.Runnable {
		return errors.WithMessagef(scheduler.ErrNondeterminism, "step %d: the scheduler selected %v which is not enabled", re.step, id)
	}
	re.decide(event.Schedule(id))

	op := current.Pending()
	sig := op.Signature()
	s := &task.Step{
		Id:      current.NextEventId(),
		Task:    current,
		Runtime: re.rt,
		Choose: func(n int) (int, error) {
			v, err := re.sch.Choose(id, n)
			if err != nil {
				return 0, err
			}
			re.decide(event.Choice(id, v))
			return v, nil
		},
	}
	effect, err := op.Perform(s)
	var modelErr *task.ModelError
	if errors.As(err, &modelErr) {
		re.modelError(modelErr)
		return nil
	} else if err != nil {
		return err
	}

	e, err := re.tr.Record(event.Event{
		Id:       s.Id,
		Kind:     sig.Kind,
		Resource: sig.Resource,
		Step:     re.step,
		Partners: effect.Partners,
		Detail:   effect.Detail,
	})
	if err != nil {
		return err
	}
	current.Advance()

	if spawned := effect.Spawned; spawned != nil {
		if err := re.tr.Start(spawned.Task.Id(), e.Id); err != nil {
			return err
		}
		if err := re.settle(spawned.Task, spawned.Result); err != nil || re.done {
			return err
		}
	}
	return re.settle(current, re.rt.Resume(current, effect.Result))
}

// Handle a task that has parked, finished or failed
func (re *runExplorer) settle(t *task.Task, result task.RunResult) error {
	switch result.Status {
	case task.Paused:
		return nil
	case task.Completed:
		e, err := re.tr.Record(event.Event{
			Id:       t.NextEventId(),
			Kind:     event.KindTaskEnd,
			Resource: event.TaskResource(t.Id()),
			Step:     re.step,
		})
		if err != nil {
			return err
		}
		t.Advance()
		t.SetEnd(e.Id)
		return nil
	case task.Failed:
		f := result.Failure
		if modelErr, ok := f.Value.(*task.ModelError); ok && f.Kind == task.FailureModel {
			re.modelError(modelErr)
			return nil
		}
		kind := report.ViolationPanic
		if f.Kind == task.FailureAssertion {
			kind = report.ViolationAssertion
		}
		re.violate(Violated, &report.Violation{
			Kind:     kind,
			Task:     t.Id(),
			TaskName: t.Name(),
			Resource: re.lastResource(t.Id()),
			Message:  f.Message,
			Stack:    f.Stack,
		})
		return nil
	}
	return errors.Errorf("explorer: %v returned an unexpected status %v", t, result.Status)
}

func (re *runExplorer) decide(d event.Decision) {
	re.ex.Decisions = append(re.ex.Decisions, d)
	re.sm.Record(d)
}

func (re *runExplorer) end(outcome Outcome) {
	re.ex.Outcome = outcome
	re.ex.Depth = re.step
	re.done = true
}

func (re *runExplorer) violate(outcome Outcome, v *report.Violation) {
	re.end(outcome)
	re.ex.Violation = v
}

func (re *runExplorer) modelError(err *task.ModelError) {
	name := ""
	if t := re.rt.Task(err.Task); t != nil {
		name = t.Name()
	}
	re.violate(ModelError, &report.Violation{
		Kind:     report.ViolationModel,
		Task:     err.Task,
		TaskName: name,
		Resource: re.lastResource(err.Task),
		Message:  err.Error(),
	})
	re.ex.ModelError = err
}

func (re *runExplorer) deadlock(blocked []scheduler.Candidate) {
	waiting := make([]string, len(blocked))
	for i, c := range blocked {
		waiting[i] = fmt.Sprintf("%v waiting at %v %v", re.rt.Task(c.Task), c.Op.Kind, c.Op.Resource)
	}
	first := blocked[0]
	resource := ""
	if !first.Op.Resource.IsZero() {
		resource = first.Op.Resource.String()
	}
	re.violate(Deadlocked, &report.Violation{
		Kind:     report.ViolationDeadlock,
		Task:     first.Task,
		TaskName: re.rt.Task(first.Task).Name(),
		Resource: resource,
		Message:  "every unfinished task is blocked: " + strings.Join(waiting, ", "),
	})
}

// Returns the resource of the last event of the task that accessed one
func (re *runExplorer) lastResource(id event.TaskId) string {
	events := re.tr.Events()
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.Task() == id && !e.Resource.IsZero() && e.Kind != event.KindTaskEnd {
			return e.Resource.String()
		}
	}
	return ""
}

// Hand the execution to the state manager.
// Blocked executions are not equivalent to a complete execution and are discarded.
func (re *runExplorer) endState() error {
	if re.ex.Outcome == Blocked {
		return nil
	}
	tracked := re.rt.Tracked()
	values := make([]any, len(tracked))
	for i, s := range tracked {
		values[i] = s.Value()
	}
	digest, err := re.rt.Registry().Digest(values...)
	if err != nil {
		return errors.WithMessage(err, "explorer: digesting the end state")
	}
	verdict, err := re.sm.EndRun(re.tr.Fingerprint(), digest, re.ex.Outcome == Completed)
	re.ex.Verdict = verdict
	return err
}

// Teardown the current execution.
// Every task goroutine exits and the scheduler learns the trace.
func (re *runExplorer) teardownRun() error {
	re.rt.Abort()
	re.sm.Reset()
	if err := re.sch.EndRun(re.tr); err != nil {
		return err
	}
	re.log.Debug("Execution ended",
		zap.Int("worker", re.id),
		zap.Stringer("outcome", re.ex.Outcome),
		zap.Int("depth", re.ex.Depth),
		zap.Int("events", re.tr.Len()),
	)
	return nil
}
