package task

import (
	"context"
	"runtime"
	"sync"

	"interleave/event"
	"interleave/valueid"
)

type Status int

const (
	// The task announced an operation and is parked at a scheduling point
	Paused Status = iota
	// The body of the task returned
	Completed
	// The task panicked, failed an assertion or broke the programming model
	Failed
	// the task exited while the execution was aborted
	exited
)

// The result of running a task until it parks or ends
type RunResult struct {
	Status  Status
	Op      Op
	Failure *Failure
}

type report struct {
	status  Status
	op      Op
	failure *Failure
}

// Something whose value is part of the state of the program at the end of an execution
type Stateful interface {
	Resource() event.ResourceId
	Value() any
}

// A Runtime owns the tasks of a single execution.
//
// Tasks hand control back and forth with the driver over unbuffered channels,
// so at any time either the driver or exactly one task is running.
// A Runtime is used by a single driver goroutine and must not be shared between executions.
type Runtime struct {
	ctx      context.Context
	registry *valueid.Registry

	tasks   []*Task
	current *Task
	yield   chan report

	tracked []Stateful
	locals  map[any]any

	wg sync.WaitGroup
}

func NewRuntime(ctx context.Context, registry *valueid.Registry) *Runtime {
	if registry == nil {
		registry = valueid.NewRegistry()
	}
	return &Runtime{
		ctx:      ctx,
		registry: registry,
		tasks:    []*Task{},
		yield:    make(chan report),
		tracked:  []Stateful{},
		locals:   make(map[any]any),
	}
}

// Create a new task and run it until its first scheduling point.
// The first task spawned is the root task with id 0.
func (rt *Runtime) Spawn(name string, body func(*T)) (*Task, RunResult) {
	task := &Task{
		id:   event.TaskId(len(rt.tasks)),
		name: name,
		wake: make(chan wakeup),
	}
	rt.tasks = append(rt.tasks, task)

	rt.wg.Add(1)
	rt.current = task
	go rt.run(task, body)
	return task, rt.await(task)
}

// Resume a parked task with the result of its pending operation and run it until its next scheduling point
func (rt *Runtime) Resume(task *Task, result any) RunResult {
	rt.current = task
	task.pending = nil
	task.wake <- wakeup{result: result}
	return rt.await(task)
}

// Abort the execution. Every parked task exits and Abort waits until all task goroutines have returned.
func (rt *Runtime) Abort() {
	for _, task := range rt.tasks {
		if task.finished {
			continue
		}
		task.aborting = true
		rt.current = task
		task.wake <- wakeup{abort: true}
		<-rt.yield
		task.finished = true
		task.pending = nil
	}
	rt.wg.Wait()
}

func (rt *Runtime) await(task *Task) RunResult {
	r := <-rt.yield
	switch r.status {
	case Paused:
		task.pending = r.op
	case Failed:
		task.failure = r.failure
		task.finished = true
	default:
		task.finished = true
	}
	return RunResult{Status: r.status, Op: r.op, Failure: r.failure}
}

func (rt *Runtime) run(task *Task, body func(*T)) {
	defer rt.wg.Done()
	completed := false
	defer func() {
		if r := recover(); r != nil {
			rt.yield <- report{status: Failed, failure: newFailure(r)}
			return
		}
		switch {
		case completed:
			rt.yield <- report{status: Completed}
		case task.aborting:
			rt.yield <- report{status: exited}
		default:
			// runtime.Goexit called by the body, e.g. through testing.T.FailNow
			err := &ModelError{Task: task.id, Kind: event.KindTaskEnd, Reason: "exited without returning (runtime.Goexit)"}
			rt.yield <- report{status: Failed, failure: newFailure(err)}
		}
	}()
	body(&T{task: task, rt: rt})
	completed = true
}

func (rt *Runtime) Tasks() []*Task {
	return rt.tasks
}

func (rt *Runtime) Task(id event.TaskId) *Task {
	if int(id) < 0 || int(id) >= len(rt.tasks) {
		return nil
	}
	return rt.tasks[id]
}

func (rt *Runtime) Registry() *valueid.Registry {
	return rt.registry
}

// Add a value to the state digested at the end of the execution
func (rt *Runtime) Track(s Stateful) {
	rt.tracked = append(rt.tracked, s)
}

func (rt *Runtime) Tracked() []Stateful {
	return rt.tracked
}

// Returns the execution-local value stored under key, creating it with init on first use.
// Used by instrumentation layers that keep per-execution state.
func (rt *Runtime) Local(key any, init func() any) any {
	v, ok := rt.locals[key]
	if !ok {
		v = init()
		rt.locals[key] = v
	}
	return v
}

// The handle a task uses to interact with the engine.
// A T may only be used by the task it was given to.
type T struct {
	task *Task
	rt   *Runtime
}

func (t *T) Id() event.TaskId {
	return t.task.id
}

func (t *T) Name() string {
	return t.task.name
}

func (t *T) Runtime() *Runtime {
	return t.rt
}

// Announce the operation and park until the driver has performed it.
// Returns the result of the operation.
func (t *T) Do(op Op) any {
	task := t.task
	if task.aborting {
		runtime.Goexit()
	}
	if t.rt.current != task {
		t.ModelErrorf(op.Signature().Kind, "uses the handle of %v", task)
	}
	t.rt.yield <- report{status: Paused, op: op}
	w := <-task.wake
	if w.abort {
		runtime.Goexit()
	}
	return w.result
}

// Start a new task running body. The spawn happens before every event of the new task.
func (t *T) Spawn(name string, body func(*T)) *Handle {
	return t.Do(&spawnOp{name: name, body: body}).(*Handle)
}

// Start a new unnamed task
func (t *T) Go(body func(*T)) *Handle {
	return t.Spawn("", body)
}

// Let the engine schedule another task
func (t *T) Yield() {
	t.Do(yieldOp{})
}

// Returns a value in [0, n) chosen by the engine.
// Every value is explored by exhaustive search.
func (t *T) Choose(n int) int {
	if n <= 0 {
		t.ModelErrorf(event.KindRandom, "chooses from %d values", n)
	}
	return t.Do(&chooseOp{n: n}).(int)
}

// Fail the execution with an assertion violation if cond is false
func (t *T) Assert(cond bool, format string, args ...any) {
	if !cond {
		t.Fatalf(format, args...)
	}
}

// Fail the execution with an assertion violation
func (t *T) Fatalf(format string, args ...any) {
	panic(newAssertion(format, args...))
}

// Returns a context carrying the task. Instrumentation layers use FromContext to find the task behind a call.
func (t *T) Context() context.Context {
	return context.WithValue(t.rt.ctx, taskKey{}, t)
}

// Returns a new resource owned by the task.
// The id depends only on the task and the number of resources it created before, so it is stable across executions.
func (t *T) NewResource(kind event.ResourceKind) event.ResourceId {
	t.task.resources++
	return event.ResourceId{Kind: kind, Owner: t.task.id, Seq: t.task.resources}
}

type taskKey struct{}

// Returns the task carried by ctx
func FromContext(ctx context.Context) (*T, bool) {
	t, ok := ctx.Value(taskKey{}).(*T)
	return t, ok
}
