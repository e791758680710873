package task

import (
	"context"
	"runtime"
	"testing"

	"interleave/event"
)

// Drives a runtime by always resuming the runnable task with the lowest id.
// Returns the failure that ended the run, if any.
func drive(t *testing.T, rt *Runtime, body func(*T)) *Failure {
	t.Helper()
	root, res := rt.Spawn("root", body)
	if res.Status == Failed {
		return res.Failure
	}
	_ = root
	for steps := 0; steps < 1000; steps++ {
		var next *Task
		for _, task := range rt.Tasks() {
			if task.State() == Runnable {
				next = task
				break
			}
		}
		if next == nil {
			return nil
		}
		s := &Step{
			Id:      next.NextEventId(),
			Task:    next,
			Runtime: rt,
			Choose:  func(n int) (int, error) { return n - 1, nil },
		}
		eff, err := next.Pending().Perform(s)
		if err != nil {
			t.Fatalf("Unexpected error performing %v: %v", next.Pending().Signature(), err)
		}
		next.Advance()
		if eff.Spawned != nil && eff.Spawned.Result.Status == Failed {
			return eff.Spawned.Result.Failure
		}
		if eff.Spawned != nil && eff.Spawned.Result.Status == Completed {
			eff.Spawned.Task.SetEnd(eff.Spawned.Task.NextEventId())
		}
		res := rt.Resume(next, eff.Result)
		switch res.Status {
		case Failed:
			return res.Failure
		case Completed:
			next.SetEnd(next.NextEventId())
		}
	}
	t.Fatalf("The run did not terminate")
	return nil
}

func TestSpawnAndJoin(t *testing.T) {
	rt := NewRuntime(context.Background(), nil)
	order := []string{}
	failure := drive(t, rt, func(root *T) {
		order = append(order, "root")
		h := root.Spawn("child", func(child *T) {
			order = append(order, "child")
			child.Yield()
			order = append(order, "child done")
		})
		h.Join(root)
		order = append(order, "joined")
	})
	if failure != nil {
		t.Fatalf("Unexpected failure: %v", failure)
	}
	expected := []string{"root", "child", "child done", "joined"}
	if len(order) != len(expected) {
		t.Fatalf("Expected %v. Got %v", expected, order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Fatalf("Expected %v. Got %v", expected, order)
		}
	}
	if len(rt.Tasks()) != 2 || rt.Task(1).Name() != "child" {
		t.Fatalf("Expected a root and a child task. Got %v", rt.Tasks())
	}
	for _, task := range rt.Tasks() {
		if task.State() != Finished {
			t.Errorf("%v should be finished. Is %v", task, task.State())
		}
	}
}

func TestChoose(t *testing.T) {
	rt := NewRuntime(context.Background(), nil)
	var got int
	if failure := drive(t, rt, func(root *T) { got = root.Choose(3) }); failure != nil {
		t.Fatalf("Unexpected failure: %v", failure)
	}
	if got != 2 {
		t.Fatalf("Expected the value picked by the driver. Got %v", got)
	}
}

func TestFailures(t *testing.T) {
	tests := []struct {
		name string
		body func(*T)
		kind FailureKind
	}{
		{"panic", func(root *T) { panic("boom") }, FailurePanic},
		{"assertion", func(root *T) { root.Yield(); root.Assert(1 == 2, "one is %v", 2) }, FailureAssertion},
		{"foreign handle", func(root *T) {
			root.Go(func(child *T) {
				root.Yield()
			})
		}, FailureModel},
		{"no choices", func(root *T) { root.Choose(0) }, FailureModel},
		{"goexit", func(root *T) { runtime.Goexit() }, FailureModel},
		{"goexit after yield", func(root *T) { root.Yield(); runtime.Goexit() }, FailureModel},
	}
	for _, test := range tests {
		rt := NewRuntime(context.Background(), nil)
		failure := drive(t, rt, test.body)
		if failure == nil {
			t.Errorf("%v: Expected a failure", test.name)
			continue
		}
		if failure.Kind != test.kind {
			t.Errorf("%v: Expected failure kind %v. Got %v: %v", test.name, test.kind, failure.Kind, failure.Message)
		}
		if failure.Stack == "" {
			t.Errorf("%v: Expected a stack trace", test.name)
		}
		rt.Abort()
	}
}

func TestAbortRunsDeferredFunctions(t *testing.T) {
	rt := NewRuntime(context.Background(), nil)
	deferred := 0
	rt.Spawn("root", func(root *T) {
		defer func() { deferred++ }()
		// Scheduling points reached while aborting exit immediately
		defer root.Yield()
		root.Yield()
		t.Errorf("The task should not be resumed")
	})
	rt.Abort()
	if deferred != 1 {
		t.Fatalf("Expected the deferred function to run once. Ran %v times", deferred)
	}
	if rt.Task(0).State() != Finished {
		t.Fatalf("Aborted tasks should be finished")
	}
}

func TestContext(t *testing.T) {
	rt := NewRuntime(context.Background(), nil)
	var id event.TaskId = -1
	drive(t, rt, func(root *T) {
		if got, ok := FromContext(root.Context()); ok {
			id = got.Id()
		}
	})
	if id != 0 {
		t.Fatalf("Expected to find the root task in its context. Got %v", id)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("A plain context should not carry a task")
	}
}

func TestResourcesAreStable(t *testing.T) {
	ids := [2][]event.ResourceId{}
	for i := range ids {
		rt := NewRuntime(context.Background(), nil)
		drive(t, rt, func(root *T) {
			ids[i] = append(ids[i], root.NewResource(event.ResourceVar))
			root.Go(func(child *T) {
				ids[i] = append(ids[i], child.NewResource(event.ResourceLock))
			})
			ids[i] = append(ids[i], root.NewResource(event.ResourceChan))
		})
	}
	if len(ids[0]) != 3 {
		t.Fatalf("Expected three resources. Got %v", ids[0])
	}
	for j := range ids[0] {
		if ids[0][j] != ids[1][j] {
			t.Errorf("Resource %v differs between runs: %v and %v", j, ids[0][j], ids[1][j])
		}
	}
}
