package scheduler

import (
	"fmt"
	"testing"

	"interleave/event"
	"interleave/trace"

	"github.com/pkg/errors"
)

var (
	x = event.ResourceId{Kind: event.ResourceVar, Owner: 0, Seq: 1}
	y = event.ResourceId{Kind: event.ResourceVar, Owner: 0, Seq: 2}
)

func write(r event.ResourceId) event.Signature {
	return event.Signature{Kind: event.KindWrite, Resource: r}
}

func read(r event.ResourceId) event.Signature {
	return event.Signature{Kind: event.KindRead, Resource: r}
}

var choose3 = event.Signature{Kind: event.KindRandom}

// A program where every task performs a fixed list of operations that are always enabled.
// A random operation chooses from three values.
type mockProgram map[event.TaskId][]event.Signature

type mockRun struct {
	decisions []event.Decision
}

func (r mockRun) String() string {
	return fmt.Sprint(r.decisions)
}

// Simulates the driver for one run of the program
func runProgram(sch RunScheduler, prog mockProgram) (mockRun, error) {
	tr := trace.New()
	pc := map[event.TaskId]int{}
	run := mockRun{}
	var last []event.Event
	for step := 0; ; step++ {
		state := RunState{Step: step, Last: last}
		for t := event.TaskId(0); int(t) < len(prog); t++ {
			if pc[t] < len(prog[t]) {
				state.Enabled = append(state.Enabled, Candidate{Task: t, Op: prog[t][pc[t]]})
			}
		}
		if len(state.Enabled) == 0 {
			break
		}
		task, err := sch.Next(state)
		if err != nil {
			if endErr := sch.EndRun(tr); endErr != nil {
				return run, endErr
			}
			return run, err
		}
		run.decisions = append(run.decisions, event.Schedule(task))
		op := prog[task][pc[task]]
		pc[task]++
		detail := ""
		if op == choose3 {
			v, err := sch.Choose(task, 3)
			if err != nil {
				sch.EndRun(tr)
				return run, err
			}
			run.decisions = append(run.decisions, event.Choice(task, v))
			detail = fmt.Sprint(v)
		}
		e, err := tr.Record(event.Event{
			Id:       event.EventId{Task: task, Index: pc[task]},
			Kind:     op.Kind,
			Resource: op.Resource,
			Step:     step,
			Detail:   detail,
		})
		if err != nil {
			return run, err
		}
		last = []event.Event{e}
	}
	return run, sch.EndRun(tr)
}

// Explores the program until the scheduler has no more runs.
// Returns the completed runs and the number of runs blocked by sleep sets.
func explore(t *testing.T, gsch GlobalScheduler, prog mockProgram, maxRuns int) ([]mockRun, int) {
	t.Helper()
	sch := gsch.GetRunScheduler()
	runs := []mockRun{}
	blocked := 0
	for i := 0; i < maxRuns; i++ {
		err := sch.StartRun()
		if errors.Is(err, NoRunsError) {
			return runs, blocked
		}
		if err != nil {
			t.Fatalf("Did not expect to receive an error. Got %v", err)
		}
		run, err := runProgram(sch, prog)
		if errors.Is(err, ErrSleepBlocked) {
			blocked++
			continue
		}
		if err != nil {
			t.Fatalf("Did not expect to receive an error. Got %v", err)
		}
		runs = append(runs, run)
	}
	return runs, blocked
}

func checkDistinct(t *testing.T, runs []mockRun) {
	t.Helper()
	seen := map[string]bool{}
	for _, run := range runs {
		if seen[run.String()] {
			t.Errorf("Run %v was explored twice", run)
		}
		seen[run.String()] = true
	}
}
