package scheduler

import (
	"sync"

	"interleave/event"
	"interleave/trace"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Replays a recorded decision sequence once
type Replay struct {
	sync.Mutex
	decisions []event.Decision
	done      bool
}

func NewReplay(decisions []event.Decision) *Replay {
	return &Replay{decisions: decisions}
}

func (r *Replay) Finished() bool {
	r.Lock()
	defer r.Unlock()
	return r.done
}

func (r *Replay) GetRunScheduler() RunScheduler {
	return &runReplay{r: r}
}

type runReplay struct {
	r *Replay
	// The decisions of the current run. Nil when there is no run to replay
	decisions []event.Decision
	index     int
}

func (rr *runReplay) StartRun() error {
	rr.r.Lock()
	defer rr.r.Unlock()
	if rr.r.done {
		return NoRunsError
	}
	rr.r.done = true
	rr.decisions = rr.r.decisions
	rr.index = 0
	return nil
}

func (rr *runReplay) Next(state RunState) (event.TaskId, error) {
	d, err := rr.next(event.DecisionSchedule)
	if err != nil {
		return 0, err
	}
	if !slices.Contains(tasks(state.Enabled), d.Task) {
		return 0, errors.WithMessagef(ErrReplayDiverged, "decision %d schedules %v which is not enabled", rr.index-1, d.Task)
	}
	return d.Task, nil
}

func (rr *runReplay) Choose(task event.TaskId, n int) (int, error) {
	d, err := rr.next(event.DecisionChoice)
	if err != nil {
		return 0, err
	}
	if d.Task != task || d.Value < 0 || d.Value >= n {
		return 0, errors.WithMessagef(ErrReplayDiverged, "decision %d chooses %v, the run asks %v for a value below %d", rr.index-1, d, task, n)
	}
	return d.Value, nil
}

func (rr *runReplay) next(kind event.DecisionKind) (event.Decision, error) {
	if rr.index >= len(rr.decisions) {
		return event.Decision{}, errors.WithMessagef(ErrReplayDiverged, "the run continues after %d recorded decisions", len(rr.decisions))
	}
	d := rr.decisions[rr.index]
	if d.Kind != kind {
		return d, errors.WithMessagef(ErrReplayDiverged, "decision %d is a %v decision, the run takes a %v decision", rr.index, d.Kind, kind)
	}
	rr.index++
	return d, nil
}

// Returns ErrReplayDiverged if the run ended before all decisions were taken
func (rr *runReplay) EndRun(tr *trace.Trace) error {
	defer func() {
		rr.decisions = nil
		rr.index = 0
	}()
	if rr.index < len(rr.decisions) {
		return errors.WithMessagef(ErrReplayDiverged, "the run ended after %d of %d recorded decisions", rr.index, len(rr.decisions))
	}
	return nil
}
