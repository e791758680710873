package scheduler

import (
	"interleave/event"
	"interleave/trace"
)

// A scheduler that follows a provided decision prefix in every run before it hands over to another scheduler.
//
// The search scheduler only sees the decisions taken after the prefix and explores the state space
// reachable from the state at the end of the prefix.
type GuidedSearch struct {
	prefix []event.Decision
	search GlobalScheduler
}

func NewGuidedSearch(search GlobalScheduler, prefix []event.Decision) *GuidedSearch {
	return &GuidedSearch{
		prefix: prefix,
		search: search,
	}
}

func (gs *GuidedSearch) Finished() bool {
	f, ok := gs.search.(Finisher)
	return ok && f.Finished()
}

func (gs *GuidedSearch) GetRunScheduler() RunScheduler {
	return &runGuidedSearch{
		search: gs.search.GetRunScheduler(),
		prefix: gs.prefix,
	}
}

type runGuidedSearch struct {
	search RunScheduler
	prefix []event.Decision
	guided *runReplay
}

// Follow the prefix while it lasts
func (gs *runGuidedSearch) useGuided() bool {
	return gs.guided.index < len(gs.guided.decisions)
}

func (gs *runGuidedSearch) StartRun() error {
	if err := gs.search.StartRun(); err != nil {
		return err
	}
	gs.guided = &runReplay{r: &Replay{}, decisions: gs.prefix}
	return nil
}

func (gs *runGuidedSearch) Next(state RunState) (event.TaskId, error) {
	if gs.useGuided() {
		return gs.guided.Next(state)
	}
	return gs.search.Next(state)
}

func (gs *runGuidedSearch) Choose(task event.TaskId, n int) (int, error) {
	if gs.useGuided() {
		return gs.guided.Choose(task, n)
	}
	return gs.search.Choose(task, n)
}

func (gs *runGuidedSearch) EndRun(tr *trace.Trace) error {
	return gs.search.EndRun(tr)
}
