// Package explorer drives executions of a program under the control of a scheduler.
package explorer

import (
	"context"
	"fmt"
	"time"

	"interleave/config"
	"interleave/metrics"
	"interleave/report"
	"interleave/scheduler"
	"interleave/stateManager"
	"interleave/task"
	"interleave/valueid"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// Explores executions of a program.
//
// Every worker drives one execution at a time with its own task runtime and trace.
// The search state is shared through the scheduler.
type Explorer struct {
	// The scheduler takes the decisions of every execution
	Scheduler scheduler.GlobalScheduler

	sm  stateManager.StateManager
	cfg config.Config

	strategy string
	seed     int64
	log      Logger
	metrics  *metrics.Metrics
	registry *valueid.Registry
	store    *report.Store
	observer func(*Execution)
}

// Optional collaborators of an Explorer
type Settings struct {
	// The strategy name reported. Defaults to the configured strategy
	Strategy string
	// The seed reported
	Seed     int64
	Logger   Logger
	Metrics  *metrics.Metrics
	Registry *valueid.Registry
	// Every counterexample found is appended to the store
	Store *report.Store
	// Called from the main loop after every execution
	Observer func(*Execution)
}

// Used to read the number of backtrack points from schedulers that keep them
type backtracker interface {
	BacktrackPoints() int
}

// Create a new explorer.
//
// The configuration must be valid.
// The state manager records every execution that is not blocked.
func NewExplorer(sch scheduler.GlobalScheduler, sm stateManager.StateManager, cfg config.Config, settings Settings) *Explorer {
	e := &Explorer{
		Scheduler: sch,
		sm:        sm,
		cfg:       cfg,

		strategy: settings.Strategy,
		seed:     settings.Seed,
		log:      settings.Logger,
		metrics:  settings.Metrics,
		registry: settings.Registry,
		store:    settings.Store,
		observer: settings.Observer,
	}
	if e.strategy == "" {
		e.strategy = string(cfg.Strategy)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.registry == nil {
		e.registry = valueid.NewRegistry()
	}
	return e
}

// The state of the main loop
type exploration struct {
	report     *report.Report
	seen       map[string]bool
	races      map[string]bool
	stale      int
	exhausted  bool
	// max_executions permits were handed out
	budgetUsed bool
	// A worker found no run left to start
	noRuns     bool
	modelError *task.ModelError
}

// Explore executions of body until the scheduler has no more runs, a violation is found or a budget is used up.
//
// Program violations are part of the report.
// A programming-model violation is returned as a *task.ModelError together with the report.
// Engine errors, e.g. a nondeterministic program, end the exploration and are returned.
func (e *Explorer) Explore(ctx context.Context, body func(*task.T)) (*report.Report, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	x := &exploration{
		report: &report.Report{
			RunId:    uuid.NewString(),
			Strategy: e.strategy,
			Seed:     e.seed,
			Races:    []string{},
		},
		seen:  make(map[string]bool),
		races: make(map[string]bool),
	}
	e.log.Info("Starting exploration",
		zap.String("run_id", x.report.RunId),
		zap.String("strategy", e.strategy),
		zap.Int64("seed", e.seed),
		zap.Int("workers", e.cfg.Workers),
	)

	// Used to signal to start the next execution
	nextRun := make(chan bool)
	// Used by the runExplorers to report every execution to the main loop
	status := make(chan runStatus)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.cfg.Workers; i++ {
		re := newRunExplorer(i, e.Scheduler.GetRunScheduler(), e.sm.GetRunStateManager(), e.registry, e.cfg.MaxDepth, e.log)
		g.Go(func() error {
			return re.ExploreRuns(gctx, nextRun, status, body)
		})
	}
	// Closed when every runExplorer has stopped
	closing := make(chan struct{})
	var workerErr error
	go func() {
		workerErr = g.Wait()
		close(closing)
	}()

	err := e.mainLoop(ctx, x, nextRun, status, closing)
	if err == nil {
		err = workerErr
	}
	// The budget only cuts the search short if runs were left
	if x.budgetUsed && !x.noRuns && !e.finished() {
		x.exhausted = true
	}
	return e.finish(x, start, err)
}

// The main loop of the exploration.
//
// Hands out a permit to every idle runExplorer until the budget is used up and processes the result of every execution.
// Stops handing out permits on the first violation unless keep_going is set, on errors and on timeout.
// Returns when all runExplorers have stopped.
func (e *Explorer) mainLoop(ctx context.Context, x *exploration, nextRun chan bool, status chan runStatus, closing chan struct{}) error {
	var out error

	// Stop the exploration by closing the nextRun channel if it is not already closed
	stopped := false
	stop := func() {
		if !stopped {
			stopped = true
			close(nextRun)
		}
	}
	started := 0
	timeout := ctx.Done()
	for {
		permits := nextRun
		if stopped {
			permits = nil
		}
		select {
		case permits <- true:
			started++
			if e.cfg.MaxExecutions > 0 && started >= e.cfg.MaxExecutions {
				x.budgetUsed = true
				stop()
			}
		case st := <-status:
			if st.noRuns {
				x.noRuns = true
				continue
			}
			if st.err != nil {
				if out == nil {
					out = st.err
				}
				stop()
				continue
			}
			if e.observe(x, st.ex) {
				stop()
			}
		case <-timeout:
			timeout = nil
			if !stopped {
				e.log.Info("Exploration timed out", zap.Duration("timeout", e.cfg.Timeout))
				x.exhausted = true
				stop()
			}
		case <-closing:
			stop()
			return out
		}
	}
}

// Returns true if the scheduler knows that every run has been explored
func (e *Explorer) finished() bool {
	f, ok := e.Scheduler.(scheduler.Finisher)
	return ok && f.Finished()
}

// Process a finished execution. Returns true if the exploration must stop.
func (e *Explorer) observe(x *exploration, ex *Execution) bool {
	r := x.report
	outcome := ex.Outcome.String()
	if ex.Verdict.Redundant {
		outcome = metrics.OutcomeRedundant
	}
	e.metrics.ObserveExecution(outcome, ex.Depth)
	if b, ok := e.Scheduler.(backtracker); ok {
		e.metrics.SetBacktrackPoints(b.BacktrackPoints())
	}
	if e.observer != nil {
		e.observer(ex)
	}

	switch ex.Outcome {
	case Blocked:
		r.BlockedExecutions++
		return false
	case Truncated:
		r.TruncatedExecutions++
	}
	r.ExecutionsExplored++
	if ex.Verdict.Redundant {
		r.RedundantExecutions++
	}

	races := ex.Trace.Races()
	e.metrics.ObserveRaces(len(races))
	for _, race := range races {
		kinds := []string{race.First.Kind.String(), race.Second.Kind.String()}
		slices.Sort(kinds)
		key := fmt.Sprintf("%v %s/%s", race.First.Resource, kinds[0], kinds[1])
		if !x.races[key] {
			x.races[key] = true
			r.Races = append(r.Races, key)
		}
	}

	stale := !ex.Verdict.NewState
	if stale {
		x.stale++
	} else {
		x.stale = 0
	}

	if ex.Violation == nil {
		if e.cfg.MaxStale > 0 && x.stale >= e.cfg.MaxStale {
			e.log.Info("No new state reached", zap.Int("executions", x.stale))
			x.exhausted = true
			return true
		}
		return false
	}

	e.record(x, ex)
	if ex.Outcome == ModelError {
		if x.modelError == nil {
			x.modelError = ex.ModelError
		}
		return true
	}
	return !e.cfg.KeepGoing
}

// Record the counterexample of a failed execution
func (e *Explorer) record(x *exploration, ex *Execution) {
	v := ex.Violation
	key := fmt.Sprintf("%v|%s|%s", v.Kind, v.Resource, v.Message)
	if x.seen[key] {
		return
	}
	x.seen[key] = true

	r := x.report
	cx := &report.Counterexample{
		RunId:     r.RunId,
		Strategy:  r.Strategy,
		Seed:      r.Seed,
		Decisions: slices.Clone(ex.Decisions),
		Violation: *v,
		Trace:     report.Entries(ex.Trace.Events()),
	}
	if r.Counterexample == nil {
		r.Counterexample = cx
	}
	r.Violations = append(r.Violations, cx)

	e.metrics.ObserveViolation(v.Kind.String())
	e.log.Warn("Found violation",
		zap.Stringer("kind", v.Kind),
		zap.Stringer("task", v.Task),
		zap.String("resource", v.Resource),
		zap.String("message", v.Message),
		zap.Int("decisions", len(cx.Decisions)),
	)

	if e.store != nil {
		if index, err := e.store.Append(cx); err != nil {
			e.log.Error("Could not store counterexample", zap.Error(err))
		} else {
			e.log.Debug("Stored counterexample", zap.Uint64("index", index))
		}
	}
}

func (e *Explorer) finish(x *exploration, start time.Time, err error) (*report.Report, error) {
	r := x.report
	r.Duration = time.Since(start)
	r.DistinctStates = e.sm.Stats().DistinctStates
	slices.Sort(r.Races)

	switch {
	case err != nil:
		r.Status = report.StatusError
		r.Error = err.Error()
	case x.modelError != nil:
		r.Status = report.StatusError
		r.Error = x.modelError.Error()
		err = x.modelError
	case r.Counterexample != nil:
		r.Status = r.Counterexample.Violation.Kind.Status()
	case x.exhausted || r.TruncatedExecutions > 0:
		r.Status = report.StatusExhausted
	default:
		r.Status = report.StatusCompleted
	}

	e.log.Info("Exploration finished",
		zap.String("run_id", r.RunId),
		zap.Stringer("status", r.Status),
		zap.Int("executions", r.ExecutionsExplored),
		zap.Int("blocked", r.BlockedExecutions),
		zap.Int("truncated", r.TruncatedExecutions),
		zap.Duration("duration", r.Duration),
	)
	return r, err
}
