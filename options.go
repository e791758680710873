package interleave

import (
	"time"

	"interleave/config"
	"interleave/event"
	"interleave/explorer"
	"interleave/metrics"
	"interleave/report"
	"interleave/scheduler"
	"interleave/stateManager"
	"interleave/valueid"

	"go.uber.org/zap"
)

// A option used to configure an exploration
type Option interface {
	// noop method
	Opt()
}

// Explore with dynamic partial order reduction.
//
// DPOR is a systematic search. It only explores one execution of every class of equivalent executions
// and stops when every class has been explored.
// This is the default strategy.
func DPOR() Option {
	return config.StrategyOption{Strategy: config.StrategyDPOR}
}

// Explore random executions.
//
// Every decision is drawn from a generator seeded with seed, so the explored executions are reproducible from the seed.
// A seed of zero picks a seed from the clock. The seed is logged and part of the report.
// Random exploration never ends on its own. It is bounded by MaxExecutions, Timeout or MaxStale.
func Random(seed int64) Option {
	return randomOption{seed: seed}
}

type randomOption struct{ seed int64 }

func (ro randomOption) Opt() {}

// Configure the seed of the random strategy without selecting it
func Seed(seed int64) Option {
	return config.SeedOption{Seed: seed}
}

// Use the provided scheduler for the exploration
//
// Used to explore with a different implementation of scheduler than is commonly provided
func WithScheduler(sch scheduler.GlobalScheduler) Option {
	return config.SchedulerOption{Sch: sch}
}

// Start every execution with the decisions of prefix and explore from the state it reaches.
// Used to search around a known counterexample.
func Guided(prefix []event.Decision) Option {
	return guidedOption{prefix: prefix}
}

type guidedOption struct{ prefix []event.Decision }

func (gu guidedOption) Opt() {}

// Use the configuration. Options given after it still apply.
func WithConfig(cfg config.Config) Option {
	return config.ConfigOption{Config: cfg}
}

// Configure the maximum number of executions started. Zero is unlimited.
//
// Default value is 10000
func MaxExecutions(n int) Option {
	return config.MaxExecutionsOption{MaxExecutions: n}
}

// Configure the maximum number of scheduling steps of an execution. Zero is unlimited.
//
// Default value is 1000.
//
// Executions that reach the maximum depth are truncated and the exploration ends as exhausted.
func MaxDepth(n int) Option {
	return config.MaxDepthOption{MaxDepth: n}
}

// Configure the time budget of the exploration. Zero is unlimited.
func Timeout(d time.Duration) Option {
	return config.TimeoutOption{Timeout: d}
}

// Configure the number of executions that are explored concurrently.
//
// Default value is GOMAXPROCS
func Workers(n int) Option {
	return config.WorkersOption{N: n}
}

// Continue exploring after the first violation.
// Every distinct violation is reported.
func KeepGoing() Option {
	return config.KeepGoingOption{}
}

// Stop after n consecutive executions that reached no new end state. Zero disables the check.
func MaxStale(n int) Option {
	return config.MaxStaleOption{N: n}
}

// Log to the provided logger. Default is no logging.
func WithLogger(l *zap.Logger) Option {
	return config.LoggerOption{Logger: l}
}

// Record the progress of the exploration in the collectors
func WithMetrics(m *metrics.Metrics) Option {
	return config.MetricsOption{Metrics: m}
}

// Compare, hash and copy values of the program with the registry
func WithRegistry(r *valueid.Registry) Option {
	return config.RegistryOption{Registry: r}
}

// Keep the digests of reached end states in the store
func WithStateStore(s stateManager.Store) Option {
	return config.StateStoreOption{Store: s}
}

// Append every counterexample found to the store
func WithCounterexampleStore(s *report.Store) Option {
	return config.CounterexampleStoreOption{Store: s}
}

// Call fn after every execution
func WithObserver(fn func(*explorer.Execution)) Option {
	return observerOption{fn: fn}
}

type observerOption struct{ fn func(*explorer.Execution) }

func (oo observerOption) Opt() {}

// The resolved options of an exploration
type settings struct {
	cfg      config.Config
	sch      scheduler.GlobalScheduler
	strategy string
	prefix   []event.Decision

	logger    *zap.Logger
	metrics   *metrics.Metrics
	registry  *valueid.Registry
	states    stateManager.Store
	store     *report.Store
	observers []func(*explorer.Execution)
}

func resolve(opts []Option) (*settings, error) {
	s := &settings{cfg: config.Default()}

	// Use the options to configure
	for _, opt := range opts {
		switch t := opt.(type) {
		case config.ConfigOption:
			s.cfg = t.Config
		case config.StrategyOption:
			s.cfg.Strategy = t.Strategy
		case randomOption:
			s.cfg.Strategy = config.StrategyRandom
			s.cfg.Seed = t.seed
		case config.SeedOption:
			s.cfg.Seed = t.Seed
		case config.SchedulerOption:
			s.sch = t.Sch
		case config.MaxExecutionsOption:
			s.cfg.MaxExecutions = t.MaxExecutions
		case config.MaxDepthOption:
			s.cfg.MaxDepth = t.MaxDepth
		case config.TimeoutOption:
			s.cfg.Timeout = t.Timeout
		case config.WorkersOption:
			s.cfg.Workers = t.N
		case config.KeepGoingOption:
			s.cfg.KeepGoing = true
		case config.MaxStaleOption:
			s.cfg.MaxStale = t.N
		case config.LoggerOption:
			s.logger = t.Logger
		case config.MetricsOption:
			s.metrics = t.Metrics
		case config.RegistryOption:
			s.registry = t.Registry
		case config.StateStoreOption:
			s.states = t.Store
		case config.CounterexampleStoreOption:
			s.store = t.Store
		case guidedOption:
			s.prefix = t.prefix
		case observerOption:
			s.observers = append(s.observers, t.fn)
		}
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	if s.cfg.Strategy == config.StrategyRandom && s.cfg.Seed == 0 {
		s.cfg.Seed = time.Now().UnixNano()
	}
	if s.sch == nil {
		switch s.cfg.Strategy {
		case config.StrategyRandom:
			s.sch = scheduler.NewRandom(s.cfg.Seed)
		default:
			s.sch = scheduler.NewDPOR()
		}
	}
	if s.prefix != nil {
		s.sch = scheduler.NewGuidedSearch(s.sch, s.prefix)
		s.strategy = "guided-" + string(s.cfg.Strategy)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

func (s *settings) newExplorer() *explorer.Explorer {
	sm := stateManager.NewTreeStateManager(nil, s.states)
	var observer func(*explorer.Execution)
	if len(s.observers) > 0 {
		observers := s.observers
		observer = func(ex *explorer.Execution) {
			for _, fn := range observers {
				fn(ex)
			}
		}
	}
	return explorer.NewExplorer(s.sch, sm, s.cfg, explorer.Settings{
		Strategy: s.strategy,
		Seed:     s.cfg.Seed,
		Logger:   s.logger,
		Metrics:  s.metrics,
		Registry: s.registry,
		Store:    s.store,
		Observer: observer,
	})
}
