package config

import (
	"time"

	"interleave/metrics"
	"interleave/report"
	"interleave/scheduler"
	"interleave/stateManager"
	"interleave/valueid"

	"go.uber.org/zap"
)

// Replaces the whole configuration. Options given after it still apply.
type ConfigOption struct{ Config Config }

func (co ConfigOption) Opt() {}

type StrategyOption struct{ Strategy Strategy }

func (so StrategyOption) Opt() {}

// Use a scheduler other than the ones selected by the strategy
type SchedulerOption struct {
	Sch scheduler.GlobalScheduler
}

func (so SchedulerOption) Opt() {}

type SeedOption struct{ Seed int64 }

func (so SeedOption) Opt() {}

type MaxExecutionsOption struct{ MaxExecutions int }

func (meo MaxExecutionsOption) Opt() {}

type MaxDepthOption struct{ MaxDepth int }

func (mdo MaxDepthOption) Opt() {}

type TimeoutOption struct{ Timeout time.Duration }

func (to TimeoutOption) Opt() {}

type WorkersOption struct{ N int }

func (wo WorkersOption) Opt() {}

type KeepGoingOption struct{}

func (kgo KeepGoingOption) Opt() {}

type MaxStaleOption struct{ N int }

func (mso MaxStaleOption) Opt() {}

type LoggerOption struct{ Logger *zap.Logger }

func (lo LoggerOption) Opt() {}

type MetricsOption struct{ Metrics *metrics.Metrics }

func (mo MetricsOption) Opt() {}

// The registry used to compare and clone values of the explored program
type RegistryOption struct{ Registry *valueid.Registry }

func (ro RegistryOption) Opt() {}

// Where the digests of reached states are kept
type StateStoreOption struct{ Store stateManager.Store }

func (sso StateStoreOption) Opt() {}

// Where counterexamples are persisted
type CounterexampleStoreOption struct{ Store *report.Store }

func (cso CounterexampleStoreOption) Opt() {}
