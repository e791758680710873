// Package metrics exports exploration progress as prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interleave"

// Outcomes of a single execution
const (
	OutcomeCompleted  = "completed"
	OutcomeViolated   = "violated"
	OutcomeDeadlocked = "deadlocked"
	OutcomeBlocked    = "blocked"
	OutcomeTruncated  = "truncated"
	OutcomeRedundant  = "redundant"
	OutcomeModelError = "model_error"
)

var knownOutcomes = map[string]bool{
	OutcomeCompleted:  true,
	OutcomeViolated:   true,
	OutcomeDeadlocked: true,
	OutcomeBlocked:    true,
	OutcomeTruncated:  true,
	OutcomeRedundant:  true,
	OutcomeModelError: true,
}

// Collectors for one exploration. All methods are safe to call on a nil *Metrics.
type Metrics struct {
	Executions      *prometheus.CounterVec
	Violations      *prometheus.CounterVec
	Races           prometheus.Counter
	Depth           prometheus.Histogram
	BacktrackPoints prometheus.Gauge
}

// Create the collectors and register them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "explorer",
				Name:      "executions_total",
				Help:      "Executions explored by outcome",
			},
			[]string{"outcome"},
		),
		Violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "explorer",
				Name:      "violations_total",
				Help:      "Violations found by kind",
			},
			[]string{"kind"},
		),
		Races: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "trace",
				Name:      "races_total",
				Help:      "Racing event pairs observed over all executions",
			},
		),
		Depth: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "explorer",
				Name:      "execution_depth",
				Help:      "Scheduling steps taken per execution",
				Buckets:   prometheus.ExponentialBuckets(4, 2, 10),
			},
		),
		BacktrackPoints: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "backtrack_points",
				Help:      "Backtrack alternatives not yet explored",
			},
		),
	}
}

// Record a finished execution with its outcome and number of scheduling steps
func (m *Metrics) ObserveExecution(outcome string, depth int) {
	if m == nil {
		return
	}
	if !knownOutcomes[outcome] {
		outcome = "unknown"
	}
	m.Executions.WithLabelValues(outcome).Inc()
	m.Depth.Observe(float64(depth))
}

func (m *Metrics) ObserveViolation(kind string) {
	if m == nil {
		return
	}
	m.Violations.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveRaces(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Races.Add(float64(n))
}

func (m *Metrics) SetBacktrackPoints(n int) {
	if m == nil {
		return
	}
	m.BacktrackPoints.Set(float64(n))
}
