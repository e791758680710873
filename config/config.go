// Package config holds the exploration configuration and the options that set it.
package config

import (
	"bytes"
	"io"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Strategy string

const (
	// Systematic exploration with dynamic partial order reduction
	StrategyDPOR Strategy = "dpor"
	// Seeded random sampling of schedules
	StrategyRandom Strategy = "random"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// The recognised configuration options.
// Zero budgets are unlimited.
type Config struct {
	Strategy Strategy `yaml:"strategy"`
	// Seed of the random strategy. Zero picks a seed from the clock when the exploration starts.
	Seed          int64         `yaml:"seed"`
	MaxExecutions int           `yaml:"max_executions"`
	MaxDepth      int           `yaml:"max_depth"`
	Timeout       time.Duration `yaml:"timeout"`
	// Number of executions explored in parallel
	Workers int `yaml:"workers"`
	// Continue exploring after the first violation
	KeepGoing bool `yaml:"keep_going"`
	// Stop random exploration after this many consecutive executions reached no new state
	MaxStale int `yaml:"max_stale"`
}

func Default() Config {
	return Config{
		Strategy:      StrategyDPOR,
		MaxExecutions: 10000,
		MaxDepth:      1000,
		Workers:       runtime.GOMAXPROCS(0), // Will not change GOMAXPROCS but only return the current value
	}
}

func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyDPOR, StrategyRandom:
	default:
		return errors.WithMessagef(ErrInvalidConfig, "unknown strategy %q", c.Strategy)
	}
	if c.MaxExecutions < 0 {
		return errors.WithMessagef(ErrInvalidConfig, "max_executions must not be negative, got %d", c.MaxExecutions)
	}
	if c.MaxDepth < 0 {
		return errors.WithMessagef(ErrInvalidConfig, "max_depth must not be negative, got %d", c.MaxDepth)
	}
	if c.Timeout < 0 {
		return errors.WithMessagef(ErrInvalidConfig, "timeout must not be negative, got %v", c.Timeout)
	}
	if c.Workers < 1 {
		return errors.WithMessagef(ErrInvalidConfig, "workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxStale < 0 {
		return errors.WithMessagef(ErrInvalidConfig, "max_stale must not be negative, got %d", c.MaxStale)
	}
	return nil
}

// Decode a YAML document over the default configuration.
// Unknown keys are rejected.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.WithMessage(ErrInvalidConfig, err.Error())
	}
	return cfg, cfg.Validate()
}

// Build a configuration from key/value pairs.
// Unknown keys are rejected.
func FromMap(values map[string]any) (Config, error) {
	data, err := yaml.Marshal(values)
	if err != nil {
		return Config{}, errors.WithMessage(ErrInvalidConfig, err.Error())
	}
	return Load(bytes.NewReader(data))
}
