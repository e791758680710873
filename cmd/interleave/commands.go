package main

import (
	"fmt"
	"io"
	"os"

	"interleave"
	"interleave/config"
	"interleave/examples"
	"interleave/report"
	"interleave/stateManager"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runFlags struct {
	configPath    string
	strategy      string
	seed          int64
	maxExecutions int
	maxDepth      int
	timeout       string
	workers       int
	keepGoing     bool
	maxStale      int

	storePath  string
	statesPath string
	outPath    string
	json       bool
	verbose    bool
}

type sourceFlags struct {
	file      string
	storePath string
	index     uint64
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "interleave",
		Short:         "Explore the interleavings of concurrent programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newListCmd(), newRunCmd(), newReplayCmd(), newShowCmd())
	return root
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the bundled programs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, p := range examples.All() {
				fmt.Fprintf(out, "%-16s %-10v %s\n", p.Name, p.Expected, p.Description)
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [program]",
		Short: "Explore the executions of a bundled program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd, args[0], &f)
		},
	}
	d := config.Default()
	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "YAML file with the exploration configuration")
	flags.StringVar(&f.strategy, "strategy", string(config.StrategyDPOR), "exploration strategy: dpor or random")
	flags.Int64Var(&f.seed, "seed", 0, "seed of the random strategy, 0 picks one from the clock")
	flags.IntVar(&f.maxExecutions, "max-executions", d.MaxExecutions, "maximum number of executions, 0 is unlimited")
	flags.IntVar(&f.maxDepth, "max-depth", d.MaxDepth, "maximum number of steps of an execution, 0 is unlimited")
	flags.StringVar(&f.timeout, "timeout", "", "time budget of the exploration, for example 30s")
	flags.IntVar(&f.workers, "workers", d.Workers, "number of executions explored concurrently")
	flags.BoolVar(&f.keepGoing, "keep-going", false, "continue after the first violation")
	flags.IntVar(&f.maxStale, "max-stale", 0, "stop after this many executions without a new end state")
	flags.StringVar(&f.storePath, "store", "", "directory of a log that counterexamples are appended to")
	flags.StringVar(&f.statesPath, "states", "", "directory of a database that keeps the reached end states")
	flags.StringVar(&f.outPath, "out", "", "write the counterexample to this file")
	flags.BoolVar(&f.json, "json", false, "print the report as JSON")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "log the progress of the exploration")
	return cmd
}

func newReplayCmd() *cobra.Command {
	var f sourceFlags
	cmd := &cobra.Command{
		Use:   "replay [program]",
		Short: "Run a bundled program under the decisions of a counterexample",
		Long: `Replay runs the program once under the decisions of the counterexample.
It exits with status 1 if the violation is reproduced, 0 if the execution ends without a violation
and 2 if the execution diverges from the decisions or ends with a different violation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return replayProgram(cmd, args[0], &f)
		},
	}
	addSourceFlags(cmd, &f)
	return cmd
}

func newShowCmd() *cobra.Command {
	var f sourceFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a counterexample",
		Long:  "Show prints the counterexample in a file or a log. Without an index every counterexample of the log is listed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return show(cmd, &f)
		},
	}
	addSourceFlags(cmd, &f)
	return cmd
}

func addSourceFlags(cmd *cobra.Command, f *sourceFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.file, "file", "", "JSON file holding the counterexample")
	flags.StringVar(&f.storePath, "store", "", "directory of a counterexample log")
	flags.Uint64Var(&f.index, "index", 0, "index of the counterexample in the log")
}

func lookup(name string) (examples.Program, error) {
	p, ok := examples.Get(name)
	if !ok {
		return p, errors.Errorf("unknown program %q, see interleave list", name)
	}
	return p, nil
}

// The configuration file overridden by the flags that were set
func (f *runFlags) config(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		file, err := os.Open(f.configPath)
		if err != nil {
			return cfg, err
		}
		defer file.Close()
		if cfg, err = config.Load(file); err != nil {
			return cfg, errors.WithMessagef(err, "reading %v", f.configPath)
		}
	}

	values := map[string]any{}
	flags := cmd.Flags()
	set := func(flag, key string, value any) {
		if flags.Changed(flag) {
			values[key] = value
		}
	}
	set("strategy", "strategy", f.strategy)
	set("seed", "seed", f.seed)
	set("max-executions", "max_executions", f.maxExecutions)
	set("max-depth", "max_depth", f.maxDepth)
	set("timeout", "timeout", f.timeout)
	set("workers", "workers", f.workers)
	set("keep-going", "keep_going", f.keepGoing)
	set("max-stale", "max_stale", f.maxStale)
	if len(values) == 0 {
		return cfg, nil
	}
	overrides, err := config.FromMap(values)
	if err != nil {
		return cfg, err
	}
	for key := range values {
		switch key {
		case "strategy":
			cfg.Strategy = overrides.Strategy
		case "seed":
			cfg.Seed = overrides.Seed
		case "max_executions":
			cfg.MaxExecutions = overrides.MaxExecutions
		case "max_depth":
			cfg.MaxDepth = overrides.MaxDepth
		case "timeout":
			cfg.Timeout = overrides.Timeout
		case "workers":
			cfg.Workers = overrides.Workers
		case "keep_going":
			cfg.KeepGoing = overrides.KeepGoing
		case "max_stale":
			cfg.MaxStale = overrides.MaxStale
		}
	}
	return cfg, nil
}

func runProgram(cmd *cobra.Command, name string, f *runFlags) error {
	p, err := lookup(name)
	if err != nil {
		return failure(err)
	}
	cfg, err := f.config(cmd)
	if err != nil {
		return failure(err)
	}

	logger := zap.NewNop()
	if f.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return failure(err)
		}
		defer logger.Sync()
	}
	opts := []interleave.Option{interleave.WithConfig(cfg), interleave.WithLogger(logger)}

	if f.storePath != "" {
		store, err := report.OpenStore(f.storePath)
		if err != nil {
			return failure(err)
		}
		defer store.Close()
		opts = append(opts, interleave.WithCounterexampleStore(store))
	}
	if f.statesPath != "" {
		states, err := stateManager.OpenBadgerStore(f.statesPath, p.Name+"/")
		if err != nil {
			return failure(err)
		}
		defer states.Close()
		opts = append(opts, interleave.WithStateStore(states))
	}

	r, exploreErr := interleave.ExploreContext(cmd.Context(), p.Body, opts...)
	if r == nil {
		return failure(exploreErr)
	}
	out := cmd.OutOrStdout()
	if err := printReport(out, r, f.json); err != nil {
		return failure(err)
	}
	if f.outPath != "" && r.Counterexample != nil {
		if err := writeCounterexample(f.outPath, r.Counterexample); err != nil {
			return failure(err)
		}
	}

	switch {
	case exploreErr != nil:
		return failure(exploreErr)
	case r.Status == report.StatusError:
		return failure(errors.New(r.Error))
	case r.Status.Failed():
		return violation()
	}
	return nil
}

func printReport(out io.Writer, r *report.Report, asJSON bool) error {
	if asJSON {
		data, err := r.MarshalJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	fmt.Fprintln(out, r.Summary())
	if r.Counterexample != nil {
		fmt.Fprintln(out)
		return r.Counterexample.Render(out)
	}
	return nil
}

func writeCounterexample(path string, c *report.Counterexample) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteCounterexample(file, c); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Load the counterexample named by the flags
func (f *sourceFlags) load() (*report.Counterexample, error) {
	switch {
	case f.file != "" && f.storePath != "":
		return nil, errors.New("use either --file or --store")
	case f.file != "":
		file, err := os.Open(f.file)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return report.ReadCounterexample(file)
	case f.storePath != "":
		store, err := report.OpenStore(f.storePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		index := f.index
		if index == 0 {
			index = store.LastIndex()
		}
		if index == 0 {
			return nil, errors.Errorf("no counterexamples in %v", f.storePath)
		}
		return store.Read(index)
	}
	return nil, errors.New("one of --file or --store is required")
}

func replayProgram(cmd *cobra.Command, name string, f *sourceFlags) error {
	p, err := lookup(name)
	if err != nil {
		return failure(err)
	}
	cx, err := f.load()
	if err != nil {
		return failure(err)
	}

	out := cmd.OutOrStdout()
	_, err = interleave.ReplayContext(cmd.Context(), p.Body, cx)
	var mismatch *report.ReplayMismatchError
	switch {
	case err == nil:
		fmt.Fprintf(out, "Reproduced %v\n", cx.Violation)
		return violation()
	case errors.As(err, &mismatch) && mismatch.Got == nil && mismatch.Cause == nil:
		fmt.Fprintf(out, "No violation, expected %v\n", cx.Violation)
		return nil
	}
	return failure(err)
}

func show(cmd *cobra.Command, f *sourceFlags) error {
	out := cmd.OutOrStdout()
	if f.storePath != "" && f.index == 0 && f.file == "" {
		store, err := report.OpenStore(f.storePath)
		if err != nil {
			return failure(err)
		}
		defer store.Close()
		err = store.LoadAll(func(index uint64, c *report.Counterexample) {
			fmt.Fprintf(out, "%d\t%v\t%v\n", index, c.RunId, c.Violation)
		})
		if err != nil {
			return failure(err)
		}
		return nil
	}
	cx, err := f.load()
	if err != nil {
		return failure(err)
	}
	if err := cx.Render(out); err != nil {
		return failure(err)
	}
	return nil
}
