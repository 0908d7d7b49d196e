package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/latticesim/contact-sim/sim"
	"github.com/latticesim/contact-sim/sim/trace"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	Topology   string
	Lambda     float64
	Alpha      float64
	Horizon    float64
	Seed       int64
	Scheduler  string
	MaxSites   int
	Trace      bool
	TraceLimit int
}

var (
	logLevel string // Log verbosity level
	runOpts  runOptions
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "contact-sim",
	Short: "Continuous-time contact process simulator on lattices",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd simulates one replica using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single replica to the horizon",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSingle(os.Stdout, runOpts); err != nil {
			logrus.Fatalf("run failed: %v", err)
		}
	},
}

// buildSimConfig validates the run flags and turns them into a replica config.
func buildSimConfig(opts runOptions) (sim.Config, error) {
	kind, err := sim.ParseTopologyKind(opts.Topology)
	if err != nil {
		return sim.Config{}, err
	}
	sched, err := sim.ParseSchedulerKind(opts.Scheduler)
	if err != nil {
		return sim.Config{}, err
	}
	cfg := sim.NewConfig(kind, opts.Lambda, opts.Alpha, opts.Seed)
	cfg.Scheduler = sched
	cfg.MaxSites = opts.MaxSites
	if opts.Trace {
		cfg.Recorder = trace.NewEventTrace(trace.TraceConfig{Level: trace.TraceLevelEvents, Limit: opts.TraceLimit})
	}
	return cfg, nil
}

// runSingle runs one replica and prints its outcome to w.
func runSingle(w io.Writer, opts runOptions) error {
	cfg, err := buildSimConfig(opts)
	if err != nil {
		return err
	}
	logrus.Infof("Starting %s replica: lambda=%g alpha=%g horizon=%g seed=%d scheduler=%s",
		cfg.Topology, cfg.Lambda, cfg.Alpha, opts.Horizon, cfg.Seed, cfg.Scheduler)

	s, err := sim.New(cfg)
	if err != nil {
		return err
	}
	extinct, err := s.Run(opts.Horizon)
	if err != nil {
		return err
	}

	if cfg.Recorder.Enabled() {
		for _, e := range cfg.Recorder.Events {
			fmt.Fprintf(w, "%6d  t=%-12.6f %-9s (%d,%d) -> (%d,%d)\n", e.Step, e.Clock, e.Kind, e.X, e.Y, e.TargetX, e.TargetY)
		}
		if cfg.Recorder.Dropped > 0 {
			fmt.Fprintf(w, "... %d more events not shown\n", cfg.Recorder.Dropped)
		}
		sum := trace.Summarize(cfg.Recorder)
		fmt.Fprintf(w, "Recorded: %d events (%d heals, %d infections, %d spawns), x in [%d,%d], y in [%d,%d]\n",
			sum.TotalEvents, sum.Heals, sum.Infections, sum.Spawns, sum.MinX, sum.MaxX, sum.MinY, sum.MaxY)
	}

	fmt.Fprintf(w, "Outcome: %s\n", s.Status())
	fmt.Fprintf(w, "Extinct: %t\n", extinct)
	fmt.Fprintf(w, "Clock: %g\n", s.Clock())
	fmt.Fprintf(w, "Infected: %d\n", s.InfectedCount())
	fmt.Fprintf(w, "Sites: %d\n", s.SiteCount())
	fmt.Fprintf(w, "Steps: %d\n", s.Steps())
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&runOpts.Topology, "topology", string(sim.TopologyLine), "Lattice topology (line, line-extended, grid)")
	runCmd.Flags().Float64Var(&runOpts.Lambda, "lambda", 1.65, "Infection rate scale")
	runCmd.Flags().Float64Var(&runOpts.Alpha, "alpha", 0.5, "Near/far rate split in (0,1); ignored by line")
	runCmd.Flags().Float64Var(&runOpts.Horizon, "horizon", 10000, "Simulation time horizon")
	runCmd.Flags().Int64Var(&runOpts.Seed, "seed", 42, "Seed for the replica's random stream")
	runCmd.Flags().StringVar(&runOpts.Scheduler, "scheduler", string(sim.SchedulerTree), "Event scheduler (tree, scan)")
	runCmd.Flags().IntVar(&runOpts.MaxSites, "max-sites", 0, "Cap on materialized sites (0 = unbounded)")
	runCmd.Flags().BoolVar(&runOpts.Trace, "trace", false, "Print every applied event")
	runCmd.Flags().IntVar(&runOpts.TraceLimit, "trace-limit", 0, "Maximum events kept by --trace (0 = unlimited)")

	registerSweepFlags(sweepCmd, &sweepOpts)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sweepCmd)
}
