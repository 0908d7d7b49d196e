package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/latticesim/contact-sim/sim"
	"github.com/latticesim/contact-sim/sim/sweep"
	"github.com/latticesim/contact-sim/sim/sweep/report"
)

// sweepOptions holds the flags of the sweep command. Grid and replica
// settings live in Config; the rest select outputs.
type sweepOptions struct {
	ConfigPath  string
	Config      sweep.Config
	Topology    string
	Scheduler   string
	CSVPath     string
	DBPath      string
	MetricsAddr string
}

var sweepOpts sweepOptions

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run many replicas over a (lambda, alpha) grid",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveSweepConfig(cmd, sweepOpts)
		if err != nil {
			logrus.Fatalf("invalid sweep configuration: %v", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := runSweep(ctx, os.Stdout, cfg, sweepOpts); err != nil {
			logrus.Fatalf("sweep failed: %v", err)
		}
	},
}

func registerSweepFlags(cmd *cobra.Command, opts *sweepOptions) {
	def := sweep.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&opts.ConfigPath, "config", "", "YAML sweep config; explicitly set flags override it")
	f.StringVar(&opts.Topology, "topology", string(def.Topology), "Lattice topology (line, line-extended, grid)")
	f.StringVar(&opts.Scheduler, "scheduler", string(def.Scheduler), "Event scheduler (tree, scan)")
	f.Float64Var(&opts.Config.Lambda.Min, "lambda-min", def.Lambda.Min, "First lambda of the grid")
	f.Float64Var(&opts.Config.Lambda.Max, "lambda-max", def.Lambda.Max, "Last lambda of the grid (inclusive)")
	f.Float64Var(&opts.Config.Lambda.Step, "lambda-step", def.Lambda.Step, "Lambda grid step (0 = single point)")
	f.Float64Var(&opts.Config.Alpha.Min, "alpha-min", def.Alpha.Min, "First alpha of the grid")
	f.Float64Var(&opts.Config.Alpha.Max, "alpha-max", def.Alpha.Max, "Last alpha of the grid (inclusive)")
	f.Float64Var(&opts.Config.Alpha.Step, "alpha-step", def.Alpha.Step, "Alpha grid step (0 = single point)")
	f.IntVar(&opts.Config.Replicas, "replicas", def.Replicas, "Replicas per grid point")
	f.Float64Var(&opts.Config.Horizon, "horizon", def.Horizon, "Simulation time horizon per replica")
	f.Int64Var(&opts.Config.Seed, "seed", def.Seed, "Master seed of the sweep")
	f.IntVar(&opts.Config.Workers, "workers", def.Workers, "Grid points simulated concurrently")
	f.IntVar(&opts.Config.MaxSites, "max-sites", def.MaxSites, "Cap on materialized sites per replica (0 = unbounded)")
	f.StringVar(&opts.CSVPath, "csv", "", "Write per-point results as CSV (zstd-compressed if the name ends in .zst)")
	f.StringVar(&opts.DBPath, "db", "", "Append the run to this SQLite results database")
	f.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while sweeping")
}

// resolveSweepConfig merges the optional config file with the flags. Without
// a file every flag applies; with one, only flags set on the command line do.
func resolveSweepConfig(cmd *cobra.Command, opts sweepOptions) (sweep.Config, error) {
	cfg := sweep.DefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = loadSweepConfig(opts.ConfigPath, cfg); err != nil {
			return sweep.Config{}, err
		}
	}
	use := func(name string) bool {
		return opts.ConfigPath == "" || cmd.Flags().Changed(name)
	}

	if use("topology") {
		cfg.Topology = sim.TopologyKind(opts.Topology)
	}
	if use("scheduler") {
		cfg.Scheduler = sim.SchedulerKind(opts.Scheduler)
	}
	floats := []struct {
		name string
		dst  *float64
		src  float64
	}{
		{"lambda-min", &cfg.Lambda.Min, opts.Config.Lambda.Min},
		{"lambda-max", &cfg.Lambda.Max, opts.Config.Lambda.Max},
		{"lambda-step", &cfg.Lambda.Step, opts.Config.Lambda.Step},
		{"alpha-min", &cfg.Alpha.Min, opts.Config.Alpha.Min},
		{"alpha-max", &cfg.Alpha.Max, opts.Config.Alpha.Max},
		{"alpha-step", &cfg.Alpha.Step, opts.Config.Alpha.Step},
		{"horizon", &cfg.Horizon, opts.Config.Horizon},
	}
	for _, f := range floats {
		if use(f.name) {
			*f.dst = f.src
		}
	}
	ints := []struct {
		name string
		dst  *int
		src  int
	}{
		{"replicas", &cfg.Replicas, opts.Config.Replicas},
		{"workers", &cfg.Workers, opts.Config.Workers},
		{"max-sites", &cfg.MaxSites, opts.Config.MaxSites},
	}
	for _, f := range ints {
		if use(f.name) {
			*f.dst = f.src
		}
	}
	if use("seed") {
		cfg.Seed = opts.Config.Seed
	}

	kind, err := sim.ParseTopologyKind(string(cfg.Topology))
	if err != nil {
		return sweep.Config{}, err
	}
	cfg.Topology = kind
	sched, err := sim.ParseSchedulerKind(string(cfg.Scheduler))
	if err != nil {
		return sweep.Config{}, err
	}
	cfg.Scheduler = sched
	return cfg, cfg.Validate()
}

// runSweep executes cfg, prints the summary to w and writes the requested outputs.
func runSweep(ctx context.Context, w io.Writer, cfg sweep.Config, opts sweepOptions) error {
	var metrics *sweep.Metrics
	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = sweep.NewMetrics(reg)
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Warnf("metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logrus.Infof("serving metrics on %s", opts.MetricsAddr)
	}

	start := time.Now()
	results, err := sweep.Run(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	logrus.Infof("sweep finished in %s", time.Since(start).Round(time.Millisecond))

	if err := report.PrintSummary(w, results); err != nil {
		return err
	}
	if opts.CSVPath != "" {
		if err := report.WriteCSVFile(opts.CSVPath, results); err != nil {
			return err
		}
		logrus.Infof("wrote %d points to %s", len(results), opts.CSVPath)
	}
	if opts.DBPath != "" {
		store, err := report.OpenStore(opts.DBPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		run := report.NewRun(cfg, results)
		if err := store.SaveRun(ctx, run); err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved run %s to %s\n", run.ID, opts.DBPath)
	}
	return nil
}
