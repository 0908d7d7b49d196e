// Package sweep runs many independent contact-process replicas over a grid of
// (λ, α) points on a bounded worker pool and aggregates their outcomes.
package sweep

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/latticesim/contact-sim/sim"
)

// Outcome classifies a finished replica.
type Outcome string

const (
	OutcomeExtinct  Outcome = "extinct"
	OutcomeSurvived Outcome = "survived"
	OutcomeFailed   Outcome = "failed"
)

// PointResult aggregates the replicas of one grid point. Failed replicas are
// excluded from every statistic; extinct replicas count as 0 active sites.
type PointResult struct {
	Lambda             float64
	Alpha              float64
	Replicas           int
	Extinct            int
	Survived           int
	Failed             int
	ExtinctionFraction float64 // Extinct / (Extinct + Survived)
	MeanActive         float64
	StdDevActive       float64
	StdErrActive       float64
	MeanSteps          float64
	Err                string // first replica failure, if any
}

// Completed is the number of replicas that produced an outcome.
func (r PointResult) Completed() int {
	return r.Extinct + r.Survived
}

type replicaResult struct {
	Outcome Outcome
	Active  int
	Steps   int64
	Err     error
}

// runReplica runs one replica to the horizon. Replaced in tests.
var runReplica = simulateReplica

func simulateReplica(cfg sim.Config, horizon float64) replicaResult {
	s, err := sim.New(cfg)
	if err != nil {
		return replicaResult{Outcome: OutcomeFailed, Err: err}
	}
	extinct, err := s.Run(horizon)
	if err != nil {
		return replicaResult{Outcome: OutcomeFailed, Steps: s.Steps(), Err: err}
	}
	res := replicaResult{Outcome: OutcomeSurvived, Active: s.InfectedCount(), Steps: s.Steps()}
	if extinct {
		res.Outcome = OutcomeExtinct
	}
	return res
}

// safeReplica confines a replica's invariant panic to that replica.
func safeReplica(cfg sim.Config, horizon float64) (res replicaResult) {
	defer func() {
		if r := recover(); r != nil {
			res = replicaResult{Outcome: OutcomeFailed, Err: fmt.Errorf("replica panicked: %v", r)}
		}
	}()
	return runReplica(cfg, horizon)
}

// Run executes the sweep and returns one result per grid point ordered by
// (λ, α). Replica failures never abort the sweep; only cancellation of ctx
// does, in which case the context error is returned.
func Run(ctx context.Context, cfg Config, m *Metrics) ([]PointResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	points := cfg.Grid()
	logrus.Infof("sweep: %d points x %d replicas on %s (%s scheduler), horizon %g, %d workers",
		len(points), cfg.Replicas, cfg.Topology, cfg.Scheduler, cfg.Horizon, cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	results := make(chan PointResult, len(points))
	for _, p := range points {
		p := p
		g.Go(func() error {
			r, err := runPoint(gctx, cfg, p, m)
			if err != nil {
				return err
			}
			results <- r
			return nil
		})
	}
	err := g.Wait()
	close(results)
	if err != nil {
		return nil, err
	}

	out := make([]PointResult, 0, len(points))
	for r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Lambda != out[j].Lambda {
			return out[i].Lambda < out[j].Lambda
		}
		return out[i].Alpha < out[j].Alpha
	})
	return out, nil
}

// runPoint runs every replica of p sequentially. Replica seeds come from the
// point's own stream, so results do not depend on worker scheduling.
func runPoint(ctx context.Context, cfg Config, p Point, m *Metrics) (PointResult, error) {
	start := time.Now()
	defer func() { m.observePoint(time.Since(start)) }()
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed)).ForSubsystem(sim.SubsystemPoint(p.Index))

	res := PointResult{Lambda: p.Lambda, Alpha: p.Alpha, Replicas: cfg.Replicas}
	var active, steps []float64

	if _, err := sim.NewTopology(cfg.Topology, p.Lambda, p.Alpha); err != nil {
		res.Failed = cfg.Replicas
		res.Err = err.Error()
		for i := 0; i < cfg.Replicas; i++ {
			m.observeReplica(OutcomeFailed)
		}
		logrus.Warnf("sweep: lambda %g alpha %g rejected: %v", p.Lambda, p.Alpha, err)
		return res, nil
	}

	for i := 0; i < cfg.Replicas; i++ {
		if err := ctx.Err(); err != nil {
			return PointResult{}, err
		}
		rc := sim.Config{
			Topology:  cfg.Topology,
			Lambda:    p.Lambda,
			Alpha:     p.Alpha,
			Scheduler: cfg.Scheduler,
			Seed:      rng.Int63(),
			MaxSites:  cfg.MaxSites,
		}
		rr := safeReplica(rc, cfg.Horizon)
		m.observeReplica(rr.Outcome)
		switch rr.Outcome {
		case OutcomeFailed:
			res.Failed++
			if res.Err == "" {
				res.Err = rr.Err.Error()
			}
			logrus.Debugf("sweep: lambda %g alpha %g replica %d (seed %d) failed: %v", p.Lambda, p.Alpha, i, rc.Seed, rr.Err)
			continue
		case OutcomeExtinct:
			res.Extinct++
		case OutcomeSurvived:
			res.Survived++
		}
		active = append(active, float64(rr.Active))
		steps = append(steps, float64(rr.Steps))
	}

	aggregate(&res, active, steps)
	if res.Failed > 0 {
		logrus.Warnf("sweep: lambda %g alpha %g: %d of %d replicas failed, first: %s", p.Lambda, p.Alpha, res.Failed, res.Replicas, res.Err)
	}
	logrus.Infof("Lambda: %g, Alpha: %g, Success: %g, Active: %g", res.Lambda, res.Alpha, res.ExtinctionFraction, res.MeanActive)
	return res, nil
}

// aggregate fills the statistics from the completed replicas. With fewer
// than two samples the spread is reported as 0.
func aggregate(res *PointResult, active, steps []float64) {
	n := len(active)
	if n == 0 {
		return
	}
	res.ExtinctionFraction = float64(res.Extinct) / float64(n)
	res.MeanSteps = stat.Mean(steps, nil)
	if n < 2 {
		res.MeanActive = active[0]
		return
	}
	mean, std := stat.MeanStdDev(active, nil)
	res.MeanActive = mean
	if !math.IsNaN(std) {
		res.StdDevActive = std
		res.StdErrActive = stat.StdErr(std, float64(n))
	}
}
