package sweep

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticesim/contact-sim/sim"
	"github.com/latticesim/contact-sim/sim/internal/testutil"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Lambda = Range{Min: 0.2, Max: 4.2, Step: 2}
	cfg.Replicas = 15
	cfg.Horizon = 8
	cfg.Workers = 3
	cfg.Seed = 9
	return cfg
}

func TestRange_Points_IndexedEnumeration(t *testing.T) {
	pts := Range{Min: 1.3, Max: 1.7, Step: 0.01}.Points()
	require.Len(t, pts, 41)
	assert.Equal(t, 1.3, pts[0])
	assert.Equal(t, 1.33, pts[3])
	assert.Equal(t, 1.7, pts[40])
}

func TestRange_Points_SinglePoint(t *testing.T) {
	assert.Equal(t, []float64{0.5}, Range{Min: 0.5, Max: 0.5, Step: 0.1}.Points())
	assert.Equal(t, []float64{0.2}, Range{Min: 0.2, Max: 0.9}.Points())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero horizon allowed", func(c *Config) { c.Horizon = 0 }, true},
		{"no replicas", func(c *Config) { c.Replicas = 0 }, false},
		{"no workers", func(c *Config) { c.Workers = 0 }, false},
		{"NaN horizon", func(c *Config) { c.Horizon = math.NaN() }, false},
		{"negative step", func(c *Config) { c.Lambda.Step = -0.1 }, false},
		{"max below min", func(c *Config) { c.Alpha = Range{Min: 0.6, Max: 0.4, Step: 0.1} }, false},
		{"infinite bound", func(c *Config) { c.Lambda.Max = math.Inf(1) }, false},
		{"point count overflows", func(c *Config) { c.Lambda = Range{Min: 0, Max: 1e300, Step: 1e-300} }, false},
		{"span overflows", func(c *Config) { c.Lambda = Range{Min: -1e308, Max: 1e308, Step: 1} }, false},
		{"axis too large", func(c *Config) { c.Alpha = Range{Min: 0, Max: 1, Step: 1e-7} }, false},
		{"grid too large", func(c *Config) {
			c.Lambda = Range{Min: 0, Max: 1, Step: 1e-4}
			c.Alpha = Range{Min: 0, Max: 1, Step: 1e-3}
		}, false},
		{"unknown topology", func(c *Config) { c.Topology = "torus" }, false},
		{"unknown scheduler", func(c *Config) { c.Scheduler = "heap" }, false},
		{"negative max sites", func(c *Config) { c.MaxSites = -2 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, sim.ErrInvalidParameter)
			}
		})
	}
}

func TestRun_OversizedRange_RejectedBeforeAllocation(t *testing.T) {
	// GIVEN a λ range whose point count overflows
	cfg := smallConfig()
	cfg.Lambda = Range{Min: 0, Max: 1e300, Step: 1e-300}
	cfg.Replicas = 1

	// WHEN the sweep runs
	var err error
	require.NotPanics(t, func() { _, err = Run(context.Background(), cfg, nil) })

	// THEN it is refused as an invalid parameter
	assert.ErrorIs(t, err, sim.ErrInvalidParameter)
}

func TestConfig_Grid_LambdaMajor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lambda = Range{Min: 1, Max: 2, Step: 1}
	cfg.Alpha = Range{Min: 0.25, Max: 0.75, Step: 0.5}
	assert.Equal(t, []Point{
		{Index: 0, Lambda: 1, Alpha: 0.25},
		{Index: 1, Lambda: 1, Alpha: 0.75},
		{Index: 2, Lambda: 2, Alpha: 0.25},
		{Index: 3, Lambda: 2, Alpha: 0.75},
	}, cfg.Grid())
}

func TestRun_ResultsIndependentOfWorkerCount(t *testing.T) {
	// GIVEN the same sweep on one and on four workers
	one := smallConfig()
	one.Workers = 1
	four := smallConfig()
	four.Workers = 4

	// WHEN both run
	a, err := Run(context.Background(), one, nil)
	require.NoError(t, err)
	b, err := Run(context.Background(), four, nil)
	require.NoError(t, err)

	// THEN the results match point for point, sorted by λ
	assert.Equal(t, a, b)
	require.Len(t, a, 3)
	for i, r := range a {
		assert.InDelta(t, 0.2+2*float64(i), r.Lambda, 1e-12)
		assert.Equal(t, 15, r.Completed())
		assert.Zero(t, r.Failed)
	}
	assert.Greater(t, a[0].ExtinctionFraction, a[2].ExtinctionFraction, "subcritical dies out more often")
}

func TestRun_PanickingReplicasAreCountedAsFailed(t *testing.T) {
	// GIVEN a replica runner that corrupts every third replica
	calls := 0
	orig := runReplica
	runReplica = func(cfg sim.Config, horizon float64) replicaResult {
		calls++
		if calls%3 == 0 {
			panic(&sim.InvariantError{Op: "test", Detail: "corrupted"})
		}
		return replicaResult{Outcome: OutcomeExtinct, Steps: 1}
	}
	defer func() { runReplica = orig }()

	cfg := smallConfig()
	cfg.Lambda = Range{Min: 1, Max: 1}
	cfg.Workers = 1
	cfg.Replicas = 9

	// WHEN the sweep runs
	res, err := Run(context.Background(), cfg, nil)

	// THEN the sweep completes and the failures are isolated
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 3, res[0].Failed)
	assert.Equal(t, 6, res[0].Extinct)
	assert.Equal(t, 1.0, res[0].ExtinctionFraction)
	assert.Contains(t, res[0].Err, "corrupted")
}

func TestRun_InvalidGridPoint_FailsOnlyThatPoint(t *testing.T) {
	cfg := smallConfig()
	cfg.Topology = sim.TopologyGrid
	cfg.Lambda = Range{Min: 1, Max: 1}
	cfg.Alpha = Range{Min: 0, Max: 0.5, Step: 0.5}

	res, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, cfg.Replicas, res[0].Failed)
	assert.NotEmpty(t, res[0].Err)
	assert.Zero(t, res[1].Failed)
	assert.Equal(t, cfg.Replicas, res[1].Completed())
}

func TestRun_MetricsCountEveryReplica(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	cfg := smallConfig()

	res, err := Run(context.Background(), cfg, m)
	require.NoError(t, err)

	var extinct, survived int
	for _, r := range res {
		extinct += r.Extinct
		survived += r.Survived
	}
	assert.Equal(t, float64(extinct), promtest.ToFloat64(m.Replicas.WithLabelValues(string(OutcomeExtinct))))
	assert.Equal(t, float64(survived), promtest.ToFloat64(m.Replicas.WithLabelValues(string(OutcomeSurvived))))
	assert.Equal(t, 1, promtest.CollectAndCount(m.PointDuration))
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 2)
}

func TestRun_MetricsTimeRejectedPoints(t *testing.T) {
	// GIVEN a grid sweep whose first α is invalid
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	cfg := smallConfig()
	cfg.Topology = sim.TopologyGrid
	cfg.Lambda = Range{Min: 1, Max: 1}
	cfg.Alpha = Range{Min: 0, Max: 0.5, Step: 0.5}
	cfg.Replicas = 3

	// WHEN it runs
	_, err := Run(context.Background(), cfg, m)
	require.NoError(t, err)

	// THEN both points are timed and the rejected one counts as failed replicas
	families, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, f := range families {
		if f.GetName() == "contact_sim_point_duration_seconds" {
			samples = f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), samples)
	assert.Equal(t, 3.0, promtest.ToFloat64(m.Replicas.WithLabelValues(string(OutcomeFailed))))
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, smallConfig(), nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Replicas = 0
	_, err := Run(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, sim.ErrInvalidParameter)
}

func TestAggregate(t *testing.T) {
	res := PointResult{Extinct: 1, Survived: 2}
	aggregate(&res, []float64{0, 2, 4}, []float64{10, 20, 30})

	testutil.AssertFloat64Equal(t, "extinction", 1.0/3, res.ExtinctionFraction, 1e-12)
	testutil.AssertFloat64Equal(t, "mean", 2, res.MeanActive, 1e-12)
	testutil.AssertFloat64Equal(t, "stddev", 2, res.StdDevActive, 1e-12)
	testutil.AssertFloat64Equal(t, "stderr", 2/math.Sqrt(3), res.StdErrActive, 1e-12)
	testutil.AssertFloat64Equal(t, "steps", 20, res.MeanSteps, 1e-12)
}

func TestAggregate_SingleAndEmpty(t *testing.T) {
	res := PointResult{Survived: 1}
	aggregate(&res, []float64{7}, []float64{3})
	assert.Equal(t, 7.0, res.MeanActive)
	assert.Zero(t, res.StdDevActive)
	assert.Zero(t, res.ExtinctionFraction)

	empty := PointResult{Failed: 4}
	aggregate(&empty, nil, nil)
	assert.Zero(t, empty.MeanActive)
}
