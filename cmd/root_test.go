package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticesim/contact-sim/sim"
)

func TestBuildSimConfig_ParsesNames(t *testing.T) {
	cfg, err := buildSimConfig(runOptions{Topology: " Grid ", Lambda: 2, Alpha: 0.3, Scheduler: "scan", Seed: 5, MaxSites: 100})
	require.NoError(t, err)
	assert.Equal(t, sim.TopologyGrid, cfg.Topology)
	assert.Equal(t, sim.SchedulerScan, cfg.Scheduler)
	assert.Equal(t, int64(5), cfg.Seed)
	assert.Equal(t, 100, cfg.MaxSites)
	assert.Nil(t, cfg.Recorder)
}

func TestBuildSimConfig_UnknownNames(t *testing.T) {
	_, err := buildSimConfig(runOptions{Topology: "torus"})
	assert.ErrorIs(t, err, sim.ErrInvalidParameter)
	_, err = buildSimConfig(runOptions{Topology: "line", Scheduler: "heap"})
	assert.ErrorIs(t, err, sim.ErrInvalidParameter)
}

func TestRunSingle_RecoveryOnlyGoesExtinct(t *testing.T) {
	// GIVEN a replica with no infection channels
	var buf bytes.Buffer
	opts := runOptions{Topology: "line", Lambda: 0, Horizon: 1e6, Seed: 3, Trace: true}

	// WHEN it runs
	require.NoError(t, runSingle(&buf, opts))

	// THEN the only event is the origin's recovery
	out := buf.String()
	assert.Contains(t, out, "Outcome: extinguished")
	assert.Contains(t, out, "Extinct: true")
	assert.Contains(t, out, "Infected: 0")
	assert.Contains(t, out, "Steps: 1")
	assert.Contains(t, out, "Recorded: 1 events (1 heals, 0 infections, 0 spawns)")
}

func TestRunSingle_ZeroHorizonSurvivesWithoutEvents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runSingle(&buf, runOptions{Topology: "line", Lambda: 1.6, Horizon: 0}))
	assert.Contains(t, buf.String(), "Extinct: false")
	assert.Contains(t, buf.String(), "Steps: 0")
}

func TestRunSingle_InvalidAlpha(t *testing.T) {
	var buf bytes.Buffer
	err := runSingle(&buf, runOptions{Topology: "grid", Lambda: 1, Alpha: 1, Horizon: 10})
	assert.ErrorIs(t, err, sim.ErrInvalidParameter)
	assert.Empty(t, buf.String())
}
