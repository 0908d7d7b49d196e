package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticesim/contact-sim/sim/internal/testutil"
)

func TestAdvanceForward_ResultReachesBoundaryAndNeverDecreases(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, rate := range []float64{0.1, 1, 3.5, 50} {
		cur := 0.0
		for _, boundary := range []float64{0, 0.5, 2, 2, 10, 100} {
			got, err := AdvanceForward(rng, cur, rate, boundary)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got, boundary, "rate=%v boundary=%v", rate, boundary)
			assert.GreaterOrEqual(t, got, cur, "rate=%v boundary=%v", rate, boundary)
			cur = got
		}
	}
}

func TestAdvanceForward_ScriptedIncrements(t *testing.T) {
	// GIVEN unit draws and rate 2 (increments of 0.5)
	src := testutil.NewScriptedSource(1)

	// WHEN advancing from 0 to a boundary of 1.2
	got, err := AdvanceForward(src, 0, 2, 1.2)

	// THEN three increments are added: 0.5, 1.0, 1.5
	require.NoError(t, err)
	assert.Equal(t, 1.5, got)
	assert.Equal(t, 3, src.Draws)
}

func TestAdvanceForward_AlreadyPastBoundary_NoDraws(t *testing.T) {
	src := testutil.NewScriptedSource(1)
	got, err := AdvanceForward(src, 4, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)
	assert.Equal(t, 0, src.Draws)

	// Boundary is inclusive
	got, err = AdvanceForward(src, 3, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
	assert.Equal(t, 0, src.Draws)
}

func TestAdvanceForward_NonPositiveRate_InvalidParameter(t *testing.T) {
	tests := []struct {
		name string
		rate float64
	}{
		{"zero", 0},
		{"negative", -1.5},
		{"NaN", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testutil.NewScriptedSource(1)
			_, err := AdvanceForward(src, 0, tt.rate, 10)
			assert.ErrorIs(t, err, ErrInvalidParameter)
			assert.Equal(t, 0, src.Draws, "must reject before drawing")

			_, err = SampleExp(src, tt.rate)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestAdvanceForward_InvalidBoundary(t *testing.T) {
	src := testutil.NewScriptedSource(1)
	_, err := AdvanceForward(src, 0, 1, math.Inf(1))
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = AdvanceForward(src, 0, 1, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestAdvanceForward_StalledClock_NumericalExhaustion(t *testing.T) {
	// GIVEN a clock so large that unit increments vanish in rounding
	src := testutil.NewScriptedSource(1)

	// WHEN asked to reach a boundary above it
	_, err := AdvanceForward(src, 1e300, 1, math.Nextafter(1e300, math.Inf(1)))

	// THEN the replica fails instead of looping forever
	assert.ErrorIs(t, err, ErrNumericalExhaustion)
	assert.Equal(t, maxStalledIncrements, src.Draws)
}

func TestAdvanceForward_ZeroDraws_NumericalExhaustion(t *testing.T) {
	src := testutil.NewScriptedSource(0)
	_, err := AdvanceForward(src, 0, 1, 1)
	assert.ErrorIs(t, err, ErrNumericalExhaustion)
}

func TestNextArrival_StrictlyAfterCurrent(t *testing.T) {
	src := testutil.NewScriptedSource(0.25)
	got, err := NextArrival(src, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 3.25, got)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		got, err := NextArrival(rng, 5, 4)
		require.NoError(t, err)
		assert.Greater(t, got, 5.0)
	}
}

func TestSampleExp_MeanMatchesRate(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const n = 200000
	sum := 0.0
	for i := 0; i < n; i++ {
		v, err := SampleExp(rng, 4)
		require.NoError(t, err)
		sum += v
	}
	testutil.AssertFloat64Equal(t, "mean", 0.25, sum/n, 0.02)
}
