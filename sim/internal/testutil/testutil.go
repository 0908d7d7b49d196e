// Package testutil provides shared test infrastructure for the contact-process
// simulator: scripted random sources and float assertion helpers used across
// sim/ and sim/sweep/ test packages.
package testutil

import (
	"math"
	"testing"
)

// ScriptedSource replays a fixed sequence of rate-1 exponential draws,
// cycling when exhausted. It satisfies sim.Source.
type ScriptedSource struct {
	Values []float64
	Draws  int
}

// NewScriptedSource creates a ScriptedSource over values.
func NewScriptedSource(values ...float64) *ScriptedSource {
	return &ScriptedSource{Values: values}
}

// ExpFloat64 returns the next scripted value.
func (s *ScriptedSource) ExpFloat64() float64 {
	v := s.Values[s.Draws%len(s.Values)]
	s.Draws++
	return v
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
