package sim

import (
	"fmt"
	"math"
)

// HealRate is the recovery rate of every site. Infection rates are expressed
// relative to it.
const HealRate = 1.0

// maxStalledIncrements bounds how many consecutive increments may fail to move
// a clock before the replica is declared numerically exhausted.
const maxStalledIncrements = 64

// Source is the random-draw primitive consumed by the clock model.
// *rand.Rand satisfies it; tests substitute scripted sequences.
type Source interface {
	// ExpFloat64 returns an exponentially distributed value with rate 1.
	ExpFloat64() float64
}

func validateRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return fmt.Errorf("exponential rate %v must be finite and > 0: %w", rate, ErrInvalidParameter)
	}
	return nil
}

// SampleExp draws a single exponential(rate) increment from src.
func SampleExp(src Source, rate float64) (float64, error) {
	if err := validateRate(rate); err != nil {
		return 0, err
	}
	return src.ExpFloat64() / rate, nil
}

// AdvanceForward adds independent exponential(rate) increments to current
// until the value meets or exceeds boundary, and returns that value. A
// current already at or past boundary is returned unchanged.
//
// By the memoryless property the result is distributed as the first arrival
// at or after boundary of a Poisson process with the given rate.
func AdvanceForward(src Source, current, rate, boundary float64) (float64, error) {
	if err := validateRate(rate); err != nil {
		return current, err
	}
	if math.IsNaN(current) || math.IsNaN(boundary) || math.IsInf(boundary, 1) {
		return current, fmt.Errorf("clock %v cannot advance to boundary %v: %w", current, boundary, ErrInvalidParameter)
	}
	stalled := 0
	for current < boundary {
		inc, err := SampleExp(src, rate)
		if err != nil {
			return current, err
		}
		next := current + inc
		if next == current {
			stalled++
			if stalled >= maxStalledIncrements {
				return current, fmt.Errorf("clock stuck at %v below %v: %w", current, boundary, ErrNumericalExhaustion)
			}
			continue
		}
		stalled = 0
		current = next
	}
	return current, nil
}

// NextArrival returns the first arrival strictly after current.
func NextArrival(src Source, current, rate float64) (float64, error) {
	return AdvanceForward(src, current, rate, math.Nextafter(current, math.Inf(1)))
}
