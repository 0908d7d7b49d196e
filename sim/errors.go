package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned when a rate or topology parameter cannot
	// describe a valid contact process (non-positive rate, α outside (0, 1), NaN).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNumericalExhaustion is returned when adding exponential increments no
	// longer advances a clock because the float64 mantissa is exhausted.
	ErrNumericalExhaustion = errors.New("numerical exhaustion")

	// ErrLatticeExhausted is returned when a replica would materialize more
	// sites than Config.MaxSites allows.
	ErrLatticeExhausted = errors.New("lattice site cap exceeded")
)

// InvariantError reports corrupted scheduler or lattice bookkeeping.
// It is raised with panic, never returned: a replica that hits it cannot
// continue, and the sweep recovers it as a single failed sample.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}

func invariantf(op, format string, args ...any) {
	panic(&InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)})
}
