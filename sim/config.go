package sim

import "github.com/latticesim/contact-sim/sim/trace"

// Config groups everything a single replica needs.
type Config struct {
	Topology  TopologyKind  // "line", "line-extended" or "grid"
	Lambda    float64       // infection rate scale (>= 0)
	Alpha     float64       // near/far split in (0, 1); ignored by "line"
	Scheduler SchedulerKind // "tree" (default) or "scan"
	Seed      int64         // used when Source is nil
	Source    Source        // random-draw stream owned by this replica (optional)
	MaxSites  int           // cap on materialized sites; 0 = unbounded
	Recorder  *trace.EventTrace
}

// NewConfig returns a Config for the given topology and rates with the
// default scheduler and an unbounded lattice.
func NewConfig(kind TopologyKind, lambda, alpha float64, seed int64) Config {
	return Config{
		Topology:  kind,
		Lambda:    lambda,
		Alpha:     alpha,
		Scheduler: SchedulerTree,
		Seed:      seed,
	}
}
