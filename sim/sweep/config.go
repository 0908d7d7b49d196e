package sweep

import (
	"fmt"
	"math"

	"github.com/latticesim/contact-sim/sim"
)

// maxGridPoints caps both a single axis and the full (λ, α) grid.
const maxGridPoints = 1_000_000

// Range is an inclusive arithmetic grid Min, Min+Step, ..., <= Max.
type Range struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// Points enumerates the grid by integer index so values never accumulate
// float drift. A zero step or Min == Max yields the single point Min.
func (r Range) Points() []float64 {
	pts := make([]float64, int(r.count()))
	for i := range pts {
		pts[i] = math.Round((r.Min+float64(i)*r.Step)*1e9) / 1e9
	}
	return pts
}

// count is the number of grid points as a float so oversized or overflowing
// ranges can be rejected before anything is allocated.
func (r Range) count() float64 {
	if r.Step == 0 || r.Min == r.Max {
		return 1
	}
	return math.Floor((r.Max-r.Min)/r.Step+1e-9) + 1
}

func (r Range) validate(name string) error {
	for _, v := range []float64{r.Min, r.Max, r.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s range %+v must be finite: %w", name, r, sim.ErrInvalidParameter)
		}
	}
	if r.Step < 0 {
		return fmt.Errorf("%s step %v must be >= 0: %w", name, r.Step, sim.ErrInvalidParameter)
	}
	if r.Max < r.Min {
		return fmt.Errorf("%s max %v is below min %v: %w", name, r.Max, r.Min, sim.ErrInvalidParameter)
	}
	if n := r.count(); math.IsNaN(n) || math.IsInf(n, 0) || n > maxGridPoints {
		return fmt.Errorf("%s range %+v yields %g points, limit is %d: %w", name, r, n, maxGridPoints, sim.ErrInvalidParameter)
	}
	return nil
}

// Config describes a parameter sweep: every (λ, α) grid point runs Replicas
// independent replicas to Horizon.
type Config struct {
	Topology  sim.TopologyKind  `yaml:"topology"`
	Scheduler sim.SchedulerKind `yaml:"scheduler"`
	Lambda    Range             `yaml:"lambda"`
	Alpha     Range             `yaml:"alpha"`
	Replicas  int               `yaml:"replicas"`
	Horizon   float64           `yaml:"horizon"`
	Seed      int64             `yaml:"seed"`
	Workers   int               `yaml:"workers"`
	MaxSites  int               `yaml:"max_sites"`
}

// DefaultConfig mirrors the classic experiment: the 1-D nearest-neighbor
// line around its critical point.
func DefaultConfig() Config {
	return Config{
		Topology:  sim.TopologyLine,
		Scheduler: sim.SchedulerTree,
		Lambda:    Range{Min: 1.3, Max: 1.7, Step: 0.01},
		Alpha:     Range{Min: 0.5, Max: 0.5},
		Replicas:  1000,
		Horizon:   10000,
		Seed:      42,
		Workers:   12,
	}
}

// Validate checks the sweep shape. Per-point rate validity is left to the
// replicas so one bad grid point does not abort the sweep.
func (c Config) Validate() error {
	if _, err := sim.ParseTopologyKind(string(c.Topology)); err != nil {
		return err
	}
	if _, err := sim.ParseSchedulerKind(string(c.Scheduler)); err != nil {
		return err
	}
	if err := c.Lambda.validate("lambda"); err != nil {
		return err
	}
	if err := c.Alpha.validate("alpha"); err != nil {
		return err
	}
	if n := c.Lambda.count() * c.Alpha.count(); n > maxGridPoints {
		return fmt.Errorf("grid of %g points exceeds limit %d: %w", n, maxGridPoints, sim.ErrInvalidParameter)
	}
	if c.Replicas < 1 {
		return fmt.Errorf("replicas %d must be >= 1: %w", c.Replicas, sim.ErrInvalidParameter)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers %d must be >= 1: %w", c.Workers, sim.ErrInvalidParameter)
	}
	if math.IsNaN(c.Horizon) {
		return fmt.Errorf("horizon is NaN: %w", sim.ErrInvalidParameter)
	}
	if c.MaxSites < 0 {
		return fmt.Errorf("max sites %d must be >= 0: %w", c.MaxSites, sim.ErrInvalidParameter)
	}
	return nil
}

// Point is one grid coordinate. Index is stable for a given Config and keys
// the point's random stream.
type Point struct {
	Index  int
	Lambda float64
	Alpha  float64
}

// Grid lists every point, λ-major.
func (c Config) Grid() []Point {
	lambdas, alphas := c.Lambda.Points(), c.Alpha.Points()
	pts := make([]Point, 0, len(lambdas)*len(alphas))
	for _, l := range lambdas {
		for _, a := range alphas {
			pts = append(pts, Point{Index: len(pts), Lambda: l, Alpha: a})
		}
	}
	return pts
}
