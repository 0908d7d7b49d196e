package sim

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// TopologyKind selects the lattice and its infection directions.
type TopologyKind string

const (
	// TopologyLine is the 1-D lattice with nearest-neighbor infection at rate λ per side.
	TopologyLine TopologyKind = "line"
	// TopologyLineExtended is the 1-D lattice with nearest (λα) and second-nearest (λ(1-α)) infection.
	TopologyLineExtended TopologyKind = "line-extended"
	// TopologyGrid is the 2-D square lattice with horizontal (λα) and vertical (λ(1-α)) infection.
	TopologyGrid TopologyKind = "grid"
)

var validTopologyKinds = map[TopologyKind]bool{
	TopologyLine:         true,
	TopologyLineExtended: true,
	TopologyGrid:         true,
}

// ValidTopologyKinds returns the accepted topology names, sorted.
func ValidTopologyKinds() []string {
	names := make([]string, 0, len(validTopologyKinds))
	for k := range validTopologyKinds {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// ParseTopologyKind converts a CLI/config string into a TopologyKind.
func ParseTopologyKind(s string) (TopologyKind, error) {
	k := TopologyKind(strings.ToLower(strings.TrimSpace(s)))
	if !validTopologyKinds[k] {
		return "", fmt.Errorf("unknown topology %q (valid: %s): %w", s, strings.Join(ValidTopologyKinds(), ", "), ErrInvalidParameter)
	}
	return k, nil
}

// Coord is a lattice coordinate. 1-D topologies keep Y == 0.
type Coord struct {
	X, Y int
}

// Add returns c shifted by off.
func (c Coord) Add(off Coord) Coord {
	return Coord{X: c.X + off.X, Y: c.Y + off.Y}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Direction is one outgoing infection channel of a site.
type Direction struct {
	Name     string
	Offset   Coord
	Rate     float64
	Opposite int // index of the direction pointing back
}

// Topology describes the infection channels shared by every site of a replica.
// Directions are ordered; that order is the tie-break priority after recovery.
type Topology struct {
	Kind       TopologyKind
	Lambda     float64
	Alpha      float64
	Directions []Direction
}

// NewTopology derives per-direction rates from λ and α.
//
// λ == 0 is the recovery-only process: the directions exist but carry no
// live clocks. For λ > 0 every derived rate must be strictly positive, which
// for line-extended and grid means α ∈ (0, 1). TopologyLine ignores α.
func NewTopology(kind TopologyKind, lambda, alpha float64) (*Topology, error) {
	if !validTopologyKinds[kind] {
		return nil, fmt.Errorf("unknown topology %q: %w", kind, ErrInvalidParameter)
	}
	if math.IsNaN(lambda) || math.IsInf(lambda, 0) || lambda < 0 {
		return nil, fmt.Errorf("lambda %v must be finite and >= 0: %w", lambda, ErrInvalidParameter)
	}

	var near, far float64
	switch kind {
	case TopologyLine:
		near = lambda
	default:
		if lambda > 0 && (math.IsNaN(alpha) || alpha <= 0 || alpha >= 1) {
			return nil, fmt.Errorf("alpha %v must lie strictly within (0, 1) for %s: %w", alpha, kind, ErrInvalidParameter)
		}
		near = lambda * alpha
		far = lambda * (1 - alpha)
	}

	topo := &Topology{Kind: kind, Lambda: lambda, Alpha: alpha}
	switch kind {
	case TopologyLine:
		topo.Directions = []Direction{
			{Name: "left", Offset: Coord{X: -1}, Rate: near, Opposite: 1},
			{Name: "right", Offset: Coord{X: 1}, Rate: near, Opposite: 0},
		}
	case TopologyLineExtended:
		topo.Directions = []Direction{
			{Name: "left", Offset: Coord{X: -1}, Rate: near, Opposite: 1},
			{Name: "right", Offset: Coord{X: 1}, Rate: near, Opposite: 0},
			{Name: "two-left", Offset: Coord{X: -2}, Rate: far, Opposite: 3},
			{Name: "two-right", Offset: Coord{X: 2}, Rate: far, Opposite: 2},
		}
	case TopologyGrid:
		topo.Directions = []Direction{
			{Name: "left", Offset: Coord{X: -1}, Rate: near, Opposite: 1},
			{Name: "right", Offset: Coord{X: 1}, Rate: near, Opposite: 0},
			{Name: "up", Offset: Coord{Y: 1}, Rate: far, Opposite: 3},
			{Name: "down", Offset: Coord{Y: -1}, Rate: far, Opposite: 2},
		}
	}

	if lambda > 0 {
		for _, d := range topo.Directions {
			if err := validateRate(d.Rate); err != nil {
				return nil, fmt.Errorf("%s direction %q: %w", kind, d.Name, err)
			}
		}
	}
	return topo, nil
}

// RecoveryOnly reports whether no infection clock can ever fire.
func (t *Topology) RecoveryOnly() bool {
	return t.Lambda == 0
}

// Degree is the number of infection directions.
func (t *Topology) Degree() int {
	return len(t.Directions)
}

// Neighbor resolves the coordinate targeted by direction dir from c.
func (t *Topology) Neighbor(c Coord, dir int) Coord {
	return c.Add(t.Directions[dir].Offset)
}
