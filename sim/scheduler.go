package sim

import (
	"fmt"
	"strings"
)

// SchedulerKind selects the event-selection structure of a replica.
type SchedulerKind string

const (
	// SchedulerScan scans every materialized site per step: O(n), the correctness baseline.
	SchedulerScan SchedulerKind = "scan"
	// SchedulerTree keeps sites in a red-black tree keyed by (state, next event time): O(log n).
	SchedulerTree SchedulerKind = "tree"
)

// ParseSchedulerKind converts a CLI/config string into a SchedulerKind.
// The empty string selects the tree.
func ParseSchedulerKind(s string) (SchedulerKind, error) {
	switch k := SchedulerKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SchedulerTree, nil
	case SchedulerScan, SchedulerTree:
		return k, nil
	default:
		return "", fmt.Errorf("unknown scheduler %q (valid: scan, tree): %w", s, ErrInvalidParameter)
	}
}

// Handle is a stable reference to a scheduler entry. The zero Handle refers
// to nothing. A handle whose generation no longer matches its slot is stale;
// dereferencing it is an invariant violation.
type Handle struct {
	Index int32
	Gen   uint32
}

// IsNil reports whether h refers to no entry.
func (h Handle) IsNil() bool {
	return h.Index == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("#%d.%d", h.Index, h.Gen)
}

// Scheduler holds one entry per ever-infected coordinate and answers which
// infected site fires next.
//
// Site returns a read-only view that stays valid only until the next Insert
// or Relocate. All mutation goes through Relocate so implementations can
// re-key the entry.
type Scheduler interface {
	// Min returns the infected entry with the smallest pending clock.
	Min() (Handle, bool)
	Site(h Handle) *Site
	Coord(h Handle) Coord
	// Neighbor returns the entry adjacent to h in direction dir, if materialized.
	Neighbor(h Handle, dir int) (Handle, bool)
	// Insert materializes a coordinate that has no entry yet.
	Insert(c Coord, s Site) Handle
	// GetOrCreate returns the entry at c, materializing it with create if absent.
	GetOrCreate(c Coord, create func() (Site, error)) (Handle, error)
	// Relocate applies mutate to the entry's site and re-keys it. The returned
	// handle replaces h. The entry is re-keyed even when mutate fails.
	Relocate(h Handle, mutate func(*Site) error) (Handle, error)
	InfectedCount() int
	Len() int
	// Check verifies the structure's internal invariants.
	Check() error
}

// NewScheduler builds an empty scheduler of the given kind.
func NewScheduler(kind SchedulerKind, topo *Topology) (Scheduler, error) {
	switch kind {
	case SchedulerScan:
		return NewLattice(topo), nil
	case SchedulerTree, "":
		return NewTree(topo), nil
	default:
		return nil, fmt.Errorf("unknown scheduler %q: %w", kind, ErrInvalidParameter)
	}
}
