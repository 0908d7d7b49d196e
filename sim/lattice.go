package sim

import "fmt"

type latticeEntry struct {
	coord Coord
	site  Site
}

// Lattice is the straightforward store: a coordinate index over sites kept in
// creation order. Sites are never removed. Min scans every site, so ties go to
// the earliest-created one.
type Lattice struct {
	topo    *Topology
	entries []latticeEntry // entries[0] is unused so the zero Handle stays nil
	index   map[Coord]int32
}

var _ Scheduler = (*Lattice)(nil)

// NewLattice creates an empty lattice store.
func NewLattice(topo *Topology) *Lattice {
	return &Lattice{
		topo:    topo,
		entries: make([]latticeEntry, 1),
		index:   make(map[Coord]int32),
	}
}

func (l *Lattice) ref(h Handle, op string) int32 {
	if h.Index <= 0 || int(h.Index) >= len(l.entries) {
		invariantf(op, "lattice handle %v out of range", h)
	}
	return h.Index
}

// GetOrCreate returns the site at c, materializing it with create if absent.
func (l *Lattice) GetOrCreate(c Coord, create func() (Site, error)) (Handle, error) {
	if i, ok := l.index[c]; ok {
		return Handle{Index: i}, nil
	}
	s, err := create()
	if err != nil {
		return Handle{}, err
	}
	return l.Insert(c, s), nil
}

func (l *Lattice) Min() (Handle, bool) {
	best := int32(0)
	var bestT float64
	for i := 1; i < len(l.entries); i++ {
		s := &l.entries[i].site
		if s.State != Infected {
			continue
		}
		if _, t := s.MinClock(); best == 0 || t < bestT {
			best, bestT = int32(i), t
		}
	}
	return Handle{Index: best}, best != 0
}

func (l *Lattice) Site(h Handle) *Site {
	return &l.entries[l.ref(h, "lattice.Site")].site
}

func (l *Lattice) Coord(h Handle) Coord {
	return l.entries[l.ref(h, "lattice.Coord")].coord
}

func (l *Lattice) Neighbor(h Handle, dir int) (Handle, bool) {
	c := l.topo.Neighbor(l.Coord(h), dir)
	i, ok := l.index[c]
	return Handle{Index: i}, ok
}

func (l *Lattice) Insert(c Coord, s Site) Handle {
	if _, ok := l.index[c]; ok {
		invariantf("lattice.Insert", "coordinate %v already materialized", c)
	}
	i := int32(len(l.entries))
	l.entries = append(l.entries, latticeEntry{coord: c, site: s})
	l.index[c] = i
	return Handle{Index: i}
}

// Relocate mutates the site in place; its handle never changes.
func (l *Lattice) Relocate(h Handle, mutate func(*Site) error) (Handle, error) {
	i := l.ref(h, "lattice.Relocate")
	return h, mutate(&l.entries[i].site)
}

func (l *Lattice) InfectedCount() int {
	n := 0
	for i := 1; i < len(l.entries); i++ {
		if l.entries[i].site.State == Infected {
			n++
		}
	}
	return n
}

func (l *Lattice) Len() int {
	return len(l.entries) - 1
}

func (l *Lattice) Check() error {
	if len(l.index) != l.Len() {
		return fmt.Errorf("lattice index holds %d coordinates for %d sites", len(l.index), l.Len())
	}
	for c, i := range l.index {
		if i <= 0 || int(i) >= len(l.entries) {
			return fmt.Errorf("coordinate %v maps to out-of-range entry %d", c, i)
		}
		if l.entries[i].coord != c {
			return fmt.Errorf("coordinate %v maps to entry %d holding %v", c, i, l.entries[i].coord)
		}
	}
	return nil
}
