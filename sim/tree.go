package sim

import "fmt"

// treeNode is one arena slot. Slot 0 is the black sentinel that stands in
// for every nil child and for the root's parent.
type treeNode struct {
	left, right, parent int32
	red                 bool
	live                bool
	gen                 uint32

	state State
	key   float64 // cached min clock at insertion
	ord   uint64  // creation ordinal, final tie-break

	coord Coord
	site  Site
	links []Handle // adjacent entry per direction
}

// Entry is the payload of a tree node detached by Delete, ready to be
// reinserted once its site has been mutated.
type Entry struct {
	Coord Coord
	Site  Site
	Links []Handle

	ord uint64
}

// Tree keeps one entry per ever-infected coordinate in a red-black tree
// ordered by (state, min clock, creation ordinal). Infected entries form a
// prefix, so the next event is the leftmost node.
//
// Tree position says nothing about lattice position, so each entry carries
// the handles of its lattice neighbors. Nodes live in an arena addressed by
// generation-checked handles; a delete invalidates the old handle and the
// matching reinsert rewrites every neighbor's back-link to the new one.
// The coordinate index is consulted only when a new coordinate is linked in.
type Tree struct {
	topo     *Topology
	nodes    []treeNode
	free     []int32
	root     int32
	index    map[Coord]Handle
	live     int
	infected int
	nextOrd  uint64
}

var _ Scheduler = (*Tree)(nil)

// NewTree creates an empty tree scheduler.
func NewTree(topo *Topology) *Tree {
	return &Tree{
		topo:  topo,
		nodes: make([]treeNode, 1),
		index: make(map[Coord]Handle),
	}
}

// === Handles and arena ===

func (t *Tree) handle(i int32) Handle {
	return Handle{Index: i, Gen: t.nodes[i].gen}
}

func (t *Tree) valid(h Handle) bool {
	if h.Index <= 0 || int(h.Index) >= len(t.nodes) {
		return false
	}
	n := &t.nodes[h.Index]
	return n.live && n.gen == h.Gen
}

func (t *Tree) deref(h Handle, op string) int32 {
	if !t.valid(h) {
		invariantf(op, "stale or unknown handle %v", h)
	}
	return h.Index
}

func (t *Tree) alloc() int32 {
	if k := len(t.free); k > 0 {
		i := t.free[k-1]
		t.free = t.free[:k-1]
		return i
	}
	t.nodes = append(t.nodes, treeNode{gen: 1})
	return int32(len(t.nodes) - 1)
}

func (t *Tree) release(i int32) {
	gen := t.nodes[i].gen + 1
	if gen == 0 {
		gen = 1
	}
	t.nodes[i] = treeNode{gen: gen}
	t.free = append(t.free, i)
}

// === Ordering ===

func (t *Tree) less(a, b int32) bool {
	na, nb := &t.nodes[a], &t.nodes[b]
	if na.state != nb.state {
		return na.state < nb.state
	}
	if na.key != nb.key {
		return na.key < nb.key
	}
	return na.ord < nb.ord
}

// === Scheduler ===

// Min returns the leftmost entry when it is infected.
func (t *Tree) Min() (Handle, bool) {
	if t.root == 0 {
		return Handle{}, false
	}
	m := t.minimum(t.root)
	if t.nodes[m].state != Infected {
		return Handle{}, false
	}
	return t.handle(m), true
}

// PeekMinInfected returns the minimal infected entry with a copy of its
// clocks and neighbor handles.
func (t *Tree) PeekMinInfected() (Handle, Entry, bool) {
	h, ok := t.Min()
	if !ok {
		return Handle{}, Entry{}, false
	}
	n := &t.nodes[h.Index]
	e := Entry{
		Coord: n.coord,
		Site: Site{
			State:  n.site.State,
			Heal:   n.site.Heal,
			Infect: append([]float64(nil), n.site.Infect...),
		},
		Links: append([]Handle(nil), n.links...),
		ord:   n.ord,
	}
	return h, e, true
}

// Links returns the neighbor handles recorded for h, one per direction.
func (t *Tree) Links(h Handle) []Handle {
	return append([]Handle(nil), t.nodes[t.deref(h, "tree.Links")].links...)
}

func (t *Tree) Site(h Handle) *Site {
	return &t.nodes[t.deref(h, "tree.Site")].site
}

func (t *Tree) Coord(h Handle) Coord {
	return t.nodes[t.deref(h, "tree.Coord")].coord
}

func (t *Tree) Neighbor(h Handle, dir int) (Handle, bool) {
	nb := t.nodes[t.deref(h, "tree.Neighbor")].links[dir]
	if nb.IsNil() {
		return Handle{}, false
	}
	t.deref(nb, "tree.Neighbor")
	return nb, true
}

// Insert links a new coordinate into the tree and into the adjacency of
// every materialized lattice neighbor.
func (t *Tree) Insert(c Coord, s Site) Handle {
	if _, ok := t.index[c]; ok {
		invariantf("tree.Insert", "coordinate %v already materialized", c)
	}
	links := make([]Handle, t.topo.Degree())
	for d := range t.topo.Directions {
		if nb, ok := t.index[t.topo.Neighbor(c, d)]; ok {
			links[d] = nb
		}
	}
	e := Entry{Coord: c, Site: s, Links: links, ord: t.nextOrd}
	t.nextOrd++
	return t.Reinsert(e)
}

// GetOrCreate returns the entry at c, linking in a site built by create if
// the coordinate has none yet.
func (t *Tree) GetOrCreate(c Coord, create func() (Site, error)) (Handle, error) {
	if h, ok := t.index[c]; ok {
		return h, nil
	}
	s, err := create()
	if err != nil {
		return Handle{}, err
	}
	return t.Insert(c, s), nil
}

// Delete detaches the entry behind h and invalidates h. Neighbors keep
// pointing at the stale handle until the entry is reinserted.
func (t *Tree) Delete(h Handle) Entry {
	i := t.deref(h, "tree.Delete")
	t.unlink(i)
	n := &t.nodes[i]
	e := Entry{Coord: n.coord, Site: n.site, Links: n.links, ord: n.ord}
	if n.state == Infected {
		t.infected--
	}
	t.live--
	delete(t.index, n.coord)
	t.release(i)
	return e
}

// Reinsert places e at the position given by its current site, then points
// each recorded neighbor's back-link at the new handle.
func (t *Tree) Reinsert(e Entry) Handle {
	i := t.alloc()
	_, key := e.Site.MinClock()
	n := &t.nodes[i]
	n.live = true
	n.state = e.Site.State
	n.key = key
	n.ord = e.ord
	n.coord = e.Coord
	n.site = e.Site
	n.links = e.Links
	t.link(i)

	h := t.handle(i)
	for d, nb := range e.Links {
		if nb.IsNil() {
			continue
		}
		j := t.deref(nb, "tree.Reinsert")
		t.nodes[j].links[t.topo.Directions[d].Opposite] = h
	}
	t.index[e.Coord] = h
	t.live++
	if e.Site.State == Infected {
		t.infected++
	}
	return h
}

// Relocate is Delete, mutate, Reinsert.
func (t *Tree) Relocate(h Handle, mutate func(*Site) error) (Handle, error) {
	e := t.Delete(h)
	err := mutate(&e.Site)
	return t.Reinsert(e), err
}

func (t *Tree) InfectedCount() int {
	return t.infected
}

func (t *Tree) Len() int {
	return t.live
}

// === Red-black mechanics ===

func (t *Tree) minimum(x int32) int32 {
	for t.nodes[x].left != 0 {
		x = t.nodes[x].left
	}
	return x
}

func (t *Tree) rotateLeft(x int32) {
	n := t.nodes
	y := n[x].right
	n[x].right = n[y].left
	if n[y].left != 0 {
		n[n[y].left].parent = x
	}
	n[y].parent = n[x].parent
	switch p := n[x].parent; {
	case p == 0:
		t.root = y
	case x == n[p].left:
		n[p].left = y
	default:
		n[p].right = y
	}
	n[y].left = x
	n[x].parent = y
}

func (t *Tree) rotateRight(x int32) {
	n := t.nodes
	y := n[x].left
	n[x].left = n[y].right
	if n[y].right != 0 {
		n[n[y].right].parent = x
	}
	n[y].parent = n[x].parent
	switch p := n[x].parent; {
	case p == 0:
		t.root = y
	case x == n[p].right:
		n[p].right = y
	default:
		n[p].left = y
	}
	n[y].right = x
	n[x].parent = y
}

func (t *Tree) link(z int32) {
	n := t.nodes
	y, x := int32(0), t.root
	for x != 0 {
		y = x
		if t.less(z, x) {
			x = n[x].left
		} else {
			x = n[x].right
		}
	}
	n[z].parent = y
	switch {
	case y == 0:
		t.root = z
	case t.less(z, y):
		n[y].left = z
	default:
		n[y].right = z
	}
	n[z].left, n[z].right = 0, 0
	n[z].red = true
	t.insertFixup(z)
}

func (t *Tree) insertFixup(z int32) {
	n := t.nodes
	for n[n[z].parent].red {
		p := n[z].parent
		g := n[p].parent
		if p == n[g].left {
			if u := n[g].right; n[u].red {
				n[p].red, n[u].red, n[g].red = false, false, true
				z = g
				continue
			}
			if z == n[p].right {
				z = p
				t.rotateLeft(z)
				p = n[z].parent
				g = n[p].parent
			}
			n[p].red, n[g].red = false, true
			t.rotateRight(g)
		} else {
			if u := n[g].left; n[u].red {
				n[p].red, n[u].red, n[g].red = false, false, true
				z = g
				continue
			}
			if z == n[p].left {
				z = p
				t.rotateRight(z)
				p = n[z].parent
				g = n[p].parent
			}
			n[p].red, n[g].red = false, true
			t.rotateLeft(g)
		}
	}
	n[t.root].red = false
}

func (t *Tree) transplant(u, v int32) {
	n := t.nodes
	switch p := n[u].parent; {
	case p == 0:
		t.root = v
	case u == n[p].left:
		n[p].left = v
	default:
		n[p].right = v
	}
	n[v].parent = n[u].parent
}

func (t *Tree) unlink(z int32) {
	n := t.nodes
	y := z
	yRed := n[y].red
	var x int32
	switch {
	case n[z].left == 0:
		x = n[z].right
		t.transplant(z, n[z].right)
	case n[z].right == 0:
		x = n[z].left
		t.transplant(z, n[z].left)
	default:
		y = t.minimum(n[z].right)
		yRed = n[y].red
		x = n[y].right
		if n[y].parent == z {
			n[x].parent = y
		} else {
			t.transplant(y, n[y].right)
			n[y].right = n[z].right
			n[n[y].right].parent = y
		}
		t.transplant(z, y)
		n[y].left = n[z].left
		n[n[y].left].parent = y
		n[y].red = n[z].red
	}
	if !yRed {
		t.deleteFixup(x)
	}
	n[0] = treeNode{}
	n[z].left, n[z].right, n[z].parent = 0, 0, 0
}

func (t *Tree) deleteFixup(x int32) {
	n := t.nodes
	for x != t.root && !n[x].red {
		p := n[x].parent
		if x == n[p].left {
			w := n[p].right
			if n[w].red {
				n[w].red, n[p].red = false, true
				t.rotateLeft(p)
				w = n[p].right
			}
			if !n[n[w].left].red && !n[n[w].right].red {
				n[w].red = true
				x = p
				continue
			}
			if !n[n[w].right].red {
				n[n[w].left].red, n[w].red = false, true
				t.rotateRight(w)
				w = n[p].right
			}
			n[w].red, n[p].red = n[p].red, false
			n[n[w].right].red = false
			t.rotateLeft(p)
			x = t.root
		} else {
			w := n[p].left
			if n[w].red {
				n[w].red, n[p].red = false, true
				t.rotateRight(p)
				w = n[p].left
			}
			if !n[n[w].right].red && !n[n[w].left].red {
				n[w].red = true
				x = p
				continue
			}
			if !n[n[w].left].red {
				n[n[w].right].red, n[w].red = false, true
				t.rotateLeft(w)
				w = n[p].left
			}
			n[w].red, n[p].red = n[p].red, false
			n[n[w].left].red = false
			t.rotateRight(p)
			x = t.root
		}
	}
	n[x].red = false
}

// === Invariants ===

// Check verifies red-black shape, key order, cached counters, the
// coordinate index, and the symmetry of every neighbor link.
func (t *Tree) Check() error {
	if t.nodes[0].red {
		return fmt.Errorf("sentinel is red")
	}
	if t.root != 0 {
		if t.nodes[t.root].red {
			return fmt.Errorf("root %d is red", t.root)
		}
		if t.nodes[t.root].parent != 0 {
			return fmt.Errorf("root %d has parent %d", t.root, t.nodes[t.root].parent)
		}
	}
	count, infected := 0, 0
	prev := int32(0)
	var walkErr error
	var walk func(x int32) int
	walk = func(x int32) int {
		if x == 0 || walkErr != nil {
			return 1
		}
		n := &t.nodes[x]
		if !n.live {
			walkErr = fmt.Errorf("node %d reachable but not live", x)
			return 0
		}
		if n.red && (t.nodes[n.left].red || t.nodes[n.right].red) {
			walkErr = fmt.Errorf("red node %d has a red child", x)
			return 0
		}
		for _, c := range []int32{n.left, n.right} {
			if c != 0 && t.nodes[c].parent != x {
				walkErr = fmt.Errorf("node %d child %d has parent %d", x, c, t.nodes[c].parent)
				return 0
			}
		}
		lh := walk(n.left)
		if walkErr != nil {
			return 0
		}
		if prev != 0 && !t.less(prev, x) {
			walkErr = fmt.Errorf("node %d out of order after %d", x, prev)
			return 0
		}
		if _, key := n.site.MinClock(); n.state != n.site.State || key != n.key {
			walkErr = fmt.Errorf("node %d at %v has stale key", x, n.coord)
			return 0
		}
		prev = x
		count++
		if n.state == Infected {
			infected++
		}
		rh := walk(n.right)
		if walkErr != nil {
			return 0
		}
		if lh != rh {
			walkErr = fmt.Errorf("node %d black heights differ: %d vs %d", x, lh, rh)
			return 0
		}
		if n.red {
			return lh
		}
		return lh + 1
	}
	walk(t.root)
	if walkErr != nil {
		return walkErr
	}
	if count != t.live {
		return fmt.Errorf("tree holds %d nodes, live counter is %d", count, t.live)
	}
	if infected != t.infected {
		return fmt.Errorf("tree holds %d infected nodes, counter is %d", infected, t.infected)
	}
	if len(t.index) != t.live {
		return fmt.Errorf("index holds %d coordinates for %d nodes", len(t.index), t.live)
	}

	seen := make(map[Handle]Coord, len(t.index))
	for c, h := range t.index {
		if !t.valid(h) {
			return fmt.Errorf("coordinate %v maps to stale handle %v", c, h)
		}
		if other, dup := seen[h]; dup {
			return fmt.Errorf("coordinates %v and %v share entry %v", other, c, h)
		}
		seen[h] = c
		n := &t.nodes[h.Index]
		if n.coord != c {
			return fmt.Errorf("coordinate %v maps to entry holding %v", c, n.coord)
		}
		for d, dir := range t.topo.Directions {
			want, exists := t.index[c.Add(dir.Offset)]
			nb := n.links[d]
			if !exists {
				if !nb.IsNil() {
					return fmt.Errorf("%v links %s to %v but no site exists there", c, dir.Name, nb)
				}
				continue
			}
			if nb != want {
				return fmt.Errorf("%v %s link is %v, want %v", c, dir.Name, nb, want)
			}
			if back := t.nodes[nb.Index].links[dir.Opposite]; back != h {
				return fmt.Errorf("%v %s neighbor points back at %v, want %v", c, dir.Name, back, h)
			}
		}
	}
	return nil
}
