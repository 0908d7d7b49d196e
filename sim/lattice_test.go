package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func site(state State, heal float64, infect ...float64) Site {
	return Site{State: state, Heal: heal, Infect: infect}
}

func TestLattice_GetOrCreate_CreatesOnce(t *testing.T) {
	l := NewLattice(mustTopology(t, TopologyLine, 1, 0))
	calls := 0
	create := func() (Site, error) {
		calls++
		return site(Infected, 1, 2, 3), nil
	}

	h1, err := l.GetOrCreate(Coord{X: 4}, create)
	require.NoError(t, err)
	h2, err := l.GetOrCreate(Coord{X: 4}, create)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, l.Len())

	boom := errors.New("boom")
	_, err = l.GetOrCreate(Coord{X: 5}, func() (Site, error) { return Site{}, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, l.Len())
}

func TestLattice_Min_SkipsHealthyAndPrefersEarliestOnTies(t *testing.T) {
	l := NewLattice(mustTopology(t, TopologyLine, 1, 0))
	l.Insert(Coord{X: 0}, site(Healthy, 0.1, 0.1, 0.1))
	first := l.Insert(Coord{X: 1}, site(Infected, 2, 1, 5))
	l.Insert(Coord{X: 2}, site(Infected, 1, 3, 3))

	h, ok := l.Min()
	require.True(t, ok)
	assert.Equal(t, first, h)
	assert.Equal(t, Coord{X: 1}, l.Coord(h))
	assert.Equal(t, 2, l.InfectedCount())
	assert.NoError(t, l.Check())
}

func TestLattice_Min_NoneInfected(t *testing.T) {
	l := NewLattice(mustTopology(t, TopologyLine, 1, 0))
	_, ok := l.Min()
	assert.False(t, ok)
	l.Insert(Coord{}, site(Healthy, 1, 1, 1))
	_, ok = l.Min()
	assert.False(t, ok)
	assert.Equal(t, 0, l.InfectedCount())
}

func TestLattice_NeighborAndRelocate(t *testing.T) {
	topo := mustTopology(t, TopologyGrid, 1, 0.5)
	l := NewLattice(topo)
	origin := l.Insert(Coord{}, site(Infected, 1, 2, 2, 2, 2))
	up := l.Insert(Coord{Y: 1}, site(Infected, 1, 2, 2, 2, 2))

	nb, ok := l.Neighbor(origin, 2)
	require.True(t, ok)
	assert.Equal(t, up, nb)
	_, ok = l.Neighbor(origin, 0)
	assert.False(t, ok)

	h, err := l.Relocate(up, func(s *Site) error {
		s.State = Healthy
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, up, h, "lattice handles never move")
	assert.Equal(t, Healthy, l.Site(up).State)
	assert.Equal(t, 1, l.InfectedCount())
}

func TestLattice_InsertTwice_Panics(t *testing.T) {
	l := NewLattice(mustTopology(t, TopologyLine, 1, 0))
	l.Insert(Coord{}, site(Infected, 1, 1, 1))
	assertInvariantPanic(t, func() { l.Insert(Coord{}, site(Infected, 1, 1, 1)) })
	assertInvariantPanic(t, func() { l.Site(Handle{Index: 9}) })
}

// assertInvariantPanic fails unless fn panics with an *InvariantError.
func assertInvariantPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic")
		_, ok := r.(*InvariantError)
		assert.True(t, ok, "panic value %T is not *InvariantError", r)
	}()
	fn()
}
