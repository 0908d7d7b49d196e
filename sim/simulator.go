// sim/simulator.go
package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/latticesim/contact-sim/sim/trace"
)

// Status is the driver's state machine position.
type Status int

const (
	StatusRunning Status = iota
	// StatusExtinguished: no site is infected. Irreversible.
	StatusExtinguished
	// StatusSurvived: the next event lies at or past the horizon.
	StatusSurvived
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusExtinguished:
		return "extinguished"
	case StatusSurvived:
		return "survived"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Simulator is one replica of the contact process: the lattice, its event
// scheduler, the replica's random stream and the simulation clock.
//
// Not safe for concurrent use; replicas share nothing, so run one per goroutine.
type Simulator struct {
	topo     *Topology
	sched    Scheduler
	src      Source
	clock    float64
	steps    int64
	status   Status
	maxSites int
	recorder *trace.EventTrace
}

// New validates cfg, builds the scheduler and infects the origin at time 0.
// Invalid rates fail with ErrInvalidParameter.
func New(cfg Config) (*Simulator, error) {
	topo, err := NewTopology(cfg.Topology, cfg.Lambda, cfg.Alpha)
	if err != nil {
		return nil, err
	}
	sched, err := NewScheduler(cfg.Scheduler, topo)
	if err != nil {
		return nil, err
	}
	if cfg.MaxSites < 0 {
		return nil, fmt.Errorf("max sites %d must be >= 0: %w", cfg.MaxSites, ErrInvalidParameter)
	}
	src := cfg.Source
	if src == nil {
		src = NewPartitionedRNG(NewSimulationKey(cfg.Seed)).ForSubsystem(SubsystemClocks)
	}

	origin, err := NewSite(topo, src, 0)
	if err != nil {
		return nil, fmt.Errorf("origin site: %w", err)
	}
	sched.Insert(Coord{}, origin)

	return &Simulator{
		topo:     topo,
		sched:    sched,
		src:      src,
		maxSites: cfg.MaxSites,
		recorder: cfg.Recorder,
	}, nil
}

// Run advances the replica until extinction or until the next event would
// fall at or past horizon. It returns true iff the process went extinct
// strictly before horizon.
//
// The event that would cross the horizon is left pending rather than
// applied, so InfectedCount afterwards is the exact count at the horizon and
// not the count after one overshooting event.
//
// A horizon <= 0 returns false without performing any event. Run may be
// called again with a later horizon to continue the same replica; once the
// replica is extinct, a later call reports whether the extinction time lies
// before its horizon.
func (s *Simulator) Run(horizon float64) (bool, error) {
	if math.IsNaN(horizon) {
		return false, fmt.Errorf("horizon is NaN: %w", ErrInvalidParameter)
	}
	if horizon <= 0 {
		return false, nil
	}
	if s.status == StatusExtinguished {
		return s.clock < horizon, nil
	}
	s.status = StatusRunning
	for s.status == StatusRunning {
		if _, _, err := s.advance(horizon); err != nil {
			return false, err
		}
	}
	logrus.Debugf("[t=%.4f] replica %s after %d steps, %d infected of %d sites",
		s.clock, s.status, s.steps, s.sched.InfectedCount(), s.sched.Len())
	return s.status == StatusExtinguished, nil
}

// Step applies exactly one event regardless of any horizon. It returns false
// once the process is extinct.
func (s *Simulator) Step() (Event, bool, error) {
	if s.status == StatusExtinguished {
		return Event{}, false, nil
	}
	s.status = StatusRunning
	return s.advance(math.Inf(1))
}

// advance applies the globally earliest event if it lies before horizon.
func (s *Simulator) advance(horizon float64) (Event, bool, error) {
	h, ok := s.sched.Min()
	if !ok {
		s.status = StatusExtinguished
		return Event{}, false, nil
	}
	id, at := s.sched.Site(h).MinClock()
	if at >= horizon {
		s.status = StatusSurvived
		return Event{}, false, nil
	}
	if at < s.clock {
		invariantf("advance", "event at %v precedes clock %v", at, s.clock)
	}
	s.clock = at

	origin := s.sched.Coord(h)
	ev := Event{Step: s.steps + 1, Time: at, Site: origin, Clock: id, Target: origin}

	if !id.IsHeal() {
		dir := int(id)
		ev.Target = s.topo.Neighbor(origin, dir)
		if nb, exists := s.sched.Neighbor(h, dir); exists {
			if _, err := s.sched.Relocate(nb, func(site *Site) error {
				return site.Reinfect(s.topo, s.src, at)
			}); err != nil {
				return ev, false, fmt.Errorf("reinfect %v at t=%v: %w", ev.Target, at, err)
			}
		} else {
			if s.maxSites > 0 && s.sched.Len() >= s.maxSites {
				return ev, false, fmt.Errorf("materializing %v at t=%v with %d sites: %w", ev.Target, at, s.sched.Len(), ErrLatticeExhausted)
			}
			if _, err := s.sched.GetOrCreate(ev.Target, func() (Site, error) {
				return NewSite(s.topo, s.src, at)
			}); err != nil {
				return ev, false, fmt.Errorf("create %v at t=%v: %w", ev.Target, at, err)
			}
			ev.Spawned = true
		}
	}

	if _, err := s.sched.Relocate(h, func(site *Site) error {
		_, err := site.ApplySelfEvent(s.topo, s.src)
		return err
	}); err != nil {
		return ev, false, fmt.Errorf("apply event at %v t=%v: %w", origin, at, err)
	}

	s.steps++
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.Tracef("[t=%.6f] %s", at, ev)
	}
	if s.recorder.Enabled() {
		s.recorder.Record(ev.record(s.topo))
	}
	return ev, true, nil
}

// InfectedCount is the number of currently infected sites.
func (s *Simulator) InfectedCount() int {
	return s.sched.InfectedCount()
}

// SiteCount is the number of sites ever materialized.
func (s *Simulator) SiteCount() int {
	return s.sched.Len()
}

// Clock is the time of the most recently applied event.
func (s *Simulator) Clock() float64 {
	return s.clock
}

// Steps is the number of events applied so far.
func (s *Simulator) Steps() int64 {
	return s.steps
}

// Status reports where the replica's state machine stands.
func (s *Simulator) Status() Status {
	return s.status
}

// Topology returns the replica's topology descriptor.
func (s *Simulator) Topology() *Topology {
	return s.topo
}

// Check verifies the scheduler's internal invariants.
func (s *Simulator) Check() error {
	return s.sched.Check()
}
