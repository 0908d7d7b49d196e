package sim

import (
	"fmt"
	"math"
)

// State is the epidemic state of a site. Infected sorts before Healthy.
type State uint8

const (
	Infected State = iota
	Healthy
)

func (s State) String() string {
	switch s {
	case Infected:
		return "infected"
	case Healthy:
		return "healthy"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ClockID names one clock of a site: HealClock, or the index of an
// infection direction in Topology.Directions.
type ClockID int

// HealClock is the recovery clock. It wins ties against every direction.
const HealClock ClockID = -1

// IsHeal reports whether the clock is the recovery clock.
func (c ClockID) IsHeal() bool {
	return c == HealClock
}

// Site is the state of one materialized lattice position.
//
// Every clock holds an absolute simulation time. Clocks only move forward;
// after any update each one is at or past the time the site was last touched.
type Site struct {
	State  State
	Heal   float64
	Infect []float64 // one per Topology.Directions entry
}

// NewSite materializes an infected site at time t with every clock sampled
// as the first arrival strictly after t. In a recovery-only topology the
// infection clocks are +Inf.
func NewSite(topo *Topology, src Source, t float64) (Site, error) {
	heal, err := NextArrival(src, t, HealRate)
	if err != nil {
		return Site{}, fmt.Errorf("heal clock: %w", err)
	}
	s := Site{
		State:  Infected,
		Heal:   heal,
		Infect: make([]float64, topo.Degree()),
	}
	for i, d := range topo.Directions {
		if topo.RecoveryOnly() {
			s.Infect[i] = math.Inf(1)
			continue
		}
		if s.Infect[i], err = NextArrival(src, t, d.Rate); err != nil {
			return Site{}, fmt.Errorf("%s clock: %w", d.Name, err)
		}
	}
	return s, nil
}

// MinClock returns the smallest clock and which one it is. Ties go to the
// heal clock, then to directions in declaration order.
func (s *Site) MinClock() (ClockID, float64) {
	id, best := HealClock, s.Heal
	for i, v := range s.Infect {
		if v < best {
			id, best = ClockID(i), v
		}
	}
	return id, best
}

// ApplySelfEvent fires the site's minimal clock and returns which one fired.
//
// Recovery moves the site to Healthy, pushes every infection clock to at or
// past the recovery time, then draws the next recovery time. An infection
// clock simply draws its next arrival; the state does not change.
func (s *Site) ApplySelfEvent(topo *Topology, src Source) (ClockID, error) {
	id, at := s.MinClock()
	if !id.IsHeal() {
		d := topo.Directions[id]
		next, err := NextArrival(src, at, d.Rate)
		if err != nil {
			return id, fmt.Errorf("%s clock: %w", d.Name, err)
		}
		s.Infect[id] = next
		return id, nil
	}

	if !topo.RecoveryOnly() {
		for i, d := range topo.Directions {
			v, err := AdvanceForward(src, s.Infect[i], d.Rate, s.Heal)
			if err != nil {
				return id, fmt.Errorf("%s clock: %w", d.Name, err)
			}
			s.Infect[i] = v
		}
	}
	next, err := NextArrival(src, s.Heal, HealRate)
	if err != nil {
		return id, fmt.Errorf("heal clock: %w", err)
	}
	s.Heal = next
	s.State = Healthy
	return id, nil
}

// Reinfect forces the site to Infected and advances every clock to at or
// past t. Used when an infection targets an already-materialized site.
func (s *Site) Reinfect(topo *Topology, src Source, t float64) error {
	s.State = Infected
	heal, err := AdvanceForward(src, s.Heal, HealRate, t)
	if err != nil {
		return fmt.Errorf("heal clock: %w", err)
	}
	s.Heal = heal
	if topo.RecoveryOnly() {
		return nil
	}
	for i, d := range topo.Directions {
		v, err := AdvanceForward(src, s.Infect[i], d.Rate, t)
		if err != nil {
			return fmt.Errorf("%s clock: %w", d.Name, err)
		}
		s.Infect[i] = v
	}
	return nil
}
