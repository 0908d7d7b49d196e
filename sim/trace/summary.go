package trace

// TraceSummary aggregates statistics from an EventTrace.
type TraceSummary struct {
	TotalEvents    int
	Heals          int
	Infections     int
	Spawns         int
	LastClock      float64
	DirectionCount map[string]int // direction name → infection events
	MinX, MaxX     int            // lattice extent touched by recorded events
	MinY, MaxY     int
}

// Summarize computes aggregate statistics from an EventTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(et *EventTrace) *TraceSummary {
	summary := &TraceSummary{
		DirectionCount: make(map[string]int),
	}
	if et == nil || len(et.Events) == 0 {
		return summary
	}

	first := et.Events[0]
	summary.MinX, summary.MaxX = first.X, first.X
	summary.MinY, summary.MaxY = first.Y, first.Y
	for _, e := range et.Events {
		summary.TotalEvents++
		if e.Clock > summary.LastClock {
			summary.LastClock = e.Clock
		}
		summary.extend(e.X, e.Y)
		if e.IsHeal() {
			summary.Heals++
			continue
		}
		summary.Infections++
		summary.DirectionCount[e.Kind]++
		summary.extend(e.TargetX, e.TargetY)
		if e.Spawned {
			summary.Spawns++
		}
	}
	return summary
}

func (s *TraceSummary) extend(x, y int) {
	s.MinX = min(s.MinX, x)
	s.MaxX = max(s.MaxX, x)
	s.MinY = min(s.MinY, y)
	s.MaxY = max(s.MaxY, y)
}
