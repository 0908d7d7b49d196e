package sim

import (
	"fmt"

	"github.com/latticesim/contact-sim/sim/trace"
)

// Event is one transition applied by the driver: the originating site's
// minimal clock fired at Time.
type Event struct {
	Step    int64
	Time    float64
	Site    Coord
	Clock   ClockID
	Target  Coord // infection target; equals Site for recoveries
	Spawned bool  // the target had no prior record and was materialized
}

func (e Event) String() string {
	if e.Clock.IsHeal() {
		return fmt.Sprintf("step %d t=%.6f heal %v", e.Step, e.Time, e.Site)
	}
	return fmt.Sprintf("step %d t=%.6f infect %v -> %v (spawned=%t)", e.Step, e.Time, e.Site, e.Target, e.Spawned)
}

// record converts the event into its trace form.
func (e Event) record(topo *Topology) trace.EventRecord {
	kind := trace.KindHeal
	if !e.Clock.IsHeal() {
		kind = topo.Directions[e.Clock].Name
	}
	return trace.EventRecord{
		Step:    e.Step,
		Clock:   e.Time,
		X:       e.Site.X,
		Y:       e.Site.Y,
		Kind:    kind,
		TargetX: e.Target.X,
		TargetY: e.Target.Y,
		Spawned: e.Spawned,
	}
}
