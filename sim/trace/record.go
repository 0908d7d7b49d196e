// Package trace provides per-replica event recording for contact-process runs.
// It has no dependencies on sim/ and stores plain data types.
package trace

// Event kinds. Infection records carry the direction name instead.
const (
	KindHeal = "heal"
)

// EventRecord captures one applied transition of a replica.
type EventRecord struct {
	Step    int64
	Clock   float64 // absolute simulation time of the event
	X, Y    int     // originating site
	Kind    string  // KindHeal or the infection direction name
	TargetX int     // infection target; equals X, Y for heal events
	TargetY int
	Spawned bool // the target was materialized by this event
}

// IsHeal reports whether the record is a recovery.
func (r EventRecord) IsHeal() bool {
	return r.Kind == KindHeal
}
