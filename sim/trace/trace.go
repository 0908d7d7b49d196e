package trace

// TraceLevel controls the verbosity of event tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents captures every applied event.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelEvents: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	Limit int // maximum records kept; 0 = unlimited
}

// EventTrace collects event records during a replica.
type EventTrace struct {
	Config  TraceConfig
	Events  []EventRecord
	Dropped int64 // records discarded once Limit was reached
}

// NewEventTrace creates an EventTrace ready for recording.
func NewEventTrace(config TraceConfig) *EventTrace {
	return &EventTrace{
		Config: config,
		Events: make([]EventRecord, 0),
	}
}

// Enabled reports whether Record keeps anything. Safe on a nil trace.
func (et *EventTrace) Enabled() bool {
	return et != nil && et.Config.Level == TraceLevelEvents
}

// Record appends an event record, honoring the level and limit.
func (et *EventTrace) Record(record EventRecord) {
	if !et.Enabled() {
		return
	}
	if et.Config.Limit > 0 && len(et.Events) >= et.Config.Limit {
		et.Dropped++
		return
	}
	et.Events = append(et.Events, record)
}
