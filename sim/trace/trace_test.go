package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventTrace_Record_AppendsWhenEnabled(t *testing.T) {
	// GIVEN a trace recording events
	et := NewEventTrace(TraceConfig{Level: TraceLevelEvents})

	// WHEN a record is added
	et.Record(EventRecord{Step: 1, Clock: 0.25, Kind: KindHeal})

	// THEN it is kept
	assert.Len(t, et.Events, 1)
	assert.True(t, et.Events[0].IsHeal())
}

func TestEventTrace_Record_NoneLevelKeepsNothing(t *testing.T) {
	et := NewEventTrace(TraceConfig{Level: TraceLevelNone})
	et.Record(EventRecord{Step: 1})
	assert.Empty(t, et.Events)
	assert.False(t, et.Enabled())
}

func TestEventTrace_NilIsDisabled(t *testing.T) {
	var et *EventTrace
	assert.False(t, et.Enabled())
	assert.NotPanics(t, func() { et.Record(EventRecord{}) })
}

func TestEventTrace_Record_HonorsLimit(t *testing.T) {
	et := NewEventTrace(TraceConfig{Level: TraceLevelEvents, Limit: 2})
	for i := int64(1); i <= 5; i++ {
		et.Record(EventRecord{Step: i})
	}
	assert.Len(t, et.Events, 2)
	assert.Equal(t, int64(2), et.Events[1].Step)
	assert.Equal(t, int64(3), et.Dropped)
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		want  bool
	}{
		{"none", true},
		{"events", true},
		{"", true},
		{"decisions", false},
		{"EVENTS", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidTraceLevel(tt.level), "level %q", tt.level)
	}
}
