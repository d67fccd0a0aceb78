package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Type: EventCommand, Clock: "10:00:00.000", Command: "start", Payload: map[string]any{"index": float64(1)}, Result: "success"},
		{Seq: 2, Type: EventTick, Clock: "10:00:01.000"},
		{Seq: 3, Type: EventCommand, Clock: "10:00:01.000", Command: "ADDTIME", Payload: map[string]any{"add": float64(30)}, Result: "success"},
		{Seq: 4, Type: EventCommand, Clock: "10:00:01.000", Command: "pause", Error: "nope"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Command: "start"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Command: "start", Payload: map[string]any{"index": 1}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Command: "addtime"}), "names match case-insensitively")

	err := assertTraceContains(trace, Assertion{Command: "start", Payload: map[string]any{"index": 2}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), "[1] 10:00:00.000 start")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Commands: []string{"start", "addtime", "pause"}}))

	err := assertTraceOrder(trace, Assertion{Commands: []string{"pause", "start"}})
	assert.ErrorContains(t, err, "pause (seq 4) should be before start (seq 1)")

	err = assertTraceOrder(trace, Assertion{Commands: []string{"start", "roll"}})
	assert.ErrorContains(t, err, "missing command: roll")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Command: "start", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Command: "roll", Count: 0}))
	assert.ErrorContains(t, assertTraceCount(trace, Assertion{Command: "start", Count: 2}), "1 occurrences")
}

func TestAssertState(t *testing.T) {
	state := map[string]any{
		"timer":    map[string]any{"phase": "play", "duration": float64(60000)},
		"eventNow": nil,
		"onAir":    true,
		"list":     []any{"x", "y"},
	}

	tests := []struct {
		name   string
		key    string
		expect any
		ok     bool
	}{
		{"nested scalar", "timer.phase", "play", true},
		{"number from yaml int", "timer.duration", 60000, true},
		{"subset object", "timer", map[string]any{"phase": "play"}, true},
		{"null", "eventNow", nil, true},
		{"bool", "onAir", true, true},
		{"array index", "list.1", "y", true},
		{"wrong value", "timer.phase", "stop", false},
		{"missing key", "timer.nope", "x", false},
		{"array out of range", "list.5", "y", false},
		{"object against scalar", "onAir", map[string]any{"x": 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertState(state, Assertion{Type: AssertState, Key: tt.key, Expect: tt.expect})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEvaluateAssertions_NumbersFailures(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Command: "start", Count: 1},
		{Type: AssertTraceCount, Command: "roll", Count: 1},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "assertion 2:")
}
