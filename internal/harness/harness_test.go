package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		t.Run(strings.TrimSuffix(filepath.Base(p), ".yaml"), func(t *testing.T) {
			s, err := LoadScenario(p)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s := &Scenario{
		Name:    "failing",
		Rundown: "testdata/rundown.yaml",
		Clock:   "10:00:00",
		Steps: []Step{
			{Command: "start", Payload: map[string]any{"index": 0}, Expect: &Expect{Payload: "success"}},
			{Command: "start", Payload: map[string]any{"index": 1}, Expect: &Expect{Error: "boom"}},
		},
		Assertions: []Assertion{
			{Type: AssertState, Key: "eventNow.id", Expect: "c"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], `step 1 (start): unexpected error "Event index out of range 0"`)
	assert.Contains(t, result.Errors[1], "step 1 (start): expected payload success")
	assert.Contains(t, result.Errors[2], `step 2 (start): expected error "boom", got success`)
	assert.Contains(t, result.Errors[3], "assertion 1:")
}

func TestRun_TraceRecordsTicksAndCommands(t *testing.T) {
	s := &Scenario{
		Name:    "trace",
		Rundown: "testdata/rundown.yaml",
		Clock:   "10:00:00",
		Steps: []Step{
			{Command: "start", Payload: map[string]any{"id": "a"}},
			{Advance: "1500ms", Command: "pause"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 3)

	assert.Equal(t, TraceEvent{
		Seq: 1, Type: EventCommand, Clock: "10:00:00.000",
		Command: "start", Payload: map[string]any{"id": "a"}, Result: "success",
	}, result.Trace[0])
	assert.Equal(t, TraceEvent{Seq: 2, Type: EventTick, Clock: "10:00:01.500"}, result.Trace[1])
	assert.Equal(t, "pause", result.Trace[2].Command)

	timer, ok := result.State["timer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pause", timer["phase"])
	assert.Equal(t, float64(1500), timer["elapsed"])
}

func TestRun_MissingRundown(t *testing.T) {
	_, err := Run(&Scenario{Name: "x", Rundown: "testdata/nope.yaml", Steps: []Step{{Command: "roll"}}})
	assert.ErrorContains(t, err, "failed to load rundown")
}

func TestPlain_ConvertsYAMLMaps(t *testing.T) {
	got, err := plain(map[any]any{1: "start", "nested": []any{map[any]any{true: 2}}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"1":      "start",
		"nested": []any{map[string]any{"true": float64(2)}},
	}, got)
}
