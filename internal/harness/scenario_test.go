package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario"
rundown: show.yaml
clock: "10:00:00"
aux_timers: 2
steps:
  - command: start
    payload: { index: 1 }
    expect:
      payload: success
  - advance: 30s
assertions:
  - type: state
    key: timer.phase
    expect: play
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", s.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "show.yaml"), s.Rundown)
	assert.Equal(t, 2, s.AuxTimers)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, "start", s.Steps[0].Command)
	assert.Equal(t, map[string]any{"index": 1}, s.Steps[0].Payload)
	assert.Equal(t, "success", s.Steps[0].Expect.Payload)
	assert.Equal(t, "30s", s.Steps[1].Advance)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertState, s.Assertions[0].Type)
}

func TestLoadScenario_AbsoluteRundownKept(t *testing.T) {
	path := writeScenario(t, "name: x\nrundown: /shows/main.yaml\nsteps:\n  - command: roll\n")

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "/shows/main.yaml", s.Rundown)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte("name: x\nrundown: r.yaml\nstep:\n  - command: roll\n"))
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing name", "rundown: r.yaml\nsteps: [{command: roll}]", "name is required"},
		{"missing rundown", "name: x\nsteps: [{command: roll}]", "rundown is required"},
		{"bad clock", "name: x\nrundown: r.yaml\nclock: noon\nsteps: [{command: roll}]", "clock"},
		{"no steps", "name: x\nrundown: r.yaml", "at least one step"},
		{"empty step", "name: x\nrundown: r.yaml\nsteps: [{}]", "step 1: advance or command is required"},
		{"bad advance", "name: x\nrundown: r.yaml\nsteps: [{advance: soon}]", "step 1: advance"},
		{"negative advance", "name: x\nrundown: r.yaml\nsteps: [{advance: -1s}]", "must not be negative"},
		{"expect without command", "name: x\nrundown: r.yaml\nsteps: [{advance: 1s, expect: {error: x}}]", "expect requires a command"},
		{"unknown assertion", "name: x\nrundown: r.yaml\nsteps: [{command: roll}]\nassertions: [{type: magic}]", `unknown assertion type "magic"`},
		{"state without key", "name: x\nrundown: r.yaml\nsteps: [{command: roll}]\nassertions: [{type: state}]", "requires key"},
		{"short order", "name: x\nrundown: r.yaml\nsteps: [{command: roll}]\nassertions: [{type: trace_order, commands: [roll]}]", "at least 2 commands"},
		{"count without command", "name: x\nrundown: r.yaml\nsteps: [{command: roll}]\nassertions: [{type: trace_count, count: 1}]", "requires command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		_, err := LoadScenario(p)
		assert.NoError(t, err, p)
	}
}
