// Package harness runs scripted show scenarios against a real engine.
//
// A scenario names a rundown, a starting time of day and a list of steps.
// Every step either advances the fake wall clock (followed by one engine
// tick) or dispatches a command, or both. The harness records a trace of
// what happened and evaluates assertions against it and against the final
// published snapshot.
//
// # Scenario Format
//
//	name: roll_follows_clock
//	description: "Roll picks the cue that covers the wall clock"
//	rundown: rundown.yaml
//	clock: "10:01:05"
//	aux_timers: 2
//	steps:
//	  - command: roll
//	    expect:
//	      payload: success
//	  - advance: 1m
//	  - command: start
//	    payload: { index: 0 }
//	    expect:
//	      error: "Event index out of range 0"
//	assertions:
//	  - type: state
//	    key: eventNow.id
//	    expect: c
//	  - type: trace_count
//	    command: roll
//	    count: 1
//
// The rundown path is resolved relative to the scenario file.
//
// # Assertion Types
//
//   - state: the snapshot value at a dotted key path contains expect
//   - trace_contains: a command with a matching payload was dispatched
//   - trace_order: commands were dispatched in the listed order
//   - trace_count: a command was dispatched exactly count times
//
// # Determinism
//
// The engine runs on a fake clock pinned to a fixed date and receives ticks
// only from advance steps, so the trace and the final state are identical
// across runs. RunWithGolden compares the trace against
// testdata/golden/<name>.golden.
package harness
