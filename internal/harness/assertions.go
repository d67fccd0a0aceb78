package harness

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface. The trace is listed for context.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			if ev.Type == EventCommand {
				fmt.Fprintf(&buf, "  [%d] %s %s %v\n", ev.Seq, ev.Clock, ev.Command, ev.Payload)
			} else {
				fmt.Fprintf(&buf, "  [%d] %s %s\n", ev.Seq, ev.Clock, ev.Type)
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and returns
// one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i+1, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertState:
		return assertState(result.State, a)
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertState looks up a dotted key path in the final snapshot and checks
// that it contains the expected value.
func assertState(state map[string]any, a Assertion) error {
	actual, ok := lookup(state, a.Key)
	if !ok {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("key %s to exist", a.Key),
			Actual:   "not present in snapshot",
		}
	}
	want, err := plain(a.Expect)
	if err != nil {
		return fmt.Errorf("expected value: %w", err)
	}
	if !contains(actual, want) {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s = %v", a.Key, want),
			Actual:   fmt.Sprintf("%s = %v", a.Key, actual),
		}
	}
	return nil
}

// assertTraceContains checks that a command with a matching payload was
// dispatched.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	want, err := plain(a.Payload)
	if err != nil {
		return fmt.Errorf("expected payload: %w", err)
	}
	for _, ev := range trace {
		if isCommand(ev, a.Command) && (want == nil || contains(ev.Payload, want)) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("command %s with payload %v", a.Command, want),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first dispatch of each command happens in
// the listed order. Other events may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make([]int, len(a.Commands))
	for i, name := range a.Commands {
		for _, ev := range trace {
			if isCommand(ev, name) {
				positions[i] = ev.Seq
				break
			}
		}
		if positions[i] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all commands present: %v", a.Commands),
				Actual:   fmt.Sprintf("missing command: %s", name),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(positions); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("commands in order: %v", a.Commands),
				Actual: fmt.Sprintf("%s (seq %d) should be before %s (seq %d)",
					a.Commands[i-1], positions[i-1], a.Commands[i], positions[i]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that a command was dispatched exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if isCommand(ev, a.Command) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Command),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// isCommand matches command names the way the dispatcher does.
func isCommand(ev TraceEvent, name string) bool {
	return ev.Type == EventCommand &&
		strings.EqualFold(strings.TrimSpace(ev.Command), strings.TrimSpace(name))
}

// lookup walks a dotted path through nested objects. Numeric segments index
// into arrays.
func lookup(v any, path string) (any, bool) {
	for _, seg := range strings.Split(path, ".") {
		switch t := v.(type) {
		case map[string]any:
			next, ok := t[seg]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(t) {
				return nil, false
			}
			v = t[i]
		default:
			return nil, false
		}
	}
	return v, true
}

// contains reports whether actual matches expected. Objects match when every
// expected field matches; extra actual fields are ignored. Everything else
// must be equal.
func contains(actual, expected any) bool {
	want, ok := expected.(map[string]any)
	if !ok {
		return reflect.DeepEqual(actual, expected)
	}
	got, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for k, w := range want {
		g, exists := got[k]
		if !exists || !contains(g, w) {
			return false
		}
	}
	return true
}
