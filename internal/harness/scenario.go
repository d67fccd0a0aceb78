package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/showrunner/internal/rundown"
)

// Scenario is one scripted run of the engine.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Rundown is the path of the rundown document to load. Relative paths
	// are resolved against the scenario file by LoadScenario.
	Rundown string `yaml:"rundown"`

	// Clock is the wall time of day the run starts at ("10:00:00").
	Clock string `yaml:"clock"`

	// AuxTimers is the number of aux timers. Zero keeps the engine default.
	AuxTimers int `yaml:"aux_timers,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step advances the clock, dispatches a command, or both. The clock moves
// first.
type Step struct {
	// Advance is a Go duration ("1m30s"). The engine ticks once afterwards.
	Advance string `yaml:"advance,omitempty"`

	Command string `yaml:"command,omitempty"`
	Payload any    `yaml:"payload,omitempty"`

	// Expect checks the reply. Without it any outcome is accepted.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the reply to a command. Error, when set, must equal the
// error message exactly. Payload is matched as a subset.
type Expect struct {
	Payload any    `yaml:"payload,omitempty"`
	Error   string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final snapshot.
type Assertion struct {
	Type string `yaml:"type"`

	// Key is a dotted path into the snapshot (state).
	Key string `yaml:"key,omitempty"`

	// Expect is the expected value at Key, matched as a subset (state).
	Expect any `yaml:"expect,omitempty"`

	// Command names the command to look for (trace_contains, trace_count).
	Command string `yaml:"command,omitempty"`

	// Payload is matched as a subset of the dispatched payload
	// (trace_contains).
	Payload any `yaml:"payload,omitempty"`

	// Commands is the expected order (trace_order).
	Commands []string `yaml:"commands,omitempty"`

	// Count is the expected number of dispatches (trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertState         = "state"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads a scenario file. Unknown fields are rejected so typos
// surface as errors instead of silently ignored settings.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Rundown != "" && !filepath.IsAbs(s.Rundown) {
		s.Rundown = filepath.Join(filepath.Dir(path), s.Rundown)
	}
	return s, nil
}

// ParseScenario decodes and validates a scenario document. The rundown path
// is left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Rundown == "" {
		return fmt.Errorf("rundown is required")
	}
	if _, err := rundown.ParseMillis(s.Clock); err != nil {
		return fmt.Errorf("clock: %w", err)
	}
	if s.AuxTimers < 0 {
		return fmt.Errorf("aux_timers must not be negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i+1, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Advance == "" && step.Command == "" {
		return fmt.Errorf("advance or command is required")
	}
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("advance must not be negative")
		}
	}
	if step.Expect != nil && step.Command == "" {
		return fmt.Errorf("expect requires a command")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertState:
		if a.Key == "" {
			return fmt.Errorf("state assertion requires key")
		}
	case AssertTraceContains:
		if a.Command == "" {
			return fmt.Errorf("trace_contains assertion requires command")
		}
	case AssertTraceOrder:
		if len(a.Commands) < 2 {
			return fmt.Errorf("trace_order assertion requires at least 2 commands")
		}
	case AssertTraceCount:
		if a.Command == "" {
			return fmt.Errorf("trace_count assertion requires command")
		}
		if a.Count < 0 {
			return fmt.Errorf("trace_count count must not be negative")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
