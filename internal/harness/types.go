package harness

// Trace event types.
const (
	EventCommand = "command"
	EventTick    = "tick"
)

// TraceEvent is one step as the engine saw it. Payload and Result are
// normalised to their JSON form.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Type    string `json:"type"`
	Clock   string `json:"clock"`
	Command string `json:"command,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// State is the final published snapshot in its JSON form.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addEvent(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
