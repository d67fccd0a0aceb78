package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/showrunner/internal/auxtimer"
	"github.com/roach88/showrunner/internal/clock"
	"github.com/roach88/showrunner/internal/dispatch"
	"github.com/roach88/showrunner/internal/engine"
	"github.com/roach88/showrunner/internal/rundown"
	"github.com/roach88/showrunner/internal/testutil"
)

// stepTimeout bounds every interaction with the engine goroutine.
const stepTimeout = 5 * time.Second

// day is the fixed date every scenario runs on.
var day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

// Harness drives one engine through a scenario.
type Harness struct {
	engine *engine.Engine
	clock  *testutil.FakeClock
	ticks  chan time.Time
	result *Result
}

// Run executes s against a fresh engine and returns the result.
//
// An error is returned only when the scenario cannot be run at all. Failed
// expectations and assertions are reported through Result.Errors.
func Run(s *Scenario) (*Result, error) {
	doc, err := rundown.LoadFile(s.Rundown)
	if err != nil {
		return nil, fmt.Errorf("failed to load rundown: %w", err)
	}
	start, err := rundown.ParseMillis(s.Clock)
	if err != nil {
		return nil, fmt.Errorf("invalid clock: %w", err)
	}

	h := &Harness{
		clock:  testutil.NewFakeClock(day.Add(clock.Duration(start))),
		ticks:  make(chan time.Time),
		result: NewResult(),
	}
	opts := []engine.Option{engine.WithClock(h.clock), engine.WithTicks(h.ticks)}
	if s.AuxTimers > 0 {
		opts = append(opts, engine.WithAuxTimers(s.AuxTimers, auxtimer.DefaultDuration))
	}
	h.engine, err = engine.New(doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	if err := h.sync(ctx); err != nil {
		return nil, err
	}
	for i, step := range s.Steps {
		if err := h.step(ctx, i+1, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	state, err := plain(h.engine.Poll())
	if err != nil {
		return nil, fmt.Errorf("failed to encode final state: %w", err)
	}
	h.result.State, _ = state.(map[string]any)

	for _, msg := range EvaluateAssertions(h.result, s.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) step(ctx context.Context, n int, step Step) error {
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		if err := h.tick(ctx, d); err != nil {
			return err
		}
	}
	if step.Command == "" {
		return nil
	}

	payload, err := plain(step.Payload)
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	dctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	res, dispatchErr := h.engine.Dispatch(dctx, step.Command, payload, dispatch.SourceInternal)

	ev := TraceEvent{
		Type:    EventCommand,
		Clock:   h.now(),
		Command: step.Command,
		Payload: payload,
	}
	if dispatchErr != nil {
		if errorsIsEngine(dispatchErr) {
			return dispatchErr
		}
		ev.Error = dispatchErr.Error()
	} else if ev.Result, err = plain(res.Payload); err != nil {
		return fmt.Errorf("result: %w", err)
	}
	h.result.addEvent(ev)

	if step.Expect != nil {
		for _, msg := range checkExpect(n, step, ev) {
			h.result.AddError(msg)
		}
	}
	return nil
}

// tick moves the clock by d and lets the engine process one tick.
func (h *Harness) tick(ctx context.Context, d time.Duration) error {
	now := h.clock.Advance(d)
	tctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	select {
	case h.ticks <- now:
	case <-tctx.Done():
		return fmt.Errorf("engine did not accept tick: %w", tctx.Err())
	}
	if err := h.sync(ctx); err != nil {
		return err
	}
	h.result.addEvent(TraceEvent{Type: EventTick, Clock: h.now()})
	return nil
}

func (h *Harness) sync(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	if err := h.engine.Sync(sctx); err != nil {
		return fmt.Errorf("engine sync: %w", err)
	}
	return nil
}

func (h *Harness) now() string {
	return h.clock.Now().Format("15:04:05.000")
}

func checkExpect(n int, step Step, ev TraceEvent) []string {
	var errs []string
	exp := step.Expect
	switch {
	case exp.Error != "" && ev.Error == "":
		errs = append(errs, fmt.Sprintf("step %d (%s): expected error %q, got success", n, step.Command, exp.Error))
	case exp.Error != "" && ev.Error != exp.Error:
		errs = append(errs, fmt.Sprintf("step %d (%s): expected error %q, got %q", n, step.Command, exp.Error, ev.Error))
	case exp.Error == "" && ev.Error != "":
		errs = append(errs, fmt.Sprintf("step %d (%s): unexpected error %q", n, step.Command, ev.Error))
	}
	if exp.Payload != nil {
		want, err := plain(exp.Payload)
		if err != nil {
			return append(errs, fmt.Sprintf("step %d (%s): expected payload: %v", n, step.Command, err))
		}
		if !contains(ev.Result, want) {
			errs = append(errs, fmt.Sprintf("step %d (%s): expected payload %v, got %v", n, step.Command, want, ev.Result))
		}
	}
	return errs
}

// errorsIsEngine reports failures of the engine itself, as opposed to a
// command being rejected.
func errorsIsEngine(err error) bool {
	return errors.Is(err, engine.ErrStopped) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// plain converts v to the shape encoding/json produces when decoding into
// an interface value, so values from YAML and from the engine compare
// equal. YAML maps with non-string keys are converted first.
func plain(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(stringKeys(v))
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func stringKeys(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = stringKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = stringKeys(val)
		}
		return out
	}
	return v
}
