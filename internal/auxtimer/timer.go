// Package auxtimer implements the bank of auxiliary timers. Aux timers are
// independent of the rundown and of the main playback machine: they have no
// schedule, no offset and only three playback states.
package auxtimer

import (
	"strings"
	"time"

	"github.com/roach88/showrunner/internal/clock"
	"github.com/roach88/showrunner/internal/fault"
)

// DefaultDuration is the duration of a fresh aux timer, in milliseconds.
const DefaultDuration int64 = 5 * 60 * 1000

// Direction selects whether a timer counts toward zero or away from it.
type Direction string

const (
	CountDown Direction = "count-down"
	CountUp   Direction = "count-up"
)

// ParseDirection matches s case-insensitively.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case CountDown:
		return CountDown, true
	case CountUp:
		return CountUp, true
	}
	return "", false
}

// Playback is the simplified phase set of an aux timer.
type Playback string

const (
	Start Playback = "start"
	Pause Playback = "pause"
	Stop  Playback = "stop"
)

// ParsePlayback matches s case-insensitively.
func ParsePlayback(s string) (Playback, bool) {
	switch Playback(strings.ToLower(strings.TrimSpace(s))) {
	case Start:
		return Start, true
	case Pause:
		return Pause, true
	case Stop:
		return Stop, true
	}
	return "", false
}

// State is the published value of one aux timer.
type State struct {
	Duration  int64     `json:"duration"`
	Current   int64     `json:"current"`
	Playback  Playback  `json:"playback"`
	Direction Direction `json:"direction"`
}

// Timer is a single aux timer. Like the playback machine it stores the start
// of the running segment and derives current from fresh clock reads.
type Timer struct {
	id    int
	clock clock.Clock

	direction   Direction
	playback    Playback
	duration    int64
	accumulated int64
	runStart    time.Time
}

func newTimer(id int, c clock.Clock, duration int64) *Timer {
	return &Timer{
		id:        id,
		clock:     c,
		direction: CountDown,
		playback:  Stop,
		duration:  duration,
	}
}

// ID returns the timer's bank id.
func (t *Timer) ID() int { return t.id }

// State derives the published value at the current instant.
func (t *Timer) State() State {
	return State{
		Duration:  t.duration,
		Current:   t.current(t.clock.Now()),
		Playback:  t.playback,
		Direction: t.direction,
	}
}

// Start runs the timer, resuming from a pause. Time added while stopped is
// kept. Starting a running timer does nothing.
func (t *Timer) Start() State {
	if t.playback != Start {
		t.runStart = t.clock.Now()
		t.playback = Start
	}
	return t.State()
}

// Pause freezes a running timer. Outside of Start it does nothing.
func (t *Timer) Pause() State {
	if t.playback == Start {
		t.accumulated = t.elapsed(t.clock.Now())
		t.runStart = time.Time{}
		t.playback = Pause
	}
	return t.State()
}

// Stop resets the timer to its full duration.
func (t *Timer) Stop() State {
	t.accumulated = 0
	t.runStart = time.Time{}
	t.playback = Stop
	return t.State()
}

// SetTime replaces the duration. A running timer keeps its elapsed time.
func (t *Timer) SetTime(ms int64) (State, error) {
	if ms < 0 {
		return t.State(), fault.Range("Aux timer duration must not be negative: %d ms", ms)
	}
	t.duration = ms
	return t.State(), nil
}

// AddTime moves current by deltaMs in either direction. A count-down timer
// never drops below zero as a result.
func (t *Timer) AddTime(deltaMs int64) State {
	now := t.clock.Now()
	elapsed := t.elapsed(now)

	switch t.direction {
	case CountUp:
		elapsed += deltaMs
	default:
		elapsed -= deltaMs
		if t.duration-elapsed < 0 {
			elapsed = t.duration
		}
	}
	t.setElapsed(now, elapsed)
	return t.State()
}

// SetDirection switches counting direction, keeping the elapsed time.
func (t *Timer) SetDirection(d Direction) (State, error) {
	if _, ok := ParseDirection(string(d)); !ok {
		return t.State(), fault.Validation("Invalid direction payload")
	}
	t.direction = d
	return t.State(), nil
}

func (t *Timer) setElapsed(now time.Time, elapsed int64) {
	t.accumulated = elapsed
	if t.playback == Start {
		t.runStart = now
	}
}

func (t *Timer) elapsed(now time.Time) int64 {
	if t.playback == Start {
		return t.accumulated + clock.Ms(now.Sub(t.runStart))
	}
	return t.accumulated
}

func (t *Timer) current(now time.Time) int64 {
	if t.direction == CountUp {
		return t.elapsed(now)
	}
	return t.duration - t.elapsed(now)
}
