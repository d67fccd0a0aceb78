// Package playback implements the main show timer.
//
// The Machine owns the loaded cue, the timer phase and every field derived
// from the wall clock. It is not safe for concurrent use: the engine drives
// it from its single writer goroutine.
//
// Timer values are never accumulated per tick. The machine records the
// instants at which run segments began and derives elapsed, remaining and
// offset values from fresh clock reads whenever State is called.
package playback

import (
	"time"

	"github.com/roach88/showrunner/internal/clock"
	"github.com/roach88/showrunner/internal/fault"
	"github.com/roach88/showrunner/internal/navigation"
	"github.com/roach88/showrunner/internal/rundown"
)

// MaxAddTime bounds a single time adjustment, in milliseconds.
const MaxAddTime int64 = 60 * 60 * 1000

// Machine is the playback state machine.
type Machine struct {
	clock clock.Clock
	index *rundown.Index

	phase Phase
	cue   *rundown.Cue

	duration    int64
	addedTime   int64
	accumulated int64
	runStart    time.Time
	startedAt   time.Time
	finishedAt  time.Time

	actualStart time.Time
	offsetMode  OffsetMode

	// rollNext is the cue Roll is waiting for when nothing is scheduled now.
	rollNext *rundown.Cue
}

// New creates a stopped machine over ix.
func New(c clock.Clock, ix *rundown.Index) *Machine {
	return &Machine{
		clock:      c,
		index:      ix,
		phase:      PhaseStop,
		offsetMode: OffsetAbsolute,
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Cue returns the loaded cue, or nil.
func (m *Machine) Cue() *rundown.Cue { return m.cue }

// CueID returns the id of the loaded cue, or "".
func (m *Machine) CueID() string {
	if m.cue == nil {
		return ""
	}
	return m.cue.ID
}

// Index returns the rundown index the machine navigates.
func (m *Machine) Index() *rundown.Index { return m.index }

// OffsetMode returns the active offset mode.
func (m *Machine) OffsetMode() OffsetMode { return m.offsetMode }

// Resolve resolves req relative to the loaded cue.
func (m *Machine) Resolve(req navigation.Request) (*rundown.Cue, error) {
	return navigation.Resolve(m.index, m.CueID(), req)
}

// Load selects c and arms it without starting the clock.
// Returns false when c is nil.
func (m *Machine) Load(c *rundown.Cue) bool {
	if c == nil {
		return false
	}
	to, ok := transition(m.phase, actLoad)
	if !ok {
		return false
	}
	m.arm(c)
	m.phase = to
	m.rollNext = nil
	return true
}

// Start runs c, loading it first. With a nil cue it starts (or resumes) the
// loaded cue. Returns false when there is nothing to start.
func (m *Machine) Start(c *rundown.Cue) bool {
	if c != nil {
		if !m.Load(c) {
			return false
		}
	}
	return m.resume()
}

func (m *Machine) resume() bool {
	if m.cue == nil {
		return false
	}
	if m.phase == PhasePlay {
		return true
	}
	to, ok := transition(m.phase, actResume)
	if !ok {
		return false
	}

	now := m.clock.Now()
	if m.phase == PhaseRoll {
		// Leaving roll keeps the schedule-derived position.
		m.accumulated = m.elapsed(now)
	}
	m.runStart = now
	if m.startedAt.IsZero() {
		m.startedAt = now
	}
	if m.actualStart.IsZero() {
		m.actualStart = now
	}
	m.phase = to
	return true
}

// Pause freezes the running timer. Outside of Play it does nothing.
func (m *Machine) Pause() {
	to, ok := transition(m.phase, actPause)
	if !ok {
		return
	}
	now := m.clock.Now()
	m.accumulated += clock.Ms(now.Sub(m.runStart))
	m.runStart = time.Time{}
	m.phase = to
}

// Stop unloads everything and returns to PhaseStop. The offset mode survives.
func (m *Machine) Stop() {
	to, _ := transition(m.phase, actStop)
	m.cue = nil
	m.rollNext = nil
	m.resetTimer(0)
	m.actualStart = time.Time{}
	m.phase = to
}

// Reload re-arms the loaded cue at its full duration without navigating.
// Does nothing when no cue is loaded or while rolling.
func (m *Machine) Reload() {
	if m.cue == nil {
		return
	}
	to, ok := transition(m.phase, actReload)
	if !ok {
		return
	}
	m.arm(m.cue)
	m.phase = to
}

// AddTime extends (positive) or shortens (negative) the loaded cue.
// Adjustments beyond MaxAddTime are rejected; with nothing loaded the call
// is a no-op and reports false.
func (m *Machine) AddTime(deltaMs int64) (bool, error) {
	if deltaMs > MaxAddTime || deltaMs < -MaxAddTime {
		return false, fault.Range("Time adjustment out of range: %d ms", deltaMs)
	}
	if m.cue == nil {
		return false, nil
	}
	if _, ok := transition(m.phase, actAddTime); !ok {
		return false, nil
	}
	m.duration += deltaMs
	m.addedTime += deltaMs

	if !m.finishedAt.IsZero() && m.current(m.clock.Now()) > 0 {
		m.finishedAt = time.Time{}
	}
	return true, nil
}

// SetOffsetMode switches offset computation.
func (m *Machine) SetOffsetMode(mode OffsetMode) error {
	if _, ok := ParseOffsetMode(string(mode)); !ok {
		return fault.Validation("Invalid offset mode: %s", mode)
	}
	m.offsetMode = mode
	return nil
}

// Rebind switches to a freshly built index and re-resolves the loaded cue by
// id. A cue that vanished stops playback (or re-follows the schedule while
// rolling). A changed duration re-arms an armed cue and shifts a running one.
func (m *Machine) Rebind(ix *rundown.Index) {
	m.index = ix

	if m.rollNext != nil {
		if c, ok := ix.ByID(m.rollNext.ID); ok {
			m.rollNext = c
		} else {
			m.rollNext = nil
		}
	}
	if m.cue == nil {
		if m.phase == PhaseRoll {
			m.followSchedule(m.clock.Now())
		}
		return
	}

	c, ok := ix.ByID(m.cue.ID)
	if !ok {
		if m.phase == PhaseRoll {
			m.cue = nil
			m.followSchedule(m.clock.Now())
			return
		}
		m.Stop()
		return
	}

	delta := c.Duration - m.cue.Duration
	m.cue = c
	if m.phase == PhaseArmed {
		m.duration = c.Duration + m.addedTime
		return
	}
	m.duration += delta
}

// Tick advances time-driven behaviour: roll auto-advance, finish detection
// and end actions. All values are recomputed from a fresh clock read.
func (m *Machine) Tick() {
	now := m.clock.Now()

	switch m.phase {
	case PhaseRoll:
		m.followSchedule(now)

	case PhasePlay:
		if m.current(now) > 0 || !m.finishedAt.IsZero() {
			return
		}
		m.finishedAt = now
		m.applyEndAction()
	}
}

func (m *Machine) applyEndAction() {
	switch m.cue.EndAction {
	case rundown.EndActionStop:
		m.Stop()
	case rundown.EndActionLoadNext:
		if next, err := m.Resolve(navigation.Next()); err == nil {
			m.Load(next)
		}
	case rundown.EndActionPlayNext:
		if next, err := m.Resolve(navigation.Next()); err == nil {
			m.Start(next)
		}
	}
}

func (m *Machine) arm(c *rundown.Cue) {
	m.cue = c
	m.resetTimer(c.Duration)
}

func (m *Machine) resetTimer(duration int64) {
	m.duration = duration
	m.addedTime = 0
	m.accumulated = 0
	m.runStart = time.Time{}
	m.startedAt = time.Time{}
	m.finishedAt = time.Time{}
}
