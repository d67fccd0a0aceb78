package playback

import (
	"time"

	"github.com/roach88/showrunner/internal/clock"
	"github.com/roach88/showrunner/internal/rundown"
)

// TimerSnapshot is the published state of the main timer. Instants are
// milliseconds of day.
type TimerSnapshot struct {
	Phase          Phase    `json:"phase"`
	Duration       int64    `json:"duration"`
	Current        int64    `json:"current"`
	Elapsed        int64    `json:"elapsed"`
	StartedAt      Nullable `json:"startedAt"`
	FinishedAt     Nullable `json:"finishedAt"`
	ExpectedFinish Nullable `json:"expectedFinish"`
	AddedTime      int64    `json:"addedTime"`
}

// RuntimeOffset is the published schedule position. A positive offset means
// the show runs behind its plan.
type RuntimeOffset struct {
	SelectedEventIndex Nullable   `json:"selectedEventIndex"`
	NumEvents          int        `json:"numEvents"`
	Offset             int64      `json:"offset"`
	RelativeOffset     int64      `json:"relativeOffset"`
	PlannedStart       Nullable   `json:"plannedStart"`
	PlannedEnd         Nullable   `json:"plannedEnd"`
	ActualStart        Nullable   `json:"actualStart"`
	ExpectedEnd        Nullable   `json:"expectedEnd"`
	OffsetMode         OffsetMode `json:"offsetMode"`
}

// State is everything the machine publishes.
type State struct {
	Timer           TimerSnapshot
	Runtime         RuntimeOffset
	EventNow        *rundown.Cue
	EventNext       *rundown.Cue
	PublicEventNow  *rundown.Cue
	PublicEventNext *rundown.Cue
	CurrentBlock    *rundown.Block
}

// State derives the published state from a fresh clock read. It has no side
// effects.
func (m *Machine) State() State {
	return m.stateAt(m.clock.Now())
}

func (m *Machine) stateAt(now time.Time) State {
	elapsed := m.elapsed(now)
	current := m.current(now)

	s := State{
		Timer: TimerSnapshot{
			Phase:      m.phase,
			Duration:   m.duration,
			Current:    current,
			Elapsed:    elapsed,
			StartedAt:  ofDay(m.startedAt),
			FinishedAt: ofDay(m.finishedAt),
			AddedTime:  m.addedTime,
		},
		Runtime: m.runtimeAt(now, elapsed),
	}

	running := m.phase == PhasePlay || (m.phase == PhaseRoll && m.cue != nil)
	if running {
		s.Timer.ExpectedFinish = Some(clock.NormaliseDay(clock.MsOfDay(now) + current))
	}

	m.pointers(&s)
	return s
}

func (m *Machine) pointers(s *State) {
	if m.cue == nil {
		if m.rollNext != nil {
			s.EventNext = m.rollNext
			if c, ok := m.index.PublicAfter(m.rollNext.Position - 1); ok {
				s.PublicEventNext = c
			}
		}
		return
	}

	pos := m.cue.Position
	s.EventNow = m.cue
	if c, ok := m.index.At(pos + 1); ok {
		s.EventNext = c
	}
	if c, ok := m.index.PublicAtOrBefore(pos); ok {
		s.PublicEventNow = c
	}
	if c, ok := m.index.PublicAfter(pos); ok {
		s.PublicEventNext = c
	}
	if b, ok := m.index.Block(m.cue.BlockID); ok {
		s.CurrentBlock = &b
	}
}

func (m *Machine) runtimeAt(now time.Time, elapsed int64) RuntimeOffset {
	totals := m.index.Totals()
	r := RuntimeOffset{
		NumEvents:   totals.Count,
		ActualStart: ofDay(m.actualStart),
		OffsetMode:  m.offsetMode,
	}
	if totals.Count > 0 {
		r.PlannedStart = Some(totals.FirstStart)
		r.PlannedEnd = Some(clock.NormaliseDay(totals.LastEnd))
	}
	if m.cue == nil {
		return r
	}

	r.SelectedEventIndex = Some(int64(m.cue.Position))
	r.Offset, r.RelativeOffset = m.offsets(now, elapsed)
	if totals.Count > 0 {
		r.ExpectedEnd = Some(clock.NormaliseDay(totals.LastEnd + r.Offset))
	}
	return r
}

// offsets compares where the show is against where the plan says it should
// be. Only the scheduled part of the cue counts as planned progress, so
// overtime and added time show up as offset.
func (m *Machine) offsets(now time.Time, elapsed int64) (offset, relative int64) {
	planned := max(min(elapsed, m.cue.Duration), 0)

	switch m.offsetMode {
	case OffsetRelative:
		if !m.actualStart.IsZero() {
			offset = clock.Ms(now.Sub(m.actualStart)) - (m.cue.PlannedElapsed + planned)
		}
	default:
		plannedNow := clock.NormaliseDay(m.cue.ScheduledStart + planned)
		offset = clock.NearestDelta(plannedNow, clock.MsOfDay(now))
	}

	if !m.startedAt.IsZero() {
		relative = clock.Ms(now.Sub(m.startedAt)) - planned
	}
	return offset, relative
}

func (m *Machine) elapsed(now time.Time) int64 {
	switch m.phase {
	case PhasePlay:
		return m.accumulated + clock.Ms(now.Sub(m.runStart))
	case PhaseArmed, PhasePause:
		return m.accumulated
	case PhaseRoll:
		if m.cue == nil {
			return 0
		}
		return max(clock.NearestDelta(m.cue.ScheduledStart, clock.MsOfDay(now)), 0)
	}
	return 0
}

func (m *Machine) current(now time.Time) int64 {
	if m.phase == PhaseRoll && m.cue == nil {
		if m.rollNext == nil {
			return 0
		}
		return clock.NearestDelta(clock.MsOfDay(now), m.rollNext.ScheduledStart)
	}
	return m.duration - m.elapsed(now)
}

func ofDay(t time.Time) Nullable {
	if t.IsZero() {
		return Nullable{}
	}
	return Some(clock.MsOfDay(t))
}
