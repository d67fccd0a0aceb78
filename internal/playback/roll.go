package playback

import (
	"time"

	"github.com/roach88/showrunner/internal/clock"
	"github.com/roach88/showrunner/internal/fault"
	"github.com/roach88/showrunner/internal/rundown"
)

// Roll enters schedule-following mode. The cue scheduled for the current
// time of day is loaded and playing at its schedule-derived position; when
// nothing is scheduled now, the machine waits for the next cue.
func (m *Machine) Roll() error {
	if m.index.Len() == 0 {
		return fault.Navigation("No playable events to roll")
	}
	to, _ := transition(m.phase, actRoll)
	if m.phase != PhaseRoll {
		m.cue = nil
		m.resetTimer(0)
	}
	m.phase = to
	m.followSchedule(m.clock.Now())
	return nil
}

// followSchedule keeps the loaded cue while it has time left, otherwise
// switches to whatever the schedule says should be running at now.
func (m *Machine) followSchedule(now time.Time) {
	nowDay := clock.MsOfDay(now)

	if m.cue != nil {
		if m.current(now) > 0 {
			return
		}
		if m.finishedAt.IsZero() {
			m.finishedAt = now
		}
	}

	scheduled, ok := m.index.Containing(nowDay)
	if ok {
		if m.cue != nil && scheduled.ID == m.cue.ID {
			// Shortened below its slot: stay in overtime until the slot ends.
			return
		}
		m.rollInto(scheduled, now, nowDay)
		return
	}

	m.cue = nil
	m.resetTimer(0)
	m.rollNext = nil
	if up, _, found := m.index.Upcoming(nowDay); found {
		m.rollNext = up
	}
}

func (m *Machine) rollInto(c *rundown.Cue, now time.Time, nowDay int64) {
	into := clock.NearestDelta(c.ScheduledStart, nowDay)
	if into < 0 {
		into = 0
	}
	m.arm(c)
	m.rollNext = nil
	m.startedAt = now.Add(-clock.Duration(into))
	if m.actualStart.IsZero() {
		m.actualStart = m.startedAt
	}
}
