package playback

import "time"

// Checkpoint is a restorable copy of the machine's state. Instants are Unix
// milliseconds (0 when unset) because monotonic readings do not survive a
// process restart.
type Checkpoint struct {
	Phase       Phase      `json:"phase"`
	CueID       string     `json:"cueId"`
	AddedTime   int64      `json:"addedTime"`
	Accumulated int64      `json:"accumulated"`
	RunStart    int64      `json:"runStart"`
	StartedAt   int64      `json:"startedAt"`
	FinishedAt  int64      `json:"finishedAt"`
	ActualStart int64      `json:"actualStart"`
	OffsetMode  OffsetMode `json:"offsetMode"`
}

// Checkpoint captures the current state.
func (m *Machine) Checkpoint() Checkpoint {
	cp := Checkpoint{
		Phase:       m.phase,
		CueID:       m.CueID(),
		AddedTime:   m.addedTime,
		Accumulated: m.accumulated,
		RunStart:    unixMs(m.runStart),
		StartedAt:   unixMs(m.startedAt),
		FinishedAt:  unixMs(m.finishedAt),
		ActualStart: unixMs(m.actualStart),
		OffsetMode:  m.offsetMode,
	}
	if m.phase == PhaseRoll {
		cp.CueID = ""
		cp.AddedTime = 0
		cp.Accumulated = 0
		cp.RunStart = 0
		cp.StartedAt = 0
		cp.FinishedAt = 0
	}
	return cp
}

// Restore rebuilds state from cp. It reports false when the checkpointed cue
// no longer exists, in which case the machine stays stopped.
func (m *Machine) Restore(cp Checkpoint) bool {
	if mode, ok := ParseOffsetMode(string(cp.OffsetMode)); ok {
		m.offsetMode = mode
	}

	switch cp.Phase {
	case PhaseRoll:
		if err := m.Roll(); err != nil {
			return false
		}
		if cp.ActualStart != 0 {
			m.actualStart = m.fromUnixMs(cp.ActualStart)
		}
		return true

	case PhaseArmed, PhasePlay, PhasePause:
		c, ok := m.index.ByID(cp.CueID)
		if !ok {
			return false
		}
		m.arm(c)
		m.duration = c.Duration + cp.AddedTime
		m.addedTime = cp.AddedTime
		m.accumulated = cp.Accumulated
		m.startedAt = m.fromUnixMs(cp.StartedAt)
		m.finishedAt = m.fromUnixMs(cp.FinishedAt)
		m.actualStart = m.fromUnixMs(cp.ActualStart)
		if cp.Phase == PhasePlay {
			m.runStart = m.fromUnixMs(cp.RunStart)
			if m.runStart.IsZero() {
				m.runStart = m.clock.Now()
			}
		}
		m.phase = cp.Phase
		return true
	}
	return true
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// fromUnixMs converts back into the clock's location so that time-of-day
// values stay consistent with fresh clock reads.
func (m *Machine) fromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).In(m.clock.Now().Location())
}
