package playback

import (
	"encoding/json"
	"strings"
)

// Phase is the playback state of the main timer.
type Phase string

const (
	PhaseStop  Phase = "stop"
	PhaseArmed Phase = "armed"
	PhasePlay  Phase = "play"
	PhasePause Phase = "pause"
	PhaseRoll  Phase = "roll"
)

// OffsetMode selects how the show offset is measured.
type OffsetMode string

const (
	// OffsetAbsolute measures against the planned time of day.
	OffsetAbsolute OffsetMode = "absolute"
	// OffsetRelative measures against the moment the show actually started.
	OffsetRelative OffsetMode = "relative"
)

// ParseOffsetMode matches s case-insensitively against the known modes.
func ParseOffsetMode(s string) (OffsetMode, bool) {
	switch OffsetMode(strings.ToLower(strings.TrimSpace(s))) {
	case OffsetAbsolute:
		return OffsetAbsolute, true
	case OffsetRelative:
		return OffsetRelative, true
	}
	return "", false
}

// Nullable is an optional millisecond value. It encodes to JSON null when unset.
type Nullable struct {
	Ms    int64
	Valid bool
}

// Some wraps ms as a set value.
func Some(ms int64) Nullable {
	return Nullable{Ms: ms, Valid: true}
}

// MarshalJSON implements json.Marshaler.
func (n Nullable) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Ms)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Nullable) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = Nullable{}
		return nil
	}
	if err := json.Unmarshal(data, &n.Ms); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

type action int

const (
	actLoad action = iota + 1
	actStart
	actResume
	actPause
	actStop
	actReload
	actRoll
	actAddTime
)

// transitions lists every allowed (phase, action) pair. Any pair missing from
// the table is an identity transition: no state change and no error.
var transitions = map[Phase]map[action]Phase{
	PhaseStop: {
		actLoad:  PhaseArmed,
		actStart: PhasePlay,
		actStop:  PhaseStop,
		actRoll:  PhaseRoll,
	},
	PhaseArmed: {
		actLoad:    PhaseArmed,
		actStart:   PhasePlay,
		actResume:  PhasePlay,
		actStop:    PhaseStop,
		actReload:  PhaseArmed,
		actRoll:    PhaseRoll,
		actAddTime: PhaseArmed,
	},
	PhasePlay: {
		actLoad:    PhaseArmed,
		actStart:   PhasePlay,
		actResume:  PhasePlay,
		actPause:   PhasePause,
		actStop:    PhaseStop,
		actReload:  PhaseArmed,
		actRoll:    PhaseRoll,
		actAddTime: PhasePlay,
	},
	PhasePause: {
		actLoad:    PhaseArmed,
		actStart:   PhasePlay,
		actResume:  PhasePlay,
		actStop:    PhaseStop,
		actReload:  PhaseArmed,
		actRoll:    PhaseRoll,
		actAddTime: PhasePause,
	},
	PhaseRoll: {
		actLoad:    PhaseArmed,
		actStart:   PhasePlay,
		actResume:  PhasePlay,
		actStop:    PhaseStop,
		actRoll:    PhaseRoll,
		actAddTime: PhaseRoll,
	},
}

// transition looks up the phase that follows a in from. ok is false for an
// identity transition.
func transition(from Phase, a action) (Phase, bool) {
	to, ok := transitions[from][a]
	return to, ok
}
