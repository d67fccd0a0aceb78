// Package eventstore publishes the runtime state to transport adapters.
//
// The store keeps one immutable Snapshot at a time. Every mutation builds a
// copy, swaps it in atomically and notifies subscribers synchronously in
// registration order. Readers on other goroutines call Poll and never observe
// a partially applied update.
package eventstore

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/roach88/showrunner/internal/auxtimer"
	"github.com/roach88/showrunner/internal/message"
	"github.com/roach88/showrunner/internal/playback"
	"github.com/roach88/showrunner/internal/rundown"
)

// Key names a top-level snapshot field. Key names are part of the wire
// contract.
type Key string

const (
	KeyTimer           Key = "timer"
	KeyRuntime         Key = "runtime"
	KeyEventNow        Key = "eventNow"
	KeyEventNext       Key = "eventNext"
	KeyPublicEventNow  Key = "publicEventNow"
	KeyPublicEventNext Key = "publicEventNext"
	KeyCurrentBlock    Key = "currentBlock"
	KeyMessage         Key = "message"
	KeyClock           Key = "clock"
	KeyOnAir           Key = "onAir"
)

// fixedKeys is the publication order of the non-aux keys.
var fixedKeys = []Key{
	KeyTimer, KeyRuntime, KeyEventNow, KeyEventNext, KeyPublicEventNow,
	KeyPublicEventNext, KeyCurrentBlock, KeyMessage, KeyClock, KeyOnAir,
}

const auxPrefix = "auxtimer"

// AuxKey returns the key of aux timer id.
func AuxKey(id int) Key {
	return Key(auxtimer.Key(id))
}

// AuxID parses an aux timer key. ok is false for any other key.
func (k Key) AuxID() (int, bool) {
	rest, found := strings.CutPrefix(string(k), auxPrefix)
	if !found {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// Snapshot is the published aggregate. A snapshot obtained from the store
// must be treated as read-only.
type Snapshot struct {
	Timer           playback.TimerSnapshot
	Runtime         playback.RuntimeOffset
	EventNow        *rundown.Cue
	EventNext       *rundown.Cue
	PublicEventNow  *rundown.Cue
	PublicEventNext *rundown.Cue
	CurrentBlock    *rundown.Block
	Message         message.State
	// Clock is the wall time of day in milliseconds.
	Clock int64
	OnAir bool
	// Aux holds aux timer i+1 at index i.
	Aux []auxtimer.State
}

// Keys lists every key present in s, fixed keys first.
func (s *Snapshot) Keys() []Key {
	keys := make([]Key, 0, len(fixedKeys)+len(s.Aux))
	keys = append(keys, fixedKeys...)
	for i := range s.Aux {
		keys = append(keys, AuxKey(i+1))
	}
	return keys
}

// Value returns the value stored under key.
func (s *Snapshot) Value(key Key) (any, bool) {
	switch key {
	case KeyTimer:
		return s.Timer, true
	case KeyRuntime:
		return s.Runtime, true
	case KeyEventNow:
		return s.EventNow, true
	case KeyEventNext:
		return s.EventNext, true
	case KeyPublicEventNow:
		return s.PublicEventNow, true
	case KeyPublicEventNext:
		return s.PublicEventNext, true
	case KeyCurrentBlock:
		return s.CurrentBlock, true
	case KeyMessage:
		return s.Message, true
	case KeyClock:
		return s.Clock, true
	case KeyOnAir:
		return s.OnAir, true
	}
	if id, ok := key.AuxID(); ok && id <= len(s.Aux) {
		return s.Aux[id-1], true
	}
	return nil, false
}

// Diff lists the keys whose values differ between s and next.
func (s *Snapshot) Diff(next *Snapshot) []Key {
	var keys []Key
	add := func(changed bool, k Key) {
		if changed {
			keys = append(keys, k)
		}
	}
	add(s.Timer != next.Timer, KeyTimer)
	add(s.Runtime != next.Runtime, KeyRuntime)
	add(s.EventNow != next.EventNow, KeyEventNow)
	add(s.EventNext != next.EventNext, KeyEventNext)
	add(s.PublicEventNow != next.PublicEventNow, KeyPublicEventNow)
	add(s.PublicEventNext != next.PublicEventNext, KeyPublicEventNext)
	add(!sameBlock(s.CurrentBlock, next.CurrentBlock), KeyCurrentBlock)
	add(s.Message != next.Message, KeyMessage)
	add(s.Clock != next.Clock, KeyClock)
	add(s.OnAir != next.OnAir, KeyOnAir)
	for i := range max(len(s.Aux), len(next.Aux)) {
		if i >= len(s.Aux) || i >= len(next.Aux) || s.Aux[i] != next.Aux[i] {
			keys = append(keys, AuxKey(i+1))
		}
	}
	return keys
}

func sameBlock(a, b *rundown.Block) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// clone copies s deeply enough that mutating the copy never affects s.
func (s *Snapshot) clone() *Snapshot {
	c := *s
	c.Aux = append([]auxtimer.State(nil), s.Aux...)
	return &c
}

// MarshalJSON renders the snapshot as a flat object keyed by Key.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(fixedKeys)+len(s.Aux))
	for _, k := range s.Keys() {
		v, _ := s.Value(k)
		out[string(k)] = v
	}
	return json.Marshal(out)
}
