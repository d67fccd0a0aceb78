package auxtimer

import (
	"fmt"
	"time"

	"github.com/roach88/showrunner/internal/clock"
)

// Bank holds the aux timers, addressed by ids 1..N. Timer 1 always exists.
type Bank struct {
	timers []*Timer
}

// NewBank creates count timers of the given duration. A count below one is
// raised to one.
func NewBank(c clock.Clock, count int, duration int64) *Bank {
	if count < 1 {
		count = 1
	}
	b := &Bank{timers: make([]*Timer, count)}
	for i := range b.timers {
		b.timers[i] = newTimer(i+1, c, duration)
	}
	return b
}

// Len returns the number of timers.
func (b *Bank) Len() int { return len(b.timers) }

// Get returns the timer with the given id.
func (b *Bank) Get(id int) (*Timer, bool) {
	if id < 1 || id > len(b.timers) {
		return nil, false
	}
	return b.timers[id-1], true
}

// Key returns the store key name of timer id, e.g. "auxtimer1".
func Key(id int) string {
	return fmt.Sprintf("auxtimer%d", id)
}

// States returns the published value of every timer, indexed by id-1.
func (b *Bank) States() []State {
	out := make([]State, len(b.timers))
	for i, t := range b.timers {
		out[i] = t.State()
	}
	return out
}

// Checkpoint is the restorable state of one timer. RunStart is Unix ms.
type Checkpoint struct {
	ID          int       `json:"id"`
	Direction   Direction `json:"direction"`
	Playback    Playback  `json:"playback"`
	Duration    int64     `json:"duration"`
	Accumulated int64     `json:"accumulated"`
	RunStart    int64     `json:"runStart"`
}

// Checkpoint captures every timer.
func (b *Bank) Checkpoint() []Checkpoint {
	out := make([]Checkpoint, len(b.timers))
	for i, t := range b.timers {
		cp := Checkpoint{
			ID:          t.id,
			Direction:   t.direction,
			Playback:    t.playback,
			Duration:    t.duration,
			Accumulated: t.accumulated,
		}
		if !t.runStart.IsZero() {
			cp.RunStart = t.runStart.UnixMilli()
		}
		out[i] = cp
	}
	return out
}

// Restore applies checkpoints to matching timers. Unknown ids are ignored.
func (b *Bank) Restore(cps []Checkpoint) {
	for _, cp := range cps {
		t, ok := b.Get(cp.ID)
		if !ok {
			continue
		}
		if d, ok := ParseDirection(string(cp.Direction)); ok {
			t.direction = d
		}
		p, ok := ParsePlayback(string(cp.Playback))
		if !ok {
			continue
		}
		t.playback = p
		t.duration = cp.Duration
		t.accumulated = cp.Accumulated
		t.runStart = time.Time{}
		if p == Start {
			t.runStart = t.clock.Now()
			if cp.RunStart != 0 {
				t.runStart = time.UnixMilli(cp.RunStart)
			}
		}
	}
}
