package eventstore

import (
	"sync"
	"time"
)

// Throttled wraps a subscriber so that it runs at most once per interval.
// The first change after a quiet period is delivered immediately; changes
// arriving inside the window are merged and delivered once when it closes,
// carrying the union of their keys and the latest snapshot.
//
// Trailing deliveries run on a timer goroutine, so the wrapped subscriber must
// be safe to call off the writer goroutine.
type Throttled struct {
	interval time.Duration
	next     Subscriber

	mu      sync.Mutex
	last    time.Time
	pending *Change
	timer   *time.Timer
	stopped bool
}

// Throttle wraps next.
func Throttle(interval time.Duration, next Subscriber) *Throttled {
	return &Throttled{interval: interval, next: next}
}

// Notify is the Subscriber to register with the store.
func (t *Throttled) Notify(c Change) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}

	now := time.Now()
	if t.timer == nil && now.Sub(t.last) >= t.interval {
		t.last = now
		t.mu.Unlock()
		t.next(c)
		return
	}

	t.merge(c)
	if t.timer == nil {
		wait := t.interval - now.Sub(t.last)
		t.timer = time.AfterFunc(wait, t.flush)
	}
	t.mu.Unlock()
}

func (t *Throttled) merge(c Change) {
	if t.pending == nil {
		t.pending = &Change{Keys: append([]Key(nil), c.Keys...), Snapshot: c.Snapshot}
		return
	}
	for _, k := range c.Keys {
		if !t.pending.Has(k) {
			t.pending.Keys = append(t.pending.Keys, k)
		}
	}
	t.pending.Snapshot = c.Snapshot
}

func (t *Throttled) flush() {
	t.mu.Lock()
	c := t.pending
	t.pending = nil
	t.timer = nil
	t.last = time.Now()
	stopped := t.stopped
	t.mu.Unlock()

	if c != nil && !stopped {
		t.next(*c)
	}
}

// Stop cancels any pending trailing delivery. Later changes are dropped.
func (t *Throttled) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = nil
}
