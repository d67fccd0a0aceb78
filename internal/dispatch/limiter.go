package dispatch

import (
	"time"

	"github.com/roach88/showrunner/internal/rundown"
)

// Limiter coalesces cue edits per cue id. The first edit after a quiet window
// is allowed through; edits inside the window are merged and released by Due
// once the window has closed.
type Limiter struct {
	window  time.Duration
	last    map[string]time.Time
	pending map[string]rundown.CuePatch
	order   []string
}

// NewLimiter creates a limiter with the given window.
func NewLimiter(window time.Duration) *Limiter {
	return &Limiter{
		window:  window,
		last:    make(map[string]time.Time),
		pending: make(map[string]rundown.CuePatch),
	}
}

// Allow reports whether p may be applied now. When it returns false, p has
// been merged into the pending edit for its cue.
func (l *Limiter) Allow(p rundown.CuePatch, now time.Time) bool {
	_, waiting := l.pending[p.ID]
	last, seen := l.last[p.ID]
	if !waiting && (!seen || now.Sub(last) >= l.window) {
		l.last[p.ID] = now
		return true
	}

	if waiting {
		merged := l.pending[p.ID]
		merged.Merge(p)
		l.pending[p.ID] = merged
		return false
	}
	l.pending[p.ID] = p
	l.order = append(l.order, p.ID)
	return false
}

// Due removes and returns the pending edits whose window has closed, in the
// order they were first deferred.
func (l *Limiter) Due(now time.Time) []rundown.CuePatch {
	if len(l.pending) == 0 {
		l.prune(now)
		return nil
	}
	var due []rundown.CuePatch
	kept := l.order[:0]
	for _, id := range l.order {
		if now.Sub(l.last[id]) < l.window {
			kept = append(kept, id)
			continue
		}
		due = append(due, l.pending[id])
		delete(l.pending, id)
		l.last[id] = now
	}
	l.order = kept
	return due
}

// Len returns the number of cues with deferred edits.
func (l *Limiter) Len() int {
	return len(l.pending)
}

// prune forgets quiet cues so the map does not grow with every id ever edited.
func (l *Limiter) prune(now time.Time) {
	for id, t := range l.last {
		if now.Sub(t) >= l.window {
			delete(l.last, id)
		}
	}
}
