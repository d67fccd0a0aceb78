// Package rundown holds the show document and its derived, read-only index.
//
// An Index is immutable once built. Any structural change produces a new
// Index; holders of a cue must re-resolve it by id, never by position.
package rundown

import (
	"fmt"

	"github.com/roach88/showrunner/internal/clock"
)

// Index is an ordered, read-only view of the navigable cues in a rundown
// with O(1) lookup by position, id and cue label.
type Index struct {
	cues   []*Cue
	byID   map[string]int
	byCue  map[string]int
	blocks map[string]Block
	totals Totals
}

// NewIndex derives the schedule for r and indexes its cues.
//
// Skipped events are excluded from the navigable order. Cue labels are not
// unique: ByCue resolves to the first cue carrying the label.
func NewIndex(r Rundown) (*Index, error) {
	ix := &Index{
		byID:   make(map[string]int),
		byCue:  make(map[string]int),
		blocks: make(map[string]Block),
	}

	seen := make(map[string]struct{}, len(r.Entries))
	var (
		delay    int64
		blockID  string
		prevEnd  int64
		havePrev bool
	)

	for i, e := range r.Entries {
		if e.ID == "" {
			return nil, fmt.Errorf("entry %d: missing id", i)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("entry %d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = struct{}{}

		switch e.Type {
		case TypeBlock:
			delay = 0
			blockID = e.ID
			ix.blocks[e.ID] = Block{ID: e.ID, Title: e.Title}

		case TypeDelay:
			delay += e.Duration

		case TypeEvent, "":
			if e.Skip {
				continue
			}
			cue := &Cue{Entry: e.clone(), Delay: delay, BlockID: blockID}
			cue.Type = TypeEvent
			if cue.EndAction == "" {
				cue.EndAction = EndActionNone
			}

			start := e.TimeStart
			if e.LinkStart && havePrev {
				start = prevEnd
			}
			dur := e.Duration
			if dur == 0 && e.TimeEnd != 0 {
				dur = clock.NormaliseDay(e.TimeEnd - start)
			}
			if dur < 0 {
				return nil, fmt.Errorf("entry %q: negative duration", e.ID)
			}

			cue.TimeStart = start
			cue.Duration = dur
			cue.TimeEnd = clock.NormaliseDay(start + dur)
			cue.ScheduledStart = clock.NormaliseDay(start + delay)
			cue.ScheduledEnd = cue.ScheduledStart + dur
			cue.Position = len(ix.cues)

			prevEnd = cue.TimeEnd
			havePrev = true

			ix.byID[e.ID] = cue.Position
			if _, ok := ix.byCue[e.Cue]; !ok && e.Cue != "" {
				ix.byCue[e.Cue] = cue.Position
			}
			ix.cues = append(ix.cues, cue)

		default:
			return nil, fmt.Errorf("entry %q: unknown type %q", e.ID, e.Type)
		}
	}

	ix.totals = ix.computeTotals()
	return ix, nil
}

func (ix *Index) computeTotals() Totals {
	t := Totals{Count: len(ix.cues)}
	if len(ix.cues) == 0 {
		return t
	}
	first := ix.cues[0]
	last := ix.cues[len(ix.cues)-1]
	t.FirstStart = first.ScheduledStart
	t.LastEnd = last.ScheduledEnd
	t.TotalDuration = clock.NormaliseDay(last.ScheduledStart-first.ScheduledStart) + last.Duration
	for _, c := range ix.cues {
		c.PlannedElapsed = clock.NormaliseDay(c.ScheduledStart - first.ScheduledStart)
	}
	return t
}

// Len returns the number of navigable cues.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.cues)
}

// At returns the cue at a 0-based position.
func (ix *Index) At(pos int) (*Cue, bool) {
	if ix == nil || pos < 0 || pos >= len(ix.cues) {
		return nil, false
	}
	return ix.cues[pos], true
}

// ByID returns the cue with the given id.
func (ix *Index) ByID(id string) (*Cue, bool) {
	if ix == nil {
		return nil, false
	}
	pos, ok := ix.byID[id]
	if !ok {
		return nil, false
	}
	return ix.cues[pos], true
}

// ByCue returns the first cue labelled label.
func (ix *Index) ByCue(label string) (*Cue, bool) {
	if ix == nil {
		return nil, false
	}
	pos, ok := ix.byCue[label]
	if !ok {
		return nil, false
	}
	return ix.cues[pos], true
}

// Order returns the ids of the navigable cues.
func (ix *Index) Order() []string {
	if ix == nil {
		return nil
	}
	out := make([]string, len(ix.cues))
	for i, c := range ix.cues {
		out[i] = c.ID
	}
	return out
}

// Cues returns the navigable cues in order. The slice is a copy; the cues are shared.
func (ix *Index) Cues() []*Cue {
	if ix == nil {
		return nil
	}
	out := make([]*Cue, len(ix.cues))
	copy(out, ix.cues)
	return out
}

// Block returns the block heading with the given id.
func (ix *Index) Block(id string) (Block, bool) {
	if ix == nil || id == "" {
		return Block{}, false
	}
	b, ok := ix.blocks[id]
	return b, ok
}

// Totals returns the schedule summary.
func (ix *Index) Totals() Totals {
	if ix == nil {
		return Totals{}
	}
	return ix.totals
}

// PublicAtOrBefore returns the last public cue at or before pos.
func (ix *Index) PublicAtOrBefore(pos int) (*Cue, bool) {
	if ix == nil {
		return nil, false
	}
	if pos >= len(ix.cues) {
		pos = len(ix.cues) - 1
	}
	for i := pos; i >= 0; i-- {
		if ix.cues[i].IsPublic {
			return ix.cues[i], true
		}
	}
	return nil, false
}

// PublicAfter returns the first public cue strictly after pos.
func (ix *Index) PublicAfter(pos int) (*Cue, bool) {
	if ix == nil {
		return nil, false
	}
	for i := pos + 1; i < len(ix.cues); i++ {
		if i >= 0 && ix.cues[i].IsPublic {
			return ix.cues[i], true
		}
	}
	return nil, false
}

// Containing returns the cue whose scheduled window contains msOfDay.
// Windows are half open: [start, end).
func (ix *Index) Containing(msOfDay int64) (*Cue, bool) {
	if ix == nil {
		return nil, false
	}
	for _, c := range ix.cues {
		if c.Duration == 0 {
			continue
		}
		into := clock.NearestDelta(c.ScheduledStart, msOfDay)
		if into >= 0 && into < c.Duration {
			return c, true
		}
	}
	return nil, false
}

// Upcoming returns the first cue in order whose scheduled start is still
// ahead of msOfDay, and how long until it starts.
func (ix *Index) Upcoming(msOfDay int64) (*Cue, int64, bool) {
	if ix == nil {
		return nil, 0, false
	}
	for _, c := range ix.cues {
		if until := clock.NearestDelta(msOfDay, c.ScheduledStart); until > 0 {
			return c, until, true
		}
	}
	return nil, 0, false
}
