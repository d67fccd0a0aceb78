package rundown

import "fmt"

// regenerating lists the cue properties whose change invalidates the derived schedule.
var regenerating = map[string]bool{
	"timeStart": true,
	"timeEnd":   true,
	"duration":  true,
	"linkStart": true,
	"skip":      true,
}

// CausesRegeneration reports whether changing property forces a full
// schedule rebuild.
func CausesRegeneration(property string) bool {
	return regenerating[property]
}

// CuePatch is a partial update of a single event. Nil fields are untouched.
type CuePatch struct {
	ID        string
	Cue       *string
	Title     *string
	Note      *string
	Colour    *string
	IsPublic  *bool
	Skip      *bool
	LinkStart *bool
	TimeStart *int64
	TimeEnd   *int64
	Duration  *int64
	EndAction *EndAction
	Custom    map[string]string
}

// Regenerates reports whether the patch touches any schedule property.
func (p CuePatch) Regenerates() bool {
	return p.TimeStart != nil || p.TimeEnd != nil || p.Duration != nil ||
		p.LinkStart != nil || p.Skip != nil
}

// Empty reports whether the patch changes nothing.
func (p CuePatch) Empty() bool {
	return p.Cue == nil && p.Title == nil && p.Note == nil && p.Colour == nil &&
		p.IsPublic == nil && p.EndAction == nil && len(p.Custom) == 0 && !p.Regenerates()
}

// Merge folds later into p. Fields set in later win.
func (p *CuePatch) Merge(later CuePatch) {
	if later.Cue != nil {
		p.Cue = later.Cue
	}
	if later.Title != nil {
		p.Title = later.Title
	}
	if later.Note != nil {
		p.Note = later.Note
	}
	if later.Colour != nil {
		p.Colour = later.Colour
	}
	if later.IsPublic != nil {
		p.IsPublic = later.IsPublic
	}
	if later.Skip != nil {
		p.Skip = later.Skip
	}
	if later.LinkStart != nil {
		p.LinkStart = later.LinkStart
	}
	if later.TimeStart != nil {
		p.TimeStart = later.TimeStart
	}
	if later.TimeEnd != nil {
		p.TimeEnd = later.TimeEnd
	}
	if later.Duration != nil {
		p.Duration = later.Duration
	}
	if later.EndAction != nil {
		p.EndAction = later.EndAction
	}
	for k, v := range later.Custom {
		if p.Custom == nil {
			p.Custom = make(map[string]string)
		}
		p.Custom[k] = v
	}
}

// ErrEntryNotFound is returned by Apply when no event carries the patch id.
type ErrEntryNotFound struct {
	ID string
}

func (e *ErrEntryNotFound) Error() string {
	return fmt.Sprintf("event %q not found", e.ID)
}

// HasEvent reports whether an event entry carries id.
func (r Rundown) HasEvent(id string) bool {
	for _, e := range r.Entries {
		if e.ID == id {
			return e.Type == TypeEvent || e.Type == ""
		}
	}
	return false
}

// Apply returns a copy of r with p applied. r is not modified.
//
// Time properties keep each other consistent: a new start keeps the
// duration, a new end recomputes the duration, a new duration moves the end.
func (r Rundown) Apply(p CuePatch) (Rundown, error) {
	out := r.Clone()
	for i := range out.Entries {
		e := &out.Entries[i]
		if e.ID != p.ID {
			continue
		}
		if e.Type != TypeEvent && e.Type != "" {
			return r, fmt.Errorf("entry %q is a %s, not an event", p.ID, e.Type)
		}
		p.applyTo(e)
		return out, nil
	}
	return r, &ErrEntryNotFound{ID: p.ID}
}

func (p CuePatch) applyTo(e *Entry) {
	if p.Cue != nil {
		e.Cue = *p.Cue
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
	if p.Colour != nil {
		e.Colour = *p.Colour
	}
	if p.IsPublic != nil {
		e.IsPublic = *p.IsPublic
	}
	if p.Skip != nil {
		e.Skip = *p.Skip
	}
	if p.LinkStart != nil {
		e.LinkStart = *p.LinkStart
	}
	if p.EndAction != nil {
		e.EndAction = *p.EndAction
	}
	if len(p.Custom) > 0 && e.Custom == nil {
		e.Custom = make(map[string]string, len(p.Custom))
	}
	for k, v := range p.Custom {
		e.Custom[k] = v
	}

	if e.Duration == 0 && e.TimeEnd != 0 {
		e.Duration = e.TimeEnd - e.TimeStart
		if e.Duration < 0 {
			e.Duration += 24 * 60 * 60 * 1000
		}
	}
	if p.TimeStart != nil {
		e.TimeStart = *p.TimeStart
		e.TimeEnd = e.TimeStart + e.Duration
	}
	if p.TimeEnd != nil {
		e.TimeEnd = *p.TimeEnd
		e.Duration = e.TimeEnd - e.TimeStart
		if e.Duration < 0 {
			e.Duration += 24 * 60 * 60 * 1000
		}
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
		e.TimeEnd = e.TimeStart + e.Duration
	}
}
