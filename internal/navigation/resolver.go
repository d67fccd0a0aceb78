// Package navigation turns a navigation request into a concrete cue.
//
// Resolution is a pure function of the index, the currently loaded cue id and
// the request. It never wraps: asking for the cue after the last one fails.
package navigation

import (
	"fmt"

	"github.com/roach88/showrunner/internal/fault"
	"github.com/roach88/showrunner/internal/rundown"
)

// Kind selects how a Request is resolved.
type Kind int

const (
	KindIndex Kind = iota + 1
	KindID
	KindCue
	KindNext
	KindPrevious
)

// Request is a navigation selector.
type Request struct {
	Kind Kind
	// Index is 0-based. Command surfaces convert from 1-based first.
	Index int
	// Value holds the id or cue label.
	Value string
}

// ByIndex selects the cue at a 0-based position.
func ByIndex(pos int) Request { return Request{Kind: KindIndex, Index: pos} }

// ByID selects the cue with the given id.
func ByID(id string) Request { return Request{Kind: KindID, Value: id} }

// ByCue selects the first cue carrying label.
func ByCue(label string) Request { return Request{Kind: KindCue, Value: label} }

// Next selects the cue after the current one, or the first cue when nothing is loaded.
func Next() Request { return Request{Kind: KindNext} }

// Previous selects the cue before the current one.
func Previous() Request { return Request{Kind: KindPrevious} }

func (r Request) String() string {
	switch r.Kind {
	case KindIndex:
		return fmt.Sprintf("index %d", r.Index)
	case KindID:
		return fmt.Sprintf("id %q", r.Value)
	case KindCue:
		return fmt.Sprintf("cue %q", r.Value)
	case KindNext:
		return "next"
	case KindPrevious:
		return "previous"
	}
	return "unknown"
}

// Resolve returns the cue req points at, given the currently loaded cue id
// (empty when nothing is loaded). Failures are navigation faults.
func Resolve(ix *rundown.Index, currentID string, req Request) (*rundown.Cue, error) {
	switch req.Kind {
	case KindIndex:
		if c, ok := ix.At(req.Index); ok {
			return c, nil
		}
		return nil, fault.Navigation("Event index out of range %d", req.Index+1)

	case KindID:
		if c, ok := ix.ByID(req.Value); ok {
			return c, nil
		}
		return nil, fault.Navigation("Event ID not found: %s", req.Value)

	case KindCue:
		if c, ok := ix.ByCue(req.Value); ok {
			return c, nil
		}
		return nil, fault.Navigation("Event CUE not found: %s", req.Value)

	case KindNext:
		pos, loaded := position(ix, currentID)
		if !loaded {
			if c, ok := ix.At(0); ok {
				return c, nil
			}
			return nil, fault.Navigation("No next event")
		}
		if c, ok := ix.At(pos + 1); ok {
			return c, nil
		}
		return nil, fault.Navigation("No next event")

	case KindPrevious:
		pos, loaded := position(ix, currentID)
		if loaded {
			if c, ok := ix.At(pos - 1); ok {
				return c, nil
			}
		}
		return nil, fault.Navigation("No previous event")
	}

	return nil, fault.Validation("unknown navigation request %d", req.Kind)
}

func position(ix *rundown.Index, id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	c, ok := ix.ByID(id)
	if !ok {
		return 0, false
	}
	return c.Position, true
}
