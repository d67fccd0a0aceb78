package dispatch

import (
	"sort"
	"strings"

	"github.com/roach88/showrunner/internal/fault"
	"github.com/roach88/showrunner/internal/message"
	"github.com/roach88/showrunner/internal/rundown"
)

const customPrefix = "custom:"

// change handles {"<cue id>": {"<property>": value, ...}}. Edits that move
// the schedule are coalesced per cue id; a deferred edit answers Throttled.
func (d *Dispatcher) change(payload any) (any, error) {
	obj, err := asObject(payload)
	if err != nil {
		return nil, err
	}
	if len(obj) == 0 {
		return nil, fault.Validation("Payload is empty")
	}
	if len(obj) > 1 {
		return nil, fault.Validation("Change accepts a single event")
	}

	var (
		id   string
		data map[string]any
	)
	for k, v := range obj {
		id = k
		data, _ = v.(map[string]any)
	}
	if id == "" {
		return nil, fault.Validation("Missing Event ID")
	}
	if data == nil {
		return nil, fault.Validation("Invalid property or value")
	}

	patch, err := parseChange(id, data)
	if err != nil {
		return nil, err
	}

	if !d.ctrl.HasEvent(patch.ID) {
		return nil, fault.Navigation("Event ID not found: %s", patch.ID)
	}
	if patch.Regenerates() && !d.changes.Allow(patch, d.clock.Now()) {
		return Throttled, nil
	}
	if err := d.ctrl.Patch(patch); err != nil {
		return nil, err
	}
	return Success, nil
}

// parseChange builds a patch from wire properties. Times arrive in seconds.
// Properties are read in sorted order so errors are deterministic.
func parseChange(id string, data map[string]any) (rundown.CuePatch, error) {
	p := rundown.CuePatch{ID: id}

	props := make([]string, 0, len(data))
	for k := range data {
		props = append(props, k)
	}
	sort.Strings(props)

	for _, prop := range props {
		value := data[prop]
		if value == nil {
			return rundown.CuePatch{}, fault.Validation("Invalid property or value")
		}
		if key, ok := strings.CutPrefix(prop, customPrefix); ok {
			s, ok := stringOrNumber(value)
			if !ok || key == "" {
				return rundown.CuePatch{}, invalidValue(prop, value)
			}
			if p.Custom == nil {
				p.Custom = make(map[string]string)
			}
			p.Custom[key] = s
			continue
		}
		if err := setProperty(&p, prop, value); err != nil {
			return rundown.CuePatch{}, err
		}
	}
	return p, nil
}

func setProperty(p *rundown.CuePatch, prop string, value any) error {
	switch prop {
	case "title", "cue", "note", "colour":
		s, ok := stringOrNumber(value)
		if !ok {
			return invalidValue(prop, value)
		}
		switch prop {
		case "title":
			p.Title = &s
		case "cue":
			p.Cue = &s
		case "note":
			p.Note = &s
		default:
			p.Colour = &s
		}

	case "isPublic", "skip", "linkStart":
		b, err := message.CoerceBool(value)
		if err != nil {
			return invalidValue(prop, value)
		}
		switch prop {
		case "isPublic":
			p.IsPublic = &b
		case "skip":
			p.Skip = &b
		default:
			p.LinkStart = &b
		}

	case "duration", "timeStart", "timeEnd":
		n, err := numberOrError(value)
		if err != nil {
			return err
		}
		ms := secondsToMs(n)
		if ms < 0 {
			return fault.Range("%s must not be negative", prop)
		}
		switch prop {
		case "duration":
			p.Duration = &ms
		case "timeStart":
			p.TimeStart = &ms
		default:
			p.TimeEnd = &ms
		}

	case "endAction":
		s, _ := value.(string)
		action, ok := rundown.ParseEndAction(s)
		if !ok {
			return invalidValue(prop, value)
		}
		p.EndAction = &action

	default:
		return fault.Validation("Cannot update property %s", prop)
	}
	return nil
}

func invalidValue(prop string, value any) error {
	return fault.Validation("Invalid value for %s: %v", prop, value)
}
