package dispatch

import (
	"errors"
	"math"

	"github.com/roach88/showrunner/internal/auxtimer"
	"github.com/roach88/showrunner/internal/fault"
	"github.com/roach88/showrunner/internal/navigation"
	"github.com/roach88/showrunner/internal/playback"
)

// verb carries the per-command wording of navigation failures.
type verb struct {
	name    string
	noMatch string
}

var (
	verbStart = verb{name: "start", noMatch: "No matching start function"}
	verbLoad  = verb{name: "load", noMatch: "No matching method provided"}
)

func (d *Dispatcher) start(payload any) (any, error) {
	t, err := decodeTarget(payload)
	if err != nil {
		return nil, withNoMatch(err, verbStart)
	}
	if _, ok := t.(targetCurrent); ok {
		if !d.ctrl.Start(nil) {
			return nil, fault.Navigation("Unable to start")
		}
		return Success, nil
	}
	return d.navigate(t, verbStart, func(req navigation.Request) bool {
		return d.ctrl.Start(&req)
	})
}

func (d *Dispatcher) load(payload any) (any, error) {
	t, err := decodeTarget(payload)
	if err != nil {
		return nil, withNoMatch(err, verbLoad)
	}
	if _, ok := t.(targetCurrent); ok {
		return nil, fault.Validation("%s", verbLoad.noMatch)
	}
	return d.navigate(t, verbLoad, d.ctrl.Load)
}

func withNoMatch(err error, v verb) error {
	if errors.Is(err, errNoMatch) {
		return fault.Validation("%s", v.noMatch)
	}
	return err
}

// navigate converts t into a request and reports failures with wording that
// names the selector.
func (d *Dispatcher) navigate(t target, v verb, run func(navigation.Request) bool) (any, error) {
	var (
		req  navigation.Request
		fail error
	)
	switch t := t.(type) {
	case targetIndex:
		n := formatNumber(t.oneBased)
		if t.oneBased <= 0 {
			return nil, fault.Navigation("Event index out of range %s", n)
		}
		fail = fault.Navigation("Event index not recognised or out of range %s", n)
		if t.oneBased != math.Trunc(t.oneBased) || t.oneBased > math.MaxInt32 {
			return nil, fail
		}
		req = navigation.ByIndex(int(t.oneBased) - 1)
	case targetID:
		req = navigation.ByID(t.id)
		fail = fault.Navigation("Unable to %s ID: %s", v.name, t.id)
	case targetCue:
		req = navigation.ByCue(t.label)
		fail = fault.Navigation("Unable to %s CUE: %s", v.name, t.label)
	case targetNext:
		req = navigation.Next()
		fail = fault.Navigation("Unable to %s next event", v.name)
	case targetPrev:
		req = navigation.Previous()
		fail = fault.Navigation("Unable to %s previous event", v.name)
	default:
		return nil, fault.Validation("%s", v.noMatch)
	}
	if !run(req) {
		return nil, fail
	}
	return Success, nil
}

func (d *Dispatcher) addTime(payload any) (any, error) {
	seconds, err := decodeAddTime(payload)
	if err != nil {
		return nil, err
	}
	if seconds == 0 {
		return Success, nil
	}
	ms := secondsToMs(seconds)
	if ms > playback.MaxAddTime || ms < -playback.MaxAddTime {
		return nil, fault.Range("Payload too large: %s", formatNumber(seconds))
	}
	if err := d.ctrl.AddTime(ms); err != nil {
		return nil, err
	}
	return Success, nil
}

// auxCommand is the decoded body of an auxtimer command: either a playback
// verb or a set of adjustments.
type auxCommand interface{ isAuxCommand() }

type (
	auxPlayback struct{ playback auxtimer.Playback }
	auxAdjust   struct {
		durationMs *int64
		addMs      *int64
		direction  *auxtimer.Direction
	}
)

func (auxPlayback) isAuxCommand() {}
func (auxAdjust) isAuxCommand()   {}

func decodeAuxCommand(raw any) (auxCommand, error) {
	switch c := raw.(type) {
	case string:
		if p, ok := auxtimer.ParsePlayback(c); ok {
			return auxPlayback{playback: p}, nil
		}
	case map[string]any:
		var adj auxAdjust
		if v, ok := c["duration"]; ok {
			n, err := numberOrError(v)
			if err != nil {
				return nil, err
			}
			ms := secondsToMs(n)
			adj.durationMs = &ms
		}
		if v, ok := c["addtime"]; ok {
			n, err := numberOrError(v)
			if err != nil {
				return nil, err
			}
			ms := secondsToMs(n)
			adj.addMs = &ms
		}
		if v, ok := c["direction"]; ok {
			s, _ := v.(string)
			dir, ok := auxtimer.ParseDirection(s)
			if !ok {
				return nil, fault.Validation("Invalid direction payload")
			}
			adj.direction = &dir
		}
		if adj.durationMs != nil || adj.addMs != nil || adj.direction != nil {
			return adj, nil
		}
	}
	return nil, fault.Validation("No matching method provided")
}

// auxTimer handles {"<id>": command}.
func (d *Dispatcher) auxTimer(payload any) (any, error) {
	obj, err := asObject(payload)
	if err != nil {
		return nil, err
	}
	if len(obj) != 1 {
		return nil, fault.Validation("Invalid auxtimer index")
	}

	var (
		timer *auxtimer.Timer
		raw   any
	)
	for key, value := range obj {
		n, err := numberOrError(key)
		if err != nil || n != math.Trunc(n) {
			return nil, fault.Validation("Invalid auxtimer index")
		}
		t, ok := d.ctrl.AuxTimer(int(n))
		if !ok {
			return nil, fault.Validation("Invalid auxtimer index")
		}
		timer, raw = t, value
	}

	cmd, err := decodeAuxCommand(raw)
	if err != nil {
		return nil, err
	}

	switch c := cmd.(type) {
	case auxPlayback:
		switch c.playback {
		case auxtimer.Start:
			return timer.Start(), nil
		case auxtimer.Pause:
			return timer.Pause(), nil
		default:
			return timer.Stop(), nil
		}
	case auxAdjust:
		state := timer.State()
		if c.durationMs != nil {
			if state, err = timer.SetTime(*c.durationMs); err != nil {
				return nil, err
			}
		}
		if c.addMs != nil {
			state = timer.AddTime(*c.addMs)
		}
		if c.direction != nil {
			if state, err = timer.SetDirection(*c.direction); err != nil {
				return nil, err
			}
		}
		return state, nil
	}
	return nil, fault.Validation("No matching method provided")
}
