package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/showrunner/internal/auxtimer"
	"github.com/roach88/showrunner/internal/eventstore"
	"github.com/roach88/showrunner/internal/fault"
	"github.com/roach88/showrunner/internal/message"
	"github.com/roach88/showrunner/internal/navigation"
	"github.com/roach88/showrunner/internal/playback"
	"github.com/roach88/showrunner/internal/rundown"
)

// controller adapts the engine's owned state to dispatch.Controller. Every
// method runs on the Run goroutine.
type controller struct {
	e *Engine
}

func (c controller) Poll() *eventstore.Snapshot {
	return c.e.events.Poll()
}

func (c controller) Start(req *navigation.Request) bool {
	m := c.e.machine
	if req == nil {
		return m.Start(nil)
	}
	cue, err := m.Resolve(*req)
	if err != nil {
		return false
	}
	return m.Start(cue)
}

func (c controller) Load(req navigation.Request) bool {
	m := c.e.machine
	cue, err := m.Resolve(req)
	if err != nil {
		return false
	}
	return m.Load(cue)
}

func (c controller) Pause()  { c.e.machine.Pause() }
func (c controller) Stop()   { c.e.machine.Stop() }
func (c controller) Reload() { c.e.machine.Reload() }

func (c controller) Roll() error {
	return c.e.machine.Roll()
}

func (c controller) AddTime(deltaMs int64) error {
	_, err := c.e.machine.AddTime(deltaMs)
	return err
}

func (c controller) SetOffsetMode(mode playback.OffsetMode) error {
	return c.e.machine.SetOffsetMode(mode)
}

func (c controller) HasEvent(id string) bool {
	return c.e.doc.HasEvent(id)
}

// Patch edits one entry, rebuilds the index and rebinds the machine to it.
func (c controller) Patch(p rundown.CuePatch) error {
	next, err := c.e.doc.Apply(p)
	if err != nil {
		var missing *rundown.ErrEntryNotFound
		if errors.As(err, &missing) {
			return fault.Navigation("Event ID not found: %s", missing.ID)
		}
		return fault.Validation("%s", err.Error())
	}
	ix, err := rundown.NewIndex(next)
	if err != nil {
		return fault.Validation("%s", err.Error())
	}
	c.e.doc = next
	c.e.machine.Rebind(ix)
	return nil
}

func (c controller) PatchMessage(p message.Patch) (message.State, error) {
	v, err := c.e.events.Patch(eventstore.KeyMessage, p)
	if err != nil {
		return message.State{}, err
	}
	st, ok := v.(message.State)
	if !ok {
		return message.State{}, fault.Internal(fmt.Errorf("message patch returned %T", v))
	}
	return st, nil
}

func (c controller) AuxTimer(id int) (*auxtimer.Timer, bool) {
	return c.e.bank.Get(id)
}
