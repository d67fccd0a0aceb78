package dispatch

import (
	"github.com/roach88/showrunner/internal/auxtimer"
	"github.com/roach88/showrunner/internal/eventstore"
	"github.com/roach88/showrunner/internal/fault"
	"github.com/roach88/showrunner/internal/message"
	"github.com/roach88/showrunner/internal/mirror"
	"github.com/roach88/showrunner/internal/navigation"
	"github.com/roach88/showrunner/internal/playback"
	"github.com/roach88/showrunner/internal/rundown"
)

// fakeController records calls. Navigation succeeds for ids and cues listed
// in known, for indexes below size, and for next/previous unless atEdge.
type fakeController struct {
	known  map[string]bool
	size   int
	atEdge bool
	bank   *auxtimer.Bank

	calls   []string
	reqs    []navigation.Request
	added   []int64
	patches []rundown.CuePatch
	mode    playback.OffsetMode
	msg     message.State
	rollErr error
}

func newFake(bank *auxtimer.Bank) *fakeController {
	return &fakeController{
		known: map[string]bool{"a": true, "2": true},
		size:  3,
		bank:  bank,
	}
}

func (f *fakeController) resolves(req navigation.Request) bool {
	switch req.Kind {
	case navigation.KindIndex:
		return req.Index >= 0 && req.Index < f.size
	case navigation.KindID, navigation.KindCue:
		return f.known[req.Value]
	}
	return !f.atEdge
}

func (f *fakeController) Poll() *eventstore.Snapshot {
	f.calls = append(f.calls, "poll")
	return &eventstore.Snapshot{Clock: 42}
}

func (f *fakeController) Start(req *navigation.Request) bool {
	f.calls = append(f.calls, "start")
	if req == nil {
		return true
	}
	f.reqs = append(f.reqs, *req)
	return f.resolves(*req)
}

func (f *fakeController) Load(req navigation.Request) bool {
	f.calls = append(f.calls, "load")
	f.reqs = append(f.reqs, req)
	return f.resolves(req)
}

func (f *fakeController) Pause()  { f.calls = append(f.calls, "pause") }
func (f *fakeController) Stop()   { f.calls = append(f.calls, "stop") }
func (f *fakeController) Reload() { f.calls = append(f.calls, "reload") }

func (f *fakeController) Roll() error {
	f.calls = append(f.calls, "roll")
	return f.rollErr
}

func (f *fakeController) AddTime(deltaMs int64) error {
	f.calls = append(f.calls, "addtime")
	f.added = append(f.added, deltaMs)
	return nil
}

func (f *fakeController) SetOffsetMode(mode playback.OffsetMode) error {
	f.calls = append(f.calls, "offsetmode")
	f.mode = mode
	return nil
}

func (f *fakeController) HasEvent(id string) bool {
	return f.known[id]
}

func (f *fakeController) Patch(p rundown.CuePatch) error {
	f.calls = append(f.calls, "patch")
	if !f.known[p.ID] {
		return fault.Navigation("Event ID not found: %s", p.ID)
	}
	f.patches = append(f.patches, p)
	return nil
}

func (f *fakeController) PatchMessage(p message.Patch) (message.State, error) {
	f.calls = append(f.calls, "message")
	f.msg = f.msg.Apply(p)
	return f.msg, nil
}

func (f *fakeController) AuxTimer(id int) (*auxtimer.Timer, bool) {
	return f.bank.Get(id)
}

type fakeClients struct {
	renamed    map[string]string
	redirected map[string]string
	identified map[string]bool
}

func newFakeClients() *fakeClients {
	return &fakeClients{
		renamed:    map[string]string{},
		redirected: map[string]string{},
		identified: map[string]bool{},
	}
}

func (c *fakeClients) Rename(target, name string) error {
	if target == "ghost" {
		return fault.Validation("Client not found: %s", target)
	}
	c.renamed[target] = name
	return nil
}

func (c *fakeClients) Redirect(target, path string) error {
	c.redirected[target] = path
	return nil
}

func (c *fakeClients) Identify(target string, identify bool) error {
	c.identified[target] = identify
	return nil
}

type fakeMirror struct {
	enabled bool
}

func (m *fakeMirror) SetEnabled(on bool) { m.enabled = on }

func (m *fakeMirror) Status() mirror.Status {
	return mirror.Status{
		Enabled:   m.enabled,
		Connected: true,
		Sinks:     []mirror.SinkStatus{{Name: "redis", Connected: true}},
	}
}
