// Package dispatch maps wire commands onto the runtime.
//
// Every transport hands the dispatcher a command name and a loosely typed
// payload. The dispatcher folds the name, decodes the payload into one of the
// shapes the command accepts, converts wire units (seconds, 1-based indexes)
// into internal ones and calls the Controller. Errors come back as
// *fault.Error values whose message is shown to the caller verbatim.
package dispatch

import (
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/roach88/showrunner/internal/auxtimer"
	"github.com/roach88/showrunner/internal/clock"
	"github.com/roach88/showrunner/internal/eventstore"
	"github.com/roach88/showrunner/internal/fault"
	"github.com/roach88/showrunner/internal/message"
	"github.com/roach88/showrunner/internal/mirror"
	"github.com/roach88/showrunner/internal/navigation"
	"github.com/roach88/showrunner/internal/playback"
	"github.com/roach88/showrunner/internal/rundown"
)

// DefaultChangeWindow is the coalescing window for schedule-changing edits.
const DefaultChangeWindow = 20 * time.Millisecond

// Success is the payload of commands that have nothing else to report.
const Success = "success"

// Throttled is the payload of a change that was deferred, not rejected.
const Throttled = "throttled"

// Source identifies the transport a command arrived on.
type Source string

const (
	SourceWS       Source = "ws"
	SourceHTTP     Source = "http"
	SourceOSC      Source = "osc"
	SourceInternal Source = "internal"
)

// Controller is the runtime surface the dispatcher drives. All calls happen
// on the engine's writer goroutine.
type Controller interface {
	Poll() *eventstore.Snapshot
	// Start starts the cue req resolves to, or resumes the loaded cue when
	// req is nil. It reports false when there is nothing to start.
	Start(req *navigation.Request) bool
	// Load arms the cue req resolves to.
	Load(req navigation.Request) bool
	Pause()
	Stop()
	Reload()
	Roll() error
	AddTime(deltaMs int64) error
	SetOffsetMode(mode playback.OffsetMode) error
	// HasEvent reports whether id names an event that Patch can edit.
	HasEvent(id string) bool
	// Patch applies an edit to a single cue.
	Patch(p rundown.CuePatch) error
	PatchMessage(p message.Patch) (message.State, error)
	AuxTimer(id int) (*auxtimer.Timer, bool)
}

// ClientDirectory controls connected transport clients.
type ClientDirectory interface {
	Rename(target, name string) error
	Redirect(target, path string) error
	Identify(target string, identify bool) error
}

// MirrorSwitch controls the outbound state mirror. Implemented by
// *mirror.Mirror.
type MirrorSwitch interface {
	SetEnabled(on bool)
	Status() mirror.Status
}

// Result is the success envelope returned to transports.
type Result struct {
	Payload any `json:"payload"`
}

type handler func(d *Dispatcher, payload any) (any, error)

var handlers = map[string]handler{
	"version":      (*Dispatcher).version,
	"poll":         (*Dispatcher).poll,
	"change":       (*Dispatcher).change,
	"message":      (*Dispatcher).message,
	"start":        (*Dispatcher).start,
	"pause":        (*Dispatcher).pause,
	"stop":         (*Dispatcher).stop,
	"reload":       (*Dispatcher).reload,
	"roll":         (*Dispatcher).roll,
	"load":         (*Dispatcher).load,
	"addtime":      (*Dispatcher).addTime,
	"auxtimer":     (*Dispatcher).auxTimer,
	"client":       (*Dispatcher).client,
	"offsetmode":   (*Dispatcher).offsetMode,
	"togglemirror": (*Dispatcher).toggleMirror,
	"mirrorstatus": (*Dispatcher).mirrorStatus,
}

// Commands lists the known command names in folded form.
func Commands() []string {
	out := make([]string, 0, len(handlers))
	for name := range handlers {
		out = append(out, name)
	}
	return out
}

// Dispatcher routes commands.
//
// Thread-safety: not safe for concurrent use. The engine calls Dispatch and
// Flush from its writer goroutine only.
type Dispatcher struct {
	ctrl    Controller
	clients ClientDirectory
	mirror  MirrorSwitch
	clock   clock.Clock
	release string
	changes *Limiter
	fold    cases.Caser
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClients wires the client directory used by the client command.
func WithClients(c ClientDirectory) Option {
	return func(d *Dispatcher) { d.clients = c }
}

// WithMirror wires the mirror used by togglemirror and mirrorstatus.
func WithMirror(m MirrorSwitch) Option {
	return func(d *Dispatcher) { d.mirror = m }
}

// WithVersion sets the string reported by the version command.
func WithVersion(v string) Option {
	return func(d *Dispatcher) { d.release = v }
}

// WithClock replaces the system clock used by the change limiter.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithChangeWindow sets the coalescing window for schedule-changing edits.
func WithChangeWindow(window time.Duration) Option {
	return func(d *Dispatcher) { d.changes = NewLimiter(window) }
}

// New creates a dispatcher driving ctrl.
func New(ctrl Controller, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ctrl:    ctrl,
		clock:   clock.System{},
		release: "dev",
		changes: NewLimiter(DefaultChangeWindow),
		fold:    cases.Fold(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Normalize folds a command name the way Dispatch matches it.
func (d *Dispatcher) Normalize(name string) string {
	return d.fold.String(strings.TrimSpace(name))
}

// Dispatch runs the command called name. Unknown names are rejected with
// "Unhandled message <name>" before anything else happens.
func (d *Dispatcher) Dispatch(name string, payload any, source Source) (Result, error) {
	h, ok := handlers[d.Normalize(name)]
	if !ok {
		return Result{}, fault.Validation("Unhandled message %s", name)
	}
	out, err := h(d, normalize(payload))
	if err != nil {
		return Result{}, err
	}
	return Result{Payload: out}, nil
}

// Flush applies deferred edits whose coalescing window has closed. It
// returns the number of patches applied.
func (d *Dispatcher) Flush() int {
	applied := 0
	for _, p := range d.changes.Due(d.clock.Now()) {
		if err := d.ctrl.Patch(p); err != nil {
			slog.Warn("deferred change failed", "cue_id", p.ID, "error", err)
			continue
		}
		applied++
	}
	return applied
}

// Pending reports whether deferred edits are waiting.
func (d *Dispatcher) Pending() bool {
	return d.changes.Len() > 0
}

func (d *Dispatcher) version(any) (any, error) {
	return d.release, nil
}

func (d *Dispatcher) poll(any) (any, error) {
	return d.ctrl.Poll(), nil
}

func (d *Dispatcher) message(payload any) (any, error) {
	obj, err := asObject(payload)
	if err != nil {
		return nil, err
	}
	p, err := message.ParsePatch(obj)
	if err != nil {
		return nil, err
	}
	return d.ctrl.PatchMessage(p)
}

func (d *Dispatcher) pause(any) (any, error) {
	d.ctrl.Pause()
	return Success, nil
}

func (d *Dispatcher) stop(any) (any, error) {
	d.ctrl.Stop()
	return Success, nil
}

func (d *Dispatcher) reload(any) (any, error) {
	d.ctrl.Reload()
	return Success, nil
}

func (d *Dispatcher) roll(any) (any, error) {
	if err := d.ctrl.Roll(); err != nil {
		return nil, err
	}
	return Success, nil
}

func (d *Dispatcher) offsetMode(payload any) (any, error) {
	s, ok := payload.(string)
	if !ok {
		return nil, fault.Validation("Invalid offset mode: %v", payload)
	}
	mode, ok := playback.ParseOffsetMode(s)
	if !ok {
		return nil, fault.Validation("Invalid offset mode: %s", s)
	}
	if err := d.ctrl.SetOffsetMode(mode); err != nil {
		return nil, err
	}
	return Success, nil
}

func (d *Dispatcher) client(payload any) (any, error) {
	obj, err := asObject(payload)
	if err != nil {
		return nil, err
	}
	target, ok := obj["target"].(string)
	if !ok {
		return nil, fault.Validation("No or invalid client target")
	}
	if d.clients == nil {
		return nil, fault.Validation("Client control is not available")
	}

	if name, ok := obj["rename"].(string); ok {
		return successOr(d.clients.Rename(target, name))
	}
	if path, ok := obj["redirect"].(string); ok {
		return successOr(d.clients.Redirect(target, path))
	}
	if raw, ok := obj["identify"]; ok {
		identify, err := message.CoerceBool(raw)
		if err == nil {
			return successOr(d.clients.Identify(target, identify))
		}
	}
	return nil, fault.Validation("No matching method provided")
}

// toggleMirror handles a boolean payload and answers the resulting status.
func (d *Dispatcher) toggleMirror(payload any) (any, error) {
	if d.mirror == nil {
		return nil, fault.Validation("Mirror is not configured")
	}
	on, err := message.CoerceBool(payload)
	if err != nil {
		return nil, fault.Validation("Invalid mirror toggle payload: %v", payload)
	}
	d.mirror.SetEnabled(on)
	return d.mirror.Status(), nil
}

func (d *Dispatcher) mirrorStatus(any) (any, error) {
	if d.mirror == nil {
		return nil, fault.Validation("Mirror is not configured")
	}
	return d.mirror.Status(), nil
}

func successOr(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return Success, nil
}
