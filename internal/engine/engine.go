package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/showrunner/internal/auxtimer"
	"github.com/roach88/showrunner/internal/clock"
	"github.com/roach88/showrunner/internal/dispatch"
	"github.com/roach88/showrunner/internal/eventstore"
	"github.com/roach88/showrunner/internal/fault"
	"github.com/roach88/showrunner/internal/playback"
	"github.com/roach88/showrunner/internal/rundown"
	"github.com/roach88/showrunner/internal/store"
)

// Defaults for the loop timing.
const (
	DefaultTickInterval    = 32 * time.Millisecond
	DefaultTickTolerance   = 100 * time.Millisecond
	DefaultRestoreInterval = time.Second
	saveTimeout            = 5 * time.Second
)

// ErrStopped is returned by Dispatch and Sync once the loop has exited.
var ErrStopped = errors.New("engine stopped")

// RestoreStore persists the restore point. Implemented by *store.Store.
type RestoreStore interface {
	Save(ctx context.Context, rp store.RestorePoint) error
	Load(ctx context.Context) (store.RestorePoint, bool, error)
}

// Observer receives loop measurements. Implemented by *metrics.Metrics.
type Observer interface {
	TickProcessed()
	TickMissed(lag time.Duration)
	CommandHandled(name string, err error)
	OnAir(onAir bool)
}

type nopObserver struct{}

func (nopObserver) TickProcessed()               {}
func (nopObserver) TickMissed(time.Duration)     {}
func (nopObserver) CommandHandled(string, error) {}
func (nopObserver) OnAir(bool)                   {}

// Engine is the single-writer runtime loop.
//
// Thread-safety model:
//   - Dispatch(), Sync(), Poll(), Events(): safe from any goroutine
//   - Restore(): call once, before Run()
//   - Run(): must be called from exactly one goroutine
//
// Everything reachable from the fields below the queue marker is touched by
// the Run goroutine only.
type Engine struct {
	clock      clock.Clock
	events     *eventstore.Store
	dispatcher *dispatch.Dispatcher
	observer   Observer

	tickInterval    time.Duration
	tickTolerance   time.Duration
	ticks           <-chan time.Time
	restore         RestoreStore
	restoreInterval time.Duration

	queue   chan request
	quit    chan struct{}
	stopped chan struct{}
	stop    sync.Once

	// Owned by the Run goroutine.
	doc         rundown.Rundown
	machine     *playback.Machine
	bank        *auxtimer.Bank
	lastTick    time.Time
	lastPersist time.Time
	lastSaved   *store.RestorePoint
	persist     chan store.RestorePoint
}

// config collects option values before the engine is assembled.
type config struct {
	clock           clock.Clock
	observer        Observer
	tickInterval    time.Duration
	tickTolerance   time.Duration
	ticks           <-chan time.Time
	queueSize       int
	auxCount        int
	auxDuration     int64
	restore         RestoreStore
	restoreInterval time.Duration
	dispatchOpts    []dispatch.Option
}

// Option configures an Engine.
type Option func(*config)

// WithClock replaces the system clock. Used by tests and the scenario harness.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithObserver installs a metrics observer.
func WithObserver(o Observer) Option {
	return func(cfg *config) { cfg.observer = o }
}

// WithTickInterval sets the recompute interval.
//
// Default: 32ms (DefaultTickInterval)
func WithTickInterval(d time.Duration) Option {
	return func(cfg *config) { cfg.tickInterval = d }
}

// WithTickTolerance sets how late a tick may arrive before it is reported
// as missed.
func WithTickTolerance(d time.Duration) Option {
	return func(cfg *config) { cfg.tickTolerance = d }
}

// WithTicks replaces the internal ticker with ch. The scenario harness drives
// ticks by hand through it.
func WithTicks(ch <-chan time.Time) Option {
	return func(cfg *config) { cfg.ticks = ch }
}

// WithQueueSize sets the command queue capacity.
func WithQueueSize(n int) Option {
	return func(cfg *config) { cfg.queueSize = n }
}

// WithAuxTimers sets the number of aux timers and their initial duration.
func WithAuxTimers(count int, durationMs int64) Option {
	return func(cfg *config) {
		cfg.auxCount = count
		cfg.auxDuration = durationMs
	}
}

// WithRestore enables the restore point, flushed at most once per interval.
func WithRestore(rs RestoreStore, interval time.Duration) Option {
	return func(cfg *config) {
		cfg.restore = rs
		cfg.restoreInterval = interval
	}
}

// WithDispatchOptions forwards options to the command dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(cfg *config) { cfg.dispatchOpts = append(cfg.dispatchOpts, opts...) }
}

// New builds an engine over doc. The document is validated up front.
func New(doc rundown.Rundown, opts ...Option) (*Engine, error) {
	cfg := config{
		clock:           clock.System{},
		observer:        nopObserver{},
		tickInterval:    DefaultTickInterval,
		tickTolerance:   DefaultTickTolerance,
		queueSize:       DefaultQueueSize,
		auxCount:        1,
		auxDuration:     auxtimer.DefaultDuration,
		restoreInterval: DefaultRestoreInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.queueSize < 1 {
		return nil, fmt.Errorf("queue size must be positive, got %d", cfg.queueSize)
	}

	ix, err := rundown.NewIndex(doc)
	if err != nil {
		return nil, fmt.Errorf("build rundown index: %w", err)
	}

	e := &Engine{
		clock:           cfg.clock,
		observer:        cfg.observer,
		tickInterval:    cfg.tickInterval,
		tickTolerance:   cfg.tickTolerance,
		ticks:           cfg.ticks,
		restore:         cfg.restore,
		restoreInterval: cfg.restoreInterval,
		queue:           make(chan request, cfg.queueSize),
		quit:            make(chan struct{}),
		stopped:         make(chan struct{}),
		doc:             doc.Clone(),
		machine:         playback.New(cfg.clock, ix),
		bank:            auxtimer.NewBank(cfg.clock, cfg.auxCount, cfg.auxDuration),
	}

	dopts := append([]dispatch.Option{dispatch.WithClock(cfg.clock)}, cfg.dispatchOpts...)
	e.dispatcher = dispatch.New(controller{e}, dopts...)
	e.events = eventstore.New(e.snapshot(eventstore.Snapshot{}))
	return e, nil
}

// Events returns the event store for subscribers.
func (e *Engine) Events() *eventstore.Store {
	return e.events
}

// Poll returns the latest published snapshot.
func (e *Engine) Poll() *eventstore.Snapshot {
	return e.events.Poll()
}

// Dispatch queues a command and waits for its result. poll is answered
// directly from the published snapshot.
func (e *Engine) Dispatch(ctx context.Context, name string, payload any, source dispatch.Source) (dispatch.Result, error) {
	if strings.EqualFold(strings.TrimSpace(name), "poll") {
		return dispatch.Result{Payload: e.events.Poll()}, nil
	}
	r, err := e.roundTrip(ctx, newRequest(name, payload, source))
	return r.result, err
}

// Sync returns once every command queued before it has been handled.
func (e *Engine) Sync(ctx context.Context) error {
	_, err := e.roundTrip(ctx, newBarrier())
	return err
}

func (e *Engine) roundTrip(ctx context.Context, req request) (response, error) {
	select {
	case e.queue <- req:
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-e.stopped:
		return response{}, ErrStopped
	}

	select {
	case r := <-req.reply:
		return r, r.err
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-e.stopped:
		return response{}, ErrStopped
	}
}

// Restore loads the restore point, if any. It must be called before Run.
// It reports whether playback state was restored.
func (e *Engine) Restore(ctx context.Context) (bool, error) {
	if e.restore == nil {
		return false, nil
	}
	rp, ok, err := e.restore.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load restore point: %w", err)
	}
	if !ok {
		return false, nil
	}

	restored := e.machine.Restore(rp.Playback)
	if !restored {
		slog.Warn("restore point cue no longer in rundown",
			"cue_id", rp.Playback.CueID,
			"phase", rp.Playback.Phase,
		)
	}
	e.bank.Restore(rp.Aux)
	if err := e.events.Set(eventstore.KeyMessage, rp.Message); err != nil {
		return false, fmt.Errorf("restore message: %w", err)
	}
	e.publish()

	saved := e.restorePoint()
	e.lastSaved = &saved
	slog.Info("restore point loaded",
		"phase", e.machine.Phase(),
		"cue_id", e.machine.CueID(),
		"saved_at", rp.SavedAt,
	)
	return restored, nil
}

// Stop asks Run to return. Safe to call more than once.
func (e *Engine) Stop() {
	e.stop.Do(func() { close(e.quit) })
}

// Run drives the loop until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: A failing command is reported to its caller and logged at
// debug level. A panicking command or tick is recovered, logged at error
// level, and the loop carries on.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"cues", e.machine.Index().Len(),
		"tick_interval", e.tickInterval,
		"aux_timers", e.bank.Len(),
	)
	defer close(e.stopped)

	ticks := e.ticks
	if ticks == nil {
		ticker := time.NewTicker(e.tickInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	saverDone := e.startSaver()
	e.lastTick = e.clock.Now()
	e.lastPersist = e.lastTick
	e.publish()

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.shutdown(saverDone)
			return ctx.Err()

		case <-e.quit:
			slog.Info("engine stopping: stop requested")
			e.shutdown(saverDone)
			return nil

		case req := <-e.queue:
			e.handle(req)

		case <-ticks:
			e.tick()
		}
	}
}

func (e *Engine) handle(req request) {
	if req.barrier {
		req.reply <- response{}
		return
	}
	res, err := e.execute(req)
	req.reply <- response{result: res, err: err}
}

// execute runs one command. The store is republished only when the command
// succeeded, so a rejected command leaves it untouched.
func (e *Engine) execute(req request) (res dispatch.Result, err error) {
	name := e.dispatcher.Normalize(req.name)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("command panicked",
				"command", name,
				"source", req.source,
				"panic", r,
			)
			err = fault.Internal(fmt.Errorf("panic in %s: %v", name, r))
			res = dispatch.Result{}
			e.resync()
		}
		e.observer.CommandHandled(name, err)
	}()

	res, err = e.dispatcher.Dispatch(req.name, req.payload, req.source)
	if err != nil {
		slog.Debug("command rejected",
			"command", name,
			"source", req.source,
			"code", fault.CodeOf(err),
			"error", err,
		)
		return res, err
	}
	e.publish()
	return res, nil
}

// tick recomputes every clock-derived value from a fresh read.
func (e *Engine) tick() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tick panicked", "panic", r)
		}
	}()

	now := e.clock.Now()
	if gap := now.Sub(e.lastTick); gap > e.tickInterval+e.tickTolerance {
		lag := gap - e.tickInterval
		slog.Warn("missed tick",
			"lag", lag,
			"interval", e.tickInterval,
		)
		e.observer.TickMissed(lag)
	}
	e.lastTick = now

	if n := e.dispatcher.Flush(); n > 0 {
		slog.Debug("deferred changes applied", "count", n)
	}
	e.machine.Tick()
	e.publish()
	e.observer.TickProcessed()
	e.maybePersist(now)
}

// publish derives a snapshot from the owned state and hands it to the store.
func (e *Engine) publish() {
	next := e.snapshot(*e.events.Poll())
	e.events.Publish(next)
	e.observer.OnAir(next.OnAir)
}

// resync republishes after a recovered panic so readers see whatever state
// the failed command left behind.
func (e *Engine) resync() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("resync after panic failed", "panic", r)
		}
	}()
	e.publish()
}

// snapshot builds the published state. The message overlay is owned by the
// store and carried over from prev.
func (e *Engine) snapshot(prev eventstore.Snapshot) eventstore.Snapshot {
	now := e.clock.Now()
	st := e.machine.State()
	return eventstore.Snapshot{
		Timer:           st.Timer,
		Runtime:         st.Runtime,
		EventNow:        st.EventNow,
		EventNext:       st.EventNext,
		PublicEventNow:  st.PublicEventNow,
		PublicEventNext: st.PublicEventNext,
		CurrentBlock:    st.CurrentBlock,
		Message:         prev.Message,
		Clock:           clock.MsOfDay(now),
		OnAir:           st.Timer.Phase != playback.PhaseStop,
		Aux:             e.bank.States(),
	}
}
