// Package mirror copies published runtime state to external systems.
//
// The mirror is strictly best effort: the engine never waits on it, a slow or
// failing sink only ever loses intermediate states, and changes that touch
// nothing but the wall clock are not mirrored at all. Callers normally wrap
// Notify in an eventstore.Throttled so sinks see a bounded write rate.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/showrunner/internal/eventstore"
)

// DefaultTimeout bounds a single sink write.
const DefaultTimeout = 2 * time.Second

// Frame is the document written to every sink.
type Frame struct {
	Session string               `json:"session"`
	Seq     uint64               `json:"seq"`
	Keys    []eventstore.Key     `json:"keys"`
	State   *eventstore.Snapshot `json:"state"`
	SentAt  time.Time            `json:"sentAt"`
}

// Sink receives encoded frames.
type Sink interface {
	Name() string
	Write(ctx context.Context, payload []byte) error
	Close() error
}

// Connector is implemented by sinks that hold a live connection.
type Connector interface {
	Connected() bool
}

// SinkStatus describes one sink. Sinks without a live connection count as
// connected once their last write succeeded.
type SinkStatus struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	LastError string `json:"lastError,omitempty"`
}

// Status is reported by the mirrorstatus command.
type Status struct {
	Enabled   bool         `json:"enabled"`
	Connected bool         `json:"connected"`
	Sinks     []SinkStatus `json:"sinks"`
}

// FailureObserver is told about failed writes. Implemented by
// *metrics.Metrics.
type FailureObserver interface {
	MirrorFailed(sink string)
}

// Mirror fans snapshots out to sinks from its own goroutine.
//
// Thread-safety: Notify, SetEnabled and Status are safe from any goroutine.
// Run must be called from exactly one goroutine.
type Mirror struct {
	sinks    []Sink
	timeout  time.Duration
	observer FailureObserver
	session  string
	now      func() time.Time

	enabled atomic.Bool
	pending chan eventstore.Change
	seq     uint64

	mu      sync.Mutex
	results []writeResult
}

type writeResult struct {
	written bool
	err     error
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithTimeout bounds each sink write.
func WithTimeout(d time.Duration) Option {
	return func(m *Mirror) { m.timeout = d }
}

// WithObserver reports failed writes.
func WithObserver(o FailureObserver) Option {
	return func(m *Mirror) { m.observer = o }
}

// WithNow replaces the time source stamped on frames.
func WithNow(now func() time.Time) Option {
	return func(m *Mirror) { m.now = now }
}

// New creates a mirror writing to sinks.
func New(sinks []Sink, opts ...Option) *Mirror {
	m := &Mirror{
		sinks:   sinks,
		timeout: DefaultTimeout,
		session: uuid.Must(uuid.NewV7()).String(),
		now:     time.Now,
		pending: make(chan eventstore.Change, 1),
		results: make([]writeResult, len(sinks)),
	}
	m.enabled.Store(true)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetEnabled switches mirroring on or off. While off, changes are dropped
// and sinks stay open; mirroring resumes with the next change.
func (m *Mirror) SetEnabled(on bool) {
	if m.enabled.Swap(on) != on {
		slog.Info("mirror switched", "enabled", on)
	}
	if !on {
		select {
		case <-m.pending:
		default:
		}
	}
}

// Enabled reports whether changes are being mirrored.
func (m *Mirror) Enabled() bool {
	return m.enabled.Load()
}

// Status reports the switch and the health of every sink.
func (m *Mirror) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{Enabled: m.enabled.Load(), Sinks: make([]SinkStatus, len(m.sinks))}
	st.Connected = len(m.sinks) > 0
	for i, s := range m.sinks {
		r := m.results[i]
		ss := SinkStatus{Name: s.Name(), Connected: r.written && r.err == nil}
		if c, ok := s.(Connector); ok {
			ss.Connected = c.Connected()
		}
		if r.err != nil {
			ss.LastError = r.err.Error()
		}
		st.Connected = st.Connected && ss.Connected
		st.Sinks[i] = ss
	}
	return st
}

// Session returns the id stamped on every frame of this process.
func (m *Mirror) Session() string {
	return m.session
}

// Notify queues c for mirroring and returns at once. A change that has not
// been picked up yet is replaced; its keys are carried over.
func (m *Mirror) Notify(c eventstore.Change) {
	if !m.enabled.Load() || clockOnly(c.Keys) {
		return
	}
	select {
	case m.pending <- c:
		return
	default:
	}
	select {
	case old := <-m.pending:
		c.Keys = mergeKeys(old.Keys, c.Keys)
	default:
	}
	select {
	case m.pending <- c:
	default:
		// Another Notify won the slot; its snapshot is at least as new.
	}
}

// Run writes queued changes until ctx is cancelled, then closes the sinks.
func (m *Mirror) Run(ctx context.Context) {
	slog.Info("mirror starting", "session", m.session, "sinks", len(m.sinks))
	defer m.close()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.pending:
			if m.enabled.Load() {
				m.write(ctx, c)
			}
		}
	}
}

func (m *Mirror) write(ctx context.Context, c eventstore.Change) {
	m.seq++
	payload, err := json.Marshal(Frame{
		Session: m.session,
		Seq:     m.seq,
		Keys:    c.Keys,
		State:   c.Snapshot,
		SentAt:  m.now().UTC(),
	})
	if err != nil {
		slog.Error("mirror frame encode failed", "error", err)
		return
	}
	for i, s := range m.sinks {
		err := m.writeSink(ctx, s, payload)
		m.mu.Lock()
		m.results[i] = writeResult{written: true, err: err}
		m.mu.Unlock()
		if err != nil {
			slog.Warn("mirror write failed",
				"sink", s.Name(),
				"seq", m.seq,
				"error", err,
			)
			if m.observer != nil {
				m.observer.MirrorFailed(s.Name())
			}
		}
	}
}

func (m *Mirror) writeSink(ctx context.Context, s Sink, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := s.Write(ctx, payload); err != nil {
		return fmt.Errorf("%s: %w", s.Name(), err)
	}
	return nil
}

func (m *Mirror) close() {
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			slog.Warn("mirror sink close failed", "sink", s.Name(), "error", err)
		}
	}
	slog.Info("mirror stopped")
}

func clockOnly(keys []eventstore.Key) bool {
	for _, k := range keys {
		if k != eventstore.KeyClock {
			return false
		}
	}
	return true
}

func mergeKeys(a, b []eventstore.Key) []eventstore.Key {
	seen := make(map[eventstore.Key]bool, len(a)+len(b))
	out := make([]eventstore.Key, 0, len(a)+len(b))
	for _, keys := range [][]eventstore.Key{a, b} {
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
