package eventstore

import (
	"sync"
	"sync/atomic"

	"github.com/roach88/showrunner/internal/auxtimer"
	"github.com/roach88/showrunner/internal/fault"
	"github.com/roach88/showrunner/internal/message"
	"github.com/roach88/showrunner/internal/playback"
	"github.com/roach88/showrunner/internal/rundown"
)

// Change describes one publication.
type Change struct {
	Keys     []Key
	Snapshot *Snapshot
}

// Has reports whether key is among the changed keys.
func (c Change) Has(key Key) bool {
	for _, k := range c.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Subscriber receives every publication. It runs on the writer goroutine and
// must not block.
type Subscriber func(Change)

// Store holds the current snapshot.
//
// Thread-safety: Set, Patch and Publish must be called from a single writer.
// Poll, Get and Subscribe are safe from any goroutine.
type Store struct {
	current atomic.Pointer[Snapshot]

	mu     sync.Mutex
	subs   []*subscription
	nextID int
}

type subscription struct {
	id int
	fn Subscriber
}

// New creates a store holding initial.
func New(initial Snapshot) *Store {
	s := &Store{}
	s.current.Store(initial.clone())
	return s
}

// Poll returns the latest published snapshot. It has no side effects.
func (s *Store) Poll() *Snapshot {
	return s.current.Load()
}

// Get returns the current value of key.
func (s *Store) Get(key Key) (any, bool) {
	return s.Poll().Value(key)
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, &subscription{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Set replaces the value of one key and notifies subscribers. The value must
// have the key's type.
func (s *Store) Set(key Key, value any) error {
	next := s.Poll().clone()
	if err := assign(next, key, value); err != nil {
		return err
	}
	s.swap(next, []Key{key})
	return nil
}

// Patch shallow-merges partial into the value of key. Only the message
// overlay supports partial updates.
func (s *Store) Patch(key Key, partial any) (any, error) {
	if key != KeyMessage {
		return nil, fault.Validation("Key %s does not support patching", key)
	}
	p, ok := partial.(message.Patch)
	if !ok {
		return nil, fault.Validation("Invalid patch for %s", key)
	}
	next := s.Poll().clone()
	next.Message = next.Message.Apply(p)
	s.swap(next, []Key{key})
	return next.Message, nil
}

// Publish replaces the whole snapshot and notifies subscribers once with the
// keys that changed. Nothing is published when nothing changed.
func (s *Store) Publish(next Snapshot) []Key {
	prev := s.Poll()
	n := next.clone()
	keys := prev.Diff(n)
	if len(keys) == 0 {
		return nil
	}
	s.swap(n, keys)
	return keys
}

func (s *Store) swap(next *Snapshot, keys []Key) {
	s.current.Store(next)

	s.mu.Lock()
	subs := make([]*subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	c := Change{Keys: keys, Snapshot: next}
	for _, sub := range subs {
		sub.fn(c)
	}
}

func assign(s *Snapshot, key Key, value any) error {
	ok := true
	switch key {
	case KeyTimer:
		s.Timer, ok = value.(playback.TimerSnapshot)
	case KeyRuntime:
		s.Runtime, ok = value.(playback.RuntimeOffset)
	case KeyEventNow:
		s.EventNow, ok = value.(*rundown.Cue)
	case KeyEventNext:
		s.EventNext, ok = value.(*rundown.Cue)
	case KeyPublicEventNow:
		s.PublicEventNow, ok = value.(*rundown.Cue)
	case KeyPublicEventNext:
		s.PublicEventNext, ok = value.(*rundown.Cue)
	case KeyCurrentBlock:
		s.CurrentBlock, ok = value.(*rundown.Block)
	case KeyMessage:
		s.Message, ok = value.(message.State)
	case KeyClock:
		s.Clock, ok = value.(int64)
	case KeyOnAir:
		s.OnAir, ok = value.(bool)
	default:
		id, isAux := key.AuxID()
		if !isAux || id > len(s.Aux) {
			return fault.Validation("Unknown store key %s", key)
		}
		s.Aux[id-1], ok = value.(auxtimer.State)
	}
	if !ok {
		return fault.Validation("Invalid value for %s: %T", key, value)
	}
	return nil
}
