package eventstore

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/showrunner/internal/auxtimer"
	"github.com/roach88/showrunner/internal/fault"
	"github.com/roach88/showrunner/internal/message"
	"github.com/roach88/showrunner/internal/playback"
	"github.com/roach88/showrunner/internal/rundown"
)

func initial() Snapshot {
	return Snapshot{
		Timer:   playback.TimerSnapshot{Phase: playback.PhaseStop},
		Runtime: playback.RuntimeOffset{OffsetMode: playback.OffsetAbsolute},
		Aux: []auxtimer.State{{
			Duration:  auxtimer.DefaultDuration,
			Current:   auxtimer.DefaultDuration,
			Playback:  auxtimer.Stop,
			Direction: auxtimer.CountDown,
		}},
	}
}

func record(s *Store) *[]Change {
	var got []Change
	s.Subscribe(func(c Change) { got = append(got, c) })
	return &got
}

func TestStore_SetNotifiesInOrder(t *testing.T) {
	s := New(initial())
	var order []string
	s.Subscribe(func(Change) { order = append(order, "first") })
	s.Subscribe(func(Change) { order = append(order, "second") })

	require.NoError(t, s.Set(KeyClock, int64(1234)))

	assert.Equal(t, []string{"first", "second"}, order)
	v, ok := s.Get(KeyClock)
	require.True(t, ok)
	assert.Equal(t, int64(1234), v)
}

func TestStore_SetRejectsWrongType(t *testing.T) {
	s := New(initial())
	got := record(s)

	err := s.Set(KeyOnAir, "yes")
	assert.True(t, fault.IsValidation(err))
	err = s.Set("frobnicate", true)
	assert.True(t, fault.IsValidation(err))
	err = s.Set(AuxKey(2), auxtimer.State{})
	assert.True(t, fault.IsValidation(err), "only one aux timer")

	assert.Empty(t, *got)
}

func TestStore_SetTypedNilPointer(t *testing.T) {
	s := New(initial())
	require.NoError(t, s.Set(KeyEventNow, &rundown.Cue{Entry: rundown.Entry{ID: "a"}}))
	require.NoError(t, s.Set(KeyEventNow, (*rundown.Cue)(nil)))
	assert.Nil(t, s.Poll().EventNow)
}

func TestStore_PollIsImmutable(t *testing.T) {
	s := New(initial())
	before := s.Poll()

	require.NoError(t, s.Set(AuxKey(1), auxtimer.State{Playback: auxtimer.Start}))

	assert.Equal(t, auxtimer.Stop, before.Aux[0].Playback, "earlier snapshot unchanged")
	assert.Equal(t, auxtimer.Start, s.Poll().Aux[0].Playback)
	assert.Same(t, s.Poll(), s.Poll())
}

func TestStore_PatchMessage(t *testing.T) {
	s := New(initial())
	got := record(s)
	text := "Standby"

	v, err := s.Patch(KeyMessage, message.Patch{External: &message.MessagePatch{Text: &text}})
	require.NoError(t, err)

	assert.Equal(t, "Standby", v.(message.State).External.Text)
	require.Len(t, *got, 1)
	assert.Equal(t, []Key{KeyMessage}, (*got)[0].Keys)

	_, err = s.Patch(KeyTimer, message.Patch{})
	assert.True(t, fault.IsValidation(err))
}

func TestStore_PublishOnlyChangedKeys(t *testing.T) {
	s := New(initial())
	got := record(s)

	next := initial()
	next.Clock = 5
	next.OnAir = true
	keys := s.Publish(next)

	assert.ElementsMatch(t, []Key{KeyClock, KeyOnAir}, keys)
	require.Len(t, *got, 1)
	assert.Equal(t, keys, (*got)[0].Keys)

	assert.Nil(t, s.Publish(next), "nothing changed")
	assert.Len(t, *got, 1)
}

func TestStore_Unsubscribe(t *testing.T) {
	s := New(initial())
	calls := 0
	stop := s.Subscribe(func(Change) { calls++ })

	require.NoError(t, s.Set(KeyClock, int64(1)))
	stop()
	require.NoError(t, s.Set(KeyClock, int64(2)))

	assert.Equal(t, 1, calls)
}

func TestStore_ConcurrentPoll(t *testing.T) {
	s := New(initial())
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				snap := s.Poll()
				_, _ = json.Marshal(snap)
			}
		}()
	}
	for i := range 100 {
		require.NoError(t, s.Set(KeyClock, int64(i)))
	}
	wg.Wait()
}

func TestSnapshot_MarshalJSONKeys(t *testing.T) {
	snap := initial()
	data, err := json.Marshal(&snap)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, k := range []string{"timer", "runtime", "eventNow", "eventNext", "message", "clock", "onAir", "auxtimer1"} {
		assert.Contains(t, decoded, k)
	}
	assert.JSONEq(t, `null`, string(decoded["eventNow"]))
	assert.JSONEq(t, `{"duration":300000,"current":300000,"playback":"stop","direction":"count-down"}`, string(decoded["auxtimer1"]))
}

func TestSnapshot_DiffBlocksByValue(t *testing.T) {
	a := initial()
	b := initial()
	a.CurrentBlock = &rundown.Block{ID: "x", Title: "Act"}
	b.CurrentBlock = &rundown.Block{ID: "x", Title: "Act"}
	assert.Empty(t, a.Diff(&b))

	b.Aux = append(b.Aux, auxtimer.State{})
	assert.Equal(t, []Key{AuxKey(2)}, a.Diff(&b))
}

func TestKey_AuxID(t *testing.T) {
	id, ok := Key("auxtimer3").AuxID()
	assert.True(t, ok)
	assert.Equal(t, 3, id)

	for _, k := range []Key{"auxtimer", "auxtimer0", "auxtimerx", KeyTimer} {
		_, ok := k.AuxID()
		assert.False(t, ok, k)
	}
}
