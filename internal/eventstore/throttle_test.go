package eventstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu  sync.Mutex
	got []Change
}

func (c *collector) notify(ch Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, ch)
}

func (c *collector) changes() []Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Change(nil), c.got...)
}

func TestThrottled_LeadingAndTrailing(t *testing.T) {
	var c collector
	th := Throttle(50*time.Millisecond, c.notify)
	defer th.Stop()

	s1, s2, s3 := &Snapshot{Clock: 1}, &Snapshot{Clock: 2}, &Snapshot{Clock: 3}
	th.Notify(Change{Keys: []Key{KeyClock}, Snapshot: s1})
	th.Notify(Change{Keys: []Key{KeyTimer}, Snapshot: s2})
	th.Notify(Change{Keys: []Key{KeyClock}, Snapshot: s3})

	require.Len(t, c.changes(), 1, "leading call is immediate")
	assert.Same(t, s1, c.changes()[0].Snapshot)

	require.Eventually(t, func() bool { return len(c.changes()) == 2 }, time.Second, 5*time.Millisecond)
	trailing := c.changes()[1]
	assert.Same(t, s3, trailing.Snapshot, "latest snapshot wins")
	assert.ElementsMatch(t, []Key{KeyTimer, KeyClock}, trailing.Keys)
}

func TestThrottled_StopDropsPending(t *testing.T) {
	var c collector
	th := Throttle(20*time.Millisecond, c.notify)

	th.Notify(Change{Keys: []Key{KeyClock}, Snapshot: &Snapshot{}})
	th.Notify(Change{Keys: []Key{KeyClock}, Snapshot: &Snapshot{}})
	th.Stop()
	th.Notify(Change{Keys: []Key{KeyClock}, Snapshot: &Snapshot{}})

	time.Sleep(60 * time.Millisecond)
	assert.Len(t, c.changes(), 1)
}

func TestThrottled_QuietPeriodDeliversImmediately(t *testing.T) {
	var c collector
	th := Throttle(10*time.Millisecond, c.notify)
	defer th.Stop()

	th.Notify(Change{Snapshot: &Snapshot{}})
	time.Sleep(30 * time.Millisecond)
	th.Notify(Change{Snapshot: &Snapshot{}})

	assert.Len(t, c.changes(), 2)
}
