package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_Advance(t *testing.T) {
	c := NewFakeClockAt(10, 0, 0)
	start := c.Now()

	got := c.Advance(1500 * time.Millisecond)

	assert.Equal(t, start.Add(1500*time.Millisecond), got)
	assert.Equal(t, got, c.Now())
}

func TestFakeClock_Set(t *testing.T) {
	c := NewFakeClockAt(10, 0, 0)
	target := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	c.Set(target)

	assert.Equal(t, target, c.Now())
}

func TestFakeClock_ConcurrentAdvance(t *testing.T) {
	c := NewFakeClockAt(0, 0, 0)
	start := c.Now()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100*time.Millisecond, c.Now().Sub(start))
}
