// Package clock isolates the runtime from the host clock.
//
// Every elapsed or remaining value in the engine is computed from time.Time
// values obtained through a Clock. Differences between two readings from the
// System clock use Go's monotonic component, so a host clock jump never
// distorts a running timer. Schedule comparisons (roll, offsets) use the wall
// reading via MsOfDay.
package clock

import "time"

// DayMs is the length of a day in milliseconds.
const DayMs int64 = 24 * 60 * 60 * 1000

// Clock reads the current time.
type Clock interface {
	Now() time.Time
}

// System reads the host clock.
type System struct{}

// Now returns time.Now, including its monotonic reading.
func (System) Now() time.Time {
	return time.Now()
}

// MsOfDay returns the milliseconds elapsed since local midnight of t.
func MsOfDay(t time.Time) int64 {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return t.Sub(midnight).Milliseconds()
}

// Ms converts a duration to whole milliseconds.
func Ms(d time.Duration) int64 {
	return d.Milliseconds()
}

// Duration converts milliseconds to a time.Duration.
func Duration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// NormaliseDay folds ms into [0, DayMs).
func NormaliseDay(ms int64) int64 {
	ms %= DayMs
	if ms < 0 {
		ms += DayMs
	}
	return ms
}

// NearestDelta returns b-a on a 24h dial, choosing the representation in
// (-12h, 12h] so that 23:59 -> 00:01 reads as two minutes, not minus a day.
func NearestDelta(a, b int64) int64 {
	d := NormaliseDay(b - a)
	if d > DayMs/2 {
		d -= DayMs
	}
	return d
}
