package repositories

import (
	"sync"
	"time"
)

// Clock supplies timestamps to the in-memory stores.
type Clock func() time.Time

// monotonicClock never returns the same instant twice, so creation order and
// timestamp order agree even when the wall clock is coarse.
type monotonicClock struct {
	mu   sync.Mutex
	next Clock
	last time.Time
}

func newMonotonicClock(next Clock) *monotonicClock {
	if next == nil {
		next = time.Now
	}
	return &monotonicClock{next: next}
}

func (c *monotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next().UTC()
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}
