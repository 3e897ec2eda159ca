package clock

import (
	"sync"
	"time"
)

// SimulatedClock is a Clock whose notion of "now" only moves when
// AdvanceTime is called. Used by the catalog, metadata-service and
// coherence-agent tests that need deterministic mtimes without real
// sleeps.
type SimulatedClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []simulatedWaiter
}

type simulatedWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewSimulatedClock returns a clock initially set to t.
func NewSimulatedClock(t time.Time) *SimulatedClock {
	return &SimulatedClock{now: t}
}

func (c *SimulatedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *SimulatedClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	deadline := c.now.Add(d)
	if !deadline.After(c.now) {
		ch <- c.now
		return ch
	}

	c.waiters = append(c.waiters, simulatedWaiter{deadline: deadline, ch: ch})
	return ch
}

// AdvanceTime moves the clock forward by d, firing any waiters whose
// deadline has passed.
func (c *SimulatedClock) AdvanceTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)

	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.deadline.After(c.now) {
			w.ch <- c.now
			continue
		}
		remaining = append(remaining, w)
	}
	c.waiters = remaining
}
