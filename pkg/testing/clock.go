package testing

import (
	"time"

	"github.com/go-drift/fiber/pkg/scheduler"
)

// Epoch is the wall time a FakeClock reports before it is advanced.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// FakeClock reports the virtual scheduler time as wall-clock time, for
// components that format or compare timestamps. Advancing it advances the
// scheduler, firing any timeout that falls due.
//
// A FakeClock is not safe for concurrent use.
type FakeClock struct {
	host  *scheduler.VirtualHost
	epoch time.Time
}

// NewFakeClock returns a clock that reads Epoch at the host's current time.
func NewFakeClock(host *scheduler.VirtualHost) *FakeClock {
	return &FakeClock{host: host, epoch: Epoch.Add(-host.Now())}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	return c.epoch.Add(c.host.Now())
}

// Since returns the fake time elapsed since t.
func (c *FakeClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Advance moves the clock and the scheduler forward by d. Negative values
// are ignored; the scheduler clock is monotonic.
func (c *FakeClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.host.AdvanceTime(d)
}

// Set makes Now report t. Moving forward advances the scheduler; moving
// backward only shifts the wall time.
func (c *FakeClock) Set(t time.Time) {
	if d := t.Sub(c.Now()); d > 0 {
		c.host.AdvanceTime(d)
		return
	}
	c.epoch = t.Add(-c.host.Now())
}
