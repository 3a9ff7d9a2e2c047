package scheduler

import "time"

// maxVirtualFlushes bounds FlushAll so that a task which keeps rescheduling
// itself fails loudly instead of hanging a test.
const maxVirtualFlushes = 100000

// VirtualHost is a deterministic Host with a manual clock.
//
// Nothing runs until the test calls one of the Flush methods or AdvanceTime.
// Time only moves when the test moves it, so ShouldYield never reports true
// on its own; use SetShouldYieldAfter to simulate a slice running out.
type VirtualHost struct {
	now time.Duration

	callback func()

	timeout   func()
	timeoutAt time.Duration

	yieldAfter  int
	yieldChecks int
}

// NewVirtualHost returns a host whose clock starts at zero.
func NewVirtualHost() *VirtualHost {
	return &VirtualHost{}
}

// Now returns the virtual time.
func (h *VirtualHost) Now() time.Duration { return h.now }

// RequestCallback records fn as the next macrotask.
func (h *VirtualHost) RequestCallback(fn func()) { h.callback = fn }

// RequestTimeout records fn to fire once the clock reaches now+d.
func (h *VirtualHost) RequestTimeout(fn func(), d time.Duration) {
	h.timeout = fn
	h.timeoutAt = h.now + d
}

// CancelTimeout drops the pending timeout.
func (h *VirtualHost) CancelTimeout() { h.timeout = nil }

// ShouldYield implements YieldPolicy.
func (h *VirtualHost) ShouldYield(elapsed, frameInterval time.Duration) bool {
	if h.yieldAfter > 0 {
		h.yieldChecks++
		if h.yieldChecks >= h.yieldAfter {
			h.yieldChecks = 0
			return true
		}
		return false
	}
	return elapsed >= frameInterval
}

// SetShouldYieldAfter makes every nth ShouldYield check report true.
// Zero restores clock-based yielding.
func (h *VirtualHost) SetShouldYieldAfter(n int) {
	h.yieldAfter = n
	h.yieldChecks = 0
}

// HasPendingWork reports whether a macrotask or timeout is waiting.
func (h *VirtualHost) HasPendingWork() bool {
	return h.callback != nil || h.timeout != nil
}

// FlushOne runs the pending macrotask, if any, and reports whether it ran.
func (h *VirtualHost) FlushOne() bool {
	cb := h.callback
	if cb == nil {
		return false
	}
	h.callback = nil
	cb()
	return true
}

// FlushUntilIdle runs macrotasks until none is pending, without moving the
// clock. Delayed tasks stay queued.
func (h *VirtualHost) FlushUntilIdle() int {
	n := 0
	for h.FlushOne() {
		n++
		if n > maxVirtualFlushes {
			panic("scheduler: VirtualHost.FlushUntilIdle did not settle")
		}
	}
	return n
}

// FlushAll runs macrotasks and fires timeouts, jumping the clock forward to
// each timeout, until no work is left.
func (h *VirtualHost) FlushAll() int {
	n := 0
	for h.HasPendingWork() {
		if !h.FlushOne() {
			if h.timeoutAt > h.now {
				h.now = h.timeoutAt
			}
			h.fireTimeout()
		}
		n++
		if n > maxVirtualFlushes {
			panic("scheduler: VirtualHost.FlushAll did not settle")
		}
	}
	return n
}

// AdvanceTime moves the clock forward by d and fires the pending timeout if
// it is now due. Macrotasks it requests are left for a Flush call.
func (h *VirtualHost) AdvanceTime(d time.Duration) {
	h.now += d
	if h.timeout != nil && h.timeoutAt <= h.now {
		h.fireTimeout()
	}
}

func (h *VirtualHost) fireTimeout() {
	fn := h.timeout
	h.timeout = nil
	if fn != nil {
		fn()
	}
}
