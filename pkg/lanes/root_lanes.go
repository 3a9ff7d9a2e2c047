package lanes

import "time"

// NoTimestamp marks a lane without an expiration time.
const NoTimestamp time.Duration = -1

const (
	syncLaneExpiration       = 250 * time.Millisecond
	transitionLaneExpiration = 5 * time.Second
)

// RootLanes is the per-root lane bookkeeping.
//
// The zero value is ready to use apart from ExpirationTimes, which NewRootLanes
// initializes to NoTimestamp.
type RootLanes struct {
	Pending   Lanes
	Suspended Lanes
	Pinged    Lanes
	Expired   Lanes

	ExpirationTimes [TotalLanes]time.Duration
}

// NewRootLanes returns bookkeeping with no pending work.
func NewRootLanes() RootLanes {
	var r RootLanes
	for i := range r.ExpirationTimes {
		r.ExpirationTimes[i] = NoTimestamp
	}
	return r
}

// MarkUpdated records a new update on lane.
//
// Any update might unblock suspended work, so non-idle updates clear the
// suspended and pinged sets and let the next render try again.
func (r *RootLanes) MarkUpdated(lane Lane) {
	r.Pending |= lane
	if lane != IdleLane {
		r.Suspended = NoLanes
		r.Pinged = NoLanes
	}
}

// MarkSuspended moves lanes into the suspended set.
func (r *RootLanes) MarkSuspended(suspended Lanes) {
	r.Suspended |= suspended
	r.Pinged &^= suspended
	ForEach(suspended, func(index int, _ Lane) {
		r.ExpirationTimes[index] = NoTimestamp
	})
}

// MarkPinged records that suspended lanes may now make progress.
func (r *RootLanes) MarkPinged(pinged Lanes) {
	r.Pinged |= r.Suspended & pinged
}

// MarkFinished drops every lane not in remaining after a commit.
func (r *RootLanes) MarkFinished(remaining Lanes) {
	finished := r.Pending &^ remaining
	r.Pending = remaining
	r.Suspended = NoLanes
	r.Pinged = NoLanes
	r.Expired &= remaining
	ForEach(finished, func(index int, _ Lane) {
		r.ExpirationTimes[index] = NoTimestamp
	})
}

// MarkStarvedLanesAsExpired assigns expiration times to pending lanes that
// lack one and moves lanes past their expiration time into Expired.
func (r *RootLanes) MarkStarvedLanesAsExpired(now time.Duration) {
	ForEach(r.Pending, func(index int, lane Lane) {
		expiration := r.ExpirationTimes[index]
		switch {
		case expiration == NoTimestamp:
			if lane&r.Suspended == NoLanes || lane&r.Pinged != NoLanes {
				r.ExpirationTimes[index] = ComputeExpirationTime(lane, now)
			}
		case expiration <= now:
			r.Expired |= lane
		}
	})
}

// IncludesExpired reports whether any of l has expired on this root.
func (r *RootLanes) IncludesExpired(l Lanes) bool {
	return l&r.Expired != NoLanes
}

// NextLanes picks the lanes the next render pass should work on.
//
// Unsuspended non-idle lanes win, then pinged non-idle lanes; idle lanes are
// only considered when no non-idle work is pending. When wipLanes is non-empty a
// render is already in progress, and it is kept unless the candidate is
// strictly more urgent. A default update never interrupts a transition render.
func (r *RootLanes) NextLanes(wipLanes Lanes) Lanes {
	pending := r.Pending
	if pending == NoLanes {
		return NoLanes
	}

	next := NoLanes
	if nonIdle := pending & NonIdleLanes; nonIdle != NoLanes {
		if unblocked := nonIdle &^ r.Suspended; unblocked != NoLanes {
			next = GetHighestPriorityLanes(unblocked)
		} else if pinged := nonIdle & r.Pinged; pinged != NoLanes {
			next = GetHighestPriorityLanes(pinged)
		}
	} else {
		if unblocked := pending &^ r.Suspended; unblocked != NoLanes {
			next = GetHighestPriorityLanes(unblocked)
		} else if r.Pinged != NoLanes {
			next = GetHighestPriorityLanes(r.Pinged)
		}
	}
	if next == NoLanes {
		return NoLanes
	}

	if wipLanes != NoLanes && wipLanes != next && wipLanes&r.Suspended == NoLanes {
		nextLane := HighestPriorityLane(next)
		wipLane := HighestPriorityLane(wipLanes)
		if nextLane >= wipLane || (nextLane == DefaultLane && wipLane&TransitionLanes != NoLanes) {
			return wipLanes
		}
	}
	return next
}

// ComputeExpirationTime returns when work on lane should stop yielding.
func ComputeExpirationTime(lane Lane, now time.Duration) time.Duration {
	switch {
	case lane&(SyncHydrationLane|SyncLane|InputContinuousHydrationLane|InputContinuousLane) != NoLanes:
		return now + syncLaneExpiration
	case lane&(DefaultHydrationLane|DefaultLane|TransitionHydrationLane|TransitionLanes) != NoLanes:
		return now + transitionLaneExpiration
	default:
		// Retries, idle, offscreen and deferred work never expire.
		return NoTimestamp
	}
}
