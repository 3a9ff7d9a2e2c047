package lanes

// Allocator hands out transition and retry lanes round-robin.
//
// Each reconciler owns one allocator. The zero value starts at TransitionLane1
// and RetryLane1.
type Allocator struct {
	nextTransition Lane
	nextRetry      Lane
}

// ClaimNextTransitionLane returns the next transition lane, wrapping back to
// TransitionLane1 after TransitionLane15.
func (a *Allocator) ClaimNextTransitionLane() Lane {
	if a.nextTransition == NoLane {
		a.nextTransition = TransitionLane1
	}
	lane := a.nextTransition
	a.nextTransition <<= 1
	if a.nextTransition&TransitionLanes == NoLanes {
		a.nextTransition = TransitionLane1
	}
	return lane
}

// ClaimNextRetryLane returns the next retry lane, wrapping back to RetryLane1
// after RetryLane4.
func (a *Allocator) ClaimNextRetryLane() Lane {
	if a.nextRetry == NoLane {
		a.nextRetry = RetryLane1
	}
	lane := a.nextRetry
	a.nextRetry <<= 1
	if a.nextRetry&RetryLanes == NoLanes {
		a.nextRetry = RetryLane1
	}
	return lane
}

// EventPriority is the coarse priority of the event that caused an update.
type EventPriority Lane

const (
	NoEventPriority         EventPriority = EventPriority(NoLane)
	DiscreteEventPriority   EventPriority = EventPriority(SyncLane)
	ContinuousEventPriority EventPriority = EventPriority(InputContinuousLane)
	DefaultEventPriority    EventPriority = EventPriority(DefaultLane)
	IdleEventPriority       EventPriority = EventPriority(IdleLane)
)

// Lane returns the lane an update with this priority is assigned.
func (p EventPriority) Lane() Lane { return Lane(p) }

func (p EventPriority) String() string {
	switch p {
	case NoEventPriority:
		return "none"
	case DiscreteEventPriority:
		return "discrete"
	case ContinuousEventPriority:
		return "continuous"
	case DefaultEventPriority:
		return "default"
	case IdleEventPriority:
		return "idle"
	default:
		return Lanes(p).String()
	}
}

func isHigherEventPriority(a, b EventPriority) bool {
	return a != NoEventPriority && a < b
}

// LanesToEventPriority maps the most urgent lane of l to an event priority.
func LanesToEventPriority(l Lanes) EventPriority {
	lane := EventPriority(HighestPriorityLane(l))
	if !isHigherEventPriority(DiscreteEventPriority, lane) {
		return DiscreteEventPriority
	}
	if !isHigherEventPriority(ContinuousEventPriority, lane) {
		return ContinuousEventPriority
	}
	if IncludesNonIdleWork(Lanes(lane)) {
		return DefaultEventPriority
	}
	return IdleEventPriority
}
