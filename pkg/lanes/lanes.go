// Package lanes implements the bitset priority model used to tag updates.
//
// A Lanes value is a 31-bit mask. Each set bit is one independent lane and the
// bit position encodes urgency: lower bits are more urgent, so the highest
// priority lane of a set is its lowest set bit. Lanes are grouped into bands
// (sync, continuous input, default, transitions, retries, idle, offscreen,
// deferred) so that related work can be batched into a single render pass.
//
// Every operation in this package is pure bit arithmetic and never fails.
package lanes

import (
	"math/bits"
	"strings"
)

// Lanes is a set of lanes.
type Lanes uint32

// Lane is a Lanes value with exactly one bit set (or NoLane).
type Lane = Lanes

// TotalLanes is the number of usable lanes.
const TotalLanes = 31

const (
	NoLanes Lanes = 0
	NoLane  Lane  = 0

	SyncHydrationLane            Lane = 1 << 0
	SyncLane                     Lane = 1 << 1
	InputContinuousHydrationLane Lane = 1 << 2
	InputContinuousLane          Lane = 1 << 3
	DefaultHydrationLane         Lane = 1 << 4
	DefaultLane                  Lane = 1 << 5

	TransitionHydrationLane Lane = 1 << 6

	TransitionLane1  Lane = 1 << 7
	TransitionLane2  Lane = 1 << 8
	TransitionLane3  Lane = 1 << 9
	TransitionLane4  Lane = 1 << 10
	TransitionLane5  Lane = 1 << 11
	TransitionLane6  Lane = 1 << 12
	TransitionLane7  Lane = 1 << 13
	TransitionLane8  Lane = 1 << 14
	TransitionLane9  Lane = 1 << 15
	TransitionLane10 Lane = 1 << 16
	TransitionLane11 Lane = 1 << 17
	TransitionLane12 Lane = 1 << 18
	TransitionLane13 Lane = 1 << 19
	TransitionLane14 Lane = 1 << 20
	TransitionLane15 Lane = 1 << 21

	RetryLane1 Lane = 1 << 22
	RetryLane2 Lane = 1 << 23
	RetryLane3 Lane = 1 << 24
	RetryLane4 Lane = 1 << 25

	SelectiveHydrationLane Lane = 1 << 26
	IdleHydrationLane      Lane = 1 << 27
	IdleLane               Lane = 1 << 28
	OffscreenLane          Lane = 1 << 29
	DeferredLane           Lane = 1 << 30
)

const (
	// TransitionLanes covers the 15 round-robin transition lanes.
	TransitionLanes Lanes = TransitionLane1 | TransitionLane2 | TransitionLane3 | TransitionLane4 |
		TransitionLane5 | TransitionLane6 | TransitionLane7 | TransitionLane8 | TransitionLane9 |
		TransitionLane10 | TransitionLane11 | TransitionLane12 | TransitionLane13 |
		TransitionLane14 | TransitionLane15

	// RetryLanes covers the 4 round-robin retry lanes.
	RetryLanes Lanes = RetryLane1 | RetryLane2 | RetryLane3 | RetryLane4

	SyncUpdateLanes Lanes = SyncLane | InputContinuousLane | DefaultLane

	// NonIdleLanes is every lane below the idle band.
	NonIdleLanes Lanes = 0b0000111111111111111111111111111

	IdleLanes Lanes = IdleHydrationLane | IdleLane

	// UpdateLanes are the lanes an ordinary update can be assigned.
	UpdateLanes Lanes = SyncLane | InputContinuousLane | DefaultLane | TransitionLanes

	allLanes Lanes = 1<<TotalLanes - 1
)

// Merge returns the union of a and b.
func Merge(a, b Lanes) Lanes { return a | b }

// Remove returns set without the lanes in sub.
func Remove(set, sub Lanes) Lanes { return set &^ sub }

// Intersect returns the lanes present in both a and b.
func Intersect(a, b Lanes) Lanes { return a & b }

// IsSubset reports whether every lane of sub is in set.
func IsSubset(set, sub Lanes) bool { return set&sub == sub }

// IncludesSome reports whether a and b share at least one lane.
func IncludesSome(a, b Lanes) bool { return a&b != NoLanes }

// HighestPriorityLane isolates the lowest set bit, which is the most urgent lane.
func HighestPriorityLane(l Lanes) Lane { return l & -l }

// HigherPriorityLane returns whichever of a and b is more urgent.
// NoLane loses against any lane.
func HigherPriorityLane(a, b Lane) Lane {
	if a != NoLane && a < b {
		return a
	}
	if b == NoLane {
		return a
	}
	return b
}

// PickArbitraryLaneIndex returns the index of the most significant set lane.
// The result is -1 for NoLanes.
func PickArbitraryLaneIndex(l Lanes) int {
	return 31 - bits.LeadingZeros32(uint32(l))
}

// LaneToIndex returns the bit index of a single lane.
func LaneToIndex(l Lane) int { return PickArbitraryLaneIndex(l) }

// ForEach invokes fn for every lane in l, least significant first.
func ForEach(l Lanes, fn func(index int, lane Lane)) {
	for l != NoLanes {
		index := bits.TrailingZeros32(uint32(l))
		lane := Lane(1) << index
		fn(index, lane)
		l &^= lane
	}
}

// Count returns the number of lanes in l.
func Count(l Lanes) int { return bits.OnesCount32(uint32(l)) }

// IsSyncLane reports whether l contains a sync lane.
func IsSyncLane(l Lanes) bool { return l&(SyncLane|SyncHydrationLane) != NoLanes }

// IncludesSyncLane reports whether l contains a sync lane.
func IncludesSyncLane(l Lanes) bool { return IsSyncLane(l) }

// IncludesNonIdleWork reports whether l has any lane below the idle band.
func IncludesNonIdleWork(l Lanes) bool { return l&NonIdleLanes != NoLanes }

// IncludesOnlyRetries reports whether l is non-empty and made of retry lanes.
func IncludesOnlyRetries(l Lanes) bool { return l != NoLanes && l&RetryLanes == l }

// IncludesOnlyTransitions reports whether l is non-empty and made of transition lanes.
func IncludesOnlyTransitions(l Lanes) bool { return l != NoLanes && l&TransitionLanes == l }

// IncludesOnlyNonUrgentLanes reports whether l avoids the sync, input and default bands.
func IncludesOnlyNonUrgentLanes(l Lanes) bool {
	return l&(SyncUpdateLanes|SyncHydrationLane|InputContinuousHydrationLane|DefaultHydrationLane) == NoLanes
}

// IncludesBlockingLane reports whether l contains a lane that must not be time sliced.
func IncludesBlockingLane(l Lanes) bool {
	const blocking = SyncHydrationLane | SyncLane | InputContinuousHydrationLane |
		InputContinuousLane | DefaultHydrationLane | DefaultLane
	return l&blocking != NoLanes
}

// IsTransitionLane reports whether l contains a transition lane.
func IsTransitionLane(l Lanes) bool { return l&TransitionLanes != NoLanes }

// IsIdleLane reports whether l is made only of idle-band lanes.
func IsIdleLane(l Lanes) bool { return l != NoLanes && l&^(IdleLanes|OffscreenLane|DeferredLane) == NoLanes }

// GetHighestPriorityLanes returns the most urgent band present in l.
//
// Transition and retry lanes are returned as a group so that all pending
// transitions render together.
func GetHighestPriorityLanes(l Lanes) Lanes {
	if pending := l & SyncUpdateLanes; pending != NoLanes {
		return pending
	}
	switch lane := HighestPriorityLane(l); {
	case lane == SyncHydrationLane, lane == SyncLane,
		lane == InputContinuousHydrationLane, lane == InputContinuousLane,
		lane == DefaultHydrationLane, lane == DefaultLane,
		lane == TransitionHydrationLane:
		return lane
	case lane&TransitionLanes != NoLanes:
		return l & TransitionLanes
	case lane&RetryLanes != NoLanes:
		return l & RetryLanes
	case lane == SelectiveHydrationLane, lane == IdleHydrationLane,
		lane == IdleLane, lane == OffscreenLane, lane == DeferredLane:
		return lane
	default:
		return l
	}
}

var laneNames = [TotalLanes]string{
	"SyncHydration", "Sync", "InputContinuousHydration", "InputContinuous",
	"DefaultHydration", "Default", "TransitionHydration",
	"Transition1", "Transition2", "Transition3", "Transition4", "Transition5",
	"Transition6", "Transition7", "Transition8", "Transition9", "Transition10",
	"Transition11", "Transition12", "Transition13", "Transition14", "Transition15",
	"Retry1", "Retry2", "Retry3", "Retry4",
	"SelectiveHydration", "IdleHydration", "Idle", "Offscreen", "Deferred",
}

// Name returns the display name of a lane index.
func Name(index int) string {
	if index < 0 || index >= TotalLanes {
		return "?"
	}
	return laneNames[index]
}

func (l Lanes) String() string {
	if l == NoLanes {
		return "NoLanes"
	}
	var sb strings.Builder
	ForEach(l&allLanes, func(index int, _ Lane) {
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(laneNames[index])
	})
	if l&^allLanes != 0 {
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString("Invalid")
	}
	return sb.String()
}
