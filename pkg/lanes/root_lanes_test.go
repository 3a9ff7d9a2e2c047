package lanes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextLanesEmpty(t *testing.T) {
	r := NewRootLanes()
	assert.Equal(t, NoLanes, r.NextLanes(NoLanes))
}

func TestNextLanesPrefersUnsuspendedNonIdle(t *testing.T) {
	r := NewRootLanes()
	r.MarkUpdated(DefaultLane)
	r.MarkUpdated(TransitionLane1)
	r.MarkUpdated(IdleLane)
	assert.Equal(t, DefaultLane, r.NextLanes(NoLanes))

	r.MarkSuspended(DefaultLane)
	assert.Equal(t, TransitionLane1, r.NextLanes(NoLanes))

	r.MarkSuspended(TransitionLane1)
	assert.Equal(t, NoLanes, r.NextLanes(NoLanes), "suspended non-idle work blocks idle lanes")

	r.MarkPinged(TransitionLane1)
	assert.Equal(t, TransitionLane1, r.NextLanes(NoLanes), "pinged lanes are retry eligible")
}

func TestNextLanesIdleOnlyWhenNoNonIdle(t *testing.T) {
	r := NewRootLanes()
	r.MarkUpdated(IdleLane)
	assert.Equal(t, IdleLane, r.NextLanes(NoLanes))

	r.MarkSuspended(IdleLane)
	assert.Equal(t, NoLanes, r.NextLanes(NoLanes))
	r.MarkPinged(IdleLane)
	assert.Equal(t, IdleLane, r.NextLanes(NoLanes))
}

func TestNextLanesKeepsInProgressRender(t *testing.T) {
	t.Run("equal priority does not interrupt", func(t *testing.T) {
		r := NewRootLanes()
		r.MarkUpdated(TransitionLane1)
		r.MarkUpdated(TransitionLane2)
		assert.Equal(t, TransitionLane1, r.NextLanes(TransitionLane1))
	})

	t.Run("suspended wip is abandoned", func(t *testing.T) {
		r := NewRootLanes()
		r.MarkUpdated(TransitionLane1)
		r.MarkUpdated(TransitionLane2)
		r.MarkSuspended(TransitionLane1)
		assert.Equal(t, TransitionLane2, r.NextLanes(TransitionLane1))
	})

	t.Run("default does not interrupt transition", func(t *testing.T) {
		r := NewRootLanes()
		r.MarkUpdated(TransitionLane1)
		r.MarkUpdated(DefaultLane)
		assert.Equal(t, TransitionLane1, r.NextLanes(TransitionLane1))
	})

	t.Run("sync preempts", func(t *testing.T) {
		r := NewRootLanes()
		r.MarkUpdated(TransitionLane1)
		r.MarkUpdated(SyncLane)
		assert.Equal(t, SyncLane, r.NextLanes(TransitionLane1))
	})

	t.Run("continuous preempts default", func(t *testing.T) {
		r := NewRootLanes()
		r.MarkUpdated(DefaultLane)
		r.MarkUpdated(InputContinuousLane)
		assert.Equal(t, InputContinuousLane|DefaultLane, r.NextLanes(DefaultLane))
	})
}

func TestMarkUpdatedClearsSuspension(t *testing.T) {
	r := NewRootLanes()
	r.MarkUpdated(DefaultLane)
	r.MarkSuspended(DefaultLane)
	r.MarkPinged(DefaultLane)
	r.MarkUpdated(IdleLane)
	assert.Equal(t, DefaultLane, r.Suspended, "idle updates leave suspension alone")

	r.MarkUpdated(SyncLane)
	assert.Equal(t, NoLanes, r.Suspended)
	assert.Equal(t, NoLanes, r.Pinged)
}

func TestMarkPingedOnlySuspended(t *testing.T) {
	r := NewRootLanes()
	r.MarkUpdated(DefaultLane | RetryLane1)
	r.MarkSuspended(RetryLane1)
	r.MarkPinged(RetryLane1 | DefaultLane)
	assert.Equal(t, RetryLane1, r.Pinged)
}

func TestMarkFinished(t *testing.T) {
	r := NewRootLanes()
	r.MarkUpdated(SyncLane)
	r.MarkUpdated(DefaultLane)
	r.MarkStarvedLanesAsExpired(0)
	r.MarkFinished(DefaultLane)

	assert.Equal(t, DefaultLane, r.Pending)
	assert.Equal(t, NoTimestamp, r.ExpirationTimes[LaneToIndex(SyncLane)])
	assert.NotEqual(t, NoTimestamp, r.ExpirationTimes[LaneToIndex(DefaultLane)])
}

func TestMarkStarvedLanesAsExpired(t *testing.T) {
	r := NewRootLanes()
	r.MarkUpdated(DefaultLane)
	r.MarkUpdated(RetryLane1)

	r.MarkStarvedLanesAsExpired(time.Second)
	assert.Equal(t, time.Second+5*time.Second, r.ExpirationTimes[LaneToIndex(DefaultLane)])
	assert.Equal(t, NoTimestamp, r.ExpirationTimes[LaneToIndex(RetryLane1)])
	assert.Equal(t, NoLanes, r.Expired)

	r.MarkStarvedLanesAsExpired(6 * time.Second)
	assert.True(t, r.IncludesExpired(DefaultLane))
	assert.False(t, r.IncludesExpired(RetryLane1))
}

func TestSuspendedLanesDoNotGetExpirationUntilPinged(t *testing.T) {
	r := NewRootLanes()
	r.MarkUpdated(TransitionLane1)
	r.MarkSuspended(TransitionLane1)
	r.MarkStarvedLanesAsExpired(0)
	assert.Equal(t, NoTimestamp, r.ExpirationTimes[LaneToIndex(TransitionLane1)])

	r.MarkPinged(TransitionLane1)
	r.MarkStarvedLanesAsExpired(0)
	assert.Equal(t, 5*time.Second, r.ExpirationTimes[LaneToIndex(TransitionLane1)])
}
