package fiber

import (
	"time"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// ensureRootIsScheduled records that root has pending work. Scheduling is
// deferred to a microtask so that every update made in the same task is
// batched into one render.
func (r *Reconciler) ensureRootIsScheduled(root *FiberRoot) {
	if r.scheduledSet.Add(root) {
		r.scheduledRoots = append(r.scheduledRoots, root)
	}
	r.mightHavePendingSyncWork = true
	if r.didScheduleMicrotask {
		return
	}
	r.didScheduleMicrotask = true
	r.host.ScheduleMicrotask(func() {
		if !r.didScheduleMicrotask {
			// Already processed by a synchronous flush.
			return
		}
		if err := r.processRootSchedule(); err != nil {
			r.renderLog.Err().Err(err).Log("scheduled work failed")
		}
	})
}

// processRootSchedule gives every scheduled root a task at the priority of
// its next lanes and then flushes sync work.
func (r *Reconciler) processRootSchedule() error {
	r.didScheduleMicrotask = false
	r.mightHavePendingSyncWork = false

	now := r.sched.Now()
	kept := r.scheduledRoots[:0]
	for _, root := range r.scheduledRoots {
		next := r.scheduleTaskForRoot(root, now)
		if next == lanes.NoLane {
			r.scheduledSet.Remove(root)
			continue
		}
		kept = append(kept, root)
		if lanes.IncludesSyncLane(next) {
			r.mightHavePendingSyncWork = true
		}
	}
	for i := len(kept); i < len(r.scheduledRoots); i++ {
		r.scheduledRoots[i] = nil
	}
	r.scheduledRoots = kept

	r.currentEventTransitionLane = lanes.NoLane
	return r.flushSyncWorkAcrossRoots()
}

// scheduleTaskForRoot makes root's scheduler task match its next lanes and
// returns the lane it is scheduled at. Sync lanes get no task; they are
// flushed at the end of the current event.
func (r *Reconciler) scheduleTaskForRoot(root *FiberRoot, now time.Duration) lanes.Lane {
	root.Lanes.MarkStarvedLanesAsExpired(now)

	wipLanes := lanes.NoLanes
	if root == r.ws.root {
		wipLanes = r.ws.renderLanes
	}
	next := root.Lanes.NextLanes(wipLanes)
	existing := root.CallbackNode

	suspendedOnData := root == r.ws.root && r.ws.reason == suspendedOnData
	if next == lanes.NoLanes || suspendedOnData {
		if existing != nil {
			r.sched.CancelCallback(existing)
		}
		root.CallbackNode = nil
		root.CallbackPriority = lanes.NoLane
		return lanes.NoLane
	}

	if lanes.IncludesSyncLane(next) {
		if existing != nil {
			r.sched.CancelCallback(existing)
		}
		root.CallbackNode = nil
		root.CallbackPriority = lanes.SyncLane
		return lanes.SyncLane
	}

	priority := lanes.HighestPriorityLane(next)
	if existing != nil && priority == root.CallbackPriority {
		return priority
	}
	if existing != nil {
		r.sched.CancelCallback(existing)
	}

	var sp scheduler.Priority
	switch lanes.LanesToEventPriority(next) {
	case lanes.DiscreteEventPriority:
		sp = scheduler.ImmediatePriority
	case lanes.ContinuousEventPriority:
		sp = scheduler.UserBlockingPriority
	case lanes.DefaultEventPriority:
		sp = scheduler.NormalPriority
	case lanes.IdleEventPriority:
		sp = scheduler.IdlePriority
	default:
		sp = scheduler.NormalPriority
	}
	root.CallbackPriority = priority
	root.CallbackNode = r.sched.ScheduleCallback(sp, func(didTimeout bool) scheduler.Callback {
		return r.performWorkOnRootViaSchedulerTask(root, didTimeout)
	})
	r.renderLog.Trace().
		Stringer("lanes", next).
		Stringer("priority", sp).
		Log("root task scheduled")
	return priority
}

// performWorkOnRootViaSchedulerTask is the body of a root's scheduler task.
// It returns a continuation while the same task should keep working.
func (r *Reconciler) performWorkOnRootViaSchedulerTask(root *FiberRoot, didTimeout bool) scheduler.Callback {
	original := root.CallbackNode
	if r.executionContext&(renderContext|commitContext) != 0 {
		r.renderLog.Err().Log("root task started while already working")
		r.dropCallback(root, original)
		return nil
	}

	if r.flushPassiveEffects() && root.CallbackNode != original {
		// A passive effect scheduled something else for this root.
		return nil
	}

	wipLanes := lanes.NoLanes
	if root == r.ws.root {
		wipLanes = r.ws.renderLanes
	}
	next := root.Lanes.NextLanes(wipLanes)
	if next == lanes.NoLanes {
		r.dropCallback(root, original)
		return nil
	}

	if err := r.performWorkOnRoot(root, next, didTimeout); err != nil {
		r.renderLog.Debug().Err(err).Stringer("lanes", next).Log("root task finished with error")
	}
	r.scheduleTaskForRoot(root, r.sched.Now())
	if root.CallbackNode != nil && root.CallbackNode == original {
		return func(didTimeout bool) scheduler.Callback {
			return r.performWorkOnRootViaSchedulerTask(root, didTimeout)
		}
	}
	return nil
}

// dropCallback forgets task when it is still root's callback and is about to
// finish without a continuation.
func (r *Reconciler) dropCallback(root *FiberRoot, task *scheduler.Task) {
	if root.CallbackNode == task {
		root.CallbackNode = nil
		root.CallbackPriority = lanes.NoLane
	}
}

// flushSyncWorkAcrossRoots renders and commits the sync lanes of every
// scheduled root.
func (r *Reconciler) flushSyncWorkAcrossRoots() error {
	if r.isFlushingWork || !r.mightHavePendingSyncWork {
		return nil
	}
	r.isFlushingWork = true
	defer func() { r.isFlushingWork = false }()

	var errs []error
	for {
		didPerformSomeWork := false
		for _, root := range append([]*FiberRoot(nil), r.scheduledRoots...) {
			wipLanes := lanes.NoLanes
			if root == r.ws.root {
				wipLanes = r.ws.renderLanes
			}
			next := root.Lanes.NextLanes(wipLanes)
			if !lanes.IncludesSyncLane(next) {
				continue
			}
			didPerformSomeWork = true
			if err := r.performWorkOnRoot(root, lanes.SyncLane, true); err != nil {
				errs = append(errs, err)
				if len(errs) > nestedUpdateLimit {
					return errors.Join(errs...)
				}
			}
		}
		if !didPerformSomeWork {
			break
		}
	}
	r.mightHavePendingSyncWork = false
	return errors.Join(errs...)
}
