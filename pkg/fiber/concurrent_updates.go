package fiber

import (
	"github.com/go-drift/fiber/pkg/lanes"
)

// concurrentUpdate is an update waiting to be linked into its queue. Updates
// are buffered while a render may be reading the queues and linked in at the
// next safe point.
type concurrentUpdate struct {
	fiber *Fiber
	lane  lanes.Lane

	shared *SharedQueue
	update *Update

	hookQueue  *hookQueue
	hookUpdate *hookUpdate
}

func (r *Reconciler) enqueueConcurrentClassUpdate(f *Fiber, shared *SharedQueue, update *Update, lane lanes.Lane) *FiberRoot {
	r.ws.concurrentQueues = append(r.ws.concurrentQueues, concurrentUpdate{fiber: f, lane: lane, shared: shared, update: update})
	r.markConcurrentLane(f, lane)
	return getRootForUpdatedFiber(f)
}

func (r *Reconciler) enqueueConcurrentHookUpdate(f *Fiber, queue *hookQueue, update *hookUpdate, lane lanes.Lane) *FiberRoot {
	r.ws.concurrentQueues = append(r.ws.concurrentQueues, concurrentUpdate{fiber: f, lane: lane, hookQueue: queue, hookUpdate: update})
	r.markConcurrentLane(f, lane)
	return getRootForUpdatedFiber(f)
}

// enqueueConcurrentHookUpdateAndEagerlyBailout records an update whose result
// is already known to be unchanged. It does not schedule a render; the update
// is kept only so that a later rebase sees it.
func (r *Reconciler) enqueueConcurrentHookUpdateAndEagerlyBailout(f *Fiber, queue *hookQueue, update *hookUpdate) {
	r.ws.concurrentQueues = append(r.ws.concurrentQueues, concurrentUpdate{fiber: f, lane: lanes.NoLane, hookQueue: queue, hookUpdate: update})
	if r.ws.root == nil {
		r.finishQueueingConcurrentUpdates()
	}
}

func (r *Reconciler) markConcurrentLane(f *Fiber, lane lanes.Lane) {
	r.ws.concurrentlyUpdatedLanes = lanes.Merge(r.ws.concurrentlyUpdatedLanes, lane)
	f.Lanes = lanes.Merge(f.Lanes, lane)
	if alt := f.Alternate; alt != nil {
		alt.Lanes = lanes.Merge(alt.Lanes, lane)
	}
}

// finishQueueingConcurrentUpdates links every buffered update into its queue
// and marks the lanes on the path to the root.
func (r *Reconciler) finishQueueingConcurrentUpdates() {
	queued := r.ws.concurrentQueues
	r.ws.concurrentQueues = nil
	r.ws.concurrentlyUpdatedLanes = lanes.NoLanes

	for _, cu := range queued {
		switch {
		case cu.shared != nil:
			enqueueUpdate(cu.shared, cu.update)
		case cu.hookQueue != nil:
			pending := cu.hookQueue.pending
			if pending == nil {
				cu.hookUpdate.next = cu.hookUpdate
			} else {
				cu.hookUpdate.next = pending.next
				pending.next = cu.hookUpdate
			}
			cu.hookQueue.pending = cu.hookUpdate
		}
		if cu.lane != lanes.NoLane {
			markUpdateLaneFromFiberToRoot(cu.fiber, cu.lane)
		}
	}
}

// markUpdateLaneFromFiberToRoot adds lane to the childLanes of every ancestor
// of source, on both trees.
func markUpdateLaneFromFiberToRoot(source *Fiber, lane lanes.Lane) {
	source.Lanes = lanes.Merge(source.Lanes, lane)
	if alt := source.Alternate; alt != nil {
		alt.Lanes = lanes.Merge(alt.Lanes, lane)
	}
	for parent := source.Return; parent != nil; parent = parent.Return {
		parent.ChildLanes = lanes.Merge(parent.ChildLanes, lane)
		if alt := parent.Alternate; alt != nil {
			alt.ChildLanes = lanes.Merge(alt.ChildLanes, lane)
		}
	}
}

// getRootForUpdatedFiber walks to the HostRoot. It returns nil for fibers
// that have been unmounted.
func getRootForUpdatedFiber(f *Fiber) *FiberRoot {
	node := f
	for node.Return != nil {
		node = node.Return
	}
	if node.Tag != HostRoot {
		return nil
	}
	root, _ := node.StateNode.(*FiberRoot)
	return root
}
