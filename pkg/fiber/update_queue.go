package fiber

import (
	"github.com/go-drift/fiber/pkg/lanes"
)

// State is the state of roots and error boundaries.
type State map[string]any

// UpdateTag selects how an update's payload is applied.
type UpdateTag uint8

const (
	UpdateState UpdateTag = iota
	ReplaceState
	ForceUpdate
	CaptureUpdate
)

// Update is a queued state change.
//
// Payload is a State, which is merged into the previous state, a
// func(prev State, props Props) State, or nil.
type Update struct {
	Lane     lanes.Lane
	Tag      UpdateTag
	Payload  any
	Callback func()

	next *Update
}

// SharedQueue is shared between a fiber and its alternate. Pending points at
// the last update of a circular list.
type SharedQueue struct {
	Pending *Update
	Lanes   lanes.Lanes
}

// UpdateQueue holds the updates of a fiber. The base chain keeps updates that
// were skipped for lack of priority, and every update after them, so that
// they are reapplied in order.
type UpdateQueue struct {
	BaseState       State
	FirstBaseUpdate *Update
	LastBaseUpdate  *Update
	Shared          *SharedQueue
	Callbacks       []func()

	hasForceUpdate bool
}

func initializeUpdateQueue(f *Fiber) {
	state, _ := f.MemoizedState.(State)
	f.UpdateQueue = &UpdateQueue{
		BaseState: state,
		Shared:    &SharedQueue{},
	}
}

// cloneUpdateQueue gives wip its own queue if it still shares current's.
func cloneUpdateQueue(current, wip *Fiber) {
	queue, _ := wip.UpdateQueue.(*UpdateQueue)
	currentQueue, _ := current.UpdateQueue.(*UpdateQueue)
	if queue == nil || queue != currentQueue {
		return
	}
	wip.UpdateQueue = &UpdateQueue{
		BaseState:       currentQueue.BaseState,
		FirstBaseUpdate: currentQueue.FirstBaseUpdate,
		LastBaseUpdate:  currentQueue.LastBaseUpdate,
		Shared:          currentQueue.Shared,
	}
}

func createUpdate(lane lanes.Lane) *Update {
	return &Update{Lane: lane, Tag: UpdateState}
}

// enqueueUpdate appends update to the pending ring.
func enqueueUpdate(shared *SharedQueue, update *Update) {
	pending := shared.Pending
	if pending == nil {
		update.next = update
	} else {
		update.next = pending.next
		pending.next = update
	}
	shared.Pending = update
}

// enqueueCapturedUpdate appends update directly to wip's base chain so that it
// is processed during this render only.
func enqueueCapturedUpdate(wip *Fiber, update *Update) {
	queue, _ := wip.UpdateQueue.(*UpdateQueue)
	if queue == nil {
		initializeUpdateQueue(wip)
		queue = wip.UpdateQueue.(*UpdateQueue)
	}
	if current := wip.Alternate; current != nil {
		if currentQueue, _ := current.UpdateQueue.(*UpdateQueue); currentQueue == queue {
			var first, last *Update
			for u := queue.FirstBaseUpdate; u != nil; u = u.next {
				clone := &Update{Lane: u.Lane, Tag: u.Tag, Payload: u.Payload, Callback: u.Callback}
				if last == nil {
					first = clone
				} else {
					last.next = clone
				}
				last = clone
			}
			queue = &UpdateQueue{
				BaseState:       currentQueue.BaseState,
				FirstBaseUpdate: first,
				LastBaseUpdate:  last,
				Shared:          currentQueue.Shared,
			}
			wip.UpdateQueue = queue
		}
	}
	if queue.LastBaseUpdate == nil {
		queue.FirstBaseUpdate = update
	} else {
		queue.LastBaseUpdate.next = update
	}
	queue.LastBaseUpdate = update
}

// processUpdateQueue applies the updates whose lanes are in renderLanes and
// stores the result in wip.MemoizedState. It returns the lanes that were
// skipped.
func processUpdateQueue(wip *Fiber, props Props, renderLanes lanes.Lanes) lanes.Lanes {
	queue := wip.UpdateQueue.(*UpdateQueue)
	queue.hasForceUpdate = false

	first, last := queue.FirstBaseUpdate, queue.LastBaseUpdate

	if pending := queue.Shared.Pending; pending != nil {
		queue.Shared.Pending = nil

		// Cut the ring and append it to the base chain, on current as well so
		// the updates survive if this render is thrown away.
		lastPending := pending
		firstPending := lastPending.next
		lastPending.next = nil
		if last == nil {
			first = firstPending
		} else {
			last.next = firstPending
		}
		last = lastPending

		if current := wip.Alternate; current != nil {
			if currentQueue, _ := current.UpdateQueue.(*UpdateQueue); currentQueue != nil && currentQueue != queue {
				if currentQueue.LastBaseUpdate != lastPending {
					if currentQueue.LastBaseUpdate == nil {
						currentQueue.FirstBaseUpdate = firstPending
					} else {
						currentQueue.LastBaseUpdate.next = firstPending
					}
					currentQueue.LastBaseUpdate = lastPending
				}
			}
		}
	}

	if first == nil {
		return lanes.NoLanes
	}

	newState := queue.BaseState
	newLanes := lanes.NoLanes
	var newBaseState State
	var newFirst, newLast *Update

	update := first
	for {
		if !lanes.IsSubset(renderLanes, update.Lane) {
			clone := &Update{Lane: update.Lane, Tag: update.Tag, Payload: update.Payload, Callback: update.Callback}
			if newLast == nil {
				newFirst, newLast = clone, clone
				newBaseState = newState
			} else {
				newLast.next = clone
				newLast = clone
			}
			newLanes = lanes.Merge(newLanes, update.Lane)
		} else {
			if newLast != nil {
				clone := &Update{Lane: lanes.NoLane, Tag: update.Tag, Payload: update.Payload, Callback: update.Callback}
				newLast.next = clone
				newLast = clone
			}
			newState = getStateFromUpdate(wip, queue, update, newState, props)
			if update.Callback != nil {
				wip.Flags |= Callback
				queue.Callbacks = append(queue.Callbacks, update.Callback)
			}
		}

		update = update.next
		if update == nil {
			pending := queue.Shared.Pending
			if pending == nil {
				break
			}
			// A payload enqueued more updates; keep going with them.
			lastPending := pending
			firstPending := lastPending.next
			lastPending.next = nil
			update = firstPending
			queue.LastBaseUpdate = lastPending
			queue.Shared.Pending = nil
		}
	}

	if newLast == nil {
		newBaseState = newState
	}
	queue.BaseState = newBaseState
	queue.FirstBaseUpdate = newFirst
	queue.LastBaseUpdate = newLast

	wip.Lanes = newLanes
	wip.MemoizedState = newState
	return newLanes
}

func getStateFromUpdate(wip *Fiber, queue *UpdateQueue, update *Update, prev State, props Props) State {
	switch update.Tag {
	case ReplaceState:
		switch p := update.Payload.(type) {
		case func(State, Props) State:
			return p(prev, props)
		case State:
			return p
		default:
			return nil
		}
	case CaptureUpdate:
		wip.Flags = (wip.Flags &^ ShouldCapture) | DidCapture
		fallthrough
	case UpdateState:
		var partial State
		switch p := update.Payload.(type) {
		case func(State, Props) State:
			partial = p(prev, props)
		case State:
			partial = p
		}
		if partial == nil {
			return prev
		}
		next := make(State, len(prev)+len(partial))
		for k, v := range prev {
			next[k] = v
		}
		for k, v := range partial {
			next[k] = v
		}
		return next
	case ForceUpdate:
		queue.hasForceUpdate = true
	}
	return prev
}

// commitCallbacks runs and clears the callbacks collected by
// processUpdateQueue.
func commitCallbacks(queue *UpdateQueue) {
	callbacks := queue.Callbacks
	queue.Callbacks = nil
	for _, cb := range callbacks {
		cb()
	}
}
