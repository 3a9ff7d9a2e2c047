package fiber

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
)

// Thenable is a value a component can suspend on. Then registers a callback
// that runs once the value settles, immediately if it already has. Thenables
// are used as map keys and must be comparable.
type Thenable interface {
	Then(onSettled func())
}

// SuspendedError is returned by a component that is waiting on a Thenable.
type SuspendedError struct {
	Thenable Thenable
}

func (e *SuspendedError) Error() string { return "component suspended" }

// Suspend returns the error a component returns to suspend on t.
func Suspend(t Thenable) error { return &SuspendedError{Thenable: t} }

// Deferred is a Thenable settled by calling Resolve. It must be used from the
// reconciler's goroutine.
type Deferred struct {
	resolved  bool
	callbacks []func()
}

// NewDeferred returns an unresolved Deferred.
func NewDeferred() *Deferred { return &Deferred{} }

func (d *Deferred) Then(fn func()) {
	if d.resolved {
		fn()
		return
	}
	d.callbacks = append(d.callbacks, fn)
}

// Resolve settles d and runs every registered callback once.
func (d *Deferred) Resolve() {
	if d.resolved {
		return
	}
	d.resolved = true
	callbacks := d.callbacks
	d.callbacks = nil
	for _, fn := range callbacks {
		fn()
	}
}

// Resolved reports whether Resolve has been called.
func (d *Deferred) Resolved() bool { return d.resolved }

var errSyncSuspend = errors.New("a component suspended while responding to synchronous input, but no Suspense boundary was found")

// throwException routes value, raised by source, to the nearest boundary
// above returnFiber. It returns an error when nothing can handle it.
func (r *Reconciler) throwException(root *FiberRoot, returnFiber, source *Fiber, value error, renderLanes lanes.Lanes) error {
	source.Flags |= Incomplete

	var se *SuspendedError
	if errors.As(value, &se) && se.Thenable != nil {
		thenable := se.Thenable
		if boundary := nearestSuspenseBoundary(returnFiber); boundary != nil {
			boundary.Flags |= ShouldCapture
			boundary.Lanes = renderLanes
			retries, _ := boundary.UpdateQueue.(mapset.Set[Thenable])
			if retries == nil {
				retries = mapset.NewSet[Thenable]()
				boundary.UpdateQueue = retries
			}
			retries.Add(thenable)
			r.attachPingListener(root, thenable, renderLanes)
			r.renderLog.Debug().
				Str("boundary", boundary.String()).
				Str("source", source.String()).
				Log("suspended")
			return nil
		}
		if !lanes.IncludesSyncLane(renderLanes) {
			// No boundary: keep the current tree and wait for the ping.
			r.attachPingListener(root, thenable, renderLanes)
			r.renderDidSuspendDelayIfPossible()
			return nil
		}
		value = &errors.FiberError{
			Op:    "fiber.throwException",
			Kind:  errors.KindRender,
			Err:   errSyncSuspend,
			Fiber: source.String(),
		}
	}

	r.renderDidError()
	boundary := nearestErrorBoundary(returnFiber)
	if boundary == nil {
		return value
	}
	r.reportCaught(value)
	r.renderLog.Debug().
		Str("boundary", boundary.String()).
		Str("source", source.String()).
		Err(value).
		Log("error captured")
	boundary.Flags |= ShouldCapture
	lane := lanes.HighestPriorityLane(renderLanes)
	boundary.Lanes = lanes.Merge(boundary.Lanes, lane)
	update := createUpdate(lane)
	update.Tag = CaptureUpdate
	update.Payload = State{"error": value}
	enqueueCapturedUpdate(boundary, update)
	return nil
}

// nearestSuspenseBoundary skips boundaries rendering their fallback in this
// pass, so a suspending fallback reaches the next boundary up.
func nearestSuspenseBoundary(f *Fiber) *Fiber {
	for node := f; node != nil; node = node.Return {
		if node.Tag == SuspenseComponent && node.MemoizedState == nil {
			return node
		}
	}
	return nil
}

// nearestErrorBoundary skips boundaries that already captured during this
// render, so an error in a fallback reaches the next boundary up.
func nearestErrorBoundary(f *Fiber) *Fiber {
	for node := f; node != nil; node = node.Return {
		if node.Tag == ErrorBoundary && node.Flags&DidCapture == 0 {
			return node
		}
	}
	return nil
}

// unwindWork pops whatever wip pushed during begin. It returns wip when it
// is a boundary that captured.
func (r *Reconciler) unwindWork(wip *Fiber) (*Fiber, error) {
	switch wip.Tag {
	case SuspenseComponent, ErrorBoundary:
		if wip.Flags&ShouldCapture != 0 {
			wip.Flags = (wip.Flags &^ ShouldCapture) | DidCapture
			return wip, nil
		}
		return nil, nil
	case HostRoot:
		r.popHostContainer()
		return nil, nil
	case ContextProvider:
		r.popProvider(wip.Type.(*Context))
		return nil, nil
	case FunctionComponent, HostComponent, HostText, FragmentTag:
		return nil, nil
	default:
		return nil, unknownTag("fiber.unwindWork", wip)
	}
}

func (r *Reconciler) attachPingListener(root *FiberRoot, thenable Thenable, renderLanes lanes.Lanes) {
	listening, ok := root.pingCache[thenable]
	if !ok {
		listening = mapset.NewSet[lanes.Lanes]()
		root.pingCache[thenable] = listening
	}
	if listening.Contains(renderLanes) {
		return
	}
	listening.Add(renderLanes)
	thenable.Then(func() { r.pingSuspendedRoot(root, thenable, renderLanes) })
}

func (r *Reconciler) pingSuspendedRoot(root *FiberRoot, thenable Thenable, pinged lanes.Lanes) {
	delete(root.pingCache, thenable)
	root.Lanes.MarkPinged(pinged)
	r.renderLog.Debug().Stringer("lanes", pinged).Log("root pinged")

	if r.ws.root == root && lanes.IsSubset(r.ws.renderLanes, pinged) {
		if r.ws.exitStatus == RootSuspendedWithDelay && r.executionContext&renderContext == 0 {
			// The render in progress can only end up suspended; start over.
			r.ws.root = nil
			r.ws.wip = nil
			r.ws.renderLanes = lanes.NoLanes
		} else {
			r.ws.pingedLanes = lanes.Merge(r.ws.pingedLanes, pinged)
		}
	}
	r.ensureRootIsScheduled(root)
}

// attachRetryListeners subscribes a committed boundary to the thenables it
// is waiting on.
func (r *Reconciler) attachRetryListeners(boundary *Fiber, thenables mapset.Set[Thenable]) {
	cache, _ := boundary.StateNode.(mapset.Set[Thenable])
	if cache == nil {
		cache = mapset.NewSet[Thenable]()
		boundary.StateNode = cache
		if alt := boundary.Alternate; alt != nil {
			alt.StateNode = cache
		}
	}
	for _, t := range thenables.ToSlice() {
		if cache.Contains(t) {
			continue
		}
		cache.Add(t)
		thenable := t
		thenable.Then(func() { r.resolveRetryThenable(boundary, thenable) })
	}
}

func (r *Reconciler) resolveRetryThenable(boundary *Fiber, thenable Thenable) {
	if cache, _ := boundary.StateNode.(mapset.Set[Thenable]); cache != nil {
		cache.Remove(thenable)
	}
	lane := r.alloc.ClaimNextRetryLane()
	markUpdateLaneFromFiberToRoot(boundary, lane)
	root := getRootForUpdatedFiber(boundary)
	if root == nil {
		return
	}
	root.Lanes.MarkUpdated(lane)
	r.renderLog.Debug().Stringer("lane", lane).Str("boundary", boundary.String()).Log("retrying suspended boundary")
	r.ensureRootIsScheduled(root)
}
