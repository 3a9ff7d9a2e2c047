package fiber

import (
	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
)

// RenderOutcome is the exit status of a render pass.
type RenderOutcome uint8

const (
	RootInProgress RenderOutcome = iota
	RootFatalErrored
	RootErrored
	RootSuspended
	RootSuspendedWithDelay
	RootCompleted
	RootDidNotComplete
)

func (o RenderOutcome) String() string {
	switch o {
	case RootInProgress:
		return "in-progress"
	case RootFatalErrored:
		return "fatal-errored"
	case RootErrored:
		return "errored"
	case RootSuspended:
		return "suspended"
	case RootSuspendedWithDelay:
		return "suspended-with-delay"
	case RootCompleted:
		return "completed"
	case RootDidNotComplete:
		return "did-not-complete"
	default:
		return "unknown"
	}
}

// suspendedReason records why the unit of work stopped.
type suspendedReason uint8

const (
	notSuspended suspendedReason = iota
	suspendedOnError
	suspendedOnData
)

// workState holds the cursors of the render in progress. prepareFreshStack
// resets it.
type workState struct {
	root        *FiberRoot
	wip         *Fiber
	renderLanes lanes.Lanes
	exitStatus  RenderOutcome
	fatalError  error
	reason      suspendedReason

	skippedLanes            lanes.Lanes
	pingedLanes             lanes.Lanes
	renderPhaseUpdatedLanes lanes.Lanes
	interleavedUpdatedLanes lanes.Lanes

	didReceiveUpdate bool

	// Hook cursors for the component being rendered.
	renderingFiber                  *Fiber
	didScheduleRenderPhaseUpdate    bool
	didScheduleRenderPhaseUpdateNow bool

	concurrentQueues         []concurrentUpdate
	concurrentlyUpdatedLanes lanes.Lanes

	contextValues  map[*Context]any
	contextStack   []contextFrame
	hostContainers []Instance
}

func (r *Reconciler) prepareFreshStack(root *FiberRoot, renderLanes lanes.Lanes) *Fiber {
	root.FinishedWork = nil
	root.FinishedLanes = lanes.NoLanes

	ws := &r.ws
	ws.root = root
	rootWIP := createWorkInProgress(root.Current, nil)
	ws.wip = rootWIP
	ws.renderLanes = renderLanes
	ws.exitStatus = RootInProgress
	ws.fatalError = nil
	ws.reason = notSuspended
	ws.skippedLanes = lanes.NoLanes
	ws.pingedLanes = lanes.NoLanes
	ws.renderPhaseUpdatedLanes = lanes.NoLanes
	ws.interleavedUpdatedLanes = lanes.NoLanes
	ws.didReceiveUpdate = false
	ws.renderingFiber = nil
	ws.contextValues = make(map[*Context]any)
	ws.contextStack = ws.contextStack[:0]
	ws.hostContainers = ws.hostContainers[:0]

	r.finishQueueingConcurrentUpdates()
	return rootWIP
}

func (r *Reconciler) renderRootSync(root *FiberRoot, renderLanes lanes.Lanes) RenderOutcome {
	prevContext := r.executionContext
	r.executionContext |= renderContext

	if r.ws.root != root || r.ws.renderLanes != renderLanes {
		r.logRenderStart(renderLanes, "sync")
		r.prepareFreshStack(root, renderLanes)
	}
	r.workLoopSync()

	r.executionContext = prevContext
	if r.ws.wip != nil {
		r.ws.exitStatus = RootFatalErrored
		r.ws.fatalError = errors.Invariantf("cannot commit an incomplete root")
	}
	return r.finishRender()
}

func (r *Reconciler) renderRootConcurrent(root *FiberRoot, renderLanes lanes.Lanes) RenderOutcome {
	prevContext := r.executionContext
	r.executionContext |= renderContext

	if r.ws.root != root || r.ws.renderLanes != renderLanes {
		r.logRenderStart(renderLanes, "concurrent")
		r.prepareFreshStack(root, renderLanes)
	}
	r.workLoopConcurrent()

	r.executionContext = prevContext
	if r.ws.wip != nil {
		r.renderLog.Trace().Stringer("lanes", renderLanes).Log("render yielded")
		return RootInProgress
	}
	return r.finishRender()
}

func (r *Reconciler) finishRender() RenderOutcome {
	status := r.ws.exitStatus
	r.ws.root = nil
	r.ws.renderLanes = lanes.NoLanes
	r.finishQueueingConcurrentUpdates()
	return status
}

func (r *Reconciler) workLoopSync() {
	for r.ws.wip != nil {
		r.performUnitOfWork(r.ws.wip)
	}
}

func (r *Reconciler) workLoopConcurrent() {
	for r.ws.wip != nil && !r.sched.ShouldYield() {
		r.performUnitOfWork(r.ws.wip)
	}
}

func (r *Reconciler) performUnitOfWork(unit *Fiber) {
	next, err := r.beginWork(unit.Alternate, unit, r.ws.renderLanes)
	if err != nil {
		r.handleThrow(unit, err)
		return
	}
	unit.MemoizedProps = unit.PendingProps
	if next != nil {
		r.ws.wip = next
		return
	}
	r.completeUnitOfWork(unit)
}

func (r *Reconciler) completeUnitOfWork(unit *Fiber) {
	completed := unit
	for completed != nil {
		if completed.Flags&Incomplete != 0 {
			r.unwindUnitOfWork(completed)
			return
		}
		returnFiber := completed.Return
		next, err := r.completeWork(completed.Alternate, completed, r.ws.renderLanes)
		if err != nil {
			r.handleThrow(completed, err)
			return
		}
		if next != nil {
			r.ws.wip = next
			return
		}
		if sibling := completed.Sibling; sibling != nil {
			r.ws.wip = sibling
			return
		}
		completed = returnFiber
		r.ws.wip = completed
	}
	if r.ws.exitStatus == RootInProgress {
		r.ws.exitStatus = RootCompleted
	}
}

func (r *Reconciler) unwindUnitOfWork(unit *Fiber) {
	incomplete := unit
	for incomplete != nil {
		next, err := r.unwindWork(incomplete)
		if err != nil {
			r.fatal(err)
			return
		}
		if next != nil {
			// The boundary captured; begin it again in its captured state.
			next.Flags &= HostEffectMask
			r.ws.wip = next
			return
		}
		returnFiber := incomplete.Return
		if returnFiber != nil {
			returnFiber.Flags |= Incomplete
			returnFiber.SubtreeFlags = NoFlags
			returnFiber.Deletions = nil
		}
		incomplete = returnFiber
	}
	r.ws.exitStatus = RootDidNotComplete
	r.ws.wip = nil
}

// handleThrow classifies err raised while working on unit and either stops
// the render or hands the error to the nearest boundary.
func (r *Reconciler) handleThrow(unit *Fiber, err error) {
	r.ws.didReceiveUpdate = false
	r.ws.renderingFiber = nil

	if isFatal(err) {
		r.fatal(err)
		return
	}
	var se *SuspendedError
	if errors.As(err, &se) {
		r.ws.reason = suspendedOnData
	} else {
		r.ws.reason = suspendedOnError
	}
	returnFiber := unit.Return
	if returnFiber == nil {
		r.fatal(err)
		return
	}
	if terr := r.throwException(r.ws.root, returnFiber, unit, err, r.ws.renderLanes); terr != nil {
		r.fatal(terr)
		return
	}
	r.ws.reason = notSuspended
	r.unwindUnitOfWork(unit)
}

func (r *Reconciler) fatal(err error) {
	r.ws.exitStatus = RootFatalErrored
	r.ws.fatalError = err
	r.ws.wip = nil
}

func (r *Reconciler) renderDidSuspend() {
	if r.ws.exitStatus == RootInProgress {
		r.ws.exitStatus = RootSuspended
	}
}

func (r *Reconciler) renderDidSuspendDelayIfPossible() {
	r.ws.exitStatus = RootSuspendedWithDelay
}

func (r *Reconciler) renderDidError() {
	if r.ws.exitStatus != RootSuspendedWithDelay {
		r.ws.exitStatus = RootErrored
	}
}

func (r *Reconciler) markSkippedUpdateLanes(l lanes.Lanes) {
	r.ws.skippedLanes = lanes.Merge(r.ws.skippedLanes, l)
}

func (r *Reconciler) markRootSuspended(root *FiberRoot, suspended lanes.Lanes) {
	suspended = lanes.Remove(suspended, r.ws.pingedLanes)
	suspended = lanes.Remove(suspended, r.ws.interleavedUpdatedLanes)
	root.Lanes.MarkSuspended(suspended)
}

// performWorkOnRoot renders lanes on root and commits the result when the
// render finishes.
func (r *Reconciler) performWorkOnRoot(root *FiberRoot, renderLanes lanes.Lanes, forceSync bool) error {
	if r.executionContext&(renderContext|commitContext) != 0 {
		return errors.Invariantf("should not already be working")
	}
	shouldTimeSlice := !forceSync &&
		!lanes.IncludesBlockingLane(renderLanes) &&
		!root.Lanes.IncludesExpired(renderLanes)

	var status RenderOutcome
	if shouldTimeSlice {
		status = r.renderRootConcurrent(root, renderLanes)
	} else {
		status = r.renderRootSync(root, renderLanes)
	}

	if status == RootErrored && shouldTimeSlice {
		// The tree may have been read mid-update; try once more without
		// yielding before showing an error fallback.
		r.renderLog.Debug().Stringer("lanes", renderLanes).Log("retrying errored render synchronously")
		status = r.renderRootSync(root, renderLanes)
	}

	switch status {
	case RootInProgress:
		return nil
	case RootDidNotComplete:
		r.markRootSuspended(root, renderLanes)
		return nil
	case RootFatalErrored:
		err := r.ws.fatalError
		r.markRootSuspended(root, renderLanes)
		r.reportUncaught(root, err)
		return err
	case RootSuspendedWithDelay:
		if lanes.IncludesOnlyTransitions(renderLanes) || lanes.IncludesOnlyRetries(renderLanes) {
			r.markRootSuspended(root, renderLanes)
			r.renderLog.Debug().Stringer("lanes", renderLanes).Log("render suspended, keeping current tree")
			return nil
		}
	case RootErrored, RootSuspended, RootCompleted:
	default:
		return errors.Invariantf("unknown render outcome %d", status)
	}

	root.FinishedWork = root.Current.Alternate
	root.FinishedLanes = renderLanes
	return r.commitRoot(root)
}

func (r *Reconciler) logRenderStart(renderLanes lanes.Lanes, mode string) {
	r.renderLog.Debug().
		Stringer("lanes", renderLanes).
		Str("mode", mode).
		Dur("now", r.sched.Now()).
		Log("render started")
}
