package fiber

import (
	"fmt"
	"strconv"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/joeycumines/logiface"
	"github.com/petermattis/goid"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// Scheduler is the task scheduler the reconciler runs concurrent work on.
// *scheduler.Scheduler implements it.
type Scheduler interface {
	Now() time.Duration
	ScheduleCallback(p scheduler.Priority, cb scheduler.Callback, opts ...scheduler.ScheduleOption) *scheduler.Task
	CancelCallback(task *scheduler.Task)
	ShouldYield() bool
}

// Options configures a Reconciler. The zero value is valid.
type Options struct {
	// Logger receives render and commit events. Nil disables logging.
	Logger *logiface.Logger[logiface.Event]
	// OnUncaughtError is called with errors that no boundary captured.
	OnUncaughtError func(root *FiberRoot, err error)
	// OnCaughtError is called when an error boundary captures an error.
	OnCaughtError func(err error)
	// OnRecoverableError is called when a host method fails during commit.
	OnRecoverableError func(err error)
	// IdentifierPrefix is prepended to identifiers generated by UseID.
	IdentifierPrefix string
}

type executionContext uint8

const (
	noContext      executionContext = 0
	batchedContext executionContext = 1 << 0
	renderContext  executionContext = 1 << 1
	commitContext  executionContext = 1 << 2
)

// nestedUpdateLimit bounds synchronous commit-render cycles.
const nestedUpdateLimit = 50

// transition marks updates made inside StartTransition.
type transition struct{}

// Reconciler renders element trees into a HostConfig.
type Reconciler struct {
	host   HostConfig
	sched  Scheduler
	opts   Options
	owner  int64
	alloc  lanes.Allocator
	ws     workState
	logger *logiface.Logger[logiface.Event]

	renderLog *logiface.Logger[logiface.Event]
	commitLog *logiface.Logger[logiface.Event]
	hostLog   *logiface.Logger[logiface.Event]

	executionContext           executionContext
	currentUpdatePriority      lanes.EventPriority
	currentTransition          *transition
	currentEventTransitionLane lanes.Lane

	// scheduledRoots is kept in scheduling order; scheduledSet mirrors it for
	// membership checks.
	scheduledRoots           []*FiberRoot
	scheduledSet             mapset.Set[*FiberRoot]
	didScheduleMicrotask     bool
	mightHavePendingSyncWork bool
	isFlushingWork           bool

	rootDoesHavePassiveEffects    bool
	rootWithPendingPassiveEffects *FiberRoot
	pendingPassiveEffectsLanes    lanes.Lanes
	passiveTask                   *scheduler.Task

	nestedUpdateCount int
	nestedUpdateRoot  *FiberRoot

	idCounter int64
}

// NewReconciler creates a reconciler bound to the calling goroutine.
func NewReconciler(host HostConfig, sched Scheduler, opts Options) *Reconciler {
	r := &Reconciler{
		host:         host,
		sched:        sched,
		opts:         opts,
		owner:        goid.Get(),
		logger:       opts.Logger,
		scheduledSet: mapset.NewSet[*FiberRoot](),
	}
	r.renderLog = opts.Logger.Clone().Str("category", "render").Logger()
	r.commitLog = opts.Logger.Clone().Str("category", "commit").Logger()
	r.hostLog = opts.Logger.Clone().Str("category", "host").Logger()
	if !host.SupportsMutation() {
		r.host = detachedHost{host}
		r.hostLog.Info().Log("host does not support mutation; commits will not touch mounted nodes")
	}
	return r
}

// checkGoroutine panics when called off the owning goroutine. A reconciler's
// trees are not synchronized.
func (r *Reconciler) checkGoroutine(op string) {
	if id := goid.Get(); id != r.owner {
		panic(&errors.FiberError{
			Op:   op,
			Kind: errors.KindInvariant,
			Err:  errors.Invariantf("reconciler owned by goroutine %d called from goroutine %d", r.owner, id),
		})
	}
}

// CreateContainer creates a root that renders into container.
func (r *Reconciler) CreateContainer(container Instance) *FiberRoot {
	r.checkGoroutine("fiber.CreateContainer")
	return newFiberRoot(container)
}

// UpdateContainer schedules node to be rendered into root and returns the
// lane the update was assigned.
func (r *Reconciler) UpdateContainer(node Node, root *FiberRoot) lanes.Lane {
	return r.UpdateContainerWithCallback(node, root, nil)
}

// UpdateContainerWithCallback is UpdateContainer with a callback that runs
// after the update commits.
func (r *Reconciler) UpdateContainerWithCallback(node Node, root *FiberRoot, callback func()) lanes.Lane {
	r.checkGoroutine("fiber.UpdateContainer")
	current := root.Current
	lane := r.requestUpdateLane(current)

	update := createUpdate(lane)
	update.Payload = State{"element": node}
	update.Callback = callback

	queue := current.UpdateQueue.(*UpdateQueue)
	if fr := r.enqueueConcurrentClassUpdate(current, queue.Shared, update, lane); fr != nil {
		r.scheduleUpdateOnFiber(fr, current, lane)
	}
	return lane
}

// ScheduleUpdateOnFiber marks lane pending on root and makes sure the root is
// scheduled. fiber is the fiber that received the update.
func (r *Reconciler) ScheduleUpdateOnFiber(root *FiberRoot, f *Fiber, lane lanes.Lane) {
	r.checkGoroutine("fiber.ScheduleUpdateOnFiber")
	markUpdateLaneFromFiberToRoot(f, lane)
	r.scheduleUpdateOnFiber(root, f, lane)
}

func (r *Reconciler) scheduleUpdateOnFiber(root *FiberRoot, f *Fiber, lane lanes.Lane) {
	root.Lanes.MarkUpdated(lane)

	if r.executionContext&renderContext != 0 && root == r.ws.root {
		// An update to another component during render.
		r.ws.renderPhaseUpdatedLanes = lanes.Merge(r.ws.renderPhaseUpdatedLanes, lane)
		return
	}
	if root == r.ws.root {
		r.ws.interleavedUpdatedLanes = lanes.Merge(r.ws.interleavedUpdatedLanes, lane)
		if r.ws.exitStatus == RootSuspendedWithDelay {
			r.markRootSuspended(root, r.ws.renderLanes)
		}
	}
	r.ensureRootIsScheduled(root)
}

// requestUpdateLane picks the lane for an update made right now.
func (r *Reconciler) requestUpdateLane(*Fiber) lanes.Lane {
	if r.executionContext&renderContext != 0 && r.ws.renderLanes != lanes.NoLanes {
		return lanes.HighestPriorityLane(r.ws.renderLanes)
	}
	if r.currentTransition != nil {
		if r.currentEventTransitionLane == lanes.NoLane {
			r.currentEventTransitionLane = r.alloc.ClaimNextTransitionLane()
		}
		return r.currentEventTransitionLane
	}
	if r.currentUpdatePriority != lanes.NoEventPriority {
		return r.currentUpdatePriority.Lane()
	}
	return lanes.DefaultLane
}

// FlushSync runs fn with discrete priority and then flushes sync work on
// every root.
func (r *Reconciler) FlushSync(fn func()) error {
	r.checkGoroutine("fiber.FlushSync")
	prevTransition := r.currentTransition
	prevPriority := r.currentUpdatePriority
	prevContext := r.executionContext
	r.executionContext |= batchedContext
	r.currentTransition = nil
	r.currentUpdatePriority = lanes.DiscreteEventPriority
	func() {
		defer func() {
			r.currentUpdatePriority = prevPriority
			r.currentTransition = prevTransition
			r.executionContext = prevContext
		}()
		if fn != nil {
			fn()
		}
	}()
	if r.executionContext&(renderContext|commitContext) != 0 {
		return nil
	}
	return r.flushSyncWorkAcrossRoots()
}

// DiscreteUpdates runs fn so that its updates get the sync lane.
func (r *Reconciler) DiscreteUpdates(fn func()) {
	r.RunWithPriority(lanes.DiscreteEventPriority, fn)
}

// RunWithPriority runs fn with updates assigned to p's lane.
func (r *Reconciler) RunWithPriority(p lanes.EventPriority, fn func()) {
	r.checkGoroutine("fiber.RunWithPriority")
	prev := r.currentUpdatePriority
	r.currentUpdatePriority = p
	defer func() { r.currentUpdatePriority = prev }()
	fn()
}

// StartTransition runs fn with its updates marked as a transition.
func (r *Reconciler) StartTransition(fn func()) {
	r.checkGoroutine("fiber.StartTransition")
	prev := r.currentTransition
	r.currentTransition = &transition{}
	defer func() { r.currentTransition = prev }()
	fn()
}

// BatchedUpdates runs fn. Updates are always batched until the next
// microtask; this only marks the execution context.
func (r *Reconciler) BatchedUpdates(fn func()) {
	r.checkGoroutine("fiber.BatchedUpdates")
	prev := r.executionContext
	r.executionContext |= batchedContext
	defer func() {
		r.executionContext = prev
	}()
	fn()
}

// maxActIterations bounds Act's flush loop.
const maxActIterations = 1000

// Act runs fn and then synchronously flushes every microtask, render,
// commit and passive effect it caused, including follow-up work. Suspended
// lanes are left pending.
func (r *Reconciler) Act(fn func()) error {
	r.checkGoroutine("fiber.Act")
	if fn != nil {
		fn()
	}
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for i := 0; ; i++ {
		if i >= maxActIterations {
			keep(&errors.FiberError{
				Op:   "fiber.Act",
				Kind: errors.KindInvariant,
				Err:  errors.Invariantf("work did not settle after %d iterations", maxActIterations),
			})
			return firstErr
		}
		progressed := false
		if r.didScheduleMicrotask {
			keep(r.processRootSchedule())
			progressed = true
		}
		if r.flushPassiveEffects() {
			progressed = true
		}
		for _, root := range append([]*FiberRoot(nil), r.scheduledRoots...) {
			next := root.Lanes.NextLanes(lanes.NoLanes)
			if next == lanes.NoLanes {
				continue
			}
			if root.CallbackNode != nil {
				r.sched.CancelCallback(root.CallbackNode)
				root.CallbackNode = nil
				root.CallbackPriority = lanes.NoLane
			}
			keep(r.performWorkOnRoot(root, next, true))
			r.scheduleTaskForRoot(root, r.sched.Now())
			progressed = true
		}
		if !progressed {
			return firstErr
		}
	}
}

func (r *Reconciler) reportUncaught(root *FiberRoot, err error) {
	root.lastError = err
	r.renderLog.Err().Err(err).Log("uncaught render error")
	if r.opts.OnUncaughtError != nil {
		r.opts.OnUncaughtError(root, err)
		return
	}
	fe := &errors.FiberError{Op: "fiber.render", Kind: kindOf(err), Err: err}
	errors.Report(fe)
}

func (r *Reconciler) reportCaught(err error) {
	var re *errors.RenderError
	if errors.As(err, &re) {
		errors.ReportRenderError(re)
	}
	if r.opts.OnCaughtError != nil {
		r.opts.OnCaughtError(err)
	}
}

// reportHostError reports a failed host call made during commit. The commit
// carries on.
func (r *Reconciler) reportHostError(method string, f *Fiber, err error) {
	fe := &errors.FiberError{
		Op:        "fiber.commitRoot",
		Kind:      errors.KindHost,
		Err:       hostError(method, f, err),
		Fiber:     f.String(),
		Timestamp: time.Now(),
	}
	r.hostLog.Err().Str("method", method).Str("fiber", fe.Fiber).Err(err).Log("host operation failed")
	errors.Report(fe)
	if r.opts.OnRecoverableError != nil {
		r.opts.OnRecoverableError(fe)
	}
}

func kindOf(err error) errors.ErrorKind {
	var fe *errors.FiberError
	var he *errors.HookError
	var ie *errors.InvariantError
	var re *errors.RenderError
	switch {
	case errors.As(err, &he):
		return errors.KindMisuse
	case errors.As(err, &ie):
		return errors.KindInvariant
	case errors.As(err, &fe):
		return fe.Kind
	case errors.As(err, &re):
		return errors.KindRender
	default:
		return errors.KindUnknown
	}
}

// isFatal reports whether err bypasses error boundaries.
func isFatal(err error) bool {
	switch kindOf(err) {
	case errors.KindMisuse, errors.KindInvariant:
		return true
	}
	return false
}

func (r *Reconciler) nextID() string {
	id := r.idCounter
	r.idCounter++
	return fmt.Sprintf(":%sr%s:", r.opts.IdentifierPrefix, strconv.FormatInt(id, 32))
}
