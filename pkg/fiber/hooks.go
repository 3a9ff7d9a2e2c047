package fiber

import (
	"time"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
)

// renderPhaseUpdateLimit bounds re-renders caused by a component updating its
// own state while rendering.
const renderPhaseUpdateLimit = 25

type dispatcherMode uint8

const (
	hooksInvalid dispatcherMode = iota
	hooksMount
	hooksUpdate
	hooksRerender
)

// Hooks is the handle a component uses to call hooks. It is only valid for
// the duration of the render it was passed to.
type Hooks struct {
	r         *Reconciler
	fiber     *Fiber
	current   *Fiber
	component *Component
	mode      dispatcherMode

	currentHook *hook
	wipHook     *hook
	renderLanes lanes.Lanes
}

// Fiber returns the fiber being rendered.
func (h *Hooks) Fiber() *Fiber { return h.fiber }

type hook struct {
	memoizedState any
	baseState     any
	baseQueue     *hookUpdate
	queue         *hookQueue
	next          *hook
}

type hookUpdate struct {
	lane          lanes.Lane
	action        any
	hasEagerState bool
	eagerState    any
	next          *hookUpdate
}

type hookQueue struct {
	pending             *hookUpdate
	dispatch            any
	lastRenderedReducer func(state, action any) any
	lastRenderedState   any
}

// hookPanic carries a hook misuse error out of a component body.
type hookPanic struct {
	err *errors.HookError
}

func (h *Hooks) fail(reason error) {
	panic(hookPanic{err: h.hookError(reason)})
}

func (h *Hooks) hookError(reason error) *errors.HookError {
	name := ""
	if h.component != nil {
		name = h.component.Name
	}
	return &errors.HookError{Component: name, Reason: reason}
}

func (h *Hooks) mountWorkInProgressHook() *hook {
	hk := &hook{}
	if h.wipHook == nil {
		h.fiber.MemoizedState = hk
	} else {
		h.wipHook.next = hk
	}
	h.wipHook = hk
	return hk
}

// updateWorkInProgressHook advances both hook cursors. It reuses a hook built
// by a previous pass of the same render, or clones the matching current hook.
func (h *Hooks) updateWorkInProgressHook() *hook {
	var nextCurrent *hook
	if h.currentHook == nil {
		if h.current != nil {
			nextCurrent, _ = h.current.MemoizedState.(*hook)
		}
	} else {
		nextCurrent = h.currentHook.next
	}

	var nextWIP *hook
	if h.wipHook == nil {
		nextWIP, _ = h.fiber.MemoizedState.(*hook)
	} else {
		nextWIP = h.wipHook.next
	}

	if nextWIP != nil {
		h.wipHook = nextWIP
		h.currentHook = nextCurrent
		return nextWIP
	}

	if nextCurrent == nil {
		if h.current == nil {
			h.fail(errors.ErrUpdateHookOnMount)
		}
		h.fail(errors.ErrMoreHooks)
	}
	h.currentHook = nextCurrent
	hk := &hook{
		memoizedState: nextCurrent.memoizedState,
		baseState:     nextCurrent.baseState,
		baseQueue:     nextCurrent.baseQueue,
		queue:         nextCurrent.queue,
	}
	if h.wipHook == nil {
		h.fiber.MemoizedState = hk
	} else {
		h.wipHook.next = hk
	}
	h.wipHook = hk
	return hk
}

// use returns the next hook and whether it is being mounted.
func (h *Hooks) use() (*hook, bool) {
	switch h.mode {
	case hooksMount:
		return h.mountWorkInProgressHook(), true
	case hooksUpdate, hooksRerender:
		return h.updateWorkInProgressHook(), false
	default:
		h.fail(errors.ErrInvalidHookCall)
		return nil, false
	}
}

func as[T any](v any) T {
	t, _ := v.(T)
	return t
}

// renderWithHooks calls the component, re-running it while it schedules
// updates to itself.
func (r *Reconciler) renderWithHooks(current, wip *Fiber, comp *Component, props Props, renderLanes lanes.Lanes) (Node, error) {
	r.ws.renderingFiber = wip
	wip.MemoizedState = nil
	wip.UpdateQueue = nil
	wip.Lanes = lanes.NoLanes

	h := &Hooks{r: r, fiber: wip, current: current, component: comp, renderLanes: renderLanes}
	updating := current != nil && current.MemoizedState != nil
	if updating {
		h.mode = hooksUpdate
	} else {
		h.mode = hooksMount
	}

	children, err := r.callComponent(h, comp, props)
	for passes := 0; err == nil && r.ws.didScheduleRenderPhaseUpdateNow; passes++ {
		r.ws.didScheduleRenderPhaseUpdateNow = false
		if passes >= renderPhaseUpdateLimit {
			err = h.hookError(errors.ErrTooManyRerenders)
			break
		}
		h.currentHook = nil
		h.wipHook = nil
		wip.UpdateQueue = nil
		h.mode = hooksRerender
		children, err = r.callComponent(h, comp, props)
	}

	h.mode = hooksInvalid
	r.ws.renderingFiber = nil
	if err != nil {
		r.resetHooksOnUnwind(wip)
		return nil, err
	}
	r.ws.didScheduleRenderPhaseUpdate = false
	if updating && fewerHooks(h.currentHook, current) {
		return nil, h.hookError(errors.ErrFewerHooks)
	}
	return children, nil
}

// fewerHooks reports whether the last render stopped before the end of the
// current hook list. last is the final current hook it consumed.
func fewerHooks(last *hook, current *Fiber) bool {
	if last == nil {
		return current.MemoizedState != nil
	}
	return last.next != nil
}

// resetHooksOnUnwind drops render-phase updates of a render that threw, so
// they are not applied to the next attempt.
func (r *Reconciler) resetHooksOnUnwind(wip *Fiber) {
	if r.ws.didScheduleRenderPhaseUpdate {
		for hk, _ := wip.MemoizedState.(*hook); hk != nil; hk = hk.next {
			if hk.queue != nil {
				hk.queue.pending = nil
			}
		}
	}
	r.ws.didScheduleRenderPhaseUpdate = false
	r.ws.didScheduleRenderPhaseUpdateNow = false
}

// callComponent runs the component body, turning panics into render errors.
func (r *Reconciler) callComponent(h *Hooks, comp *Component, props Props) (children Node, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			children = nil
			if hp, ok := rec.(hookPanic); ok {
				err = hp.err
				return
			}
			err = &errors.RenderError{
				Component:  comp.Name,
				Recovered:  rec,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			}
		}
	}()
	children, err = comp.Render(h, props)
	if err == nil {
		return children, nil
	}
	var se *SuspendedError
	var he *errors.HookError
	var re *errors.RenderError
	if errors.As(err, &se) || errors.As(err, &he) || errors.As(err, &re) || isFatal(err) {
		return nil, err
	}
	return nil, &errors.RenderError{Component: comp.Name, Err: err, Timestamp: time.Now()}
}

func bailoutHooks(current, wip *Fiber, renderLanes lanes.Lanes) {
	wip.UpdateQueue = current.UpdateQueue
	wip.Flags &^= Passive | UpdateEffect
	current.Lanes = lanes.Remove(current.Lanes, renderLanes)
}

func basicStateReducer(state, action any) any {
	if fn, ok := action.(func(any) any); ok {
		return fn(state)
	}
	return action
}

// reducerHook implements the state machinery shared by UseState and
// UseReducer.
func (h *Hooks) reducerHook(reducer func(state, action any) any, initial func() any) (any, *hookQueue) {
	hk, mount := h.use()
	if mount {
		state := initial()
		hk.memoizedState = state
		hk.baseState = state
		hk.queue = &hookQueue{lastRenderedReducer: reducer, lastRenderedState: state}
		return state, hk.queue
	}
	if hk.queue == nil {
		h.fail(errors.ErrHookTypeChanged)
	}
	if h.mode == hooksRerender {
		return h.rerenderReducer(hk, reducer), hk.queue
	}
	return h.updateReducer(hk, reducer), hk.queue
}

func (h *Hooks) updateReducer(hk *hook, reducer func(state, action any) any) any {
	queue := hk.queue
	queue.lastRenderedReducer = reducer
	current := h.currentHook

	baseQueue := current.baseQueue
	if pending := queue.pending; pending != nil {
		if baseQueue != nil {
			baseFirst := baseQueue.next
			pendingFirst := pending.next
			baseQueue.next = pendingFirst
			pending.next = baseFirst
		}
		baseQueue = pending
		current.baseQueue = baseQueue
		queue.pending = nil
	}

	if baseQueue == nil {
		// Nothing to process; the cloned hook already holds current's state.
		queue.lastRenderedState = hk.memoizedState
		return hk.memoizedState
	}

	first := baseQueue.next
	newState := current.baseState
	var newBaseState any
	var newFirst, newLast *hookUpdate

	update := first
	for {
		if !lanes.IsSubset(h.renderLanes, update.lane) {
			clone := &hookUpdate{lane: update.lane, action: update.action, hasEagerState: update.hasEagerState, eagerState: update.eagerState}
			if newLast == nil {
				newFirst, newLast = clone, clone
				newBaseState = newState
			} else {
				newLast.next = clone
				newLast = clone
			}
			h.fiber.Lanes = lanes.Merge(h.fiber.Lanes, update.lane)
			h.r.markSkippedUpdateLanes(update.lane)
		} else {
			if newLast != nil {
				clone := &hookUpdate{lane: lanes.NoLane, action: update.action, hasEagerState: update.hasEagerState, eagerState: update.eagerState}
				newLast.next = clone
				newLast = clone
			}
			if update.hasEagerState {
				newState = update.eagerState
			} else {
				newState = reducer(newState, update.action)
			}
		}
		update = update.next
		if update == nil || update == first {
			break
		}
	}

	if newLast == nil {
		newBaseState = newState
	} else {
		newLast.next = newFirst
	}

	if !objectIs(newState, hk.memoizedState) {
		h.r.ws.didReceiveUpdate = true
	}
	hk.memoizedState = newState
	hk.baseState = newBaseState
	hk.baseQueue = newLast
	queue.lastRenderedState = newState
	return newState
}

func (h *Hooks) rerenderReducer(hk *hook, reducer func(state, action any) any) any {
	queue := hk.queue
	queue.lastRenderedReducer = reducer
	newState := hk.memoizedState
	if last := queue.pending; last != nil {
		queue.pending = nil
		first := last.next
		update := first
		for {
			newState = reducer(newState, update.action)
			update = update.next
			if update == first {
				break
			}
		}
		if !objectIs(newState, hk.memoizedState) {
			h.r.ws.didReceiveUpdate = true
		}
		hk.memoizedState = newState
		if hk.baseQueue == nil {
			hk.baseState = newState
		}
		queue.lastRenderedState = newState
	}
	return newState
}

func (r *Reconciler) isRenderPhaseUpdate(f *Fiber) bool {
	rf := r.ws.renderingFiber
	return rf != nil && (f == rf || f.Alternate == rf)
}

func (r *Reconciler) dispatchAction(f *Fiber, queue *hookQueue, action any, eager bool) {
	r.checkGoroutine("fiber.dispatch")
	lane := r.requestUpdateLane(f)
	update := &hookUpdate{lane: lane, action: action}

	if r.isRenderPhaseUpdate(f) {
		r.ws.didScheduleRenderPhaseUpdate = true
		r.ws.didScheduleRenderPhaseUpdateNow = true
		if pending := queue.pending; pending == nil {
			update.next = update
		} else {
			update.next = pending.next
			pending.next = update
		}
		queue.pending = update
		return
	}

	if eager && f.Lanes == lanes.NoLanes && (f.Alternate == nil || f.Alternate.Lanes == lanes.NoLanes) {
		if reducer := queue.lastRenderedReducer; reducer != nil {
			current := queue.lastRenderedState
			if state, ok := tryReduce(reducer, current, action); ok {
				update.hasEagerState = true
				update.eagerState = state
				if objectIs(state, current) {
					r.enqueueConcurrentHookUpdateAndEagerlyBailout(f, queue, update)
					return
				}
			}
		}
	}

	if root := r.enqueueConcurrentHookUpdate(f, queue, update, lane); root != nil {
		r.scheduleUpdateOnFiber(root, f, lane)
	}
}

// tryReduce evaluates an update ahead of render. A panic is left for the
// render to surface.
func tryReduce(reducer func(state, action any) any, state, action any) (next any, ok bool) {
	defer func() {
		if recover() != nil {
			next, ok = nil, false
		}
	}()
	return reducer(state, action), true
}

// Setter updates the state of a UseState hook. It is stable across renders.
type Setter[T any] struct {
	r     *Reconciler
	fiber *Fiber
	queue *hookQueue
}

// Set replaces the state with v.
func (s *Setter[T]) Set(v T) {
	s.r.dispatchAction(s.fiber, s.queue, func(any) any { return v }, true)
}

// Update replaces the state with fn applied to the latest state.
func (s *Setter[T]) Update(fn func(prev T) T) {
	s.r.dispatchAction(s.fiber, s.queue, func(prev any) any { return fn(as[T](prev)) }, true)
}

// UseState returns the current state and a setter for it.
func UseState[T any](h *Hooks, initial T) (T, *Setter[T]) {
	state, queue := h.reducerHook(basicStateReducer, func() any { return initial })
	if queue.dispatch == nil {
		queue.dispatch = &Setter[T]{r: h.r, fiber: h.fiber, queue: queue}
	}
	setter, ok := queue.dispatch.(*Setter[T])
	if !ok {
		h.fail(errors.ErrHookTypeChanged)
	}
	return as[T](state), setter
}

// UseReducer returns state managed by reducer and a stable dispatch function.
func UseReducer[S, A any](h *Hooks, reducer func(S, A) S, initial S) (S, func(A)) {
	red := func(state, action any) any { return reducer(as[S](state), as[A](action)) }
	state, queue := h.reducerHook(red, func() any { return initial })
	if queue.dispatch == nil {
		r, f := h.r, h.fiber
		queue.dispatch = func(a A) { r.dispatchAction(f, queue, a, false) }
	}
	dispatch, ok := queue.dispatch.(func(A))
	if !ok {
		h.fail(errors.ErrHookTypeChanged)
	}
	return as[S](state), dispatch
}

// UseRef returns a mutable box that keeps its identity across renders.
func UseRef[T any](h *Hooks, initial T) *RefObject[T] {
	hk, mount := h.use()
	if mount {
		ref := &RefObject[T]{Current: initial}
		hk.memoizedState = ref
		return ref
	}
	ref, ok := hk.memoizedState.(*RefObject[T])
	if !ok {
		h.fail(errors.ErrHookTypeChanged)
	}
	return ref
}

type memoState struct {
	value any
	deps  []any
}

// UseMemo returns compute's result, recomputing only when deps change. Nil
// deps recompute on every render.
func UseMemo[T any](h *Hooks, compute func() T, deps []any) T {
	hk, mount := h.use()
	if !mount {
		prev, ok := hk.memoizedState.(*memoState)
		if !ok {
			h.fail(errors.ErrHookTypeChanged)
		}
		if areHookInputsEqual(deps, prev.deps) {
			return as[T](prev.value)
		}
	}
	v := compute()
	hk.memoizedState = &memoState{value: v, deps: deps}
	return v
}

// UseCallback returns fn, keeping the first instance until deps change.
func UseCallback[F any](h *Hooks, fn F, deps []any) F {
	hk, mount := h.use()
	if !mount {
		prev, ok := hk.memoizedState.(*memoState)
		if !ok {
			h.fail(errors.ErrHookTypeChanged)
		}
		if areHookInputsEqual(deps, prev.deps) {
			return as[F](prev.value)
		}
	}
	hk.memoizedState = &memoState{value: fn, deps: deps}
	return fn
}

type effectTag uint8

const (
	hookHasEffect effectTag = 1 << 0
	hookLayout    effectTag = 1 << 2
	hookPassive   effectTag = 1 << 3
)

// effectInstance is shared by every render of one effect hook so the destroy
// function of the last run is reachable from either tree.
type effectInstance struct {
	destroy func()
}

type effect struct {
	tag    effectTag
	create func() func()
	inst   *effectInstance
	deps   []any
}

type functionQueue struct {
	effects []*effect
}

func (h *Hooks) pushEffect(tag effectTag, create func() func(), inst *effectInstance, deps []any) *effect {
	e := &effect{tag: tag, create: create, inst: inst, deps: deps}
	q, _ := h.fiber.UpdateQueue.(*functionQueue)
	if q == nil {
		q = &functionQueue{}
		h.fiber.UpdateQueue = q
	}
	q.effects = append(q.effects, e)
	return e
}

func (h *Hooks) effectHook(fiberFlags Flags, tag effectTag, create func() func(), deps []any) {
	hk, mount := h.use()
	if mount {
		h.fiber.Flags |= fiberFlags
		hk.memoizedState = h.pushEffect(hookHasEffect|tag, create, &effectInstance{}, deps)
		return
	}
	prev, ok := hk.memoizedState.(*effect)
	if !ok {
		h.fail(errors.ErrHookTypeChanged)
	}
	if areHookInputsEqual(deps, prev.deps) {
		hk.memoizedState = h.pushEffect(tag, create, prev.inst, deps)
		return
	}
	h.fiber.Flags |= fiberFlags
	hk.memoizedState = h.pushEffect(hookHasEffect|tag, create, prev.inst, deps)
}

// UseEffect runs create after the commit that first renders it, and again
// after any commit where deps changed. The function create returns, if any,
// runs before the next run and on unmount.
func UseEffect(h *Hooks, create func() func(), deps []any) {
	h.effectHook(Passive|PassiveStatic, hookPassive, create, deps)
}

// UseLayoutEffect is UseEffect, run synchronously during commit after the
// host tree has been mutated.
func UseLayoutEffect(h *Hooks, create func() func(), deps []any) {
	h.effectHook(UpdateEffect|LayoutStatic, hookLayout, create, deps)
}

// UseTransition returns whether a transition started by this component is
// pending, and a function that starts one.
func UseTransition(h *Hooks) (bool, func(fn func())) {
	isPending, setPending := UseState(h, false)
	hk, mount := h.use()
	if mount {
		r := h.r
		start := func(fn func()) { r.startTransitionWithPending(setPending, fn) }
		hk.memoizedState = start
		return isPending, start
	}
	start, ok := hk.memoizedState.(func(func()))
	if !ok {
		h.fail(errors.ErrHookTypeChanged)
	}
	return isPending, start
}

func (r *Reconciler) startTransitionWithPending(setPending *Setter[bool], fn func()) {
	prevPriority := r.currentUpdatePriority
	r.currentUpdatePriority = higherEventPriority(prevPriority, lanes.ContinuousEventPriority)
	prevTransition := r.currentTransition
	defer func() {
		r.currentUpdatePriority = prevPriority
		r.currentTransition = prevTransition
	}()

	r.currentTransition = nil
	setPending.Set(true)
	r.currentTransition = &transition{}
	setPending.Set(false)
	fn()
}

func higherEventPriority(a, b lanes.EventPriority) lanes.EventPriority {
	if a != lanes.NoEventPriority && a < b {
		return a
	}
	return b
}

// UseContext returns the value of the nearest enclosing provider of ctx, or
// ctx's default value.
func UseContext[T any](h *Hooks, ctx *Context) T {
	if h.mode == hooksInvalid {
		h.fail(errors.ErrInvalidHookCall)
	}
	return as[T](h.r.readContext(h.fiber, ctx))
}

// UseID returns an identifier that is unique within the reconciler and
// stable for the lifetime of the component.
func UseID(h *Hooks) string {
	hk, mount := h.use()
	if mount {
		id := h.r.nextID()
		hk.memoizedState = id
		return id
	}
	id, ok := hk.memoizedState.(string)
	if !ok {
		h.fail(errors.ErrHookTypeChanged)
	}
	return id
}
