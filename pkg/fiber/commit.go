package fiber

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// commitRoot applies root.FinishedWork to the host and makes it the current
// tree. Host failures are reported and skipped; the returned error carries
// broken invariants and update loops.
func (r *Reconciler) commitRoot(root *FiberRoot) error {
	for r.flushPassiveEffects() {
	}
	if r.executionContext&(renderContext|commitContext) != 0 {
		return errors.Invariantf("should not already be working")
	}

	finishedWork := root.FinishedWork
	committedLanes := root.FinishedLanes
	if finishedWork == nil {
		return nil
	}
	root.FinishedWork = nil
	root.FinishedLanes = lanes.NoLanes
	if finishedWork == root.Current {
		return errors.Invariantf("cannot commit the same tree as before")
	}
	root.CallbackNode = nil
	root.CallbackPriority = lanes.NoLane

	remaining := lanes.Merge(finishedWork.Lanes, finishedWork.ChildLanes)
	remaining = lanes.Merge(remaining, r.ws.concurrentlyUpdatedLanes)
	root.Lanes.MarkFinished(remaining)

	if (finishedWork.SubtreeFlags|finishedWork.Flags)&PassiveMask != 0 && !r.rootDoesHavePassiveEffects {
		r.rootDoesHavePassiveEffects = true
		r.passiveTask = r.sched.ScheduleCallback(scheduler.NormalPriority, func(bool) scheduler.Callback {
			r.flushPassiveEffects()
			return nil
		})
	}

	r.commitLog.Debug().
		Stringer("lanes", committedLanes).
		Stringer("remaining", remaining).
		Stringer("flags", finishedWork.SubtreeFlags|finishedWork.Flags).
		Log("commit started")

	c := &commit{r: r}
	if (finishedWork.SubtreeFlags|finishedWork.Flags)&(BeforeMutationMask|MutationMask|LayoutMask|PassiveMask) != 0 {
		prevPriority := r.currentUpdatePriority
		prevContext := r.executionContext
		r.currentUpdatePriority = lanes.DiscreteEventPriority
		r.executionContext |= commitContext

		c.mutationEffects(finishedWork)
		root.Current = finishedWork
		c.layoutEffects(finishedWork)

		r.executionContext = prevContext
		r.currentUpdatePriority = prevPriority
	} else {
		root.Current = finishedWork
	}

	if r.rootDoesHavePassiveEffects {
		r.rootDoesHavePassiveEffects = false
		r.rootWithPendingPassiveEffects = root
		r.pendingPassiveEffectsLanes = committedLanes
	}

	remaining = root.Lanes.Pending
	if lanes.IncludesSyncLane(remaining) {
		if root == r.nestedUpdateRoot {
			r.nestedUpdateCount++
		} else {
			r.nestedUpdateCount = 0
			r.nestedUpdateRoot = root
		}
	} else {
		r.nestedUpdateCount = 0
	}
	if r.nestedUpdateCount > nestedUpdateLimit {
		r.nestedUpdateCount = 0
		r.nestedUpdateRoot = nil
		root.Lanes.MarkFinished(lanes.Remove(remaining, lanes.SyncLane))
		c.fail(&errors.FiberError{
			Op:   "fiber.commitRoot",
			Kind: errors.KindMisuse,
			Err:  errors.ErrMaxUpdateDepth,
		})
	}

	r.commitLog.Debug().Stringer("lanes", committedLanes).Int("hostErrors", c.hostErrors).Log("commit finished")

	r.ensureRootIsScheduled(root)
	if lanes.IncludesSyncLane(r.pendingPassiveEffectsLanes) {
		r.flushPassiveEffects()
	}
	if err := r.flushSyncWorkAcrossRoots(); err != nil {
		c.fail(err)
	}
	return errors.Join(c.errs...)
}

// commit carries the state of one commit pass.
type commit struct {
	r          *Reconciler
	errs       []error
	hostErrors int
}

func (c *commit) fail(err error) {
	c.r.commitLog.Err().Err(err).Log("commit error")
	c.errs = append(c.errs, err)
}

// host runs a host mutation, reporting a failure without stopping the commit.
func (c *commit) host(method string, f *Fiber, err error) {
	if err == nil {
		return
	}
	c.hostErrors++
	c.r.reportHostError(method, f, err)
}

func (c *commit) mutationEffects(f *Fiber) {
	if f.Flags&ChildDeletion != 0 {
		for _, deleted := range f.Deletions {
			c.deletion(f, deleted)
		}
	}
	if f.SubtreeFlags&MutationMask != 0 {
		for child := f.Child; child != nil; child = child.Sibling {
			c.mutationEffects(child)
		}
	}
	c.reconciliationEffects(f)

	h := c.r.host
	current := f.Alternate
	switch f.Tag {
	case FunctionComponent:
		if f.Flags&UpdateEffect != 0 {
			c.r.commitHookEffectListUnmount(f, hookLayout|hookHasEffect)
		}
	case HostComponent:
		if f.Flags&Ref != 0 && current != nil {
			safelyDetachRef(current)
		}
		if f.Flags&ContentReset != 0 {
			c.host("ResetTextContent", f, h.ResetTextContent(f.StateNode))
		}
		if f.Flags&UpdateEffect != 0 && f.StateNode != nil {
			var oldProps Props
			if current != nil {
				oldProps = current.MemoizedProps
			}
			c.host("CommitUpdate", f, h.CommitUpdate(f.StateNode, f.Type.(string), oldProps, f.MemoizedProps))
		}
	case HostText:
		if f.Flags&UpdateEffect != 0 {
			oldText := ""
			if current != nil {
				oldText = propsText(current.MemoizedProps)
			}
			c.host("CommitTextUpdate", f, h.CommitTextUpdate(f.StateNode, oldText, f.Text()))
		}
	case SuspenseComponent:
		if f.Flags&UpdateEffect != 0 {
			if retries, _ := f.UpdateQueue.(mapset.Set[Thenable]); retries != nil {
				f.UpdateQueue = nil
				c.r.attachRetryListeners(f, retries)
			}
		}
	case HostRoot, FragmentTag, ErrorBoundary, ContextProvider:
	default:
		c.fail(unknownTag("fiber.commitMutationEffects", f))
	}
}

func (c *commit) reconciliationEffects(f *Fiber) {
	if f.Flags&Placement == 0 {
		return
	}
	c.placement(f)
	f.Flags &^= Placement
}

func isHostParent(f *Fiber) bool {
	return f.Tag == HostComponent || f.Tag == HostRoot
}

func getHostParentFiber(f *Fiber) (*Fiber, error) {
	for parent := f.Return; parent != nil; parent = parent.Return {
		if isHostParent(parent) {
			return parent, nil
		}
	}
	return nil, &errors.FiberError{
		Op:    "fiber.getHostParentFiber",
		Kind:  errors.KindInvariant,
		Err:   errors.Invariantf("expected to find a host parent"),
		Fiber: f.String(),
	}
}

func hostParentInstance(parent *Fiber) Instance {
	if parent.Tag == HostRoot {
		return parent.StateNode.(*FiberRoot).ContainerInfo
	}
	return parent.StateNode
}

// getHostSibling finds the host node that f's host nodes go in front of,
// skipping fibers that are themselves about to be placed.
func getHostSibling(f *Fiber) Instance {
	node := f
siblings:
	for {
		for node.Sibling == nil {
			if node.Return == nil || isHostParent(node.Return) {
				return nil
			}
			node = node.Return
		}
		node.Sibling.Return = node.Return
		node = node.Sibling
		for node.Tag != HostComponent && node.Tag != HostText {
			if node.Flags&Placement != 0 || node.Child == nil {
				continue siblings
			}
			node.Child.Return = node
			node = node.Child
		}
		if node.Flags&Placement == 0 {
			return node.StateNode
		}
	}
}

func (c *commit) placement(f *Fiber) {
	parentFiber, err := getHostParentFiber(f)
	if err != nil {
		c.fail(err)
		return
	}
	parent := hostParentInstance(parentFiber)
	if parentFiber.Tag == HostComponent && parentFiber.Flags&ContentReset != 0 {
		c.host("ResetTextContent", parentFiber, c.r.host.ResetTextContent(parent))
		parentFiber.Flags &^= ContentReset
	}
	c.insertOrAppendPlacementNode(f, getHostSibling(f), parent)
}

func (c *commit) insertOrAppendPlacementNode(node *Fiber, before, parent Instance) {
	if node.Tag == HostComponent || node.Tag == HostText {
		if before != nil {
			c.host("InsertBefore", node, c.r.host.InsertBefore(parent, node.StateNode, before))
		} else {
			c.host("AppendChild", node, c.r.host.AppendChild(parent, node.StateNode))
		}
		return
	}
	for child := node.Child; child != nil; child = child.Sibling {
		c.insertOrAppendPlacementNode(child, before, parent)
	}
}

// deletion unmounts deleted, a child of returnFiber, removing its topmost
// host nodes from the host parent.
func (c *commit) deletion(returnFiber, deleted *Fiber) {
	var parent Instance
	found := false
	for p := returnFiber; p != nil; p = p.Return {
		if isHostParent(p) {
			parent = hostParentInstance(p)
			found = true
			break
		}
	}
	if !found {
		c.fail(&errors.FiberError{
			Op:    "fiber.commitDeletion",
			Kind:  errors.KindInvariant,
			Err:   errors.Invariantf("expected to find a host parent"),
			Fiber: deleted.String(),
		})
		return
	}
	c.deletionEffects(parent, true, deleted)
	detachFiberMutation(deleted)
	c.r.commitLog.Trace().Str("fiber", deleted.String()).Log("deleted")
}

// deletionEffects walks a deleted subtree. Only the first host node on each
// path is removed from the host; its descendants go with it.
func (c *commit) deletionEffects(parent Instance, remove bool, f *Fiber) {
	switch f.Tag {
	case HostComponent:
		safelyDetachRef(f)
		c.deletionChildren(parent, false, f)
		if remove {
			c.host("RemoveChild", f, c.r.host.RemoveChild(parent, f.StateNode))
		}
	case HostText:
		if remove {
			c.host("RemoveChild", f, c.r.host.RemoveChild(parent, f.StateNode))
		}
	case FunctionComponent:
		c.r.commitHookEffectListUnmount(f, hookLayout)
		c.deletionChildren(parent, remove, f)
	case FragmentTag, SuspenseComponent, ErrorBoundary, ContextProvider:
		c.deletionChildren(parent, remove, f)
	case HostRoot:
		c.fail(errors.Invariantf("a host root cannot be deleted"))
	default:
		c.fail(unknownTag("fiber.commitDeletionEffects", f))
	}
}

func (c *commit) deletionChildren(parent Instance, remove bool, f *Fiber) {
	for child := f.Child; child != nil; child = child.Sibling {
		c.deletionEffects(parent, remove, child)
	}
}

// detachFiberMutation cuts deleted off from the tree so updates scheduled on
// it later find no root.
func detachFiberMutation(f *Fiber) {
	if alt := f.Alternate; alt != nil {
		alt.Return = nil
	}
	f.Return = nil
}

func (c *commit) layoutEffects(f *Fiber) {
	if f.SubtreeFlags&LayoutMask != 0 {
		for child := f.Child; child != nil; child = child.Sibling {
			c.layoutEffects(child)
		}
	}
	if f.Flags&LayoutMask == 0 {
		return
	}
	switch f.Tag {
	case FunctionComponent:
		if f.Flags&UpdateEffect != 0 {
			c.r.commitHookEffectListMount(f, hookLayout|hookHasEffect)
		}
	case HostRoot, ErrorBoundary:
		if f.Flags&Callback != 0 {
			if queue, _ := f.UpdateQueue.(*UpdateQueue); queue != nil {
				c.r.invokeGuarded("fiber.commitCallbacks", func() { commitCallbacks(queue) })
			}
		}
	case HostComponent:
		if f.Flags&Ref != 0 {
			attachRef(f)
		}
	case HostText, FragmentTag, SuspenseComponent, ContextProvider:
	default:
		c.fail(unknownTag("fiber.commitLayoutEffects", f))
	}
}

func attachRef(f *Fiber) {
	if f.Ref != nil {
		f.Ref.SetInstance(f.StateNode)
	}
}

func safelyDetachRef(f *Fiber) {
	if f.Ref != nil {
		f.Ref.SetInstance(nil)
	}
}

func effectsOf(f *Fiber) []*effect {
	if q, _ := f.UpdateQueue.(*functionQueue); q != nil {
		return q.effects
	}
	return nil
}

// commitHookEffectListUnmount runs the destroy function of every effect on f
// that carries all of tag's bits.
func (r *Reconciler) commitHookEffectListUnmount(f *Fiber, tag effectTag) {
	for _, e := range effectsOf(f) {
		if e.tag&tag != tag {
			continue
		}
		if destroy := e.inst.destroy; destroy != nil {
			e.inst.destroy = nil
			r.invokeGuarded("fiber.effectDestroy", destroy)
		}
	}
}

func (r *Reconciler) commitHookEffectListMount(f *Fiber, tag effectTag) {
	for _, e := range effectsOf(f) {
		if e.tag&tag != tag || e.create == nil {
			continue
		}
		create := e.create
		inst := e.inst
		r.invokeGuarded("fiber.effectCreate", func() { inst.destroy = create() })
	}
}

// invokeGuarded runs user code outside of render. A panic is reported and
// swallowed.
func (r *Reconciler) invokeGuarded(op string, fn func()) {
	defer errors.Recover(op, func(pe *errors.PanicError) {
		r.commitLog.Err().Str("op", op).Interface("panic", pe.Value).Log("user callback panicked")
	})
	fn()
}

// flushPassiveEffects runs the passive effects of the last commit. It reports
// whether there were any.
func (r *Reconciler) flushPassiveEffects() bool {
	root := r.rootWithPendingPassiveEffects
	if root == nil {
		return false
	}
	if r.executionContext&(renderContext|commitContext) != 0 {
		r.commitLog.Warning().Log("cannot flush passive effects while already rendering")
		return false
	}
	committedLanes := r.pendingPassiveEffectsLanes
	r.rootWithPendingPassiveEffects = nil
	r.pendingPassiveEffectsLanes = lanes.NoLanes
	if r.passiveTask != nil {
		r.sched.CancelCallback(r.passiveTask)
		r.passiveTask = nil
	}

	prevContext := r.executionContext
	r.executionContext |= commitContext
	r.commitPassiveUnmountEffects(root.Current)
	r.commitPassiveMountEffects(root.Current)
	r.executionContext = prevContext

	r.commitLog.Trace().Stringer("lanes", committedLanes).Log("passive effects flushed")
	return true
}

func (r *Reconciler) commitPassiveUnmountEffects(f *Fiber) {
	if f.Flags&ChildDeletion != 0 {
		for _, deleted := range f.Deletions {
			r.commitPassiveUnmountInsideDeletedTree(deleted)
			detachFiberAfterEffects(deleted)
		}
		f.Deletions = nil
		if alt := f.Alternate; alt != nil {
			alt.Deletions = nil
		}
	}
	if f.SubtreeFlags&PassiveMask != 0 {
		for child := f.Child; child != nil; child = child.Sibling {
			r.commitPassiveUnmountEffects(child)
		}
	}
	if f.Tag == FunctionComponent && f.Flags&Passive != 0 {
		r.commitHookEffectListUnmount(f, hookPassive|hookHasEffect)
	}
}

// commitPassiveUnmountInsideDeletedTree runs every passive destroy in a
// deleted subtree, parents before children.
func (r *Reconciler) commitPassiveUnmountInsideDeletedTree(f *Fiber) {
	if f.Tag == FunctionComponent {
		r.commitHookEffectListUnmount(f, hookPassive)
	}
	if f.SubtreeFlags&PassiveStatic == 0 {
		return
	}
	for child := f.Child; child != nil; child = child.Sibling {
		r.commitPassiveUnmountInsideDeletedTree(child)
	}
}

func detachFiberAfterEffects(f *Fiber) {
	if alt := f.Alternate; alt != nil {
		f.Alternate = nil
		alt.Alternate = nil
		detachFiberAfterEffects(alt)
	}
	f.Child = nil
	f.Deletions = nil
	f.Sibling = nil
	f.dependencies = nil
	if f.Tag == HostComponent || f.Tag == HostText {
		f.StateNode = nil
	}
	f.MemoizedState = nil
	f.UpdateQueue = nil
}

func (r *Reconciler) commitPassiveMountEffects(f *Fiber) {
	if f.SubtreeFlags&PassiveMask != 0 {
		for child := f.Child; child != nil; child = child.Sibling {
			r.commitPassiveMountEffects(child)
		}
	}
	if f.Tag == FunctionComponent && f.Flags&Passive != 0 {
		r.commitHookEffectListMount(f, hookPassive|hookHasEffect)
	}
}
