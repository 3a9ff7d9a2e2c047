package fiber

import (
	"github.com/go-drift/fiber/pkg/lanes"
)

// suspenseState is the memoized state of a Suspense boundary that is showing
// its fallback.
type suspenseState struct{}

const (
	primaryKey  = "primary"
	fallbackKey = "fallback"
	contentKey  = "content"
)

// beginWork renders wip and returns its first child, or nil when the subtree
// has nothing left to do.
func (r *Reconciler) beginWork(current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, error) {
	if current != nil {
		if !sameProps(current.MemoizedProps, wip.PendingProps) {
			r.ws.didReceiveUpdate = true
		} else if !lanes.IncludesSome(current.Lanes, renderLanes) && wip.Flags&DidCapture == 0 {
			r.ws.didReceiveUpdate = false
			return r.attemptEarlyBailoutIfNoUpdate(current, wip, renderLanes)
		} else {
			r.ws.didReceiveUpdate = false
		}
	} else {
		r.ws.didReceiveUpdate = false
	}

	wip.Lanes = lanes.NoLanes

	switch wip.Tag {
	case HostRoot:
		return r.updateHostRoot(current, wip, renderLanes)
	case HostComponent:
		return r.updateHostComponent(current, wip, renderLanes)
	case HostText:
		return nil, nil
	case FunctionComponent:
		return r.updateFunctionComponent(current, wip, renderLanes)
	case FragmentTag:
		if err := r.reconcileChildren(current, wip, wip.PendingProps["children"], renderLanes); err != nil {
			return nil, err
		}
		return wip.Child, nil
	case SuspenseComponent:
		return r.updateSuspenseComponent(current, wip, renderLanes)
	case ErrorBoundary:
		return r.updateErrorBoundary(current, wip, renderLanes)
	case ContextProvider:
		return r.updateContextProvider(current, wip, renderLanes)
	default:
		return nil, unknownTag("fiber.beginWork", wip)
	}
}

// attemptEarlyBailoutIfNoUpdate pushes what wip would have pushed during a
// full begin and then skips it.
func (r *Reconciler) attemptEarlyBailoutIfNoUpdate(current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, error) {
	switch wip.Tag {
	case HostRoot:
		r.pushHostContainer(wip.StateNode.(*FiberRoot).ContainerInfo)
	case ContextProvider:
		r.pushProvider(wip.Type.(*Context), wip.MemoizedProps["value"])
	case HostComponent, HostText, FunctionComponent, FragmentTag, SuspenseComponent, ErrorBoundary:
	default:
		return nil, unknownTag("fiber.attemptEarlyBailoutIfNoUpdate", wip)
	}
	return r.bailoutOnAlreadyFinishedWork(current, wip, renderLanes)
}

func (r *Reconciler) bailoutOnAlreadyFinishedWork(current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, error) {
	if current != nil {
		wip.dependencies = current.dependencies
	}
	r.markSkippedUpdateLanes(wip.Lanes)
	if !lanes.IncludesSome(renderLanes, wip.ChildLanes) {
		// Nothing below has work either.
		return nil, nil
	}
	cloneChildFibers(current, wip)
	return wip.Child, nil
}

// cloneChildFibers gives wip fresh work-in-progress copies of current's
// children.
func cloneChildFibers(current, wip *Fiber) {
	if current != nil && wip.Child != current.Child {
		// Already cloned by an earlier pass of this render.
		return
	}
	currentChild := wip.Child
	if currentChild == nil {
		return
	}
	newChild := createWorkInProgress(currentChild, currentChild.PendingProps)
	wip.Child = newChild
	newChild.Return = wip
	for currentChild.Sibling != nil {
		currentChild = currentChild.Sibling
		next := createWorkInProgress(currentChild, currentChild.PendingProps)
		newChild.Sibling = next
		next.Return = wip
		newChild = next
	}
	newChild.Sibling = nil
}

func (r *Reconciler) updateHostRoot(current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, error) {
	root := wip.StateNode.(*FiberRoot)
	r.pushHostContainer(root.ContainerInfo)

	prevState, _ := wip.MemoizedState.(State)
	var prevChildren Node
	if prevState != nil {
		prevChildren = prevState["element"]
	}
	if current != nil {
		cloneUpdateQueue(current, wip)
	}
	processUpdateQueue(wip, wip.PendingProps, renderLanes)
	nextState, _ := wip.MemoizedState.(State)
	var nextChildren Node
	if nextState != nil {
		nextChildren = nextState["element"]
	}

	if current != nil && objectIs(nextChildren, prevChildren) {
		return r.bailoutOnAlreadyFinishedWork(current, wip, renderLanes)
	}
	if err := r.reconcileChildren(current, wip, nextChildren, renderLanes); err != nil {
		return nil, err
	}
	return wip.Child, nil
}

func (r *Reconciler) updateHostComponent(current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, error) {
	typ := wip.Type.(string)
	nextProps := wip.PendingProps
	nextChildren := nextProps["children"]

	if r.host.ShouldSetTextContent(typ, nextProps) {
		// The host renders this text itself.
		nextChildren = nil
	} else if current != nil && r.host.ShouldSetTextContent(typ, current.MemoizedProps) {
		wip.Flags |= ContentReset
	}

	markRef(current, wip)
	if err := r.reconcileChildren(current, wip, nextChildren, renderLanes); err != nil {
		return nil, err
	}
	return wip.Child, nil
}

func markRef(current, wip *Fiber) {
	if wip.Ref == nil {
		if current != nil && current.Ref != nil {
			wip.Flags |= Ref | RefStatic
		}
		return
	}
	if current == nil || !objectIs(current.Ref, wip.Ref) {
		wip.Flags |= Ref | RefStatic
	}
}

func (r *Reconciler) updateFunctionComponent(current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, error) {
	comp := wip.Type.(*Component)
	r.prepareToReadContext(wip, renderLanes)
	children, err := r.renderWithHooks(current, wip, comp, wip.PendingProps, renderLanes)
	if err != nil {
		return nil, err
	}
	if current != nil && !r.ws.didReceiveUpdate {
		bailoutHooks(current, wip, renderLanes)
		return r.bailoutOnAlreadyFinishedWork(current, wip, renderLanes)
	}
	wip.Flags |= PerformedWork
	if err := r.reconcileChildren(current, wip, children, renderLanes); err != nil {
		return nil, err
	}
	return wip.Child, nil
}

// updateSuspenseComponent renders either the primary children or the
// fallback, each wrapped in its own keyed fragment so that switching between
// them replaces one subtree with the other.
func (r *Reconciler) updateSuspenseComponent(current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, error) {
	props := wip.PendingProps
	var next *Element
	if wip.Flags&DidCapture != 0 {
		wip.MemoizedState = &suspenseState{}
		next = Keyed(fallbackKey, Fragment(props["fallback"]))
	} else {
		wip.MemoizedState = nil
		next = Keyed(primaryKey, Fragment(props["children"]))
	}

	if err := r.reconcileChildren(current, wip, next, renderLanes); err != nil {
		return nil, err
	}
	return wip.Child, nil
}

func (r *Reconciler) updateErrorBoundary(current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, error) {
	if wip.UpdateQueue == nil {
		initializeUpdateQueue(wip)
	} else if current != nil {
		cloneUpdateQueue(current, wip)
	}
	processUpdateQueue(wip, wip.PendingProps, renderLanes)

	props := wip.PendingProps
	var next *Element
	state, _ := wip.MemoizedState.(State)
	if err, _ := state["error"].(error); err != nil {
		var fallback Node
		if fn, ok := props["fallback"].(func(error) Node); ok && fn != nil {
			fallback = fn(err)
		}
		next = Keyed(fallbackKey, Fragment(fallback))
	} else {
		next = Keyed(contentKey, Fragment(props["children"]))
	}
	if err := r.reconcileChildren(current, wip, next, renderLanes); err != nil {
		return nil, err
	}
	return wip.Child, nil
}

func (r *Reconciler) updateContextProvider(current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, error) {
	ctx := wip.Type.(*Context)
	newProps := wip.PendingProps
	newValue := newProps["value"]
	r.pushProvider(ctx, newValue)

	if current != nil {
		oldProps := current.MemoizedProps
		if objectIs(oldProps["value"], newValue) {
			if objectIs(oldProps["children"], newProps["children"]) {
				return r.bailoutOnAlreadyFinishedWork(current, wip, renderLanes)
			}
		} else {
			r.propagateContextChange(wip, ctx, renderLanes)
		}
	}
	if err := r.reconcileChildren(current, wip, newProps["children"], renderLanes); err != nil {
		return nil, err
	}
	return wip.Child, nil
}
