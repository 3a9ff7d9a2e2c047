package fiber

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
)

// completeWork finishes wip once its children are done: host instances are
// created or diffed and child flags and lanes are bubbled up. A non-nil
// result is more work to begin.
func (r *Reconciler) completeWork(current, wip *Fiber, renderLanes lanes.Lanes) (*Fiber, error) {
	switch wip.Tag {
	case FunctionComponent, FragmentTag, ErrorBoundary:
		bubbleProperties(wip)
		return nil, nil

	case HostRoot:
		r.popHostContainer()
		bubbleProperties(wip)
		return nil, nil

	case ContextProvider:
		r.popProvider(wip.Type.(*Context))
		bubbleProperties(wip)
		return nil, nil

	case HostComponent:
		typ := wip.Type.(string)
		newProps := wip.PendingProps
		if current != nil && wip.StateNode != nil {
			if r.hostPropsChanged(typ, current.MemoizedProps, newProps) {
				wip.Flags |= UpdateEffect
			}
		} else {
			inst, err := r.host.CreateInstance(typ, newProps)
			if err != nil {
				return nil, r.hostCreateError("CreateInstance", wip, err)
			}
			if err := r.appendAllChildren(inst, wip); err != nil {
				return nil, err
			}
			wip.StateNode = inst
			if wip.Ref != nil {
				wip.Flags |= Ref | RefStatic
			}
		}
		bubbleProperties(wip)
		return nil, nil

	case HostText:
		newText := propsText(wip.PendingProps)
		if current != nil && wip.StateNode != nil {
			if propsText(current.MemoizedProps) != newText {
				wip.Flags |= UpdateEffect
			}
		} else {
			inst, err := r.host.CreateTextInstance(newText)
			if err != nil {
				return nil, r.hostCreateError("CreateTextInstance", wip, err)
			}
			wip.StateNode = inst
		}
		bubbleProperties(wip)
		return nil, nil

	case SuspenseComponent:
		nextDidTimeout := wip.MemoizedState != nil
		prevDidTimeout := current != nil && current.MemoizedState != nil
		if retries, _ := wip.UpdateQueue.(mapset.Set[Thenable]); retries != nil && retries.Cardinality() > 0 {
			wip.Flags |= UpdateEffect
		}
		if nextDidTimeout && !prevDidTimeout {
			if current == nil {
				r.renderDidSuspend()
			} else {
				// Hiding content that is already on screen.
				r.renderDidSuspendDelayIfPossible()
			}
		}
		bubbleProperties(wip)
		return nil, nil

	default:
		return nil, unknownTag("fiber.completeWork", wip)
	}
}

func (r *Reconciler) hostCreateError(method string, f *Fiber, err error) error {
	return &errors.FiberError{
		Op:    "fiber.completeWork",
		Kind:  errors.KindHost,
		Err:   hostError(method, f, err),
		Fiber: f.String(),
	}
}

func hostError(method string, f *Fiber, err error) *errors.HostError {
	he := &errors.HostError{Method: method, Err: err}
	if typ, ok := f.Type.(string); ok {
		he.Type = typ
	}
	return he
}

// hostPropsChanged compares props key by key. Children only count when the
// host renders them as text content.
func (r *Reconciler) hostPropsChanged(typ string, oldProps, newProps Props) bool {
	if sameProps(oldProps, newProps) {
		return false
	}
	textContent := r.host.ShouldSetTextContent(typ, newProps) || r.host.ShouldSetTextContent(typ, oldProps)
	for k, v := range newProps {
		if k == "children" && !textContent {
			continue
		}
		old, ok := oldProps[k]
		if !ok || !objectIs(old, v) {
			return true
		}
	}
	for k := range oldProps {
		if k == "children" && !textContent {
			continue
		}
		if _, ok := newProps[k]; !ok {
			return true
		}
	}
	return false
}

// appendAllChildren attaches the topmost host nodes below wip to parent.
func (r *Reconciler) appendAllChildren(parent Instance, wip *Fiber) error {
	node := wip.Child
	for node != nil {
		if node.Tag == HostComponent || node.Tag == HostText {
			if err := r.host.AppendInitialChild(parent, node.StateNode); err != nil {
				return r.hostCreateError("AppendInitialChild", node, err)
			}
		} else if node.Child != nil {
			node.Child.Return = node
			node = node.Child
			continue
		}
		if node == wip {
			return nil
		}
		for node.Sibling == nil {
			if node.Return == nil || node.Return == wip {
				return nil
			}
			node = node.Return
		}
		node.Sibling.Return = node.Return
		node = node.Sibling
	}
	return nil
}

// bubbleProperties merges the lanes and flags of wip's children into wip. When
// the children were reused from current only their static flags carry over.
func bubbleProperties(wip *Fiber) {
	didBailout := wip.Alternate != nil && wip.Alternate.Child == wip.Child
	newChildLanes := lanes.NoLanes
	subtreeFlags := NoFlags
	for child := wip.Child; child != nil; child = child.Sibling {
		newChildLanes = lanes.Merge(newChildLanes, lanes.Merge(child.Lanes, child.ChildLanes))
		if didBailout {
			subtreeFlags |= child.SubtreeFlags & StaticMask
			subtreeFlags |= child.Flags & StaticMask
		} else {
			subtreeFlags |= child.SubtreeFlags
			subtreeFlags |= child.Flags
		}
		child.Return = wip
	}
	wip.SubtreeFlags |= subtreeFlags
	wip.ChildLanes = newChildLanes
}
