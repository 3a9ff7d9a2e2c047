package fiber

import (
	"fmt"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
)

// childReconciler diffs new children against the current child list. When
// tracking is off (mounting a fresh subtree) no placements or deletions are
// recorded; the whole subtree is inserted by its root's placement.
type childReconciler struct {
	r     *Reconciler
	track bool
}

func (r *Reconciler) reconcileChildren(current, wip *Fiber, nextChildren Node, renderLanes lanes.Lanes) error {
	if current == nil {
		return r.mountChildFibers(wip, nextChildren, renderLanes)
	}
	child, err := childReconciler{r: r, track: true}.reconcile(wip, current.Child, nextChildren, renderLanes)
	if err != nil {
		return err
	}
	wip.Child = child
	return nil
}

// mountChildFibers reconciles against an empty list without tracking.
func (r *Reconciler) mountChildFibers(wip *Fiber, nextChildren Node, renderLanes lanes.Lanes) error {
	child, err := childReconciler{r: r, track: false}.reconcile(wip, nil, nextChildren, renderLanes)
	if err != nil {
		return err
	}
	wip.Child = child
	return nil
}

func (c childReconciler) reconcile(returnFiber, currentFirstChild *Fiber, newChild Node, renderLanes lanes.Lanes) (*Fiber, error) {
	if el, ok := newChild.(*Element); ok && el != nil && el.Type == FragmentType && el.Key == "" {
		newChild = el.Props["children"]
	}

	switch v := newChild.(type) {
	case *Element:
		if v == nil {
			break
		}
		f, err := c.reconcileSingleElement(returnFiber, currentFirstChild, v, renderLanes)
		if err != nil {
			return nil, err
		}
		return c.placeSingleChild(f), nil
	case []Node:
		return c.reconcileChildrenArray(returnFiber, currentFirstChild, v, renderLanes)
	case []*Element:
		nodes := make([]Node, len(v))
		for i, el := range v {
			nodes[i] = el
		}
		return c.reconcileChildrenArray(returnFiber, currentFirstChild, nodes, renderLanes)
	case nil, bool:
	default:
		if text, ok := textOf(v); ok {
			return c.placeSingleChild(c.reconcileSingleTextNode(returnFiber, currentFirstChild, text, renderLanes)), nil
		}
		return nil, invalidChild(returnFiber, v)
	}
	c.deleteRemainingChildren(returnFiber, currentFirstChild)
	return nil, nil
}

func invalidChild(returnFiber *Fiber, v any) error {
	return &errors.FiberError{
		Op:    "fiber.reconcileChildFibers",
		Kind:  errors.KindRender,
		Err:   fmt.Errorf("objects are not valid as a child (found %T)", v),
		Fiber: returnFiber.String(),
	}
}

func (c childReconciler) deleteChild(returnFiber, child *Fiber) {
	if !c.track {
		return
	}
	returnFiber.Deletions = append(returnFiber.Deletions, child)
	returnFiber.Flags |= ChildDeletion
}

func (c childReconciler) deleteRemainingChildren(returnFiber, first *Fiber) {
	if !c.track {
		return
	}
	for child := first; child != nil; child = child.Sibling {
		c.deleteChild(returnFiber, child)
	}
}

func useFiber(f *Fiber, pendingProps Props) *Fiber {
	clone := createWorkInProgress(f, pendingProps)
	clone.Index = 0
	clone.Sibling = nil
	return clone
}

func (c childReconciler) placeSingleChild(f *Fiber) *Fiber {
	if c.track && f.Alternate == nil {
		f.Flags |= Placement
	}
	return f
}

// placeChild records newIndex on f and decides whether it moved. Fibers whose
// old index is behind the last placed one are moved; the rest stay put.
func (c childReconciler) placeChild(f *Fiber, lastPlacedIndex, newIndex int) int {
	f.Index = newIndex
	if !c.track {
		f.Flags |= Forked
		return lastPlacedIndex
	}
	if current := f.Alternate; current != nil {
		if current.Index < lastPlacedIndex {
			f.Flags |= Placement
			return lastPlacedIndex
		}
		return current.Index
	}
	f.Flags |= Placement
	return lastPlacedIndex
}

func (c childReconciler) reconcileSingleElement(returnFiber, currentFirstChild *Fiber, el *Element, renderLanes lanes.Lanes) (*Fiber, error) {
	for child := currentFirstChild; child != nil; child = child.Sibling {
		if child.Key != el.Key {
			c.deleteChild(returnFiber, child)
			continue
		}
		if el.Type == FragmentType {
			if child.Tag == FragmentTag {
				c.deleteRemainingChildren(returnFiber, child.Sibling)
				existing := useFiber(child, Props{"children": el.Props["children"]})
				existing.Return = returnFiber
				return existing, nil
			}
		} else if child.Tag != HostText && child.ElementType == el.Type {
			c.deleteRemainingChildren(returnFiber, child.Sibling)
			existing := useFiber(child, el.Props)
			existing.Ref = el.Ref
			existing.Return = returnFiber
			return existing, nil
		}
		// Same key, different type: nothing after it can match either.
		c.deleteRemainingChildren(returnFiber, child)
		break
	}

	if el.Type == FragmentType {
		f := createFiberFromFragment(el.Props["children"], el.Key, renderLanes)
		f.Return = returnFiber
		return f, nil
	}
	f, err := createFiberFromElement(el, renderLanes)
	if err != nil {
		return nil, err
	}
	f.Return = returnFiber
	return f, nil
}

func (c childReconciler) reconcileSingleTextNode(returnFiber, currentFirstChild *Fiber, text string, renderLanes lanes.Lanes) *Fiber {
	if currentFirstChild != nil && currentFirstChild.Tag == HostText {
		c.deleteRemainingChildren(returnFiber, currentFirstChild.Sibling)
		existing := useFiber(currentFirstChild, textProps(text))
		existing.Return = returnFiber
		return existing
	}
	c.deleteRemainingChildren(returnFiber, currentFirstChild)
	f := createFiberFromText(text, renderLanes)
	f.Return = returnFiber
	return f
}

func (c childReconciler) createChild(returnFiber *Fiber, newChild Node, renderLanes lanes.Lanes) (*Fiber, error) {
	if text, ok := textOf(newChild); ok {
		f := createFiberFromText(text, renderLanes)
		f.Return = returnFiber
		return f, nil
	}
	switch v := newChild.(type) {
	case *Element:
		if v == nil {
			return nil, nil
		}
		var f *Fiber
		if v.Type == FragmentType {
			f = createFiberFromFragment(v.Props["children"], v.Key, renderLanes)
		} else {
			var err error
			if f, err = createFiberFromElement(v, renderLanes); err != nil {
				return nil, err
			}
		}
		f.Return = returnFiber
		return f, nil
	case []Node:
		f := createFiberFromFragment(v, "", renderLanes)
		f.Return = returnFiber
		return f, nil
	case nil, bool:
		return nil, nil
	default:
		return nil, invalidChild(returnFiber, v)
	}
}

func (c childReconciler) updateTextNode(returnFiber, current *Fiber, text string, renderLanes lanes.Lanes) *Fiber {
	if current == nil || current.Tag != HostText {
		f := createFiberFromText(text, renderLanes)
		f.Return = returnFiber
		return f
	}
	existing := useFiber(current, textProps(text))
	existing.Return = returnFiber
	return existing
}

func (c childReconciler) updateElement(returnFiber, current *Fiber, el *Element, renderLanes lanes.Lanes) (*Fiber, error) {
	if el.Type == FragmentType {
		return c.updateFragment(returnFiber, current, el.Props["children"], el.Key, renderLanes), nil
	}
	if current != nil && current.Tag != HostText && current.ElementType == el.Type {
		existing := useFiber(current, el.Props)
		existing.Ref = el.Ref
		existing.Return = returnFiber
		return existing, nil
	}
	f, err := createFiberFromElement(el, renderLanes)
	if err != nil {
		return nil, err
	}
	f.Return = returnFiber
	return f, nil
}

func (c childReconciler) updateFragment(returnFiber, current *Fiber, children Node, key string, renderLanes lanes.Lanes) *Fiber {
	if current == nil || current.Tag != FragmentTag {
		f := createFiberFromFragment(children, key, renderLanes)
		f.Return = returnFiber
		return f
	}
	existing := useFiber(current, Props{"children": children})
	existing.Return = returnFiber
	return existing
}

// updateSlot reuses oldFiber for newChild when their keys match. A nil result
// with a nil error means the keys differ.
func (c childReconciler) updateSlot(returnFiber, oldFiber *Fiber, newChild Node, renderLanes lanes.Lanes) (*Fiber, error) {
	key := ""
	if oldFiber != nil {
		key = oldFiber.Key
	}
	if text, ok := textOf(newChild); ok {
		if key != "" {
			return nil, nil
		}
		return c.updateTextNode(returnFiber, oldFiber, text, renderLanes), nil
	}
	switch v := newChild.(type) {
	case *Element:
		if v == nil || v.Key != key {
			return nil, nil
		}
		return c.updateElement(returnFiber, oldFiber, v, renderLanes)
	case []Node:
		if key != "" {
			return nil, nil
		}
		return c.updateFragment(returnFiber, oldFiber, v, "", renderLanes), nil
	case nil, bool:
		return nil, nil
	default:
		return nil, invalidChild(returnFiber, v)
	}
}

func slotKey(key string, index int) string {
	if key != "" {
		return "k:" + key
	}
	return "i:" + strconv.Itoa(index)
}

func (c childReconciler) updateFromMap(existing map[string]*Fiber, returnFiber *Fiber, newIdx int, newChild Node, renderLanes lanes.Lanes) (*Fiber, error) {
	if text, ok := textOf(newChild); ok {
		return c.updateTextNode(returnFiber, existing[slotKey("", newIdx)], text, renderLanes), nil
	}
	switch v := newChild.(type) {
	case *Element:
		if v == nil {
			return nil, nil
		}
		return c.updateElement(returnFiber, existing[slotKey(v.Key, newIdx)], v, renderLanes)
	case []Node:
		return c.updateFragment(returnFiber, existing[slotKey("", newIdx)], v, "", renderLanes), nil
	case nil, bool:
		return nil, nil
	default:
		return nil, invalidChild(returnFiber, v)
	}
}

func (c childReconciler) warnOnDuplicateKeys(returnFiber *Fiber, children []Node) {
	seen := mapset.NewSet[string]()
	for _, child := range children {
		el, ok := child.(*Element)
		if !ok || el == nil || el.Key == "" {
			continue
		}
		if !seen.Add(el.Key) {
			c.r.renderLog.Warning().
				Str("key", el.Key).
				Str("parent", returnFiber.String()).
				Log("encountered two children with the same key")
		}
	}
}

func (c childReconciler) reconcileChildrenArray(returnFiber, currentFirstChild *Fiber, newChildren []Node, renderLanes lanes.Lanes) (*Fiber, error) {
	c.warnOnDuplicateKeys(returnFiber, newChildren)

	var first, previous *Fiber
	link := func(f *Fiber) {
		if previous == nil {
			first = f
		} else {
			previous.Sibling = f
		}
		previous = f
	}

	oldFiber := currentFirstChild
	lastPlacedIndex := 0
	newIdx := 0
	var nextOld *Fiber

	// Walk both lists while keys line up.
	for ; oldFiber != nil && newIdx < len(newChildren); newIdx++ {
		if oldFiber.Index > newIdx {
			nextOld = oldFiber
			oldFiber = nil
		} else {
			nextOld = oldFiber.Sibling
		}
		f, err := c.updateSlot(returnFiber, oldFiber, newChildren[newIdx], renderLanes)
		if err != nil {
			return nil, err
		}
		if f == nil {
			if oldFiber == nil {
				oldFiber = nextOld
			}
			break
		}
		if c.track && oldFiber != nil && f.Alternate == nil {
			// Matched the slot but could not reuse the fiber.
			c.deleteChild(returnFiber, oldFiber)
		}
		lastPlacedIndex = c.placeChild(f, lastPlacedIndex, newIdx)
		link(f)
		oldFiber = nextOld
	}

	if newIdx == len(newChildren) {
		c.deleteRemainingChildren(returnFiber, oldFiber)
		return first, nil
	}

	if oldFiber == nil {
		for ; newIdx < len(newChildren); newIdx++ {
			f, err := c.createChild(returnFiber, newChildren[newIdx], renderLanes)
			if err != nil {
				return nil, err
			}
			if f == nil {
				continue
			}
			lastPlacedIndex = c.placeChild(f, lastPlacedIndex, newIdx)
			link(f)
		}
		return first, nil
	}

	// Fall back to a map of the remaining old children.
	existing := make(map[string]*Fiber)
	var remaining []*Fiber
	for f := oldFiber; f != nil; f = f.Sibling {
		existing[slotKey(f.Key, f.Index)] = f
		remaining = append(remaining, f)
	}

	for ; newIdx < len(newChildren); newIdx++ {
		f, err := c.updateFromMap(existing, returnFiber, newIdx, newChildren[newIdx], renderLanes)
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		if c.track && f.Alternate != nil {
			delete(existing, slotKey(f.Key, f.Alternate.Index))
		}
		lastPlacedIndex = c.placeChild(f, lastPlacedIndex, newIdx)
		link(f)
	}

	if c.track {
		for _, f := range remaining {
			if _, ok := existing[slotKey(f.Key, f.Index)]; ok {
				c.deleteChild(returnFiber, f)
			}
		}
	}
	return first, nil
}
