package fiber

import (
	"fmt"
	"strconv"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/lanes"
)

// Fiber is a unit of work and the persistent record of one position in the
// tree. Each position has at most two fibers, linked through Alternate.
type Fiber struct {
	Tag         WorkTag
	Key         string
	ElementType any
	Type        any
	// StateNode is the host instance for host fibers, the *FiberRoot for the
	// HostRoot and the retry cache for Suspense boundaries.
	StateNode any

	PendingProps  Props
	MemoizedProps Props
	// MemoizedState is the hook list for function components, the State for
	// the HostRoot and error boundaries, and non-nil on a Suspense boundary
	// that is showing its fallback.
	MemoizedState any
	// UpdateQueue holds the *UpdateQueue for the HostRoot and error
	// boundaries, the effect list for function components and the pending
	// thenables of a Suspense boundary.
	UpdateQueue any

	Return  *Fiber
	Child   *Fiber
	Sibling *Fiber
	Index   int

	Ref HostRef

	Flags        Flags
	SubtreeFlags Flags
	Deletions    []*Fiber

	Lanes      lanes.Lanes
	ChildLanes lanes.Lanes

	Alternate *Fiber

	dependencies *dependencies
}

func (f *Fiber) String() string {
	if f == nil {
		return "<nil>"
	}
	var s string
	switch f.Tag {
	case HostText:
		s = "HostText(" + strconv.Quote(propsText(f.PendingProps)) + ")"
	case HostRoot:
		s = "HostRoot"
	default:
		s = f.Tag.String() + "(" + typeName(f.Type) + ")"
	}
	if f.Key != "" {
		s += fmt.Sprintf("[key=%q]", f.Key)
	}
	return s
}

// Text returns the text of a HostText fiber.
func (f *Fiber) Text() string { return propsText(f.MemoizedProps) }

// Name returns a display name for the fiber's type.
func (f *Fiber) Name() string {
	if f.Tag == HostText {
		return "#text"
	}
	if f.Tag == HostRoot {
		return "#root"
	}
	return typeName(f.Type)
}

// Children returns the fiber's children in order.
func (f *Fiber) Children() []*Fiber {
	var out []*Fiber
	for c := f.Child; c != nil; c = c.Sibling {
		out = append(out, c)
	}
	return out
}

func createFiber(tag WorkTag, pendingProps Props, key string) *Fiber {
	return &Fiber{
		Tag:          tag,
		Key:          key,
		PendingProps: pendingProps,
	}
}

// createWorkInProgress returns the alternate of current, reusing it when it
// exists, primed with pendingProps and current's committed state.
func createWorkInProgress(current *Fiber, pendingProps Props) *Fiber {
	wip := current.Alternate
	if wip == nil {
		wip = createFiber(current.Tag, pendingProps, current.Key)
		wip.ElementType = current.ElementType
		wip.Type = current.Type
		wip.StateNode = current.StateNode
		wip.Alternate = current
		current.Alternate = wip
	} else {
		wip.PendingProps = pendingProps
		wip.Type = current.Type
		wip.Flags = NoFlags
		wip.SubtreeFlags = NoFlags
		wip.Deletions = nil
	}

	wip.Flags = current.Flags & StaticMask
	wip.ChildLanes = current.ChildLanes
	wip.Lanes = current.Lanes

	wip.Child = current.Child
	wip.MemoizedProps = current.MemoizedProps
	wip.MemoizedState = current.MemoizedState
	wip.UpdateQueue = current.UpdateQueue
	wip.dependencies = current.dependencies

	wip.Sibling = current.Sibling
	wip.Index = current.Index
	wip.Ref = current.Ref
	return wip
}

func createFiberFromElement(el *Element, renderLanes lanes.Lanes) (*Fiber, error) {
	var tag WorkTag
	switch t := el.Type.(type) {
	case string:
		tag = HostComponent
	case *Component:
		if t == nil || t.Render == nil {
			return nil, invalidElementType(el)
		}
		tag = FunctionComponent
	case *Context:
		if t == nil {
			return nil, invalidElementType(el)
		}
		tag = ContextProvider
	case *Builtin:
		switch t {
		case FragmentType:
			tag = FragmentTag
		case SuspenseType:
			tag = SuspenseComponent
		case ErrorBoundaryType:
			tag = ErrorBoundary
		default:
			return nil, invalidElementType(el)
		}
	default:
		return nil, invalidElementType(el)
	}
	f := createFiber(tag, el.Props, el.Key)
	f.ElementType = el.Type
	f.Type = el.Type
	f.Ref = el.Ref
	f.Lanes = renderLanes
	return f, nil
}

func createFiberFromFragment(children Node, key string, renderLanes lanes.Lanes) *Fiber {
	f := createFiber(FragmentTag, Props{"children": children}, key)
	f.ElementType = FragmentType
	f.Type = FragmentType
	f.Lanes = renderLanes
	return f
}

func createFiberFromText(text string, renderLanes lanes.Lanes) *Fiber {
	f := createFiber(HostText, textProps(text), "")
	f.Lanes = renderLanes
	return f
}

func invalidElementType(el *Element) error {
	return &errors.FiberError{
		Op:   "fiber.createFiberFromElement",
		Kind: errors.KindRender,
		Err:  fmt.Errorf("element type is invalid: got %T (%v)", el.Type, el.Type),
	}
}

// unknownTag is returned by every tag switch's default branch.
func unknownTag(op string, f *Fiber) error {
	return &errors.FiberError{
		Op:    op,
		Kind:  errors.KindInvariant,
		Err:   errors.Invariantf("unknown fiber tag %d", f.Tag),
		Fiber: f.String(),
	}
}
