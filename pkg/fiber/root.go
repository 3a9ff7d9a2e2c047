package fiber

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// FiberRoot is the top of a tree. Current points at the committed HostRoot
// fiber.
type FiberRoot struct {
	ContainerInfo Instance
	Current       *Fiber
	Lanes         lanes.RootLanes

	FinishedWork  *Fiber
	FinishedLanes lanes.Lanes

	CallbackNode     *scheduler.Task
	CallbackPriority lanes.Lane

	// pingCache maps a thenable to the render lanes already listening on it.
	pingCache map[Thenable]mapset.Set[lanes.Lanes]

	// lastError is the most recent uncaught render error.
	lastError error
}

func newFiberRoot(container Instance) *FiberRoot {
	root := &FiberRoot{
		ContainerInfo: container,
		Lanes:         lanes.NewRootLanes(),
		pingCache:     make(map[Thenable]mapset.Set[lanes.Lanes]),
	}
	uninitialized := createFiber(HostRoot, nil, "")
	uninitialized.StateNode = root
	uninitialized.MemoizedState = State{"element": nil}
	initializeUpdateQueue(uninitialized)
	root.Current = uninitialized
	return root
}

// Err returns the last error that escaped every boundary while rendering the
// root, or nil.
func (r *FiberRoot) Err() error { return r.lastError }

// Element returns the node most recently committed to the root.
func (r *FiberRoot) Element() Node {
	if s, ok := r.Current.MemoizedState.(State); ok {
		return s["element"]
	}
	return nil
}
