// Package fiber implements a lane-scheduled reconciler for declarative trees.
//
// Components describe what a host tree should look like; the reconciler
// computes the mutations needed to bring a persistent host tree (owned by a
// HostConfig) in sync, splitting the work into small units that can be
// interrupted and re-prioritized.
//
// # Trees
//
// Every position in the component tree is backed by a Fiber. A committed
// "current" tree and a "work-in-progress" tree are linked through
// Fiber.Alternate; a render pass builds the work-in-progress tree and a commit
// swaps it in with a single pointer assignment on the FiberRoot.
//
// # Components
//
// A function component is a *Component created with FC:
//
//	var Counter = fiber.FC("Counter", func(h *fiber.Hooks, props fiber.Props) (fiber.Node, error) {
//	    count, setCount := fiber.UseState(h, 0)
//	    return fiber.H("button", fiber.Props{"onClick": func() { setCount.Update(inc) }},
//	        strconv.Itoa(count)), nil
//	})
//
// Hooks are identified by call order. Calling them conditionally is reported
// as an errors.HookError and aborts the render.
//
// # Priorities
//
// Updates are tagged with lanes (see package lanes). The root scheduler picks
// the most urgent pending lanes, runs a render for them on a scheduler task
// (or synchronously for the sync lane) and commits the result.
//
// # Suspension
//
// A component that cannot render yet returns Suspend(thenable). The nearest
// Suspense boundary renders its fallback and the subtree is retried once the
// thenable settles.
//
// A Reconciler is bound to the goroutine that first drives it. All entry
// points, setters and host callbacks must run on that goroutine.
package fiber
