package fiber

import (
	"github.com/go-drift/fiber/pkg/lanes"
)

// Context carries a value down the tree without threading it through props.
type Context struct {
	name         string
	defaultValue any
}

// CreateContext returns a context whose value is defaultValue outside of any
// provider.
func CreateContext(name string, defaultValue any) *Context {
	return &Context{name: name, defaultValue: defaultValue}
}

func (c *Context) String() string { return c.name }

type contextFrame struct {
	ctx     *Context
	prev    any
	hadPrev bool
}

// dependencies lists the contexts a fiber read during its last render. lanes
// is set by a provider whose value changed.
type dependencies struct {
	lanes    lanes.Lanes
	contexts []*Context
}

func (r *Reconciler) pushProvider(ctx *Context, value any) {
	prev, had := r.ws.contextValues[ctx]
	r.ws.contextStack = append(r.ws.contextStack, contextFrame{ctx: ctx, prev: prev, hadPrev: had})
	r.ws.contextValues[ctx] = value
}

func (r *Reconciler) popProvider(ctx *Context) {
	n := len(r.ws.contextStack)
	if n == 0 {
		return
	}
	frame := r.ws.contextStack[n-1]
	r.ws.contextStack = r.ws.contextStack[:n-1]
	if frame.ctx != ctx {
		r.renderLog.Warning().Str("context", ctx.name).Log("unbalanced context stack")
	}
	if frame.hadPrev {
		r.ws.contextValues[frame.ctx] = frame.prev
	} else {
		delete(r.ws.contextValues, frame.ctx)
	}
}

func (r *Reconciler) pushHostContainer(container Instance) {
	r.ws.hostContainers = append(r.ws.hostContainers, container)
}

func (r *Reconciler) popHostContainer() {
	if n := len(r.ws.hostContainers); n > 0 {
		r.ws.hostContainers = r.ws.hostContainers[:n-1]
	}
}

// prepareToReadContext resets the dependency list of a fiber about to render.
func (r *Reconciler) prepareToReadContext(wip *Fiber, renderLanes lanes.Lanes) {
	if deps := wip.dependencies; deps != nil && lanes.IncludesSome(deps.lanes, renderLanes) {
		r.ws.didReceiveUpdate = true
	}
	wip.dependencies = nil
}

func (r *Reconciler) readContext(consumer *Fiber, ctx *Context) any {
	if consumer != nil {
		deps := consumer.dependencies
		if deps == nil {
			deps = &dependencies{}
			consumer.dependencies = deps
		}
		found := false
		for _, c := range deps.contexts {
			if c == ctx {
				found = true
				break
			}
		}
		if !found {
			deps.contexts = append(deps.contexts, ctx)
		}
	}
	if v, ok := r.ws.contextValues[ctx]; ok {
		return v
	}
	return ctx.defaultValue
}

// propagateContextChange schedules renderLanes on every consumer of ctx below
// provider, stopping at nested providers of the same context.
func (r *Reconciler) propagateContextChange(provider *Fiber, ctx *Context, renderLanes lanes.Lanes) {
	f := provider.Child
	if f != nil {
		f.Return = provider
	}
	for f != nil {
		var next *Fiber
		if deps := f.dependencies; deps != nil && dependsOn(deps, ctx) {
			f.Lanes = lanes.Merge(f.Lanes, renderLanes)
			if alt := f.Alternate; alt != nil {
				alt.Lanes = lanes.Merge(alt.Lanes, renderLanes)
			}
			deps.lanes = lanes.Merge(deps.lanes, renderLanes)
			scheduleContextWorkOnParentPath(f.Return, renderLanes, provider)
			next = f.Child
		} else if f.Tag == ContextProvider && f.Type == provider.Type {
			next = nil
		} else {
			next = f.Child
		}

		if next != nil {
			next.Return = f
		} else {
			next = f
			for next != nil {
				if next == provider {
					next = nil
					break
				}
				if sibling := next.Sibling; sibling != nil {
					sibling.Return = next.Return
					next = sibling
					break
				}
				next = next.Return
			}
		}
		f = next
	}
}

func dependsOn(deps *dependencies, ctx *Context) bool {
	for _, c := range deps.contexts {
		if c == ctx {
			return true
		}
	}
	return false
}

func scheduleContextWorkOnParentPath(parent *Fiber, renderLanes lanes.Lanes, until *Fiber) {
	for node := parent; node != nil; node = node.Return {
		node.ChildLanes = lanes.Merge(node.ChildLanes, renderLanes)
		if alt := node.Alternate; alt != nil {
			alt.ChildLanes = lanes.Merge(alt.ChildLanes, renderLanes)
		}
		if node == until {
			return
		}
	}
}
