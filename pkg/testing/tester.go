package testing

import (
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/go-drift/fiber/pkg/fiber"
	"github.com/go-drift/fiber/pkg/hosttree"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// ErrNotSettled is returned by Flush when work keeps scheduling more work.
var ErrNotSettled = errors.New("Flush did not settle: work kept scheduling more work")

// maxFlushRounds bounds the microtask and macrotask rounds of one Flush.
const maxFlushRounds = 1000

// Option configures a Renderer.
type Option func(*config)

type config struct {
	logger   *logiface.Logger[logiface.Event]
	hostOpts []hosttree.Option
	prefix   string
}

// WithLogger routes reconciler, scheduler and host logs to l.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return func(c *config) { c.logger = l }
}

// WithHostOptions passes options to the in-memory host.
func WithHostOptions(opts ...hosttree.Option) Option {
	return func(c *config) { c.hostOpts = append(c.hostOpts, opts...) }
}

// WithIdentifierPrefix sets the prefix of identifiers generated by UseID.
func WithIdentifierPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// Renderer renders fiber trees into an in-memory host with a virtual
// clock. Nothing runs on its own: Render and Act flush synchronously, while
// Update, Transition and AdvanceTime leave the work on the scheduler for an
// explicit Flush.
//
// A Renderer must be used from the goroutine that created it.
type Renderer struct {
	host  *hosttree.Host
	vhost *scheduler.VirtualHost
	sched *scheduler.Scheduler
	rec   *fiber.Reconciler
	root  *fiber.FiberRoot
	clock *FakeClock

	uncaught    []error
	caught      []error
	recoverable []error
}

// NewRenderer creates a renderer with an empty root.
// Call Cleanup() when done, or use NewRendererWithT() instead.
func NewRenderer(opts ...Option) *Renderer {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	hostOpts := append([]hosttree.Option{hosttree.WithLogger(cfg.logger)}, cfg.hostOpts...)

	r := &Renderer{
		host:  hosttree.New(hostOpts...),
		vhost: scheduler.NewVirtualHost(),
	}
	r.clock = NewFakeClock(r.vhost)
	r.sched = scheduler.New(r.vhost, scheduler.WithLogger(cfg.logger))
	r.rec = fiber.NewReconciler(r.host, r.sched, fiber.Options{
		Logger:             cfg.logger,
		IdentifierPrefix:   cfg.prefix,
		OnUncaughtError:    func(_ *fiber.FiberRoot, err error) { r.uncaught = append(r.uncaught, err) },
		OnCaughtError:      func(err error) { r.caught = append(r.caught, err) },
		OnRecoverableError: func(err error) { r.recoverable = append(r.recoverable, err) },
	})
	r.root = r.rec.CreateContainer(r.host.Container())
	return r
}

// NewRendererWithT creates a renderer that unmounts its tree via t.Cleanup().
// This is the recommended constructor for tests.
func NewRendererWithT(t *testing.T, opts ...Option) *Renderer {
	r := NewRenderer(opts...)
	t.Cleanup(r.Cleanup)
	return r
}

// Cleanup unmounts the rendered tree, running every effect destroy.
func (r *Renderer) Cleanup() {
	if r.root.Current.Child == nil {
		return
	}
	_ = r.Render(nil)
}

// Render renders node into the root and flushes all resulting work. The
// error is the first one that escaped every boundary.
func (r *Renderer) Render(node fiber.Node) error {
	return r.Act(func() {
		r.rec.UpdateContainer(node, r.root)
	})
}

// Act runs fn and flushes every update, effect and follow-up render it
// caused before returning.
func (r *Renderer) Act(fn func()) error {
	err := r.rec.Act(fn)
	// Drain microtasks and cancelled tasks that Act made redundant.
	if ferr := r.Flush(); err == nil {
		err = ferr
	}
	return err
}

// Update schedules node to be rendered without flushing and returns the
// lane it was assigned.
func (r *Renderer) Update(node fiber.Node) lanes.Lane {
	return r.rec.UpdateContainer(node, r.root)
}

// Transition runs fn inside a transition without flushing.
func (r *Renderer) Transition(fn func()) {
	r.rec.StartTransition(fn)
}

// Flush runs pending microtasks and scheduler tasks until both queues are
// empty. Delayed tasks stay queued until AdvanceTime reaches them.
func (r *Renderer) Flush() error {
	for round := 0; round < maxFlushRounds; round++ {
		ran := r.host.FlushMicrotasks()
		ran += r.vhost.FlushUntilIdle()
		if ran == 0 {
			return nil
		}
	}
	return ErrNotSettled
}

// FlushOne runs pending microtasks and then at most one scheduler slice. It
// reports whether a slice ran.
func (r *Renderer) FlushOne() bool {
	r.host.FlushMicrotasks()
	return r.vhost.FlushOne()
}

// AdvanceTime moves the virtual clock forward by d and flushes whatever
// became due.
func (r *Renderer) AdvanceTime(d time.Duration) error {
	r.clock.Advance(d)
	return r.Flush()
}

// YieldEvery makes the scheduler yield after every n units of work. Zero
// restores clock-based yielding.
func (r *Renderer) YieldEvery(n int) {
	r.vhost.SetShouldYieldAfter(n)
}

// HasPendingWork reports whether microtasks or scheduler tasks are queued.
func (r *Renderer) HasPendingWork() bool {
	return r.host.PendingMicrotasks() > 0 || r.sched.HasPendingTasks()
}

// Find evaluates a finder against the committed fiber tree.
func (r *Renderer) Find(finder Finder) FinderResult {
	return FinderResult{
		fibers: finder.Evaluate(r.root.Current),
		finder: finder,
	}
}

// Tree returns the host tree as indented text.
func (r *Renderer) Tree() string { return r.host.Render() }

// Ops returns the host op log.
func (r *Renderer) Ops() []hosttree.Op { return r.host.Ops() }

// OpStrings returns the host op log formatted with hosttree.Op.String.
func (r *Renderer) OpStrings() []string { return hosttree.Strings(r.host.Ops()) }

// ClearOps empties the host op log.
func (r *Renderer) ClearOps() { r.host.ClearOps() }

// Err returns the last error that escaped every boundary, or nil.
func (r *Renderer) Err() error { return r.root.Err() }

// UncaughtErrors returns every error that escaped every boundary.
func (r *Renderer) UncaughtErrors() []error { return r.uncaught }

// CaughtErrors returns every error captured by an error boundary.
func (r *Renderer) CaughtErrors() []error { return r.caught }

// RecoverableErrors returns every host failure reported during commit.
func (r *Renderer) RecoverableErrors() []error { return r.recoverable }

// Root returns the fiber root.
func (r *Renderer) Root() *fiber.FiberRoot { return r.root }

// Reconciler returns the reconciler driving the root.
func (r *Renderer) Reconciler() *fiber.Reconciler { return r.rec }

// Host returns the in-memory host.
func (r *Renderer) Host() *hosttree.Host { return r.host }

// Scheduler returns the task scheduler.
func (r *Renderer) Scheduler() *scheduler.Scheduler { return r.sched }

// Clock returns the fake clock.
func (r *Renderer) Clock() *FakeClock { return r.clock }
