package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/go-drift/fiber/pkg/fiber"
	"github.com/go-drift/fiber/pkg/hostloop"
	"github.com/go-drift/fiber/pkg/hosttree"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// Options configures Run.
type Options struct {
	Logger *logiface.Logger[logiface.Event]
	// FrameInterval overrides the scheduler's time slice when positive.
	FrameInterval time.Duration
}

// ErrorKind says how the reconciler reported an error.
type ErrorKind string

const (
	ErrorUncaught    ErrorKind = "uncaught"
	ErrorCaught      ErrorKind = "caught"
	ErrorRecoverable ErrorKind = "recoverable"
)

// StepError is an error reported while a step ran.
type StepError struct {
	Kind ErrorKind
	Err  error
}

func (e StepError) Error() string { return string(e.Kind) + ": " + e.Err.Error() }

func (e StepError) Unwrap() error { return e.Err }

// StepResult is the outcome of one step.
type StepResult struct {
	Name     string
	Priority string
	Lane     lanes.Lane
	Tree     string
	Ops      []hosttree.Op
	Errors   []StepError
	Elapsed  time.Duration
}

// Run plays sc on a fresh event loop and in-memory host, returning one
// result per step. Each step waits until the scheduler and the microtask
// queue are idle before its tree is captured.
func Run(ctx context.Context, sc *Scenario, opts Options) ([]StepResult, error) {
	l, err := hostloop.New(hostloop.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := l.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			opts.Logger.Err().Err(err).Log("event loop failed")
		}
	}()
	defer func() {
		cancel()
		<-done
	}()

	var schedOpts []scheduler.Option
	if opts.FrameInterval > 0 {
		schedOpts = append(schedOpts, scheduler.WithFrameInterval(opts.FrameInterval))
	}
	schedOpts = append(schedOpts, scheduler.WithLogger(opts.Logger))
	sched := scheduler.New(l, schedOpts...)
	host := hosttree.New(hosttree.WithLogger(opts.Logger))

	// Only touched on the loop goroutine.
	var (
		rec     *fiber.Reconciler
		root    *fiber.FiberRoot
		pending []StepError
	)
	report := func(kind ErrorKind) func(error) {
		return func(err error) { pending = append(pending, StepError{Kind: kind, Err: err}) }
	}
	err = l.Do(ctx, func() {
		rec = fiber.NewReconciler(l.WrapHost(host), sched, fiber.Options{
			Logger: opts.Logger,
			OnUncaughtError: func(_ *fiber.FiberRoot, err error) {
				report(ErrorUncaught)(err)
			},
			OnCaughtError:      report(ErrorCaught),
			OnRecoverableError: report(ErrorRecoverable),
		})
		root = rec.CreateContainer(host.Container())
	})
	if err != nil {
		return nil, err
	}

	results := make([]StepResult, 0, len(sc.Steps))
	for _, step := range sc.Steps {
		node := step.Tree.Build()
		priority := strings.ToLower(step.Priority)
		if priority == "" {
			priority = PriorityDefault
		}
		res := StepResult{Name: step.Name, Priority: priority}
		start := time.Now()

		err := l.Do(ctx, func() {
			host.ClearOps()
			host.ClearFailures()
			for _, name := range step.Fail {
				kind, _ := ParseOpKind(name)
				host.FailOn(kind, nil)
			}
			pending = nil
			lane, syncErr := update(rec, root, node, priority)
			res.Lane = lane
			if syncErr != nil && len(pending) == 0 {
				pending = append(pending, StepError{Kind: ErrorUncaught, Err: syncErr})
			}
		})
		if err == nil {
			err = l.Settle(ctx, sched)
		}
		if err != nil {
			return results, fmt.Errorf("%s: %w", step.Name, err)
		}

		if err := l.Do(ctx, func() {
			res.Elapsed = time.Since(start)
			res.Tree = host.Render()
			res.Ops = host.Ops()
			res.Errors = pending
			pending = nil
			host.ClearFailures()
		}); err != nil {
			return results, err
		}
		opts.Logger.Debug().
			Str("step", res.Name).
			Stringer("lane", res.Lane).
			Int("ops", len(res.Ops)).
			Int("errors", len(res.Errors)).
			Log("step settled")
		results = append(results, res)
	}
	return results, nil
}

// update renders node at priority. Only sync steps return an error, the one
// FlushSync reports.
func update(rec *fiber.Reconciler, root *fiber.FiberRoot, node fiber.Node, priority string) (lanes.Lane, error) {
	var lane lanes.Lane
	do := func() { lane = rec.UpdateContainer(node, root) }
	switch priority {
	case PrioritySync:
		err := rec.FlushSync(do)
		return lane, err
	case PriorityContinuous:
		rec.RunWithPriority(lanes.ContinuousEventPriority, do)
	case PriorityTransition:
		rec.StartTransition(do)
	default:
		do()
	}
	return lane, nil
}
