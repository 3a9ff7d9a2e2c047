// Package hostloop runs a fiber reconciler on a go-eventloop goroutine.
//
// A Loop implements scheduler.Host: scheduler slices are submitted to the
// event loop as macrotasks and timeouts run as loop timers. Hosts wrapped
// with WrapHost queue the reconciler's microtasks on the loop's microtask
// ring.
//
// The reconciler binds itself to the goroutine that creates it, so create it
// inside Do and drive it only from Do or Dispatch:
//
//	l, _ := hostloop.New()
//	go l.Run(ctx)
//	sched := scheduler.New(l)
//	var rec *fiber.Reconciler
//	l.Do(ctx, func() {
//	    rec = fiber.NewReconciler(l.WrapHost(host), sched, fiber.Options{})
//	})
package hostloop

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/fiber"
	"github.com/go-drift/fiber/pkg/scheduler"
)

// ErrNotRunning is returned by Do once the loop has stopped.
var ErrNotRunning = errors.New("hostloop: loop is not running")

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return func(lp *Loop) {
		lp.logger = l.Clone().Str("category", "hostloop").Logger()
	}
}

// Loop is an event-loop backed scheduler.Host.
type Loop struct {
	loop  *eventloop.Loop
	start time.Time

	// Only touched on the loop goroutine.
	timerGen uint64

	stopped    atomic.Bool
	microtasks atomic.Int64
	logger     *logiface.Logger[logiface.Event]
}

var _ scheduler.Host = (*Loop)(nil)

// New creates a Loop. Nothing runs until Run is called.
func New(opts ...Option) (*Loop, error) {
	el, err := eventloop.New()
	if err != nil {
		return nil, fmt.Errorf("hostloop: create event loop: %w", err)
	}
	l := &Loop{loop: el, start: time.Now()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run runs the event loop until ctx is done or Shutdown is called.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stopped.Store(true)
	l.logger.Debug().Log("event loop started")
	err := l.loop.Run(ctx)
	l.logger.Debug().Err(err).Log("event loop stopped")
	return err
}

// Shutdown stops the loop after the queued tasks have run.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.stopped.Store(true)
	return l.loop.Shutdown(ctx)
}

// Now returns the time elapsed since New.
func (l *Loop) Now() time.Duration { return time.Since(l.start) }

// RequestCallback submits fn as a macrotask.
func (l *Loop) RequestCallback(fn func()) {
	l.submit("RequestCallback", fn)
}

// RequestTimeout runs fn on the loop once d has passed, replacing the
// pending timeout.
func (l *Loop) RequestTimeout(fn func(), d time.Duration) {
	l.CancelTimeout()
	gen := l.timerGen
	_, err := l.loop.ScheduleTimer(d, func() {
		if gen != l.timerGen {
			return
		}
		fn()
	})
	if err != nil {
		l.logger.Warning().Str("method", "RequestTimeout").Err(err).Log("timer dropped")
	}
}

// CancelTimeout drops the pending timeout. The loop timer itself stays
// armed and is ignored when it fires: CancelTimer waits for the loop
// goroutine, which is the caller here.
func (l *Loop) CancelTimeout() {
	l.timerGen++
}

// ScheduleMicrotask runs fn after the current task.
func (l *Loop) ScheduleMicrotask(fn func()) {
	l.microtasks.Add(1)
	err := l.loop.ScheduleMicrotask(func() {
		defer l.microtasks.Add(-1)
		fn()
	})
	if err != nil {
		l.microtasks.Add(-1)
		l.logger.Warning().Err(err).Log("microtask dropped")
	}
}

// Dispatch runs fn on the loop goroutine without waiting for it. It reports
// whether fn was queued.
func (l *Loop) Dispatch(fn func()) bool {
	if fn == nil || l.stopped.Load() {
		return false
	}
	return l.loop.Submit(fn) == nil
}

// Do runs fn on the loop goroutine and waits for it to return. A panic in
// fn is returned as an *errors.PanicError.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	if l.stopped.Load() {
		return ErrNotRunning
	}
	done := make(chan error, 1)
	err := l.loop.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &errors.PanicError{
					Op:         "hostloop.Do",
					Value:      r,
					StackTrace: errors.CaptureStack(),
					Timestamp:  time.Now(),
				}
			}
		}()
		fn()
		done <- nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settle waits until sched has no queued task and no microtask is pending.
// Delayed tasks count as queued.
func (l *Loop) Settle(ctx context.Context, sched *scheduler.Scheduler) error {
	for {
		busy := false
		check := func() { busy = sched.HasPendingTasks() || l.microtasks.Load() > 0 }
		if err := l.Do(ctx, check); err != nil {
			return err
		}
		if !busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (l *Loop) submit(method string, fn func()) {
	if err := l.loop.Submit(fn); err != nil {
		l.logger.Warning().Str("method", method).Err(err).Log("task dropped")
	}
}

// WrapHost returns h with ScheduleMicrotask routed to the loop.
func (l *Loop) WrapHost(h fiber.HostConfig) fiber.HostConfig {
	return &loopHost{HostConfig: h, loop: l}
}

type loopHost struct {
	fiber.HostConfig
	loop *Loop
}

func (h *loopHost) ScheduleMicrotask(fn func()) { h.loop.ScheduleMicrotask(fn) }
