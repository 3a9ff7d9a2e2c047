// Package scheduler runs prioritized tasks cooperatively on a single thread.
//
// Tasks are kept in a min-heap ordered by expiration time. The run loop yields
// back to its Host once a time slice is used up, unless the task at the top of
// the heap has already expired, in which case it runs to completion. A task
// callback may return a continuation, which keeps the task in place so that
// long work can be split across slices without losing its position.
//
// A Scheduler is not safe for concurrent use. Every method must be called
// from the thread that drives the Host.
package scheduler

import (
	"time"

	"github.com/joeycumines/logiface"

	"github.com/go-drift/fiber/pkg/errors"
)

// DefaultFrameInterval is the time slice after which ShouldYield reports true.
const DefaultFrameInterval = 5 * time.Millisecond

// Callback is the unit of scheduled work. didTimeout reports whether the task
// expired before it started. A non-nil return value continues the task.
type Callback func(didTimeout bool) Callback

// Task is a handle to scheduled work.
type Task struct {
	ID             uint64
	Priority       Priority
	StartTime      time.Duration
	ExpirationTime time.Duration

	sortIndex time.Duration
	callback  Callback
}

// Cancelled reports whether the task was cancelled or has already finished.
func (t *Task) Cancelled() bool { return t == nil || t.callback == nil }

// Host supplies time and wake-ups to a Scheduler.
type Host interface {
	// Now returns a monotonic timestamp.
	Now() time.Duration
	// RequestCallback arranges for fn to run as a fresh macrotask.
	RequestCallback(fn func())
	// RequestTimeout arranges for fn to run after d, replacing any pending timeout.
	RequestTimeout(fn func(), d time.Duration)
	// CancelTimeout cancels the pending timeout, if any.
	CancelTimeout()
}

// YieldPolicy may be implemented by a Host to decide when the run loop yields.
// elapsed is the time spent in the current slice.
type YieldPolicy interface {
	ShouldYield(elapsed, frameInterval time.Duration) bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithFrameInterval sets the time slice length.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.frameInterval = d
		}
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return func(s *Scheduler) {
		s.logger = l.Clone().Str("category", "scheduler").Logger()
	}
}

// ScheduleOption configures a single ScheduleCallback call.
type ScheduleOption func(*scheduleOptions)

type scheduleOptions struct {
	delay time.Duration
}

// WithDelay postpones the task's start time by d.
func WithDelay(d time.Duration) ScheduleOption {
	return func(o *scheduleOptions) { o.delay = d }
}

// Scheduler is a cooperative task scheduler.
type Scheduler struct {
	host          Host
	logger        *logiface.Logger[logiface.Event]
	frameInterval time.Duration

	taskQueue  taskHeap
	timerQueue taskHeap
	nextID     uint64

	currentTask     *Task
	currentPriority Priority

	isPerformingWork        bool
	isHostCallbackScheduled bool
	isHostTimeoutScheduled  bool
	isMessageLoopRunning    bool

	sliceStart time.Duration
}

// New creates a Scheduler driven by host.
func New(host Host, opts ...Option) *Scheduler {
	s := &Scheduler{
		host:            host,
		frameInterval:   DefaultFrameInterval,
		currentPriority: NormalPriority,
		nextID:          1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the host's current time.
func (s *Scheduler) Now() time.Duration { return s.host.Now() }

// CurrentPriority returns the priority of the running task, or of the
// innermost RunWithPriority call.
func (s *Scheduler) CurrentPriority() Priority { return s.currentPriority }

// RunWithPriority runs fn with the current priority set to p.
func (s *Scheduler) RunWithPriority(p Priority, fn func()) {
	switch p {
	case ImmediatePriority, UserBlockingPriority, NormalPriority, LowPriority, IdlePriority:
	default:
		p = NormalPriority
	}
	prev := s.currentPriority
	s.currentPriority = p
	defer func() { s.currentPriority = prev }()
	fn()
}

// ScheduleCallback queues cb at priority p and returns its task.
func (s *Scheduler) ScheduleCallback(p Priority, cb Callback, opts ...ScheduleOption) *Task {
	var o scheduleOptions
	for _, opt := range opts {
		opt(&o)
	}

	now := s.host.Now()
	start := now
	if o.delay > 0 {
		start = now + o.delay
	}

	task := &Task{
		ID:             s.nextID,
		Priority:       p,
		StartTime:      start,
		ExpirationTime: start + p.Timeout(),
		callback:       cb,
	}
	s.nextID++

	if start > now {
		task.sortIndex = start
		s.timerQueue.push(task)
		if s.taskQueue.peek() == nil && task == s.timerQueue.peek() {
			s.requestHostTimeout(start - now)
		}
	} else {
		task.sortIndex = task.ExpirationTime
		s.taskQueue.push(task)
		if !s.isHostCallbackScheduled && !s.isPerformingWork {
			s.isHostCallbackScheduled = true
			s.requestHostCallback()
		}
	}

	s.logger.Trace().
		Uint64("task", task.ID).
		Stringer("priority", p).
		Dur("delay", o.delay).
		Log("task scheduled")
	return task
}

// CancelCallback cancels task. The heap entry is dropped lazily when it
// reaches the top.
func (s *Scheduler) CancelCallback(task *Task) {
	if task == nil {
		return
	}
	task.callback = nil
}

// ShouldYield reports whether the current time slice is used up.
func (s *Scheduler) ShouldYield() bool {
	elapsed := s.host.Now() - s.sliceStart
	if p, ok := s.host.(YieldPolicy); ok {
		return p.ShouldYield(elapsed, s.frameInterval)
	}
	return elapsed >= s.frameInterval
}

// RequestPaint is a hint that the host should paint soon. It has no effect on
// hosts without a paint step.
func (s *Scheduler) RequestPaint() {}

// ForceFrameRate sets the slice length to one frame at fps. Zero restores the
// default; values outside 0..125 are ignored.
func (s *Scheduler) ForceFrameRate(fps int) {
	if fps < 0 || fps > 125 {
		s.logger.Err().
			Int("fps", fps).
			Log("forceFrameRate takes a positive int between 0 and 125, forcing frame rates higher than 125 fps is not supported")
		return
	}
	if fps > 0 {
		s.frameInterval = time.Second / time.Duration(fps)
	} else {
		s.frameInterval = DefaultFrameInterval
	}
}

// FrameInterval returns the current slice length.
func (s *Scheduler) FrameInterval() time.Duration { return s.frameInterval }

// HasPendingTasks reports whether any ready or delayed task is queued.
func (s *Scheduler) HasPendingTasks() bool {
	return len(s.taskQueue) > 0 || len(s.timerQueue) > 0
}

func (s *Scheduler) requestHostCallback() {
	if !s.isMessageLoopRunning {
		s.isMessageLoopRunning = true
		s.host.RequestCallback(s.performWorkUntilDeadline)
	}
}

func (s *Scheduler) requestHostTimeout(d time.Duration) {
	if s.isHostTimeoutScheduled {
		s.host.CancelTimeout()
	}
	s.isHostTimeoutScheduled = true
	s.host.RequestTimeout(s.handleTimeout, d)
}

func (s *Scheduler) cancelHostTimeout() {
	if s.isHostTimeoutScheduled {
		s.isHostTimeoutScheduled = false
		s.host.CancelTimeout()
	}
}

func (s *Scheduler) handleTimeout() {
	s.isHostTimeoutScheduled = false
	now := s.host.Now()
	s.advanceTimers(now)

	if s.isHostCallbackScheduled {
		return
	}
	if s.taskQueue.peek() != nil {
		s.isHostCallbackScheduled = true
		s.requestHostCallback()
	} else if first := s.timerQueue.peek(); first != nil {
		s.requestHostTimeout(first.StartTime - now)
	}
}

// advanceTimers moves delayed tasks whose start time has passed onto the
// ready queue.
func (s *Scheduler) advanceTimers(now time.Duration) {
	for t := s.timerQueue.peek(); t != nil; t = s.timerQueue.peek() {
		switch {
		case t.callback == nil:
			s.timerQueue.pop()
		case t.StartTime <= now:
			s.timerQueue.pop()
			t.sortIndex = t.ExpirationTime
			s.taskQueue.push(t)
		default:
			return
		}
	}
}

func (s *Scheduler) performWorkUntilDeadline() {
	if !s.isMessageLoopRunning {
		return
	}
	now := s.host.Now()
	s.sliceStart = now

	hasMoreWork := true
	defer func() {
		if hasMoreWork {
			s.host.RequestCallback(s.performWorkUntilDeadline)
		} else {
			s.isMessageLoopRunning = false
		}
	}()
	hasMoreWork = s.flushWork(now)
}

func (s *Scheduler) flushWork(initialTime time.Duration) bool {
	s.isHostCallbackScheduled = false
	s.cancelHostTimeout()

	s.isPerformingWork = true
	prevPriority := s.currentPriority
	defer func() {
		s.currentTask = nil
		s.currentPriority = prevPriority
		s.isPerformingWork = false
	}()
	return s.workLoop(initialTime)
}

func (s *Scheduler) workLoop(initialTime time.Duration) bool {
	now := initialTime
	s.advanceTimers(now)
	s.currentTask = s.taskQueue.peek()
	for s.currentTask != nil {
		task := s.currentTask
		if task.ExpirationTime > now && s.ShouldYield() {
			// Out of time; the task has not expired so it can wait.
			break
		}
		cb := task.callback
		if cb == nil {
			s.taskQueue.pop()
			s.currentTask = s.taskQueue.peek()
			continue
		}

		task.callback = nil
		s.currentPriority = task.Priority
		didTimeout := task.ExpirationTime <= now
		next := s.invoke(task, cb, didTimeout)
		now = s.host.Now()
		if next != nil {
			task.callback = next
			s.advanceTimers(now)
			return true
		}
		if task == s.taskQueue.peek() {
			s.taskQueue.pop()
		}
		s.advanceTimers(now)
		s.currentTask = s.taskQueue.peek()
	}

	if s.currentTask != nil {
		return true
	}
	if first := s.timerQueue.peek(); first != nil {
		s.requestHostTimeout(first.StartTime - now)
	}
	return false
}

// invoke runs cb, converting a panic into a reported error so that the
// remaining tasks still run.
func (s *Scheduler) invoke(task *Task, cb Callback, didTimeout bool) (next Callback) {
	defer func() {
		if r := recover(); r != nil {
			next = nil
			errors.ReportPanic(&errors.PanicError{
				Op:         "scheduler.workLoop",
				Value:      r,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			})
			s.logger.Err().
				Uint64("task", task.ID).
				Interface("panic", r).
				Log("task panicked")
		}
	}()
	return cb(didTimeout)
}
