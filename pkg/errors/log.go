package errors

import (
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

var (
	stderrLoggerOnce sync.Once
	stderrLogger     *logiface.Logger[logiface.Event]
)

// StderrLogger returns a shared JSON logger writing to stderr.
func StderrLogger() *logiface.Logger[logiface.Event] {
	stderrLoggerOnce.Do(func() {
		stderrLogger = stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
			stumpy.L.WithLevel(logiface.LevelInformational),
		).Logger()
	})
	return stderrLogger
}

// LogHandler is an ErrorHandler that writes structured log events.
type LogHandler struct {
	// Logger receives the events. Nil uses StderrLogger.
	Logger *logiface.Logger[logiface.Event]
	// Verbose enables detailed output including stack traces.
	Verbose bool
}

func (h *LogHandler) logger() *logiface.Logger[logiface.Event] {
	if h.Logger != nil {
		return h.Logger
	}
	return StderrLogger()
}

// HandleError logs a FiberError.
func (h *LogHandler) HandleError(err *FiberError) {
	if err == nil {
		return
	}
	b := h.logger().Err().
		Str("op", err.Op).
		Stringer("kind", err.Kind).
		Err(err.Err)
	if err.Fiber != "" {
		b = b.Str("fiber", err.Fiber)
	}
	if h.Verbose && err.StackTrace != "" {
		b = b.Str("stack", err.StackTrace)
	}
	b.Log("fiber error")
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	b := h.logger().Crit().
		Str("op", err.Op).
		Interface("value", err.Value)
	if h.Verbose && err.StackTrace != "" {
		b = b.Str("stack", err.StackTrace)
	}
	b.Log("fiber panic")
}

// HandleRenderError logs a RenderError.
func (h *LogHandler) HandleRenderError(err *RenderError) {
	if err == nil {
		return
	}
	b := h.logger().Err().
		Str("component", err.Component).
		Str("error", err.Error())
	if h.Verbose && err.StackTrace != "" {
		b = b.Str("stack", err.StackTrace)
	}
	b.Log("render error")
}
