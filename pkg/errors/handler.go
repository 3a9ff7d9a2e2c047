package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

type handlerBox struct{ h ErrorHandler }

var handler atomic.Pointer[handlerBox]

// SetHandler replaces the process-wide error handler. Nil restores the
// default, a LogHandler writing to stderr.
func SetHandler(h ErrorHandler) {
	if h == nil {
		handler.Store(nil)
		return
	}
	handler.Store(&handlerBox{h: h})
}

// Handler returns the process-wide error handler.
func Handler() ErrorHandler {
	if b := handler.Load(); b != nil {
		return b.h
	}
	return defaultHandler
}

var defaultHandler ErrorHandler = &LogHandler{}

// Report hands err to the current handler, stamping it if needed.
func Report(err *FiberError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandleError(err)
}

// ReportPanic hands err to the current handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandlePanic(err)
}

// ReportRenderError hands err to the current handler, stamping it if needed.
func ReportRenderError(err *RenderError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandleRenderError(err)
}

// Recover reports a panic in progress as a PanicError for op and then
// passes it to fn, if set. It must be deferred directly:
//
//	defer errors.Recover("fiber.effectCreate", nil)
func Recover(op string, fn func(*PanicError)) {
	v := recover()
	if v == nil {
		return
	}
	pe := &PanicError{Op: op, Value: v, StackTrace: CaptureStack(), Timestamp: time.Now()}
	ReportPanic(pe)
	if fn != nil {
		fn(pe)
	}
}

// CaptureStack formats the stack of its caller's caller, one
// "function\n\tfile:line" entry per frame.
func CaptureStack() string {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			return sb.String()
		}
	}
}
