// Package errors provides structured error handling for the fiber reconciler.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindMisuse indicates a programmer error, such as calling hooks conditionally.
	KindMisuse
	// KindInvariant indicates a broken framework invariant.
	KindInvariant
	// KindHost indicates a failure reported by the host collaborator during commit.
	KindHost
	// KindRender indicates a component render failure.
	KindRender
	// KindPanic indicates a recovered panic.
	KindPanic
	// KindScheduler indicates a scheduler task failure.
	KindScheduler
)

func (k ErrorKind) String() string {
	switch k {
	case KindMisuse:
		return "misuse"
	case KindInvariant:
		return "invariant"
	case KindHost:
		return "host"
	case KindRender:
		return "render"
	case KindPanic:
		return "panic"
	case KindScheduler:
		return "scheduler"
	default:
		return "unknown"
	}
}

// Hook misuse sentinels. HookError unwraps to one of these.
var (
	ErrMoreHooks         = errors.New("Rendered more hooks than during the previous render")
	ErrFewerHooks        = errors.New("Rendered fewer hooks than expected. This may be caused by an accidental early return statement")
	ErrUpdateHookOnMount = errors.New("Update hook called on initial render. This is likely a bug in the reconciler")
	ErrInvalidHookCall   = errors.New("Invalid hook call. Hooks can only be called inside of the body of a function component")
	ErrTooManyRerenders  = errors.New("Too many re-renders. The number of renders is limited to prevent an infinite loop")
	ErrHookTypeChanged   = errors.New("A hook changed kind between renders. Hooks must be called in the same order on every render")
	ErrMaxUpdateDepth    = errors.New("Maximum update depth exceeded. A component keeps scheduling synchronous updates from its layout effects")
)

// FiberError represents a structured error raised by the reconciler.
type FiberError struct {
	// Op is the operation that failed (e.g., "fiber.commitPlacement").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Fiber describes the fiber involved, if any.
	Fiber string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *FiberError) Error() string {
	if e.Fiber != "" {
		return fmt.Sprintf("%s [%s] fiber=%s: %v", e.Op, e.Kind, e.Fiber, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *FiberError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "scheduler.workLoop").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// HookError reports a hook called out of order or outside of a render.
type HookError struct {
	// Component is the display name of the component being rendered.
	Component string
	// Reason is one of the Err*Hook sentinels.
	Reason error
}

func (e *HookError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%v (in %s)", e.Reason, e.Component)
	}
	return e.Reason.Error()
}

func (e *HookError) Unwrap() error {
	return e.Reason
}

// InvariantError reports a framework bug such as a missing host parent.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Message
}

// Invariantf builds an InvariantError from a format string.
func Invariantf(format string, args ...any) *InvariantError {
	return &InvariantError{Message: fmt.Sprintf(format, args...)}
}

// HostError wraps a failure returned by the host collaborator.
type HostError struct {
	// Method is the host method that failed (e.g., "InsertBefore").
	Method string
	// Type is the host type of the instance involved, if known.
	Type string
	// Err is the error returned by the host.
	Err error
}

func (e *HostError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("host %s(%s) failed: %v", e.Method, e.Type, e.Err)
	}
	return fmt.Sprintf("host %s failed: %v", e.Method, e.Err)
}

func (e *HostError) Unwrap() error {
	return e.Err
}

// RenderError represents a failure while rendering a component.
type RenderError struct {
	// Component is the display name of the component that failed.
	Component string
	// Recovered is the panic value (nil for returned errors).
	Recovered any
	// Err is the underlying error (nil for panics).
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *RenderError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("panic in %s render: %v", e.Component, e.Recovered)
	}
	if e.Err != nil {
		return fmt.Sprintf("error in %s render: %v", e.Component, e.Err)
	}
	return fmt.Sprintf("unknown error in %s render", e.Component)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives errors reported by the reconciler.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *FiberError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleRenderError is called when a component render fails.
	HandleRenderError(err *RenderError)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }

// Join wraps errs into one error, discarding nils.
func Join(errs ...error) error { return errors.Join(errs...) }
