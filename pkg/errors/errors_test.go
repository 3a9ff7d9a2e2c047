package errors

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

func TestFiberErrorString(t *testing.T) {
	err := &FiberError{
		Op:   "fiber.commitPlacement",
		Kind: KindHost,
		Err:  &HostError{Method: "AppendChild", Type: "div", Err: New("boom")},
	}
	got := err.Error()
	want := "fiber.commitPlacement [host]: host AppendChild(div) failed: boom"
	if got != want {
		t.Errorf("FiberError.Error() = %q, want %q", got, want)
	}
}

func TestFiberErrorWithFiber(t *testing.T) {
	err := &FiberError{
		Op:    "fiber.beginWork",
		Kind:  KindInvariant,
		Fiber: "HostComponent(div)",
		Err:   Invariantf("unknown fiber tag %d", 99),
	}
	got := err.Error()
	if !strings.Contains(got, "fiber=HostComponent(div)") {
		t.Errorf("error string %q should contain fiber info", got)
	}
	if !strings.Contains(got, "unknown fiber tag 99") {
		t.Errorf("error string %q should contain invariant message", got)
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindMisuse, "misuse"},
		{KindInvariant, "invariant"},
		{KindHost, "host"},
		{KindRender, "render"},
		{KindPanic, "panic"},
		{KindScheduler, "scheduler"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestHookErrorUnwrap(t *testing.T) {
	err := &HookError{Component: "Counter", Reason: ErrMoreHooks}
	if !Is(err, ErrMoreHooks) {
		t.Error("expected HookError to unwrap to ErrMoreHooks")
	}
	want := "Rendered more hooks than during the previous render (in Counter)"
	if got := err.Error(); got != want {
		t.Errorf("HookError.Error() = %q, want %q", got, want)
	}

	var wrapped error = &FiberError{Op: "fiber.renderWithHooks", Kind: KindMisuse, Err: err}
	var hookErr *HookError
	if !As(wrapped, &hookErr) {
		t.Fatal("expected errors.As to find HookError")
	}
	if hookErr.Component != "Counter" {
		t.Errorf("Component = %q, want %q", hookErr.Component, "Counter")
	}
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{
		Value:     "test panic",
		Timestamp: time.Now(),
	}
	want := "panic: test panic"
	if got := err.Error(); got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}

	err.Op = "scheduler.workLoop"
	want = "panic in scheduler.workLoop: test panic"
	if got := err.Error(); got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
}

func TestRenderErrorString(t *testing.T) {
	err := &RenderError{Component: "Counter", Recovered: "nil pointer dereference"}
	want := "panic in Counter render: nil pointer dereference"
	if got := err.Error(); got != want {
		t.Errorf("RenderError.Error() = %q, want %q", got, want)
	}

	err2 := &RenderError{Component: "Counter", Err: New("bad input")}
	want2 := "error in Counter render: bad input"
	if got := err2.Error(); got != want2 {
		t.Errorf("RenderError.Error() = %q, want %q", got, want2)
	}

	err3 := &RenderError{Component: "Counter"}
	want3 := "unknown error in Counter render"
	if got := err3.Error(); got != want3 {
		t.Errorf("RenderError.Error() = %q, want %q", got, want3)
	}
}

func TestReport(t *testing.T) {
	var capturedErr *FiberError
	SetHandler(&testHandler{onError: func(err *FiberError) { capturedErr = err }})
	defer SetHandler(nil)

	Report(&FiberError{
		Op:   "test.op",
		Kind: KindHost,
		Err:  New("failed"),
	})

	if capturedErr == nil {
		t.Fatal("expected error to be captured")
	}
	if capturedErr.Op != "test.op" {
		t.Errorf("Op = %q, want %q", capturedErr.Op, "test.op")
	}
	if capturedErr.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestRecover(t *testing.T) {
	var reported, passed *PanicError
	SetHandler(&testHandler{onPanic: func(err *PanicError) { reported = err }})
	defer SetHandler(nil)

	func() {
		defer Recover("test.recover", func(pe *PanicError) { passed = pe })
		panic("intentional test panic")
	}()

	if reported == nil {
		t.Fatal("expected panic to be recovered and reported")
	}
	if reported != passed {
		t.Error("callback should receive the reported PanicError")
	}
	if reported.Value != "intentional test panic" {
		t.Errorf("Value = %v, want %q", reported.Value, "intentional test panic")
	}
	if reported.Op != "test.recover" {
		t.Errorf("Op = %q, want %q", reported.Op, "test.recover")
	}
	if !strings.Contains(reported.StackTrace, "TestRecover") {
		t.Errorf("stack should include the panicking test, got:\n%s", reported.StackTrace)
	}
}

func TestRecoverWithoutPanic(t *testing.T) {
	called := false
	func() {
		defer Recover("test.calm", func(*PanicError) { called = true })
	}()
	if called {
		t.Error("callback ran without a panic")
	}
}

func TestCaptureStack(t *testing.T) {
	stack := CaptureStack()
	if !strings.Contains(stack, "testing.tRunner") {
		t.Errorf("stack trace should reach the test runner, got: %s", stack)
	}
	if !strings.Contains(stack, ".go:") {
		t.Errorf("stack trace should carry file positions, got: %s", stack)
	}
}

func TestSetHandlerNil(t *testing.T) {
	SetHandler(&testHandler{})
	SetHandler(nil)
	if _, ok := Handler().(*LogHandler); !ok {
		t.Errorf("SetHandler(nil) should restore the LogHandler, got %T", Handler())
	}
}

func TestLogHandlerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()

	h := &LogHandler{Logger: logger}
	h.HandleError(&FiberError{Op: "fiber.commitUpdate", Kind: KindHost, Err: New("disk full")})
	h.HandleRenderError(&RenderError{Component: "List", Err: New("bad row")})

	out := buf.String()
	for _, want := range []string{`"op":"fiber.commitUpdate"`, `"kind":"host"`, `"component":"List"`, `"msg":"render error"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q should contain %q", out, want)
		}
	}
}

type testHandler struct {
	onError       func(*FiberError)
	onPanic       func(*PanicError)
	onRenderError func(*RenderError)
}

func (h *testHandler) HandleError(err *FiberError) {
	if h.onError != nil {
		h.onError(err)
	}
}

func (h *testHandler) HandlePanic(err *PanicError) {
	if h.onPanic != nil {
		h.onPanic(err)
	}
}

func (h *testHandler) HandleRenderError(err *RenderError) {
	if h.onRenderError != nil {
		h.onRenderError(err)
	}
}
