package testing

import (
	"testing"

	"github.com/go-drift/fiber/pkg/fiber"
	"github.com/go-drift/fiber/pkg/lanes"
	"github.com/go-drift/fiber/pkg/testing/internal/testbed"
)

func TestRender_MountsTree(t *testing.T) {
	r := NewRendererWithT(t)

	if err := r.Render(fiber.H("div", fiber.Props{"id": "main"}, "hello")); err != nil {
		t.Fatal(err)
	}
	want := "#root\n  div id=\"main\"\n    \"hello\"\n"
	if got := r.Tree(); got != want {
		t.Errorf("Tree() = %q, want %q", got, want)
	}
	if r.HasPendingWork() {
		t.Error("expected no pending work after Render")
	}
}

func TestRender_Replace(t *testing.T) {
	r := NewRendererWithT(t)

	r.Render(fiber.H("p", nil, "first"))
	first := r.Find(ByType("p")).HostNode()

	r.Render(fiber.H("p", nil, "second"))
	second := r.Find(ByType("p")).HostNode()

	if first != second {
		t.Error("expected the host node to be reused for the same type")
	}
	if !r.Find(ByText("second")).Exists() {
		t.Error("expected text 'second' after update")
	}

	r.Render(fiber.H("section", nil, "third"))
	if r.Find(ByType("p")).Exists() {
		t.Error("expected p to be replaced by section")
	}
}

func TestUpdate_WaitsForFlush(t *testing.T) {
	r := NewRendererWithT(t)
	r.Render(fiber.H("span", nil, "before"))

	lane := r.Update(fiber.H("span", nil, "after"))
	if lane != lanes.DefaultLane {
		t.Errorf("Update lane = %v, want %v", lane, lanes.DefaultLane)
	}
	if !r.HasPendingWork() {
		t.Fatal("expected pending work before Flush")
	}
	if !r.Find(ByText("before")).Exists() {
		t.Error("tree changed before Flush")
	}

	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if !r.Find(ByText("after")).Exists() {
		t.Error("expected text 'after' after Flush")
	}
}

func TestCleanup_UnmountsAndRunsDestroys(t *testing.T) {
	destroyed := false
	comp := fiber.FC("WithEffect", func(h *fiber.Hooks, props fiber.Props) (fiber.Node, error) {
		fiber.UseEffect(h, func() func() {
			return func() { destroyed = true }
		}, []any{})
		return "x", nil
	})

	r := NewRenderer()
	r.Render(fiber.H(comp, nil))
	r.Cleanup()

	if !destroyed {
		t.Error("expected effect destroy to run on Cleanup")
	}
	if len(r.Host().Container().Children) != 0 {
		t.Error("expected empty container after Cleanup")
	}
}

func TestRenderer_CollectsErrors(t *testing.T) {
	boom := fiber.FC("Boom", func(h *fiber.Hooks, props fiber.Props) (fiber.Node, error) {
		panic("boom")
	})
	r := NewRendererWithT(t)

	err := r.Render(fiber.ErrorBoundaryOf(func(err error) fiber.Node { return "caught" }, fiber.H(boom, nil)))
	if err != nil {
		t.Fatalf("boundary should capture, got %v", err)
	}
	if len(r.CaughtErrors()) != 1 {
		t.Errorf("CaughtErrors() = %d, want 1", len(r.CaughtErrors()))
	}
	if !r.Find(ByText("caught")).Exists() {
		t.Error("expected fallback text")
	}

	r2 := NewRendererWithT(t)
	if err := r2.Render(fiber.H(boom, nil)); err == nil {
		t.Fatal("expected uncaught error without a boundary")
	}
	if r2.Err() == nil || len(r2.UncaughtErrors()) != 1 {
		t.Errorf("expected one uncaught error, got %v", r2.UncaughtErrors())
	}
}

func TestCounter_Click(t *testing.T) {
	r := NewRendererWithT(t)
	r.Render(fiber.H(testbed.Counter, fiber.Props{"initial": 0}))

	for i := 0; i < 3; i++ {
		if err := r.Click(ByType("button")); err != nil {
			t.Fatalf("Click failed: %v", err)
		}
	}
	if !r.Find(ByText("3")).Exists() {
		t.Errorf("expected count 3 after three clicks, tree:\n%s", r.Tree())
	}
}
