package testing

import (
	"testing"

	"github.com/go-drift/fiber/pkg/fiber"
	"github.com/go-drift/fiber/pkg/testing/internal/testbed"
)

func TestClick_Callback(t *testing.T) {
	var last int
	r := NewRendererWithT(t)
	r.Render(fiber.H(testbed.Counter, fiber.Props{"initial": 5, "onCount": func(n int) { last = n }}))

	r.Click(ByType("button"))
	if last != 6 {
		t.Errorf("onCount got %d, want 6", last)
	}
}

func TestInput_ControlledField(t *testing.T) {
	r := NewRendererWithT(t)
	r.Render(fiber.H(testbed.Field, nil))

	if err := r.Input(ByType("input"), "hi"); err != nil {
		t.Fatal(err)
	}
	if !r.Find(ByText("value: hi")).Exists() {
		t.Errorf("expected label to echo input, tree:\n%s", r.Tree())
	}
	if got := r.Find(ByType("input")).Props()["value"]; got != "hi" {
		t.Errorf("input value = %v, want hi", got)
	}
}

func TestFire_Errors(t *testing.T) {
	r := NewRendererWithT(t)
	r.Render(fiber.H("div", fiber.Props{"onClick": func() {}, "title": "x"}))

	if err := r.Click(ByType("span")); err == nil {
		t.Error("expected error for missing fiber")
	}
	if err := r.Fire(ByType("div"), "onHover"); err == nil {
		t.Error("expected error for missing handler")
	}
	if err := r.Fire(ByType("div"), "title"); err == nil {
		t.Error("expected error for non-func prop")
	}
	if err := r.Fire(ByType("div"), "onClick", 1); err == nil {
		t.Error("expected error for wrong argument count")
	}
}
