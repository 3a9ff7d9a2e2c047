package testbed

import (
	"github.com/go-drift/fiber/pkg/fiber"
)

// Field is a controlled input that echoes its value into a label.
var Field = fiber.FC("Field", func(h *fiber.Hooks, props fiber.Props) (fiber.Node, error) {
	value, setValue := fiber.UseState(h, "")
	return fiber.H("div", nil,
		fiber.H("input", fiber.Props{
			"value":    value,
			"onChange": func(v string) { setValue.Set(v) },
		}),
		fiber.H("label", nil, "value: "+value),
	), nil
})

// List renders "items" ([]string) as keyed list items.
var List = fiber.FC("List", func(h *fiber.Hooks, props fiber.Props) (fiber.Node, error) {
	items, _ := props["items"].([]string)
	children := make([]fiber.Node, len(items))
	for i, item := range items {
		children[i] = fiber.H("li", fiber.Props{"key": item}, item)
	}
	return fiber.H("ul", nil, children...), nil
})
