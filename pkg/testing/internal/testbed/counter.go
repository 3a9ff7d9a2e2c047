// Package testbed provides internal test components for the testing framework.
package testbed

import (
	"strconv"

	"github.com/go-drift/fiber/pkg/fiber"
)

// Counter renders a button showing a count that increments on click.
// Props: "initial" (int) and "onCount" (func(int)), called with the new count.
var Counter = fiber.FC("Counter", func(h *fiber.Hooks, props fiber.Props) (fiber.Node, error) {
	initial, _ := props["initial"].(int)
	onCount, _ := props["onCount"].(func(int))
	count, setCount := fiber.UseState(h, initial)
	return fiber.H("button", fiber.Props{
		"onClick": func() {
			setCount.Update(func(c int) int { return c + 1 })
			if onCount != nil {
				onCount(count + 1)
			}
		},
	}, strconv.Itoa(count)), nil
})
