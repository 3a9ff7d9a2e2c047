// Package testing provides a test renderer for fiber components.
//
// # Quick Start
//
// Create a renderer, render a tree, and make assertions:
//
//	func TestCounter(t *testing.T) {
//	    r := fibertest.NewRendererWithT(t)
//	    r.Render(fiber.H(Counter, nil))
//
//	    // Simulate events
//	    r.Click(fibertest.ByType("button"))
//
//	    // Assert state
//	    if !r.Find(fibertest.ByText("1")).Exists() {
//	        t.Error("expected count 1")
//	    }
//	}
//
// Render, Act and the event helpers flush synchronously. Update and
// Transition only schedule work; call Flush (or FlushOne for a single
// scheduler slice) to run it.
//
// # Snapshot Testing
//
// Capture and compare host tree snapshots:
//
//	snapshot := r.CaptureSnapshot()
//	snapshot.MatchesFile(t, "testdata/counter.snapshot.json")
//
// Update snapshots with:
//
//	FIBER_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Time
//
// The scheduler runs on a virtual clock that only moves when the test moves
// it:
//
//	r.AdvanceTime(100 * time.Millisecond)
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import fibertest "github.com/go-drift/fiber/pkg/testing"
package testing
