package fiber_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/fiber"
	"github.com/go-drift/fiber/pkg/hosttree"
	fibertest "github.com/go-drift/fiber/pkg/testing"
)

var errBoom = errors.New("boom")

// Bomb fails to render while its "fail" prop is true.
var Bomb = fiber.FC("Bomb", func(_ *fiber.Hooks, props fiber.Props) (fiber.Node, error) {
	if fail, _ := props["fail"].(bool); fail {
		return nil, errBoom
	}
	return fiber.H("p", nil, "fine"), nil
})

// Panicker panics while rendering.
var Panicker = fiber.FC("Panicker", func(*fiber.Hooks, fiber.Props) (fiber.Node, error) {
	panic("render exploded")
})

func fallbackText(err error) fiber.Node {
	return fiber.H("p", nil, "caught")
}

func TestErrorBoundaryCatchesOnMount(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	var seen error
	boundary := fiber.ErrorBoundaryOf(func(err error) fiber.Node {
		seen = err
		return fallbackText(err)
	}, fiber.H(Bomb, fiber.Props{"fail": true}))

	require.NoError(t, r.Render(fiber.H("div", nil, boundary)))

	assert.Equal(t, "#root\n  div\n    p\n      \"caught\"\n", r.Tree())
	require.Error(t, seen)
	assert.True(t, errors.Is(seen, errBoom))
	var re *errors.RenderError
	require.True(t, errors.As(seen, &re))
	assert.Equal(t, "Bomb", re.Component)
	assert.Len(t, r.CaughtErrors(), 1)
	assert.Empty(t, r.UncaughtErrors())
	assert.NoError(t, r.Err())
}

func TestErrorBoundaryCatchesOnUpdate(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	tree := func(fail bool) fiber.Node {
		return fiber.H("div", nil,
			fiber.H("h1", nil, "title"),
			fiber.ErrorBoundaryOf(fallbackText, fiber.H(Bomb, fiber.Props{"fail": fail})),
		)
	}
	require.NoError(t, r.Render(tree(false)))
	require.True(t, r.Find(fibertest.ByText("fine")).Exists())

	require.NoError(t, r.Render(tree(true)))

	assert.False(t, r.Find(fibertest.ByText("fine")).Exists())
	assert.True(t, r.Find(fibertest.ByText("caught")).Exists())
	assert.True(t, r.Find(fibertest.ByText("title")).Exists(), "siblings of the boundary are kept")
	assert.Len(t, r.CaughtErrors(), 1)
}

func TestErrorBoundaryCatchesPanics(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	var seen error
	require.NoError(t, r.Render(fiber.ErrorBoundaryOf(func(err error) fiber.Node {
		seen = err
		return "recovered"
	}, fiber.H(Panicker, nil))))

	var re *errors.RenderError
	require.True(t, errors.As(seen, &re))
	assert.Equal(t, "render exploded", re.Recovered)
	assert.Equal(t, "#root\n  \"recovered\"\n", r.Tree())
}

func TestNestedBoundaryCatchesFailingFallback(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	inner := fiber.ErrorBoundaryOf(func(error) fiber.Node {
		return fiber.H(Bomb, fiber.Props{"fail": true})
	}, fiber.H(Bomb, fiber.Props{"fail": true}))
	outer := fiber.ErrorBoundaryOf(func(error) fiber.Node { return "outer" }, inner)

	require.NoError(t, r.Render(outer))
	assert.Equal(t, "#root\n  \"outer\"\n", r.Tree())
	assert.Len(t, r.CaughtErrors(), 2)
}

func TestUncaughtErrorKeepsCommittedTree(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	require.NoError(t, r.Render(fiber.H(Bomb, nil)))

	err := r.Render(fiber.H(Bomb, fiber.Props{"fail": true}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom))
	assert.Same(t, err, r.Err())
	assert.Len(t, r.UncaughtErrors(), 1)
	assert.True(t, r.Find(fibertest.ByText("fine")).Exists(), "the last committed tree stays on screen")
	assert.False(t, r.HasPendingWork(), "the failed lanes are parked")
}

func TestHookMisuseBypassesBoundaries(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	wrap := func(mode string) fiber.Node {
		return fiber.ErrorBoundaryOf(fallbackText, fiber.H(Cond, fiber.Props{"mode": mode}))
	}
	require.NoError(t, r.Render(wrap("one")))

	err := r.Render(wrap("extra"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMoreHooks))
	assert.Empty(t, r.CaughtErrors())
	assert.False(t, r.Find(fibertest.ByText("caught")).Exists())
}

func TestHostFailuresDuringCommitAreRecoverable(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	r.Host().FailOn(hosttree.OpAppend, nil)

	require.NoError(t, r.Render(fiber.H("div", nil, "x")))

	require.Len(t, r.RecoverableErrors(), 1)
	err := r.RecoverableErrors()[0]
	assert.True(t, errors.Is(err, hosttree.ErrInjected))
	var fe *errors.FiberError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, errors.KindHost, fe.Kind)
	var he *errors.HostError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "AppendChild", he.Method)
	assert.Equal(t, "div", he.Type)
	assert.Equal(t, "#root\n", r.Tree(), "the failed append left the container empty")
}

func TestHostCreateFailureIsARenderError(t *testing.T) {
	t.Run("uncaught", func(t *testing.T) {
		r := fibertest.NewRendererWithT(t)
		r.Host().FailOn(hosttree.OpCreate, nil)
		err := r.Render(fiber.H("div", nil))
		require.Error(t, err)
		assert.True(t, errors.Is(err, hosttree.ErrInjected))
	})

	t.Run("caught", func(t *testing.T) {
		r := fibertest.NewRendererWithT(t)
		r.Host().FailOn(hosttree.OpCreate, nil)
		require.NoError(t, r.Render(fiber.ErrorBoundaryOf(func(error) fiber.Node {
			return "no elements today"
		}, fiber.H("div", nil))))
		assert.Equal(t, "#root\n  \"no elements today\"\n", r.Tree())
	})
}

func TestSyncUpdateLoopHitsMaxDepth(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	Loop := fiber.FC("Loop", func(h *fiber.Hooks, _ fiber.Props) (fiber.Node, error) {
		n, set := fiber.UseState(h, 0)
		fiber.UseLayoutEffect(h, func() func() {
			set.Update(func(n int) int { return n + 1 })
			return nil
		}, nil)
		return fiber.H("p", nil, n), nil
	})

	err := r.Render(fiber.H(Loop, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMaxUpdateDepth), "got %v", err)
	var fe *errors.FiberError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, errors.KindMisuse, fe.Kind)
}

func TestSyncUpdatesFromLayoutEffectsSettle(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	commits := 0
	Settle := fiber.FC("Settle", func(h *fiber.Hooks, _ fiber.Props) (fiber.Node, error) {
		n, set := fiber.UseState(h, 0)
		fiber.UseLayoutEffect(h, func() func() {
			commits++
			if n < 10 {
				set.Set(n + 1)
			}
			return nil
		}, nil)
		return fiber.H("p", nil, n), nil
	})

	require.NoError(t, r.Render(fiber.H(Settle, nil)))
	assert.Equal(t, 11, commits)
	assert.True(t, r.Find(fibertest.ByText("10")).Exists(), r.Tree())
}

// Data renders once d has resolved and suspends until then.
var Data = fiber.FC("Data", func(_ *fiber.Hooks, props fiber.Props) (fiber.Node, error) {
	d := props["d"].(*fiber.Deferred)
	if !d.Resolved() {
		return nil, fiber.Suspend(d)
	}
	return fiber.H("p", nil, props["text"]), nil
})

func TestSuspenseShowsFallbackUntilResolved(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	d := fiber.NewDeferred()
	require.NoError(t, r.Render(fiber.SuspenseOf(
		fiber.H("p", nil, "loading"),
		fiber.H(Data, fiber.Props{"d": d, "text": "loaded"}),
	)))
	assert.Equal(t, "#root\n  p\n    \"loading\"\n", r.Tree())

	require.NoError(t, r.Act(d.Resolve))

	assert.Equal(t, "#root\n  p\n    \"loaded\"\n", r.Tree())
	assert.Empty(t, r.UncaughtErrors())
	assert.False(t, r.HasPendingWork())
}

func TestSuspenseKeepsSiblingsOutsideTheBoundary(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	d := fiber.NewDeferred()
	require.NoError(t, r.Render(fiber.H("main", nil,
		fiber.H("header", nil, "top"),
		fiber.SuspenseOf("wait", fiber.H(Data, fiber.Props{"d": d, "text": "body"})),
	)))
	tree := r.Tree()
	assert.True(t, strings.Contains(tree, `"top"`))
	assert.True(t, strings.Contains(tree, `"wait"`))

	require.NoError(t, r.Act(d.Resolve))
	assert.Equal(t, "#root\n  main\n    header\n      \"top\"\n    p\n      \"body\"\n", r.Tree())
}

func TestTransitionSuspendedWithoutBoundaryKeepsCurrentTree(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	require.NoError(t, r.Render(fiber.H("p", nil, "old")))

	d := fiber.NewDeferred()
	r.Transition(func() {
		r.Update(fiber.H(Data, fiber.Props{"d": d, "text": "new"}))
	})
	require.NoError(t, r.Flush())
	assert.Equal(t, "#root\n  p\n    \"old\"\n", r.Tree())
	assert.Empty(t, r.UncaughtErrors())

	require.NoError(t, r.Act(d.Resolve))
	assert.Equal(t, "#root\n  p\n    \"new\"\n", r.Tree())
}

func TestSuspendWithoutBoundary(t *testing.T) {
	t.Run("default lane waits", func(t *testing.T) {
		r := fibertest.NewRendererWithT(t)
		d := fiber.NewDeferred()
		require.NoError(t, r.Render(fiber.H(Data, fiber.Props{"d": d, "text": "late"})))
		assert.Equal(t, "#root\n", r.Tree())

		require.NoError(t, r.Act(d.Resolve))
		assert.Equal(t, "#root\n  p\n    \"late\"\n", r.Tree())
	})

	t.Run("sync lane fails", func(t *testing.T) {
		r := fibertest.NewRendererWithT(t)
		rec := r.Reconciler()
		err := rec.FlushSync(func() {
			rec.UpdateContainer(fiber.H(Data, fiber.Props{"d": fiber.NewDeferred()}), r.Root())
		})
		require.Error(t, err)
		var fe *errors.FiberError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, errors.KindRender, fe.Kind)
		assert.Len(t, r.UncaughtErrors(), 1)
	})
}
