package fiber_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/fiber"
	"github.com/go-drift/fiber/pkg/hosttree"
	"github.com/go-drift/fiber/pkg/lanes"
	fibertest "github.com/go-drift/fiber/pkg/testing"
)

func li(key string) *fiber.Element {
	return fiber.H("li", fiber.Props{"key": key}, key)
}

func list(keys ...string) *fiber.Element {
	items := make([]fiber.Node, len(keys))
	for i, k := range keys {
		items[i] = li(k)
	}
	return fiber.H("ul", nil, items...)
}

func TestTextUpdateTouchesOnlyTheTextNode(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	require.NoError(t, r.Render(fiber.H("div", nil, "A")))
	r.ClearOps()

	require.NoError(t, r.Render(fiber.H("div", nil, "B")))

	ops := r.Ops()
	require.Len(t, ops, 1, "ops: %v", r.OpStrings())
	assert.Equal(t, hosttree.OpCommitTextUpdate, ops[0].Kind)
	assert.Equal(t, "A", ops[0].Old)
	assert.Equal(t, "B", ops[0].New)
	assert.Equal(t, "#root\n  div\n    \"B\"\n", r.Tree())
}

func TestKeyedSwapMovesOneNode(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	require.NoError(t, r.Render(list("a", "b")))
	a := r.Find(fibertest.ByKey("a")).HostNode()
	b := r.Find(fibertest.ByKey("b")).HostNode()
	r.ClearOps()

	require.NoError(t, r.Render(list("b", "a")))

	ops := r.Ops()
	require.Len(t, ops, 1, "ops: %v", r.OpStrings())
	assert.Equal(t, hosttree.OpAppend, ops[0].Kind)
	assert.Same(t, a, r.Find(fibertest.ByKey("a")).HostNode(), "keyed nodes are reused")
	assert.Same(t, b, r.Find(fibertest.ByKey("b")).HostNode())
	ul := r.Find(fibertest.ByType("ul")).HostNode()
	assert.Equal(t, "ba", ul.TextContent())
}

func TestKeyedInsertInTheMiddle(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	require.NoError(t, r.Render(list("a", "c")))
	r.ClearOps()

	require.NoError(t, r.Render(list("a", "b", "c")))

	assert.Equal(t, 1, r.Host().Count(hosttree.OpInsertBefore), "ops: %v", r.OpStrings())
	assert.Zero(t, r.Host().Count(hosttree.OpAppend))
	assert.Zero(t, r.Host().Count(hosttree.OpRemove))
	assert.Equal(t, "abc", r.Find(fibertest.ByType("ul")).HostNode().TextContent())
}

func TestKeyedDeletion(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	require.NoError(t, r.Render(list("a", "b", "c")))
	r.ClearOps()

	require.NoError(t, r.Render(list("a", "c")))

	assert.Equal(t, 1, r.Host().Count(hosttree.OpRemove), "ops: %v", r.OpStrings())
	assert.Len(t, r.Ops(), 1)
	assert.Equal(t, "ac", r.Find(fibertest.ByType("ul")).HostNode().TextContent())
	assert.False(t, r.Find(fibertest.ByKey("b")).Exists())
}

func TestUnkeyedTypeChangeReplaces(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	require.NoError(t, r.Render(fiber.H("div", nil, fiber.H("p", nil, "x"), "tail")))
	r.ClearOps()

	require.NoError(t, r.Render(fiber.H("div", nil, fiber.H("span", nil, "x"), "tail")))

	assert.Equal(t, 1, r.Host().Count(hosttree.OpRemove))
	assert.Equal(t, 1, r.Host().Count(hosttree.OpInsertBefore), "the new node goes in front of the kept text")
	assert.Equal(t, "#root\n  div\n    span\n      \"x\"\n    \"tail\"\n", r.Tree())
}

func TestFragmentsFlatten(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	require.NoError(t, r.Render(fiber.H("div", nil,
		fiber.Fragment("a", fiber.H("b", nil)),
		"c",
	)))
	assert.Equal(t, "#root\n  div\n    \"a\"\n    b\n    \"c\"\n", r.Tree())
}

func TestUpdateContainerLanes(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	rec := r.Reconciler()

	assert.Equal(t, lanes.DefaultLane, r.Update(fiber.H("p", nil, "default")))
	require.NoError(t, r.Flush())

	var lane lanes.Lane
	rec.DiscreteUpdates(func() { lane = r.Update(fiber.H("p", nil, "discrete")) })
	assert.Equal(t, lanes.SyncLane, lane)
	require.NoError(t, r.Flush())

	r.Transition(func() { lane = r.Update(fiber.H("p", nil, "transition")) })
	assert.True(t, lanes.IsTransitionLane(lane), "got %v", lane)
	require.NoError(t, r.Flush())
	assert.True(t, r.Find(fibertest.ByText("transition")).Exists())
}

func TestFlushSyncCommitsBeforeReturning(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	rec := r.Reconciler()

	err := rec.FlushSync(func() {
		rec.UpdateContainer(fiber.H("p", nil, "now"), r.Root())
	})
	require.NoError(t, err)
	assert.True(t, r.Find(fibertest.ByText("now")).Exists(), "FlushSync should commit without a Flush")
	require.NoError(t, r.Flush())
}

func TestUpdateContainerCallback(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	calls := 0
	err := r.Act(func() {
		r.Reconciler().UpdateContainerWithCallback(fiber.H("p", nil, "x"), r.Root(), func() { calls++ })
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	require.NoError(t, r.Render(fiber.H("p", nil, "y")))
	assert.Equal(t, 1, calls, "a callback runs once")
}

func TestRootElement(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	el := fiber.H("p", nil, "x")
	require.NoError(t, r.Render(el))
	assert.Same(t, el, r.Root().Element())
}

func TestBatchedUpdatesRenderOnce(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	renders := 0
	var setA, setB *fiber.Setter[int]
	Pair := fiber.FC("Pair", func(h *fiber.Hooks, _ fiber.Props) (fiber.Node, error) {
		renders++
		a, sa := fiber.UseState(h, 0)
		b, sb := fiber.UseState(h, 0)
		setA, setB = sa, sb
		return fiber.H("p", nil, a+b), nil
	})
	require.NoError(t, r.Render(fiber.H(Pair, nil)))
	require.Equal(t, 1, renders)

	require.NoError(t, r.Act(func() {
		r.Reconciler().BatchedUpdates(func() {
			setA.Set(1)
			setB.Set(2)
		})
	}))
	assert.Equal(t, 2, renders)
	assert.True(t, r.Find(fibertest.ByText("3")).Exists())
}

func TestHostRefs(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	ref := &fiber.RefObject[*hosttree.Node]{}

	require.NoError(t, r.Render(fiber.H("input", fiber.Props{"ref": ref})))
	require.NotNil(t, ref.Current)
	assert.Equal(t, "input", ref.Current.Type)

	require.NoError(t, r.Render(nil))
	assert.Nil(t, ref.Current, "refs are cleared on unmount")
}

func TestUseIDIsStableAndPrefixed(t *testing.T) {
	r := fibertest.NewRendererWithT(t, fibertest.WithIdentifierPrefix("app-"))
	ID := fiber.FC("ID", func(h *fiber.Hooks, _ fiber.Props) (fiber.Node, error) {
		return fiber.H("span", nil, fiber.UseID(h)), nil
	})
	tree := fiber.H("div", nil, fiber.H(ID, nil), fiber.H(ID, nil))

	require.NoError(t, r.Render(tree))
	assert.True(t, r.Find(fibertest.ByText(":app-r0:")).Exists(), r.Tree())
	assert.True(t, r.Find(fibertest.ByText(":app-r1:")).Exists(), r.Tree())

	require.NoError(t, r.Render(fiber.H("div", nil, fiber.H(ID, nil), fiber.H(ID, nil))))
	assert.True(t, r.Find(fibertest.ByText(":app-r0:")).Exists(), "ids survive re-renders")
	assert.False(t, r.Find(fibertest.ByText(":app-r2:")).Exists())
}

func TestReconcilerIsBoundToItsGoroutine(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	done := make(chan any)
	go func() {
		defer func() { done <- recover() }()
		r.Reconciler().UpdateContainer(fiber.H("p", nil, "x"), r.Root())
	}()

	v := <-done
	fe, ok := v.(*errors.FiberError)
	require.True(t, ok, "expected a *FiberError panic, got %T", v)
	assert.Equal(t, errors.KindInvariant, fe.Kind)
	assert.False(t, r.HasPendingWork(), "the rejected update must not be queued")
}

func TestInvalidChild(t *testing.T) {
	r := fibertest.NewRendererWithT(t)
	err := r.Render(fiber.H("div", nil, struct{}{}))
	require.Error(t, err)
	var fe *errors.FiberError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, errors.KindRender, fe.Kind)
	assert.Equal(t, "#root\n", r.Tree())
}
