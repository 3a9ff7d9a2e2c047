package scenario

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/fiber"
	"github.com/go-drift/fiber/pkg/hosttree"
	"github.com/go-drift/fiber/pkg/lanes"
)

func TestParseRejectsInvalidScenarios(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"no steps", "name: empty\n", "no steps"},
		{"bad priority", "steps:\n  - tree: {type: div}\n    priority: urgent\n", `unknown priority "urgent"`},
		{"bad fail kind", "steps:\n  - fail: [explode]\n", `unknown host operation "explode"`},
		{"boundary without fallback", "steps:\n  - tree: {type: boundary}\n", "boundary needs a fallback"},
		{"throw without message", "steps:\n  - tree: {type: div, children: [{type: throw}]}\n", "tree.children[0]: throw needs an error message"},
		{"text with children", "steps:\n  - tree: {text: hi, children: [{type: b}]}\n", "a text node cannot have"},
		{"not yaml", "steps: [\n", "failed to parse scenario"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateNamesSteps(t *testing.T) {
	sc, err := Parse([]byte("steps:\n  - tree: {type: div}\n  - name: second\n"))
	require.NoError(t, err)
	assert.Equal(t, "step 1", sc.Steps[0].Name)
	assert.Equal(t, "second", sc.Steps[1].Name)
}

func TestParseOpKind(t *testing.T) {
	kind, err := ParseOpKind("InsertBefore")
	require.NoError(t, err)
	assert.Equal(t, hosttree.OpInsertBefore, kind)
}

func TestBuild(t *testing.T) {
	n := &Node{
		Type:  "ul",
		Key:   "list",
		Props: map[string]any{"class": "items"},
		Text:  "head",
		Children: []Node{
			{Type: "li", Text: "one"},
			{Text: "tail"},
		},
	}
	el, ok := n.Build().(*fiber.Element)
	require.True(t, ok)
	assert.Equal(t, "ul", el.Type)
	assert.Equal(t, "list", el.Key)
	assert.Equal(t, "items", el.Props["class"])

	children, ok := el.Props["children"].([]fiber.Node)
	require.True(t, ok)
	require.Len(t, children, 3)
	assert.Equal(t, "head", children[0])
	assert.Equal(t, "tail", children[2])

	var nilNode *Node
	assert.Nil(t, nilNode.Build())
	assert.Equal(t, "just text", (&Node{Text: "just text"}).Build())
}

func TestBuildBoundary(t *testing.T) {
	n := &Node{
		Type:     TypeBoundary,
		Fallback: &Node{Type: "p", Text: "oops"},
		Children: []Node{{Type: TypeThrow, Error: "broken"}},
	}
	el := n.Build().(*fiber.Element)
	assert.Same(t, fiber.ErrorBoundaryType, el.Type)
	fallback, ok := el.Props["fallback"].(func(error) fiber.Node)
	require.True(t, ok)
	assert.Equal(t, "p", fallback(nil).(*fiber.Element).Type)
}

func countOps(ops []hosttree.Op, kind hosttree.OpKind) int {
	n := 0
	for _, op := range ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

func TestRunKeyedScenario(t *testing.T) {
	sc, err := Load("testdata/keyed.yaml")
	require.NoError(t, err)
	assert.Equal(t, "keyed list", sc.Name)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	results, err := Run(ctx, sc, Options{})
	require.NoError(t, err)
	require.Len(t, results, 4)

	mount := results[0]
	assert.Equal(t, lanes.SyncLane, mount.Lane)
	assert.Equal(t, "#root\n  ul class=\"list\"\n    li\n      \"a\"\n    li\n      \"b\"\n", mount.Tree)
	assert.Equal(t, 3, countOps(mount.Ops, hosttree.OpCreate))
	assert.Empty(t, mount.Errors)

	swap := results[1]
	assert.Equal(t, PriorityTransition, swap.Priority)
	assert.True(t, lanes.IsTransitionLane(swap.Lane), "lane %v", swap.Lane)
	assert.Equal(t, "#root\n  ul class=\"list\"\n    li\n      \"b\"\n    li\n      \"a\"\n", swap.Tree)
	assert.Zero(t, countOps(swap.Ops, hosttree.OpCreate), "keyed children are moved, not recreated")
	assert.Zero(t, countOps(swap.Ops, hosttree.OpRemove))
	assert.Equal(t, 1, countOps(swap.Ops, hosttree.OpAppend))

	failing := results[2]
	assert.Equal(t, lanes.DefaultLane, failing.Lane)
	assert.Equal(t, "#root\n  p\n    \"oops\"\n", failing.Tree)
	require.Len(t, failing.Errors, 1)
	assert.Equal(t, ErrorCaught, failing.Errors[0].Kind)
	var re *errors.RenderError
	require.True(t, errors.As(failing.Errors[0], &re))
	assert.Equal(t, "Throw", re.Component)
	assert.Contains(t, re.Error(), "broken")

	unmount := results[3]
	assert.Equal(t, "#root\n", unmount.Tree)
	assert.Equal(t, 1, countOps(unmount.Ops, hosttree.OpRemove))
}

func TestRunInjectsHostFailures(t *testing.T) {
	sc, err := Parse([]byte(`
steps:
  - name: broken mount
    fail: [append]
    tree: {type: div, text: hi}
  - name: retry
    tree: {type: div, text: hi}
`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	results, err := Run(ctx, sc, Options{FrameInterval: time.Millisecond})
	require.NoError(t, err)
	require.Len(t, results, 2)

	broken := results[0]
	assert.Equal(t, "#root\n", broken.Tree)
	require.Len(t, broken.Errors, 1)
	assert.Equal(t, ErrorRecoverable, broken.Errors[0].Kind)
	assert.ErrorIs(t, broken.Errors[0], hosttree.ErrInjected)
	assert.True(t, strings.HasPrefix(broken.Errors[0].Error(), "recoverable: "))

	assert.Empty(t, results[1].Errors, "failures only apply to their own step")
}
