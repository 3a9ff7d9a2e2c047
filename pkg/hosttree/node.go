package hosttree

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/go-drift/fiber/pkg/fiber"
)

// TextType is the type of text nodes.
const TextType = "#text"

// Node is a host node. Element nodes have a Type and Props; text nodes have
// Type TextType and carry Text.
type Node struct {
	ID       int
	Type     string
	Props    fiber.Props
	Text     string
	Parent   *Node
	Children []*Node
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool { return n.Type == TextType }

func (n *Node) label() string {
	return n.Type + "#" + strconv.Itoa(n.ID)
}

func (n *Node) String() string { return n.label() }

func (n *Node) indexOf(child *Node) int {
	return slices.Index(n.Children, child)
}

func (n *Node) detach() {
	p := n.Parent
	if p == nil {
		return
	}
	if i := p.indexOf(n); i >= 0 {
		p.Children = slices.Delete(p.Children, i, i+1)
	}
	n.Parent = nil
}

// contains reports whether other is n or one of its descendants.
func (n *Node) contains(other *Node) bool {
	for p := other; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// TextContent concatenates the text of n and every node below it.
func (n *Node) TextContent() string {
	var sb strings.Builder
	n.walk(func(node *Node) bool {
		sb.WriteString(node.Text)
		return true
	})
	return sb.String()
}

// FindAll returns every node below n, in document order, whose type is typ.
func (n *Node) FindAll(typ string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		c.walk(func(node *Node) bool {
			if node.Type == typ {
				out = append(out, node)
			}
			return true
		})
	}
	return out
}

func (n *Node) walk(visit func(*Node) bool) {
	if !visit(n) {
		return
	}
	for _, c := range n.Children {
		c.walk(visit)
	}
}

// Render formats the subtree rooted at n as indented text, one node per
// line with props sorted by name. Ids are omitted so that equal trees render
// equally.
func (n *Node) Render() string {
	var sb strings.Builder
	n.render(&sb, 0)
	return sb.String()
}

func (n *Node) render(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	if n.IsText() {
		sb.WriteString(strconv.Quote(n.Text))
		sb.WriteByte('\n')
		return
	}
	sb.WriteString(n.Type)
	for _, k := range slices.Sorted(maps.Keys(n.Props)) {
		fmt.Fprintf(sb, " %s=%s", k, formatProp(n.Props[k]))
	}
	if n.Text != "" {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(n.Text))
	}
	sb.WriteByte('\n')
	for _, c := range n.Children {
		c.render(sb, depth+1)
	}
}

func formatProp(v any) string {
	switch p := v.(type) {
	case string:
		return strconv.Quote(p)
	case nil:
		return "nil"
	case fmt.Stringer:
		return p.String()
	}
	if reflect.TypeOf(v).Kind() == reflect.Func {
		return "<func>"
	}
	return fmt.Sprint(v)
}

// Fingerprint hashes the rendered form of n.
func (n *Node) Fingerprint() uint64 {
	return xxhash.Sum64String(n.Render())
}

// Render formats the host tree, starting at the container.
func (h *Host) Render() string { return h.container.Render() }

// Fingerprint hashes the host tree. Two hosts holding equal trees have equal
// fingerprints.
func (h *Host) Fingerprint() uint64 { return h.container.Fingerprint() }
