package fiber

import (
	"fmt"
	"strconv"
)

// Props holds the properties of an element. The "children" key carries the
// element's child nodes.
type Props map[string]any

// Node is anything a component can render: a *Element, a string or number
// (rendered as text), a []Node, or nil. Booleans render nothing.
type Node = any

// Element describes a single node in a rendered tree.
//
// Type is a host type name (string), a *Component, a *Context (rendered as a
// provider) or one of the built-in markers FragmentType, SuspenseType and
// ErrorBoundaryType. An empty Key means the element is unkeyed.
type Element struct {
	Type  any
	Key   string
	Props Props
	Ref   HostRef
}

func (e *Element) String() string {
	name := typeName(e.Type)
	if e.Key != "" {
		return fmt.Sprintf("<%s key=%q>", name, e.Key)
	}
	return "<" + name + ">"
}

// RenderFunc renders a function component.
type RenderFunc func(h *Hooks, props Props) (Node, error)

// Component is the identity of a function component. Two elements belong to
// the same component only if they share the same *Component.
type Component struct {
	Name   string
	Render RenderFunc
}

// FC declares a function component.
func FC(name string, render RenderFunc) *Component {
	return &Component{Name: name, Render: render}
}

// Builtin marks the element types that the reconciler handles itself.
type Builtin struct {
	name string
}

func (b *Builtin) String() string { return b.name }

var (
	FragmentType      = &Builtin{name: "Fragment"}
	SuspenseType      = &Builtin{name: "Suspense"}
	ErrorBoundaryType = &Builtin{name: "ErrorBoundary"}
)

// H creates an element. The "key" and "ref" props are lifted onto the
// element; children, if any, replace props["children"].
func H(typ any, props Props, children ...Node) *Element {
	el := &Element{Type: typ}
	p := make(Props, len(props)+1)
	for k, v := range props {
		switch k {
		case "key":
			el.Key = keyString(v)
		case "ref":
			if r, ok := v.(HostRef); ok {
				el.Ref = r
			}
		default:
			p[k] = v
		}
	}
	switch len(children) {
	case 0:
	case 1:
		p["children"] = children[0]
	default:
		p["children"] = []Node(children)
	}
	el.Props = p
	return el
}

// Text renders s as a text node.
func Text(s string) Node { return s }

// Fragment groups children without adding a host node.
func Fragment(children ...Node) *Element {
	return H(FragmentType, nil, children...)
}

// SuspenseOf renders children, or fallback while any of them is suspended.
func SuspenseOf(fallback Node, children ...Node) *Element {
	return H(SuspenseType, Props{"fallback": fallback}, children...)
}

// ErrorBoundaryOf renders children until one of them fails to render, then
// renders fallback with the captured error.
func ErrorBoundaryOf(fallback func(err error) Node, children ...Node) *Element {
	return H(ErrorBoundaryType, Props{"fallback": fallback}, children...)
}

// Provider makes value the current value of ctx for children.
func Provider(ctx *Context, value any, children ...Node) *Element {
	return H(ctx, Props{"value": value}, children...)
}

// Keyed returns a copy of el with the given key.
func Keyed(key any, el *Element) *Element {
	c := *el
	c.Key = keyString(key)
	return &c
}

func keyString(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case int:
		return strconv.Itoa(k)
	case int64:
		return strconv.FormatInt(k, 10)
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
}

func typeName(t any) string {
	switch v := t.(type) {
	case string:
		return v
	case *Component:
		if v == nil || v.Name == "" {
			return "Anonymous"
		}
		return v.Name
	case *Context:
		return v.name + ".Provider"
	case *Builtin:
		return v.name
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", t)
	}
}

// textOf formats a text-like node. ok is false for anything else.
func textOf(n Node) (string, bool) {
	switch v := n.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v), true
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	default:
		return "", false
	}
}

const textProp = "text"

func textProps(s string) Props { return Props{textProp: s} }

func propsText(p Props) string {
	s, _ := p[textProp].(string)
	return s
}
