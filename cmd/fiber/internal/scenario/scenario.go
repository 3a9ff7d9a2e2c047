// Package scenario loads YAML render scenarios and plays them through a
// reconciler.
//
// A scenario is a list of steps. Each step renders a tree of host elements
// at a priority and may make host operations fail while it runs:
//
//	name: keyed list
//	steps:
//	  - name: mount
//	    tree:
//	      type: ul
//	      children:
//	        - {type: li, key: a, text: a}
//	        - {type: li, key: b, text: b}
//	  - name: swap
//	    priority: transition
//	    tree:
//	      type: ul
//	      children:
//	        - {type: li, key: b, text: b}
//	        - {type: li, key: a, text: a}
//
// Besides host types, a node type can be "fragment", "boundary" (an error
// boundary rendering fallback once a child fails) or "throw" (a component
// that fails with error as its message).
package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/go-drift/fiber/pkg/fiber"
	"github.com/go-drift/fiber/pkg/hosttree"
)

// Node types with special meaning.
const (
	TypeFragment = "fragment"
	TypeBoundary = "boundary"
	TypeThrow    = "throw"
)

// Priorities a step can render at.
const (
	PriorityDefault    = "default"
	PrioritySync       = "sync"
	PriorityContinuous = "continuous"
	PriorityTransition = "transition"
)

// Scenario is a named list of steps.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step renders Tree at Priority. A step without a tree unmounts everything.
type Step struct {
	Name     string   `yaml:"name"`
	Priority string   `yaml:"priority,omitempty"`
	Tree     *Node    `yaml:"tree,omitempty"`
	Fail     []string `yaml:"fail,omitempty"`
}

// Node describes one element. A node with only Text is a text node.
type Node struct {
	Type     string         `yaml:"type,omitempty"`
	Key      string         `yaml:"key,omitempty"`
	Text     string         `yaml:"text,omitempty"`
	Props    map[string]any `yaml:"props,omitempty"`
	Children []Node         `yaml:"children,omitempty"`
	Fallback *Node          `yaml:"fallback,omitempty"`
	Error    string         `yaml:"error,omitempty"`
}

var opKinds = []hosttree.OpKind{
	hosttree.OpCreate, hosttree.OpCreateText, hosttree.OpAppendInitial, hosttree.OpAppend,
	hosttree.OpInsertBefore, hosttree.OpRemove, hosttree.OpCommitUpdate,
	hosttree.OpCommitTextUpdate, hosttree.OpResetText,
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks every step and the trees they render.
func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return errors.New("scenario has no steps")
	}
	var errs []error
	for i := range sc.Steps {
		step := &sc.Steps[i]
		if step.Name == "" {
			step.Name = fmt.Sprintf("step %d", i+1)
		}
		if err := step.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Step) validate() error {
	switch strings.ToLower(s.Priority) {
	case "", PriorityDefault, PrioritySync, PriorityContinuous, PriorityTransition:
	default:
		return fmt.Errorf("unknown priority %q", s.Priority)
	}
	for _, kind := range s.Fail {
		if _, err := ParseOpKind(kind); err != nil {
			return err
		}
	}
	if s.Tree == nil {
		return nil
	}
	return s.Tree.validate("tree")
}

func (n *Node) validate(path string) error {
	switch n.Type {
	case "":
		if len(n.Children) > 0 || n.Fallback != nil || len(n.Props) > 0 {
			return fmt.Errorf("%s: a text node cannot have props, children or a fallback", path)
		}
		return nil
	case TypeThrow:
		if n.Error == "" {
			return fmt.Errorf("%s: throw needs an error message", path)
		}
	case TypeBoundary:
		if n.Fallback == nil {
			return fmt.Errorf("%s: boundary needs a fallback", path)
		}
		if err := n.Fallback.validate(path + ".fallback"); err != nil {
			return err
		}
	}
	for i := range n.Children {
		if err := n.Children[i].validate(fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// ParseOpKind maps a host operation name to its kind.
func ParseOpKind(s string) (hosttree.OpKind, error) {
	for _, k := range opKinds {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown host operation %q", s)
}

// Build turns n into an element tree. A nil node builds nil.
func (n *Node) Build() fiber.Node {
	if n == nil {
		return nil
	}
	if n.Type == "" {
		return n.Text
	}

	children := make([]fiber.Node, 0, len(n.Children)+1)
	if n.Text != "" {
		children = append(children, n.Text)
	}
	for i := range n.Children {
		children = append(children, n.Children[i].Build())
	}

	var el *fiber.Element
	switch n.Type {
	case TypeFragment:
		el = fiber.Fragment(children...)
	case TypeBoundary:
		fallback := n.Fallback.Build()
		el = fiber.ErrorBoundaryOf(func(error) fiber.Node { return fallback }, children...)
	case TypeThrow:
		el = fiber.H(throw, fiber.Props{"message": n.Error})
	default:
		props := make(fiber.Props, len(n.Props))
		for k, v := range n.Props {
			props[k] = v
		}
		el = fiber.H(n.Type, props, children...)
	}
	if n.Key != "" {
		el = fiber.Keyed(n.Key, el)
	}
	return el
}

var throw = fiber.FC("Throw", func(_ *fiber.Hooks, props fiber.Props) (fiber.Node, error) {
	msg, _ := props["message"].(string)
	return nil, errors.New(msg)
})
