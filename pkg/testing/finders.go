package testing

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-drift/fiber/pkg/fiber"
	"github.com/go-drift/fiber/pkg/hosttree"
)

// Finder locates fibers in the committed tree.
type Finder interface {
	// Evaluate returns all matching fibers under root (depth-first pre-order).
	Evaluate(root *fiber.Fiber) []*fiber.Fiber
	// Description returns a human-readable description for error messages.
	Description() string
}

// FinderResult wraps finder results with convenient accessors.
type FinderResult struct {
	fibers []*fiber.Fiber
	finder Finder
}

func (r FinderResult) description() string {
	if r.finder == nil {
		return "unknown"
	}
	return r.finder.Description()
}

// First returns the first match. Panics if no matches.
func (r FinderResult) First() *fiber.Fiber {
	if len(r.fibers) == 0 {
		panic(fmt.Sprintf("Finder found no fibers: %s", r.description()))
	}
	return r.fibers[0]
}

// FirstOrNil returns the first match, or nil if none.
func (r FinderResult) FirstOrNil() *fiber.Fiber {
	if len(r.fibers) == 0 {
		return nil
	}
	return r.fibers[0]
}

// At returns the match at index. Panics if out of range.
func (r FinderResult) At(index int) *fiber.Fiber {
	if index < 0 || index >= len(r.fibers) {
		panic(fmt.Sprintf("Finder index %d out of range (found %d): %s", index, len(r.fibers), r.description()))
	}
	return r.fibers[index]
}

// All returns all matches in traversal order.
func (r FinderResult) All() []*fiber.Fiber { return r.fibers }

// Count returns the number of matches.
func (r FinderResult) Count() int { return len(r.fibers) }

// Exists returns true if at least one match was found.
func (r FinderResult) Exists() bool { return len(r.fibers) > 0 }

// Props returns the committed props of the first match. Panics if no
// matches.
func (r FinderResult) Props() fiber.Props { return r.First().MemoizedProps }

// HostNode returns the host node of the first match, or the first host node
// below it for fibers without one. Panics if no matches.
func (r FinderResult) HostNode() *hosttree.Node {
	var found *hosttree.Node
	walkTree(r.First(), func(f *fiber.Fiber) bool {
		if n, ok := f.StateNode.(*hosttree.Node); ok && (f.Tag == fiber.HostComponent || f.Tag == fiber.HostText) {
			found = n
			return false
		}
		return found == nil
	})
	return found
}

// --- Concrete finders ---

// typeFinder matches fibers whose type is the given host type or component.
type typeFinder struct {
	typ any
}

func (f *typeFinder) Evaluate(root *fiber.Fiber) []*fiber.Fiber {
	return collectMatches(root, func(fb *fiber.Fiber) bool {
		return fb.Tag != fiber.HostText && fb.Type == f.typ
	})
}

func (f *typeFinder) Description() string {
	switch t := f.typ.(type) {
	case string:
		return fmt.Sprintf("ByType(%q)", t)
	case *fiber.Component:
		return fmt.Sprintf("ByType(%s)", t.Name)
	default:
		return fmt.Sprintf("ByType(%v)", t)
	}
}

// ByType returns a finder that matches host elements of type typ (a string)
// or instances of a component (a *fiber.Component).
func ByType(typ any) Finder {
	return &typeFinder{typ: typ}
}

// keyFinder matches fibers by key.
type keyFinder struct {
	key string
}

func (f *keyFinder) Evaluate(root *fiber.Fiber) []*fiber.Fiber {
	return collectMatches(root, func(fb *fiber.Fiber) bool {
		return fb.Key == f.key
	})
}

func (f *keyFinder) Description() string {
	return fmt.Sprintf("ByKey(%q)", f.key)
}

// ByKey returns a finder that matches fibers with the given key.
func ByKey(key string) Finder {
	return &keyFinder{key: key}
}

// textFinder matches text by exact content.
type textFinder struct {
	text     string
	contains bool
}

func (f *textFinder) Evaluate(root *fiber.Fiber) []*fiber.Fiber {
	return collectMatches(root, func(fb *fiber.Fiber) bool {
		text, ok := fiberText(fb)
		if !ok {
			return false
		}
		if f.contains {
			return strings.Contains(text, f.text)
		}
		return text == f.text
	})
}

func (f *textFinder) Description() string {
	if f.contains {
		return fmt.Sprintf("ByTextContaining(%q)", f.text)
	}
	return fmt.Sprintf("ByText(%q)", f.text)
}

// ByText returns a finder that matches text nodes, and hosts that render
// their text themselves, with exact content.
func ByText(text string) Finder {
	return &textFinder{text: text}
}

// ByTextContaining is ByText matching a substring.
func ByTextContaining(substring string) Finder {
	return &textFinder{text: substring, contains: true}
}

func fiberText(fb *fiber.Fiber) (string, bool) {
	switch fb.Tag {
	case fiber.HostText:
		return fb.Text(), true
	case fiber.HostComponent:
		if n, ok := fb.StateNode.(*hosttree.Node); ok && n.Text != "" {
			return n.Text, true
		}
	}
	return "", false
}

// propFinder matches fibers whose committed prop name equals value.
type propFinder struct {
	name  string
	value any
}

func (f *propFinder) Evaluate(root *fiber.Fiber) []*fiber.Fiber {
	return collectMatches(root, func(fb *fiber.Fiber) bool {
		if fb.Tag == fiber.HostText || fb.Tag == fiber.HostRoot {
			return false
		}
		v, ok := fb.MemoizedProps[f.name]
		if !ok {
			return false
		}
		if v == nil || f.value == nil {
			return v == f.value
		}
		// Guard against non-comparable types (slices, maps, funcs).
		if !reflect.TypeOf(v).Comparable() || !reflect.TypeOf(f.value).Comparable() {
			return reflect.DeepEqual(v, f.value)
		}
		return v == f.value
	})
}

func (f *propFinder) Description() string {
	return fmt.Sprintf("ByProp(%s=%v)", f.name, f.value)
}

// ByProp returns a finder that matches fibers whose prop name equals value.
func ByProp(name string, value any) Finder {
	return &propFinder{name: name, value: value}
}

// predicateFinder matches fibers satisfying a predicate.
type predicateFinder struct {
	fn func(*fiber.Fiber) bool
}

func (f *predicateFinder) Evaluate(root *fiber.Fiber) []*fiber.Fiber {
	return collectMatches(root, f.fn)
}

func (f *predicateFinder) Description() string { return "ByPredicate(...)" }

// ByPredicate returns a finder that matches fibers satisfying fn.
func ByPredicate(fn func(*fiber.Fiber) bool) Finder {
	return &predicateFinder{fn: fn}
}

// descendantFinder finds fibers matching 'matching' below fibers matching
// 'of'.
type descendantFinder struct {
	of       Finder
	matching Finder
}

func (f *descendantFinder) Evaluate(root *fiber.Fiber) []*fiber.Fiber {
	var results []*fiber.Fiber
	seen := make(map[*fiber.Fiber]bool)
	for _, ancestor := range f.of.Evaluate(root) {
		for child := ancestor.Child; child != nil; child = child.Sibling {
			for _, match := range f.matching.Evaluate(child) {
				if !seen[match] {
					seen[match] = true
					results = append(results, match)
				}
			}
		}
	}
	return results
}

func (f *descendantFinder) Description() string {
	return fmt.Sprintf("Descendant(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Descendant returns a finder that matches fibers satisfying 'matching'
// that are descendants of fibers matching 'of'.
func Descendant(of, matching Finder) Finder {
	return &descendantFinder{of: of, matching: matching}
}

// collectMatches performs depth-first pre-order traversal, collecting
// fibers that satisfy the predicate.
func collectMatches(root *fiber.Fiber, predicate func(*fiber.Fiber) bool) []*fiber.Fiber {
	var results []*fiber.Fiber
	walkTree(root, func(fb *fiber.Fiber) bool {
		if predicate(fb) {
			results = append(results, fb)
		}
		return true
	})
	return results
}

// walkTree performs a depth-first pre-order traversal of the fiber tree.
// The visitor returns false to stop traversal.
func walkTree(root *fiber.Fiber, visitor func(*fiber.Fiber) bool) bool {
	if root == nil {
		return true
	}
	if !visitor(root) {
		return false
	}
	for child := root.Child; child != nil; child = child.Sibling {
		if !walkTree(child, visitor) {
			return false
		}
	}
	return true
}
