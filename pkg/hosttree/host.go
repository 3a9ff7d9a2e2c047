// Package hosttree is an in-memory host for the fiber reconciler.
//
// A Host keeps a mutable tree of Nodes under a container node and records
// every call the reconciler makes in an op log, which makes it the host of
// choice for tests and for the fiber CLI. Failures can be injected per
// operation kind to exercise host error handling.
//
// A Host is not safe for concurrent use; drive it from the reconciler's
// goroutine.
package hosttree

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/joeycumines/logiface"

	"github.com/go-drift/fiber/pkg/errors"
	"github.com/go-drift/fiber/pkg/fiber"
)

// ContainerType is the type of the node returned by Host.Container.
const ContainerType = "#root"

// ErrInjected is returned by operations made to fail with FailOn and no
// explicit error.
var ErrInjected = errors.New("hosttree: injected failure")

// Option configures a Host.
type Option func(*Host)

// WithTextContentTypes sets the host types whose single text child is stored
// on the node itself instead of in a text node.
func WithTextContentTypes(types ...string) Option {
	return func(h *Host) {
		h.textContentTypes = mapset.NewSet(types...)
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return func(h *Host) {
		h.logger = l.Clone().Str("category", "host").Logger()
	}
}

// Host implements fiber.HostConfig on an in-memory tree.
type Host struct {
	container *Node
	nextID    int

	ops      []Op
	failures map[OpKind]error

	textContentTypes mapset.Set[string]
	microtasks       []func()

	logger *logiface.Logger[logiface.Event]
}

var _ fiber.HostConfig = (*Host)(nil)

// DefaultTextContentTypes lists the types that render their text child
// themselves unless WithTextContentTypes says otherwise.
var DefaultTextContentTypes = []string{"textarea", "option", "title"}

// New returns an empty host.
func New(opts ...Option) *Host {
	h := &Host{
		failures:         make(map[OpKind]error),
		textContentTypes: mapset.NewSet(DefaultTextContentTypes...),
	}
	h.container = h.newNode(ContainerType)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Container returns the root node that a fiber root renders into.
func (h *Host) Container() *Node { return h.container }

// FailOn makes every later operation of kind fail with err, or ErrInjected
// when err is nil. Failed operations are still logged, with Op.Err set, and
// leave the tree untouched.
func (h *Host) FailOn(kind OpKind, err error) {
	if err == nil {
		err = ErrInjected
	}
	h.failures[kind] = err
}

// ClearFailures removes every injected failure.
func (h *Host) ClearFailures() {
	clear(h.failures)
}

// Ops returns a copy of the op log.
func (h *Host) Ops() []Op {
	return append([]Op(nil), h.ops...)
}

// ClearOps empties the op log.
func (h *Host) ClearOps() {
	h.ops = h.ops[:0]
}

// Count returns how many logged ops have the given kind.
func (h *Host) Count(kind OpKind) int {
	n := 0
	for _, op := range h.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// ScheduleMicrotask queues fn until FlushMicrotasks.
func (h *Host) ScheduleMicrotask(fn func()) {
	h.microtasks = append(h.microtasks, fn)
}

// PendingMicrotasks returns the number of queued microtasks.
func (h *Host) PendingMicrotasks() int { return len(h.microtasks) }

// FlushMicrotasks runs queued microtasks, including ones they queue, and
// returns how many ran.
func (h *Host) FlushMicrotasks() int {
	n := 0
	for len(h.microtasks) > 0 {
		fn := h.microtasks[0]
		h.microtasks[0] = nil
		h.microtasks = h.microtasks[1:]
		fn()
		n++
	}
	return n
}

// SupportsMutation implements fiber.HostConfig. The tree is always mutable.
func (h *Host) SupportsMutation() bool { return true }

// ShouldSetTextContent implements fiber.HostConfig.
func (h *Host) ShouldSetTextContent(typ string, props fiber.Props) bool {
	if !h.textContentTypes.Contains(typ) {
		return false
	}
	_, ok := textContent(props)
	return ok
}

func (h *Host) CreateInstance(typ string, props fiber.Props) (fiber.Instance, error) {
	n := h.newNode(typ)
	op := Op{Kind: OpCreate, Target: n.label()}
	if err := h.check(op); err != nil {
		return nil, err
	}
	h.setProps(n, props)
	return n, nil
}

func (h *Host) CreateTextInstance(text string) (fiber.Instance, error) {
	n := h.newNode(TextType)
	n.Text = text
	if err := h.check(Op{Kind: OpCreateText, Target: n.label(), New: text}); err != nil {
		return nil, err
	}
	return n, nil
}

func (h *Host) AppendInitialChild(parent, child fiber.Instance) error {
	return h.appendChild(OpAppendInitial, parent, child)
}

func (h *Host) AppendChild(parent, child fiber.Instance) error {
	return h.appendChild(OpAppend, parent, child)
}

func (h *Host) appendChild(kind OpKind, parent, child fiber.Instance) error {
	p, c, err := nodes(parent, child)
	if err != nil {
		return err
	}
	if err := h.check(Op{Kind: kind, Parent: p.label(), Target: c.label()}); err != nil {
		return err
	}
	if c.contains(p) {
		return fmt.Errorf("hosttree: %s cannot be appended to its own descendant %s", c.label(), p.label())
	}
	c.detach()
	c.Parent = p
	p.Children = append(p.Children, c)
	return nil
}

func (h *Host) InsertBefore(parent, child, before fiber.Instance) error {
	p, c, err := nodes(parent, child)
	if err != nil {
		return err
	}
	b, ok := before.(*Node)
	if !ok {
		return fmt.Errorf("hosttree: before is %T, not *Node", before)
	}
	if err := h.check(Op{Kind: OpInsertBefore, Parent: p.label(), Target: c.label(), Before: b.label()}); err != nil {
		return err
	}
	if b.Parent != p {
		return fmt.Errorf("hosttree: %s is not a child of %s", b.label(), p.label())
	}
	if c == b {
		return nil
	}
	c.detach()
	i := p.indexOf(b)
	p.Children = append(p.Children, nil)
	copy(p.Children[i+1:], p.Children[i:])
	p.Children[i] = c
	c.Parent = p
	return nil
}

func (h *Host) RemoveChild(parent, child fiber.Instance) error {
	p, c, err := nodes(parent, child)
	if err != nil {
		return err
	}
	if err := h.check(Op{Kind: OpRemove, Parent: p.label(), Target: c.label()}); err != nil {
		return err
	}
	if c.Parent != p {
		return fmt.Errorf("hosttree: %s is not a child of %s", c.label(), p.label())
	}
	c.detach()
	return nil
}

func (h *Host) CommitUpdate(inst fiber.Instance, typ string, oldProps, newProps fiber.Props) error {
	n, ok := inst.(*Node)
	if !ok {
		return fmt.Errorf("hosttree: instance is %T, not *Node", inst)
	}
	if err := h.check(Op{Kind: OpCommitUpdate, Target: n.label()}); err != nil {
		return err
	}
	h.setProps(n, newProps)
	return nil
}

func (h *Host) CommitTextUpdate(inst fiber.Instance, oldText, newText string) error {
	n, ok := inst.(*Node)
	if !ok {
		return fmt.Errorf("hosttree: instance is %T, not *Node", inst)
	}
	if err := h.check(Op{Kind: OpCommitTextUpdate, Target: n.label(), Old: oldText, New: newText}); err != nil {
		return err
	}
	n.Text = newText
	return nil
}

func (h *Host) ResetTextContent(inst fiber.Instance) error {
	n, ok := inst.(*Node)
	if !ok {
		return fmt.Errorf("hosttree: instance is %T, not *Node", inst)
	}
	if err := h.check(Op{Kind: OpResetText, Target: n.label(), Old: n.Text}); err != nil {
		return err
	}
	n.Text = ""
	return nil
}

// check logs op and returns the injected failure for its kind, if any.
func (h *Host) check(op Op) error {
	if err, ok := h.failures[op.Kind]; ok {
		op.Err = err
		h.ops = append(h.ops, op)
		h.logger.Debug().Stringer("op", op).Err(err).Log("host op failed")
		return err
	}
	h.ops = append(h.ops, op)
	h.logger.Trace().Stringer("op", op).Log("host op")
	return nil
}

func (h *Host) newNode(typ string) *Node {
	h.nextID++
	return &Node{ID: h.nextID, Type: typ}
}

// setProps copies props onto n. Children are dropped unless n renders them
// as text content.
func (h *Host) setProps(n *Node, props fiber.Props) {
	n.Props = make(fiber.Props, len(props))
	for k, v := range props {
		if k == "children" {
			continue
		}
		n.Props[k] = v
	}
	if h.textContentTypes.Contains(n.Type) {
		n.Text, _ = textContent(props)
	}
}

func nodes(parent, child fiber.Instance) (*Node, *Node, error) {
	p, ok := parent.(*Node)
	if !ok {
		return nil, nil, fmt.Errorf("hosttree: parent is %T, not *Node", parent)
	}
	c, ok := child.(*Node)
	if !ok {
		return nil, nil, fmt.Errorf("hosttree: child is %T, not *Node", child)
	}
	return p, c, nil
}

func textContent(props fiber.Props) (string, bool) {
	switch v := props["children"].(type) {
	case string:
		return v, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}
