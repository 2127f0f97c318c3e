package bt

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"

	"github.com/zeusync/behaviour/internal/core/observability/log"
)

// RootTypeName is the type name of the node created by EnsureRoot.
const RootTypeName = "RootNode"

// Tree is an authored behaviour tree. It owns every node created for it,
// reachable or not, and is never evaluated directly: runners evaluate clones.
//
// All structural edits validate first and mutate second, so a rejected edit
// leaves the tree exactly as it was.
type Tree struct {
	name    string
	types   *Registry
	logger  log.Log
	nodes   []*Node
	byID    map[uuid.UUID]*Node
	root    *Node
	parents map[uuid.UUID]*Node
}

type TreeOption func(*Tree)

// WithRegistry sets the node-type registry used by CreateNode.
func WithRegistry(reg *Registry) TreeOption {
	return func(t *Tree) { t.types = reg }
}

func WithTreeLogger(l log.Log) TreeOption {
	return func(t *Tree) { t.logger = l }
}

func NewTree(name string, opts ...TreeOption) *Tree {
	t := &Tree{
		name:    name,
		byID:    make(map[uuid.UUID]*Node),
		parents: make(map[uuid.UUID]*Node),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.types == nil {
		t.types = Builtins()
	}
	if t.logger == nil {
		t.logger = log.NewNop()
	}
	return t
}

func (t *Tree) Name() string          { return t.name }
func (t *Tree) Registry() *Registry   { return t.types }
func (t *Tree) Root() *Node           { return t.root }
func (t *Tree) Len() int              { return len(t.nodes) }
func (t *Tree) Contains(n *Node) bool { return n != nil && t.byID[n.id] == n }

func (t *Tree) Node(id uuid.UUID) (*Node, bool) {
	n, ok := t.byID[id]
	return n, ok
}

// Nodes returns a snapshot of the registry in creation order.
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// All iterates the registry in creation order.
func (t *Tree) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, n := range t.nodes {
			if !yield(n) {
				return
			}
		}
	}
}

// Parent returns the node whose child slot holds n, or nil.
func (t *Tree) Parent(n *Node) *Node {
	if n == nil {
		return nil
	}
	return t.parents[n.id]
}

// EnsureRoot returns the root, creating it on first use.
func (t *Tree) EnsureRoot() *Node {
	if t.root != nil {
		return t.root
	}
	root := newNode(KindRoot, RootTypeName, Forward{})
	t.register(root)
	t.root = root
	t.commit("create root")
	return root
}

// CreateNode instantiates a registered type and adds it to the tree,
// detached. Asking for RootTypeName creates the root if there is none.
func (t *Tree) CreateNode(typeName string, params Params) (*Node, error) {
	if typeName == RootTypeName {
		if t.root != nil {
			return nil, fmt.Errorf("%w: tree %q already has a root", ErrStructure, t.name)
		}
		return t.EnsureRoot(), nil
	}
	n, err := t.types.New(typeName, params)
	if err != nil {
		return nil, err
	}
	t.register(n)
	t.commit("create " + n.Name())
	return n, nil
}

// AddNode registers a node built in code. It must be detached and childless.
func (t *Tree) AddNode(n *Node) error {
	switch {
	case n == nil:
		return fmt.Errorf("%w: nil node", ErrStructure)
	case t.byID[n.id] != nil:
		return fmt.Errorf("%w: %s is already registered", ErrStructure, n.Name())
	case n.kind == KindRoot:
		return fmt.Errorf("%w: roots are created by EnsureRoot", ErrStructure)
	case n.child != nil || len(n.children) > 0:
		return fmt.Errorf("%w: %s must be added before it is linked", ErrStructure, n.Name())
	}
	t.register(n)
	t.commit("add " + n.Name())
	return nil
}

// AddChild links child under parent: appended for composites, placed in the
// empty slot for roots and decorators.
func (t *Tree) AddChild(parent, child *Node) error {
	if err := t.checkAttachable(parent, child); err != nil {
		return err
	}
	switch parent.kind {
	case KindComposite:
	case KindRoot, KindDecorator:
		if parent.child != nil {
			return fmt.Errorf("%w: %s already has child %s", ErrStructure, parent.Name(), parent.child.Name())
		}
	default:
		return fmt.Errorf("%w: %s cannot have children", ErrStructure, parent.Name())
	}

	if parent.kind == KindComposite {
		parent.children = append(parent.children, child)
	} else {
		parent.child = child
	}
	t.commit("add child " + child.Name() + " to " + parent.Name())
	return nil
}

// SetChild fills or overwrites the single slot of a root or decorator. A nil
// child empties the slot.
func (t *Tree) SetChild(parent, child *Node) error {
	if err := t.checkOwned(parent); err != nil {
		return err
	}
	if !parent.kind.hasChild() {
		return fmt.Errorf("%w: %s has no single child slot", ErrStructure, parent.Name())
	}
	switch {
	case child == nil && parent.child == nil:
		return nil
	case child == nil:
		return t.RemoveChild(parent, parent.child)
	case parent.child == nil:
		return t.AddChild(parent, child)
	default:
		return t.ReplaceChild(parent, parent.child, child)
	}
}

// RemoveChild unlinks child from parent. The child stays registered.
func (t *Tree) RemoveChild(parent, child *Node) error {
	if err := t.checkOwned(parent, child); err != nil {
		return err
	}
	if t.parents[child.id] != parent {
		return fmt.Errorf("%w: %s is not a child of %s", ErrStructure, child.Name(), parent.Name())
	}
	t.unlink(parent, child)
	t.commit("remove child " + child.Name() + " from " + parent.Name())
	return nil
}

// ReplaceChild rewrites the slot of parent that holds old to hold repl. repl
// must be detached, or be old's own child (which is how a decorator is lifted
// out of a chain).
func (t *Tree) ReplaceChild(parent, old, repl *Node) error {
	if err := t.checkOwned(parent, old, repl); err != nil {
		return err
	}
	if t.parents[old.id] != parent {
		return fmt.Errorf("%w: %s is not a child of %s", ErrStructure, old.Name(), parent.Name())
	}
	if old == repl {
		return nil
	}
	if repl.kind == KindRoot {
		return fmt.Errorf("%w: root cannot be a child", ErrStructure)
	}
	replParent := t.parents[repl.id]
	if replParent != nil && replParent != old {
		return fmt.Errorf("%w: %s already has parent %s", ErrStructure, repl.Name(), replParent.Name())
	}
	if replParent == nil && repl.IsConnectedWith(parent) {
		return fmt.Errorf("%w: replacing %s with %s would create a cycle", ErrStructure, old.Name(), repl.Name())
	}

	if replParent == old {
		t.unlink(old, repl)
	}
	t.swap(parent, old, repl)
	t.commit("replace " + old.Name() + " with " + repl.Name() + " under " + parent.Name())
	return nil
}

// InsertBeforeChild splices decorator between parent and child, so that
// parent -> decorator -> child. The decorator must be detached and empty.
func (t *Tree) InsertBeforeChild(parent, child, decorator *Node) error {
	if err := t.checkOwned(parent, child, decorator); err != nil {
		return err
	}
	if t.parents[child.id] != parent {
		return fmt.Errorf("%w: %s is not a child of %s", ErrStructure, child.Name(), parent.Name())
	}
	if decorator.kind != KindDecorator {
		return fmt.Errorf("%w: %s is not a decorator", ErrStructure, decorator.Name())
	}
	if p := t.parents[decorator.id]; p != nil {
		return fmt.Errorf("%w: %s already has parent %s", ErrStructure, decorator.Name(), p.Name())
	}
	if decorator.child != nil {
		return fmt.Errorf("%w: %s already has child %s", ErrStructure, decorator.Name(), decorator.child.Name())
	}

	t.swap(parent, child, decorator)
	decorator.child = child
	t.commit("insert " + decorator.Name() + " above " + child.Name())
	return nil
}

// DetachDecorator lifts a decorator out of its chain: its parent adopts the
// decorator's child in the same slot. The decorator stays registered, detached
// and reset.
func (t *Tree) DetachDecorator(decorator *Node) error {
	if err := t.checkOwned(decorator); err != nil {
		return err
	}
	if decorator.kind != KindDecorator {
		return fmt.Errorf("%w: %s is not a decorator", ErrStructure, decorator.Name())
	}
	parent := t.parents[decorator.id]
	if parent == nil {
		return fmt.Errorf("%w: %s has no parent", ErrStructure, decorator.Name())
	}

	t.lift(parent, decorator)
	decorator.ResetState()
	t.commit("detach " + decorator.Name())
	return nil
}

// DeleteNode removes n from the tree. A decorator in the middle of a chain is
// detached first so the chain stays connected; any other node is unlinked from
// its parent and its own children are left detached. The root cannot be
// deleted.
func (t *Tree) DeleteNode(n *Node) error {
	if err := t.checkOwned(n); err != nil {
		return err
	}
	if n == t.root {
		return fmt.Errorf("%w: the root cannot be deleted", ErrStructure)
	}

	if parent := t.parents[n.id]; parent != nil {
		if n.kind == KindDecorator {
			t.lift(parent, n)
		} else {
			t.unlink(parent, n)
		}
	}
	n.child = nil
	n.children = nil
	n.ResetState()

	delete(t.byID, n.id)
	for i, m := range t.nodes {
		if m == n {
			t.nodes = append(t.nodes[:i], t.nodes[i+1:]...)
			break
		}
	}
	t.commit("delete " + n.Name())
	return nil
}

// Validate reports every condition that would make the tree fail at
// evaluation time.
func (t *Tree) Validate() error {
	if t.root == nil {
		return ErrNoRoot
	}
	var errs []error
	for n := range PreOrder(t.root) {
		switch n.kind {
		case KindRoot, KindDecorator:
			if n.child == nil {
				errs = append(errs, fmt.Errorf("%s: %w", n.Name(), ErrNilChild))
			}
		}
		if n.behaviour == nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), ErrNoBehaviour))
		}
	}
	return errors.Join(errs...)
}

// Format renders the reachable tree, one node per line, with execution order.
func (t *Tree) Format() string {
	if t.root == nil {
		return "<empty>\n"
	}
	var sb strings.Builder
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		fmt.Fprintf(&sb, "%s%d %s (%s)", strings.Repeat("  ", depth), n.order, n.Name(), n.kind)
		if d := n.Description(); d != n.displayName && d != n.Name() {
			fmt.Fprintf(&sb, " - %s", d)
		}
		sb.WriteByte('\n')
		for _, ch := range n.Children() {
			walk(ch, depth+1)
		}
	}
	walk(t.root, 0)
	return sb.String()
}

func (t *Tree) register(n *Node) {
	t.nodes = append(t.nodes, n)
	t.byID[n.id] = n
}

// commit rebuilds the derived parent index and execution order after an edit.
func (t *Tree) commit(what string) {
	t.parents = make(map[uuid.UUID]*Node, len(t.nodes))
	for _, n := range t.nodes {
		for _, ch := range n.Children() {
			t.parents[ch.id] = n
		}
	}
	count := t.UpdateExecutionOrder()
	t.logger.Debug("tree edited",
		log.String("tree", t.name),
		log.String("edit", what),
		log.Int("reachable", count),
	)
}

func (t *Tree) checkOwned(nodes ...*Node) error {
	for _, n := range nodes {
		if n == nil {
			return fmt.Errorf("%w: nil node", ErrStructure)
		}
		if !t.Contains(n) {
			return fmt.Errorf("%w: %s", ErrForeignNode, n.Name())
		}
	}
	return nil
}

func (t *Tree) checkAttachable(parent, child *Node) error {
	if err := t.checkOwned(parent, child); err != nil {
		return err
	}
	if child.kind == KindRoot {
		return fmt.Errorf("%w: root cannot be a child", ErrStructure)
	}
	if p := t.parents[child.id]; p != nil {
		return fmt.Errorf("%w: %s already has parent %s", ErrStructure, child.Name(), p.Name())
	}
	if child.IsConnectedWith(parent) {
		return fmt.Errorf("%w: attaching %s under %s would create a cycle", ErrStructure, child.Name(), parent.Name())
	}
	return nil
}

// lift replaces decorator in parent's slot with the decorator's child, or
// removes the slot when the decorator is empty.
func (t *Tree) lift(parent, decorator *Node) {
	child := decorator.child
	decorator.child = nil
	if child == nil {
		t.unlink(parent, decorator)
		return
	}
	t.swap(parent, decorator, child)
}

func (t *Tree) swap(parent, old, repl *Node) {
	if parent.kind.hasChild() {
		parent.child = repl
		return
	}
	for i, ch := range parent.children {
		if ch == old {
			parent.children[i] = repl
			return
		}
	}
}

func (t *Tree) unlink(parent, child *Node) {
	if parent.kind.hasChild() {
		if parent.child == child {
			parent.child = nil
		}
		return
	}
	for i, ch := range parent.children {
		if ch == child {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			return
		}
	}
}
