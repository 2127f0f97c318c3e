package bt

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Behaviour is the pluggable evaluation strategy of a node. It is called once
// per tick while the node is active and must not block: waiting is expressed
// by returning StateRunning.
type Behaviour interface {
	Evaluate(n *Node, r *Runner) (State, error)
}

// Starter is implemented by behaviours that need to reset per-run state when
// their node transitions from not-started to started.
type Starter interface {
	OnStart(n *Node, r *Runner)
}

// Finisher is implemented by behaviours that react to a run concluding with
// Success or Failure.
type Finisher interface {
	OnFinish(n *Node, r *Runner)
}

// Awaker is called on a freshly cloned node, before its first tick.
type Awaker interface {
	OnAwake(n *Node, r *Runner)
}

// Cloner is implemented by behaviours that keep mutable per-instance state.
// Behaviours that do not implement it are shared between template and clones
// and must therefore be immutable.
type Cloner interface {
	Clone() Behaviour
}

// Describer provides an editor-facing description of a configured node.
type Describer interface {
	Description() string
}

// Node is one vertex of a behaviour tree. Its shape is fixed by Kind: roots
// and decorators own a single child, composites an ordered child list, leaves
// nothing. Nodes never hold a reference to their parent; the owning Tree keeps
// that index.
type Node struct {
	id          uuid.UUID
	kind        Kind
	typeName    string
	name        string
	displayName string
	behaviour   Behaviour

	child    *Node
	children []*Node

	state   State
	started bool
	order   int
}

func newNode(kind Kind, typeName string, b Behaviour) *Node {
	return &Node{
		id:          uuid.New(),
		kind:        kind,
		typeName:    typeName,
		displayName: DisplayName(typeName),
		behaviour:   b,
		order:       -1,
	}
}

// NewLeaf creates a detached leaf node.
func NewLeaf(typeName string, b Behaviour) *Node { return newNode(KindLeaf, typeName, b) }

// NewDecorator creates a detached decorator. A nil behaviour forwards the
// child's result unchanged.
func NewDecorator(typeName string, b Behaviour) *Node {
	if b == nil {
		b = Forward{}
	}
	return newNode(KindDecorator, typeName, b)
}

// NewComposite creates a detached composite with no children.
func NewComposite(typeName string, b Behaviour) *Node { return newNode(KindComposite, typeName, b) }

func (n *Node) ID() uuid.UUID        { return n.id }
func (n *Node) Kind() Kind           { return n.kind }
func (n *Node) TypeName() string     { return n.typeName }
func (n *Node) Behaviour() Behaviour { return n.behaviour }
func (n *Node) State() State         { return n.state }
func (n *Node) Started() bool        { return n.started }

// ExecutionOrder is the pre-order position assigned by the owning tree, or -1
// when the node is not reachable from the root.
func (n *Node) ExecutionOrder() int { return n.order }

// Name returns the explicit name when set, otherwise the display name derived
// from the type.
func (n *Node) Name() string {
	if strings.TrimSpace(n.name) != "" {
		return n.name
	}
	return n.displayName
}

// SetName overrides the derived display name. An empty name restores it.
func (n *Node) SetName(name string) { n.name = name }

// Description returns the behaviour's description, or the display name.
func (n *Node) Description() string {
	if d, ok := n.behaviour.(Describer); ok {
		return d.Description()
	}
	return n.displayName
}

// Child returns the single child of a root or decorator.
func (n *Node) Child() *Node { return n.child }

// Children returns a copy of the child list. For roots and decorators it holds
// at most the single child.
func (n *Node) Children() []*Node {
	if n.kind.hasChild() {
		if n.child == nil {
			return nil
		}
		return []*Node{n.child}
	}
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Evaluate advances the node by one tick: the start hook fires on the first
// tick of a run, the behaviour always runs, and the finish hook fires once the
// run concludes. On error the tick is abandoned without firing the finish hook
// and the previous state is kept.
func (n *Node) Evaluate(r *Runner) (State, error) {
	if n.behaviour == nil {
		return n.state, fmt.Errorf("%s: %w", n.Name(), ErrNoBehaviour)
	}
	if !n.started {
		if s, ok := n.behaviour.(Starter); ok {
			s.OnStart(n, r)
		}
		n.started = true
	}

	st, err := n.behaviour.Evaluate(n, r)
	if err != nil {
		return n.state, fmt.Errorf("%s: %w", n.Name(), err)
	}
	n.state = st

	if st != StateRunning {
		if f, ok := n.behaviour.(Finisher); ok {
			f.OnFinish(n, r)
		}
		n.started = false
	}
	return st, nil
}

// EvaluateChild evaluates the single child of a root or decorator.
func (n *Node) EvaluateChild(r *Runner) (State, error) {
	if n.child == nil {
		return StateFailure, ErrNilChild
	}
	return n.child.Evaluate(r)
}

// ResetState returns the node to Running / not started without firing any
// hook. It is used when a run is abandoned rather than concluded.
func (n *Node) ResetState() {
	n.started = false
	n.state = StateRunning
}

// IsConnectedWith reports whether other is this node or is reachable through
// its children.
func (n *Node) IsConnectedWith(other *Node) bool {
	if other == nil {
		return false
	}
	if n == other {
		return true
	}
	switch n.kind {
	case KindRoot, KindDecorator:
		return n.child != nil && n.child.IsConnectedWith(other)
	case KindComposite:
		for _, ch := range n.children {
			if ch.IsConnectedWith(other) {
				return true
			}
		}
	}
	return false
}

// clone copies the subtree below n for r. Clones keep the template ids so a
// runtime node can be traced back to the authored one.
func (n *Node) clone(r *Runner, index map[uuid.UUID]*Node) *Node {
	c := &Node{
		id:          n.id,
		kind:        n.kind,
		typeName:    n.typeName,
		name:        n.name,
		displayName: n.displayName,
		behaviour:   n.behaviour,
		order:       n.order,
	}
	if cl, ok := n.behaviour.(Cloner); ok {
		c.behaviour = cl.Clone()
	}
	index[c.id] = c

	switch n.kind {
	case KindRoot, KindDecorator:
		if n.child != nil {
			c.child = n.child.clone(r, index)
		}
	case KindComposite:
		c.children = make([]*Node, 0, len(n.children))
		for _, ch := range n.children {
			c.children = append(c.children, ch.clone(r, index))
		}
	}

	if a, ok := c.behaviour.(Awaker); ok {
		a.OnAwake(c, r)
	}
	return c
}

func (n *Node) String() string {
	return fmt.Sprintf("%s[%s #%d]", n.Name(), n.kind, n.order)
}
