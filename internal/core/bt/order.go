package bt

import "iter"

// UpdateExecutionOrder stamps every node reachable from the root with its
// pre-order position, starting at zero: a decorator before its child, a
// composite before its children in list order. Unreachable nodes get -1.
// It returns the number of reachable nodes.
//
// The tree calls it after every structural edit; the order is never authored.
func (t *Tree) UpdateExecutionOrder() int {
	for _, n := range t.nodes {
		n.order = -1
	}
	if t.root == nil {
		return 0
	}
	order := 0
	assignExecutionOrder(t.root, &order)
	return order
}

func assignExecutionOrder(n *Node, order *int) {
	n.order = *order
	*order++
	switch n.kind {
	case KindRoot, KindDecorator:
		if n.child != nil {
			assignExecutionOrder(n.child, order)
		}
	case KindComposite:
		for _, ch := range n.children {
			assignExecutionOrder(ch, order)
		}
	}
}

// PreOrder walks the subtree below root in execution order.
func PreOrder(root *Node) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		if root != nil {
			preOrder(root, yield)
		}
	}
}

func preOrder(n *Node, yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	switch n.kind {
	case KindRoot, KindDecorator:
		if n.child != nil {
			return preOrder(n.child, yield)
		}
	case KindComposite:
		for _, ch := range n.children {
			if !preOrder(ch, yield) {
				return false
			}
		}
	}
	return true
}
