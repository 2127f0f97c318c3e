package bt

import (
	"errors"
	"fmt"
)

// State is the tri-state result of evaluating a node. The zero value is
// StateRunning, which is what a node reports before its first evaluation.
type State uint8

const (
	StateRunning State = iota
	StateSuccess
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateSuccess:
		return "Success"
	case StateFailure:
		return "Failure"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Running":
		*s = StateRunning
	case "Success":
		*s = StateSuccess
	case "Failure":
		*s = StateFailure
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// Kind is the closed set of node shapes.
type Kind uint8

const (
	KindLeaf Kind = iota
	KindDecorator
	KindComposite
	KindRoot
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindDecorator:
		return "decorator"
	case KindComposite:
		return "composite"
	case KindRoot:
		return "root"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// hasChild reports whether nodes of this kind carry a single child slot.
func (k Kind) hasChild() bool { return k == KindDecorator || k == KindRoot }

var (
	// ErrStructure is wrapped by every rejected structural edit.
	ErrStructure = errors.New("bt: invalid structural edit")
	// ErrForeignNode is returned when a node is not registered in the tree.
	ErrForeignNode = errors.New("bt: node does not belong to this tree")
	// ErrNoRoot means the tree has nothing to evaluate.
	ErrNoRoot = errors.New("bt: tree has no root")
	// ErrNilChild means a root or decorator was evaluated without a child.
	ErrNilChild = errors.New("bt: decorator has no child")
	// ErrNoBehaviour means a leaf or composite was built without a behaviour.
	ErrNoBehaviour = errors.New("bt: node has no behaviour")
	// ErrUnknownType is returned by the registry and the template loader.
	ErrUnknownType = errors.New("bt: unknown node type")
	// ErrRunnerClosed is returned by Tick after Close.
	ErrRunnerClosed = errors.New("bt: runner closed")
)
