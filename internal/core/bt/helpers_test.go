package bt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// probe is a scripted leaf behaviour that counts its hooks. The last scripted
// result repeats once the script is exhausted.
type probe struct {
	script   []State
	calls    int
	starts   int
	finishes int
}

func newProbe(script ...State) *probe { return &probe{script: script} }

func (p *probe) OnStart(*Node, *Runner)  { p.starts++ }
func (p *probe) OnFinish(*Node, *Runner) { p.finishes++ }

func (p *probe) Evaluate(*Node, *Runner) (State, error) {
	i := p.calls
	p.calls++
	if i >= len(p.script) {
		i = len(p.script) - 1
	}
	return p.script[i], nil
}

func (p *probe) Clone() Behaviour {
	return &probe{script: append([]State(nil), p.script...)}
}

func probeOf(t *testing.T, n *Node) *probe {
	t.Helper()
	p, ok := n.Behaviour().(*probe)
	require.True(t, ok, "node %s is not a probe", n.Name())
	return p
}

func addLeaf(t *testing.T, tree *Tree, name string, b Behaviour) *Node {
	t.Helper()
	n := NewLeaf("ProbeNode", b)
	n.SetName(name)
	require.NoError(t, tree.AddNode(n))
	return n
}

func addDecorator(t *testing.T, tree *Tree, name string, b Behaviour) *Node {
	t.Helper()
	n := NewDecorator("ProbeDecoratorNode", b)
	n.SetName(name)
	require.NoError(t, tree.AddNode(n))
	return n
}

func addComposite(t *testing.T, tree *Tree, name string, b Behaviour) *Node {
	t.Helper()
	n := NewComposite("ProbeCompositeNode", b)
	n.SetName(name)
	require.NoError(t, tree.AddNode(n))
	return n
}

type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock { return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
