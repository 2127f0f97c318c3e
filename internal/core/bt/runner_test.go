package bt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceTree builds Root -> Seq[A, B] where A always succeeds and B runs for
// two ticks before succeeding.
func sequenceTree(t *testing.T) (tree *Tree, seq, a, b *Node) {
	t.Helper()
	tree = NewTree("sequence")
	root := tree.EnsureRoot()
	seq = addComposite(t, tree, "Seq", &Sequence{})
	a = addLeaf(t, tree, "A", newProbe(StateSuccess))
	b = addLeaf(t, tree, "B", newProbe(StateRunning, StateRunning, StateSuccess))
	require.NoError(t, tree.AddChild(root, seq))
	require.NoError(t, tree.AddChild(seq, a))
	require.NoError(t, tree.AddChild(seq, b))
	return tree, seq, a, b
}

func TestRunnerSequenceResumesRunningChild(t *testing.T) {
	tree, seq, a, b := sequenceTree(t)
	assert.Equal(t, 0, tree.Root().ExecutionOrder())
	assert.Equal(t, 1, seq.ExecutionOrder())
	assert.Equal(t, 2, a.ExecutionOrder())
	assert.Equal(t, 3, b.ExecutionOrder())

	r, err := NewRunner(tree)
	require.NoError(t, err)
	ra, ok := r.Node(a.ID())
	require.True(t, ok)
	rb, ok := r.Node(b.ID())
	require.True(t, ok)

	ctx := context.Background()
	want := []State{StateRunning, StateRunning, StateSuccess}
	for i, w := range want {
		st, err := r.Tick(ctx)
		require.NoError(t, err)
		assert.Equal(t, w, st, "tick %d", i+1)
	}

	pa, pb := probeOf(t, ra), probeOf(t, rb)
	assert.Equal(t, 1, pa.calls, "completed child is not re-run mid-sequence")
	assert.Equal(t, 1, pa.starts)
	assert.Equal(t, 1, pa.finishes)
	assert.Equal(t, 3, pb.calls)
	assert.Equal(t, 1, pb.starts)
	assert.Equal(t, 1, pb.finishes)
	assert.Equal(t, uint64(3), r.Ticks())
	assert.Equal(t, StateSuccess, r.State())
}

func TestRunnerClonesAreIndependent(t *testing.T) {
	tree, _, a, b := sequenceTree(t)

	r1, err := NewRunner(tree, WithName("one"))
	require.NoError(t, err)
	r2, err := NewRunner(tree, WithName("two"))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = r1.Tick(ctx)
	require.NoError(t, err)
	_, err = r1.Tick(ctx)
	require.NoError(t, err)
	_, err = r2.Tick(ctx)
	require.NoError(t, err)

	c1, _ := r1.Node(b.ID())
	c2, _ := r2.Node(b.ID())
	assert.NotSame(t, c1, c2)
	assert.NotSame(t, b, c1)
	assert.Equal(t, b.ID(), c1.ID())
	assert.Equal(t, 2, probeOf(t, c1).calls)
	assert.Equal(t, 1, probeOf(t, c2).calls)

	assert.Zero(t, probeOf(t, a).calls, "template is never evaluated")
	assert.Zero(t, probeOf(t, b).calls)
	assert.False(t, b.Started())
	assert.Equal(t, "one", r1.Name())
	assert.Equal(t, "two", r2.Name())
	assert.NotSame(t, r1.Cooldowns(), r2.Cooldowns())
	assert.NotSame(t, r1.Blackboard(), r2.Blackboard())
}

func TestRunnerNodesFollowExecutionOrder(t *testing.T) {
	tree, seq, a, b := sequenceTree(t)
	r, err := NewRunner(tree)
	require.NoError(t, err)

	var ids []string
	for _, n := range r.Nodes() {
		ids = append(ids, n.ID().String())
	}
	assert.Equal(t, []string{
		tree.Root().ID().String(), seq.ID().String(), a.ID().String(), b.ID().String(),
	}, ids)
	assert.Same(t, tree, r.Template())
	assert.Equal(t, tree.Root().ID(), r.Root().ID())
}

func TestNewRunnerRequiresRoot(t *testing.T) {
	_, err := NewRunner(NewTree("empty"))
	assert.ErrorIs(t, err, ErrNoRoot)

	_, err = NewRunner(nil)
	assert.Error(t, err)
}

func TestRunnerResetAbandonsRun(t *testing.T) {
	tree, _, _, b := sequenceTree(t)
	r, err := NewRunner(tree)
	require.NoError(t, err)

	_, err = r.Tick(context.Background())
	require.NoError(t, err)
	rb, _ := r.Node(b.ID())
	require.True(t, rb.Started())

	r.Reset()
	assert.False(t, rb.Started())
	assert.Equal(t, StateRunning, r.State())
	assert.Zero(t, probeOf(t, rb).finishes, "reset does not fire finish hooks")
}

func TestRunnerCloseAndContext(t *testing.T) {
	tree, _, _, _ := sequenceTree(t)
	r, err := NewRunner(tree)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Tick(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, r.Ticks())

	r.Close()
	r.Close()
	assert.True(t, r.Closed())
	_, err = r.Tick(context.Background())
	assert.ErrorIs(t, err, ErrRunnerClosed)
}

func TestRunnerUsesInjectedServices(t *testing.T) {
	clock := newFakeClock()
	cd := NewCooldownHandler(clock.Now)
	bb := NewBlackboard()

	tree := NewTree("services")
	root := tree.EnsureRoot()
	set := addLeaf(t, tree, "Set", NewSetTagCooldown("attack", 0, false))
	require.NoError(t, tree.AddChild(root, set))

	r, err := NewRunner(tree, WithClock(clock.Now), WithCooldowns(cd), WithBlackboard(bb))
	require.NoError(t, err)
	assert.Same(t, cd, r.Cooldowns())
	assert.Same(t, bb, r.Blackboard())
	assert.Equal(t, clock.Now(), r.Now())
}

func TestRunnerWithoutCooldownService(t *testing.T) {
	tree := NewTree("no-cooldowns")
	root := tree.EnsureRoot()
	check := addDecorator(t, tree, "Check", NewConditional(NewCooldownCheck("attack")))
	set := addLeaf(t, tree, "Set", NewSetTagCooldown("attack", 0, false))
	require.NoError(t, tree.AddChild(root, check))
	require.NoError(t, tree.AddChild(check, set))

	r, err := NewRunner(tree, WithCooldowns(nil))
	require.NoError(t, err)
	assert.Nil(t, r.Cooldowns())

	st, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailure, st)
}

// brokenCooldowns is a cooldown service whose backing store is down.
type brokenCooldowns struct {
	*CooldownHandler
	err error
}

func (b brokenCooldowns) TrySetCooldown(uint64, SetCooldownParams) error { return b.err }

func (b brokenCooldowns) TryRemaining(uint64) (time.Duration, error) { return 0, b.err }

func TestRunnerWithFailingCooldownService(t *testing.T) {
	cd := brokenCooldowns{CooldownHandler: NewCooldownHandler(nil), err: errors.New("store down")}

	tree := NewTree("set-only")
	set := addLeaf(t, tree, "Set", NewSetTagCooldown("attack", time.Second, false))
	require.NoError(t, tree.AddChild(tree.EnsureRoot(), set))
	r, err := NewRunner(tree, WithCooldowns(cd))
	require.NoError(t, err)

	st, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailure, st)
	assert.Zero(t, cd.Len(), "nothing is stored behind the failing call")

	r2, leaf := decorated(t, NewConditional(NewCooldownCheck("attack")), newProbe(StateSuccess), WithCooldowns(cd))
	st, err = r2.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailure, st)
	assert.False(t, leaf.Started())
	assert.Zero(t, probeOf(t, leaf).starts, "gated child never runs")
}
