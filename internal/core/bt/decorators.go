package bt

import (
	"fmt"
	"time"

	"github.com/zeusync/behaviour/internal/core/observability/log"
)

// Forward passes the child's result through unchanged. It is the behaviour of
// the root and the default for decorators.
type Forward struct{}

func (Forward) Evaluate(n *Node, r *Runner) (State, error) { return n.EvaluateChild(r) }

// Condition is a predicate evaluated by a Conditional decorator.
type Condition interface {
	Check(n *Node, r *Runner) bool
}

// ConditionFunc adapts a function to Condition.
type ConditionFunc func(n *Node, r *Runner) bool

func (f ConditionFunc) Check(n *Node, r *Runner) bool { return f(n, r) }

// Conditional gates its child on a condition. When the condition does not
// hold it fails immediately and the child is not touched at all, so a child
// that was mid-run keeps its state for the next activation.
type Conditional struct {
	Cond Condition
}

func NewConditional(c Condition) *Conditional { return &Conditional{Cond: c} }

func (c *Conditional) Evaluate(n *Node, r *Runner) (State, error) {
	if n.child == nil {
		return StateFailure, ErrNilChild
	}
	if c.Cond == nil || !c.Cond.Check(n, r) {
		return StateFailure, nil
	}
	return n.child.Evaluate(r)
}

func (c *Conditional) Description() string {
	if d, ok := c.Cond.(Describer); ok {
		return d.Description()
	}
	return "Conditional"
}

// IsTrue holds when the blackboard value under Key is boolean true.
type IsTrue struct{ Key string }

func (c IsTrue) Check(_ *Node, r *Runner) bool {
	v, ok := r.Blackboard().GetBool(c.Key)
	return ok && v
}

func (c IsTrue) Description() string { return c.Key + " is true" }

// NullCheck holds when the blackboard value under Key is absent or nil, or
// the opposite when ShouldBeNull is false.
type NullCheck struct {
	Key          string
	ShouldBeNull bool
}

func (c NullCheck) Check(_ *Node, r *Runner) bool {
	return r.Blackboard().IsNull(c.Key) == c.ShouldBeNull
}

func (c NullCheck) Description() string {
	if c.ShouldBeNull {
		return c.Key + " is NULL"
	}
	return c.Key + " is NOT NULL"
}

// CooldownCheck holds while the tag has no active cooldown. It never holds
// without a cooldown service, or when the service cannot answer.
type CooldownCheck struct {
	Tag  string
	hash uint64
}

func NewCooldownCheck(tag string) CooldownCheck {
	return CooldownCheck{Tag: tag, hash: TagHash(tag)}
}

func (c CooldownCheck) Check(n *Node, r *Runner) bool {
	cd := r.Cooldowns()
	if cd == nil {
		return false
	}
	hash := hashOf(c.hash, c.Tag)
	f, ok := cd.(FallibleCooldowns)
	if !ok {
		return !cd.IsActive(hash)
	}
	left, err := f.TryRemaining(hash)
	if err != nil {
		r.Logger().Warn("cooldown unavailable",
			log.String("node", n.Name()),
			log.String("tag", c.Tag),
			log.Error(err),
		)
		return false
	}
	return left <= 0
}

func (c CooldownCheck) Description() string { return "Cooldown " + c.Tag + " is ready" }

// Inverter swaps Success and Failure; Running passes through.
type Inverter struct{}

func (Inverter) Evaluate(n *Node, r *Runner) (State, error) {
	st, err := n.EvaluateChild(r)
	if err != nil {
		return StateFailure, err
	}
	switch st {
	case StateSuccess:
		return StateFailure, nil
	case StateFailure:
		return StateSuccess, nil
	default:
		return st, nil
	}
}

// Succeeder reports Success once the child concludes, whatever its result.
type Succeeder struct{}

func (Succeeder) Evaluate(n *Node, r *Runner) (State, error) {
	st, err := n.EvaluateChild(r)
	if err != nil {
		return StateFailure, err
	}
	if st == StateRunning {
		return StateRunning, nil
	}
	return StateSuccess, nil
}

// Repeat runs its child to completion Times times, one completion per tick at
// most. Times <= 0 repeats forever. With StopOnFailure a failing run ends the
// repetition with Failure.
type Repeat struct {
	Times         int
	StopOnFailure bool
	runs          int
}

func (d *Repeat) OnStart(*Node, *Runner) { d.runs = 0 }

func (d *Repeat) Evaluate(n *Node, r *Runner) (State, error) {
	st, err := n.EvaluateChild(r)
	if err != nil {
		return StateFailure, err
	}
	if st == StateRunning {
		return StateRunning, nil
	}
	if st == StateFailure && d.StopOnFailure {
		return StateFailure, nil
	}
	d.runs++
	if d.Times > 0 && d.runs >= d.Times {
		return StateSuccess, nil
	}
	return StateRunning, nil
}

func (d *Repeat) Clone() Behaviour { return &Repeat{Times: d.Times, StopOnFailure: d.StopOnFailure} }

func (d *Repeat) Description() string {
	if d.Times <= 0 {
		return "Repeat forever"
	}
	return fmt.Sprintf("Repeat %d times", d.Times)
}

// formatSeconds renders a duration the way authored cooldowns are written.
func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%gs", d.Seconds())
}
