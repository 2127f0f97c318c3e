package bt

import (
	"fmt"
	"time"

	"github.com/zeusync/behaviour/internal/core/observability/log"
)

// ActionFunc adapts a function to a leaf behaviour.
type ActionFunc func(n *Node, r *Runner) (State, error)

func (f ActionFunc) Evaluate(n *Node, r *Runner) (State, error) { return f(n, r) }

// Constant always reports Result.
type Constant struct{ Result State }

func (c Constant) Evaluate(*Node, *Runner) (State, error) { return c.Result, nil }

// SetTagCooldown starts (or extends) a tagged cooldown on the runner's
// cooldown service and succeeds. It fails when the runner has no service or
// the service could not store the cooldown.
type SetTagCooldown struct {
	Tag                   string
	Duration              time.Duration
	AddToExistingDuration bool
	hash                  uint64
}

func NewSetTagCooldown(tag string, d time.Duration, addToExisting bool) *SetTagCooldown {
	return &SetTagCooldown{Tag: tag, Duration: d, AddToExistingDuration: addToExisting, hash: TagHash(tag)}
}

func (a *SetTagCooldown) Hash() uint64 { return hashOf(a.hash, a.Tag) }

func (a *SetTagCooldown) Evaluate(n *Node, r *Runner) (State, error) {
	cd := r.Cooldowns()
	if cd == nil {
		return StateFailure, nil
	}
	params := SetCooldownParams{Duration: a.Duration, AddToExistingDuration: a.AddToExistingDuration}
	f, ok := cd.(FallibleCooldowns)
	if !ok {
		cd.SetCooldown(a.Hash(), params)
		return StateSuccess, nil
	}
	if err := f.TrySetCooldown(a.Hash(), params); err != nil {
		r.Logger().Warn("cooldown unavailable",
			log.String("node", n.Name()),
			log.String("tag", a.Tag),
			log.Error(err),
		)
		return StateFailure, nil
	}
	return StateSuccess, nil
}

func (a *SetTagCooldown) Description() string {
	if a.AddToExistingDuration {
		return fmt.Sprintf("Add %s to cooldown %s", formatSeconds(a.Duration), a.Tag)
	}
	return fmt.Sprintf("Set cooldown %s to %s", a.Tag, formatSeconds(a.Duration))
}

// SetBool writes Value under Key on the runner's blackboard.
type SetBool struct {
	Key   string
	Value bool
}

func (a SetBool) Evaluate(_ *Node, r *Runner) (State, error) {
	r.Blackboard().Set(a.Key, a.Value)
	return StateSuccess, nil
}

func (a SetBool) Description() string { return fmt.Sprintf("Set %s to %t", a.Key, a.Value) }

// Wait stays Running for Ticks evaluations of a run, then succeeds.
type Wait struct {
	Ticks   int
	elapsed int
}

func (a *Wait) OnStart(*Node, *Runner) { a.elapsed = 0 }

func (a *Wait) Evaluate(*Node, *Runner) (State, error) {
	a.elapsed++
	if a.elapsed >= a.Ticks {
		return StateSuccess, nil
	}
	return StateRunning, nil
}

func (a *Wait) Clone() Behaviour { return &Wait{Ticks: a.Ticks} }

func (a *Wait) Description() string { return fmt.Sprintf("Wait %d ticks", a.Ticks) }
