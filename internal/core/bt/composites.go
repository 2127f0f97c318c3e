package bt

import "fmt"

// Composite behaviours: Sequence, Selector, Parallel.
//
// Each composite remembers which child it is on for the current run, so a
// child that already concluded is not evaluated again until the composite
// itself finishes and starts over.

// Sequence runs children left to right; it fails on the first failure,
// yields on the first running child and succeeds when all succeed.
type Sequence struct{ current int }

func (s *Sequence) OnStart(*Node, *Runner) { s.current = 0 }

func (s *Sequence) Evaluate(n *Node, r *Runner) (State, error) {
	for s.current < len(n.children) {
		st, err := n.children[s.current].Evaluate(r)
		if err != nil {
			return StateFailure, err
		}
		switch st {
		case StateRunning:
			return StateRunning, nil
		case StateFailure:
			s.current = 0
			return StateFailure, nil
		}
		s.current++
	}
	s.current = 0
	return StateSuccess, nil
}

func (s *Sequence) Clone() Behaviour { return &Sequence{} }

// Selector runs children left to right; it succeeds on the first success,
// yields on the first running child and fails when all fail.
type Selector struct{ current int }

func (s *Selector) OnStart(*Node, *Runner) { s.current = 0 }

func (s *Selector) Evaluate(n *Node, r *Runner) (State, error) {
	for s.current < len(n.children) {
		st, err := n.children[s.current].Evaluate(r)
		if err != nil {
			return StateFailure, err
		}
		switch st {
		case StateRunning:
			return StateRunning, nil
		case StateSuccess:
			s.current = 0
			return StateSuccess, nil
		}
		s.current++
	}
	s.current = 0
	return StateFailure, nil
}

func (s *Selector) Clone() Behaviour { return &Selector{} }

type ParallelPolicy int

const (
	// ParallelRequireAll succeeds when every child succeeded and fails on the
	// first failure.
	ParallelRequireAll ParallelPolicy = iota
	// ParallelRequireOne succeeds on the first success and fails when every
	// child failed.
	ParallelRequireOne
)

func ParseParallelPolicy(s string) (ParallelPolicy, error) {
	switch s {
	case "", "all":
		return ParallelRequireAll, nil
	case "one", "any":
		return ParallelRequireOne, nil
	default:
		return ParallelRequireAll, fmt.Errorf("unknown parallel policy %q", s)
	}
}

func (p ParallelPolicy) String() string {
	if p == ParallelRequireOne {
		return "one"
	}
	return "all"
}

// Parallel ticks every unfinished child each tick, in list order. When it
// concludes, children that are still running are reset without their finish
// hooks: their run was abandoned, not completed.
type Parallel struct {
	Policy  ParallelPolicy
	results []State
}

func (p *Parallel) OnStart(n *Node, _ *Runner) {
	p.results = make([]State, len(n.children))
}

func (p *Parallel) Evaluate(n *Node, r *Runner) (State, error) {
	if len(n.children) == 0 {
		return StateSuccess, nil
	}
	for len(p.results) < len(n.children) {
		p.results = append(p.results, StateRunning)
	}

	successes, failures := 0, 0
	for i, ch := range n.children {
		if p.results[i] == StateRunning {
			st, err := ch.Evaluate(r)
			if err != nil {
				return StateFailure, err
			}
			p.results[i] = st
		}
		switch p.results[i] {
		case StateSuccess:
			successes++
		case StateFailure:
			failures++
		}
	}

	result := StateRunning
	switch p.Policy {
	case ParallelRequireOne:
		if successes > 0 {
			result = StateSuccess
		} else if failures == len(n.children) {
			result = StateFailure
		}
	default:
		if failures > 0 {
			result = StateFailure
		} else if successes == len(n.children) {
			result = StateSuccess
		}
	}
	return result, nil
}

// OnFinish abandons children that were still running, together with
// everything below them, so their next activation starts a fresh run.
func (p *Parallel) OnFinish(n *Node, _ *Runner) {
	for _, ch := range n.children {
		if !ch.Started() {
			continue
		}
		for d := range PreOrder(ch) {
			d.ResetState()
		}
	}
}

func (p *Parallel) Clone() Behaviour { return &Parallel{Policy: p.Policy} }

func (p *Parallel) Description() string { return "Parallel (require " + p.Policy.String() + ")" }
