package bt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/behaviour/internal/core/observability/log"
)

// Runner owns one private clone of a tree template and drives it, one
// Evaluate of the root per Tick. A runner is not safe for concurrent use: it
// is ticked by a single goroutine at a time, and no other runner shares its
// nodes.
type Runner struct {
	name     string
	template *Tree
	root     *Node
	byID     map[uuid.UUID]*Node

	clock        func() time.Time
	cooldowns    CooldownService
	cooldownsSet bool
	blackboard   *Blackboard
	logger       log.Log

	state  State
	ticks  uint64
	closed bool
}

type Option func(*Runner)

func WithName(name string) Option {
	return func(r *Runner) { r.name = name }
}

func WithLogger(l log.Log) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock replaces time.Now for the runner and its default cooldown handler.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) { r.clock = clock }
}

// WithCooldowns installs an external cooldown service. Passing nil leaves the
// runner without one; nodes that need it then fail their tick.
func WithCooldowns(c CooldownService) Option {
	return func(r *Runner) {
		r.cooldowns = c
		r.cooldownsSet = true
	}
}

func WithBlackboard(bb *Blackboard) Option {
	return func(r *Runner) { r.blackboard = bb }
}

// NewRunner clones template for exclusive use by the returned runner. The
// template is only read.
func NewRunner(template *Tree, opts ...Option) (*Runner, error) {
	if template == nil {
		return nil, errors.New("bt: nil template")
	}
	if template.root == nil {
		return nil, fmt.Errorf("tree %q: %w", template.name, ErrNoRoot)
	}

	r := &Runner{
		name:     template.name,
		template: template,
		byID:     make(map[uuid.UUID]*Node, template.Len()),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if !r.cooldownsSet {
		r.cooldowns = NewCooldownHandler(r.clock)
	}
	if r.blackboard == nil {
		r.blackboard = NewBlackboard()
	}
	if r.logger == nil {
		r.logger = log.NewNop()
	}

	r.root = template.root.clone(r, r.byID)
	r.logger.Debug("runner created",
		log.String("runner", r.name),
		log.String("template", template.name),
		log.Int("nodes", len(r.byID)),
	)
	return r, nil
}

// Tick evaluates the cloned root once and returns the aggregate state. A
// broken tree is reported as an error instead of a state.
func (r *Runner) Tick(ctx context.Context) (State, error) {
	if r.closed {
		return r.state, ErrRunnerClosed
	}
	if err := ctx.Err(); err != nil {
		return r.state, err
	}

	r.ticks++
	prev := r.state
	st, err := r.root.Evaluate(r)
	if err != nil {
		r.logger.Error("tick failed",
			log.String("runner", r.name),
			log.Uint64("tick", r.ticks),
			log.Error(err),
		)
		return r.state, fmt.Errorf("runner %s tick %d: %w", r.name, r.ticks, err)
	}
	r.state = st

	if st != prev {
		r.logger.Debug("runner state changed",
			log.String("runner", r.name),
			log.Uint64("tick", r.ticks),
			log.Stringer("from", prev),
			log.Stringer("to", st),
		)
	}
	return st, nil
}

// Reset abandons every in-flight run without firing finish hooks.
func (r *Runner) Reset() {
	for n := range PreOrder(r.root) {
		n.ResetState()
	}
	r.state = StateRunning
}

// Close stops the runner. Side effects already handed to external services,
// such as active cooldowns, follow those services' own lifetime.
func (r *Runner) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.logger.Debug("runner closed", log.String("runner", r.name), log.Uint64("ticks", r.ticks))
}

func (r *Runner) Name() string               { return r.name }
func (r *Runner) Template() *Tree            { return r.template }
func (r *Runner) Root() *Node                { return r.root }
func (r *Runner) State() State               { return r.state }
func (r *Runner) Ticks() uint64              { return r.ticks }
func (r *Runner) Closed() bool               { return r.closed }
func (r *Runner) Cooldowns() CooldownService { return r.cooldowns }
func (r *Runner) Blackboard() *Blackboard    { return r.blackboard }
func (r *Runner) Logger() log.Log            { return r.logger }
func (r *Runner) Now() time.Time             { return r.clock() }

// Node returns the clone of the template node with the given id.
func (r *Runner) Node(id uuid.UUID) (*Node, bool) {
	n, ok := r.byID[id]
	return n, ok
}

// Nodes returns the cloned nodes in execution order.
func (r *Runner) Nodes() []*Node {
	out := make([]*Node, 0, len(r.byID))
	for n := range PreOrder(r.root) {
		out = append(out, n)
	}
	return out
}
