package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/behaviour/internal/core/bt"
	"github.com/zeusync/behaviour/internal/core/events"
	"github.com/zeusync/behaviour/internal/core/observability/log"
	"github.com/zeusync/behaviour/internal/core/observability/metrics"
)

// Agent is one spawned runner. The mutex serialises ticks, since a runner must
// not be evaluated by two goroutines at once.
type Agent struct {
	mu     sync.Mutex
	id     string
	runner *bt.Runner
}

func (a *Agent) ID() string         { return a.id }
func (a *Agent) Runner() *bt.Runner { return a.runner }

func (a *Agent) status() Status {
	return Status{
		ID:    a.id,
		Name:  a.runner.Name(),
		State: a.runner.State(),
		Ticks: a.runner.Ticks(),
	}
}

// tick returns the state before and after the tick.
func (a *Agent) tick(ctx context.Context) (prev, st bt.State, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev = a.runner.State()
	st, err = a.runner.Tick(ctx)
	return prev, st, err
}

// Status is a point-in-time view of an agent.
type Status struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	State bt.State `json:"state"`
	Ticks uint64   `json:"ticks"`
}

// NodeStatus is the runtime view of one cloned node.
type NodeStatus struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Order   int      `json:"order"`
	State   bt.State `json:"state"`
	Started bool     `json:"started"`
}

// Detail is a Status plus the agent's nodes in execution order and its
// blackboard keys.
type Detail struct {
	Status
	Nodes      []NodeStatus `json:"nodes"`
	Blackboard []string     `json:"blackboard"`
}

// Manager owns a set of agents, each running a private clone of a template,
// and ticks them concurrently with a bounded number of workers.
type Manager struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	order  []string

	workers    int
	logger     log.Log
	metrics    *metrics.Collector
	runnerOpts []bt.Option
	seed       map[string]any
	cooldowns  CooldownFactory
	events     *events.Bus
}

type Option func(*Manager)

func WithLogger(l log.Log) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records ticks and agent counts. A nil collector disables it.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithWorkers bounds how many agents are ticked at the same time. Values
// below one mean one worker per agent.
func WithWorkers(n int) Option {
	return func(m *Manager) { m.workers = n }
}

// WithRunnerOptions are applied to every runner before per-spawn options.
func WithRunnerOptions(opts ...bt.Option) Option {
	return func(m *Manager) { m.runnerOpts = append(m.runnerOpts, opts...) }
}

// WithBlackboardSeed copies values into every new agent's blackboard.
func WithBlackboardSeed(values map[string]any) Option {
	return func(m *Manager) { m.seed = values }
}

// CooldownFactory returns the cooldown service for a newly spawned agent.
type CooldownFactory func(agentID string) bt.CooldownService

// WithCooldownFactory gives every agent its own cooldown service instead of
// the runner's in-memory default. A nil factory keeps the default.
func WithCooldownFactory(f CooldownFactory) Option {
	return func(m *Manager) { m.cooldowns = f }
}

// WithEvents publishes agent lifecycle and state changes to bus.
func WithEvents(bus *events.Bus) Option {
	return func(m *Manager) { m.events = bus }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{agents: make(map[string]*Agent)}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.NewNop()
	}
	return m
}

func (m *Manager) Logger() log.Log     { return m.logger }
func (m *Manager) Events() *events.Bus { return m.events }

func (m *Manager) publish(e events.Event) {
	if err := m.events.Publish(e); err != nil {
		m.logger.Warn("event handler failed", log.String("event", string(e.Type)), log.Error(err))
	}
}

// Spawn clones template into a new agent.
func (m *Manager) Spawn(template *bt.Tree, opts ...bt.Option) (*Agent, error) {
	if template == nil {
		return nil, errors.New("spawn agent: nil template")
	}
	id := uuid.NewString()
	name := fmt.Sprintf("%s/%s", template.Name(), id[:8])

	all := make([]bt.Option, 0, len(m.runnerOpts)+len(opts)+3)
	all = append(all, bt.WithName(name), bt.WithLogger(m.logger.With(log.String("agent", id))))
	if m.cooldowns != nil {
		all = append(all, bt.WithCooldowns(m.cooldowns(id)))
	}
	all = append(all, m.runnerOpts...)
	all = append(all, opts...)

	runner, err := bt.NewRunner(template, all...)
	if err != nil {
		return nil, fmt.Errorf("spawn agent from %q: %w", template.Name(), err)
	}
	for k, v := range m.seed {
		runner.Blackboard().Set(k, v)
	}

	agent := &Agent{id: id, runner: runner}
	m.mu.Lock()
	m.agents[id] = agent
	m.order = append(m.order, id)
	m.mu.Unlock()

	m.metrics.RunnerSpawned()
	m.publish(events.Event{Type: events.AgentSpawned, Agent: id, Runner: name, State: runner.State()})
	m.logger.Info("agent spawned",
		log.String("agent", id),
		log.String("runner", name),
		log.String("template", template.Name()),
	)
	return agent, nil
}

// Despawn closes and forgets an agent.
func (m *Manager) Despawn(id string) bool {
	m.mu.Lock()
	agent, ok := m.agents[id]
	if ok {
		delete(m.agents, id)
		for i, other := range m.order {
			if other == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	agent.mu.Lock()
	agent.runner.Close()
	agent.mu.Unlock()

	m.metrics.RunnerDespawned()
	m.publish(events.Event{Type: events.AgentDespawned, Agent: id, Runner: agent.runner.Name(), State: agent.runner.State()})
	m.logger.Info("agent despawned", log.String("agent", id))
	return true
}

func (m *Manager) Get(id string) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	return a, ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.agents)
}

// IDs returns agent ids in spawn order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *Manager) snapshot() []*Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Agent, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.agents[id])
	}
	return out
}

// TickAll ticks every agent once. A broken tree does not stop the other
// agents; all tick errors are joined into the returned error.
func (m *Manager) TickAll(ctx context.Context) (map[string]bt.State, error) {
	agents := m.snapshot()
	results := make(map[string]bt.State, len(agents))

	var (
		mu   sync.Mutex
		errs []error
	)
	g := errgroup.Group{}
	if m.workers > 0 {
		g.SetLimit(m.workers)
	}
	for _, agent := range agents {
		g.Go(func() error {
			start := time.Now()
			prev, st, err := agent.tick(ctx)
			m.metrics.ObserveTick(st.String(), time.Since(start), err)
			m.report(agent, prev, st, err)

			mu.Lock()
			defer mu.Unlock()
			results[agent.id] = st
			if err != nil {
				errs = append(errs, fmt.Errorf("agent %s: %w", agent.id, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return results, errors.Join(errs...)
}

func (m *Manager) report(agent *Agent, prev, st bt.State, err error) {
	if m.events == nil {
		return
	}
	agent.mu.Lock()
	ticks := agent.runner.Ticks()
	agent.mu.Unlock()

	e := events.Event{Agent: agent.id, Runner: agent.runner.Name(), Tick: ticks, From: prev, State: st}
	switch {
	case err != nil:
		e.Type = events.AgentTickFailed
		e.Error = err.Error()
	case st != prev:
		e.Type = events.AgentStateChanged
	default:
		return
	}
	m.publish(e)
}

// Run ticks all agents every interval until ctx is done or, when rounds is
// positive, until that many rounds have run. Tick errors are logged and do
// not stop the loop.
func (m *Manager) Run(ctx context.Context, interval time.Duration, rounds int) error {
	if interval <= 0 {
		return fmt.Errorf("run agents: interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for round := 1; rounds <= 0 || round <= rounds; round++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		states, err := m.TickAll(ctx)
		if err != nil {
			m.logger.Warn("tick round had errors", log.Int("round", round), log.Error(err))
		}
		m.logger.Debug("tick round done", log.Int("round", round), log.Int("agents", len(states)))
	}
	return nil
}

// Statuses reports every agent in spawn order.
func (m *Manager) Statuses() []Status {
	agents := m.snapshot()
	out := make([]Status, 0, len(agents))
	for _, a := range agents {
		a.mu.Lock()
		out = append(out, a.status())
		a.mu.Unlock()
	}
	return out
}

// Inspect reports one agent with its node states.
func (m *Manager) Inspect(id string) (Detail, bool) {
	a, ok := m.Get(id)
	if !ok {
		return Detail{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	d := Detail{Status: a.status(), Blackboard: a.runner.Blackboard().Keys()}
	for _, n := range a.runner.Nodes() {
		d.Nodes = append(d.Nodes, NodeStatus{
			ID:      n.ID().String(),
			Name:    n.Name(),
			Kind:    n.Kind().String(),
			Order:   n.ExecutionOrder(),
			State:   n.State(),
			Started: n.Started(),
		})
	}
	return d, true
}

// Reset abandons the agent's current run.
func (m *Manager) Reset(id string) bool {
	a, ok := m.Get(id)
	if !ok {
		return false
	}
	a.mu.Lock()
	a.runner.Reset()
	a.mu.Unlock()
	m.publish(events.Event{Type: events.AgentReset, Agent: id, Runner: a.runner.Name(), State: bt.StateRunning})
	m.logger.Info("agent reset", log.String("agent", id))
	return true
}

// Close despawns every agent.
func (m *Manager) Close() {
	for _, id := range m.IDs() {
		m.Despawn(id)
	}
}
