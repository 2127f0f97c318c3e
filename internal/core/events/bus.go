package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/behaviour/internal/core/bt"
)

// Type is the routing key of an event.
type Type string

const (
	AgentSpawned      Type = "agent.spawned"
	AgentDespawned    Type = "agent.despawned"
	AgentReset        Type = "agent.reset"
	AgentStateChanged Type = "agent.state_changed"
	AgentTickFailed   Type = "agent.tick_failed"
)

// Event describes something that happened to one agent. From and State are
// only meaningful for state changes; Error only for failed ticks.
type Event struct {
	Type   Type      `json:"type"`
	Agent  string    `json:"agent"`
	Runner string    `json:"runner,omitempty"`
	Tick   uint64    `json:"tick,omitempty"`
	From   bt.State  `json:"from"`
	State  bt.State  `json:"state"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

// Handler is invoked synchronously in the publisher's goroutine, so it must
// return quickly.
type Handler func(Event) error

// Subscription is a registered handler. Cancel may be called more than once.
type Subscription struct {
	id     string
	typ    Type
	bus    *Bus
	active atomic.Bool
}

func (s *Subscription) ID() string     { return s.id }
func (s *Subscription) Type() Type     { return s.typ }
func (s *Subscription) IsActive() bool { return s.active.Load() }

func (s *Subscription) Cancel() {
	if !s.active.Swap(false) {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if subs := s.bus.handlers[s.typ]; subs != nil {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.bus.handlers, s.typ)
		}
	}
}

type entry struct {
	sub     *Subscription
	handler Handler
}

// Bus is an in-process fan-out of agent events. A nil *Bus accepts and drops
// every event.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type]map[string]entry
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Type]map[string]entry)}
}

// Subscribe registers handler for typ. The empty type receives every event.
func (b *Bus) Subscribe(typ Type, handler Handler) *Subscription {
	s := &Subscription{id: uuid.NewString(), typ: typ, bus: b}
	s.active.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[typ] == nil {
		b.handlers[typ] = make(map[string]entry)
	}
	b.handlers[typ][s.id] = entry{sub: s, handler: handler}
	return s
}

// Publish delivers e to the handlers of its type and to catch-all handlers.
// Handler errors are joined.
func (b *Bus) Publish(e Event) error {
	if b == nil {
		return nil
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	targets := make([]entry, 0, len(b.handlers[e.Type])+len(b.handlers[""]))
	for _, en := range b.handlers[e.Type] {
		targets = append(targets, en)
	}
	if e.Type != "" {
		for _, en := range b.handlers[""] {
			targets = append(targets, en)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, en := range targets {
		if !en.sub.IsActive() {
			continue
		}
		if err := en.handler(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribers counts active subscriptions across all types.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, subs := range b.handlers {
		n += len(subs)
	}
	return n
}
