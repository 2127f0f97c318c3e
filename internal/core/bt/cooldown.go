package bt

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// TagHash is the stable identity of a cooldown tag. Nodes compute it once when
// they are constructed and keep the result.
func TagHash(tag string) uint64 {
	return xxhash.Sum64String(tag)
}

type SetCooldownParams struct {
	Duration time.Duration
	// AddToExistingDuration extends a cooldown that is still active instead
	// of restarting it.
	AddToExistingDuration bool
}

// CooldownService is the runtime timer facility exposed to leaf nodes through
// the Runner. Cooldowns are polled across ticks; nothing here blocks.
type CooldownService interface {
	SetCooldown(tag uint64, params SetCooldownParams)
	Remaining(tag uint64) time.Duration
	IsActive(tag uint64) bool
	Clear(tag uint64)
}

// FallibleCooldowns is implemented by services backed by something that can
// be unreachable, such as a remote store. Nodes prefer these variants and fail
// the tick when the service reports an error.
type FallibleCooldowns interface {
	TrySetCooldown(tag uint64, params SetCooldownParams) error
	TryRemaining(tag uint64) (time.Duration, error)
}

func hashOf(cached uint64, tag string) uint64 {
	if cached != 0 {
		return cached
	}
	return TagHash(tag)
}

var _ CooldownService = (*CooldownHandler)(nil)

// CooldownHandler keeps one expiry per tag hash.
type CooldownHandler struct {
	mu       sync.Mutex
	clock    func() time.Time
	expiries map[uint64]time.Time
}

func NewCooldownHandler(clock func() time.Time) *CooldownHandler {
	if clock == nil {
		clock = time.Now
	}
	return &CooldownHandler{clock: clock, expiries: make(map[uint64]time.Time)}
}

func (c *CooldownHandler) SetCooldown(tag uint64, params SetCooldownParams) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	expiry := now.Add(params.Duration)
	if current, ok := c.expiries[tag]; ok && params.AddToExistingDuration && current.After(now) {
		expiry = current.Add(params.Duration)
	}
	if !expiry.After(now) {
		delete(c.expiries, tag)
		return
	}
	c.expiries[tag] = expiry
}

func (c *CooldownHandler) Remaining(tag uint64) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.expiries[tag]
	if !ok {
		return 0
	}
	left := expiry.Sub(c.clock())
	if left <= 0 {
		delete(c.expiries, tag)
		return 0
	}
	return left
}

func (c *CooldownHandler) IsActive(tag uint64) bool { return c.Remaining(tag) > 0 }

func (c *CooldownHandler) Clear(tag uint64) {
	c.mu.Lock()
	delete(c.expiries, tag)
	c.mu.Unlock()
}

// Len returns the number of tags with a recorded expiry, including ones that
// have lapsed but were not queried since.
func (c *CooldownHandler) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.expiries)
}
