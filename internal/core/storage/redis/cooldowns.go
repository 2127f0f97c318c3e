package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/zeusync/behaviour/internal/core/bt"
	"github.com/zeusync/behaviour/internal/core/observability/log"
)

var (
	_ bt.CooldownService   = (*Cooldowns)(nil)
	_ bt.FallibleCooldowns = (*Cooldowns)(nil)
)

// Cooldowns keeps tagged cooldowns as expiring Redis keys, so they outlive
// the process and can be inspected from outside. Each agent gets its own key
// space through the prefix.
//
// The Try variants report Redis failures, and tree nodes use them to fail
// the tick. The plain CooldownService methods log the failure instead.
type Cooldowns struct {
	client  *backend.Client
	prefix  string
	timeout time.Duration
	logger  log.Log
}

type Option func(*Cooldowns)

// WithPrefix sets the key prefix, e.g. "bt:cooldown:<agent>:".
func WithPrefix(prefix string) Option {
	return func(c *Cooldowns) { c.prefix = prefix }
}

// WithTimeout bounds each Redis round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Cooldowns) { c.timeout = d }
}

func WithLogger(l log.Log) Option {
	return func(c *Cooldowns) { c.logger = l }
}

// New connects to the Redis server at address.
func New(address, password string, db int, opts ...Option) *Cooldowns {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

func NewFromClient(client *backend.Client, opts ...Option) *Cooldowns {
	c := &Cooldowns{
		client:  client,
		prefix:  "bt:cooldown:",
		timeout: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.NewNop()
	}
	return c
}

// For returns a view of the same connection under prefix+scope+":".
func (c *Cooldowns) For(scope string) *Cooldowns {
	view := *c
	view.prefix = c.prefix + scope + ":"
	return &view
}

func (c *Cooldowns) key(tag uint64) string {
	return c.prefix + strconv.FormatUint(tag, 16)
}

func (c *Cooldowns) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// TrySetCooldown stores the cooldown and reports Redis failures.
func (c *Cooldowns) TrySetCooldown(tag uint64, params bt.SetCooldownParams) error {
	ctx, cancel := c.ctx()
	defer cancel()
	key := c.key(tag)

	d := params.Duration
	if params.AddToExistingDuration {
		left, err := c.client.PTTL(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("read cooldown %s: %w", key, err)
		}
		if left > 0 {
			d += left
		}
	}
	if d <= 0 {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("clear cooldown %s: %w", key, err)
		}
		return nil
	}
	if err := c.client.Set(ctx, key, 1, d).Err(); err != nil {
		return fmt.Errorf("set cooldown %s: %w", key, err)
	}
	return nil
}

// TryRemaining reads the time left on tag and reports Redis failures.
func (c *Cooldowns) TryRemaining(tag uint64) (time.Duration, error) {
	ctx, cancel := c.ctx()
	defer cancel()
	key := c.key(tag)

	left, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("read cooldown %s: %w", key, err)
	}
	// PTTL reports -2 for a missing key and -1 for one without expiry.
	if left < 0 {
		return 0, nil
	}
	return left, nil
}

func (c *Cooldowns) SetCooldown(tag uint64, params bt.SetCooldownParams) {
	if err := c.TrySetCooldown(tag, params); err != nil {
		c.fail(err)
	}
}

// Remaining reports 0 when Redis cannot be read. Tree nodes use TryRemaining
// instead and fail the tick.
func (c *Cooldowns) Remaining(tag uint64) time.Duration {
	left, err := c.TryRemaining(tag)
	if err != nil {
		c.fail(err)
		return 0
	}
	return left
}

func (c *Cooldowns) IsActive(tag uint64) bool { return c.Remaining(tag) > 0 }

func (c *Cooldowns) Clear(tag uint64) {
	ctx, cancel := c.ctx()
	defer cancel()
	key := c.key(tag)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.fail(fmt.Errorf("clear cooldown %s: %w", key, err))
	}
}

// Ping checks the connection once at startup.
func (c *Cooldowns) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cooldowns) Close() error {
	err := c.client.Close()
	if errors.Is(err, backend.ErrClosed) {
		return nil
	}
	return err
}

func (c *Cooldowns) fail(err error) {
	c.logger.Warn("cooldown store failed", log.Error(err))
}
