package injector

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/behaviour/internal/config"
	"github.com/zeusync/behaviour/internal/core/agents"
	"github.com/zeusync/behaviour/internal/core/bt"
	"github.com/zeusync/behaviour/internal/core/events"
	"github.com/zeusync/behaviour/internal/core/observability/log"
	"github.com/zeusync/behaviour/internal/core/observability/metrics"
	"github.com/zeusync/behaviour/internal/core/storage/redis"
)

// ProviderSet builds an agent manager from a config and a metrics registerer.
var ProviderSet = wire.NewSet(ProvideLogger, ProvideMetrics, ProvideEvents, ProvideCooldowns, ProvideManager)

func ProvideLogger(cfg config.Config) (log.Log, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return log.New(level), nil
}

func ProvideMetrics(reg prometheus.Registerer) (*metrics.Collector, error) {
	return metrics.New(reg)
}

func ProvideEvents() *events.Bus {
	return events.NewBus()
}

// ProvideCooldowns returns nil for the memory backend, leaving every runner
// its own handler. The redis backend is pinged once so a bad address fails
// at startup rather than on the first tick.
func ProvideCooldowns(cfg config.Config, logger log.Log) (agents.CooldownFactory, func(), error) {
	if cfg.Cooldowns.Backend != config.BackendRedis {
		return nil, func() {}, nil
	}

	c := cfg.Cooldowns
	store := redis.New(c.Addr, c.Password, c.DB,
		redis.WithPrefix(c.Prefix),
		redis.WithTimeout(c.Timeout),
		redis.WithLogger(logger.Named("cooldowns")),
	)
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("connect cooldown store %s: %w", c.Addr, err)
	}

	cleanup := func() { _ = store.Close() }
	return func(agentID string) bt.CooldownService { return store.For(agentID) }, cleanup, nil
}

func ProvideManager(
	cfg config.Config,
	logger log.Log,
	col *metrics.Collector,
	bus *events.Bus,
	cooldowns agents.CooldownFactory,
) *agents.Manager {
	return agents.NewManager(
		agents.WithLogger(logger.Named("agents")),
		agents.WithMetrics(col),
		agents.WithWorkers(cfg.Workers),
		agents.WithBlackboardSeed(cfg.Blackboard),
		agents.WithEvents(bus),
		agents.WithCooldownFactory(cooldowns),
	)
}
