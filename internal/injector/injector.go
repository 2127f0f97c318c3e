//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/behaviour/internal/config"
	"github.com/zeusync/behaviour/internal/core/agents"
)

func InitializeManager(cfg config.Config, reg prometheus.Registerer) (*agents.Manager, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
