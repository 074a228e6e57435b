//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"context"

	"github.com/google/wire"

	"github.com/zeusync/pitchside/internal/config"
	"github.com/zeusync/pitchside/internal/core/observability/log"
)

var appSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideCalibration,
	ProvideWorld,
	ProvideEventBus,
	ProvideOpener,
	ProvideDialer,
	ProvideTransport,
	ProvideController,
	ProvideStrategyEnv,
	ProvidePlanner,
	ProvideFeed,
	ProvideLocator,
	ProvidePipeline,
	ProvideAgent,
	ProvideTelemetry,
	NewApp,
)

func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(appSet)
	return nil, nil, nil
}
