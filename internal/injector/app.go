package injector

import (
	"context"
	"errors"
	"time"

	"github.com/zeusync/pitchside/internal/config"
	"github.com/zeusync/pitchside/internal/core/agent"
	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/server"
)

// App is the fully wired robot process.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Agent     *agent.Agent
	Telemetry *server.Telemetry
}

func NewApp(cfg *config.Config, logger *log.Logger, a *agent.Agent, tel *server.Telemetry) *App {
	return &App{Config: cfg, Logger: logger, Agent: a, Telemetry: tel}
}

// Run serves telemetry if enabled and runs the control loop until ctx ends.
func (a *App) Run(ctx context.Context) error {
	if a.Config.Telemetry.Enabled {
		if err := a.Telemetry.Start(ctx); err != nil {
			return err
		}
	}
	runErr := a.Agent.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stopErr := a.Telemetry.Stop(stopCtx)
	_ = a.Logger.Sync()
	return errors.Join(runErr, stopErr)
}
