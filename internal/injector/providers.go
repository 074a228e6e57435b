package injector

import (
	"context"
	"time"

	"github.com/zeusync/pitchside/internal/config"
	"github.com/zeusync/pitchside/internal/core/agent"
	"github.com/zeusync/pitchside/internal/core/controller"
	bus "github.com/zeusync/pitchside/internal/core/events/bus"
	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/core/planner"
	"github.com/zeusync/pitchside/internal/core/protocol"
	"github.com/zeusync/pitchside/internal/core/protocol/quic"
	"github.com/zeusync/pitchside/internal/core/protocol/serial"
	"github.com/zeusync/pitchside/internal/core/strategy"
	"github.com/zeusync/pitchside/internal/core/vision"
	"github.com/zeusync/pitchside/internal/core/world"
	"github.com/zeusync/pitchside/internal/server"
)

func ProvideLogger(cfg *config.Config) *log.Logger {
	return log.New(cfg.LogOptions())
}

func ProvideCalibration(cfg *config.Config, logger log.Log) (*world.Calibration, error) {
	cal, err := world.LoadCalibration(cfg.Calibration.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("calibration loaded",
		log.String("path", cfg.Calibration.Path),
		log.Uint64("fingerprint", cal.Fingerprint()))
	return cal, nil
}

func ProvideWorld(cfg *config.Config, cal *world.Calibration, logger log.Log) (*world.World, error) {
	return world.NewWorld(cfg.Match.Side, cfg.Match.Pitch, cal, cfg.Match.AngleOffsets, logger)
}

func ProvideEventBus(logger log.Log) bus.EventBus {
	b := bus.New()
	b.AddObserver(bus.NewLogObserver(logger))
	return b
}

// ProvideOpener picks how the robot link is opened. A nil opener means no
// link was configured.
func ProvideOpener(cfg *config.Config) protocol.OpenFunc {
	switch cfg.Link.Kind {
	case config.LinkSerial:
		return serial.Opener(cfg.Link.Device, cfg.Link.Baud)
	case config.LinkQUIC:
		return quic.Opener(cfg.Link.Address, quic.ClientTLS(cfg.Link.Insecure))
	default:
		return nil
	}
}

// ProvideDialer guards every open of the robot link, the first one and each
// reconnect, with the same circuit breaker. Nil without a link.
func ProvideDialer(cfg *config.Config, open protocol.OpenFunc, logger log.Log) *protocol.Dialer {
	if open == nil {
		return nil
	}
	return protocol.NewDialer(string(cfg.Link.Kind), open, cfg.Link.Breaker, logger)
}

// ProvideTransport dials the robot. Failing to open the link is not fatal:
// the controller starts dry and keeps redialing.
func ProvideTransport(ctx context.Context, dialer *protocol.Dialer, logger log.Log) controller.Transport {
	if dialer == nil {
		logger.Info("no robot link configured, running dry")
		return nil
	}
	link, err := dialLink(ctx, dialer, logger)
	if err != nil {
		logger.Warn("robot link unavailable, running dry", log.Error(err))
		return nil
	}
	return link
}

func dialLink(ctx context.Context, dialer *protocol.Dialer, logger log.Log) (*protocol.Link, error) {
	port, err := dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.NewLink(port, logger), nil
}

func ProvideController(cfg *config.Config, transport controller.Transport, dialer *protocol.Dialer,
	events bus.EventBus, logger log.Log) *controller.Controller {
	onTimeout := func(cmd protocol.Command, waited time.Duration) {
		_ = events.Publish(bus.NewEvent(bus.ControllerAckTimeout, "controller", AckTimeout{
			Command: cmd.String(),
			Waited:  waited,
		}))
	}
	opts := []controller.Option{controller.WithAckTimeoutHook(onTimeout)}
	if dialer != nil {
		opts = append(opts, controller.WithRedial(func(ctx context.Context) (controller.Transport, error) {
			link, err := dialLink(ctx, dialer, logger)
			if err != nil {
				return nil, err
			}
			return link, nil
		}))
	}
	return controller.New(cfg.ControllerSettings(), transport, logger, opts...)
}

// AckTimeout is the payload of controller.ack_timeout events.
type AckTimeout struct {
	Command string        `json:"command"`
	Waited  time.Duration `json:"waited"`
}

func ProvideStrategyEnv(cfg *config.Config, w *world.World, ctl *controller.Controller, logger log.Log) *strategy.Env {
	self, mate := w.OurAttacker(), w.OurDefender()
	if cfg.Match.Role == config.RoleDefender {
		self, mate = mate, self
	}
	return &strategy.Env{
		World:    w,
		Self:     self,
		Teammate: mate,
		Robot:    ctl,
		Tuning:   cfg.Tactics,
		Logger:   logger,
	}
}

func ProvidePlanner(cfg *config.Config, env *strategy.Env, logger log.Log) (*planner.Planner, error) {
	profile, err := planner.ParseProfile(cfg.Match.Profile)
	if err != nil {
		return nil, err
	}
	table, err := planner.NewTable(profile, env)
	if err != nil {
		return nil, err
	}
	return planner.New(env.World, env.Self, table, logger)
}

func ProvideFeed(cfg *config.Config, logger log.Log) (*vision.Feed, func(), error) {
	feed, err := vision.Listen(cfg.Vision.Addr, logger)
	if err != nil {
		return nil, nil, err
	}
	return feed, func() { _ = feed.Close() }, nil
}

func ProvideLocator(cfg *config.Config, logger log.Log) (*vision.Locator, error) {
	return vision.NewLocator(vision.DefaultTrackers(), cfg.Vision.FrameTimeout, logger)
}

func ProvidePipeline(feed *vision.Feed, locator *vision.Locator) *vision.Pipeline {
	return vision.NewPipeline(feed, locator)
}

func ProvideAgent(cfg *config.Config, w *world.World, source *vision.Pipeline, p *planner.Planner,
	ctl *controller.Controller, events bus.EventBus, logger log.Log) *agent.Agent {
	return agent.New(w, source, p, ctl, events, agent.Options{
		TickRate:        cfg.Match.TickRate,
		ShutdownTimeout: cfg.Match.Shutdown,
		HistorySize:     cfg.Match.HistorySize,
	}, logger)
}

func ProvideTelemetry(cfg *config.Config, events bus.EventBus, logger log.Log) (*server.Telemetry, error) {
	tel := server.NewTelemetry(server.Config{
		ListenAddr: cfg.Telemetry.Addr,
		Token:      cfg.Telemetry.Token,
		MaxClients: cfg.Telemetry.MaxClients,
	}, logger)
	if cfg.Telemetry.Enabled {
		if _, err := events.Subscribe(bus.AgentTick, tel.HandleTick); err != nil {
			return nil, err
		}
	}
	return tel, nil
}
