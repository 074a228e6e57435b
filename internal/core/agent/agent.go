// Package agent runs the control loop: one frame in, one tactical decision
// and at most one robot command out, every tick.
package agent

import (
	"context"
	"errors"
	"time"

	bus "github.com/zeusync/pitchside/internal/core/events/bus"
	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/core/planner"
	"github.com/zeusync/pitchside/internal/core/protocol"
	"github.com/zeusync/pitchside/internal/core/world"
)

const (
	DefaultTickRate        = 30
	DefaultShutdownTimeout = 5 * time.Second
)

// Source hands out the newest observations without blocking. ok is false
// when nothing new arrived since the last call.
type Source interface {
	Next(ctx context.Context) (obs world.Observations, ok bool, err error)
}

// Tactician is the planner as the loop drives it.
type Tactician interface {
	Tick()
	State() planner.State
	StrategyName() string
	StrategyState() string
}

// Robot is the controller as the loop drives it.
type Robot interface {
	Tick()
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Status() protocol.Status
	Ready() bool
	DryRun() bool
	Awaiting() bool
	AckTimeouts() uint64
}

type Options struct {
	TickRate        int
	ShutdownTimeout time.Duration
	HistorySize     int
}

type Agent struct {
	world   *world.World
	source  Source
	planner Tactician
	robot   Robot
	events  bus.EventBus
	history *History
	opts    Options
	logger  log.Log
	clock   func() time.Time

	tick uint64
	last Snapshot
}

func New(w *world.World, source Source, p Tactician, robot Robot, events bus.EventBus, opts Options, logger log.Log) *Agent {
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultTickRate
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if events == nil {
		events = bus.New()
	}
	if logger == nil {
		logger = log.Provide()
	}
	return &Agent{
		world:   w,
		source:  source,
		planner: p,
		robot:   robot,
		events:  events,
		history: NewHistory(opts.HistorySize),
		opts:    opts,
		logger:  logger.Named("agent"),
		clock:   time.Now,
	}
}

func (a *Agent) Events() bus.EventBus { return a.events }
func (a *Agent) History() *History    { return a.history }

// Last returns the snapshot published by the most recent step.
func (a *Agent) Last() Snapshot { return a.last }

// Step runs one tick. The world and planner only advance on a new, valid
// frame; the controller always ticks so an outstanding acknowledgment keeps
// being polled. A rejected frame is returned as an error and the tick is
// otherwise skipped.
func (a *Agent) Step(ctx context.Context) error {
	a.tick++
	defer a.robot.Tick()

	obs, ok, err := a.source.Next(ctx)
	if err != nil {
		a.logger.Warn("frame rejected", log.Uint64("tick", a.tick), log.Error(err))
		return err
	}
	if !ok {
		return nil
	}

	report, err := a.world.UpdatePositions(obs)
	if err != nil {
		a.logger.Warn("observations rejected", log.Uint64("tick", a.tick), log.Error(err))
		return err
	}
	if !report.SideConsistent {
		a.publish(bus.WorldSideWarning, a.world.SideWarnings())
	}

	before := a.planner.State()
	a.planner.Tick()
	if after := a.planner.State(); after != before {
		d := Decision{
			From:     before.String(),
			To:       after.String(),
			Strategy: a.planner.StrategyName(),
			Tick:     a.tick,
			At:       a.clock(),
		}
		a.history.Append(d)
		a.publish(bus.PlannerTransition, d)
	}

	a.last = a.snapshot()
	a.publish(bus.AgentTick, a.last)
	return nil
}

func (a *Agent) snapshot() Snapshot {
	return Snapshot{
		Tick:       a.tick,
		Time:       a.clock(),
		Tactical:   a.planner.State().String(),
		Strategy:   a.planner.StrategyName(),
		MicroState: a.planner.StrategyState(),
		Controller: ControllerView{
			Status:      a.robot.Status(),
			Ready:       a.robot.Ready(),
			DryRun:      a.robot.DryRun(),
			Awaiting:    a.robot.Awaiting(),
			AckTimeouts: a.robot.AckTimeouts(),
		},
		Entities: poses(a.world),
		History:  a.history.Records(),
	}
}

func (a *Agent) publish(eventType string, data any) {
	if err := a.events.Publish(bus.NewEvent(eventType, "agent", data)); err != nil {
		a.logger.Debug("event delivery failed", log.String("type", eventType), log.Error(err))
	}
}

// Run brings the robot up, ticks until ctx is cancelled, then runs the
// shutdown sequence with its own deadline.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting robot", log.Int("tick_rate", a.opts.TickRate))
	if err := a.robot.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return a.shutdown()
		}
		return errors.Join(err, a.shutdown())
	}

	ticker := time.NewTicker(time.Second / time.Duration(a.opts.TickRate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return a.shutdown()
		case <-ticker.C:
			_ = a.Step(ctx)
		}
	}
}

func (a *Agent) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.ShutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down robot", log.Uint64("ticks", a.tick))
	if err := a.robot.Shutdown(ctx); err != nil {
		a.logger.Error("shutdown incomplete", log.Error(err))
		return err
	}
	return nil
}
