package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bus "github.com/zeusync/pitchside/internal/core/events/bus"
	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/core/planner"
	"github.com/zeusync/pitchside/internal/core/protocol"
	"github.com/zeusync/pitchside/internal/core/world"
)

const pitchYAML = `
pitches:
  - index: 0
    outline: [[0, 0], [600, 0], [600, 400], [0, 400]]
    zones:
      - [[0, 0], [150, 0], [150, 400], [0, 400]]
      - [[150, 0], [300, 0], [300, 400], [150, 400]]
      - [[300, 0], [450, 0], [450, 400], [300, 400]]
      - [[450, 0], [600, 0], [600, 400], [450, 400]]
`

type scriptedSource struct {
	frames []world.Observations
	errs   []error
	i      int
}

func (s *scriptedSource) Next(context.Context) (world.Observations, bool, error) {
	if s.i >= len(s.frames) {
		return nil, false, nil
	}
	obs, err := s.frames[s.i], s.errs[s.i]
	s.i++
	if err != nil {
		return nil, false, err
	}
	return obs, true, nil
}

func (s *scriptedSource) push(obs world.Observations, err error) {
	s.frames = append(s.frames, obs)
	s.errs = append(s.errs, err)
}

// scriptedPlanner moves to whatever state is queued next.
type scriptedPlanner struct {
	state planner.State
	plan  []planner.State
	ticks int
}

func (p *scriptedPlanner) Tick() {
	p.ticks++
	if len(p.plan) > 0 {
		p.state, p.plan = p.plan[0], p.plan[1:]
	}
}
func (p *scriptedPlanner) State() planner.State  { return p.state }
func (p *scriptedPlanner) StrategyName() string  { return "get_ball" }
func (p *scriptedPlanner) StrategyState() string { return "turning_to_ball" }

type fakeRobot struct {
	mu       sync.Mutex
	ticks    int
	started  bool
	shutdown bool
	startErr error
}

func (r *fakeRobot) Tick() {
	r.mu.Lock()
	r.ticks++
	r.mu.Unlock()
}

func (r *fakeRobot) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	return r.startErr
}

func (r *fakeRobot) Shutdown(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = true
	return nil
}

func (r *fakeRobot) Status() protocol.Status { return protocol.Status{GrabberOpen: true} }
func (r *fakeRobot) Ready() bool             { return true }
func (r *fakeRobot) DryRun() bool            { return true }
func (r *fakeRobot) Awaiting() bool          { return false }
func (r *fakeRobot) AckTimeouts() uint64     { return 0 }

func (r *fakeRobot) snapshot() (ticks int, started, shutdown bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks, r.started, r.shutdown
}

func newWorld(t *testing.T) *world.World {
	t.Helper()
	cal, err := world.DecodeCalibration(strings.NewReader(pitchYAML))
	require.NoError(t, err)
	w, err := world.NewWorld("left", 0, cal, [world.ZoneCount]float64{}, log.NewNop())
	require.NoError(t, err)
	return w
}

func frame(ourDef, theirAtt, ourAtt, theirDef float64) world.Observations {
	return world.Observations{
		world.KeyOurDefender:   world.Observe(ourDef, 200, 0, 0),
		world.KeyTheirAttacker: world.Observe(theirAtt, 200, 3, 0),
		world.KeyOurAttacker:   world.Observe(ourAtt, 200, 0, 0),
		world.KeyTheirDefender: world.Observe(theirDef, 200, 3, 0),
		world.KeyBall:          world.Observe(400, 250, 0, 0),
	}
}

func TestStepOrderAndSnapshot(t *testing.T) {
	w := newWorld(t)
	src := &scriptedSource{}
	src.push(frame(75, 225, 375, 525), nil)
	p := &scriptedPlanner{plan: []planner.State{planner.BallReachable}}
	robot := &fakeRobot{}
	events := bus.New()

	var ticks []Snapshot
	var transitions []Decision
	_, _ = events.Subscribe(bus.AgentTick, func(e bus.Event) error {
		ticks = append(ticks, e.Data().(Snapshot))
		return nil
	})
	_, _ = events.Subscribe(bus.PlannerTransition, func(e bus.Event) error {
		transitions = append(transitions, e.Data().(Decision))
		return nil
	})

	a := New(w, src, p, robot, events, Options{}, log.NewNop())
	require.NoError(t, a.Step(context.Background()))

	assert.Equal(t, 1, p.ticks)
	assert.Equal(t, 1, robot.ticks)
	require.Len(t, ticks, 1)
	snap := ticks[0]
	assert.Equal(t, uint64(1), snap.Tick)
	assert.Equal(t, "BALL_REACHABLE", snap.Tactical)
	assert.Equal(t, "get_ball", snap.Strategy)
	assert.Equal(t, "turning_to_ball", snap.MicroState)
	assert.True(t, snap.Controller.Status.GrabberOpen)
	assert.True(t, snap.Entities[world.KeyBall].Detected)
	assert.Equal(t, 400.0, snap.Entities[world.KeyBall].X)

	require.Len(t, transitions, 1)
	assert.Equal(t, "NO_BALL", transitions[0].From)
	assert.Equal(t, "BALL_REACHABLE", transitions[0].To)
	assert.Equal(t, 1, a.History().Len())
	assert.Equal(t, snap, a.Last())
}

func TestStepWithoutFrameOnlyTicksController(t *testing.T) {
	p := &scriptedPlanner{}
	robot := &fakeRobot{}
	a := New(newWorld(t), &scriptedSource{}, p, robot, nil, Options{}, log.NewNop())

	require.NoError(t, a.Step(context.Background()))
	assert.Equal(t, 0, p.ticks)
	assert.Equal(t, 1, robot.ticks)
}

func TestStepSkipsRejectedFrames(t *testing.T) {
	w := newWorld(t)
	src := &scriptedSource{}
	lost := errors.New("tracker lost")
	src.push(nil, lost)
	bad := frame(75, 225, 375, 525)
	bad[world.KeyBall] = world.Observe(400, 250, 0, -3)
	src.push(bad, nil)

	p := &scriptedPlanner{}
	robot := &fakeRobot{}
	a := New(w, src, p, robot, nil, Options{}, log.NewNop())

	assert.ErrorIs(t, a.Step(context.Background()), lost)
	assert.ErrorIs(t, a.Step(context.Background()), world.ErrNegativeVelocity)
	assert.Equal(t, 0, p.ticks)
	assert.Equal(t, 2, robot.ticks)
	assert.False(t, w.Ball().Detected())
}

func TestStepPublishesSideWarning(t *testing.T) {
	src := &scriptedSource{}
	src.push(frame(525, 375, 225, 75), nil)
	events := bus.New()
	var warnings []uint64
	_, _ = events.Subscribe(bus.WorldSideWarning, func(e bus.Event) error {
		warnings = append(warnings, e.Data().(uint64))
		return nil
	})

	a := New(newWorld(t), src, &scriptedPlanner{}, &fakeRobot{}, events, Options{}, log.NewNop())
	require.NoError(t, a.Step(context.Background()))
	assert.Equal(t, []uint64{1}, warnings)
}

func TestRunStartsTicksAndShutsDown(t *testing.T) {
	robot := &fakeRobot{}
	a := New(newWorld(t), &scriptedSource{}, &scriptedPlanner{}, robot, nil,
		Options{TickRate: 200, ShutdownTimeout: time.Second}, log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		ticks, _, _ := robot.snapshot()
		return ticks >= 3
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}
	_, started, shutdown := robot.snapshot()
	assert.True(t, started)
	assert.True(t, shutdown)
}

func TestRunShutsDownAfterFailedStart(t *testing.T) {
	boom := errors.New("grabber jammed")
	robot := &fakeRobot{startErr: boom}
	a := New(newWorld(t), &scriptedSource{}, &scriptedPlanner{}, robot, nil, Options{}, log.NewNop())

	err := a.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	_, _, shutdown := robot.snapshot()
	assert.True(t, shutdown)
}

func TestHistoryRingKeepsNewest(t *testing.T) {
	h := NewHistory(3)
	for i := uint64(1); i <= 5; i++ {
		h.Append(Decision{Tick: i})
	}
	recs := h.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, []uint64{3, 4, 5}, []uint64{recs[0].Tick, recs[1].Tick, recs[2].Tick})

	h.Reset()
	assert.Zero(t, h.Len())
	assert.Empty(t, h.Records())
}
