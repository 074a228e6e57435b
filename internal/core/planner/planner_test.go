package planner

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/core/strategy"
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

type fakeStrategy struct {
	name   string
	state  string
	signal strategy.Signal
	ticks  int
	resets int
}

func (f *fakeStrategy) Name() string            { return f.name }
func (f *fakeStrategy) State() string           { return f.state }
func (f *fakeStrategy) Tick()                   { f.ticks++ }
func (f *fakeStrategy) Signal() strategy.Signal { return f.signal }
func (f *fakeStrategy) Reset() {
	f.resets++
	f.signal = strategy.SignalNone
}

type fixture struct {
	t     *testing.T
	world *world.World
	obs   world.Observations
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cal, err := world.DecodeCalibration(strings.NewReader(pitchYAML))
	require.NoError(t, err)
	w, err := world.NewWorld("left", 0, cal, [world.ZoneCount]float64{}, log.NewNop())
	require.NoError(t, err)
	return &fixture{t: t, world: w, obs: world.Observations{
		world.KeyOurDefender:   world.Observe(75, 200, 0, 0),
		world.KeyTheirAttacker: world.Observe(225, 380, math.Pi, 0),
		world.KeyOurAttacker:   world.Observe(375, 200, 0, 0),
		world.KeyTheirDefender: world.Observe(525, 380, math.Pi, 0),
	}}
}

func (f *fixture) ball(x, y float64) {
	f.t.Helper()
	f.obs[world.KeyBall] = world.Observe(x, y, 0, 0)
	_, err := f.world.UpdatePositions(f.obs)
	require.NoError(f.t, err)
}

func (f *fixture) noBall() {
	f.t.Helper()
	f.obs[world.KeyBall] = world.Observation{}
	_, err := f.world.UpdatePositions(f.obs)
	require.NoError(f.t, err)
}

func fakeTable() (Table, map[State]*fakeStrategy) {
	fakes := map[State]*fakeStrategy{
		NoBall:          {name: "idle", state: "idle"},
		BallUnreachable: {name: "face_ball", state: "finding_ball"},
		BallReachable:   {name: "get_ball", state: "turning_to_ball"},
		Possession:      {name: "shoot_goal"},
	}
	table := Table{}
	for s, f := range fakes {
		table[s] = f
	}
	return table, fakes
}

func TestPlannerRoundTrip(t *testing.T) {
	f := newFixture(t)
	table, fakes := fakeTable()

	var visited []State
	p, err := New(f.world, f.world.OurAttacker(), table, log.NewNop(),
		WithTransitionHook(func(tr Transition) { visited = append(visited, tr.To) }))
	require.NoError(t, err)
	assert.Equal(t, NoBall, p.State())

	f.noBall()
	p.Tick()
	assert.Equal(t, NoBall, p.State())

	// Ball enters our zone.
	f.ball(400, 250)
	p.Tick()
	assert.Equal(t, BallReachable, p.State())
	p.Tick()
	assert.Equal(t, BallReachable, p.State(), "no signal, stay")

	fakes[BallReachable].signal = strategy.SignalGrabbed
	p.Tick()
	assert.Equal(t, Possession, p.State())
	assert.Equal(t, 1, fakes[BallReachable].resets)

	p.Tick()
	assert.Equal(t, Possession, p.State())

	fakes[Possession].signal = strategy.SignalKicked
	p.Tick()
	assert.Equal(t, BallReachable, p.State())
	assert.Equal(t, 1, fakes[Possession].resets)

	// Ball leaves play.
	f.ball(700, 250)
	p.Tick()
	assert.Equal(t, NoBall, p.State())

	assert.Equal(t, []State{BallReachable, Possession, BallReachable, NoBall}, visited)
}

func TestPlannerUnreachable(t *testing.T) {
	f := newFixture(t)
	table, fakes := fakeTable()
	p, err := New(f.world, f.world.OurAttacker(), table, log.NewNop())
	require.NoError(t, err)

	f.ball(200, 100)
	p.Tick()
	assert.Equal(t, BallUnreachable, p.State())
	assert.Equal(t, 1, fakes[BallUnreachable].ticks)
	assert.Equal(t, "face_ball", p.StrategyName())
	assert.Equal(t, "finding_ball", p.StrategyState())

	f.ball(320, 100)
	p.Tick()
	assert.Equal(t, BallReachable, p.State())
	assert.Equal(t, 1, fakes[BallUnreachable].resets)

	// A grabbed signal only counts inside our zone.
	fakes[BallReachable].signal = strategy.SignalGrabbed
	f.ball(200, 100)
	p.Tick()
	assert.Equal(t, BallUnreachable, p.State())
}

func TestPlannerNamesFallBackToNone(t *testing.T) {
	f := newFixture(t)
	table, _ := fakeTable()
	p, err := New(f.world, f.world.OurAttacker(), table, log.NewNop())
	require.NoError(t, err)

	p.state = Possession
	assert.Equal(t, "shoot_goal", p.StrategyName())
	assert.Equal(t, None, p.StrategyState())
	assert.Equal(t, "POSSESSION", p.State().String())
}

func TestNewRejectsIncompleteTable(t *testing.T) {
	f := newFixture(t)
	table, _ := fakeTable()
	delete(table, BallUnreachable)
	_, err := New(f.world, f.world.OurAttacker(), table, log.NewNop())
	assert.ErrorIs(t, err, ErrIncompleteTable)
}

type idleRobot struct{}

func (idleRobot) Drive(float64, float64, int, int) error { return nil }
func (idleRobot) Turn(float64, int) error                { return nil }
func (idleRobot) Stop() error                            { return nil }
func (idleRobot) OpenGrabber(time.Duration, int) error   { return nil }
func (idleRobot) CloseGrabber(time.Duration, int) error  { return nil }
func (idleRobot) Kick(time.Duration, int) error          { return nil }
func (idleRobot) RequestStatus()                         {}
func (idleRobot) GrabberOpen() bool                      { return false }
func (idleRobot) Grabbing() bool                         { return false }
func (idleRobot) Moving() bool                           { return false }
func (idleRobot) Kicking() bool                          { return false }
func (idleRobot) BallGrabbed() bool                      { return false }
func (idleRobot) Busy() bool                             { return false }

func TestProfilesPickPossessionStrategy(t *testing.T) {
	f := newFixture(t)
	env := &strategy.Env{
		World:    f.world,
		Self:     f.world.OurAttacker(),
		Teammate: f.world.OurDefender(),
		Robot:    idleRobot{},
		Tuning:   strategy.DefaultTuning(),
		Logger:   log.NewNop(),
	}

	attacker, err := NewTable(ProfileAttacker, env)
	require.NoError(t, err)
	assert.Equal(t, "shoot_goal", attacker[Possession].Name())
	assert.Equal(t, "get_ball", attacker[BallReachable].Name())
	assert.Equal(t, "face_ball", attacker[BallUnreachable].Name())
	assert.Equal(t, "idle", attacker[NoBall].Name())

	passer, err := NewTable(ProfilePasser, env)
	require.NoError(t, err)
	assert.Equal(t, "pass_ball", passer[Possession].Name())

	_, err = NewTable("goalie", env)
	assert.ErrorIs(t, err, ErrUnknownProfile)

	p, err := ParseProfile(" Passer ")
	require.NoError(t, err)
	assert.Equal(t, ProfilePasser, p)
	_, err = ParseProfile("keeper")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestPlannerDrivesRealStrategies(t *testing.T) {
	f := newFixture(t)
	env := &strategy.Env{
		World:    f.world,
		Self:     f.world.OurAttacker(),
		Teammate: f.world.OurDefender(),
		Robot:    idleRobot{},
		Tuning:   strategy.DefaultTuning(),
		Logger:   log.NewNop(),
	}
	table, err := NewTable(ProfileAttacker, env)
	require.NoError(t, err)
	p, err := New(f.world, env.Self, table, log.NewNop())
	require.NoError(t, err)

	f.ball(375, 300)
	p.Tick()
	assert.Equal(t, BallReachable, p.State())
	assert.Equal(t, "turning_to_ball", p.StrategyState())

	f.noBall()
	p.Tick()
	assert.Equal(t, NoBall, p.State())
	assert.Equal(t, "idle", p.StrategyState())
	assert.Equal(t, "turning_to_ball", table[BallReachable].State(), "reset on the way out")
}
