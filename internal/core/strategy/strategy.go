// Package strategy holds the per-behaviour state machines. Every tick each
// machine recomputes the state it should be in from the world and the robot
// status, then runs that state's action.
package strategy

import (
	"fmt"
	"time"

	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/core/world"
)

// Signal is what a strategy reports to the planner.
type Signal int

const (
	SignalNone Signal = iota
	SignalGrabbed
	SignalKicked
)

func (s Signal) String() string {
	switch s {
	case SignalGrabbed:
		return "grabbed"
	case SignalKicked:
		return "kicked"
	default:
		return "none"
	}
}

// Strategy is the planner's view of a behaviour.
type Strategy interface {
	Name() string
	State() string
	Tick()
	Reset()
	Signal() Signal
}

// Status is the read side of the robot controller.
type Status interface {
	GrabberOpen() bool
	Grabbing() bool
	Moving() bool
	Kicking() bool
	BallGrabbed() bool
	Busy() bool
}

// Commands is the write side of the robot controller.
type Commands interface {
	Drive(leftCM, rightCM float64, leftPower, rightPower int) error
	Turn(radians float64, power int) error
	Stop() error
	OpenGrabber(d time.Duration, power int) error
	CloseGrabber(d time.Duration, power int) error
	Kick(d time.Duration, power int) error
	RequestStatus()
}

type Actuator interface {
	Status
	Commands
}

// Tuning holds the thresholds strategies decide with. Distances are pixels
// unless named otherwise.
type Tuning struct {
	FacingMargin   float64       `yaml:"facing_margin"`
	AtMargin       float64       `yaml:"at_margin"`
	DangerDistance float64       `yaml:"danger_distance"`
	CatcherWidth   float64       `yaml:"catcher_width"`
	CatcherOffset  float64       `yaml:"catcher_offset"`
	SpotMargin     float64       `yaml:"spot_margin"`
	RetreatCM      float64       `yaml:"retreat_cm"`
	PxPerCM        float64       `yaml:"px_per_cm"`
	DrivePower     int           `yaml:"drive_power"`
	TurnPower      int           `yaml:"turn_power"`
	GrabberTime    time.Duration `yaml:"grabber_time"`
	GrabberPower   int           `yaml:"grabber_power"`
	KickTime       time.Duration `yaml:"kick_time"`
	KickPower      int           `yaml:"kick_power"`
}

func DefaultTuning() Tuning {
	return Tuning{
		FacingMargin:   0.1,
		AtMargin:       15,
		DangerDistance: 30,
		CatcherWidth:   30,
		CatcherOffset:  20,
		SpotMargin:     40,
		RetreatCM:      5,
		PxPerCM:        2.5,
		DrivePower:     80,
		TurnPower:      60,
		GrabberTime:    600 * time.Millisecond,
		GrabberPower:   100,
		KickTime:       300 * time.Millisecond,
		KickPower:      100,
	}
}

// Env is everything a strategy reads and writes. Self is the robot being
// driven, Teammate the other robot on our side.
type Env struct {
	World    *world.World
	Self     *world.Robot
	Teammate *world.Robot
	Robot    Actuator
	Tuning   Tuning
	Logger   log.Log
}

func (e *Env) logger() log.Log {
	if e.Logger == nil {
		return log.Provide()
	}
	return e.Logger
}

// act runs issue unless the robot is busy, in which case it only asks for a
// status refresh. It reports whether issue ran and succeeded.
func (e *Env) act(issue func() error) bool {
	if e.Robot.Busy() {
		e.Robot.RequestStatus()
		return false
	}
	if err := issue(); err != nil {
		e.logger().Warn("command rejected", log.Error(err))
		return false
	}
	return true
}

// face turns Self toward p.
func (e *Env) face(p world.Coordinate) {
	angle, ok := e.Self.AngleToPoint(p)
	if !ok {
		return
	}
	e.act(func() error { return e.Robot.Turn(angle, e.Tuning.TurnPower) })
}

// driveForward moves Self straight ahead by px pixels.
func (e *Env) driveForward(px float64) {
	if e.Tuning.PxPerCM <= 0 || px <= 0 {
		return
	}
	cm := px / e.Tuning.PxPerCM
	e.act(func() error { return e.Robot.Drive(cm, cm, e.Tuning.DrivePower, e.Tuning.DrivePower) })
}

func (e *Env) ball() (world.Coordinate, bool) {
	return e.World.Ball().Position()
}

// stateEnum is a closed set of states for one strategy.
type stateEnum interface {
	~int
	fmt.Stringer
}

// machine is the shared engine: an ordered state list (first initial, last
// terminal), an action table and a transition function. decide reports false
// when the geometry it needs is unknown this tick.
type machine[S stateEnum] struct {
	name    string
	states  []S
	current S
	actions map[S]func()
	decide  func() (S, bool)
	logger  log.Log
}

func newMachine[S stateEnum](name string, states []S, logger log.Log) *machine[S] {
	if logger == nil {
		logger = log.Provide()
	}
	return &machine[S]{
		name:    name,
		states:  states,
		current: states[0],
		actions: make(map[S]func(), len(states)),
		logger:  logger.Named("strategy").With(log.String("strategy", name)),
	}
}

func (m *machine[S]) Name() string  { return m.name }
func (m *machine[S]) State() string { return m.current.String() }
func (m *machine[S]) Current() S    { return m.current }

// Transition returns the state the machine should be in now, or the
// current one when nothing can be decided. It does not change anything.
func (m *machine[S]) Transition() S {
	next, ok := m.decide()
	if !ok {
		return m.current
	}
	return next
}

// Tick moves to the desired state and runs its action. An undecidable tick
// does nothing at all.
func (m *machine[S]) Tick() {
	next, ok := m.decide()
	if !ok {
		m.logger.Debug("undecidable tick", log.String("state", m.current.String()))
		return
	}
	if next != m.current {
		m.logger.Debug("state change", log.String("from", m.current.String()), log.String("to", next.String()))
		m.current = next
	}
	if act := m.actions[next]; act != nil {
		act()
	}
}

func (m *machine[S]) Reset() {
	m.current = m.states[0]
}

func (m *machine[S]) Terminal() bool {
	return m.current == m.states[len(m.states)-1]
}

// States lists the state names in order.
func (m *machine[S]) States() []string {
	names := make([]string, len(m.states))
	for i, s := range m.states {
		names[i] = s.String()
	}
	return names
}
