package strategy

import "github.com/zeusync/pitchside/internal/core/world"

type PassBallState int

const (
	PassFindingPath PassBallState = iota
	PassTurningToDefender
	PassOpeningGrabber
	PassKicking
	PassKicked
)

func (s PassBallState) String() string {
	switch s {
	case PassFindingPath:
		return "finding_path"
	case PassTurningToDefender:
		return "turning_to_defender"
	case PassOpeningGrabber:
		return "opening_grabber"
	case PassKicking:
		return "moving_to_ball"
	case PassKicked:
		return "kicked"
	default:
		return "unknown"
	}
}

// PassBall kicks the ball to our other robot, stepping aside first when
// their attacker blocks the line.
type PassBall struct {
	*machine[PassBallState]
	aim
}

func NewPassBall(env *Env) *PassBall {
	s := &PassBall{aim: aim{env: env}}
	s.aim.target = s.teammate
	s.aim.blocker = env.World.TheirAttacker
	s.machine = newMachine("pass_ball", []PassBallState{
		PassFindingPath, PassTurningToDefender, PassOpeningGrabber, PassKicking, PassKicked,
	}, env.Logger)
	s.decide = func() (PassBallState, bool) {
		phase, ok := s.aim.next()
		return PassBallState(phase), ok
	}
	s.actions[PassFindingPath] = s.findPath
	s.actions[PassTurningToDefender] = s.turn
	s.actions[PassOpeningGrabber] = s.open
	s.actions[PassKicking] = s.kick
	return s
}

func (s *PassBall) Signal() Signal {
	if s.Current() == PassKicked {
		return SignalKicked
	}
	return SignalNone
}

// Reset also forgets the cached free spot.
func (s *PassBall) Reset() {
	s.machine.Reset()
	s.aim.reset()
}

// FreeSpot exposes the cached spot for telemetry.
func (s *PassBall) FreeSpot() (world.Coordinate, bool) {
	if s.spot == nil {
		return world.Coordinate{}, false
	}
	return *s.spot, true
}

func (s *PassBall) teammate() (target, bool) {
	mate := s.env.Teammate
	if mate == nil {
		return target{}, false
	}
	pos, ok := mate.Position()
	if !ok {
		return target{}, false
	}
	left, right, _ := mate.Front()
	return target{point: pos, edge: []world.Coordinate{left, right}}, true
}
