package strategy

import "github.com/zeusync/pitchside/internal/core/observability/log"

type GetBallState int

const (
	GetBallTurning GetBallState = iota
	GetBallOpening
	GetBallMoving
	GetBallGrabbing
	GetBallPossession
)

func (s GetBallState) String() string {
	switch s {
	case GetBallTurning:
		return "turning_to_ball"
	case GetBallOpening:
		return "opening_grabber"
	case GetBallMoving:
		return "moving_to_ball"
	case GetBallGrabbing:
		return "grabbing_ball"
	case GetBallPossession:
		return "possession"
	default:
		return "unknown"
	}
}

// GetBall approaches the ball and grabs it.
type GetBall struct {
	*machine[GetBallState]
	env *Env
}

func NewGetBall(env *Env) *GetBall {
	s := &GetBall{env: env}
	s.machine = newMachine("get_ball", []GetBallState{
		GetBallTurning, GetBallOpening, GetBallMoving, GetBallGrabbing, GetBallPossession,
	}, env.Logger)
	s.decide = s.transition
	s.actions[GetBallTurning] = s.turn
	s.actions[GetBallOpening] = s.open
	s.actions[GetBallMoving] = s.move
	s.actions[GetBallGrabbing] = s.grab
	s.configureCatcher()
	return s
}

func (s *GetBall) Signal() Signal {
	if s.Current() == GetBallPossession {
		return SignalGrabbed
	}
	return SignalNone
}

func (s *GetBall) Reset() {
	s.machine.Reset()
	s.configureCatcher()
}

func (s *GetBall) configureCatcher() {
	t := s.env.Tuning
	if err := s.env.Self.SetCatcherArea(t.CatcherWidth, t.CatcherOffset); err != nil {
		s.env.logger().Warn("catcher area rejected", log.Error(err))
	}
}

// transition picks the earliest unmet precondition.
func (s *GetBall) transition() (GetBallState, bool) {
	e := s.env
	if e.Robot.BallGrabbed() {
		return GetBallPossession, true
	}
	ball, ok := e.ball()
	if !ok || !e.Self.Detected() {
		return 0, false
	}
	switch {
	case !e.Self.IsFacing(ball, e.Tuning.FacingMargin):
		return GetBallTurning, true
	case !e.Robot.GrabberOpen():
		return GetBallOpening, true
	case !e.World.CanCatchBall(e.Self):
		return GetBallMoving, true
	default:
		return GetBallGrabbing, true
	}
}

func (s *GetBall) turn() {
	if ball, ok := s.env.ball(); ok {
		s.env.face(ball)
	}
}

// open opens the grabber, or backs off first when the ball is so close the
// jaws would foul it.
func (s *GetBall) open() {
	e := s.env
	if e.World.BallTooClose(e.Self, e.Tuning.DangerDistance) {
		back := -e.Tuning.RetreatCM
		e.act(func() error { return e.Robot.Drive(back, back, e.Tuning.DrivePower, e.Tuning.DrivePower) })
		return
	}
	e.act(func() error { return e.Robot.OpenGrabber(e.Tuning.GrabberTime, e.Tuning.GrabberPower) })
}

// move drives until the ball sits in the middle of the catcher area.
func (s *GetBall) move() {
	e := s.env
	ball, ok := e.ball()
	if !ok {
		return
	}
	d, ok := e.Self.DistanceTo(ball)
	if !ok {
		return
	}
	reach := e.Self.Length()/2 + e.Tuning.CatcherOffset/2
	e.driveForward(d - reach)
}

func (s *GetBall) grab() {
	e := s.env
	e.act(func() error { return e.Robot.CloseGrabber(e.Tuning.GrabberTime, e.Tuning.GrabberPower) })
}
