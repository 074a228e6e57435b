package strategy

type FaceBallState int

const (
	FaceBallGrabberClosed FaceBallState = iota
	FaceBallFinding
	FaceBallFacing
)

func (s FaceBallState) String() string {
	switch s {
	case FaceBallGrabberClosed:
		return "grabber_closed"
	case FaceBallFinding:
		return "finding_ball"
	case FaceBallFacing:
		return "facing_ball"
	default:
		return "unknown"
	}
}

// FaceBall keeps the grabber shut and the robot pointed at the ball, ready
// for an incoming pass.
type FaceBall struct {
	*machine[FaceBallState]
	env *Env
}

func NewFaceBall(env *Env) *FaceBall {
	s := &FaceBall{env: env}
	s.machine = newMachine("face_ball", []FaceBallState{
		FaceBallGrabberClosed, FaceBallFinding, FaceBallFacing,
	}, env.Logger)
	s.decide = s.transition
	s.actions[FaceBallGrabberClosed] = s.closeGrabber
	s.actions[FaceBallFinding] = s.find
	return s
}

func (s *FaceBall) Signal() Signal { return SignalNone }

func (s *FaceBall) transition() (FaceBallState, bool) {
	e := s.env
	if e.Robot.GrabberOpen() {
		return FaceBallGrabberClosed, true
	}
	ball, ok := e.ball()
	if !ok || !e.Self.Detected() {
		return 0, false
	}
	if !e.Self.IsFacing(ball, e.Tuning.FacingMargin) {
		return FaceBallFinding, true
	}
	return FaceBallFacing, true
}

func (s *FaceBall) closeGrabber() {
	e := s.env
	if !e.Robot.GrabberOpen() {
		return
	}
	e.act(func() error { return e.Robot.CloseGrabber(e.Tuning.GrabberTime, e.Tuning.GrabberPower) })
}

func (s *FaceBall) find() {
	if ball, ok := s.env.ball(); ok {
		s.env.face(ball)
	}
}
