package strategy

type ShootGoalState int

const (
	ShootFindingPath ShootGoalState = iota
	ShootTurningToGoal
	ShootOpeningGrabber
	ShootKicking
	ShootClearing
)

func (s ShootGoalState) String() string {
	switch s {
	case ShootFindingPath:
		return "finding_path"
	case ShootTurningToGoal:
		return "turning_to_goal"
	case ShootOpeningGrabber:
		return "opening_grabber"
	case ShootKicking:
		return "moving_to_ball"
	case ShootClearing:
		return "clearing"
	default:
		return "unknown"
	}
}

// ShootGoal is PassBall aimed at their goal, with their defender as the
// blocker. After the kick it stays in clearing so the kick is never resent.
type ShootGoal struct {
	*machine[ShootGoalState]
	aim
}

func NewShootGoal(env *Env) *ShootGoal {
	s := &ShootGoal{aim: aim{env: env}}
	s.aim.target = s.goal
	s.aim.blocker = env.World.TheirDefender
	s.machine = newMachine("shoot_goal", []ShootGoalState{
		ShootFindingPath, ShootTurningToGoal, ShootOpeningGrabber, ShootKicking, ShootClearing,
	}, env.Logger)
	s.decide = func() (ShootGoalState, bool) {
		phase, ok := s.aim.next()
		return ShootGoalState(phase), ok
	}
	s.actions[ShootFindingPath] = s.findPath
	s.actions[ShootTurningToGoal] = s.turn
	s.actions[ShootOpeningGrabber] = s.open
	s.actions[ShootKicking] = s.kick
	return s
}

func (s *ShootGoal) Signal() Signal {
	if s.Current() == ShootClearing {
		return SignalKicked
	}
	return SignalNone
}

func (s *ShootGoal) Reset() {
	s.machine.Reset()
	s.aim.reset()
}

func (s *ShootGoal) goal() (target, bool) {
	g := s.env.World.TheirGoal()
	pos, ok := g.Position()
	if !ok {
		return target{}, false
	}
	poly, ok := g.Polygon()
	if !ok {
		return target{}, false
	}
	return target{point: pos, edge: poly}, true
}
