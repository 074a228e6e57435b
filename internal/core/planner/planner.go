// Package planner is the top-level tactical state machine. It picks which
// strategy drives the robot and resets strategies it switches away from.
package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeusync/pitchside/internal/core/observability/log"
	"github.com/zeusync/pitchside/internal/core/strategy"
	"github.com/zeusync/pitchside/internal/core/world"
)

var (
	ErrUnknownProfile  = errors.New("unknown profile")
	ErrIncompleteTable = errors.New("strategy table is missing a state")
)

// None stands in for a missing name in text output.
const None = "None"

type State int

const (
	NoBall State = iota
	BallUnreachable
	BallReachable
	Possession
)

// States lists the tactical states in order.
var States = []State{NoBall, BallUnreachable, BallReachable, Possession}

func (s State) String() string {
	switch s {
	case NoBall:
		return "NO_BALL"
	case BallUnreachable:
		return "BALL_UNREACHABLE"
	case BallReachable:
		return "BALL_REACHABLE"
	case Possession:
		return "POSSESSION"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Profile string

const (
	ProfileAttacker Profile = "attacker"
	ProfilePasser   Profile = "passer"
)

func ParseProfile(v string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(v))); p {
	case ProfileAttacker, ProfilePasser:
		return p, nil
	default:
		return "", fmt.Errorf("%q: %w", v, ErrUnknownProfile)
	}
}

// Table maps each tactical state to the strategy that runs in it.
type Table map[State]strategy.Strategy

// NewTable builds the strategy table for a profile. Both profiles share
// everything except the possession behaviour.
func NewTable(profile Profile, env *strategy.Env) (Table, error) {
	table := Table{
		NoBall:          strategy.NewIdle(env.Logger),
		BallUnreachable: strategy.NewFaceBall(env),
		BallReachable:   strategy.NewGetBall(env),
	}
	switch profile {
	case ProfileAttacker:
		table[Possession] = strategy.NewShootGoal(env)
	case ProfilePasser:
		table[Possession] = strategy.NewPassBall(env)
	default:
		return nil, fmt.Errorf("%q: %w", profile, ErrUnknownProfile)
	}
	return table, nil
}

// Transition describes one change of tactical state.
type Transition struct {
	From     State
	To       State
	Strategy string
	Tick     uint64
}

type Option func(*Planner)

// WithTransitionHook is called after every tactical change.
func WithTransitionHook(fn func(Transition)) Option {
	return func(p *Planner) { p.onTransition = fn }
}

type Planner struct {
	world  *world.World
	self   *world.Robot
	table  Table
	state  State
	tick   uint64
	logger log.Log

	onTransition func(Transition)
}

// New builds a planner for self, the robot whose zone decides reachability.
func New(w *world.World, self *world.Robot, table Table, logger log.Log, opts ...Option) (*Planner, error) {
	for _, s := range States {
		if table[s] == nil {
			return nil, fmt.Errorf("%s: %w", s, ErrIncompleteTable)
		}
	}
	if logger == nil {
		logger = log.Provide()
	}
	p := &Planner{
		world:  w,
		self:   self,
		table:  table,
		state:  NoBall,
		logger: logger.Named("planner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Transition evaluates the rules in priority order without changing state.
func (p *Planner) Transition() State {
	if !p.world.BallInPlay() {
		return NoBall
	}
	if !p.world.BallInArea(p.self) {
		return BallUnreachable
	}
	active := p.table[p.state]
	signal := active.Signal()
	switch {
	case signal == strategy.SignalGrabbed:
		return Possession
	case p.state == Possession && signal == strategy.SignalKicked:
		return BallReachable
	case p.state == NoBall || p.state == BallUnreachable:
		return BallReachable
	default:
		return p.state
	}
}

// Tick switches tactical state if needed, then ticks the active strategy.
func (p *Planner) Tick() {
	p.tick++
	next := p.Transition()
	if next != p.state {
		p.switchTo(next)
	}
	p.table[p.state].Tick()
}

func (p *Planner) switchTo(next State) {
	outgoing := p.table[p.state]
	outgoing.Reset()

	t := Transition{From: p.state, To: next, Strategy: p.table[next].Name(), Tick: p.tick}
	p.state = next
	p.logger.Info("tactical transition",
		log.String("from", t.From.String()),
		log.String("to", t.To.String()),
		log.String("strategy", t.Strategy),
		log.Uint64("tick", t.Tick))
	if p.onTransition != nil {
		p.onTransition(t)
	}
}

func (p *Planner) State() State { return p.state }

// Strategy returns the strategy for the current tactical state.
func (p *Planner) Strategy() strategy.Strategy { return p.table[p.state] }

// StrategyName and StrategyState are the names shown on the pitch display.
func (p *Planner) StrategyName() string {
	if s := p.Strategy(); s != nil {
		return s.Name()
	}
	return None
}

func (p *Planner) StrategyState() string {
	if s := p.Strategy(); s != nil && s.State() != "" {
		return s.State()
	}
	return None
}
