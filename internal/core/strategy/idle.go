package strategy

import "github.com/zeusync/pitchside/internal/core/observability/log"

type IdleState int

const IdleWaiting IdleState = iota

func (IdleState) String() string { return "idle" }

// Idle does nothing. It runs while the ball is out of play.
type Idle struct {
	*machine[IdleState]
}

func NewIdle(logger log.Log) *Idle {
	s := &Idle{machine: newMachine("idle", []IdleState{IdleWaiting}, logger)}
	s.decide = func() (IdleState, bool) { return IdleWaiting, true }
	return s
}

func (s *Idle) Signal() Signal { return SignalNone }
