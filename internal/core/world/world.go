package world

import (
	"fmt"
	"strings"

	"github.com/zeusync/pitchside/internal/core/observability/log"
)

type Side int

const (
	SideLeft Side = iota + 1
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

func ParseSide(value string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "left":
		return SideLeft, nil
	case "right":
		return SideRight, nil
	default:
		return 0, fmt.Errorf("%q: %w", value, ErrInvalidSide)
	}
}

// Key names one tracked entity in a vision observation set.
type Key string

const (
	KeyOurAttacker   Key = "our_attacker"
	KeyTheirAttacker Key = "their_attacker"
	KeyOurDefender   Key = "our_defender"
	KeyTheirDefender Key = "their_defender"
	KeyBall          Key = "ball"
)

// Keys lists the five tracked entities in a stable order.
var Keys = []Key{KeyOurAttacker, KeyTheirAttacker, KeyOurDefender, KeyTheirDefender, KeyBall}

// Observation is one vision reading. Nil fields mean "not detected this tick".
type Observation struct {
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Angle    *float64 `json:"angle"`
	Velocity *float64 `json:"velocity"`
}

// Observe builds a fully populated observation.
func Observe(x, y, angle, velocity float64) Observation {
	return Observation{X: &x, Y: &y, Angle: &angle, Velocity: &velocity}
}

// Complete reports whether every field is present.
func (o Observation) Complete() bool {
	return o.X != nil && o.Y != nil && o.Angle != nil && o.Velocity != nil
}

// Vector validates the observation; a missing field is ErrMissingField.
func (o Observation) Vector() (Vector, error) {
	if !o.Complete() {
		return Vector{}, ErrMissingField
	}
	return NewVector(*o.X, *o.Y, *o.Angle, *o.Velocity)
}

// Observations maps each Key to its reading for one frame.
type Observations map[Key]Observation

// UpdateReport summarises what an accepted update did.
type UpdateReport struct {
	Undetected     []Key
	SideConsistent bool
}

// World is the aggregate root. Robots are stored by zone, left to right;
// role accessors derive "ours" and "theirs" from the side.
type World struct {
	side       Side
	pitchIndex int
	pitch      *Pitch
	ball       *Ball
	robots     [ZoneCount]*Robot
	goals      [2]*Goal
	logger     log.Log

	sideWarnings uint64
}

// NewWorld builds a world with undetected entities. Angle offsets are
// indexed by zone.
func NewWorld(side string, pitchIndex int, cal *Calibration, angleOffsets [ZoneCount]float64, logger log.Log) (*World, error) {
	s, err := ParseSide(side)
	if err != nil {
		return nil, err
	}
	if pitchIndex != 0 && pitchIndex != 1 {
		return nil, fmt.Errorf("pitch %d: %w", pitchIndex, ErrUnknownPitch)
	}
	if cal == nil {
		return nil, ErrEmptyGeometry
	}
	geometry, err := cal.Pitch(pitchIndex)
	if err != nil {
		return nil, err
	}
	pitch, err := NewPitch(geometry)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Provide()
	}

	w := &World{
		side:       s,
		pitchIndex: pitchIndex,
		pitch:      pitch,
		ball:       NewBall(),
		logger:     logger.Named("world").With(log.String("side", s.String()), log.Int("pitch", pitchIndex)),
	}
	for zone := range w.robots {
		r, err := NewRobot(zone, angleOffsets[zone])
		if err != nil {
			return nil, err
		}
		w.robots[zone] = r
	}
	w.goals[0] = NewGoal(0, pitch.goalMouth(0))
	w.goals[1] = NewGoal(ZoneCount-1, pitch.goalMouth(ZoneCount-1))
	return w, nil
}

func (w *World) Side() Side       { return w.side }
func (w *World) PitchIndex() int  { return w.pitchIndex }
func (w *World) Pitch() *Pitch    { return w.pitch }
func (w *World) Ball() *Ball      { return w.ball }
func (w *World) Robots() []*Robot { return w.robots[:] }

// SideWarnings counts updates that failed the ordering check.
func (w *World) SideWarnings() uint64 { return w.sideWarnings }

func (w *World) OurDefender() *Robot {
	if w.side == SideLeft {
		return w.robots[0]
	}
	return w.robots[3]
}

func (w *World) TheirAttacker() *Robot {
	if w.side == SideLeft {
		return w.robots[1]
	}
	return w.robots[2]
}

func (w *World) OurAttacker() *Robot {
	if w.side == SideLeft {
		return w.robots[2]
	}
	return w.robots[1]
}

func (w *World) TheirDefender() *Robot {
	if w.side == SideLeft {
		return w.robots[3]
	}
	return w.robots[0]
}

func (w *World) OurGoal() *Goal {
	if w.side == SideLeft {
		return w.goals[0]
	}
	return w.goals[1]
}

func (w *World) TheirGoal() *Goal {
	if w.side == SideLeft {
		return w.goals[1]
	}
	return w.goals[0]
}

// Robot resolves a robot key to its role.
func (w *World) Robot(key Key) (*Robot, bool) {
	switch key {
	case KeyOurAttacker:
		return w.OurAttacker(), true
	case KeyTheirAttacker:
		return w.TheirAttacker(), true
	case KeyOurDefender:
		return w.OurDefender(), true
	case KeyTheirDefender:
		return w.TheirDefender(), true
	default:
		return nil, false
	}
}

// UpdatePositions replaces every pose from one frame. Values that are present
// but out of range reject the whole update and leave the world untouched.
// Entities with missing fields become undetected for this tick.
func (w *World) UpdatePositions(obs Observations) (UpdateReport, error) {
	for key := range obs {
		if !knownKey(key) {
			return UpdateReport{}, fmt.Errorf("%q: %w", key, ErrUnknownKey)
		}
	}

	staged := make(map[Key]*Vector, len(Keys))
	report := UpdateReport{SideConsistent: true}
	for _, key := range Keys {
		o, ok := obs[key]
		if !ok || !o.Complete() {
			report.Undetected = append(report.Undetected, key)
			staged[key] = nil
			continue
		}
		v, err := o.Vector()
		if err != nil {
			return UpdateReport{}, fmt.Errorf("%s: %w", key, err)
		}
		staged[key] = &v
	}

	for key, v := range staged {
		if key == KeyBall {
			w.ball.setVector(v)
			continue
		}
		r, _ := w.Robot(key)
		r.observe(v)
	}

	if !w.CheckSides() {
		report.SideConsistent = false
		w.sideWarnings++
		w.logger.Warn("robot ordering inconsistent with side",
			log.Any("x_by_zone", w.zoneXs()),
			log.Uint64("warnings", w.sideWarnings))
	}
	return report, nil
}

// CheckSides verifies the four robots lie in strict x order by zone. It is
// vacuously true while any robot is undetected.
func (w *World) CheckSides() bool {
	prev := 0.0
	for i, r := range w.robots {
		pos, ok := r.Position()
		if !ok {
			return true
		}
		if i > 0 && pos.X <= prev {
			return false
		}
		prev = pos.X
	}
	return true
}

func (w *World) zoneXs() []float64 {
	xs := make([]float64, 0, len(w.robots))
	for _, r := range w.robots {
		if pos, ok := r.Position(); ok {
			xs = append(xs, pos.X)
		}
	}
	return xs
}

// BallInArea reports whether the ball is inside the zone of any given robot.
func (w *World) BallInArea(robots ...*Robot) bool {
	pos, ok := w.ball.Position()
	if !ok {
		return false
	}
	for _, r := range robots {
		if r != nil && r.InZone(w.pitch, pos) {
			return true
		}
	}
	return false
}

// BallInPlay reports whether the ball is detected on the playing surface.
func (w *World) BallInPlay() bool {
	pos, ok := w.ball.Position()
	return ok && w.pitch.Contains(pos)
}

// BallAtWall reports whether the ball is within margin of the pitch boundary.
func (w *World) BallAtWall(margin float64) bool {
	pos, ok := w.ball.Position()
	return ok && w.pitch.outline.DistanceToEdge(pos) < margin
}

// BallTooClose reports whether the ball is within threshold of the robot centre.
func (w *World) BallTooClose(r *Robot, threshold float64) bool {
	pos, ok := w.ball.Position()
	if !ok {
		return false
	}
	d, ok := r.DistanceTo(pos)
	return ok && d < threshold
}

// CanCatchBall fails closed while the catcher area is unset or stale.
func (w *World) CanCatchBall(r *Robot) bool {
	pos, ok := w.ball.Position()
	if !ok {
		return false
	}
	area, ok := r.CatcherArea()
	return ok && area.Contains(pos)
}

func knownKey(k Key) bool {
	for _, known := range Keys {
		if k == known {
			return true
		}
	}
	return false
}
