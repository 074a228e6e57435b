package strategy

import (
	"github.com/zeusync/pitchside/internal/core/world"
)

// aimPhase is the shared progression of the kicking strategies. PassBall and
// ShootGoal give each phase their own state type and name.
type aimPhase int

const (
	aimFindingPath aimPhase = iota
	aimTurning
	aimOpening
	aimKicking
	aimDone
)

// target is the aim point and the leading edge the corridor is drawn to.
type target struct {
	point world.Coordinate
	edge  []world.Coordinate
}

// aim carries the geometry both kicking strategies share: the kick corridor,
// the blocking opponent and a cached free spot.
type aim struct {
	env     *Env
	target  func() (target, bool)
	blocker func() *world.Robot

	spot   *world.Coordinate
	kicked bool
}

func (a *aim) reset() {
	a.spot = nil
	a.kicked = false
}

// next is the pure transition shared by both strategies. It is undecidable
// while Self or the target is unseen.
func (a *aim) next() (aimPhase, bool) {
	if a.kicked {
		return aimDone, true
	}
	e := a.env
	tgt, ok := a.target()
	if !ok || !e.Self.Detected() {
		return 0, false
	}
	if a.blocked(tgt) {
		if spot, ok := a.freeSpot(); ok && !e.Self.IsAt(spot, e.Tuning.AtMargin) {
			return aimFindingPath, true
		}
	}
	switch {
	case !e.Self.IsFacing(tgt.point, e.Tuning.FacingMargin):
		return aimTurning, true
	case !e.Robot.GrabberOpen():
		return aimOpening, true
	default:
		return aimKicking, true
	}
}

// corridor is the convex hull of our leading edge and the target's.
func (a *aim) corridor(tgt target) (world.Polygon, bool) {
	left, right, ok := a.env.Self.Front()
	if !ok {
		return nil, false
	}
	pts := append([]world.Coordinate{left, right}, tgt.edge...)
	return world.ConvexHull(pts...), true
}

func (a *aim) blocked(tgt target) bool {
	b := a.blocker()
	if b == nil || !b.Detected() {
		return false
	}
	c, ok := a.corridor(tgt)
	return ok && b.Overlaps(c)
}

// freeSpot returns the cached spot, or the spot that would be chosen now:
// same x, near the zone wall on the side away from the blocker.
func (a *aim) freeSpot() (world.Coordinate, bool) {
	if a.spot != nil {
		return *a.spot, true
	}
	e := a.env
	self, ok := e.Self.Position()
	if !ok {
		return world.Coordinate{}, false
	}
	zone, ok := e.World.Pitch().Zone(e.Self.Zone())
	if !ok {
		return world.Coordinate{}, false
	}
	lo, hi := zone.Bounds()
	mid := lo.Y + (hi.Y-lo.Y)/2

	spot := world.Coordinate{X: self.X, Y: hi.Y - e.Tuning.SpotMargin}
	if b := a.blocker(); b != nil {
		if pos, ok := b.Position(); ok && pos.Y >= mid {
			spot.Y = lo.Y + e.Tuning.SpotMargin
		}
	}
	return spot, true
}

func (a *aim) findPath() {
	spot, ok := a.freeSpot()
	if !ok {
		return
	}
	a.spot = &spot
	e := a.env
	if !e.Self.IsFacing(spot, e.Tuning.FacingMargin) {
		e.face(spot)
		return
	}
	if d, ok := e.Self.DistanceTo(spot); ok {
		e.driveForward(d)
	}
}

func (a *aim) turn() {
	if tgt, ok := a.target(); ok {
		a.env.face(tgt.point)
	}
}

func (a *aim) open() {
	e := a.env
	e.act(func() error { return e.Robot.OpenGrabber(e.Tuning.GrabberTime, e.Tuning.GrabberPower) })
}

// kick fires once; afterwards the strategy stays done until reset.
func (a *aim) kick() {
	e := a.env
	if e.act(func() error { return e.Robot.Kick(e.Tuning.KickTime, e.Tuning.KickPower) }) {
		a.kicked = true
	}
}
