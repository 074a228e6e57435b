package world

import (
	"fmt"
	"math"
)

// catcherSpec is the grabber reach rectangle, relative to the chassis front.
type catcherSpec struct {
	width       float64
	frontOffset float64
}

// Robot is one of the four players. Zone-dependent queries take the Pitch
// explicitly, the robot keeps no reference to its World.
type Robot struct {
	PitchObject
	zone int

	catcher     *catcherSpec
	catcherArea Polygon

	previousAngle float64
	hasPrevious   bool
}

func NewRobot(zone int, angleOffset float64) (*Robot, error) {
	if zone < 0 || zone >= ZoneCount {
		return nil, fmt.Errorf("zone %d: %w", zone, ErrInvalidZone)
	}
	obj, err := newPitchObject(RobotWidth, RobotLength, RobotHeight, angleOffset)
	if err != nil {
		return nil, err
	}
	return &Robot{PitchObject: obj, zone: zone}, nil
}

func (r *Robot) Zone() int { return r.zone }

// observe replaces the pose wholesale and refreshes derived state.
func (r *Robot) observe(v *Vector) {
	if r.vector != nil {
		r.previousAngle = r.vector.angle
		r.hasPrevious = true
	} else {
		r.hasPrevious = false
	}
	r.setVector(v)
	r.refreshCatcherArea()
}

// SetCatcherArea configures the grabber reach: a rectangle of the given width
// extending frontOffset past the front of the chassis.
func (r *Robot) SetCatcherArea(width, frontOffset float64) error {
	if !finite(width) || width < 0 || !finite(frontOffset) || frontOffset < 0 {
		return fmt.Errorf("catcher %vx%v: %w", width, frontOffset, ErrNegativeDimension)
	}
	r.catcher = &catcherSpec{width: width, frontOffset: frontOffset}
	r.refreshCatcherArea()
	return nil
}

// CatcherArea is absent until configured and while the robot is undetected.
func (r *Robot) CatcherArea() (Polygon, bool) {
	if r.catcherArea == nil {
		return nil, false
	}
	return r.catcherArea, true
}

func (r *Robot) refreshCatcherArea() {
	heading, ok := r.Heading()
	if !ok || r.catcher == nil {
		r.catcherArea = nil
		return
	}
	reach := r.catcher.frontOffset
	centre := r.vector.Coordinate.add(
		(r.length/2+reach/2)*math.Cos(heading),
		(r.length/2+reach/2)*math.Sin(heading),
	)
	r.catcherArea = OrientedRect(centre, heading, reach, r.catcher.width)
}

// AngleToPoint is the signed rotation in (-π, π] that makes the robot face p.
func (r *Robot) AngleToPoint(p Coordinate) (float64, bool) {
	heading, ok := r.Heading()
	if !ok {
		return 0, false
	}
	return WrapAngle(r.vector.Coordinate.BearingTo(p) - heading), true
}

// RotationToAngle is the signed rotation in (-π, π] to reach an absolute heading.
func (r *Robot) RotationToAngle(angle float64) (float64, bool) {
	heading, ok := r.Heading()
	if !ok {
		return 0, false
	}
	return WrapAngle(angle - heading), true
}

func (r *Robot) DistanceTo(p Coordinate) (float64, bool) {
	pos, ok := r.Position()
	if !ok {
		return 0, false
	}
	return pos.DistanceTo(p), true
}

func (r *Robot) IsFacing(p Coordinate, margin float64) bool {
	delta, ok := r.AngleToPoint(p)
	return ok && math.Abs(delta) < margin
}

func (r *Robot) IsAt(p Coordinate, margin float64) bool {
	d, ok := r.DistanceTo(p)
	return ok && d < margin
}

// IsMoving compares velocity and the heading change since the previous sample.
func (r *Robot) IsMoving(velocityThreshold, angleThreshold float64) bool {
	if r.vector == nil {
		return false
	}
	if r.vector.velocity > velocityThreshold {
		return true
	}
	return r.hasPrevious && math.Abs(WrapAngle(r.vector.angle-r.previousAngle)) > angleThreshold
}

// InZone reports whether p lies inside this robot's zone of the given pitch.
func (r *Robot) InZone(pitch *Pitch, p Coordinate) bool {
	return pitch.InZone(r.zone, p)
}

// Front returns the two front corners of the footprint, left then right.
func (r *Robot) Front() (Coordinate, Coordinate, bool) {
	poly, ok := r.Polygon()
	if !ok {
		return Coordinate{}, Coordinate{}, false
	}
	return poly[0], poly[1], true
}
