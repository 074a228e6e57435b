package world

import "fmt"

// Fixed entity dimensions, in pixels at the standard camera height.
const (
	BallWidth  = 5.0
	BallLength = 5.0
	BallHeight = 5.0

	GoalWidth  = 140.0
	GoalLength = 1.0
	GoalHeight = 10.0

	RobotWidth  = 40.0
	RobotLength = 50.0
	RobotHeight = 19.0
)

// PitchObject is the common part of every entity on the pitch. Its pose is
// nil while the entity is undetected.
type PitchObject struct {
	width       float64
	length      float64
	height      float64
	angleOffset float64
	vector      *Vector
}

func newPitchObject(width, length, height, angleOffset float64) (PitchObject, error) {
	for name, d := range map[string]float64{"width": width, "length": length, "height": height} {
		if !finite(d) || d < 0 {
			return PitchObject{}, fmt.Errorf("%s %v: %w", name, d, ErrNegativeDimension)
		}
	}
	if !finite(angleOffset) {
		return PitchObject{}, fmt.Errorf("angle offset %v: %w", angleOffset, ErrNotFinite)
	}
	return PitchObject{width: width, length: length, height: height, angleOffset: angleOffset}, nil
}

func (o *PitchObject) Width() float64       { return o.width }
func (o *PitchObject) Length() float64      { return o.length }
func (o *PitchObject) Height() float64      { return o.height }
func (o *PitchObject) AngleOffset() float64 { return o.angleOffset }

// Detected reports whether the entity has a pose this tick.
func (o *PitchObject) Detected() bool { return o.vector != nil }

// Vector returns a copy of the current pose.
func (o *PitchObject) Vector() (Vector, bool) {
	if o.vector == nil {
		return Vector{}, false
	}
	return *o.vector, true
}

func (o *PitchObject) Position() (Coordinate, bool) {
	if o.vector == nil {
		return Coordinate{}, false
	}
	return o.vector.Coordinate, true
}

// Heading is the observed angle corrected by the mounting offset.
func (o *PitchObject) Heading() (float64, bool) {
	if o.vector == nil {
		return 0, false
	}
	return NormalizeAngle(o.vector.angle + o.angleOffset), true
}

// Polygon is the footprint rotated by the current heading.
func (o *PitchObject) Polygon() (Polygon, bool) {
	heading, ok := o.Heading()
	if !ok {
		return nil, false
	}
	return OrientedRect(o.vector.Coordinate, heading, o.length, o.width), true
}

// Overlaps tests the footprint against an arbitrary polygon.
func (o *PitchObject) Overlaps(poly Polygon) bool {
	own, ok := o.Polygon()
	if !ok {
		return false
	}
	return own.Intersects(poly)
}

func (o *PitchObject) setVector(v *Vector) {
	o.vector = v
}

type Ball struct {
	PitchObject
}

func NewBall() *Ball {
	obj, _ := newPitchObject(BallWidth, BallLength, BallHeight, 0)
	return &Ball{PitchObject: obj}
}

// Goal is fixed for the whole session; its pose comes from the pitch geometry.
type Goal struct {
	PitchObject
	zone int
}

func NewGoal(zone int, mouth Vector) *Goal {
	obj, _ := newPitchObject(GoalWidth, GoalLength, GoalHeight, 0)
	g := &Goal{PitchObject: obj, zone: zone}
	g.setVector(&mouth)
	return g
}

func (g *Goal) Zone() int { return g.zone }
