package world

import (
	"fmt"
	"math"
	"sort"
)

const TwoPi = 2 * math.Pi

// Coordinate is a point in the pitch plane, in camera pixels.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewCoordinate rejects NaN and infinite components.
func NewCoordinate(x, y float64) (Coordinate, error) {
	if !finite(x) || !finite(y) {
		return Coordinate{}, fmt.Errorf("(%v, %v): %w", x, y, ErrNotFinite)
	}
	return Coordinate{X: x, Y: y}, nil
}

func (c Coordinate) DistanceTo(other Coordinate) float64 {
	return math.Hypot(other.X-c.X, other.Y-c.Y)
}

// BearingTo returns the absolute angle of the ray c -> other in [0, 2π).
func (c Coordinate) BearingTo(other Coordinate) float64 {
	return NormalizeAngle(math.Atan2(other.Y-c.Y, other.X-c.X))
}

func (c Coordinate) add(dx, dy float64) Coordinate {
	return Coordinate{X: c.X + dx, Y: c.Y + dy}
}

// Vector is the pose of a moving entity. Angle and velocity are validated on
// every assignment and never clamped.
type Vector struct {
	Coordinate
	angle    float64
	velocity float64
}

func NewVector(x, y, angle, velocity float64) (Vector, error) {
	c, err := NewCoordinate(x, y)
	if err != nil {
		return Vector{}, err
	}
	v := Vector{Coordinate: c}
	if err := v.SetAngle(angle); err != nil {
		return Vector{}, err
	}
	if err := v.SetVelocity(velocity); err != nil {
		return Vector{}, err
	}
	return v, nil
}

func (v Vector) Angle() float64    { return v.angle }
func (v Vector) Velocity() float64 { return v.velocity }

func (v *Vector) SetAngle(angle float64) error {
	if !finite(angle) || angle < 0 || angle >= TwoPi {
		return fmt.Errorf("angle %v: %w", angle, ErrAngleOutOfRange)
	}
	v.angle = angle
	return nil
}

func (v *Vector) SetVelocity(velocity float64) error {
	if !finite(velocity) || velocity < 0 {
		return fmt.Errorf("velocity %v: %w", velocity, ErrNegativeVelocity)
	}
	v.velocity = velocity
	return nil
}

// Polygon is an ordered list of vertices; the closing edge is implicit.
type Polygon []Coordinate

// Contains uses ray casting; points exactly on an edge may go either way.
func (p Polygon) Contains(pt Coordinate) bool {
	if len(p) < 3 {
		return false
	}
	inside := false
	j := len(p) - 1
	for i := range p {
		a, b := p[i], p[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			xCross := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y) + a.X
			if pt.X < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Intersects reports whether two polygons overlap: crossing edges or one
// fully inside the other.
func (p Polygon) Intersects(other Polygon) bool {
	if len(p) < 3 || len(other) < 3 {
		return false
	}
	for i := range p {
		a1, a2 := p[i], p[(i+1)%len(p)]
		for j := range other {
			b1, b2 := other[j], other[(j+1)%len(other)]
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return p.Contains(other[0]) || other.Contains(p[0])
}

// DistanceToEdge is the shortest distance from pt to the polygon boundary.
func (p Polygon) DistanceToEdge(pt Coordinate) float64 {
	best := math.Inf(1)
	for i := range p {
		d := segmentDistance(pt, p[i], p[(i+1)%len(p)])
		if d < best {
			best = d
		}
	}
	return best
}

func (p Polygon) Centroid() Coordinate {
	var c Coordinate
	if len(p) == 0 {
		return c
	}
	for _, v := range p {
		c.X += v.X
		c.Y += v.Y
	}
	c.X /= float64(len(p))
	c.Y /= float64(len(p))
	return c
}

// Bounds returns the axis-aligned min and max corners.
func (p Polygon) Bounds() (Coordinate, Coordinate) {
	if len(p) == 0 {
		return Coordinate{}, Coordinate{}
	}
	lo, hi := p[0], p[0]
	for _, v := range p[1:] {
		lo.X, lo.Y = math.Min(lo.X, v.X), math.Min(lo.Y, v.Y)
		hi.X, hi.Y = math.Max(hi.X, v.X), math.Max(hi.Y, v.Y)
	}
	return lo, hi
}

// ConvexHull returns the hull of pts in counter-clockwise order (monotone chain).
func ConvexHull(pts ...Coordinate) Polygon {
	if len(pts) < 3 {
		return append(Polygon(nil), pts...)
	}
	sorted := append([]Coordinate(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X == sorted[j].X {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	hull := make(Polygon, 0, 2*len(sorted))
	for _, pt := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		pt := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	return hull[:len(hull)-1]
}

// OrientedRect builds a rectangle centred on c, with length along heading and
// width across it. Vertices: front-left, front-right, back-right, back-left.
func OrientedRect(c Coordinate, heading, length, width float64) Polygon {
	cos, sin := math.Cos(heading), math.Sin(heading)
	hl, hw := length/2, width/2
	corner := func(along, across float64) Coordinate {
		return c.add(along*cos-across*sin, along*sin+across*cos)
	}
	return Polygon{
		corner(hl, hw),
		corner(hl, -hw),
		corner(-hl, -hw),
		corner(-hl, hw),
	}
}

// NormalizeAngle maps any finite angle into [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, TwoPi)
	if a < 0 {
		a += TwoPi
	}
	if a >= TwoPi {
		a = 0
	}
	return a
}

// WrapAngle maps any finite angle into (-π, π].
func WrapAngle(a float64) float64 {
	a = NormalizeAngle(a)
	if a > math.Pi {
		a -= TwoPi
	}
	return a
}

func cross(o, a, b Coordinate) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func segmentsIntersect(p1, p2, q1, q2 Coordinate) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func onSegment(a, b, pt Coordinate) bool {
	return math.Min(a.X, b.X) <= pt.X && pt.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= pt.Y && pt.Y <= math.Max(a.Y, b.Y)
}

func segmentDistance(pt, a, b Coordinate) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return pt.DistanceTo(a)
	}
	t := ((pt.X-a.X)*dx + (pt.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return pt.DistanceTo(a.add(t*dx, t*dy))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
